package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/script-runtime/cache"
	"github.com/wippyai/script-runtime/engine"
	"github.com/wippyai/script-runtime/pipeline"
)

func main() {
	var (
		evalExpr    = flag.String("e", "", "Expression to evaluate after all scripts ran")
		typeToken   = flag.String("type", "", "Declared type token applied to every file (e.g. text/typescript)")
		list        = flag.Bool("list", false, "List bound module exports and exit")
		stats       = flag.Bool("stats", false, "Print compilation cache statistics")
		verbose     = flag.Bool("v", false, "Verbose logging (script console output, cache activity)")
		interactive = flag.Bool("i", false, "Interactive console over the loaded document")
	)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: run [flags] <script files...>")
		fmt.Fprintln(os.Stderr, "       run -i [script files...]  (interactive console)")
		fmt.Fprintln(os.Stderr, "Dialects resolve from -type, then the file extension (.js, .ts, .wat, .wasm).")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := zap.NewNop()
	if *verbose {
		cfg := zap.NewDevelopmentConfig()
		var err error
		if log, err = cfg.Build(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		engine.SetLogger(log)
	}

	if *interactive {
		if err := runInteractive(files, *typeToken, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(files, *typeToken, *evalExpr, *list, *stats, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadDocument builds the pipeline and a document holding the given files.
func loadDocument(ctx context.Context, files []string, typeToken string, log *zap.Logger) (*pipeline.Pipeline, *pipeline.Document, error) {
	eng, err := engine.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create engine: %w", err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Logger = log
	p := pipeline.New(cache.NewStore(cacheCfg), eng, pipeline.WithLogger(log))

	doc := p.NewDocument(ctx)
	for _, file := range files {
		source, err := os.ReadFile(file)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", file, err)
		}
		doc.AddScript(pipeline.Script{Type: typeToken, Name: file, Source: source})
	}
	return p, doc, nil
}

func run(files []string, typeToken, evalExpr string, list, stats bool, log *zap.Logger) error {
	ctx := context.Background()

	p, doc, err := loadDocument(ctx, files, typeToken, log)
	if err != nil {
		return err
	}
	defer doc.Close(ctx)

	failed := 0
	for _, r := range doc.Run(ctx) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s (%s): %v\n", r.Name, r.Dialect, r.Err)
			continue
		}
		fmt.Printf("%s (%s): ok\n", r.Name, r.Dialect)
	}

	if list {
		names := doc.Binder().BoundNames()
		fmt.Printf("\nBound exports (%d):\n", len(names))
		for _, n := range names {
			fmt.Printf("  %s\n", n)
		}
	}

	if evalExpr != "" {
		v, err := doc.Binder().Runtime().RunString(evalExpr)
		if err != nil {
			return fmt.Errorf("eval: %w", err)
		}
		fmt.Printf("%v\n", v)
	}

	if stats {
		s := p.CacheStats()
		fmt.Printf("\nCache: %d hits, %d misses, %d compiles, %d evictions\n",
			s.Hits, s.Misses, s.Compiles, s.Evictions)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d script units failed", failed, len(files))
	}
	return nil
}

// formatResults renders unit outcomes for the interactive banner.
func formatResults(results []pipeline.Result) string {
	var b strings.Builder
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "%s (%s): %v\n", r.Name, r.Dialect, r.Err)
		} else {
			fmt.Fprintf(&b, "%s (%s): ok\n", r.Name, r.Dialect)
		}
	}
	return b.String()
}
