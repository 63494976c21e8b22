package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	scriptruntime "github.com/wippyai/script-runtime"
	"github.com/wippyai/script-runtime/binder"
	"github.com/wippyai/script-runtime/cache"
	"github.com/wippyai/script-runtime/compiler"
	"github.com/wippyai/script-runtime/dialect"
	"github.com/wippyai/script-runtime/engine"
	"github.com/wippyai/script-runtime/errors"
)

// Script is one script occurrence as the host discovered it: the declared
// type token (possibly empty), the resource identifier, and the raw source.
// Content is immutable once fetched.
type Script struct {
	Type   string
	Name   string
	Source []byte
}

// Result is the outcome of one script unit. A unit's failure never disturbs
// its siblings; callers inspect Err per unit.
type Result struct {
	Name    string
	Dialect dialect.Dialect
	Err     error
}

// Pipeline wires the process-wide pieces together: the shared compilation
// cache and the wasm engine. Documents are created per page or session.
type Pipeline struct {
	store *cache.Store
	eng   *engine.Engine
	log   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger installs the document logger. Script console output and
// pipeline diagnostics go through it.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New builds a pipeline over a shared cache store and engine.
func New(store *cache.Store, eng *engine.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, eng: eng, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CacheStats exposes the shared cache counters.
func (p *Pipeline) CacheStats() cache.Stats { return p.store.Snapshot() }

// NewDocument creates an empty document with its own global scope.
func (p *Pipeline) NewDocument(ctx context.Context) *Document {
	docCtx, cancel := context.WithCancel(ctx)
	return &Document{
		p:      p,
		binder: binder.New(docCtx, p.log),
		ctx:    docCtx,
		cancel: cancel,
	}
}

// unit is one script occurrence with its resolved dialect.
type unit struct {
	script Script
	d      dialect.Dialect
}

// Document owns an ordered list of script units and the shared global scope
// they bind into. Units execute strictly sequentially in document order.
type Document struct {
	p         *Pipeline
	binder    *binder.Binder
	ctx       context.Context
	cancel    context.CancelFunc
	units     []unit
	instances []scriptruntime.ModuleInstance
}

// AddScript appends a script occurrence. The dialect is resolved once, here.
func (d *Document) AddScript(s Script) {
	d.units = append(d.units, unit{
		script: s,
		d:      dialect.Resolve(s.Type, s.Name, s.Source),
	})
}

// Binder exposes the document's scope for hosts that evaluate ad-hoc script
// lines or inspect bindings.
func (d *Document) Binder() *binder.Binder { return d.binder }

// Run compiles, binds, and executes every pending unit. Compilation is
// offloaded and may complete out of order, but binding happens strictly in
// document order: an artifact ready early waits its turn. One unit's failure
// is recorded and its siblings proceed. When the document's context is
// canceled, remaining units are abandoned as canceled while in-flight
// compiles still complete and populate the shared cache.
func (d *Document) Run(ctx context.Context) []Result {
	units := d.units
	d.units = nil

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if d.ctx.Err() != nil {
		cancelRun()
	}
	go func() {
		select {
		case <-d.ctx.Done():
			cancelRun()
		case <-runCtx.Done():
		}
	}()
	d.binder.SetContext(runCtx)

	type compiled struct {
		art compiler.Artifact
		err error
	}
	ready := make([]chan compiled, len(units))

	// Compile prefetch pool. Adapters are pure and uncancellable, so a
	// discarded document cannot strand the shared cache half-written.
	var g errgroup.Group
	g.SetLimit(4)
	for i, u := range units {
		u := u
		ch := make(chan compiled, 1)
		ready[i] = ch
		g.Go(func() error {
			art, err := d.p.store.LookupOrCompile(u.d, u.script.Source, compiler.ForDialect(u.d))
			ch <- compiled{art: art, err: err}
			return nil
		})
	}
	defer g.Wait()

	results := make([]Result, len(units))
	abandoned := false
	for i, u := range units {
		results[i] = Result{Name: u.script.Name, Dialect: u.d}

		if runCtx.Err() != nil {
			abandoned = true
		}
		if abandoned {
			results[i].Err = errors.Canceled(u.script.Name, runCtx.Err())
			continue
		}
		var c compiled
		select {
		case <-runCtx.Done():
			abandoned = true
			results[i].Err = errors.Canceled(u.script.Name, runCtx.Err())
			continue
		case c = <-ready[i]:
		}
		if c.err != nil {
			results[i].Err = annotate(c.err, u.script.Name)
			d.p.log.Warn("script unit failed to compile",
				zap.String("script", u.script.Name),
				zap.Stringer("dialect", u.d),
				zap.Error(c.err))
			continue
		}

		results[i].Err = d.bind(runCtx, u, c.art)
	}
	return results
}

// bind installs one compiled artifact into the document scope.
func (d *Document) bind(ctx context.Context, u unit, art compiler.Artifact) error {
	switch a := art.(type) {
	case compiler.Source:
		return d.binder.BindSource(u.script.Name, a.Text)
	case compiler.Module:
		inst, err := d.p.eng.Instantiate(ctx, a.Binary, u.script.Name)
		if err != nil {
			return err
		}
		d.instances = append(d.instances, inst)
		return d.binder.BindModule(u.script.Name, inst, a.Info)
	}
	return errors.InvalidInput(errors.PhaseBind, "unknown artifact")
}

// Close tears the document down: pending binds are abandoned and module
// instances released. Other documents and the shared cache are untouched.
func (d *Document) Close(ctx context.Context) error {
	d.cancel()
	var firstErr error
	for _, inst := range d.instances {
		if err := inst.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.instances = nil
	return firstErr
}

// annotate stamps the script name onto structured errors that lack one.
func annotate(err error, script string) error {
	if e, ok := err.(*errors.Error); ok && e.Script == "" {
		clone := *e
		clone.Script = script
		return &clone
	}
	return err
}
