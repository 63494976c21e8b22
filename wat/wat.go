package wat

import (
	"github.com/wippyai/script-runtime/wat/internal/encoder"
	"github.com/wippyai/script-runtime/wat/internal/parser"
	"github.com/wippyai/script-runtime/wat/internal/token"
)

// Compile translates WAT source text into a wasm binary module.
func Compile(source string) ([]byte, error) {
	tokens := token.Scan(source)
	mod, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return encoder.Encode(mod), nil
}
