package dialect

import (
	"path"
	"strings"

	"github.com/wippyai/script-runtime/wasm"
)

// Dialect is one of the closed set of script source kinds the pipeline
// understands. Adding a dialect is a code change, not data.
type Dialect int

const (
	NativeScript Dialect = iota
	TypeScript
	WasmText
	WasmBinary
)

func (d Dialect) String() string {
	switch d {
	case NativeScript:
		return "native"
	case TypeScript:
		return "typescript"
	case WasmText:
		return "wasm-text"
	case WasmBinary:
		return "wasm-binary"
	}
	return "unknown"
}

// Type tokens, compared case-sensitively.
const (
	tokenTypeScript = "text/typescript"
	tokenWasm       = "application/wasm"
	tokenJavaScript = "text/javascript"
	tokenModule     = "module"
)

// Resolve maps a script's declared type token and resource name to a Dialect.
// It never fails: the declared token wins when recognized, an unrecognized or
// generic token falls through to the resource's file extension, and anything
// still ambiguous is native script.
func Resolve(typeToken, resourceName string, source []byte) Dialect {
	switch typeToken {
	case tokenTypeScript:
		return TypeScript
	case tokenWasm:
		return sniffWasm(source)
	case tokenJavaScript:
		return NativeScript
	case "", tokenModule:
		// Unset or generic: fall through to the extension.
	default:
		// Unrecognized tokens also fall through rather than hard-failing.
	}

	switch strings.ToLower(path.Ext(resourceName)) {
	case ".ts", ".mts":
		return TypeScript
	case ".wat", ".wasm":
		return sniffWasm(source)
	}
	return NativeScript
}

// sniffWasm disambiguates the two wasm dialects by the binary magic number.
func sniffWasm(source []byte) Dialect {
	if wasm.IsModule(source) {
		return WasmBinary
	}
	return WasmText
}
