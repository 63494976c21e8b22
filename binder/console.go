package binder

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// installConsole gives scripts a console API backed by the document logger.
func installConsole(vm *goja.Runtime, log *zap.Logger) {
	console := vm.NewObject()
	console.Set("log", consolePrinter(vm, log.Info))
	console.Set("info", consolePrinter(vm, log.Info))
	console.Set("debug", consolePrinter(vm, log.Debug))
	console.Set("warn", consolePrinter(vm, log.Warn))
	console.Set("error", consolePrinter(vm, log.Error))
	vm.Set("console", console)
}

func consolePrinter(vm *goja.Runtime, emit func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = formatConsoleArg(arg)
		}
		emit(strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func formatConsoleArg(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		// Bridge-wrapped structs and plain objects both render through
		// their toString.
		if fn, ok := goja.AssertFunction(obj.Get("toString")); ok {
			if s, err := fn(obj); err == nil {
				return s.String()
			}
		}
	}
	return fmt.Sprintf("%v", v)
}
