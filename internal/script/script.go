// Package script lets interception logic be written in JavaScript instead
// of compiled callbacks. A hook file calls hook(name, fn) for each export
// it wants to intercept; fn receives the original arguments and a forward
// function that calls the real export.
//
//	hook("DirectInput8Create", function(args, forward) {
//	    log("DirectInput8Create called");
//	    return forward(args);
//	});
//
// Arguments cross the boundary as JS numbers; pointers above 2^53 lose
// precision when inspected but forward untouched when the hook passes the
// args array through unchanged.
package script

import (
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"
	"github.com/techiew/UltimateProxyDLL/internal/log"
	"github.com/techiew/UltimateProxyDLL/internal/registry"
	"go.uber.org/zap"
)

// Engine holds one goja VM and the hooks a script registered. The VM is
// not goroutine safe, so hook invocations serialize on a mutex.
type Engine struct {
	mu    sync.Mutex
	vm    *goja.Runtime
	names []string
	hooks map[string]goja.Callable
}

func NewEngine() *Engine {
	e := &Engine{
		vm:    goja.New(),
		hooks: make(map[string]goja.Callable),
	}
	e.vm.Set("hook", func(name string, fn goja.Callable) {
		if _, ok := e.hooks[name]; !ok {
			e.names = append(e.names, name)
		}
		e.hooks[name] = fn
	})
	e.vm.Set("log", func(msg string) {
		log.L.Info("script", zap.String("msg", msg))
	})
	return e
}

// Load evaluates a hook script. name is used in script error positions.
func (e *Engine) Load(name, src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("hook script %s: %w", name, err)
	}
	return nil
}

// LoadFile evaluates a hook script from disk.
func (e *Engine) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("hook script: %w", err)
	}
	return e.Load(path, string(src))
}

// Names returns the export identifiers the loaded scripts hooked, in
// registration order.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

// Bind wraps the JS hook for an export into a registry callback. forward
// performs the real call; the hook reaches it as its second parameter.
func (e *Engine) Bind(name string, forward func(args []uintptr) uintptr) registry.CallbackFunc {
	return func(args []uintptr) uintptr {
		e.mu.Lock()
		defer e.mu.Unlock()

		fn, ok := e.hooks[name]
		if !ok {
			return forward(args)
		}

		jsArgs := make([]uint64, len(args))
		for i, a := range args {
			jsArgs[i] = uint64(a)
		}
		fwd := func(call goja.FunctionCall) goja.Value {
			fargs := args
			if len(call.Arguments) > 0 {
				// forward(array) replaces the argument list. goja cannot
				// export JS numbers into uintptr, so go through uint64.
				var raw []uint64
				if err := e.vm.ExportTo(call.Argument(0), &raw); err == nil {
					fargs = make([]uintptr, len(raw))
					for i, r := range raw {
						fargs[i] = uintptr(r)
					}
				}
			}
			return e.vm.ToValue(uint64(forward(fargs)))
		}

		ret, err := fn(goja.Undefined(), e.vm.ToValue(jsArgs), e.vm.ToValue(fwd))
		if err != nil {
			log.L.Error("script hook failed", log.Fn(name), log.Err(err))
			return 0
		}
		return uintptr(ret.ToInteger())
	}
}
