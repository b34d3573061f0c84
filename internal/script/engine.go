// Package script drives probes from JavaScript using goja.
//
// Scripts see two objects: `probe` with the native reference functions, and
// (when an image is loaded) `harness` for calling guest functions by symbol.
// `assert(cond, msg)` throws on failure so a failing script aborts with a
// non-nil error.
package script

import (
	"fmt"
	"math"
	"os"

	"github.com/dop251/goja"

	"github.com/probst/microprobe/internal/emulator"
	glog "github.com/probst/microprobe/internal/log"
	"github.com/probst/microprobe/internal/probe"
)

// Engine wraps a goja runtime with probe bindings.
type Engine struct {
	vm *goja.Runtime
	h  *emulator.Harness
}

// New creates a script engine. The harness may be nil; guest bindings are
// then absent and scripts can only use the native probes.
func New(h *emulator.Harness) (*Engine, error) {
	e := &Engine{
		vm: goja.New(),
		h:  h,
	}
	if err := e.bind(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) bind() error {
	vm := e.vm

	probeObj := vm.NewObject()
	bindings := map[string]interface{}{
		"fib":       probe.Fibonacci,
		"fibIter":   probe.FibonacciIter,
		"benchMath": func(x float64) float64 { return float64(probe.BenchMath(float32(x))) },
		"cos":       func(x float64) float64 { return float64(probe.Cos32(float32(x))) },
		"sqrt":      func(x float64) float64 { return float64(probe.Sqrt32(float32(x))) },
		"pow":       func(b, x float64) float64 { return float64(probe.Pow(float32(b), float32(x))) },
		"trap":      probe.Trap,
		"copyLorem": func() map[string]interface{} {
			buf := make([]byte, len(probe.Lorem)+1)
			n := probe.CopyLorem(buf)
			return map[string]interface{}{
				"length": n,
				"text":   string(buf[:n]),
			}
		},
		"lorem": probe.Lorem,
	}
	for name, fn := range bindings {
		if err := probeObj.Set(name, fn); err != nil {
			return fmt.Errorf("bind probe.%s: %w", name, err)
		}
	}
	if err := vm.Set("probe", probeObj); err != nil {
		return fmt.Errorf("bind probe: %w", err)
	}

	if err := vm.Set("assert", func(cond bool, msg string) {
		if !cond {
			panic(vm.ToValue("assertion failed: " + msg))
		}
	}); err != nil {
		return fmt.Errorf("bind assert: %w", err)
	}

	if err := vm.Set("log", func(msg string) {
		if glog.L != nil {
			glog.L.Info(msg)
		}
	}); err != nil {
		return fmt.Errorf("bind log: %w", err)
	}

	if e.h == nil {
		return nil
	}

	harnessObj := vm.NewObject()
	if err := harnessObj.Set("has", e.h.HasSymbol); err != nil {
		return fmt.Errorf("bind harness.has: %w", err)
	}
	// call passes integer arguments and returns r0 as an integer
	if err := harnessObj.Set("call", func(name string, args ...int64) (int64, error) {
		regs := make([]uint32, len(args))
		for i, a := range args {
			regs[i] = uint32(a)
		}
		ret, err := e.h.Call(name, regs...)
		return int64(ret), err
	}); err != nil {
		return fmt.Errorf("bind harness.call: %w", err)
	}
	// callf passes float arguments as IEEE bits and decodes the result
	if err := harnessObj.Set("callf", func(name string, args ...float64) (float64, error) {
		regs := make([]uint32, len(args))
		for i, a := range args {
			regs[i] = math.Float32bits(float32(a))
		}
		ret, err := e.h.Call(name, regs...)
		return float64(math.Float32frombits(ret)), err
	}); err != nil {
		return fmt.Errorf("bind harness.callf: %w", err)
	}
	if err := vm.Set("harness", harnessObj); err != nil {
		return fmt.Errorf("bind harness: %w", err)
	}

	return nil
}

// Run evaluates a script source and returns its final value.
func (e *Engine) Run(src string) (goja.Value, error) {
	v, err := e.vm.RunString(src)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return v, nil
}

// RunFile evaluates a script file.
func (e *Engine) RunFile(path string) (goja.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return e.Run(string(data))
}
