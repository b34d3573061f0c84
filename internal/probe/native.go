package probe

import "fmt"

// NativeProbe is a host-side probe run: Work does the computation (used by
// the bench command for timing), Result formats a one-shot answer.
type NativeProbe struct {
	Name   string
	Desc   string
	Work   func()
	Result func() string
}

// NativeProbes returns the host-side probe runs in display order.
func NativeProbes() []NativeProbe {
	return []NativeProbe{
		{
			Name: "fibonacci",
			Desc: "naive recursive Fibonacci",
			Work: func() { Fibonacci(25) },
			Result: func() string {
				return fmt.Sprintf("fib(10)=%d fib(12)=%d", Fibonacci(10), Fibonacci(12))
			},
		},
		{
			Name: "fibonacci_iter",
			Desc: "iterative Fibonacci",
			Work: func() { FibonacciIter(90) },
			Result: func() string {
				return fmt.Sprintf("fib_iter(90)=%d", FibonacciIter(90))
			},
		},
		{
			Name: "bench_math",
			Desc: "cos/sqrt iteration loop",
			Work: func() { BenchMath(5.0) },
			Result: func() string {
				return fmt.Sprintf("bench_math(5.0)=%v", BenchMath(5.0))
			},
		},
		{
			Name: "cos",
			Desc: "float32 cosine wrapper",
			Work: func() { Cos32(5.0) },
			Result: func() string {
				return fmt.Sprintf("cos(0)=%v cos(5)=%v", Cos32(0), Cos32(5.0))
			},
		},
		{
			Name: "sqrt",
			Desc: "float32 square-root wrapper",
			Work: func() { Sqrt32(5.0) },
			Result: func() string {
				return fmt.Sprintf("sqrt(4)=%v sqrt(-1)=%v", Sqrt32(4), Sqrt32(-1))
			},
		},
		{
			Name: "pow",
			Desc: "power wrapper",
			Work: func() { Pow(2, 10) },
			Result: func() string {
				return fmt.Sprintf("pow(2,10)=%v", Pow(2, 10))
			},
		},
		{
			Name: "memcpy",
			Desc: "unchecked fixed-string copy",
			Work: func() {
				buf := make([]byte, len(Lorem)+1)
				CopyLorem(buf)
			},
			Result: func() string {
				buf := make([]byte, len(Lorem)+1)
				n := CopyLorem(buf)
				return fmt.Sprintf("copied %d bytes + NUL", n)
			},
		},
		{
			Name: "bkpt",
			Desc: "cos, trap hook, sin",
			Work: func() { Trap(5.0) },
			Result: func() string {
				return fmt.Sprintf("trap(5.0)=%v", Trap(5.0))
			},
		},
	}
}

// FindNative returns the named native probe, or false if unknown.
func FindNative(name string) (NativeProbe, bool) {
	for _, p := range NativeProbes() {
		if p.Name == name {
			return p, true
		}
	}
	return NativeProbe{}, false
}
