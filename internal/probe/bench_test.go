package probe

import "testing"

var sinkInt int
var sinkFloat float32

func BenchmarkFibonacci(b *testing.B) {
	for i := 0; i < b.N; i++ {
		sinkInt = Fibonacci(25)
	}
}

func BenchmarkFibonacciIter(b *testing.B) {
	for i := 0; i < b.N; i++ {
		sinkInt = FibonacciIter(90)
	}
}

func BenchmarkBenchMath(b *testing.B) {
	for i := 0; i < b.N; i++ {
		sinkFloat = BenchMath(5.0)
	}
}

func BenchmarkCopyLorem(b *testing.B) {
	dst := make([]byte, len(Lorem)+1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sinkInt = CopyLorem(dst)
	}
}
