package probe

// Fibonacci returns the n-th Fibonacci number using naive recursion.
// Exponential time, no memoization: the point of the probe is the call
// overhead, not the answer. Behavior for negative n is undefined.
func Fibonacci(n int) int {
	if n == 0 {
		return 0
	}
	if n == 1 {
		return 1
	}
	return Fibonacci(n-1) + Fibonacci(n-2)
}

// FibonacciIter returns the n-th Fibonacci number iteratively. Kept as a
// separate named function so the recursive probe keeps its algorithmic
// complexity characteristic. Returns n unchanged for n < 2.
func FibonacciIter(n int) int {
	if n < 2 {
		return n
	}
	a, b := 0, 1
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}
