package probe

import "math"

// BenchMathRounds is the fixed iteration count of the math benchmark loop.
const BenchMathRounds = 10000

// BenchMath runs the math benchmark loop: for a fixed number of rounds,
// replace x with cos(sqrt(x)*sqrt(x)) + 1.0 in float32 precision.
// Deterministic for a given seed. A negative intermediate makes sqrt
// produce NaN, which propagates silently through the remaining rounds.
func BenchMath(x float32) float32 {
	for i := 0; i < BenchMathRounds; i++ {
		s := Sqrt32(x)
		x = Cos32(s*s) + 1.0
	}
	return x
}

// Cos32 is the float32 cosine wrapper. No added semantics.
func Cos32(x float32) float32 {
	return float32(math.Cos(float64(x)))
}

// Sqrt32 is the float32 square-root wrapper. Negative input yields NaN
// per IEEE-754 rules rather than an error.
func Sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// Pow raises base to exp. The computation runs in float64 like the guest
// routine, which calls double-precision pow and truncates the result.
func Pow(base, exp float32) float32 {
	return float32(math.Pow(float64(base), float64(exp)))
}
