// Package probe provides the native reference implementations of the guest
// test and benchmark probes: a cos/sqrt iteration loop, recursive Fibonacci,
// trig/pow wrappers, an unchecked buffer copy, and a breakpoint-trap function.
//
// Each probe mirrors the firmware routine of the same symbol name so that
// emulated results can be verified against a known-good host computation.
// Float32 probes follow the guest soft-float ABI: values cross the register
// boundary as IEEE-754 bits.
package probe

import "math"

// FloatTolerance is the maximum absolute difference accepted when comparing
// a guest float result against the native reference. Guest libm and Go's
// math package round differently in the last bits.
var FloatTolerance = 1e-4

// closeEnough reports whether a and b are equal within FloatTolerance.
// NaN compares equal to NaN so domain-error results verify as matching.
func closeEnough(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= FloatTolerance
}
