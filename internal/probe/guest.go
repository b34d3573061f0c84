package probe

import (
	"fmt"
	"math"

	"github.com/probst/microprobe/internal/emulator"
)

// Guest probe definitions. Symbols match the firmware test image; aliases
// cover images that export a routine under its plain name, like the
// standalone Fibonacci image.

var fibonacciNames = []string{"test_fibonacci", "fibonacci"}

func init() {
	Register(GuestProbe{
		Symbol:  fibonacciNames[0],
		Aliases: fibonacciNames[1:],
		Desc:    "recursive Fibonacci, fib(12) = 144",
		Verify:  verifyFibonacci,
	})
	Register(GuestProbe{
		Symbol: "bench_math",
		Desc:   "10000 rounds of cos(sqrt(x)*sqrt(x)) + 1.0",
		Verify: verifyBenchMath,
	})
	Register(GuestProbe{
		Symbol: "test_cos",
		Desc:   "float32 cosine wrapper",
		Verify: verifyCos,
	})
	Register(GuestProbe{
		Symbol: "test_sqrt",
		Desc:   "float32 square-root wrapper",
		Verify: verifySqrt,
	})
	Register(GuestProbe{
		Symbol: "test_pow",
		Desc:   "pow wrapper, pow(2, 10) = 1024",
		Verify: verifyPow,
	})
	Register(GuestProbe{
		Symbol: "test_memcpy",
		Desc:   "unchecked copy of a fixed string into a guest buffer",
		Verify: verifyMemcpy,
	})
	Register(GuestProbe{
		Symbol: "test_bkpt",
		Desc:   "cos, BKPT trap, sin of the intermediate",
		Verify: verifyBkpt,
	})
}

func verifyFibonacci(h *emulator.Harness) error {
	const n = 12
	ret, err := h.CallAny(fibonacciNames, n)
	if err != nil {
		return err
	}
	want := uint32(Fibonacci(n))
	if ret != want {
		return fmt.Errorf("fib(%d): guest %d, native %d", n, ret, want)
	}
	return nil
}

func verifyBenchMath(h *emulator.Harness) error {
	const seed = float32(5.0)
	ret, err := h.Call("bench_math", math.Float32bits(seed))
	if err != nil {
		return err
	}
	return compareFloat32("bench_math", ret, BenchMath(seed))
}

func verifyCos(h *emulator.Harness) error {
	const x = float32(5.0)
	ret, err := h.Call("test_cos", math.Float32bits(x))
	if err != nil {
		return err
	}
	return compareFloat32("cos", ret, Cos32(x))
}

func verifySqrt(h *emulator.Harness) error {
	const x = float32(5.0)
	ret, err := h.Call("test_sqrt", math.Float32bits(x))
	if err != nil {
		return err
	}
	return compareFloat32("sqrt", ret, Sqrt32(x))
}

func verifyPow(h *emulator.Harness) error {
	base, exp := float32(2.0), float32(10.0)
	ret, err := h.Call("test_pow", math.Float32bits(base), math.Float32bits(exp))
	if err != nil {
		return err
	}
	return compareFloat32("pow", ret, Pow(base, exp))
}

func verifyMemcpy(h *emulator.Harness) error {
	dst := h.Alloc(uint64(len(Lorem)) + 1)
	ret, err := h.Call("test_memcpy", uint32(dst))
	if err != nil {
		return err
	}
	if int(ret) != len(Lorem) {
		return fmt.Errorf("memcpy length: guest %d, native %d", ret, len(Lorem))
	}

	// The guest must have copied the string and its terminator
	got, err := h.Emu.MemRead(dst, uint64(len(Lorem))+1)
	if err != nil {
		return fmt.Errorf("read guest buffer: %w", err)
	}
	want := append([]byte(Lorem), 0)
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("memcpy content differs at byte %d: 0x%02x != 0x%02x",
				i, got[i], want[i])
		}
	}
	return nil
}

func verifyBkpt(h *emulator.Harness) error {
	const x = float32(5.0)

	traps := 0
	h.Emu.HookBkpt(func(e *emulator.Emulator, pc uint64, imm uint32) bool {
		traps++
		return false // resume after the trap
	})
	defer h.Emu.HookBkpt(nil)

	ret, err := h.Call("test_bkpt", math.Float32bits(x))
	if err != nil {
		return err
	}
	if traps == 0 {
		return fmt.Errorf("guest never hit its breakpoint")
	}

	want := float32(math.Sin(math.Cos(float64(x))))
	return compareFloat32("bkpt", ret, want)
}

// compareFloat32 checks a guest float32 result (raw bits) against the
// native reference within FloatTolerance.
func compareFloat32(name string, retBits uint32, want float32) error {
	got := math.Float32frombits(retBits)
	if !closeEnough(float64(got), float64(want)) {
		return fmt.Errorf("%s: guest %v, native %v", name, got, want)
	}
	return nil
}
