package emulator

import (
	"fmt"

	glog "github.com/probst/microprobe/internal/log"
)

// DefaultMaxInsn caps how many instructions a single harness call may
// execute. The recursive probes run tens of thousands of instructions;
// a runaway guest should still terminate promptly.
const DefaultMaxInsn = 20_000_000

// Harness calls individual functions inside a loaded firmware image by
// symbol name: arguments in r0-r3 per AAPCS, result read back from r0.
// Float arguments and results travel as IEEE-754 bits (soft-float ABI).
type Harness struct {
	Emu     *Emulator
	Symbols map[string]uint64
	MaxInsn uint64

	insnCount uint64
	returned  bool
}

// NewHarness creates a harness over an emulator and the symbols of a loaded
// image. The sentinel return address is installed once.
func NewHarness(emu *Emulator, symbols map[string]uint64) *Harness {
	h := &Harness{
		Emu:     emu,
		Symbols: symbols,
		MaxInsn: DefaultMaxInsn,
	}

	// Guest functions return here; the hook ends the run before the
	// sentinel NOP executes.
	emu.HookAddress(StopBase, func(e *Emulator) bool {
		h.returned = true
		return true
	})

	// Instruction counter for reporting
	emu.HookCode(func(e *Emulator, addr uint64, size uint32) {
		h.insnCount++
	})

	return h
}

// NewELFHarness loads an ARM firmware image and returns a harness over it.
func NewELFHarness(path string) (*Harness, *ELFInfo, error) {
	emu, err := New()
	if err != nil {
		return nil, nil, fmt.Errorf("create emulator: %w", err)
	}

	info, err := emu.LoadELF(path)
	if err != nil {
		emu.Close()
		return nil, nil, fmt.Errorf("load ELF: %w", err)
	}

	return NewHarness(emu, info.Symbols), info, nil
}

// HasSymbol reports whether the image defines the symbol.
func (h *Harness) HasSymbol(name string) bool {
	_, ok := h.Symbols[name]
	return ok
}

// InsnCount returns the number of instructions executed by the last call.
func (h *Harness) InsnCount() uint64 {
	return h.insnCount
}

// Alloc reserves guest scratch memory, for probes that take buffer
// arguments.
func (h *Harness) Alloc(size uint64) uint64 {
	return h.Emu.Alloc(size)
}

// Call invokes the named guest function and returns r0 after it returns.
// Thumb symbols carry bit 0; Run handles the state bit either way.
func (h *Harness) Call(name string, args ...uint32) (uint32, error) {
	addr, ok := h.Symbols[name]
	if !ok || addr == 0 {
		return 0, fmt.Errorf("symbol %q not found", name)
	}
	return h.CallAddr(addr, args...)
}

// CallAny invokes the first of the given symbol names that resolves.
func (h *Harness) CallAny(names []string, args ...uint32) (uint32, error) {
	for _, name := range names {
		if h.HasSymbol(name) {
			return h.Call(name, args...)
		}
	}
	return 0, fmt.Errorf("no symbol found among %v", names)
}

// CallAddr invokes the guest function at addr.
func (h *Harness) CallAddr(addr uint64, args ...uint32) (uint32, error) {
	if len(args) > 4 {
		return 0, fmt.Errorf("too many arguments (%d), registers hold 4", len(args))
	}

	// Fresh stack and arguments for every call
	if err := h.Emu.SetSP(RAMBase + RAMSize); err != nil {
		return 0, fmt.Errorf("set SP: %w", err)
	}
	for i, arg := range args {
		if err := h.Emu.SetR(i, arg); err != nil {
			return 0, fmt.Errorf("set R%d: %w", i, err)
		}
	}

	// Return to the sentinel; bit 0 keeps the core in Thumb state
	if err := h.Emu.SetLR(uint32(StopBase | 1)); err != nil {
		return 0, fmt.Errorf("set LR: %w", err)
	}

	h.returned = false
	h.insnCount = 0

	if glog.L != nil {
		glog.L.Trace(addr, "call", "", fmt.Sprintf("args=%d", len(args)))
	}

	err := h.Emu.RunFrom(addr&^uint64(1), h.MaxInsn)
	if err != nil && !h.returned {
		return 0, fmt.Errorf("emulation fault at pc=0x%x: %w", h.Emu.PC(), err)
	}

	if exited, code := h.Emu.Exited(); exited {
		return 0, fmt.Errorf("guest exited with code %d before returning", code)
	}
	if !h.returned {
		return 0, fmt.Errorf("instruction budget exhausted after %d instructions at pc=0x%x",
			h.insnCount, h.Emu.PC())
	}

	// A balanced function pops the stack back to the top before returning
	if sp := h.Emu.SP(); sp != RAMBase+RAMSize {
		return 0, fmt.Errorf("stack imbalance after return: sp=0x%x, want 0x%x",
			sp, uint32(RAMBase+RAMSize))
	}

	return h.Emu.R(0), nil
}

// Close releases the underlying emulator.
func (h *Harness) Close() error {
	return h.Emu.Close()
}
