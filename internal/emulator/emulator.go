// Package emulator provides ARM Thumb (Cortex-M class) emulation using
// Unicorn Engine for running firmware probe routines.
package emulator

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	glog "github.com/probst/microprobe/internal/log"
)

// Memory layout constants
const (
	CodeBase = 0x00000000 // Cortex-M flash alias
	CodeSize = 0x00100000 // 1MB for code
	RAMBase  = 0x20000000 // Cortex-M SRAM
	RAMSize  = 0x00100000 // 1MB RAM, stack at the top, scratch from the bottom
	StopBase = 0xF0000000 // Sentinel return address region
	StopSize = 0x00001000 // One page, filled with NOPs
)

// BKPT immediates with assigned meaning.
const (
	// SemihostImm marks a semihosting request (ARM standard immediate).
	SemihostImm = 0xAB
)

// TraceEvent represents a single traced instruction
type TraceEvent struct {
	Address     uint64
	Size        uint32
	Instruction string // Disassembled (if available)
	Tag         string // Hashtag like #bkpt
	Detail      string // Additional context
}

// CodeHookFunc is called for each instruction
type CodeHookFunc func(emu *Emulator, addr uint64, size uint32)

// AddressHookFunc is called when execution reaches a specific address
type AddressHookFunc func(emu *Emulator) bool // return true to stop emulation

// BkptHookFunc is called when guest code executes a BKPT instruction with a
// non-semihosting immediate. Return true to stop emulation; false resumes
// after the trap.
type BkptHookFunc func(emu *Emulator, pc uint64, imm uint32) bool

// Emulator wraps Unicorn for ARM Thumb emulation
type Emulator struct {
	mu uc.Unicorn

	// Memory management
	scratchPtr uint64 // Current scratch allocation pointer (bottom of RAM)

	// Hooks
	codeHooks   []CodeHookFunc
	addrHooks   map[uint64]AddressHookFunc
	addrHooksMu sync.RWMutex
	bkptHook    BkptHookFunc

	// Trace collection
	traceEnabled bool
	traceEvents  []TraceEvent
	traceMu      sync.Mutex

	// Stop flag
	stopped bool

	// Semihosting state
	semiOut   io.Writer
	startTime time.Time
	exited    bool
	exitCode  uint32
}

// New creates a new ARM Thumb emulator for Cortex-M class guests
func New() (*Emulator, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_ARM, uc.MODE_THUMB|uc.MODE_MCLASS)
	if err != nil {
		return nil, fmt.Errorf("create unicorn: %w", err)
	}

	emu := &Emulator{
		mu:         mu,
		scratchPtr: RAMBase,
		addrHooks:  make(map[uint64]AddressHookFunc),
		semiOut:    os.Stdout,
		startTime:  time.Now(),
	}

	// Map memory regions
	if err := emu.mapMemory(); err != nil {
		mu.Close()
		return nil, err
	}

	// Set up internal hooks
	if err := emu.setupHooks(); err != nil {
		mu.Close()
		return nil, err
	}

	return emu, nil
}

// mapMemory sets up the memory layout
func (e *Emulator) mapMemory() error {
	regions := []struct {
		base uint64
		size uint64
		name string
	}{
		{CodeBase, CodeSize, "code"},
		{RAMBase, RAMSize, "ram"},
		{StopBase, StopSize, "stop"},
	}

	for _, r := range regions {
		if err := e.mu.MemMap(r.base, r.size); err != nil {
			return fmt.Errorf("map %s (0x%x): %w", r.name, r.base, err)
		}
	}

	// Initialize stack pointer to the top of RAM
	if err := e.SetSP(RAMBase + RAMSize); err != nil {
		return fmt.Errorf("set SP: %w", err)
	}

	// Fill the stop region with Thumb NOPs so a sentinel return address is
	// fetchable; the code hook fires there before the NOP executes.
	nop := []byte{0x00, 0xBF} // NOP (Thumb)
	stopFill := make([]byte, StopSize)
	for i := 0; i < len(stopFill); i += 2 {
		copy(stopFill[i:i+2], nop)
	}
	if err := e.mu.MemWrite(StopBase, stopFill); err != nil {
		return fmt.Errorf("init stop region: %w", err)
	}

	return nil
}

// setupHooks initializes Unicorn hooks
func (e *Emulator) setupHooks() error {
	// Code hook for tracing and address hooks
	_, err := e.mu.HookAdd(uc.HOOK_CODE, func(mu uc.Unicorn, addr uint64, size uint32) {
		// Check for stop
		if e.stopped {
			e.mu.Stop()
			return
		}

		// Check address hooks first (protected by mutex)
		e.addrHooksMu.RLock()
		hook, ok := e.addrHooks[addr]
		e.addrHooksMu.RUnlock()

		if ok {
			if hook(e) {
				e.Stop()
				return
			}
		}

		// Call user code hooks
		for _, h := range e.codeHooks {
			h(e, addr, size)
		}
	}, 1, 0)
	if err != nil {
		return fmt.Errorf("add code hook: %w", err)
	}

	// Interrupt hook for BKPT and SVC. Cortex-M firmware uses BKPT both as a
	// debug trap and (immediate 0xAB) for semihosting requests.
	_, err = e.mu.HookAdd(uc.HOOK_INTR, func(mu uc.Unicorn, intno uint32) {
		e.handleInterrupt(intno)
	}, 1, 0)
	if err != nil {
		return fmt.Errorf("add intr hook: %w", err)
	}

	return nil
}

// handleInterrupt dispatches BKPT traps. The hook fires with PC still at the
// trapping instruction, so the immediate is read from memory and PC advanced
// past the 16-bit encoding before resuming.
func (e *Emulator) handleInterrupt(intno uint32) {
	pc := uint64(e.PC())

	insn, err := e.MemReadU16(pc)
	if err != nil || insn&0xFF00 != 0xBE00 {
		// Not a BKPT at PC; some unicorn builds report PC already advanced.
		prev, perr := e.MemReadU16(pc - 2)
		if perr != nil || prev&0xFF00 != 0xBE00 {
			// Unknown trap source, stop rather than loop on it.
			e.Stop()
			return
		}
		insn = prev
		pc -= 2
	}
	imm := uint32(insn & 0xFF)

	if imm == SemihostImm {
		e.handleSemihost(pc)
		_ = e.SetPC(uint32(pc + 2))
		return
	}

	if glog.L != nil {
		glog.L.Bkpt(pc, imm)
	}
	if e.bkptHook != nil {
		if e.bkptHook(e, pc, imm) {
			e.Stop()
			return
		}
	} else if e.traceEnabled {
		e.AddTraceEvent(TraceEvent{
			Address: pc,
			Size:    2,
			Tag:     "#bkpt",
			Detail:  fmt.Sprintf("imm=0x%x", imm),
		})
	}

	// Skip the BKPT and resume
	_ = e.SetPC(uint32(pc + 2))
}

// Close releases resources
func (e *Emulator) Close() error {
	return e.mu.Close()
}

// LoadCode writes code at the code base
func (e *Emulator) LoadCode(code []byte) error {
	return e.mu.MemWrite(CodeBase, code)
}

// MapRegion maps additional memory
func (e *Emulator) MapRegion(addr, size uint64) error {
	return e.mu.MemMap(addr, size)
}

// MemRead reads bytes from memory
func (e *Emulator) MemRead(addr, size uint64) ([]byte, error) {
	return e.mu.MemRead(addr, size)
}

// MemWrite writes bytes to memory
func (e *Emulator) MemWrite(addr uint64, data []byte) error {
	return e.mu.MemWrite(addr, data)
}

// MemReadU32 reads a uint32 from memory (little endian)
func (e *Emulator) MemReadU32(addr uint64) (uint32, error) {
	data, err := e.mu.MemRead(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// MemWriteU32 writes a uint32 to memory (little endian)
func (e *Emulator) MemWriteU32(addr uint64, val uint32) error {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, val)
	return e.mu.MemWrite(addr, data)
}

// MemReadU16 reads a uint16 from memory (little endian)
func (e *Emulator) MemReadU16(addr uint64) (uint16, error) {
	data, err := e.mu.MemRead(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// MemWriteU16 writes a uint16 to memory (little endian)
func (e *Emulator) MemWriteU16(addr uint64, val uint16) error {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, val)
	return e.mu.MemWrite(addr, data)
}

// MemReadU8 reads a single byte from memory
func (e *Emulator) MemReadU8(addr uint64) (uint8, error) {
	data, err := e.mu.MemRead(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// MemWriteU8 writes a single byte to memory
func (e *Emulator) MemWriteU8(addr uint64, val uint8) error {
	return e.mu.MemWrite(addr, []byte{val})
}

// MemReadString reads a null-terminated string from memory
func (e *Emulator) MemReadString(addr uint64, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 4096
	}
	data, err := e.mu.MemRead(addr, uint64(maxLen))
	if err != nil {
		return "", err
	}

	// Find null terminator
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), nil
		}
	}
	return string(data), nil
}

// MemWriteString writes a null-terminated string to memory
func (e *Emulator) MemWriteString(addr uint64, s string) error {
	data := append([]byte(s), 0)
	return e.mu.MemWrite(addr, data)
}

// R reads general-purpose register R0-R12
func (e *Emulator) R(n int) uint32 {
	if n < 0 || n > 12 {
		return 0
	}
	val, _ := e.mu.RegRead(uc.ARM_REG_R0 + n)
	return uint32(val)
}

// SetR writes general-purpose register R0-R12
func (e *Emulator) SetR(n int, val uint32) error {
	if n < 0 || n > 12 {
		return fmt.Errorf("invalid register R%d", n)
	}
	return e.mu.RegWrite(uc.ARM_REG_R0+n, uint64(val))
}

// PC returns the program counter
func (e *Emulator) PC() uint32 {
	pc, _ := e.mu.RegRead(uc.ARM_REG_PC)
	return uint32(pc)
}

// SetPC sets the program counter
func (e *Emulator) SetPC(val uint32) error {
	return e.mu.RegWrite(uc.ARM_REG_PC, uint64(val))
}

// SP returns the stack pointer
func (e *Emulator) SP() uint32 {
	sp, _ := e.mu.RegRead(uc.ARM_REG_SP)
	return uint32(sp)
}

// SetSP sets the stack pointer
func (e *Emulator) SetSP(val uint64) error {
	return e.mu.RegWrite(uc.ARM_REG_SP, val)
}

// LR returns the link register
func (e *Emulator) LR() uint32 {
	lr, _ := e.mu.RegRead(uc.ARM_REG_LR)
	return uint32(lr)
}

// SetLR sets the link register
func (e *Emulator) SetLR(val uint32) error {
	return e.mu.RegWrite(uc.ARM_REG_LR, uint64(val))
}

// Alloc reserves scratch memory at the bottom of RAM (bump allocator).
// The stack grows down from the top of the same region; RAM is large enough
// that probe workloads never meet in the middle. Panics on exhaustion.
func (e *Emulator) Alloc(size uint64) uint64 {
	// Align to 8 bytes (AAPCS)
	size = (size + 7) & ^uint64(7)

	addr := e.scratchPtr
	e.scratchPtr += size

	if e.scratchPtr >= RAMBase+RAMSize/2 {
		panic("scratch memory exhausted")
	}

	return addr
}

// HookCode adds a code hook called for every instruction
func (e *Emulator) HookCode(fn CodeHookFunc) {
	e.codeHooks = append(e.codeHooks, fn)
}

// HookAddress adds a hook for a specific address
func (e *Emulator) HookAddress(addr uint64, fn AddressHookFunc) {
	e.addrHooksMu.Lock()
	defer e.addrHooksMu.Unlock()
	e.addrHooks[addr] = fn
}

// RemoveAddressHook removes an address hook
func (e *Emulator) RemoveAddressHook(addr uint64) {
	e.addrHooksMu.Lock()
	defer e.addrHooksMu.Unlock()
	delete(e.addrHooks, addr)
}

// HookBkpt installs the breakpoint trap hook. Passing nil restores the
// default behavior (record and skip).
func (e *Emulator) HookBkpt(fn BkptHookFunc) {
	e.bkptHook = fn
}

// EnableTrace enables instruction tracing
func (e *Emulator) EnableTrace() {
	e.traceEnabled = true
}

// DisableTrace disables instruction tracing
func (e *Emulator) DisableTrace() {
	e.traceEnabled = false
}

// GetTraceEvents returns collected trace events
func (e *Emulator) GetTraceEvents() []TraceEvent {
	e.traceMu.Lock()
	defer e.traceMu.Unlock()
	return append([]TraceEvent{}, e.traceEvents...)
}

// AddTraceEvent adds a trace event
func (e *Emulator) AddTraceEvent(event TraceEvent) {
	e.traceMu.Lock()
	defer e.traceMu.Unlock()
	e.traceEvents = append(e.traceEvents, event)
}

// ClearTrace clears trace events
func (e *Emulator) ClearTrace() {
	e.traceMu.Lock()
	defer e.traceMu.Unlock()
	e.traceEvents = nil
}

// Run starts Thumb emulation from start and stops at end.
// Bit 0 of the start address selects Thumb state in Unicorn.
func (e *Emulator) Run(start, end uint64) error {
	e.stopped = false
	return e.mu.Start(start|1, end)
}

// RunFrom starts Thumb emulation from start until stopped or the
// instruction budget is exhausted. A maxInsn of 0 means no budget.
func (e *Emulator) RunFrom(start uint64, maxInsn uint64) error {
	e.stopped = false
	return e.mu.StartWithOptions(start|1, 0, &uc.UcOptions{Count: maxInsn})
}

// Stop stops emulation
func (e *Emulator) Stop() {
	e.stopped = true
	e.mu.Stop()
}

// Exited reports whether the guest requested exit via semihosting, and the
// exit code it passed.
func (e *Emulator) Exited() (bool, uint32) {
	return e.exited, e.exitCode
}

// SetSemihostOutput redirects guest semihosting console writes.
func (e *Emulator) SetSemihostOutput(w io.Writer) {
	e.semiOut = w
}
