package emulator

import (
	"bytes"
	"testing"
)

// Thumb test code: MOVS R0, #5; MOVS R1, #3; ADDS R2, R0, R1; BX LR
var addTestCode = []byte{
	0x05, 0x20, // MOVS R0, #5
	0x03, 0x21, // MOVS R1, #3
	0x42, 0x18, // ADDS R2, R0, R1
	0x70, 0x47, // BX LR
}

// stopOnReturn points LR at the stop region and hooks it so BX LR ends the
// run cleanly.
func stopOnReturn(t *testing.T, emu *Emulator) {
	t.Helper()
	if err := emu.SetLR(StopBase | 1); err != nil {
		t.Fatalf("Failed to set LR: %v", err)
	}
	emu.HookAddress(StopBase, func(e *Emulator) bool {
		return true
	})
}

func TestEmulatorBasic(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if err := emu.LoadCode(addTestCode); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}
	stopOnReturn(t, emu)

	if err := emu.RunFrom(CodeBase, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if r2 := emu.R(2); r2 != 8 {
		t.Errorf("Expected R2=8, got R2=%d", r2)
	}
	if emu.R(0) != 5 {
		t.Errorf("Expected R0=5, got R0=%d", emu.R(0))
	}
	if emu.R(1) != 3 {
		t.Errorf("Expected R1=3, got R1=%d", emu.R(1))
	}
}

func TestMemoryOperations(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	// Test U32
	addr := uint64(RAMBase)
	val := uint32(0x12345678)

	if err := emu.MemWriteU32(addr, val); err != nil {
		t.Fatalf("Failed to write U32: %v", err)
	}
	readVal, err := emu.MemReadU32(addr)
	if err != nil {
		t.Fatalf("Failed to read U32: %v", err)
	}
	if readVal != val {
		t.Errorf("U32 mismatch: wrote 0x%x, read 0x%x", val, readVal)
	}

	// Test U16 and U8
	if err := emu.MemWriteU16(addr+8, 0xBEEF); err != nil {
		t.Fatalf("Failed to write U16: %v", err)
	}
	if v, _ := emu.MemReadU16(addr + 8); v != 0xBEEF {
		t.Errorf("U16 mismatch: read 0x%x", v)
	}
	if err := emu.MemWriteU8(addr+12, 0x42); err != nil {
		t.Fatalf("Failed to write U8: %v", err)
	}
	if v, _ := emu.MemReadU8(addr + 12); v != 0x42 {
		t.Errorf("U8 mismatch: read 0x%x", v)
	}

	// Test string
	strAddr := emu.Alloc(64)
	testStr := "Hello, microprobe!"

	if err := emu.MemWriteString(strAddr, testStr); err != nil {
		t.Fatalf("Failed to write string: %v", err)
	}
	readStr, err := emu.MemReadString(strAddr, 64)
	if err != nil {
		t.Fatalf("Failed to read string: %v", err)
	}
	if readStr != testStr {
		t.Errorf("String mismatch: wrote %q, read %q", testStr, readStr)
	}
}

func TestAlloc(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	addr1 := emu.Alloc(10)
	addr2 := emu.Alloc(20)
	addr3 := emu.Alloc(5)

	// Check alignment (8 bytes, AAPCS)
	for i, a := range []uint64{addr1, addr2, addr3} {
		if a%8 != 0 {
			t.Errorf("addr%d not 8-byte aligned: 0x%x", i+1, a)
		}
	}

	// Check non-overlapping
	if addr2 < addr1+16 { // 10 rounded to 16
		t.Errorf("addr2 overlaps addr1")
	}
	if addr3 < addr2+24 { // 20 rounded to 24
		t.Errorf("addr3 overlaps addr2")
	}
}

func TestCodeHook(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if err := emu.LoadCode(addTestCode); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}
	stopOnReturn(t, emu)

	instrCount := 0
	emu.HookCode(func(e *Emulator, addr uint64, size uint32) {
		instrCount++
	})

	if err := emu.RunFrom(CodeBase, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Three data-processing instructions plus BX; the stop hook fires
	// before the sentinel NOP executes.
	if instrCount != 4 {
		t.Errorf("Expected 4 instructions, got %d", instrCount)
	}
}

func TestBkptHook(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	// MOVS R0, #5; BKPT #0xA5; MOVS R0, #7; BX LR
	code := []byte{
		0x05, 0x20, // MOVS R0, #5
		0xA5, 0xBE, // BKPT #0xA5
		0x07, 0x20, // MOVS R0, #7
		0x70, 0x47, // BX LR
	}
	if err := emu.LoadCode(code); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}
	stopOnReturn(t, emu)

	traps := 0
	var gotImm uint32
	emu.HookBkpt(func(e *Emulator, pc uint64, imm uint32) bool {
		traps++
		gotImm = imm
		return false // resume past the trap
	})

	if err := emu.RunFrom(CodeBase, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if traps != 1 {
		t.Errorf("Expected 1 trap, got %d", traps)
	}
	if gotImm != 0xA5 {
		t.Errorf("Expected imm 0xA5, got 0x%x", gotImm)
	}
	// Execution resumed past the BKPT
	if r0 := emu.R(0); r0 != 7 {
		t.Errorf("Expected R0=7 after trap, got %d", r0)
	}
}

func TestSemihostWrite0(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	// BKPT #0xAB; BX LR — operation and parameter preloaded in registers
	code := []byte{
		0xAB, 0xBE, // BKPT #0xAB
		0x70, 0x47, // BX LR
	}
	if err := emu.LoadCode(code); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}
	stopOnReturn(t, emu)

	strAddr := emu.Alloc(32)
	if err := emu.MemWriteString(strAddr, "hello"); err != nil {
		t.Fatalf("Failed to write string: %v", err)
	}

	var out bytes.Buffer
	emu.SetSemihostOutput(&out)
	emu.SetR(0, SysWrite0)
	emu.SetR(1, uint32(strAddr))

	if err := emu.RunFrom(CodeBase, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := out.String(); got != "hello" {
		t.Errorf("Semihost output %q, want %q", got, "hello")
	}
}

func TestSemihostExit(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	code := []byte{
		0xAB, 0xBE, // BKPT #0xAB
		0x70, 0x47, // BX LR (never reached)
	}
	if err := emu.LoadCode(code); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}

	emu.SetR(0, SysExit)
	emu.SetR(1, 3)

	_ = emu.RunFrom(CodeBase, 0)

	exited, gotCode := emu.Exited()
	if !exited {
		t.Fatal("Expected guest exit")
	}
	if gotCode != 3 {
		t.Errorf("Expected exit code 3, got %d", gotCode)
	}
}

func TestAddressHook(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if err := emu.LoadCode(addTestCode); err != nil {
		t.Fatalf("Failed to load code: %v", err)
	}
	stopOnReturn(t, emu)

	// Hook at second instruction (MOVS R1, #3)
	hookCalled := false
	emu.HookAddress(CodeBase+2, func(e *Emulator) bool {
		hookCalled = true
		return false // continue execution
	})

	if err := emu.RunFrom(CodeBase, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !hookCalled {
		t.Error("Address hook was not called")
	}
}
