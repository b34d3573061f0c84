package emulator

import (
	"debug/elf"
	"testing"
)

func TestLoadELFMissingFile(t *testing.T) {
	emu, err := New()
	if err != nil {
		t.Fatalf("Failed to create emulator: %v", err)
	}
	defer emu.Close()

	if _, err := emu.LoadELF("/nonexistent/image.elf"); err == nil {
		t.Error("LoadELF of missing file succeeded")
	}
}

func TestFindEntryPoint(t *testing.T) {
	info := &ELFInfo{
		Entry: 0x1000,
		Symbols: map[string]uint64{
			"bench_math":     0x2001,
			"test_fibonacci": 0x3001,
		},
	}

	// Preferred symbol wins
	if entry := info.FindEntryPoint("bench_math"); entry != 0x2001 {
		t.Errorf("Expected bench_math (0x2001), got 0x%x", entry)
	}

	// Case-insensitive fallback
	if entry := info.FindEntryPoint("BENCH_MATH"); entry != 0x2001 {
		t.Errorf("Expected bench_math (0x2001) case-insensitive, got 0x%x", entry)
	}

	// Unknown preferred symbol falls back to the ELF entry
	if entry := info.FindEntryPoint("missing"); entry != 0x1000 {
		t.Errorf("Expected ELF entry (0x1000), got 0x%x", entry)
	}

	// No preference uses the ELF entry
	if entry := info.FindEntryPoint(""); entry != 0x1000 {
		t.Errorf("Expected ELF entry (0x1000), got 0x%x", entry)
	}
}

func TestFindSymbols(t *testing.T) {
	info := &ELFInfo{
		Symbols: map[string]uint64{
			"test_fibonacci": 0x3001,
			"test_memcpy":    0x3101,
			"bench_math":     0x2001,
		},
	}

	if addr := info.FindSymbol("test_memcpy"); addr != 0x3101 {
		t.Errorf("FindSymbol(test_memcpy) = 0x%x, want 0x3101", addr)
	}
	if addr := info.FindSymbol("missing"); addr != 0 {
		t.Errorf("FindSymbol(missing) = 0x%x, want 0", addr)
	}
	if !info.HasSymbol("bench_math") {
		t.Error("HasSymbol(bench_math) = false")
	}

	tests := info.FindSymbolsBySubstring("test_")
	if len(tests) != 2 {
		t.Errorf("FindSymbolsBySubstring(test_) found %d symbols, want 2", len(tests))
	}
}

func TestSegmentFlags(t *testing.T) {
	text := Segment{Flags: elf.PF_R | elf.PF_X}
	data := Segment{Flags: elf.PF_R | elf.PF_W}

	if !text.IsExecutable() || !text.IsReadable() || text.IsWritable() {
		t.Error("text segment flags wrong")
	}
	if data.IsExecutable() || !data.IsReadable() || !data.IsWritable() {
		t.Error("data segment flags wrong")
	}
}
