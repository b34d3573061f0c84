package emulator

import (
	"debug/elf"
	"fmt"
	"os"
	"strings"

	glog "github.com/probst/microprobe/internal/log"
)

// ELFInfo contains parsed ELF metadata
type ELFInfo struct {
	Path     string
	Machine  elf.Machine
	Entry    uint64
	Symbols  map[string]uint64 // symbol name -> virtual address (Thumb bit preserved)
	Segments []Segment
	BaseAddr uint64 // Load base address
	EndAddr  uint64 // End of loaded memory
}

// Segment represents a loadable ELF segment
type Segment struct {
	VAddr  uint64
	PAddr  uint64
	Offset uint64
	Size   uint64 // File size
	MemSz  uint64 // Memory size (may be larger due to .bss)
	Flags  elf.ProgFlag
	Data   []byte
}

// LoadELF loads a statically linked ARM firmware image and maps it into the
// emulator. Segments outside the default code/RAM regions get their own
// mappings. Thumb function symbols keep bit 0 set; strip it for memory
// access, keep it when starting execution.
func (e *Emulator) LoadELF(path string) (*ELFInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF: %w", err)
	}
	defer f.Close()

	// Verify 32-bit ARM
	if f.Machine != elf.EM_ARM {
		return nil, fmt.Errorf("expected ARM (EM_ARM), got %v", f.Machine)
	}

	// Find file base address (lowest PT_LOAD vaddr)
	fileBase := uint64(0xFFFFFFFFFFFFFFFF)
	fileEnd := uint64(0)

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Vaddr < fileBase {
			fileBase = prog.Vaddr
		}
		segEnd := prog.Vaddr + prog.Memsz
		if segEnd > fileEnd {
			fileEnd = segEnd
		}
	}

	if fileBase == 0xFFFFFFFFFFFFFFFF {
		return nil, fmt.Errorf("no PT_LOAD segments found")
	}

	info := &ELFInfo{
		Path:     path,
		Machine:  f.Machine,
		Entry:    f.Entry,
		Symbols:  make(map[string]uint64),
		BaseAddr: fileBase,
		EndAddr:  fileEnd,
	}

	// Load symbols from .symtab and .dynsym. Firmware test images are
	// static, so .symtab is the usual source.
	syms, err := f.Symbols()
	if err == nil {
		for _, sym := range syms {
			if sym.Value != 0 && sym.Name != "" {
				info.Symbols[sym.Name] = sym.Value
			}
		}
	}

	syms, err = f.DynamicSymbols()
	if err == nil {
		for _, sym := range syms {
			if sym.Value != 0 && sym.Name != "" {
				info.Symbols[sym.Name] = sym.Value
			}
		}
	}

	// Read file data for segments
	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	// Load PT_LOAD segments
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		seg := Segment{
			VAddr:  prog.Vaddr,
			PAddr:  prog.Paddr,
			Offset: prog.Off,
			Size:   prog.Filesz,
			MemSz:  prog.Memsz,
			Flags:  prog.Flags,
		}

		// Extract segment data
		if prog.Filesz > 0 && prog.Off+prog.Filesz <= uint64(len(fileData)) {
			seg.Data = fileData[prog.Off : prog.Off+prog.Filesz]
		}

		info.Segments = append(info.Segments, seg)

		// Map segment memory if it falls outside the default regions
		// (aligned to page boundary; ignore error if already mapped)
		pageSize := uint64(0x1000)
		alignedAddr := prog.Vaddr & ^(pageSize - 1)
		alignedEnd := (prog.Vaddr + prog.Memsz + pageSize - 1) & ^(pageSize - 1)
		_ = e.MapRegion(alignedAddr, alignedEnd-alignedAddr)

		// Write segment data
		if len(seg.Data) > 0 {
			if err := e.MemWrite(prog.Vaddr, seg.Data); err != nil {
				return nil, fmt.Errorf("write segment at 0x%x: %w", prog.Vaddr, err)
			}
		}

		// Zero out .bss portion (memory size > file size)
		if prog.Memsz > prog.Filesz {
			bssStart := prog.Vaddr + prog.Filesz
			bssSize := prog.Memsz - prog.Filesz
			zeros := make([]byte, bssSize)
			// Non-fatal if this fails
			_ = e.MemWrite(bssStart, zeros)
		}

		if glog.L != nil {
			glog.L.Debug("segment loaded", glog.Addr(prog.Vaddr), glog.Size(prog.Memsz))
		}
	}

	if glog.L != nil {
		glog.L.Debug("image loaded",
			glog.Fn(path),
			glog.Ptr("base", info.BaseAddr),
			glog.Ptr("end", info.EndAddr),
		)
	}

	return info, nil
}

// FindSymbol looks up a symbol by name, returns 0 if not found
func (info *ELFInfo) FindSymbol(name string) uint64 {
	return info.Symbols[name]
}

// HasSymbol reports whether the image defines the symbol.
func (info *ELFInfo) HasSymbol(name string) bool {
	_, ok := info.Symbols[name]
	return ok
}

// FindEntryPoint returns the address to start execution from. A preferred
// symbol name wins if it resolves (exact match first, then
// case-insensitive); otherwise the ELF entry point is used.
func (info *ELFInfo) FindEntryPoint(preferredEntry string) uint64 {
	if preferredEntry != "" {
		if addr := info.FindSymbol(preferredEntry); addr != 0 {
			return addr
		}
		for name, addr := range info.Symbols {
			if strings.EqualFold(name, preferredEntry) {
				return addr
			}
		}
	}
	return info.Entry
}

// FindSymbolsMatching returns all symbols matching a predicate
func (info *ELFInfo) FindSymbolsMatching(predicate func(name string) bool) map[string]uint64 {
	result := make(map[string]uint64)
	for name, addr := range info.Symbols {
		if predicate(name) {
			result[name] = addr
		}
	}
	return result
}

// FindSymbolsBySubstring finds symbols containing the given substring
func (info *ELFInfo) FindSymbolsBySubstring(substr string) map[string]uint64 {
	return info.FindSymbolsMatching(func(name string) bool {
		return strings.Contains(strings.ToLower(name), strings.ToLower(substr))
	})
}

// IsExecutable returns true if the segment is executable
func (s *Segment) IsExecutable() bool {
	return s.Flags&elf.PF_X != 0
}

// IsWritable returns true if the segment is writable
func (s *Segment) IsWritable() bool {
	return s.Flags&elf.PF_W != 0
}

// IsReadable returns true if the segment is readable
func (s *Segment) IsReadable() bool {
	return s.Flags&elf.PF_R != 0
}
