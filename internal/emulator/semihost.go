package emulator

import (
	"fmt"
	"time"

	glog "github.com/probst/microprobe/internal/log"
)

// ARM semihosting operation numbers (subset a bare-metal probe image uses).
const (
	SysWriteC = 0x03 // write one character
	SysWrite0 = 0x04 // write NUL-terminated string
	SysWrite  = 0x05 // write buffer to file handle
	SysClock  = 0x10 // centiseconds since start
	SysErrno  = 0x13 // last host errno
	SysExit   = 0x18 // terminate execution
)

// handleSemihost services a BKPT 0xAB request. Operation number in r0,
// parameter (or parameter block pointer) in r1; the result goes back in r0.
func (e *Emulator) handleSemihost(pc uint64) {
	op := e.R(0)
	param := uint64(e.R(1))

	switch op {
	case SysWriteC:
		if b, err := e.MemReadU8(param); err == nil {
			fmt.Fprintf(e.semiOut, "%c", b)
		}
		e.logSemihost(pc, op, "")

	case SysWrite0:
		s, err := e.MemReadString(param, 4096)
		if err == nil {
			fmt.Fprint(e.semiOut, s)
		}
		e.logSemihost(pc, op, fmt.Sprintf("len=%d", len(s)))

	case SysWrite:
		// Parameter block: {handle, buffer, length}
		buf, err1 := e.MemReadU32(param + 4)
		length, err2 := e.MemReadU32(param + 8)
		if err1 == nil && err2 == nil {
			if data, err := e.MemRead(uint64(buf), uint64(length)); err == nil {
				e.semiOut.Write(data)
				e.SetR(0, 0) // all bytes written
				e.logSemihost(pc, op, fmt.Sprintf("len=%d", length))
				return
			}
		}
		e.SetR(0, length) // nothing written

	case SysClock:
		cs := uint32(time.Since(e.startTime) / (10 * time.Millisecond))
		e.SetR(0, cs)
		e.logSemihost(pc, op, fmt.Sprintf("cs=%d", cs))

	case SysErrno:
		e.SetR(0, 0)

	case SysExit:
		e.exited = true
		e.exitCode = e.R(1)
		e.logSemihost(pc, op, fmt.Sprintf("code=%d", e.exitCode))
		e.Stop()

	default:
		// Unsupported operation: report failure
		e.SetR(0, ^uint32(0))
		e.logSemihost(pc, op, "unsupported")
	}
}

// opName returns the semihosting operation mnemonic.
func opName(op uint32) string {
	switch op {
	case SysWriteC:
		return "SYS_WRITEC"
	case SysWrite0:
		return "SYS_WRITE0"
	case SysWrite:
		return "SYS_WRITE"
	case SysClock:
		return "SYS_CLOCK"
	case SysErrno:
		return "SYS_ERRNO"
	case SysExit:
		return "SYS_EXIT"
	}
	return fmt.Sprintf("op_0x%x", op)
}

func (e *Emulator) logSemihost(pc uint64, op uint32, detail string) {
	if glog.L != nil {
		glog.L.Semihost(pc, opName(op), detail)
	}
	if e.traceEnabled {
		e.AddTraceEvent(TraceEvent{
			Address: pc,
			Size:    2,
			Tag:     "#semihost",
			Detail:  fmt.Sprintf("op=0x%x %s", op, detail),
		})
	}
}
