package probe

import (
	"math"
	"runtime"
	"sync"
)

// TrapHook is invoked when Trap reaches its breakpoint site. The firmware
// routine executes a BKPT instruction there; on the host the trap is an
// optional capability with no required behavior.
type TrapHook func()

var (
	trapMu   sync.RWMutex
	trapHook TrapHook
)

// SetTrapHook installs the hook fired by Trap. Passing nil restores the
// default no-op behavior.
func SetTrapHook(h TrapHook) {
	trapMu.Lock()
	trapHook = h
	trapMu.Unlock()
}

// DebuggerTrap is a TrapHook that stops an attached debugger, matching the
// guest BKPT as closely as the host allows. Without a debugger attached the
// process receives SIGTRAP, so only install this deliberately.
func DebuggerTrap() {
	runtime.Breakpoint()
}

// Trap computes cos(x), fires the registered trap hook, then returns the
// sine of the intermediate result. Runs in float64 like the guest routine,
// which uses double-precision cos and sin around its BKPT.
func Trap(x float64) float64 {
	r := math.Cos(x)

	trapMu.RLock()
	h := trapHook
	trapMu.RUnlock()
	if h != nil {
		h()
	}

	return math.Sin(r)
}
