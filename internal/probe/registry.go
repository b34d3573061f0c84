package probe

import (
	"fmt"
	"sync"

	"github.com/probst/microprobe/internal/emulator"
)

// VerifyFunc runs one guest probe through the harness and checks the result
// against the native reference. A nil error means the guest matches.
type VerifyFunc func(h *emulator.Harness) error

// GuestProbe describes a firmware routine that can be verified.
type GuestProbe struct {
	Symbol  string   // Primary symbol name in the image (e.g., "test_fibonacci")
	Aliases []string // Alternative symbol names
	Desc    string   // One-line description for reports
	Verify  VerifyFunc
}

// Names returns the probe's symbol followed by its aliases.
func (p *GuestProbe) Names() []string {
	return append([]string{p.Symbol}, p.Aliases...)
}

// Resolvable reports whether the harness image defines any of the probe's
// symbol names.
func (p *GuestProbe) Resolvable(h *emulator.Harness) bool {
	for _, name := range p.Names() {
		if h.HasSymbol(name) {
			return true
		}
	}
	return false
}

// Registry holds guest probe definitions in registration order.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]*GuestProbe // symbol or alias -> probe
	order  []*GuestProbe
}

// DefaultRegistry is the global registry used by init() functions.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty probe registry.
func NewRegistry() *Registry {
	return &Registry{
		probes: make(map[string]*GuestProbe),
	}
}

// Register adds a probe definition. Symbol and alias collisions overwrite,
// last registration wins.
func (r *Registry) Register(p GuestProbe) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := &p
	r.probes[p.Symbol] = stored
	for _, alias := range p.Aliases {
		r.probes[alias] = stored
	}
	r.order = append(r.order, stored)
}

// Lookup finds a probe by symbol or alias.
func (r *Registry) Lookup(name string) (*GuestProbe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.probes[name]
	return p, ok
}

// All returns the registered probes in registration order.
func (r *Registry) All() []*GuestProbe {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*GuestProbe{}, r.order...)
}

// Count returns the number of registered probes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Register adds a probe to the default registry.
func Register(p GuestProbe) {
	DefaultRegistry.Register(p)
}

// Verify runs the named probe from the default registry.
func Verify(h *emulator.Harness, name string) error {
	p, ok := DefaultRegistry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown probe %q", name)
	}
	return p.Verify(h)
}
