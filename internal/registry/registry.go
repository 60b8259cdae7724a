// Package registry maps export identifiers to caller-supplied interception
// functions. Registration happens before the proxy initializes; the
// registry is sealed by the orchestrator and read-only on the call path,
// so gates need no locking.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/techiew/UltimateProxyDLL/internal/log"
	"github.com/techiew/UltimateProxyDLL/internal/slot"
	"go.uber.org/zap"
)

// ErrSealed means Register was called after proxy initialization began.
// The ordering invariant is on the caller: every registration must
// complete before CreateProxy runs.
var ErrSealed = errors.New("callback registry sealed by initialization")

// CallbackFunc intercepts one export. It receives the original stub
// arguments and owns the decision whether and when to forward to the real
// address through the stable cell it obtained at registration.
type CallbackFunc func(args []uintptr) uintptr

type entry struct {
	fn   CallbackFunc
	cell *uintptr
}

// Registry holds the registered interception callbacks.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	sealed  atomic.Bool
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register installs a callback for an export identifier and returns the
// stable cell that will hold the resolved address once the proxy is Ready.
// At most one callback per identifier; re-registration silently overwrites
// the function but keeps the cell, a documented caller hazard rather than
// a runtime error.
func (r *Registry) Register(name string, fn CallbackFunc) (*uintptr, error) {
	if r.sealed.Load() {
		return nil, ErrSealed
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[name]; ok {
		e.fn = fn
		log.L.Debug("callback overwritten", zap.String("slot", name))
		return e.cell, nil
	}
	e := &entry{fn: fn, cell: new(uintptr)}
	r.entries[name] = e
	log.L.Debug("callback registered", zap.String("slot", name))
	return e.cell, nil
}

// Seal freezes the registry. Called by the orchestrator before resolution
// starts; everything after this point is read-only.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// Sealed reports whether initialization has cut off registration.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Count returns the number of registered callbacks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the callbacks aligned with a slot declaration list,
// nil where no callback is registered. The orchestrator takes the
// snapshot after Seal, so the slice never changes once gates can see it.
func (r *Registry) Snapshot(slots []slot.Slot) []CallbackFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CallbackFunc, len(slots))
	for i, s := range slots {
		if s.Name == "" {
			continue
		}
		if e, ok := r.entries[s.Name]; ok {
			out[i] = e.fn
		}
	}
	return out
}

// PublishInto fills every stable cell with the address resolved for its
// slot. Runs before the Ready transition; the publish itself orders the
// writes for the gates.
func (r *Registry) PublishInto(slots []slot.Slot, table *slot.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		if i := slot.Index(slots, name); i >= 0 {
			*e.cell = table.Address(i)
		}
	}
}

// Cell returns the stable cell for an identifier, nil if no callback is
// registered there.
func (r *Registry) Cell(name string) *uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		return e.cell
	}
	return nil
}
