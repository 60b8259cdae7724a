// Package gate implements the logic every generated stub executes when the
// host calls into the proxy: wait for readiness, run the registered
// callback if any, otherwise forward to the resolved address.
package gate

import (
	"fmt"

	"github.com/techiew/UltimateProxyDLL/internal/log"
	"github.com/techiew/UltimateProxyDLL/internal/registry"
	"github.com/techiew/UltimateProxyDLL/internal/slot"
	"github.com/techiew/UltimateProxyDLL/internal/state"
	"github.com/techiew/UltimateProxyDLL/internal/trace"
)

// Gate dispatches stub calls. The slot list and callback snapshot are
// installed when initialization begins, the table when resolution
// finishes; all of it is written before Publish and read only after a
// caller observes a settled state, so the call path takes no locks.
type Gate struct {
	st        *state.State
	slots     []slot.Slot
	callbacks []registry.CallbackFunc
	table     *slot.Table

	// Forward performs the indirect call. Injectable for tests; the
	// default calls through the platform ABI.
	Forward func(addr uintptr, args []uintptr) uintptr
	// Trace receives call events when set. Must be set before
	// initialization begins.
	Trace func(e *trace.Event)
}

func New(st *state.State) *Gate {
	return &Gate{
		st:      st,
		Forward: forwardCall,
	}
}

// Install hands the gate the declared slots and the callback snapshot.
// Runs on the orchestrator thread before locate/resolve start.
func (g *Gate) Install(slots []slot.Slot, callbacks []registry.CallbackFunc) {
	g.slots = slots
	g.callbacks = callbacks
}

// SetTable hands the gate the resolution table. Runs before Publish.
func (g *Gate) SetTable(t *slot.Table) {
	g.table = t
}

// Call is the single reusable gate routine, parameterized by slot index.
//
// Calls issued by the host before initialization finishes spin until the
// state settles; they are neither lost nor misrouted. A Failed proxy
// answers immediately with the slot's declared sentinel and never crashes
// the host.
func (g *Gate) Call(idx int, args ...uintptr) uintptr {
	t := g.st.Await()

	if idx < 0 || idx >= len(g.slots) {
		log.L.Warn("call into undeclared slot", log.Fn(fmt.Sprintf("slot[%d]", idx)))
		return 0
	}
	s := g.slots[idx]

	if t == state.Failed {
		g.emit(trace.Fallback, s.Key(), "proxy failed")
		log.L.GateFallback(s.Key(), uint64(s.Default))
		return s.Default
	}

	if cb := g.callbacks[idx]; cb != nil {
		g.emit(trace.Callback, s.Key(), "")
		return cb(args)
	}

	addr := g.table.Address(idx)
	if addr == 0 {
		// Declared but absent from the real library. Calling it is a
		// host-side mismatch; answer with the sentinel instead of
		// crashing.
		g.emit(trace.Fallback, s.Key(), "absent slot")
		log.L.GateFallback(s.Key(), uint64(s.Default))
		return s.Default
	}

	g.emit(trace.Forward, s.Key(), "")
	return g.Forward(addr, args)
}

func (g *Gate) emit(tag trace.Tag, key, detail string) {
	if g.Trace != nil {
		g.Trace(trace.NewEvent(tag, key, detail))
	}
}
