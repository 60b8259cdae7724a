// Package proxy drives initialization: locate the original library,
// resolve every declared slot, publish the results with a single atomic
// transition. It owns the process-wide proxy singleton state.
package proxy

import (
	"errors"
	"fmt"

	"github.com/techiew/UltimateProxyDLL/internal/gate"
	"github.com/techiew/UltimateProxyDLL/internal/locate"
	"github.com/techiew/UltimateProxyDLL/internal/log"
	"github.com/techiew/UltimateProxyDLL/internal/registry"
	"github.com/techiew/UltimateProxyDLL/internal/resolve"
	"github.com/techiew/UltimateProxyDLL/internal/slot"
	"github.com/techiew/UltimateProxyDLL/internal/state"
	"github.com/techiew/UltimateProxyDLL/internal/trace"
)

// ErrProxyExists means CreateProxy ran twice. The second call is a no-op:
// it never tears down or restarts the running proxy.
var ErrProxyExists = errors.New("proxy already created")

// Proxy ties the state machine, registry, locator, resolver and gate
// together. One instance exists per process, created at attach and
// discarded at detach.
type Proxy struct {
	st    *state.State
	reg   *registry.Registry
	g     *gate.Gate
	slots []slot.Slot

	locator  *locate.Locator
	resolver *resolve.Resolver

	lib   *locate.Library
	table *slot.Table

	// Trace receives lifecycle events when set before Init.
	Trace func(e *trace.Event)
}

// NewWith builds a proxy around injectable locator and resolver; tests use
// fakes, the platform constructor wires the real loaders.
func NewWith(loc *locate.Locator, res *resolve.Resolver) *Proxy {
	st := state.New()
	return &Proxy{
		st:       st,
		reg:      registry.New(),
		g:        gate.New(st),
		locator:  loc,
		resolver: res,
	}
}

// DeclareSlots installs the build-time slot declarations. Called by the
// generated stub source from its init function, before CreateProxy.
func (p *Proxy) DeclareSlots(slots []slot.Slot) {
	p.slots = slots
}

// Slots returns the declared slots.
func (p *Proxy) Slots() []slot.Slot {
	return p.slots
}

// Register installs an interception callback. Must complete before Init
// begins; afterwards the registry is sealed.
func (p *Proxy) Register(name string, fn registry.CallbackFunc) (*uintptr, error) {
	return p.reg.Register(name, fn)
}

// Gate returns the call gate the generated stubs dispatch through.
func (p *Proxy) Gate() *gate.Gate {
	return p.g
}

// State returns the lifecycle state for observation.
func (p *Proxy) State() *state.State {
	return p.st
}

// Table returns the resolution table, nil before Ready.
func (p *Proxy) Table() *slot.Table {
	if p.st.Observe() != state.Ready {
		return nil
	}
	return p.table
}

// Cell returns the stable cell registered for an export, nil if none.
func (p *Proxy) Cell(name string) *uintptr {
	return p.reg.Cell(name)
}

// Init runs locate, resolve and publish, exactly once per process.
//
// Failure never crashes the host: the state degrades to Failed and every
// gate answers with its slot sentinel from then on. There are no retries;
// shared-library loading is not safely retryable mid-process.
func (p *Proxy) Init(selfPath, optionalDir string) error {
	if !p.st.Begin() {
		log.L.Warn("CreateProxy called twice", log.Lib(selfPath))
		return ErrProxyExists
	}

	// Registration is over; gates may already be spinning, so hand them
	// the slot list and callback snapshot before anything slow runs.
	p.reg.Seal()
	p.g.Install(p.slots, p.reg.Snapshot(p.slots))
	p.g.Trace = p.Trace

	lib, err := p.locator.Locate(selfPath, optionalDir)
	if err != nil {
		p.emit(trace.Fail, "", err.Error())
		p.st.Fail()
		return fmt.Errorf("create proxy: %w", err)
	}
	p.lib = lib
	p.emit(trace.Locate, "", lib.Path)
	log.L.Located(lib.Path, uint64(lib.Handle))

	table, err := p.resolver.Resolve(lib, p.slots)
	if err != nil {
		p.emit(trace.Fail, "", err.Error())
		p.st.Fail()
		return fmt.Errorf("create proxy: %w", err)
	}
	p.table = table
	for i, s := range p.slots {
		p.emit(trace.Resolve, s.Key(), "via="+table.Method(i).String())
	}

	p.g.SetTable(table)
	p.reg.PublishInto(p.slots, table)

	// The one required synchronization point: everything written above
	// is visible to any gate observing Ready after this store.
	p.st.Publish()
	p.emit(trace.Publish, "", fmt.Sprintf("%d/%d slots", table.Resolved(), table.Len()))
	log.L.Published(table.Resolved(), len(p.slots))
	return nil
}

// Close releases the original library at process detach.
func (p *Proxy) Close() error {
	if p.lib == nil {
		return nil
	}
	return p.lib.Close()
}

func (p *Proxy) emit(tag trace.Tag, key, detail string) {
	if p.Trace != nil {
		p.Trace(trace.NewEvent(tag, key, detail))
	}
}
