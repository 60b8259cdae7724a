package upd

import (
	"fmt"
	"os"
	"sync"

	"github.com/techiew/UltimateProxyDLL/internal/console"
	"github.com/techiew/UltimateProxyDLL/internal/gate"
	"github.com/techiew/UltimateProxyDLL/internal/log"
	"github.com/techiew/UltimateProxyDLL/internal/proxy"
	"github.com/techiew/UltimateProxyDLL/internal/registry"
	"github.com/techiew/UltimateProxyDLL/internal/script"
	"github.com/techiew/UltimateProxyDLL/internal/slot"
	"github.com/techiew/UltimateProxyDLL/internal/trace"
)

// Slot declares one forwarding export; see the slot manifest consumed by
// updgen.
type Slot = slot.Slot

// CallbackFunc intercepts one export before it reaches the real library.
type CallbackFunc = registry.CallbackFunc

// ErrProxyExists is returned by a second CreateProxy call.
var ErrProxyExists = proxy.ErrProxyExists

// The proxy is a process-wide singleton, created when the c-shared
// library loads so the call path never needs a lock to reach it.
var (
	defaultProxy = proxy.New()
	collector    = trace.NewCollector(4096)

	consoleOnce sync.Once

	scriptMu     sync.Mutex
	scriptEngine *script.Engine
	scriptBound  map[string]bool
)

func init() {
	defaultProxy.Trace = collector.Add
}

// DeclareSlots installs the build-time slot declarations. The generated
// stub source calls this from its init function.
func DeclareSlots(slots []Slot) {
	defaultProxy.DeclareSlots(slots)
}

// LoadManifest declares slots from a manifest file instead of generated
// declarations. Useful for tools; generated stubs declare inline.
func LoadManifest(path string) error {
	m, err := slot.LoadManifest(path)
	if err != nil {
		return err
	}
	DeclareSlots(m.Slots)
	return nil
}

// RegisterCallback installs an interception function for an export and
// returns the stable cell that will hold the export's real address once
// the proxy is ready. Must be called before CreateProxy; afterwards it
// returns nil. At most one callback per export; re-registration silently
// overwrites.
func RegisterCallback(name string, fn CallbackFunc) *uintptr {
	cell, err := defaultProxy.Register(name, fn)
	if err != nil {
		log.L.Error("RegisterCallback rejected", log.Fn(name), log.Err(err))
		return nil
	}
	return cell
}

// CreateProxy locates the original library, resolves every declared slot
// and publishes the result. Call it exactly once, from the process-attach
// path; a second call returns ErrProxyExists and changes nothing.
//
// On failure the proxy degrades to Failed: every stub answers with its
// slot sentinel rather than crashing the host.
func CreateProxy(selfPath, optionalDir string) error {
	log.Init(os.Getenv("UPD_DEBUG") != "")
	return defaultProxy.Init(selfPath, optionalDir)
}

// Call is the gate entry the generated stubs dispatch through. Host code
// has no reason to call it directly.
func Call(idx int, args ...uintptr) uintptr {
	return defaultProxy.Gate().Call(idx, args...)
}

// Forward invokes the real export behind a stable cell with the given
// arguments. Callbacks use it to forward the intercepted call.
func Forward(cell *uintptr, args ...uintptr) uintptr {
	if cell == nil {
		return 0
	}
	return gate.ForwardTo(*cell, args...)
}

// OpenDebugTerminal starts the diagnostic console on its own goroutine.
// Purely a convenience; the proxy behaves identically without it.
func OpenDebugTerminal() {
	consoleOnce.Do(func() {
		c := console.New(defaultProxy.State(), collector)
		go func() {
			if err := c.Run(); err != nil {
				log.L.Warn("debug terminal exited", log.Err(err))
			}
		}()
	})
}

// RegisterScriptFile loads a JavaScript hook file and registers a callback
// for every export it hooks. Like RegisterCallback it must run before
// CreateProxy.
func RegisterScriptFile(path string) error {
	scriptMu.Lock()
	defer scriptMu.Unlock()

	if scriptEngine == nil {
		scriptEngine = script.NewEngine()
		scriptBound = make(map[string]bool)
	}
	if err := scriptEngine.LoadFile(path); err != nil {
		return err
	}

	for _, name := range scriptEngine.Names() {
		if scriptBound[name] {
			continue
		}
		var cell *uintptr
		cb := scriptEngine.Bind(name, func(args []uintptr) uintptr {
			return Forward(cell, args...)
		})
		c, err := defaultProxy.Register(name, cb)
		if err != nil {
			return fmt.Errorf("script hook %s: %w", name, err)
		}
		cell = c
		scriptBound[name] = true
	}
	return nil
}

// Close releases the original library. Call it from the process-detach
// path if the host unloads the proxy.
func Close() error {
	return defaultProxy.Close()
}
