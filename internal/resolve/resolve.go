// Package resolve discovers the real address behind every declared export
// slot of a loaded library. Resolution runs exactly once per process; the
// result is a read-only table.
package resolve

import (
	"errors"

	"github.com/techiew/UltimateProxyDLL/internal/locate"
	"github.com/techiew/UltimateProxyDLL/internal/log"
	"github.com/techiew/UltimateProxyDLL/internal/slot"
)

// ErrNoSlots means resolution was asked to run with nothing declared.
// This aborts initialization; per-slot misses never do.
var ErrNoSlots = errors.New("no export slots declared")

// Resolver maps declared slots to addresses in a loaded library. Name
// lookups go through the dynamic loader; ordinal lookups fall back to the
// export table parsed from the library file. Both functions are injectable
// for tests.
type Resolver struct {
	Sym     func(handle uintptr, name string) (uintptr, error)
	Exports func(path string) ([]Export, error)
}

// Resolve fills a table for the declared slots: by name first, by ordinal
// for slots the loader cannot find by name. A slot the library does not
// implement is recorded absent, not an error; libraries with fewer exports
// than the proxy declares slots for stay valid as long as the unused slots
// are never called.
//
// Resolve is a pure function of the loaded library and the declaration
// list, so re-running it yields an identical table.
func (r *Resolver) Resolve(lib *locate.Library, slots []slot.Slot) (*slot.Table, error) {
	if len(slots) == 0 {
		return nil, ErrNoSlots
	}

	table := slot.NewTable(len(slots))

	// The export table and the load base are only needed for ordinal
	// fallbacks; both are computed at most once.
	var (
		exports       []Export
		exportsLoaded bool
		base          uintptr
		baseKnown     bool
	)
	loadExports := func() []Export {
		if exportsLoaded {
			return exports
		}
		exportsLoaded = true
		var err error
		exports, err = r.Exports(lib.Path)
		if err != nil {
			log.L.Warn("export table unavailable, ordinal slots will be absent",
				log.Lib(lib.Path), log.Err(err))
			exports = nil
		}
		return exports
	}
	// The load base is derived from any export the loader can find by
	// name: base = dlsym(name) - st_value.
	loadBase := func() (uintptr, bool) {
		if baseKnown {
			return base, base != 0
		}
		baseKnown = true
		for _, e := range loadExports() {
			if e.Name == "" {
				continue
			}
			if addr, err := r.Sym(lib.Handle, e.Name); err == nil && addr != 0 {
				base = addr - uintptr(e.Value)
				return base, true
			}
		}
		return 0, false
	}

	for i, s := range slots {
		if s.Name != "" {
			if addr, err := r.Sym(lib.Handle, s.Name); err == nil && addr != 0 {
				table.Set(i, addr, slot.ByName)
				log.L.SlotResolve(s.Key(), uint64(addr), slot.ByName.String())
				continue
			}
		}
		if s.Ordinal > 0 {
			if addr := r.byOrdinal(lib, s.Ordinal, loadExports, loadBase); addr != 0 {
				table.Set(i, addr, slot.ByOrdinal)
				log.L.SlotResolve(s.Key(), uint64(addr), slot.ByOrdinal.String())
				continue
			}
		}
		table.Set(i, 0, slot.Absent)
		log.L.SlotAbsent(s.Key())
	}

	return table, nil
}

func (r *Resolver) byOrdinal(lib *locate.Library, ordinal int, loadExports func() []Export, loadBase func() (uintptr, bool)) uintptr {
	for _, e := range loadExports() {
		if e.Ordinal != ordinal {
			continue
		}
		// A named export at this ordinal can still go through the
		// loader; only nameless ones need the computed base.
		if e.Name != "" {
			if addr, err := r.Sym(lib.Handle, e.Name); err == nil && addr != 0 {
				return addr
			}
		}
		if base, ok := loadBase(); ok {
			return base + uintptr(e.Value)
		}
		return 0
	}
	return 0
}
