package resolve

import (
	"errors"
	"testing"

	"github.com/techiew/UltimateProxyDLL/internal/locate"
	"github.com/techiew/UltimateProxyDLL/internal/slot"
)

// fakeLib models a loaded library: dlsym answers for named exports only,
// the export table knows every export including nameless ordinal-only ones.
type fakeLib struct {
	base    uintptr
	exports []Export
}

func (f *fakeLib) resolver() *Resolver {
	return &Resolver{
		Sym: func(handle uintptr, name string) (uintptr, error) {
			for _, e := range f.exports {
				if e.Name == name && name != "" {
					return f.base + uintptr(e.Value), nil
				}
			}
			return 0, errors.New("undefined symbol")
		},
		Exports: func(path string) ([]Export, error) {
			return f.exports, nil
		},
	}
}

func lib() *locate.Library {
	return &locate.Library{Handle: 1, Path: "/tmp/libfake.so"}
}

// Scenario from the proxy contract: Alpha exported by name, a nameless
// second export reachable only through ordinal 2.
func TestNameAndOrdinalResolution(t *testing.T) {
	f := &fakeLib{
		base: 0x7f0000000000,
		exports: []Export{
			{Name: "Alpha", Ordinal: 1, Value: 0x1000},
			{Name: "", Ordinal: 2, Value: 0x2000},
		},
	}
	slots := []slot.Slot{
		{Name: "Alpha", Ordinal: 1},
		{Name: "Beta", Ordinal: 2},
	}

	table, err := f.resolver().Resolve(lib(), slots)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if table.Method(0) != slot.ByName {
		t.Errorf("Alpha resolved via %v, want name", table.Method(0))
	}
	if got, want := table.Address(0), f.base+0x1000; got != want {
		t.Errorf("Alpha addr = %#x, want %#x", got, want)
	}
	if table.Method(1) != slot.ByOrdinal {
		t.Errorf("Beta resolved via %v, want ordinal", table.Method(1))
	}
	if got, want := table.Address(1), f.base+0x2000; got != want {
		t.Errorf("Beta addr = %#x, want %#x", got, want)
	}
}

func TestAbsentSlotIsNotAnError(t *testing.T) {
	f := &fakeLib{
		base:    0x1000,
		exports: []Export{{Name: "Alpha", Ordinal: 1, Value: 0x10}},
	}
	slots := []slot.Slot{
		{Name: "Alpha"},
		{Name: "Missing", Ordinal: 9},
	}
	table, err := f.resolver().Resolve(lib(), slots)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if table.Method(1) != slot.Absent || table.Address(1) != 0 {
		t.Errorf("missing slot = %v/%#x, want absent/0", table.Method(1), table.Address(1))
	}
	if table.Resolved() != 1 {
		t.Errorf("Resolved = %d, want 1", table.Resolved())
	}
}

func TestNamedOrdinalPrefersLoader(t *testing.T) {
	// Ordinal entry that also has a name must resolve through dlsym,
	// not through the computed base.
	symCalls := 0
	f := &fakeLib{
		base:    0x4000,
		exports: []Export{{Name: "Gamma", Ordinal: 3, Value: 0x30}},
	}
	r := f.resolver()
	innerSym := r.Sym
	r.Sym = func(h uintptr, name string) (uintptr, error) {
		symCalls++
		return innerSym(h, name)
	}

	table, err := r.Resolve(lib(), []slot.Slot{{Ordinal: 3}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if table.Method(0) != slot.ByOrdinal {
		t.Errorf("method = %v, want ordinal", table.Method(0))
	}
	if got, want := table.Address(0), f.base+uintptr(0x30); got != want {
		t.Errorf("addr = %#x, want %#x", got, want)
	}
	if symCalls == 0 {
		t.Error("loader was never consulted for named ordinal entry")
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	f := &fakeLib{
		base: 0x5000,
		exports: []Export{
			{Name: "A", Ordinal: 1, Value: 0x100},
			{Name: "", Ordinal: 2, Value: 0x200},
			{Name: "C", Ordinal: 3, Value: 0x300},
		},
	}
	slots := []slot.Slot{
		{Name: "A"},
		{Name: "B", Ordinal: 2},
		{Name: "C"},
		{Name: "D"},
	}
	r := f.resolver()
	first, err := r.Resolve(lib(), slots)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(lib(), slots)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(second) {
		t.Error("re-running resolution produced a different table")
	}
}

func TestNoSlots(t *testing.T) {
	f := &fakeLib{}
	if _, err := f.resolver().Resolve(lib(), nil); !errors.Is(err, ErrNoSlots) {
		t.Fatalf("err = %v, want ErrNoSlots", err)
	}
}

func TestBrokenExportTable(t *testing.T) {
	r := &Resolver{
		Sym: func(h uintptr, name string) (uintptr, error) {
			if name == "Named" {
				return 0xAAAA, nil
			}
			return 0, errors.New("undefined symbol")
		},
		Exports: func(path string) ([]Export, error) {
			return nil, errors.New("not an ELF")
		},
	}
	table, err := r.Resolve(lib(), []slot.Slot{{Name: "Named"}, {Ordinal: 2}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if table.Method(0) != slot.ByName {
		t.Error("named slot should still resolve when the export table is unreadable")
	}
	if table.Method(1) != slot.Absent {
		t.Error("ordinal slot should degrade to absent when the export table is unreadable")
	}
}

func TestStripVersion(t *testing.T) {
	if stripVersion("foo@@GLIBC_2.2.5") != "foo" || stripVersion("bar@v1") != "bar" || stripVersion("baz") != "baz" {
		t.Error("version suffix stripping broken")
	}
}
