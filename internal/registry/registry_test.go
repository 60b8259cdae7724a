package registry

import (
	"errors"
	"testing"

	"github.com/techiew/UltimateProxyDLL/internal/slot"
)

func TestRegisterReturnsStableCell(t *testing.T) {
	r := New()
	cell, err := r.Register("Alpha", func(args []uintptr) uintptr { return 0 })
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if cell == nil {
		t.Fatal("nil cell")
	}
	if *cell != 0 {
		t.Error("cell populated before publish")
	}

	slots := []slot.Slot{{Name: "Alpha"}, {Name: "Beta"}}
	table := slot.NewTable(2)
	table.Set(0, 0xCAFE, slot.ByName)
	table.Set(1, 0xF00D, slot.ByName)
	r.PublishInto(slots, table)

	if *cell != 0xCAFE {
		t.Errorf("cell = %#x, want table address %#x", *cell, uintptr(0xCAFE))
	}
}

func TestReRegistrationOverwritesAndKeepsCell(t *testing.T) {
	r := New()
	first, _ := r.Register("Alpha", func(args []uintptr) uintptr { return 1 })
	second, _ := r.Register("Alpha", func(args []uintptr) uintptr { return 2 })
	if first != second {
		t.Error("re-registration must keep the original cell")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	cbs := r.Snapshot([]slot.Slot{{Name: "Alpha"}})
	if got := cbs[0](nil); got != 2 {
		t.Errorf("snapshot kept the old function (got %d)", got)
	}
}

func TestSealRejectsLateRegistration(t *testing.T) {
	r := New()
	r.Seal()
	cell, err := r.Register("Late", func(args []uintptr) uintptr { return 0 })
	if !errors.Is(err, ErrSealed) {
		t.Fatalf("err = %v, want ErrSealed", err)
	}
	if cell != nil {
		t.Error("sealed registry must not hand out cells")
	}
	if !r.Sealed() {
		t.Error("Sealed() = false after Seal")
	}
}

func TestSnapshotAlignment(t *testing.T) {
	r := New()
	r.Register("Beta", func(args []uintptr) uintptr { return 7 })

	slots := []slot.Slot{{Name: "Alpha"}, {Name: "Beta"}, {Ordinal: 3}}
	cbs := r.Snapshot(slots)
	if len(cbs) != 3 {
		t.Fatalf("snapshot len = %d", len(cbs))
	}
	if cbs[0] != nil || cbs[2] != nil {
		t.Error("slots without callbacks must stay nil")
	}
	if cbs[1] == nil || cbs[1](nil) != 7 {
		t.Error("Beta callback missing from snapshot")
	}
}

func TestCellLookup(t *testing.T) {
	r := New()
	want, _ := r.Register("Alpha", func(args []uintptr) uintptr { return 0 })
	if got := r.Cell("Alpha"); got != want {
		t.Error("Cell returned a different pointer")
	}
	if r.Cell("unknown") != nil {
		t.Error("Cell for unregistered name should be nil")
	}
}
