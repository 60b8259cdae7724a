package slot

import (
	"strings"
	"testing"
)

const sampleManifest = `
library: libdinput8.so
slots:
  - name: DirectInput8Create
    ordinal: 1
    arity: 5
  - name: DllRegisterServer
    ordinal: 4
    default: 1
  - ordinal: 7
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Library != "libdinput8.so" {
		t.Errorf("library = %q", m.Library)
	}
	if len(m.Slots) != 3 {
		t.Fatalf("slots = %d, want 3", len(m.Slots))
	}
	if m.Slots[0].Arity != 5 || m.Slots[0].Ordinal != 1 {
		t.Errorf("slot 0 = %+v", m.Slots[0])
	}
	if m.Slots[1].Default != 1 {
		t.Errorf("slot 1 default = %d, want 1", m.Slots[1].Default)
	}
	if got := m.Slots[2].Key(); got != "#7" {
		t.Errorf("nameless slot key = %q, want #7", got)
	}
	if m.Index("DllRegisterServer") != 1 {
		t.Errorf("Index(DllRegisterServer) = %d", m.Index("DllRegisterServer"))
	}
	if m.Index("nope") != -1 {
		t.Error("Index of unknown name should be -1")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "library: x.so\nslots: []\n", "no slots"},
		{"unidentifiable", "slots:\n  - arity: 3\n", "neither name nor ordinal"},
		{"dup name", "slots:\n  - name: A\n  - name: A\n", "duplicate slot name"},
		{"dup ordinal", "slots:\n  - ordinal: 2\n  - ordinal: 2\n", "duplicate slot ordinal"},
	}
	for _, tc := range cases {
		_, err := ParseManifest([]byte(tc.yaml))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err = %v, want containing %q", tc.name, err, tc.want)
		}
	}
}

func TestTable(t *testing.T) {
	tbl := NewTable(3)
	tbl.Set(0, 0x1000, ByName)
	tbl.Set(1, 0x2000, ByOrdinal)
	tbl.Set(2, 0, Absent)

	if tbl.Address(0) != 0x1000 || tbl.Method(0) != ByName {
		t.Error("slot 0 mismatch")
	}
	if tbl.Address(2) != 0 || tbl.Method(2) != Absent {
		t.Error("absent slot should carry zero address")
	}
	if tbl.Address(-1) != 0 || tbl.Address(99) != 0 {
		t.Error("out-of-range address should be 0")
	}
	if tbl.Resolved() != 2 {
		t.Errorf("Resolved = %d, want 2", tbl.Resolved())
	}

	other := NewTable(3)
	other.Set(0, 0x1000, ByName)
	other.Set(1, 0x2000, ByOrdinal)
	other.Set(2, 0, Absent)
	if !tbl.Equal(other) {
		t.Error("identical tables reported unequal")
	}
	other.Set(1, 0x2000, ByName)
	if tbl.Equal(other) {
		t.Error("method mismatch reported equal")
	}
	if tbl.Equal(NewTable(2)) {
		t.Error("length mismatch reported equal")
	}
}
