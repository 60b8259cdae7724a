// Package slot holds the build-time export slot declarations and the
// run-time resolution table they resolve into.
package slot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultArity is the forwarded argument count when a slot declares none.
const DefaultArity = 8

// Slot declares one forwarding function of the proxy. A slot is addressed
// by exported name, by ordinal, or both; the set is fixed when the stub
// source is generated and never changes at run time.
type Slot struct {
	Name    string `yaml:"name,omitempty"`
	Ordinal int    `yaml:"ordinal,omitempty"` // 0 means no ordinal
	Arity   int    `yaml:"arity,omitempty"`
	// Default is returned by the gate when the proxy is Failed or the
	// slot is absent from the real library. Signature-dependent, so it
	// is declared per slot rather than hard-coded.
	Default uintptr `yaml:"default,omitempty"`
}

// Key returns the identifier callbacks and logs use for the slot.
func (s Slot) Key() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("#%d", s.Ordinal)
}

// Manifest is the declaration list consumed by the stub generator and
// shared with the runtime.
type Manifest struct {
	// Library is the file name of the impersonated library,
	// e.g. "libdinput8.so".
	Library string `yaml:"library"`
	Slots   []Slot `yaml:"slots"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks the declaration list for holes the generator cannot
// work around: unidentifiable slots and duplicate identifiers.
func (m *Manifest) Validate() error {
	if len(m.Slots) == 0 {
		return fmt.Errorf("manifest declares no slots")
	}
	names := make(map[string]bool, len(m.Slots))
	ordinals := make(map[int]bool, len(m.Slots))
	for i, s := range m.Slots {
		if s.Name == "" && s.Ordinal == 0 {
			return fmt.Errorf("slot %d has neither name nor ordinal", i)
		}
		if s.Name != "" {
			if names[s.Name] {
				return fmt.Errorf("duplicate slot name %q", s.Name)
			}
			names[s.Name] = true
		}
		if s.Ordinal != 0 {
			if s.Ordinal < 0 {
				return fmt.Errorf("slot %q has negative ordinal", s.Key())
			}
			if ordinals[s.Ordinal] {
				return fmt.Errorf("duplicate slot ordinal %d", s.Ordinal)
			}
			ordinals[s.Ordinal] = true
		}
		if s.Arity < 0 {
			return fmt.Errorf("slot %q has negative arity", s.Key())
		}
	}
	return nil
}

// Index returns the slot index for an export name, or -1.
func (m *Manifest) Index(name string) int {
	return Index(m.Slots, name)
}

// Index returns the index of the named slot in a declaration list, or -1.
func Index(slots []Slot, name string) int {
	for i, s := range slots {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Method records how a slot was resolved.
type Method int

const (
	Unresolved Method = iota
	ByName
	ByOrdinal
	Absent
)

func (m Method) String() string {
	switch m {
	case ByName:
		return "name"
	case ByOrdinal:
		return "ordinal"
	case Absent:
		return "absent"
	}
	return "unresolved"
}

// Table is the resolution table: one address per declared slot, written
// exactly once by the orchestrator before publish, read-only afterwards.
type Table struct {
	addrs   []uintptr
	methods []Method
}

func NewTable(n int) *Table {
	return &Table{
		addrs:   make([]uintptr, n),
		methods: make([]Method, n),
	}
}

func (t *Table) Len() int {
	return len(t.addrs)
}

// Set records the resolved address for a slot. Calling it after publish is
// a protocol violation; the table offers no way to detect one.
func (t *Table) Set(i int, addr uintptr, m Method) {
	t.addrs[i] = addr
	t.methods[i] = m
}

// Address returns the resolved address for a slot, 0 if absent.
func (t *Table) Address(i int) uintptr {
	if i < 0 || i >= len(t.addrs) {
		return 0
	}
	return t.addrs[i]
}

// Method returns how slot i resolved.
func (t *Table) Method(i int) Method {
	if i < 0 || i >= len(t.methods) {
		return Unresolved
	}
	return t.methods[i]
}

// Resolved counts slots with a usable address.
func (t *Table) Resolved() int {
	n := 0
	for _, a := range t.addrs {
		if a != 0 {
			n++
		}
	}
	return n
}

// Equal reports whether two tables carry identical results.
func (t *Table) Equal(o *Table) bool {
	if o == nil || len(t.addrs) != len(o.addrs) {
		return false
	}
	for i := range t.addrs {
		if t.addrs[i] != o.addrs[i] || t.methods[i] != o.methods[i] {
			return false
		}
	}
	return true
}
