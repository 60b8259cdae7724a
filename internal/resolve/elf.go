package resolve

import (
	"debug/elf"
	"fmt"
	"strings"
)

// Export is one entry of a library's dynamic export table.
//
// ELF has no PE-style ordinals, so the ordinal is defined as the 1-based
// position of the export in dynamic symbol table order. The stub generator
// and the resolver share this definition, which keeps ordinal slots stable
// as long as the target library does not reorder its symbol table.
// sttGNUIFunc mirrors elf.STT_GNU_IFUNC (added in Go 1.23); its value is
// STT_LOOS (10) per the GNU ELF extension.
const sttGNUIFunc = elf.STT_LOOS

type Export struct {
	Name    string
	Ordinal int
	Value   uint64 // st_value, file-relative
}

// Exports enumerates the exported function symbols of a shared object in
// symbol table order. Version suffixes (@ or @@) are stripped, matching how
// the dynamic linker resolves unversioned lookups.
func Exports(path string) ([]Export, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ELF: %w", err)
	}
	defer f.Close()

	syms, err := f.DynamicSymbols()
	if err != nil {
		return nil, fmt.Errorf("dynamic symbols: %w", err)
	}

	var out []Export
	ord := 0
	for _, sym := range syms {
		// Defined in this object, with an address. Imports have
		// st_value 0 and SHN_UNDEF.
		if sym.Value == 0 || sym.Section == elf.SHN_UNDEF {
			continue
		}
		if st := elf.ST_TYPE(sym.Info); st != elf.STT_FUNC && st != sttGNUIFunc {
			continue
		}
		ord++
		out = append(out, Export{
			Name:    stripVersion(sym.Name),
			Ordinal: ord,
			Value:   sym.Value,
		})
	}
	return out, nil
}

func stripVersion(name string) string {
	if idx := strings.Index(name, "@@"); idx != -1 {
		return name[:idx]
	}
	if idx := strings.Index(name, "@"); idx != -1 {
		return name[:idx]
	}
	return name
}
