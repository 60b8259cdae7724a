//go:build darwin || freebsd || linux

package resolve

import "github.com/ebitengine/purego"

// New returns a Resolver backed by the platform loader and the ELF export
// table of the library file.
func New() *Resolver {
	return &Resolver{
		Sym:     purego.Dlsym,
		Exports: Exports,
	}
}
