//go:build darwin || freebsd || linux

package locate

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// New returns a Locator backed by the platform loader.
func New() *Locator {
	return &Locator{
		Open:       dlopen,
		CloseFunc:  purego.Dlclose,
		SystemDirs: systemDirs(),
	}
}

func dlopen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func systemDirs() []string {
	if runtime.GOOS == "darwin" {
		return []string{"/usr/local/lib", "/opt/homebrew/lib", "/usr/lib"}
	}
	return []string{
		"/usr/lib/x86_64-linux-gnu",
		"/usr/lib/aarch64-linux-gnu",
		"/usr/lib64",
		"/usr/lib",
		"/usr/local/lib",
	}
}
