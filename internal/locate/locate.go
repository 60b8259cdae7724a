// Package locate finds and loads the original library the proxy stands in
// for. The search order is deterministic and attempted exactly once per
// process: shared-library loading is not safely retryable mid-process.
package locate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound means no candidate in the search order could be loaded.
// This is fatal to proxy initialization.
var ErrNotFound = errors.New("original library not found")

// HiddenPrefix lets the real library coexist with the proxy in the same
// directory. A proxy deployed as libfoo.so looks for .real-libfoo.so next
// to itself.
const HiddenPrefix = ".real-"

// Library is an open handle to the original library. It is owned by the
// proxy singleton and released only at process detach.
type Library struct {
	Handle uintptr
	Path   string

	close func(uintptr) error
}

func (l *Library) Close() error {
	if l == nil || l.Handle == 0 || l.close == nil {
		return nil
	}
	h := l.Handle
	l.Handle = 0
	return l.close(h)
}

// Locator loads the original library by probing a fixed candidate list.
// Open and CloseFunc default to dlopen/dlclose and are injectable for
// tests.
type Locator struct {
	Open       func(path string) (uintptr, error)
	CloseFunc  func(handle uintptr) error
	SystemDirs []string
}

// Candidates returns the probe paths in search order: the caller-supplied
// directory, the proxy's own directory under the hidden prefix, then the
// system library directories.
func (l *Locator) Candidates(selfPath, optionalDir string) []string {
	name := filepath.Base(selfPath)
	var out []string
	if optionalDir != "" {
		out = append(out, filepath.Join(optionalDir, name))
	}
	out = append(out, filepath.Join(filepath.Dir(selfPath), HiddenPrefix+name))
	for _, dir := range l.SystemDirs {
		out = append(out, filepath.Join(dir, name))
	}
	return out
}

// Locate probes the candidates in order and returns the first one that
// loads. Candidates whose file does not exist are skipped without a load
// attempt, so a broken same-named file earlier in the order still masks
// later candidates, exactly like the platform loader would behave.
func (l *Locator) Locate(selfPath, optionalDir string) (*Library, error) {
	if l.Open == nil {
		return nil, fmt.Errorf("locate %s: no loader available", filepath.Base(selfPath))
	}

	candidates := l.Candidates(selfPath, optionalDir)
	var attempts []string
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		handle, err := l.Open(path)
		if err != nil || handle == 0 {
			attempts = append(attempts, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		return &Library{Handle: handle, Path: path, close: l.CloseFunc}, nil
	}

	if len(attempts) > 0 {
		return nil, fmt.Errorf("%w (tried %s)", ErrNotFound, strings.Join(attempts, "; "))
	}
	return nil, fmt.Errorf("%w (no candidate exists among %s)", ErrNotFound, strings.Join(candidates, ", "))
}
