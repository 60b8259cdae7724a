package locate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// touch creates an empty file so Locate's existence check passes.
func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("\x7fELF"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fakeOpen(loadable map[string]uintptr) func(string) (uintptr, error) {
	return func(path string) (uintptr, error) {
		if h, ok := loadable[path]; ok {
			return h, nil
		}
		return 0, errors.New("not a shared object")
	}
}

func TestExplicitDirWins(t *testing.T) {
	explicit := t.TempDir()
	sysdir := t.TempDir()
	selfDir := t.TempDir()
	self := filepath.Join(selfDir, "libdinput8.so")

	wantPath := filepath.Join(explicit, "libdinput8.so")
	sysPath := filepath.Join(sysdir, "libdinput8.so")
	touch(t, wantPath)
	touch(t, sysPath)

	l := &Locator{
		Open:       fakeOpen(map[string]uintptr{wantPath: 11, sysPath: 22}),
		SystemDirs: []string{sysdir},
	}
	lib, err := l.Locate(self, explicit)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if lib.Path != wantPath || lib.Handle != 11 {
		t.Errorf("picked %q (handle %d), want explicit dir candidate", lib.Path, lib.Handle)
	}
}

func TestHiddenPrefixBeatsSystemDir(t *testing.T) {
	sysdir := t.TempDir()
	selfDir := t.TempDir()
	self := filepath.Join(selfDir, "libdinput8.so")

	hidden := filepath.Join(selfDir, HiddenPrefix+"libdinput8.so")
	sysPath := filepath.Join(sysdir, "libdinput8.so")
	touch(t, hidden)
	touch(t, sysPath)

	l := &Locator{
		Open:       fakeOpen(map[string]uintptr{hidden: 7, sysPath: 8}),
		SystemDirs: []string{sysdir},
	}
	lib, err := l.Locate(self, "")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if lib.Path != hidden {
		t.Errorf("picked %q, want hidden-prefix candidate", lib.Path)
	}
}

func TestFallsThroughToSystemDir(t *testing.T) {
	sysdir := t.TempDir()
	selfDir := t.TempDir()
	self := filepath.Join(selfDir, "libdinput8.so")
	sysPath := filepath.Join(sysdir, "libdinput8.so")
	touch(t, sysPath)

	l := &Locator{
		Open:       fakeOpen(map[string]uintptr{sysPath: 3}),
		SystemDirs: []string{sysdir},
	}
	lib, err := l.Locate(self, "")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if lib.Path != sysPath {
		t.Errorf("picked %q, want system dir candidate", lib.Path)
	}
}

func TestNothingFound(t *testing.T) {
	l := &Locator{
		Open:       fakeOpen(nil),
		SystemDirs: []string{t.TempDir()},
	}
	_, err := l.Locate(filepath.Join(t.TempDir(), "libx.so"), "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnloadableCandidateReported(t *testing.T) {
	sysdir := t.TempDir()
	self := filepath.Join(t.TempDir(), "libx.so")
	bad := filepath.Join(sysdir, "libx.so")
	touch(t, bad)

	l := &Locator{
		Open:       fakeOpen(nil), // exists but refuses to load
		SystemDirs: []string{sysdir},
	}
	_, err := l.Locate(self, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCandidatesOrder(t *testing.T) {
	l := &Locator{SystemDirs: []string{"/sys1", "/sys2"}}
	got := l.Candidates("/proxy/libfoo.so", "/explicit")
	want := []string{
		"/explicit/libfoo.so",
		"/proxy/" + HiddenPrefix + "libfoo.so",
		"/sys1/libfoo.so",
		"/sys2/libfoo.so",
	}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLibraryClose(t *testing.T) {
	closed := uintptr(0)
	lib := &Library{Handle: 42, close: func(h uintptr) error {
		closed = h
		return nil
	}}
	if err := lib.Close(); err != nil {
		t.Fatal(err)
	}
	if closed != 42 {
		t.Errorf("closed handle = %d, want 42", closed)
	}
	// Idempotent.
	if err := lib.Close(); err != nil {
		t.Fatal(err)
	}
	var nilLib *Library
	if err := nilLib.Close(); err != nil {
		t.Fatal(err)
	}
}
