package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	logx "pirateradio/pkg/logx"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanFindsOnlyAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp3"))
	writeFile(t, filepath.Join(dir, "b.FLAC"))
	writeFile(t, filepath.Join(dir, "sub", "c.ogg"))
	writeFile(t, filepath.Join(dir, "cover.jpg"))
	writeFile(t, filepath.Join(dir, "notes.txt"))
	writeFile(t, filepath.Join(dir, ".hidden", "d.mp3"))

	lib := New(dir, logx.Nop())
	if err := lib.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := lib.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
}

func TestScanMissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	lib := New(filepath.Join(t.TempDir(), "nope"), logx.Nop())
	if err := lib.Scan(); err != nil {
		t.Fatalf("Scan on missing dir: %v", err)
	}
	if got := lib.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
}

func TestPickEmpty(t *testing.T) {
	t.Parallel()

	lib := New(t.TempDir(), logx.Nop())
	if err := lib.Scan(); err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Pick(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Pick on empty library: err = %v, want ErrEmpty", err)
	}
}

func TestPickWithReplacement(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "only.mp3"))

	lib := New(dir, logx.Nop())
	if err := lib.Scan(); err != nil {
		t.Fatal(err)
	}

	// With one track, every pick returns it; repeats are allowed.
	for i := 0; i < 5; i++ {
		tr, err := lib.Pick()
		if err != nil {
			t.Fatalf("Pick %d: %v", i, err)
		}
		if tr.Name != "only" {
			t.Fatalf("Pick %d: name = %q", i, tr.Name)
		}
	}
}

func TestPickCoversAllTracksEventually(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	names := []string{"a.mp3", "b.mp3", "c.mp3"}
	for _, n := range names {
		writeFile(t, filepath.Join(dir, n))
	}

	lib := New(dir, logx.Nop())
	if err := lib.Scan(); err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for i := 0; i < 500 && len(seen) < len(names); i++ {
		tr, err := lib.Pick()
		if err != nil {
			t.Fatal(err)
		}
		seen[tr.Name] = true
	}
	if len(seen) != len(names) {
		t.Fatalf("uniform pick never covered all tracks: saw %v", seen)
	}
}
