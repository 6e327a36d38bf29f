package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xtxerr/archivist/internal/errors"
)

func TestFileOpenerRejectsEscapes(t *testing.T) {
	o, err := NewFileOpener(t.TempDir(), DefaultFileOptions())
	if err != nil {
		t.Fatalf("opener: %v", err)
	}
	for _, p := range []string{"", "..", "../x", "a/../../x", "/etc/passwd"} {
		if _, err := o.Open(p); !errors.Is(err, errors.ErrInvalidPath) {
			t.Errorf("%q: expected invalid path, got %v", p, err)
		}
	}
}

func TestFileOpenerCreatesParents(t *testing.T) {
	dir := t.TempDir()
	o, err := NewFileOpener(dir, DefaultFileOptions())
	if err != nil {
		t.Fatalf("opener: %v", err)
	}

	h, err := o.Open("room/2024-03-01")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := h.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Buffered until flushed.
	data, _ := os.ReadFile(filepath.Join(dir, "room", "2024-03-01"))
	if len(data) != 0 {
		t.Errorf("write reached the file before flush: %q", data)
	}

	if err := h.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := h.Close(); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("second close: %v", err)
	}
	if err := h.Write([]byte("x")); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("write after close: %v", err)
	}

	data, err = os.ReadFile(filepath.Join(dir, "room", "2024-03-01"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "line\n" {
		t.Errorf("got %q", data)
	}
}

func TestNewFileOpenerValidation(t *testing.T) {
	if _, err := NewFileOpener(t.TempDir(), FileOptions{SyncMode: "sometimes"}); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := NewFileOpener(filepath.Join(t.TempDir(), "missing"), DefaultFileOptions()); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()
	dir, err := EnsureDir(filepath.Join(base, "a", "b"))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("expected absolute path, got %s", dir)
	}
	// Existing directories are fine.
	if _, err := EnsureDir(dir); err != nil {
		t.Errorf("second ensure: %v", err)
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := EnsureDir(file); err == nil {
		t.Error("expected error when path is a file")
	}
}
