package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xtxerr/archivist/internal/errors"
)

func TestReaderEntries(t *testing.T) {
	input := "2010-12-09 15:11:34Z {\"a\":[\"1\"]}\n" +
		"2010-12-09 17:12:32 {\"a\":[\"4\",\"5\"],\"b\":[\"6\"]}\r\n" +
		"2010-12-10 00:00:00Z {}"

	r := NewReader(strings.NewReader(input))
	var n int
	for r.Next() {
		n++
		if r.Line() != n {
			t.Errorf("line: got %d, want %d", r.Line(), n)
		}
	}
	if err := r.Err(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
	if !r.Entry().Event.Empty() {
		t.Errorf("last entry should be empty, got %v", r.Entry().Event)
	}
}

func TestReaderStopsAtMalformedLine(t *testing.T) {
	input := "2010-12-09 15:11:34Z {\"a\":[\"1\"]}\n" +
		"garbage\n" +
		"2010-12-09 15:11:35Z {\"a\":[\"2\"]}\n"

	r := NewReader(strings.NewReader(input))
	var n int
	for r.Next() {
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 entry before the error, got %d", n)
	}
	err := r.Err()
	if !errors.Is(err, errors.ErrInvalidFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room")
	data := "2010-12-09 15:11:34Z {\"a\":[\"1\"]}\n2010-12-09 15:11:35Z {\"a\":[\"2\"]}\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 || entries[1].Time.Second() != 35 {
		t.Errorf("unexpected entries %+v", entries)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
