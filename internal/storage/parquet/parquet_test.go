package parquet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/events"
)

func testEntries() []archive.Entry {
	base := time.Date(2010, 12, 9, 15, 11, 34, 0, time.UTC)
	return []archive.Entry{
		{Time: base, Event: events.FromMap(map[string][]string{"ip": {"10.0.0.2", "10.0.0.1"}, "type": {"scan"}})},
		{Time: base.Add(time.Second), Event: events.New()},
		{Time: base.Add(2 * time.Second), Event: events.FromMap(map[string][]string{"feed": {"abuse.ch"}})},
	}
}

func TestEntryToRows(t *testing.T) {
	rows := EntryToRows("room", 7, testEntries()[0])
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []struct{ key, value string }{
		{"ip", "10.0.0.1"},
		{"ip", "10.0.0.2"},
		{"type", "scan"},
	}
	for i, w := range want {
		if rows[i].Key != w.key || rows[i].Value != w.value {
			t.Errorf("row %d: got %s=%s, want %s=%s", i, rows[i].Key, rows[i].Value, w.key, w.value)
		}
		if rows[i].Record != 7 || rows[i].Source != "room" {
			t.Errorf("row %d: unexpected record/source %+v", i, rows[i])
		}
	}
}

func TestWriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "room.parquet")

	w, err := NewEventWriter(path, Options{Compression: CompressionSnappy, Source: "room"})
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	entries := testEntries()
	if err := w.Write(entries[:2]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(entries[2:]); err != nil {
		t.Fatalf("write: %v", err)
	}
	if w.RowCount() != 4 || w.Records() != 3 {
		t.Errorf("rows=%d records=%d", w.RowCount(), w.Records())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write(entries); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("write after close: %v", err)
	}

	info, err := GetFileInfo(path)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.NumRows != 4 || info.Size == 0 {
		t.Errorf("unexpected info %+v", info)
	}

	r, err := NewEventReader(path)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()

	got, err := r.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	// The attribute-less event has no rows and does not come back.
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[0].Event.Equal(entries[0].Event) || !got[0].Time.Equal(entries[0].Time) {
		t.Errorf("first entry: %v at %v", got[0].Event, got[0].Time)
	}
	if !got[1].Event.Equal(entries[2].Event) || !got[1].Time.Equal(entries[2].Time) {
		t.Errorf("second entry: %v at %v", got[1].Event, got[1].Time)
	}
}

func TestParseCompressionType(t *testing.T) {
	tests := []struct {
		in   string
		want CompressionType
	}{
		{"", CompressionZstd},
		{"zstd", CompressionZstd},
		{"snappy", CompressionSnappy},
		{"lz4", CompressionLZ4},
		{"gzip", CompressionGzip},
		{"none", CompressionNone},
	}
	for _, tt := range tests {
		got, err := ParseCompressionType(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("%q: got %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseCompressionType("brotli"); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
