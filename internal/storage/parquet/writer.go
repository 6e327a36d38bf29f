package parquet

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/errors"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// Source is stored in every row, typically the archive path.
	Source string
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) (CompressionType, error) {
	switch s {
	case "snappy":
		return CompressionSnappy, nil
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "gzip":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, errors.NewInvalidValue("compression", s, "must be snappy, zstd, lz4, gzip or none")
	}
}

func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// EventRow is one key/value pair of an archived event.
type EventRow struct {
	Source      string `parquet:"source,dict,zstd"`
	Record      int64  `parquet:"record"`
	TimestampMs int64  `parquet:"timestamp_ms"`
	Key         string `parquet:"key,dict,zstd"`
	Value       string `parquet:"value,zstd"`
}

// EntryToRows flattens an entry into rows in sorted key and value order.
// An event without attributes yields no rows.
func EntryToRows(source string, record int64, e archive.Entry) []EventRow {
	var rows []EventRow
	ts := e.Time.UnixMilli()
	for _, key := range e.Event.Keys() {
		for _, value := range e.Event.Values(key) {
			rows = append(rows, EventRow{
				Source:      source,
				Record:      record,
				TimestampMs: ts,
				Key:         key,
				Value:       value,
			})
		}
	}
	return rows
}

// EventWriter writes archive entries to a Parquet file.
type EventWriter struct {
	mu       sync.Mutex
	path     string
	source   string
	file     *os.File
	writer   *parquet.GenericWriter[EventRow]
	records  int64
	rowCount int64
	closed   bool
}

// NewEventWriter creates the file at path, replacing any existing file.
func NewEventWriter(path string, opts Options) (*EventWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), config.DefaultDirMode); err != nil {
		return nil, errors.Wrap(err, "create directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create file")
	}

	writer := parquet.NewGenericWriter[EventRow](f,
		parquet.Compression(getCompression(opts.Compression)),
	)

	return &EventWriter{
		path:   path,
		source: opts.Source,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends entries. Record indexes continue across calls.
func (w *EventWriter) Write(entries []archive.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ErrClosed
	}

	var rows []EventRow
	for _, e := range entries {
		rows = append(rows, EntryToRows(w.source, w.records, e)...)
		w.records++
	}
	if len(rows) == 0 {
		return nil
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return errors.Wrap(err, "write rows")
	}
	w.rowCount += int64(n)
	return nil
}

// Close flushes the footer and closes the file.
func (w *EventWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return errors.Wrap(err, "close writer")
	}
	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *EventWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Records returns the number of entries written.
func (w *EventWriter) Records() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Path returns the file path.
func (w *EventWriter) Path() string {
	return w.path
}
