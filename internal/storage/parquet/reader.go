package parquet

import (
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/events"
)

// EventReader reads an export written by EventWriter.
type EventReader struct {
	file   *os.File
	reader *parquet.GenericReader[EventRow]
	path   string
}

// NewEventReader opens an export.
func NewEventReader(path string) (*EventReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}

	reader := parquet.NewGenericReader[EventRow](f, parquet.ReadBufferSize(1024*1024))

	return &EventReader{
		file:   f,
		reader: reader,
		path:   path,
	}, nil
}

// Read reads up to n rows. It returns io.EOF once every row has been read.
func (r *EventReader) Read(n int) ([]EventRow, error) {
	rows := make([]EventRow, n)
	count, err := r.reader.Read(rows)
	if err != nil && !(errors.Is(err, io.EOF) && count > 0) {
		return nil, err
	}
	return rows[:count], nil
}

// ReadAll reads every row.
func (r *EventReader) ReadAll() ([]EventRow, error) {
	rows := make([]EventRow, r.reader.NumRows())
	n, err := r.reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "read rows")
	}
	return rows[:n], nil
}

// Entries folds the rows back into archive entries, in record order.
func (r *EventReader) Entries() ([]archive.Entry, error) {
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return RowsToEntries(rows), nil
}

// RowsToEntries groups consecutive rows of the same record into entries.
func RowsToEntries(rows []EventRow) []archive.Entry {
	var out []archive.Entry
	for i := 0; i < len(rows); {
		j := i
		e := events.New()
		for j < len(rows) && rows[j].Record == rows[i].Record {
			e.Add(rows[j].Key, rows[j].Value)
			j++
		}
		out = append(out, archive.Entry{
			Time:  time.UnixMilli(rows[i].TimestampMs).UTC(),
			Event: e,
		})
		i = j
	}
	return out
}

// NumRows returns the total number of rows in the file.
func (r *EventReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *EventReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *EventReader) Path() string {
	return r.path
}

// FileInfo holds information about an export.
type FileInfo struct {
	Path    string
	Size    int64
	NumRows int64
}

// GetFileInfo returns information about an export.
func GetFileInfo(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	r, err := NewEventReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return &FileInfo{
		Path:    path,
		Size:    stat.Size(),
		NumRows: r.NumRows(),
	}, nil
}
