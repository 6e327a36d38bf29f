package archive

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/events"
)

// Entry is one archived event with the time it was written.
type Entry struct {
	Time  time.Time
	Event *events.Event
}

// Reader iterates the entries of an archive. The first malformed line stops
// the iteration with an ErrInvalidFormat error naming the line.
type Reader struct {
	r     *bufio.Reader
	line  int
	entry Entry
	err   error
	done  bool
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next advances to the next entry.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	data, err := r.r.ReadBytes('\n')
	if len(data) == 0 {
		if err != nil && err != io.EOF {
			r.err = errors.Wrap(err, "read archive")
		}
		r.done = true
		return false
	}
	r.line++

	ts, e, perr := ParseLine(data)
	if perr != nil {
		r.err = errors.NewFormat(r.line, perr.Error())
		return false
	}
	r.entry = Entry{Time: ts, Event: e}

	if err != nil && err != io.EOF {
		r.err = errors.Wrap(err, "read archive")
	}
	return true
}

// Entry returns the current entry.
func (r *Reader) Entry() Entry {
	return r.entry
}

// Line returns the number of the current line, starting at 1.
func (r *Reader) Line() int {
	return r.line
}

// Err returns the error that stopped the iteration, if any.
func (r *Reader) Err() error {
	return r.err
}

// ReadFile reads every entry of an archive file.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", path)
	}
	defer f.Close()

	var out []Entry
	r := NewReader(f)
	for r.Next() {
		out = append(out, r.Entry())
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrapf(err, "read archive %s", path)
	}
	return out, nil
}
