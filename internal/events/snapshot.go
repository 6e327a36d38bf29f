package events

import (
	"bufio"
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/xtxerr/archivist/internal/errors"
)

// Snapshot is an immutable, repeatable view over sealed log segments.
// Events are decompressed and decoded lazily by each iterator, so any number
// of iterations may run at the same time.
type Snapshot struct {
	segments [][]byte
}

func newSnapshot(data []byte) *Snapshot {
	if len(data) == 0 {
		return &Snapshot{}
	}
	return &Snapshot{segments: [][]byte{data}}
}

// Extend returns a snapshot that yields the events of s followed by those
// of other. Neither snapshot is modified and no bytes are copied.
func (s *Snapshot) Extend(other *Snapshot) *Snapshot {
	out := &Snapshot{}
	if s != nil {
		out.segments = append(out.segments, s.segments...)
	}
	if other != nil {
		out.segments = append(out.segments, other.segments...)
	}
	return out
}

// Size returns the compressed size in bytes.
func (s *Snapshot) Size() int {
	n := 0
	for _, seg := range s.segments {
		n += len(seg)
	}
	return n
}

// Empty reports whether the snapshot yields no events. It decodes at most
// one event.
func (s *Snapshot) Empty() bool {
	it := s.Iter()
	defer it.Close()
	return !it.Next()
}

// Events decodes every event.
func (s *Snapshot) Events() ([]*Event, error) {
	it := s.Iter()
	defer it.Close()

	var out []*Event
	for it.Next() {
		out = append(out, it.Event())
	}
	return out, it.Err()
}

func (s *Snapshot) count() (int, error) {
	it := s.Iter()
	defer it.Close()

	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}

// Iter returns a new iterator positioned before the first event.
func (s *Snapshot) Iter() *Iterator {
	var segs [][]byte
	if s != nil {
		segs = s.segments
	}
	return &Iterator{segments: segs}
}

// Iterator walks the events of a snapshot.
type Iterator struct {
	segments [][]byte
	gz       *gzip.Reader
	r        *bufio.Reader
	current  *Event
	err      error
	done     bool
}

// Next advances to the next event. It returns false at the end or on error.
func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for {
		if it.r == nil {
			if len(it.segments) == 0 {
				it.done = true
				return false
			}
			if err := it.open(it.segments[0]); err != nil {
				it.err = err
				return false
			}
			it.segments = it.segments[1:]
		}

		line, err := it.r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			e, perr := ParseText(line)
			if perr != nil {
				it.err = perr
				return false
			}
			it.current = e
			return true
		}
		if err == io.EOF {
			it.closeSegment()
			continue
		}
		if err != nil {
			it.err = errors.Wrap(err, "read segment")
			return false
		}
	}
}

func (it *Iterator) open(seg []byte) error {
	gz, err := gzip.NewReader(bytes.NewReader(seg))
	if err != nil {
		return errors.Wrap(errors.ErrInvalidFormat, "open segment: "+err.Error())
	}
	it.gz = gz
	it.r = bufio.NewReader(gz)
	return nil
}

func (it *Iterator) closeSegment() {
	if it.gz != nil {
		it.gz.Close()
	}
	it.gz = nil
	it.r = nil
}

// Event returns the current event.
func (it *Iterator) Event() *Event {
	return it.current
}

// Err returns any error encountered during iteration.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the iterator.
func (it *Iterator) Close() error {
	it.closeSegment()
	it.done = true
	return nil
}
