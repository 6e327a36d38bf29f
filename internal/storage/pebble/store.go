package pebblestore

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/xtxerr/archivist/internal/archive"
	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/logging"
	"github.com/xtxerr/archivist/internal/validation"
)

const (
	linePrefix = 'l'
	seqPrefix  = 's'
	sep        = 0x00
)

// Options configures a Store.
type Options struct {
	// DataDir is the path to the Pebble database directory. Required.
	DataDir string

	// Sync makes every Flush wait for the WAL to reach disk.
	Sync bool

	// PebbleOptions allows advanced tuning of Pebble. If nil, defaults are used.
	PebbleOptions *pebble.Options

	Logger *slog.Logger
}

// Store is an archive.Opener backed by Pebble.
type Store struct {
	db   *pebble.DB
	sync bool
	log  *slog.Logger

	mu    sync.Mutex
	paths map[string]*pathState
}

// pathState serializes writers of one path and hands out line numbers.
type pathState struct {
	mu   sync.Mutex
	next uint64
}

var _ archive.Opener = (*Store)(nil)

// Open creates or opens a store.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.NewMissingField("data_dir")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("pebblestore")
	}

	db, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble %s", opts.DataDir)
	}
	return &Store{
		db:    db,
		sync:  opts.Sync,
		log:   opts.Logger,
		paths: make(map[string]*pathState),
	}, nil
}

// Close closes the database. Handles must be closed first.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open returns a handle appending to path.
func (s *Store) Open(path string) (archive.Handle, error) {
	if err := validation.ValidateArchivePath(path); err != nil {
		return nil, err
	}

	st, err := s.state(path)
	if err != nil {
		return nil, err
	}
	return &handle{store: s, path: path, st: st, batch: s.db.NewBatch()}, nil
}

func (s *Store) state(path string) (*pathState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.paths[path]; ok {
		return st, nil
	}
	next, err := s.loadSeq(path)
	if err != nil {
		return nil, err
	}
	st := &pathState{next: next}
	s.paths[path] = st
	return st, nil
}

func (s *Store) loadSeq(path string) (uint64, error) {
	val, closer, err := s.db.Get(seqKey(path))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "load sequence of %s", path)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, errors.Wrapf(errors.ErrInvalidFormat, "sequence of %s", path)
	}
	return binary.BigEndian.Uint64(val), nil
}

// Paths returns every archive path in the store, sorted.
func (s *Store) Paths() ([]string, error) {
	lo := []byte{seqPrefix, sep}
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: upperBound(lo)})
	if err != nil {
		return nil, errors.Wrap(err, "create iterator")
	}
	defer it.Close()

	var out []string
	for ok := it.First(); ok; ok = it.Next() {
		out = append(out, string(it.Key()[len(lo):]))
	}
	return out, it.Error()
}

// WriteTo copies the lines of path to w in write order.
func (s *Store) WriteTo(path string, w io.Writer) (int64, error) {
	lo := lineKeyPrefix(path)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: upperBound(lo)})
	if err != nil {
		return 0, errors.Wrap(err, "create iterator")
	}
	defer it.Close()

	var n int64
	for ok := it.First(); ok; ok = it.Next() {
		m, err := w.Write(it.Value())
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, it.Error()
}

// Entries reads back every entry of path.
func (s *Store) Entries(path string) ([]archive.Entry, error) {
	var buf bytes.Buffer
	if _, err := s.WriteTo(path, &buf); err != nil {
		return nil, err
	}
	r := archive.NewReader(&buf)
	var out []archive.Entry
	for r.Next() {
		out = append(out, r.Entry())
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return out, nil
}

// handle stages lines in a batch until Flush.
type handle struct {
	store  *Store
	path   string
	st     *pathState
	batch  *pebble.Batch
	staged int
	closed bool
}

func (h *handle) Write(line []byte) error {
	if h.closed {
		return errors.ErrClosed
	}
	h.st.mu.Lock()
	seq := h.st.next
	h.st.next++
	h.st.mu.Unlock()

	if err := h.batch.Set(lineKey(h.path, seq), line, nil); err != nil {
		return errors.Wrapf(err, "stage line of %s", h.path)
	}
	h.staged++
	return nil
}

func (h *handle) Flush() error {
	if h.closed {
		return errors.ErrClosed
	}
	if h.staged == 0 {
		return nil
	}

	h.st.mu.Lock()
	var next [8]byte
	binary.BigEndian.PutUint64(next[:], h.st.next)
	h.st.mu.Unlock()
	if err := h.batch.Set(seqKey(h.path), next[:], nil); err != nil {
		return errors.Wrapf(err, "stage sequence of %s", h.path)
	}

	opts := pebble.NoSync
	if h.store.sync {
		opts = pebble.Sync
	}
	if err := h.batch.Commit(opts); err != nil {
		return errors.Wrapf(err, "commit %s", h.path)
	}
	h.store.log.Debug("committed lines", "path", h.path, "lines", h.staged)

	h.batch.Close()
	h.batch = h.store.db.NewBatch()
	h.staged = 0
	return nil
}

// Close drops lines that were not flushed.
func (h *handle) Close() error {
	if h.closed {
		return errors.ErrClosed
	}
	h.closed = true
	return h.batch.Close()
}

func seqKey(path string) []byte {
	k := make([]byte, 0, 2+len(path))
	k = append(k, seqPrefix, sep)
	return append(k, path...)
}

func lineKeyPrefix(path string) []byte {
	k := make([]byte, 0, 3+len(path)+8)
	k = append(k, linePrefix, sep)
	k = append(k, path...)
	return append(k, sep)
}

func lineKey(path string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(lineKeyPrefix(path), seq)
}

// upperBound returns the exclusive upper bound of all keys with prefix.
func upperBound(prefix []byte) []byte {
	return append(bytes.Clone(prefix), 0xFF)
}
