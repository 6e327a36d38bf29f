package events

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/xtxerr/archivist/config"
	"github.com/xtxerr/archivist/internal/errors"
)

// Log is an append-only, gzip-compressed buffer of events. Records are
// compressed as they are appended. Purge seals everything appended so far
// into an immutable Snapshot and starts over with an empty segment.
//
// A Log is safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	level int
	buf   *bytes.Buffer

	// gz is the open gzip member, nil until the first append after a seal.
	gz    *gzip.Writer
	count int
}

// NewLog creates an empty log compressing at the given gzip level.
func NewLog(level int) (*Log, error) {
	if _, err := gzip.NewWriterLevel(nil, level); err != nil {
		return nil, errors.NewInvalidValue("compression level", level, err.Error())
	}
	return &Log{level: level, buf: new(bytes.Buffer)}, nil
}

// NewDefaultLog creates an empty log at the default compression level.
func NewDefaultLog() *Log {
	l, _ := NewLog(config.DefaultCompressionLevel)
	return l
}

// Level returns the compression level.
func (l *Log) Level() int {
	return l.level
}

// Len returns the number of events appended since the last purge.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Append encodes the event as one text line and feeds it to the compressor.
func (l *Log) Append(e *Event) error {
	line, err := e.MarshalText()
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gz == nil {
		gz, err := gzip.NewWriterLevel(l.buf, l.level)
		if err != nil {
			return errors.Wrap(err, "start segment")
		}
		l.gz = gz
	}
	if _, err := l.gz.Write(line); err != nil {
		return errors.Wrap(err, "compress event")
	}
	l.count++
	return nil
}

// Purge seals the current segment and returns a snapshot of exactly the
// events appended since the previous purge. The log continues empty.
func (l *Log) Purge() (*Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.sealLocked(); err != nil {
		return nil, err
	}
	data := l.buf.Bytes()
	l.buf = new(bytes.Buffer)
	l.count = 0
	return newSnapshot(data), nil
}

func (l *Log) sealLocked() error {
	if l.gz == nil {
		return nil
	}
	err := l.gz.Close()
	l.gz = nil
	if err != nil {
		return errors.Wrap(err, "seal segment")
	}
	return nil
}

// =============================================================================
// Persistence
// =============================================================================

// State field numbers.
const (
	stateFieldLevel protowire.Number = 1
	stateFieldData  protowire.Number = 2
)

// MarshalBinary returns the log state: the compression level and the
// compressed bytes accumulated so far. The open gzip member is sealed first;
// later appends continue in a new member of the same segment.
func (l *Log) MarshalBinary() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.sealLocked(); err != nil {
		return nil, err
	}
	data := l.buf.Bytes()

	b := make([]byte, 0, len(data)+16)
	b = protowire.AppendTag(b, stateFieldLevel, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(int64(l.level)))
	b = protowire.AppendTag(b, stateFieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b, nil
}

// UnmarshalBinary replaces the log with the state produced by MarshalBinary.
func (l *Log) UnmarshalBinary(b []byte) error {
	level, data, count, err := decodeState(b)
	if err != nil {
		return err
	}
	if _, err := gzip.NewWriterLevel(nil, level); err != nil {
		return errors.NewInvalidValue("compression level", level, err.Error())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.buf = bytes.NewBuffer(data)
	l.gz = nil
	l.count = count
	return nil
}

// RestoreLog rebuilds a log from MarshalBinary output.
func RestoreLog(b []byte) (*Log, error) {
	l := &Log{}
	if err := l.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return l, nil
}

func decodeState(b []byte) (level int, data []byte, count int, err error) {
	level = config.DefaultCompressionLevel
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, 0, errors.Wrap(errors.ErrInvalidFormat, protowire.ParseError(n).Error())
		}
		b = b[n:]

		switch {
		case num == stateFieldLevel && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, nil, 0, errors.Wrap(errors.ErrInvalidFormat, protowire.ParseError(n).Error())
			}
			level = int(int64(v))
			b = b[n:]
		case num == stateFieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, nil, 0, errors.Wrap(errors.ErrInvalidFormat, protowire.ParseError(n).Error())
			}
			data = bytes.Clone(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, nil, 0, errors.Wrap(errors.ErrInvalidFormat, protowire.ParseError(n).Error())
			}
			b = b[n:]
		}
	}

	// The record count is not part of the state; recover it from the data.
	if len(data) > 0 {
		count, err = newSnapshot(data).count()
		if err != nil {
			return 0, nil, 0, err
		}
	}
	return level, data, count, nil
}
