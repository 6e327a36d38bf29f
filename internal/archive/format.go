package archive

import (
	"bytes"
	"runtime"
	"time"

	"github.com/xtxerr/archivist/internal/errors"
	"github.com/xtxerr/archivist/internal/events"
)

// LineSeparator terminates archive lines on this platform. Readers accept
// both "\n" and "\r\n".
var LineSeparator = lineSeparator()

func lineSeparator() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// FormatTimestamp renders t as "YYYY-MM-DD HH:MM:SSZ" in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(events.TimestampLayout)
}

// ParseTimestamp parses an archive timestamp. The legacy form without the
// trailing Z is accepted and read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{events.TimestampLayout, events.LegacyTimestampLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Wrapf(errors.ErrInvalidFormat, "timestamp %q", s)
}

// FormatLine renders one archive line including the line separator.
func FormatLine(t time.Time, e *events.Event) ([]byte, error) {
	text, err := e.MarshalText()
	if err != nil {
		return nil, err
	}
	ts := FormatTimestamp(t)

	line := make([]byte, 0, len(ts)+1+len(text)+len(LineSeparator))
	line = append(line, ts...)
	line = append(line, ' ')
	line = append(line, text...)
	line = append(line, LineSeparator...)
	return line, nil
}

// ParseLine parses one archive line. A trailing line separator is ignored.
func ParseLine(line []byte) (time.Time, *events.Event, error) {
	line = bytes.TrimRight(line, "\r\n")

	pieces := bytes.SplitN(line, []byte(" "), 3)
	if len(pieces) < 3 {
		return time.Time{}, nil, errors.Wrap(errors.ErrInvalidFormat, "unknown line format")
	}
	ts, err := ParseTimestamp(string(pieces[0]) + " " + string(pieces[1]))
	if err != nil {
		return time.Time{}, nil, err
	}
	e, err := events.ParseText(pieces[2])
	if err != nil {
		return time.Time{}, nil, err
	}
	return ts, e, nil
}
