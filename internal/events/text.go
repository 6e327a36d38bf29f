package events

import (
	"bytes"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/xtxerr/archivist/internal/errors"
)

// MarshalText encodes the event as a single-line JSON object mapping each
// key to its sorted values. Keys and values must be valid UTF-8; anything
// else fails with ErrInvalidFormat.
func (e *Event) MarshalText() ([]byte, error) {
	m := e.Map()
	for key, values := range m {
		if !utf8.ValidString(key) {
			return nil, errors.Wrapf(errors.ErrInvalidFormat, "key %q is not valid UTF-8", key)
		}
		for _, v := range values {
			if !utf8.ValidString(v) {
				return nil, errors.Wrapf(errors.ErrInvalidFormat, "value %q of key %q is not valid UTF-8", v, key)
			}
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event text")
	}
	return data, nil
}

// UnmarshalText replaces the event contents with the decoded text form.
// Only an object of string arrays is accepted; nothing is ever evaluated.
func (e *Event) UnmarshalText(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var m map[string][]string
	if err := dec.Decode(&m); err != nil {
		return errors.Wrap(errors.ErrInvalidFormat, err.Error())
	}
	if m == nil {
		return errors.Wrap(errors.ErrInvalidFormat, "not an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.Wrap(errors.ErrInvalidFormat, "trailing data")
	}
	e.attrs = make(map[string]map[string]struct{}, len(m))
	e.invalidate()
	for key, values := range m {
		e.Update(key, values)
	}
	return nil
}

// ParseText decodes the text form into a new event.
func ParseText(data []byte) (*Event, error) {
	e := New()
	if err := e.UnmarshalText(data); err != nil {
		return nil, err
	}
	return e, nil
}

// String returns the text form.
func (e *Event) String() string {
	data, err := e.MarshalText()
	if err != nil {
		return "{}"
	}
	return string(data)
}
