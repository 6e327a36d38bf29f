package events

import (
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/archivist/internal/errors"
)

// Parser converts a raw attribute value. Returning false means the value has
// no typed representation; such values are always skipped by a ParsedView.
type Parser[T comparable] func(string) (T, bool)

// ParsedView is a read-only projection of an event that applies a parser to
// every value and drops values that fail to parse or that parse to one of
// the ignored values. It reads the event directly and never modifies it.
type ParsedView[T comparable] struct {
	event   *Event
	parser  Parser[T]
	ignored map[T]struct{}
}

// Parse returns a parsed view over e.
func Parse[T comparable](e *Event, parser Parser[T], ignored ...T) *ParsedView[T] {
	v := &ParsedView[T]{event: e, parser: parser}
	if len(ignored) > 0 {
		v.ignored = make(map[T]struct{}, len(ignored))
		for _, x := range ignored {
			v.ignored[x] = struct{}{}
		}
	}
	return v
}

func (v *ParsedView[T]) keep(raw string) (T, bool) {
	x, ok := v.parser(raw)
	if !ok {
		return x, false
	}
	if _, skip := v.ignored[x]; skip {
		return x, false
	}
	return x, true
}

// Get returns the surviving parsed values of a key, deduplicated, in the
// order of the sorted raw values.
func (v *ParsedView[T]) Get(key string) []T {
	if v.event == nil {
		return nil
	}
	var out []T
	seen := make(map[T]struct{})
	for _, raw := range v.event.Values(key) {
		x, ok := v.keep(raw)
		if !ok {
			continue
		}
		if _, dup := seen[x]; dup {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}

// Values returns the deduplicated surviving values of every key.
func (v *ParsedView[T]) Values() []T {
	if v.event == nil {
		return nil
	}
	var out []T
	seen := make(map[T]struct{})
	for _, key := range v.event.Keys() {
		for _, x := range v.Get(key) {
			if _, dup := seen[x]; dup {
				continue
			}
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	return out
}

// Value returns one surviving value of a key.
func (v *ParsedView[T]) Value(key string) (T, error) {
	if v.event != nil {
		for raw := range v.event.attrs[key] {
			if x, ok := v.keep(raw); ok {
				return x, nil
			}
		}
	}
	var zero T
	return zero, errors.NewNotFound("key", key)
}

// Keys returns the sorted keys that have at least one surviving value.
func (v *ParsedView[T]) Keys() []string {
	if v.event == nil {
		return nil
	}
	var out []string
	for _, key := range v.event.Keys() {
		if v.Contains(key) {
			out = append(out, key)
		}
	}
	return out
}

// Contains reports whether the key has at least one surviving value.
func (v *ParsedView[T]) Contains(key string) bool {
	if v.event == nil {
		return false
	}
	for raw := range v.event.attrs[key] {
		if _, ok := v.keep(raw); ok {
			return true
		}
	}
	return false
}

// ContainsValue reports whether x is among the surviving values of key.
func (v *ParsedView[T]) ContainsValue(key string, x T) bool {
	if v.event == nil {
		return false
	}
	for raw := range v.event.attrs[key] {
		if y, ok := v.keep(raw); ok && y == x {
			return true
		}
	}
	return false
}

// Empty reports whether no key has a surviving value.
func (v *ParsedView[T]) Empty() bool {
	if v.event == nil {
		return true
	}
	for key := range v.event.attrs {
		if v.Contains(key) {
			return false
		}
	}
	return true
}

// =============================================================================
// Parsers
// =============================================================================

// ParseInt parses base-10 integers, ignoring surrounding whitespace.
func ParseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

// ParseIP parses IPv4 and IPv6 addresses.
func ParseIP(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	return addr, err == nil
}

// ParseLower lowercases and trims a value; blank values have no representation.
func ParseLower(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	return s, s != ""
}

// ParseTime parses RFC 3339 timestamps and the archive timestamp forms.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, TimestampLayout, LegacyTimestampLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Archive timestamp layouts. The legacy form lacks the trailing Z.
const (
	TimestampLayout       = "2006-01-02 15:04:05Z"
	LegacyTimestampLayout = "2006-01-02 15:04:05"
)
