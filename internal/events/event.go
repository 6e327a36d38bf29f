package events

import (
	"maps"
	"slices"

	"github.com/xtxerr/archivist/internal/errors"
)

// Event is a mapping from attribute key to a set of attribute values.
//
// A key present in the map always has at least one value. Removing the last
// value of a key removes the key. Two events are equal when they hold the
// same key/value pairs, regardless of insertion order.
//
// A nil *Event reads as an empty event. Mutating a nil *Event panics.
type Event struct {
	attrs map[string]map[string]struct{}

	// wire caches the wire encoding; nil after every mutation.
	wire []byte
}

// New creates an event holding the union of all key/value pairs of the
// given events. With no arguments the event is empty.
func New(events ...*Event) *Event {
	e := &Event{attrs: make(map[string]map[string]struct{})}
	for _, other := range events {
		if other == nil {
			continue
		}
		for key, values := range other.attrs {
			set := e.set(key)
			for v := range values {
				set[v] = struct{}{}
			}
		}
	}
	return e
}

// FromMap creates an event from a key to values mapping. Keys with no values
// are skipped.
func FromMap(m map[string][]string) *Event {
	e := New()
	for key, values := range m {
		e.Update(key, values)
	}
	return e
}

func (e *Event) set(key string) map[string]struct{} {
	if e.attrs == nil {
		e.attrs = make(map[string]map[string]struct{})
	}
	set, ok := e.attrs[key]
	if !ok {
		set = make(map[string]struct{})
		e.attrs[key] = set
	}
	return set
}

// view returns the attribute map for reading; nil for a nil event.
func (e *Event) view() map[string]map[string]struct{} {
	if e == nil {
		return nil
	}
	return e.attrs
}

func (e *Event) invalidate() {
	e.wire = nil
}

// Add adds one or more values for a key. Values already present are ignored.
func (e *Event) Add(key, value string, values ...string) {
	e.invalidate()
	set := e.set(key)
	set[value] = struct{}{}
	for _, v := range values {
		set[v] = struct{}{}
	}
}

// Update adds all values for a key. An empty values slice leaves the event
// untouched, including its cached wire encoding.
func (e *Event) Update(key string, values []string) {
	if len(values) == 0 {
		return
	}
	e.invalidate()
	set := e.set(key)
	for _, v := range values {
		set[v] = struct{}{}
	}
}

// Discard removes the given values of a key. The key is removed once it has
// no values left.
func (e *Event) Discard(key, value string, values ...string) {
	e.invalidate()
	set, ok := e.attrs[key]
	if !ok {
		return
	}
	delete(set, value)
	for _, v := range values {
		delete(set, v)
	}
	if len(set) == 0 {
		delete(e.attrs, key)
	}
}

// Clear removes a key and all of its values.
func (e *Event) Clear(key string) {
	e.invalidate()
	delete(e.attrs, key)
}

// Values returns the sorted values of a key, or an empty slice.
func (e *Event) Values(key string) []string {
	set := e.view()[key]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// AllValues returns the sorted union of the values of every key.
func (e *Event) AllValues() []string {
	seen := make(map[string]struct{})
	for _, set := range e.view() {
		for v := range set {
			seen[v] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Value returns one value of a key. Which value is returned when the key has
// several is unspecified; callers must not depend on it.
func (e *Event) Value(key string) (string, error) {
	for v := range e.view()[key] {
		return v, nil
	}
	return "", errors.NewNotFound("key", key)
}

// ValueOr is Value with a default for absent keys.
func (e *Event) ValueOr(key, def string) string {
	if v, err := e.Value(key); err == nil {
		return v
	}
	return def
}

// AnyValue returns a value of any key.
func (e *Event) AnyValue() (string, error) {
	for _, set := range e.view() {
		for v := range set {
			return v, nil
		}
	}
	return "", errors.Wrap(errors.ErrNotFound, "no value available")
}

// Contains reports whether the key is present.
func (e *Event) Contains(key string) bool {
	_, ok := e.view()[key]
	return ok
}

// ContainsValue reports whether value is present under key.
func (e *Event) ContainsValue(key, value string) bool {
	_, ok := e.view()[key][value]
	return ok
}

// HasValue reports whether value is present under any key.
func (e *Event) HasValue(value string) bool {
	for _, set := range e.view() {
		if _, ok := set[value]; ok {
			return true
		}
	}
	return false
}

// Empty reports whether the event has no keys.
func (e *Event) Empty() bool {
	return len(e.view()) == 0
}

// Len returns the number of keys.
func (e *Event) Len() int {
	return len(e.view())
}

// Keys returns the sorted keys.
func (e *Event) Keys() []string {
	return slices.Sorted(maps.Keys(e.view()))
}

// Map returns a copy of the event as a key to sorted values mapping.
func (e *Event) Map() map[string][]string {
	attrs := e.view()
	out := make(map[string][]string, len(attrs))
	for key := range attrs {
		out[key] = e.Values(key)
	}
	return out
}

// Equal reports whether both events hold the same key/value pairs.
func (e *Event) Equal(other *Event) bool {
	if e.Empty() || other.Empty() {
		return e.Empty() && other.Empty()
	}
	return maps.EqualFunc(e.attrs, other.attrs, func(a, b map[string]struct{}) bool {
		return maps.Equal(a, b)
	})
}

// Clone returns a deep copy without the cached wire encoding.
func (e *Event) Clone() *Event {
	return New(e)
}

// Cached reports whether a wire encoding is cached, i.e. the event has not
// been modified since it was last encoded or decoded.
func (e *Event) Cached() bool {
	return e != nil && e.wire != nil
}

// pairs calls fn for every key/value pair in sorted order.
func (e *Event) pairs(fn func(key, value string)) {
	for _, key := range e.Keys() {
		for _, v := range e.Values(key) {
			fn(key, v)
		}
	}
}
