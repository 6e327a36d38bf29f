package events

import (
	"slices"
	"testing"

	"github.com/xtxerr/archivist/internal/errors"
)

func TestAddAndValues(t *testing.T) {
	e := New()
	e.Add("ip", "10.0.0.2")
	e.Add("ip", "10.0.0.1", "10.0.0.2")
	e.Add("type", "scan")

	got := e.Values("ip")
	want := []string{"10.0.0.1", "10.0.0.2"}
	if !slices.Equal(got, want) {
		t.Fatalf("values: got %v, want %v", got, want)
	}
	if e.Len() != 2 {
		t.Errorf("expected 2 keys, got %d", e.Len())
	}
	if !slices.Equal(e.Keys(), []string{"ip", "type"}) {
		t.Errorf("keys: got %v", e.Keys())
	}
	if got := e.Values("missing"); len(got) != 0 {
		t.Errorf("missing key should have no values, got %v", got)
	}
}

func TestDiscardRemovesEmptyKey(t *testing.T) {
	e := New()
	e.Add("a", "1", "2")

	e.Discard("a", "1")
	if !e.Contains("a") {
		t.Fatal("key removed too early")
	}
	e.Discard("a", "2")
	if e.Contains("a") {
		t.Fatal("key with no values should be removed")
	}
	if !e.Empty() {
		t.Error("event should be empty")
	}

	// Discarding from an absent key is harmless.
	e.Discard("nope", "x")
}

func TestClear(t *testing.T) {
	e := New()
	e.Add("a", "1")
	e.Add("b", "2")
	e.Clear("a")

	if e.Contains("a") || !e.Contains("b") {
		t.Fatalf("unexpected keys after clear: %v", e.Keys())
	}
}

func TestValue(t *testing.T) {
	e := New()
	e.Add("a", "x", "y")

	v, err := e.Value("a")
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if v != "x" && v != "y" {
		t.Errorf("unexpected value %q", v)
	}

	if _, err := e.Value("b"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if got := e.ValueOr("b", "def"); got != "def" {
		t.Errorf("ValueOr: got %q", got)
	}
	if _, err := New().AnyValue(); !errors.IsNotFound(err) {
		t.Errorf("AnyValue on empty event: got %v", err)
	}
}

func TestContainsAndHasValue(t *testing.T) {
	e := New()
	e.Add("a", "1")

	if !e.ContainsValue("a", "1") || e.ContainsValue("a", "2") {
		t.Error("ContainsValue mismatch")
	}
	if !e.HasValue("1") || e.HasValue("2") {
		t.Error("HasValue mismatch")
	}
}

func TestNewUnion(t *testing.T) {
	a := New()
	a.Add("k", "1")
	b := New()
	b.Add("k", "2")
	b.Add("j", "3")

	u := New(a, nil, b)
	if !slices.Equal(u.Values("k"), []string{"1", "2"}) {
		t.Errorf("union k: %v", u.Values("k"))
	}
	if !slices.Equal(u.AllValues(), []string{"1", "2", "3"}) {
		t.Errorf("all values: %v", u.AllValues())
	}

	// The sources are not shared with the union.
	u.Add("k", "9")
	if a.ContainsValue("k", "9") {
		t.Error("union shares state with its source")
	}
}

func TestEqualIgnoresOrder(t *testing.T) {
	a := New()
	a.Add("x", "1")
	a.Add("y", "2", "3")

	b := FromMap(map[string][]string{"y": {"3", "2"}, "x": {"1"}, "z": nil})
	if !a.Equal(b) {
		t.Fatalf("expected equal: %v vs %v", a, b)
	}

	b.Add("z", "4")
	if a.Equal(b) {
		t.Error("expected not equal after add")
	}

	var nilEvent *Event
	if !nilEvent.Equal(New()) {
		t.Error("nil event should equal empty event")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := New()
	a.Add("k", "v")
	c := a.Clone()
	c.Add("k", "w")

	if a.ContainsValue("k", "w") {
		t.Error("clone shares state")
	}
}

func TestCacheInvalidation(t *testing.T) {
	e := New()
	e.Add("k", "v")

	if _, err := e.MarshalWire(); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !e.Cached() {
		t.Fatal("expected cached encoding")
	}

	e.Update("k", nil)
	if !e.Cached() {
		t.Error("empty update must not invalidate the cache")
	}

	e.Update("k", []string{"w"})
	if e.Cached() {
		t.Error("update must invalidate the cache")
	}

	mutations := []func(*Event){
		func(e *Event) { e.Add("k", "x") },
		func(e *Event) { e.Discard("k", "x") },
		func(e *Event) { e.Clear("k") },
	}
	for i, mutate := range mutations {
		if _, err := e.MarshalWire(); err != nil {
			t.Fatalf("marshal: %v", err)
		}
		mutate(e)
		if e.Cached() {
			t.Errorf("mutation %d did not invalidate the cache", i)
		}
	}
}

func TestNilEventReadsEmpty(t *testing.T) {
	var e *Event

	if !e.Empty() || e.Len() != 0 || e.Cached() {
		t.Fatal("nil event should be empty")
	}
	if len(e.Values("a")) != 0 || len(e.AllValues()) != 0 || len(e.Keys()) != 0 || len(e.Map()) != 0 {
		t.Error("nil event should have no keys or values")
	}
	if e.Contains("a") || e.ContainsValue("a", "1") || e.HasValue("1") {
		t.Error("nil event should contain nothing")
	}
	if _, err := e.Value("a"); !errors.IsNotFound(err) {
		t.Errorf("value: expected not found, got %v", err)
	}
	if e.ValueOr("a", "def") != "def" {
		t.Error("value or: default not returned")
	}
	if !e.Equal(New()) || e.Equal(FromMap(map[string][]string{"a": {"1"}})) {
		t.Error("nil event should equal only empty events")
	}
	if !New(e).Empty() {
		t.Error("union with nil should be empty")
	}
	if data, err := e.MarshalText(); err != nil || string(data) != "{}" {
		t.Errorf("text: %s %v", data, err)
	}
}
