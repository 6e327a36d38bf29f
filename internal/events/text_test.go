package events

import (
	"testing"

	"github.com/xtxerr/archivist/internal/errors"
)

func TestTextRoundTrip(t *testing.T) {
	e := New()
	e.Add("z", "2", "1")
	e.Add("a", "ü\n\"x\"")

	data, err := e.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a":["ü\n\"x\""],"z":["1","2"]}`
	if string(data) != want {
		t.Errorf("text: got %s, want %s", data, want)
	}

	back, err := ParseText(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(e) {
		t.Errorf("round trip mismatch: %v", back)
	}
}

func TestTextRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		``,
		`null`,
		`[]`,
		`{"a": "x"}`,
		`{"a": [1]}`,
		`{"a": ["x"]} {}`,
		`{"a": ["x"]`,
	} {
		if _, err := ParseText([]byte(input)); !errors.Is(err, errors.ErrInvalidFormat) {
			t.Errorf("%q: expected ErrInvalidFormat, got %v", input, err)
		}
	}
}

func TestTextEmptyValues(t *testing.T) {
	e, err := ParseText([]byte(`{"a": [], "b": ["1"]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if e.Contains("a") || !e.Contains("b") {
		t.Errorf("unexpected keys %v", e.Keys())
	}
}

func TestTextRejectsInvalidUTF8(t *testing.T) {
	e := New()
	e.Add("k", "\xff\xfe")
	if _, err := e.MarshalText(); !errors.Is(err, errors.ErrInvalidFormat) {
		t.Errorf("value: expected ErrInvalidFormat, got %v", err)
	}

	k := New()
	k.Add("\xff", "v")
	if _, err := k.MarshalText(); !errors.Is(err, errors.ErrInvalidFormat) {
		t.Errorf("key: expected ErrInvalidFormat, got %v", err)
	}

	// Control characters are valid UTF-8 and survive the text form.
	c := New()
	c.Add("k", "a\x01b")
	data, err := c.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParseText(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(c) {
		t.Errorf("round trip mismatch: %v", back)
	}
}
