package events

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xtxerr/archivist/internal/errors"
)

// Namespace is the XML namespace of event elements on the bus.
const Namespace = "abusehelper#event"

type wireEvent struct {
	XMLName xml.Name   `xml:"abusehelper#event event"`
	Attrs   []wireAttr `xml:"attr"`
}

type wireAttr struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type wireMessage struct {
	XMLName xml.Name `xml:"message"`
	Body    *string  `xml:"body,omitempty"`
	Event   []byte   `xml:",innerxml"`
}

// node is a generic element used for strict decoding.
type node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []node     `xml:",any"`
	Text    string     `xml:",chardata"`
}

// MarshalWire encodes the event as an event element. The result is cached
// until the event is modified; callers must not modify the returned slice.
// Keys and values that XML cannot carry unchanged, such as invalid UTF-8 or
// control characters other than tab, newline and carriage return, fail with
// ErrInvalidFormat.
func (e *Event) MarshalWire() ([]byte, error) {
	if e != nil && e.wire != nil {
		return e.wire, nil
	}
	w := wireEvent{}
	var bad error
	e.pairs(func(key, value string) {
		if bad != nil {
			return
		}
		if !isXMLText(key) {
			bad = errors.Wrapf(errors.ErrInvalidFormat, "key %q is not representable in XML", key)
			return
		}
		if !isXMLText(value) {
			bad = errors.Wrapf(errors.ErrInvalidFormat, "value %q of key %q is not representable in XML", value, key)
			return
		}
		w.Attrs = append(w.Attrs, wireAttr{Key: key, Value: value})
	})
	if bad != nil {
		return nil, bad
	}
	data, err := xml.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	if e != nil {
		e.wire = data
	}
	return data, nil
}

// isXMLText reports whether s is valid UTF-8 made of XML 1.0 characters only.
func isXMLText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}

// UnmarshalWire decodes a single event element. Anything other than exactly
// one event element in the event namespace, holding only empty attr children
// that each carry key and value attributes, fails with ErrNotEvent.
func UnmarshalWire(data []byte) (*Event, error) {
	root, err := decodeRoot(data)
	if err != nil {
		return nil, err
	}
	e, err := fromNode(root)
	if err != nil {
		return nil, err
	}
	e.wire = bytes.Clone(bytes.TrimSpace(data))
	return e, nil
}

// DecodeStanza returns every valid event carried by a stanza. A stanza that
// is itself an event element yields that event. Children that are not valid
// events are skipped.
func DecodeStanza(data []byte) ([]*Event, error) {
	root, err := decodeRoot(data)
	if err != nil {
		return nil, err
	}
	if isEventName(root.XMLName) {
		e, err := fromNode(root)
		if err != nil {
			return nil, err
		}
		return []*Event{e}, nil
	}
	var out []*Event
	for _, child := range root.Nodes {
		if e, err := fromNode(child); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// EncodeMessage wraps the event element in a message stanza. With
// includeBody the stanza also carries a human-readable body listing the
// key=value pairs.
func EncodeMessage(e *Event, includeBody bool) ([]byte, error) {
	inner, err := e.MarshalWire()
	if err != nil {
		return nil, err
	}
	msg := wireMessage{Event: inner}
	if includeBody {
		body := Body(e)
		msg.Body = &body
	}
	data, err := xml.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message")
	}
	return data, nil
}

// Body renders the event as "k1=v1, k2=v2" in sorted order.
func Body(e *Event) string {
	var fields []string
	e.pairs(func(key, value string) {
		fields = append(fields, key+"="+value)
	})
	return strings.Join(fields, ", ")
}

func isEventName(n xml.Name) bool {
	return n.Local == "event" && n.Space == Namespace
}

func decodeRoot(data []byte) (node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var root node
	if err := dec.Decode(&root); err != nil {
		return node{}, errors.Wrap(errors.ErrNotEvent, err.Error())
	}
	// Only whitespace, comments or processing instructions may follow.
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return node{}, errors.Wrap(errors.ErrNotEvent, err.Error())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return node{}, errors.Wrap(errors.ErrNotEvent, "trailing element "+t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return node{}, errors.Wrap(errors.ErrNotEvent, "trailing text")
			}
		}
	}
	return root, nil
}

func fromNode(n node) (*Event, error) {
	if !isEventName(n.XMLName) {
		return nil, errors.Wrapf(errors.ErrNotEvent, "unexpected element %s", n.XMLName.Local)
	}
	if strings.TrimSpace(n.Text) != "" {
		return nil, errors.Wrap(errors.ErrNotEvent, "text inside event")
	}
	e := New()
	for _, child := range n.Nodes {
		if child.XMLName.Local != "attr" || child.XMLName.Space != Namespace {
			return nil, errors.Wrapf(errors.ErrNotEvent, "unexpected child %s", child.XMLName.Local)
		}
		if len(child.Nodes) > 0 || strings.TrimSpace(child.Text) != "" {
			return nil, errors.Wrap(errors.ErrNotEvent, "attr with content")
		}
		key, hasKey := attrValue(child.Attrs, "key")
		value, hasValue := attrValue(child.Attrs, "value")
		if !hasKey || !hasValue {
			return nil, errors.Wrap(errors.ErrNotEvent, "attr without key and value")
		}
		e.Add(key, value)
	}
	return e, nil
}

func attrValue(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
