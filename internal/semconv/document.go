package semconv

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Document is the reconstructed, convention-independent output of one
// extraction. Fields keep the declaration order of the pattern that
// produced them, so serialized output is stable across runs.
type Document struct {
	keys   []string
	values map[string]any
}

func NewDocument() *Document {
	return &Document{values: make(map[string]any)}
}

// Set writes a value at a dotted logical path, creating intermediate
// documents as needed. Each plan step writes at most one path, so Set
// never overwrites a previously written leaf in normal operation.
func (d *Document) Set(path []string, v any) {
	cur := d
	for i, seg := range path {
		if i == len(path)-1 {
			cur.put(seg, v)
			return
		}
		next, ok := cur.values[seg].(*Document)
		if !ok {
			next = NewDocument()
			cur.put(seg, next)
		}
		cur = next
	}
}

func (d *Document) put(key string, v any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Get resolves a dotted logical path. The second return is false when any
// segment is absent.
func (d *Document) Get(path ...string) (any, bool) {
	var cur any = d
	for _, seg := range path {
		doc, ok := cur.(*Document)
		if !ok {
			return nil, false
		}
		cur, ok = doc.values[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Len reports the number of top-level fields.
func (d *Document) Len() int { return len(d.keys) }

// Keys returns the top-level field names in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// MarshalJSON emits fields in insertion order rather than Go's map order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func splitPath(target string) []string {
	return strings.Split(target, ".")
}
