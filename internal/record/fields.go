package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	gojson "github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"
)

// Fields is an ordered map of field name to scalar value.
//
// Insertion order is preserved: Set on an existing name replaces the value in
// place, Set on a new name appends it. Names are NFC normalized so that the
// same field typed on two platforms addresses the same key.
//
// The zero value is not usable; construct with NewFields.
type Fields struct {
	keys   []string
	values map[string]string
}

// NewFields creates an empty Fields map.
func NewFields() *Fields {
	return &Fields{values: make(map[string]string)}
}

// FieldsOf builds Fields from alternating name, value arguments.
// An odd trailing name is stored with an empty value.
func FieldsOf(kv ...string) *Fields {
	f := NewFields()
	for i := 0; i < len(kv); i += 2 {
		v := ""
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		f.Set(kv[i], v)
	}
	return f
}

// FieldsFromMap builds Fields from a plain map using the given key order.
// Keys missing from order are dropped.
func FieldsFromMap(m map[string]string, order []string) *Fields {
	f := NewFields()
	for _, k := range order {
		if v, ok := m[k]; ok {
			f.Set(k, v)
		}
	}
	return f
}

// Set stores value under name.
func (f *Fields) Set(name, value string) {
	name = norm.NFC.String(name)
	if _, ok := f.values[name]; !ok {
		f.keys = append(f.keys, name)
	}
	f.values[name] = value
}

// Get returns the value stored under name.
func (f *Fields) Get(name string) (string, bool) {
	if f == nil {
		return "", false
	}
	v, ok := f.values[norm.NFC.String(name)]
	return v, ok
}

// Has reports whether name is present.
func (f *Fields) Has(name string) bool {
	_, ok := f.Get(name)
	return ok
}

// Delete removes name, keeping the order of the remaining keys.
func (f *Fields) Delete(name string) {
	name = norm.NFC.String(name)
	if _, ok := f.values[name]; !ok {
		return
	}
	delete(f.values, name)
	for i, k := range f.keys {
		if k == name {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Keys returns the field names in order. The slice is a copy.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// All iterates name, value pairs in order.
func (f *Fields) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if f == nil {
			return
		}
		for _, k := range f.keys {
			if !yield(k, f.values[k]) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (f *Fields) Clone() *Fields {
	out := NewFields()
	for k, v := range f.All() {
		out.Set(k, v)
	}
	return out
}

// Map returns an unordered copy, mostly useful for comparisons in tests.
func (f *Fields) Map() map[string]string {
	out := make(map[string]string, f.Len())
	for k, v := range f.All() {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the fields as a JSON object in insertion order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for k, v := range f.All() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := gojson.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := gojson.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		i++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object, keeping key order.
// Numbers and booleans are stored in their literal text form; null becomes
// the empty string. Nested objects and arrays are rejected.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode fields: expected object, got %v", tok)
	}

	if f.values == nil {
		f.values = make(map[string]string)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode fields: expected key, got %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode fields: %q: %w", key, err)
		}
		switch v := valTok.(type) {
		case string:
			f.Set(key, v)
		case json.Number:
			f.Set(key, v.String())
		case bool:
			f.Set(key, fmt.Sprintf("%t", v))
		case nil:
			f.Set(key, "")
		default:
			return fmt.Errorf("decode fields: %q: nested values are not scalars", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	return nil
}
