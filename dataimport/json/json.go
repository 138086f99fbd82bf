// Package json reads an array of JSON objects, either the document itself
// or an array held by a key of the root object. Elements are decoded one at
// a time.
//
// Fields come from the keys of the first element in document order. A
// number in the first element makes its field numeric: integers are "N",
// other numbers "F". Everything else is text; nested objects and arrays are
// stored as compact JSON.
package json

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/darianmavgo/mince/dataimport"
)

func init() {
	dataimport.Register(".json", Open)
}

// ValueColumn names the single field of arrays whose elements are not
// objects.
const ValueColumn = "value"

// Reader streams the elements of one array.
type Reader struct {
	dec    *json.Decoder
	closer io.Closer
	fields []dataimport.Field
	first  map[string]json.RawMessage
	done   bool
}

var _ dataimport.FileReader = (*Reader)(nil)

// Open reads the root array of path, or the array under the root key
// cfg.Sheet. Without cfg.Sheet the first array-valued key is read.
func Open(path string, cfg *dataimport.ReaderConfig) (dataimport.FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	key := ""
	if cfg != nil {
		key = cfg.Sheet
	}
	r, err := NewReader(f, key)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader positions a reader on the array of src.
func NewReader(src io.Reader, key string) (*Reader, error) {
	dec := json.NewDecoder(bufio.NewReaderSize(src, 65536))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON start: %w", err)
	}
	switch tok {
	case json.Delim('['):
		if key != "" {
			return nil, fmt.Errorf("root is an array, key %q does not apply", key)
		}
	case json.Delim('{'):
		if err := seekArray(dec, key); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("expected JSON object or array at root")
	}

	r := &Reader{dec: dec}
	if !dec.More() {
		r.done = true
		return r, nil
	}
	keys, values, err := r.element()
	if err != nil {
		return nil, fmt.Errorf("failed to decode first element: %w", err)
	}
	r.first = values
	r.fields = make([]dataimport.Field, len(keys))
	for i, k := range keys {
		r.fields[i] = dataimport.Field{Name: k, Type: typeCode(values[k])}
	}
	return r, nil
}

// seekArray advances dec past the '[' of the array under key, or under the
// first key holding an array when key is empty.
func seekArray(dec *json.Decoder, key string) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return errors.New("expected string key")
		}
		if key == "" || name == key {
			tok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("failed to read value of %s: %w", name, err)
			}
			if tok == json.Delim('[') {
				return nil
			}
			if key != "" {
				return fmt.Errorf("key %q does not hold an array", key)
			}
			if err := skip(dec, tok); err != nil {
				return err
			}
			continue
		}
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return fmt.Errorf("failed to skip value of %s: %w", name, err)
		}
	}
	if key != "" {
		return fmt.Errorf("key %q not found", key)
	}
	return errors.New("no array found in JSON object")
}

// skip consumes the rest of a value whose first token was tok.
func skip(dec *json.Decoder, tok json.Token) error {
	if _, ok := tok.(json.Delim); !ok {
		return nil
	}
	for depth := 1; depth > 0; {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		switch t {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
	return nil
}

// element decodes the next array element into its keys, in document order,
// and raw values.
func (r *Reader) element() ([]string, map[string]json.RawMessage, error) {
	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return nil, nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return []string{ValueColumn}, map[string]json.RawMessage{ValueColumn: raw}, nil
	}

	obj := json.NewDecoder(bytes.NewReader(raw))
	obj.UseNumber()
	if _, err := obj.Token(); err != nil {
		return nil, nil, err
	}
	var keys []string
	values := make(map[string]json.RawMessage)
	for obj.More() {
		tok, err := obj.Token()
		if err != nil {
			return nil, nil, err
		}
		k := tok.(string)
		var v json.RawMessage
		if err := obj.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("failed to decode value for key %s: %w", k, err)
		}
		if _, dup := values[k]; !dup {
			keys = append(keys, k)
		}
		values[k] = v
	}
	return keys, values, nil
}

func typeCode(raw json.RawMessage) string {
	var v any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return "C"
	}
	n, ok := v.(json.Number)
	if !ok {
		return "C"
	}
	if _, err := n.Int64(); err == nil {
		return "N"
	}
	return "F"
}

func (r *Reader) Fields() []dataimport.Field { return r.fields }

func (r *Reader) Next() ([]any, error) {
	values := r.first
	r.first = nil
	if values == nil {
		if r.done || !r.dec.More() {
			r.done = true
			return nil, io.EOF
		}
		var err error
		if _, values, err = r.element(); err != nil {
			return nil, fmt.Errorf("failed to decode element: %w", err)
		}
	}

	row := make([]any, len(r.fields))
	for i, f := range r.fields {
		raw, ok := values[f.Name]
		if !ok {
			continue
		}
		v, err := convert(raw, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

func convert(raw json.RawMessage, code string) (any, error) {
	var v any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		switch code {
		case "N":
			if i, err := t.Int64(); err == nil {
				return i, nil
			}
			return t.Float64()
		case "F":
			return t.Float64()
		}
		return t.String(), nil
	case string:
		return t, nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.String(), nil
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
