package printkit

import (
	"encoding/json"
	"strings"
)

// Snapshot is an immutable copy of a document at one revision.
//
// The zero Snapshot is valid and reads every field as empty.
type Snapshot struct {
	revision uint64
	fields   map[string]any
}

// NewSnapshot builds a snapshot of schema defaults overlaid with fields.
// Values are normalized through the schema.
func NewSnapshot(schema *Schema, fields map[string]any) Snapshot {
	return Snapshot{fields: schema.Normalize(fields)}
}

// Revision is the number of mutations applied to the document when the
// snapshot was taken.
func (s Snapshot) Revision() uint64 { return s.revision }

// String returns the value of a text-like field, or "" if unset or a list.
func (s Snapshot) String(name string) string {
	v, _ := s.fields[name].(string)
	return v
}

// List returns a copy of the rows of a list field.
func (s Snapshot) List(name string) []Record {
	rows, _ := s.fields[name].([]Record)
	if len(rows) == 0 {
		return nil
	}
	return cloneRecords(rows)
}

// Value returns the raw value of a field.
func (s Snapshot) Value(name string) (any, bool) {
	v, ok := s.fields[name]
	if rows, isList := v.([]Record); isList {
		return cloneRecords(rows), ok
	}
	return v, ok
}

// Fields returns a deep copy of all field values.
func (s Snapshot) Fields() map[string]any {
	return cloneFields(s.fields)
}

// Len returns the number of fields.
func (s Snapshot) Len() int { return len(s.fields) }

// Equal reports whether both snapshots hold the same field set and values.
// Revisions are not compared.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for k, v := range s.fields {
		ov, ok := o.fields[k]
		if !ok || !valueEqual(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the field map.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.fields)
}

// with returns a copy of s with one field replaced and the revision set.
func (s Snapshot) with(name string, value any, rev uint64) Snapshot {
	fields := make(map[string]any, len(s.fields)+1)
	for k, v := range s.fields {
		fields[k] = v
	}
	if rows, ok := value.([]Record); ok {
		value = cloneRecords(rows)
	}
	fields[name] = value
	return Snapshot{revision: rev, fields: fields}
}

func cloneFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if rows, ok := v.([]Record); ok {
			out[k] = cloneRecords(rows)
			continue
		}
		out[k] = v
	}
	return out
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []Record:
		bv, ok := b.([]Record)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if len(av[i]) != len(bv[i]) {
				return false
			}
			for k, cell := range av[i] {
				if other, ok := bv[i][k]; !ok || other != cell {
					return false
				}
			}
		}
		return true
	}
	return a == nil && b == nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
