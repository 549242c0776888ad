package printkit

import (
	"fmt"
	"sort"
)

// Kind identifies how a field is edited and rendered.
type Kind int

const (
	// KindText is a single line of plain text.
	KindText Kind = iota
	// KindMultiline is plain text that keeps its line breaks.
	KindMultiline
	// KindMarkdown is rendered to HTML with goldmark.
	KindMarkdown
	// KindRichText is user supplied HTML, sanitized before rendering.
	KindRichText
	// KindImage holds a data URI produced by [DecodeImage].
	KindImage
	// KindColor is a CSS color value.
	KindColor
	// KindChoice is one of FieldSpec.Choices.
	KindChoice
	// KindList is a slice of [Record] rows.
	KindList
)

var kindNames = map[Kind]string{
	KindText:      "text",
	KindMultiline: "multiline",
	KindMarkdown:  "markdown",
	KindRichText:  "richtext",
	KindImage:     "image",
	KindColor:     "color",
	KindChoice:    "choice",
	KindList:      "list",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements [encoding.TextMarshaler].
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Record is one row of a list field, keyed by column name.
type Record map[string]string

func (r Record) clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// FieldSpec declares one field of a document.
type FieldSpec struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`

	// Default is the value a new document starts with. It must be a string,
	// or a []Record for KindList. Nil means the zero value of the kind.
	Default any `json:"default,omitempty"`

	// Placeholder is rendered in place of an empty value.
	Placeholder string `json:"placeholder,omitempty"`

	// Required fields must be non-empty before export.
	Required bool `json:"required,omitempty"`

	// Columns names the record keys of a KindList field.
	Columns []string `json:"columns,omitempty"`

	// Choices enumerates the values of a KindChoice field.
	Choices []string `json:"choices,omitempty"`

	// MaxBytes overrides the session's upload limit for a KindImage field.
	MaxBytes int64 `json:"max_bytes,omitempty"`
}

func (f FieldSpec) defaultValue() any {
	if f.Kind == KindList {
		rows, _ := f.Default.([]Record)
		return cloneRecords(rows)
	}
	s, _ := f.Default.(string)
	return s
}

// Schema is the ordered set of fields of one tool's document.
type Schema struct {
	Name   string
	Fields []FieldSpec

	index map[string]int
}

// NewSchema builds a schema and indexes its fields. It panics on duplicate
// or empty field names, which are programming errors in a tool definition.
func NewSchema(name string, fields ...FieldSpec) *Schema {
	s := &Schema{Name: name, Fields: fields, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		if f.Name == "" {
			panic("printkit: schema " + name + ": empty field name")
		}
		if _, dup := s.index[f.Name]; dup {
			panic("printkit: schema " + name + ": duplicate field " + f.Name)
		}
		s.index[f.Name] = i
	}
	return s
}

// Field returns the definition of the named field.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.Fields[i], true
}

// Defaults returns a fresh map holding every field's default value.
func (s *Schema) Defaults() map[string]any {
	m := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		m[f.Name] = f.defaultValue()
	}
	return m
}

// Check reports whether value has the right Go type for the named field.
func (s *Schema) Check(name string, value any) error {
	f, ok := s.Field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	switch tv := value.(type) {
	case string:
		if f.Kind == KindList {
			return fmt.Errorf("%w: %q expects a list", ErrFieldType, name)
		}
	case []Record:
		if f.Kind != KindList {
			return fmt.Errorf("%w: %q expects a string", ErrFieldType, name)
		}
		if len(f.Columns) == 0 {
			break
		}
		for i, row := range tv {
			for col := range row {
				if !contains(f.Columns, col) {
					return fmt.Errorf("%w: %q row %d has unknown column %q", ErrFieldType, name, i, col)
				}
			}
		}
	default:
		return fmt.Errorf("%w: %q got %T", ErrFieldType, name, value)
	}
	return nil
}

// Missing returns the required fields that are empty in snap, in schema order.
func (s *Schema) Missing(snap Snapshot) []string {
	var missing []string
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if f.Kind == KindList {
			if len(snap.List(f.Name)) == 0 {
				missing = append(missing, f.Name)
			}
			continue
		}
		if isBlank(snap.String(f.Name)) {
			missing = append(missing, f.Name)
		}
	}
	return missing
}

// Normalize coerces loosely typed values, such as the output of
// encoding/json, into the canonical types of the schema. Unknown keys are
// dropped and absent fields take their defaults.
func (s *Schema) Normalize(raw map[string]any) map[string]any {
	out := s.Defaults()
	for _, f := range s.Fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			continue
		}
		if f.Kind == KindList {
			if rows, ok := coerceRecords(v, f.Columns); ok {
				out[f.Name] = rows
			}
			continue
		}
		switch tv := v.(type) {
		case string:
			out[f.Name] = tv
		case fmt.Stringer:
			out[f.Name] = tv.String()
		case float64, bool, int, int64:
			out[f.Name] = fmt.Sprint(tv)
		}
	}
	return out
}

// Names returns the field names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

func coerceRecords(v any, columns []string) ([]Record, bool) {
	switch tv := v.(type) {
	case []Record:
		rows := make([]Record, len(tv))
		for i, r := range tv {
			rows[i] = keepColumns(r, columns)
		}
		return rows, true
	case []map[string]string:
		rows := make([]Record, len(tv))
		for i, m := range tv {
			rows[i] = keepColumns(Record(m), columns)
		}
		return rows, true
	case []any:
		rows := make([]Record, 0, len(tv))
		for _, item := range tv {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			r := make(Record, len(m))
			for k, cell := range m {
				if len(columns) > 0 && !contains(columns, k) {
					continue
				}
				if cell == nil {
					r[k] = ""
					continue
				}
				r[k] = fmt.Sprint(cell)
			}
			rows = append(rows, r)
		}
		return rows, true
	}
	return nil, false
}

// keepColumns copies r without the keys outside columns. No columns
// keeps every key.
func keepColumns(r Record, columns []string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		if len(columns) == 0 || contains(columns, k) {
			out[k] = v
		}
	}
	return out
}

func cloneRecords(rows []Record) []Record {
	if rows == nil {
		return []Record{}
	}
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r.clone()
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
