package printkit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCheck(t *testing.T) {
	s := cardSchema()

	assert.NoError(t, s.Check("name", "Jane"))
	assert.NoError(t, s.Check("rows", []Record{}))
	assert.ErrorIs(t, s.Check("nope", "x"), ErrUnknownField)
	assert.ErrorIs(t, s.Check("rows", "x"), ErrFieldType)
	assert.ErrorIs(t, s.Check("name", []Record{}), ErrFieldType)
	assert.ErrorIs(t, s.Check("name", 42), ErrFieldType)
	assert.NoError(t, s.Check("rows", []Record{{"time": "09:00", "activity": "Math"}}))
	assert.ErrorIs(t, s.Check("rows", []Record{{"time": "09:00", "extra": "x"}}), ErrFieldType)
}

func TestNewSchemaPanicsOnDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		NewSchema("dup", FieldSpec{Name: "a"}, FieldSpec{Name: "a"})
	})
	assert.Panics(t, func() {
		NewSchema("empty", FieldSpec{})
	})
}

func TestSchemaNormalize(t *testing.T) {
	s := cardSchema()

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Jane",
		"idNumber": 42,
		"unknown": "dropped",
		"rows": [{"time": "09:00", "activity": "Math", "extra": "x"}, {"time": null, "activity": true}]
	}`), &raw))

	got := s.Normalize(raw)
	assert.Equal(t, "Jane", got["name"])
	assert.Equal(t, "42", got["idNumber"])
	assert.Equal(t, "#1d4ed8", got["accent"], "absent fields take defaults")
	assert.NotContains(t, got, "unknown")
	assert.Equal(t, []Record{
		{"time": "09:00", "activity": "Math"},
		{"time": "", "activity": "true"},
	}, got["rows"])
}

func TestSchemaMissing(t *testing.T) {
	s := NewSchema("roster",
		FieldSpec{Name: "date", Required: true},
		FieldSpec{Name: "rows", Kind: KindList, Required: true},
		FieldSpec{Name: "notes"},
	)
	assert.Equal(t, []string{"date", "rows"}, s.Missing(NewSnapshot(s, nil)))
	assert.Equal(t, []string{"date", "rows"}, s.Missing(NewSnapshot(s, map[string]any{"date": "   "})))

	full := NewSnapshot(s, map[string]any{"date": "Mon", "rows": []Record{{"a": "b"}}})
	assert.Empty(t, s.Missing(full))
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := cardSchema()
	snap := NewSnapshot(s, nil)

	rows := snap.List("rows")
	rows[0]["activity"] = "changed"
	fields := snap.Fields()
	fields["name"] = "changed"

	assert.Equal(t, "Assembly", snap.List("rows")[0]["activity"])
	assert.Equal(t, "", snap.String("name"))

	next := snap.with("name", "Jane", 1)
	assert.Equal(t, "", snap.String("name"))
	assert.Equal(t, "Jane", next.String("name"))
	assert.Equal(t, uint64(1), next.Revision())
	assert.False(t, snap.Equal(next))
	assert.True(t, next.Equal(next.with("name", "Jane", 2)), "revision is not compared")
}

func TestDefaultsAreCopied(t *testing.T) {
	s := cardSchema()
	d := s.Defaults()
	d["rows"].([]Record)[0]["time"] = "changed"
	assert.Equal(t, "08:00", s.Defaults()["rows"].([]Record)[0]["time"])
}

func TestKindMarshalText(t *testing.T) {
	data, err := json.Marshal(FieldSpec{Name: "photo", Kind: KindImage})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"photo","label":"","kind":"image"}`, string(data))
}
