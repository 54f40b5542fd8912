package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "id", Type: TypeString},
		{Name: "count", Type: TypeInt},
		{Name: "active", Type: TypeBool},
	}}
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, testSchema().Validate())

	err := Schema{}.Validate()
	assert.Error(t, err)

	err = Schema{Fields: []Field{{Name: "a"}, {Name: "a"}}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate field "a"`)
}

func TestSchema_FieldNames(t *testing.T) {
	assert.Equal(t, []string{"id", "count", "active"}, testSchema().FieldNames())
	assert.True(t, testSchema().HasField("count"))
	assert.False(t, testSchema().HasField("missing"))
}

func TestRecord_Get(t *testing.T) {
	rec := New(map[string]any{"id": "42", "nothing": nil})

	v, ok := rec.Get("id")
	require.True(t, ok)
	assert.Equal(t, "42", v)

	v, ok = rec.Get("nothing")
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = rec.Get("missing")
	assert.False(t, ok)
}

func TestRecord_String(t *testing.T) {
	rec := New(map[string]any{
		"s": "hello",
		"f": float64(23.5),
		"i": float64(7),
		"b": true,
		"n": nil,
	})

	s, ok := rec.String("s")
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	s, ok = rec.String("f")
	require.True(t, ok)
	assert.Equal(t, "23.5", s)

	s, ok = rec.String("i")
	require.True(t, ok)
	assert.Equal(t, "7", s)

	s, ok = rec.String("b")
	require.True(t, ok)
	assert.Equal(t, "true", s)

	_, ok = rec.String("n")
	assert.False(t, ok)

	_, ok = rec.String("missing")
	assert.False(t, ok)
}

func TestRecord_MarshalRoundTrip(t *testing.T) {
	rec := New(map[string]any{"id": "42", "count": float64(3)})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	decoded, err := Decode(data, Schema{})
	require.NoError(t, err)

	v, ok := decoded.Get("id")
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestDecode_SchemaEnforcement(t *testing.T) {
	schema := testSchema()

	rec, err := Decode([]byte(`{"id":"7","count":2}`), schema)
	require.NoError(t, err)
	v, _ := rec.Get("id")
	assert.Equal(t, "7", v)

	_, err = Decode([]byte(`{"unknown":"x"}`), schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "unknown" not declared in schema`)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`), Schema{})
	assert.Error(t, err)
}
