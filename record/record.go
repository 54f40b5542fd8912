// Package record provides the structured record and schema types consumed by
// the sink. Records are opaque to the delivery engine: field values are only
// read for serialization and URL placeholder substitution.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/c360/httpsink/errors"
)

// FieldType identifies the declared type of a schema field.
type FieldType string

// Supported field types
const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
)

// Field describes one named field in a record schema.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
}

// Schema enumerates the fields a record may carry, in declaration order.
// The order governs delimited serialization.
type Schema struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

// FieldNames returns the schema's field names in declaration order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// HasField reports whether the schema declares a field with the given name.
func (s Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Validate ensures the schema declares at least one uniquely named field.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Schema", "Validate",
			"schema must contain at least one field")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "Schema", "Validate",
				"field name cannot be empty")
		}
		if _, dup := seen[f.Name]; dup {
			return errors.WrapInvalid(errors.ErrInvalidData, "Schema", "Validate",
				fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Record holds one structured value with named fields. Values are arbitrary
// JSON-compatible data.
type Record struct {
	fields map[string]any
}

// New creates a record from a field map. A nil map yields an empty record.
func New(fields map[string]any) Record {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Record{fields: fields}
}

// Get returns the value of the named field and whether it is present.
// Fields explicitly set to nil report present with a nil value.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// String returns the string form of the named field value, and whether the
// field is present with a non-nil value. Numbers are rendered without an
// exponent so substituted URLs stay readable.
func (r Record) String(name string) (string, bool) {
	v, ok := r.fields[name]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		// json.Unmarshal decodes all numbers to float64
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// MarshalJSON serializes the record as its field map.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields)
}

// UnmarshalJSON deserializes a JSON object into the record's field map.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.WrapInvalid(err, "Record", "UnmarshalJSON", "decode field map")
	}
	r.fields = fields
	return nil
}

// Decode parses a JSON object into a record. When a non-empty schema is
// given, fields not declared by the schema are rejected.
func Decode(data []byte, schema Schema) (Record, error) {
	var rec Record
	if err := rec.UnmarshalJSON(data); err != nil {
		return Record{}, err
	}
	if len(schema.Fields) > 0 {
		for name := range rec.fields {
			if !schema.HasField(name) {
				return Record{}, errors.WrapInvalid(errors.ErrInvalidData, "Record", "Decode",
					fmt.Sprintf("field %q not declared in schema", name))
			}
		}
	}
	return rec, nil
}
