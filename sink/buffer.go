package sink

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360/httpsink/errors"
	"github.com/c360/httpsink/record"
)

// Format selects how buffered records become one wire payload.
type Format string

// Supported message formats
const (
	FormatJSON      Format = "json"
	FormatDelimited Format = "delimited"
	FormatCustom    Format = "custom"
)

// MessageBuffer accumulates records and renders them into a single request
// body per flush. It is owned by exactly one writer; no concurrent mutation.
type MessageBuffer struct {
	format       Format
	batchKey     string
	asArray      bool
	delimiter    string
	fieldDelim   string
	bodyTemplate *Resolver
	schema       record.Schema
	records      []record.Record
}

// NewMessageBuffer builds a buffer for the given format. Custom format
// requires a body template; delimited format requires a schema to fix field
// order. Template fields not declared in a non-empty schema fail fast.
func NewMessageBuffer(cfg Config, schema record.Schema) (*MessageBuffer, error) {
	buf := &MessageBuffer{
		format:     cfg.Format,
		batchKey:   cfg.JSONBatchKey,
		asArray:    cfg.WriteJSONAsArray,
		delimiter:  cfg.Delimiter,
		fieldDelim: cfg.FieldDelimiter,
		schema:     schema,
	}
	if buf.delimiter == "" {
		buf.delimiter = "\n"
	}
	if buf.fieldDelim == "" {
		buf.fieldDelim = ","
	}

	switch cfg.Format {
	case FormatJSON:
		// Batch key implies array wrapping
		if buf.batchKey != "" {
			buf.asArray = true
		}
	case FormatDelimited:
		if len(schema.Fields) == 0 {
			return nil, errors.WrapInvalid(errors.ErrMissingConfig, "MessageBuffer", "NewMessageBuffer",
				"delimited format requires a schema")
		}
	case FormatCustom:
		if cfg.Body == "" {
			return nil, errors.WrapInvalid(errors.ErrMissingConfig, "MessageBuffer", "NewMessageBuffer",
				"custom format requires a body template")
		}
		buf.bodyTemplate = NewResolver(cfg.Body, false)
		if len(schema.Fields) > 0 {
			for _, field := range buf.bodyTemplate.Fields() {
				if !schema.HasField(field) {
					return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "MessageBuffer", "NewMessageBuffer",
						fmt.Sprintf("body template references field %q not declared in schema", field))
				}
			}
		}
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "MessageBuffer", "NewMessageBuffer",
			fmt.Sprintf("unsupported message format %q", cfg.Format))
	}

	return buf, nil
}

// Add appends a record to the buffer.
func (b *MessageBuffer) Add(rec record.Record) {
	b.records = append(b.records, rec)
}

// Size returns the count of buffered records.
func (b *MessageBuffer) Size() int {
	return len(b.records)
}

// IsEmpty reports whether the buffer holds no records.
func (b *MessageBuffer) IsEmpty() bool {
	return len(b.records) == 0
}

// Clear resets the buffer to empty. Safe to call repeatedly.
func (b *MessageBuffer) Clear() {
	b.records = b.records[:0]
}

// ContentType returns the MIME type matching the buffer's format.
func (b *MessageBuffer) ContentType() string {
	if b.format == FormatJSON {
		return "application/json"
	}
	return "text/plain"
}

// Message renders the full batch body in insertion order. It returns
// ok=false when the buffer is empty.
func (b *MessageBuffer) Message() (string, bool, error) {
	if b.IsEmpty() {
		return "", false, nil
	}

	var body string
	var err error
	switch b.format {
	case FormatJSON:
		body, err = b.jsonMessage()
	case FormatDelimited:
		body = b.delimitedMessage()
	case FormatCustom:
		body = b.customMessage()
	}
	if err != nil {
		return "", false, err
	}
	return body, true, nil
}

func (b *MessageBuffer) jsonMessage() (string, error) {
	if !b.asArray {
		parts := make([]string, 0, len(b.records))
		for _, rec := range b.records {
			data, err := json.Marshal(rec)
			if err != nil {
				return "", errors.WrapInvalid(err, "MessageBuffer", "jsonMessage", "marshal record")
			}
			parts = append(parts, string(data))
		}
		return strings.Join(parts, b.delimiter), nil
	}

	data, err := json.Marshal(b.records)
	if err != nil {
		return "", errors.WrapInvalid(err, "MessageBuffer", "jsonMessage", "marshal batch")
	}
	if b.batchKey == "" {
		return string(data), nil
	}

	wrapped, err := json.Marshal(map[string]json.RawMessage{b.batchKey: data})
	if err != nil {
		return "", errors.WrapInvalid(err, "MessageBuffer", "jsonMessage", "wrap batch key")
	}
	return string(wrapped), nil
}

func (b *MessageBuffer) delimitedMessage() string {
	lines := make([]string, 0, len(b.records))
	for _, rec := range b.records {
		values := make([]string, 0, len(b.schema.Fields))
		for _, field := range b.schema.Fields {
			value, _ := rec.String(field.Name)
			values = append(values, value)
		}
		lines = append(lines, strings.Join(values, b.fieldDelim))
	}
	return strings.Join(lines, b.delimiter)
}

func (b *MessageBuffer) customMessage() string {
	messages := make([]string, 0, len(b.records))
	for _, rec := range b.records {
		messages = append(messages, b.bodyTemplate.Resolve(rec))
	}
	return strings.Join(messages, b.delimiter)
}
