package sink

import (
	"net/url"
	"regexp"

	"github.com/c360/httpsink/record"
)

// placeholderPattern matches #fieldName tokens in URL and body templates.
var placeholderPattern = regexp.MustCompile(`#(\w+)`)

// binding locates one placeholder in the original template by byte offset.
// Offsets are computed once; the template itself is never mutated.
type binding struct {
	field string
	start int
	end   int
}

// Resolver substitutes #fieldName placeholders in a template with per-record
// field values. URL resolvers additionally percent-encode substituted values.
type Resolver struct {
	template string
	bindings []binding
	encode   bool
}

// NewResolver scans the template for #fieldName tokens. Set encode for URL
// templates so substituted values are query-escaped.
func NewResolver(template string, encode bool) *Resolver {
	matches := placeholderPattern.FindAllStringSubmatchIndex(template, -1)
	bindings := make([]binding, 0, len(matches))
	for _, m := range matches {
		bindings = append(bindings, binding{
			field: template[m[2]:m[3]],
			start: m[0],
			end:   m[1],
		})
	}
	return &Resolver{template: template, bindings: bindings, encode: encode}
}

// HasPlaceholders reports whether the template contains any #field tokens.
func (r *Resolver) HasPlaceholders() bool {
	return len(r.bindings) > 0
}

// Fields returns the referenced field names in template order.
func (r *Resolver) Fields() []string {
	fields := make([]string, len(r.bindings))
	for i, b := range r.bindings {
		fields[i] = b.field
	}
	return fields
}

// Resolve renders the template against a record. Bindings are applied in
// reverse position order so earlier offsets are not invalidated by length
// changes from later substitutions. A placeholder whose field is absent from
// the record is left as-is; the literal token stays in the output.
func (r *Resolver) Resolve(rec record.Record) string {
	if len(r.bindings) == 0 {
		return r.template
	}

	out := []byte(r.template)
	for i := len(r.bindings) - 1; i >= 0; i-- {
		b := r.bindings[i]
		value, ok := rec.String(b.field)
		if !ok {
			continue
		}
		if r.encode {
			value = url.QueryEscape(value)
		}
		out = append(out[:b.start], append([]byte(value), out[b.end:]...)...)
	}
	return string(out)
}
