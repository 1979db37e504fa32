package placeholder

import "strings"

// Binder resolves a field name to the text that replaces its placeholder.
// Implementations never fail; a field without a value resolves to "".
type Binder interface {
	Resolve(field string) string
}

// BinderFunc adapts an ordinary function to the Binder interface.
type BinderFunc func(field string) string

// Resolve calls f(field).
func (f BinderFunc) Resolve(field string) string { return f(field) }

// Materialize replaces every occurrence of the given fields in template with
// the value bound to them. Each field is resolved once, so repeated
// occurrences receive the same value. Tokens for names outside fields are
// copied through unchanged.
//
// Substituted values are written verbatim and never scanned again, which
// keeps values containing "{{...}}" from expanding recursively.
func Materialize(template string, fields []string, b Binder) string {
	if len(fields) == 0 || !strings.Contains(template, openDelim) {
		return template
	}

	values := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, ok := values[f]; !ok {
			values[f] = b.Resolve(f)
		}
	}

	var sb strings.Builder
	sb.Grow(len(template))
	last := 0
	scan(template, func(t token) {
		v, ok := values[t.name]
		if !ok {
			return
		}
		sb.WriteString(template[last:t.start])
		sb.WriteString(v)
		last = t.end
	})
	sb.WriteString(template[last:])
	return sb.String()
}

// Render extracts the fields of template and materializes it in one call.
func Render(template string, b Binder) string {
	return Materialize(template, Extract(template), b)
}
