// Package placeholder finds and substitutes {{field}} tokens in template
// markup.
//
// A token is "{{", one or more characters other than '}', then "}}". The
// first "}}" after an opening "{{" closes the token, so nested or overlapping
// braces are not supported. An opening "{{" without a matching close is left
// as literal text.
package placeholder

import (
	"sort"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// token is one placeholder occurrence in a template.
type token struct {
	start, end int    // byte offsets of "{{" and one past "}}"
	name       string // text between the braces
}

// scan calls fn for every well-formed token in s, left to right.
func scan(s string, fn func(t token)) {
	i := 0
	for {
		j := strings.Index(s[i:], openDelim)
		if j < 0 {
			return
		}
		start := i + j
		nameStart := start + len(openDelim)
		k := nameStart
		for k < len(s) && s[k] != '}' {
			k++
		}
		if k == nameStart || !strings.HasPrefix(s[k:], closeDelim) {
			// Empty name or a lone '}': no token starts here.
			i = start + 1
			continue
		}
		fn(token{start: start, end: k + len(closeDelim), name: s[nameStart:k]})
		i = k + len(closeDelim)
	}
}

// Extract returns the distinct field names referenced by template, in order
// of first appearance. It returns nil when there are none.
func Extract(template string) []string {
	var fields []string
	seen := make(map[string]struct{})
	scan(template, func(t token) {
		if _, ok := seen[t.name]; ok {
			return
		}
		seen[t.name] = struct{}{}
		fields = append(fields, t.name)
	})
	return fields
}

// Count returns how many times each field occurs in template.
func Count(template string) map[string]int {
	counts := make(map[string]int)
	scan(template, func(t token) {
		counts[t.name]++
	})
	return counts
}

// Unmapped returns the fields of template that have no entry in mapping,
// sorted by name. An empty result means every placeholder is mapped.
func Unmapped(template string, mapping map[string]string) []string {
	var missing []string
	for _, f := range Extract(template) {
		if _, ok := mapping[f]; !ok {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}
