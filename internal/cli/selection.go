package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lvillar/pdfmerge/binding"
)

// parseRows parses a zero-based row selection such as "3,0,5-7". Order and
// duplicates are kept. An empty selection selects all n rows. Rows at or
// past n are rejected before any range is expanded.
func parseRows(sel string, n int) ([]int, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows, nil
	}

	var rows []int
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid row %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid row range %q", part)
			}
		}
		if start < 0 || end < start {
			return nil, fmt.Errorf("invalid row range %q", part)
		}
		if end >= n {
			return nil, fmt.Errorf("row %d out of range: dataset has %d rows", end, n)
		}
		for i := start; i <= end; i++ {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// parseMapping builds a field mapping from field=Column pairs. Fields whose
// name matches a header are bound to it unless a pair says otherwise.
func parseMapping(pairs []string, headers []string) (binding.Mapping, error) {
	m := binding.Identity(headers)
	for _, p := range pairs {
		field, col, ok := strings.Cut(p, "=")
		field, col = strings.TrimSpace(field), strings.TrimSpace(col)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid mapping %q, want field=Column", p)
		}
		if col == "" {
			delete(m, field)
			continue
		}
		m[field] = col
	}
	return m, nil
}
