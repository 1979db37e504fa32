package pdfmerge

import (
	"fmt"
	"strings"
)

// fallbackName is used when a template name has no usable characters.
const fallbackName = "document"

// Slug lowercases name and collapses every run of characters outside a-z and
// 0-9 into a single hyphen, trimming hyphens at either end.
func Slug(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if sb.Len() == 0 {
		return fallbackName
	}
	return sb.String()
}

// ArtifactName returns the file name for the document rendered from row
// rowIndex, e.g. "q1-invoice-3.pdf" for row 2 of "Q1 Invoice".
func ArtifactName(templateName string, rowIndex int) string {
	return fmt.Sprintf("%s-%d.pdf", Slug(templateName), rowIndex+1)
}

// GroupName names the group of a batch. A single member lends the group its
// own name.
func GroupName(templateName string, members []Artifact) string {
	if len(members) == 1 {
		return members[0].Name
	}
	name := strings.TrimSpace(templateName)
	if name == "" {
		name = "Document"
	}
	return fmt.Sprintf("%s Batch (%d PDFs)", name, len(members))
}
