package analysis

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// sanitize strips all markup from model-supplied text. Entities are decoded
// again afterwards; the text is stored raw and escaped when rendered.
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

func sanitizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = sanitize(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
