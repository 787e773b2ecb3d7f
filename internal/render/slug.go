package render

import (
	"regexp"
	"strings"
)

var (
	slugInvalidRe = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRe    = regexp.MustCompile(`-+`)
)

// Slugify converts a title to a filename-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalidRe.ReplaceAllString(s, "-")
	s = slugDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}
