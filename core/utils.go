package core

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Slugify turns `s` into a lowercase, hyphen separated slug: "Go 101: Basics" -> "go-101-basics".
func Slugify(s string) string {
	s = nonSlugChars.ReplaceAllString(CleanString(s, true /* lower */), "-")
	return strings.Trim(s, "-")
}
