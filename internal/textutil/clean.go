// Package textutil normalizes extracted source text before scoring.
package textutil

import (
	"regexp"
	"strings"
)

var (
	multiNewline = regexp.MustCompile(`\n{2,}`)
	junkChars    = regexp.MustCompile(`[^\x00-\x7F\n.,;:¿?¡!%()\-_\s]+`)
	multiSpace   = regexp.MustCompile(` {2,}`)
)

// Clean collapses runs of blank lines, strips layout junk outside the ASCII
// range (keeping Spanish punctuation), and squeezes repeated spaces.
func Clean(text string) string {
	cleaned := multiNewline.ReplaceAllString(text, "\n")
	cleaned = junkChars.ReplaceAllString(cleaned, "")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
