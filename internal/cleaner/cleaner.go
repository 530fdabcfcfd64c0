// Package cleaner normalizes scraped text fragments.
package cleaner

import (
	"html"
	"strings"
)

// Boilerplate is the phrase that marks a fragment as a "continue reading" link.
const Boilerplate = "Continue reading"

// Clean decodes HTML entities, drops every byte outside printable ASCII except
// newline, and trims the result. The second return is false when the fragment
// is empty or boilerplate and must be discarded.
func Clean(text string) (string, bool) {
	text = StripNonPrintable(html.UnescapeString(text))
	text = strings.TrimSpace(text)

	if text == "" || strings.Contains(text, Boilerplate) {
		return "", false
	}
	return text, true
}

// StripNonPrintable keeps only printable ASCII (0x20-0x7E) and '\n'.
func StripNonPrintable(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || (r >= 0x20 && r <= 0x7e) {
			return r
		}
		return -1
	}, text)
}

// IsPrintable reports whether text contains only bytes Clean would keep.
func IsPrintable(text string) bool {
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\n' && (c < 0x20 || c > 0x7e) {
			return false
		}
	}
	return true
}
