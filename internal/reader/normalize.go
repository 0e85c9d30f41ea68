package reader

import (
	"strings"
	"unicode"
)

// isSpace reports whether r separates words. The byte order mark is treated
// as whitespace since some converters leave it in the middle of text.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// Normalize collapses every whitespace run into a single space, collapses
// runs of the same '.', '!' or '?' into one and trims the result.
// Line breaks do not survive.
func Normalize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))

	pendingSpace := false
	var last rune
	for _, r := range raw {
		if isSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
				last = ' '
			}
			pendingSpace = false
		}
		if (r == '.' || r == '!' || r == '?') && r == last {
			continue
		}
		sb.WriteRune(r)
		last = r
	}
	return sb.String()
}

// Words splits text into its word sequence, the addressing unit for
// chapters and reading positions.
func Words(text string) []string {
	return strings.FieldsFunc(text, isSpace)
}

// CountWords returns len(Words(text)) without allocating the slice.
func CountWords(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if isSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
