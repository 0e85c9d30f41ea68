package reader

import (
	"regexp"
	"strings"
)

const maxHeadingWords = 8

// Heading keywords in English and Russian. A numbered heading may carry a
// subtitle after the number; any other heading is the keyword plus exactly
// one token, so short prose that opens with a keyword is not a heading.
var (
	numberedHeadingRegex = regexp.MustCompile(`(?i)^(?:chapter|глава|часть|part|раздел|section)\s+(?:\d+|[ivxlcdm]+)(?:$|[^\p{L}\p{N}])`)
	tokenHeadingRegex    = regexp.MustCompile(`(?i)^(?:chapter|глава|часть|part|раздел|section)\s+\S+$`)
)

// DetectChapters scans text line by line for short heading-like lines and
// returns them as chapters. WordIndex is the number of words before the
// heading line, so the heading itself belongs to its chapter. The result is
// empty, never nil, when nothing matches.
//
// Line breaks must still be present: running it on normalized text sees a
// single line.
func DetectChapters(text string) []Chapter {
	chapters := []Chapter{}
	cursor := 0

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		words := CountWords(trimmed)
		if trimmed != "" && words <= maxHeadingWords && isHeading(trimmed) {
			chapters = append(chapters, Chapter{
				Title:     Normalize(trimmed),
				WordIndex: cursor,
			})
		}
		cursor += words
	}

	return finalizeChapters(chapters, cursor)
}

func isHeading(line string) bool {
	return numberedHeadingRegex.MatchString(line) || tokenHeadingRegex.MatchString(line)
}
