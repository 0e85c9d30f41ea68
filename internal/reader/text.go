package reader

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// extractText treats the whole file as prose. Plain text carries no
// structure, so chapters always come from DetectChapters.
func extractText(name string, data []byte) (*ParseResult, error) {
	raw, err := decodeText(data)
	if err != nil {
		return nil, &DocumentOpenError{Filename: name, Format: FormatText, Err: err}
	}
	return &ParseResult{
		Text:     Normalize(raw),
		Chapters: DetectChapters(raw),
		Title:    titleFromFilename(name, ".txt"),
	}, nil
}

// decodeText reads UTF-8, dropping a byte order mark. UTF-16 input is
// accepted when it starts with a byte order mark.
func decodeText(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(out), nil
}
