package reader

// ParseResult is the output of every format extractor.
type ParseResult struct {
	Text     string    `json:"text"`
	Chapters []Chapter `json:"chapters"`
	Title    string    `json:"title"`

	// Warnings lists non-fatal problems hit during extraction, such as
	// EPUB spine entries that could not be loaded.
	Warnings []string `json:"warnings,omitempty"`
}

// Chapter is a structural unit addressed by word offsets into ParseResult.Text.
type Chapter struct {
	Title     string `json:"title"`
	WordIndex int    `json:"wordIndex"`
	WordCount int    `json:"wordCount"`
}

// TotalWords returns the number of words in the result text.
func (r *ParseResult) TotalWords() int {
	return CountWords(r.Text)
}

// ChapterAt returns the index of the chapter containing wordIndex, or -1
// when the position lies before the first chapter.
func (r *ParseResult) ChapterAt(wordIndex int) int {
	return chapterAt(r.Chapters, wordIndex)
}

func chapterAt(chapters []Chapter, wordIndex int) int {
	for i := len(chapters) - 1; i >= 0; i-- {
		if wordIndex >= chapters[i].WordIndex {
			return i
		}
	}
	return -1
}

// finalizeChapters drops entries that would break strict ordering and fills
// in WordCount from the gap to the next chapter, or to the end of the
// document for the last one. It never returns nil.
func finalizeChapters(chapters []Chapter, totalWords int) []Chapter {
	out := make([]Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch.WordIndex < 0 || ch.WordIndex > totalWords {
			continue
		}
		if n := len(out); n > 0 && ch.WordIndex <= out[n-1].WordIndex {
			continue
		}
		out = append(out, ch)
	}
	for i := range out {
		end := totalWords
		if i+1 < len(out) {
			end = out[i+1].WordIndex
		}
		out[i].WordCount = end - out[i].WordIndex
	}
	return out
}
