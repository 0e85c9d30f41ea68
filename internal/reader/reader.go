// Package reader extracts text and a chapter index from e-book files and
// drives RSVP (Rapid Serial Visual Presentation) reading over the result.
package reader

import (
	"time"
	"unicode/utf8"
)

// Reader holds the state for an RSVP speed reading session.
type Reader struct {
	Title          string
	Words          []string
	SentenceStarts []int
	CurrentIndex   int
	WPM            int
	Paused         bool
	LastArrowPress time.Time

	Chapters       []Chapter
	CurrentChapter int
}

// NewReader creates a Reader over plain text with no chapters.
func NewReader(text string, wpm int) *Reader {
	words := Words(text)
	return &Reader{
		Words:          words,
		SentenceStarts: FindSentenceStarts(words),
		WPM:            wpm,
		CurrentChapter: -1,
	}
}

// NewReaderFromResult creates a Reader over an extraction result.
func NewReaderFromResult(res *ParseResult, wpm int) *Reader {
	r := NewReader(res.Text, wpm)
	r.Title = res.Title
	r.Chapters = res.Chapters
	r.updateCurrentChapter()
	return r
}

// FindSentenceStarts returns indices of words that start sentences.
func FindSentenceStarts(words []string) []int {
	starts := []int{0}
	for i, word := range words {
		if len(word) == 0 {
			continue
		}
		switch word[len(word)-1] {
		case '.', '!', '?':
			if i+1 < len(words) {
				starts = append(starts, i+1)
			}
		}
	}
	return starts
}

// GetORPPosition returns the Optimal Recognition Point index for a word.
// This is the character (rune) position where the eye should focus for fastest recognition.
func GetORPPosition(word string) int {
	length := utf8.RuneCountInString(word)
	if length <= 1 {
		return 0
	} else if length <= 5 {
		return 1
	}
	return length / 3
}

// JumpToPrevSentence moves to the start of the previous sentence.
func (r *Reader) JumpToPrevSentence() {
	defer r.updateCurrentChapter()
	for i := len(r.SentenceStarts) - 1; i >= 0; i-- {
		if r.SentenceStarts[i] < r.CurrentIndex {
			r.CurrentIndex = r.SentenceStarts[i]
			return
		}
	}
	r.CurrentIndex = 0
}

// JumpToNextSentence moves to the start of the next sentence.
func (r *Reader) JumpToNextSentence() {
	defer r.updateCurrentChapter()
	for _, start := range r.SentenceStarts {
		if start > r.CurrentIndex {
			r.CurrentIndex = start
			return
		}
	}
	if len(r.Words) > 0 {
		r.CurrentIndex = len(r.Words) - 1
	}
}

// GetDelay returns the duration to display each word based on WPM.
func (r *Reader) GetDelay() time.Duration {
	return time.Duration(60.0/float64(r.WPM)*1000) * time.Millisecond
}

// CurrentWord returns the word at the current index.
func (r *Reader) CurrentWord() string {
	if r.CurrentIndex >= 0 && r.CurrentIndex < len(r.Words) {
		return r.Words[r.CurrentIndex]
	}
	return ""
}

// Progress returns the current position and total word count.
func (r *Reader) Progress() (current, total int) {
	return r.CurrentIndex + 1, len(r.Words)
}

// Advance moves to the next word. Returns true if there are more words.
func (r *Reader) Advance() bool {
	if r.CurrentIndex < len(r.Words)-1 {
		r.CurrentIndex++
		r.updateCurrentChapter()
		return true
	}
	return false
}

// AtEnd returns true if the reader is at the last word.
func (r *Reader) AtEnd() bool {
	return r.CurrentIndex >= len(r.Words)-1
}

// Seek moves to wordIndex, clamped to the text.
func (r *Reader) Seek(wordIndex int) {
	switch {
	case len(r.Words) == 0 || wordIndex < 0:
		r.CurrentIndex = 0
	case wordIndex >= len(r.Words):
		r.CurrentIndex = len(r.Words) - 1
	default:
		r.CurrentIndex = wordIndex
	}
	r.updateCurrentChapter()
}

// JumpToChapter moves to the first word of chapter i.
func (r *Reader) JumpToChapter(i int) {
	if i >= 0 && i < len(r.Chapters) {
		r.Seek(r.Chapters[i].WordIndex)
	}
}

// NextChapter moves to the start of the following chapter, if any.
func (r *Reader) NextChapter() {
	r.JumpToChapter(r.CurrentChapter + 1)
}

// PrevChapter moves to the start of the current chapter, or to the start
// of the previous one when already there.
func (r *Reader) PrevChapter() {
	if r.CurrentChapter < 0 {
		return
	}
	if r.CurrentIndex > r.Chapters[r.CurrentChapter].WordIndex || r.CurrentChapter == 0 {
		r.JumpToChapter(r.CurrentChapter)
		return
	}
	r.JumpToChapter(r.CurrentChapter - 1)
}

// updateCurrentChapter sets CurrentChapter based on CurrentIndex; -1 means
// the position is before the first chapter.
func (r *Reader) updateCurrentChapter() {
	r.CurrentChapter = chapterAt(r.Chapters, r.CurrentIndex)
}

// CurrentChapterTitle returns the title of the current chapter.
func (r *Reader) CurrentChapterTitle() string {
	if r.CurrentChapter >= 0 && r.CurrentChapter < len(r.Chapters) {
		return r.Chapters[r.CurrentChapter].Title
	}
	return ""
}

// Preview returns up to n words starting at wordIndex.
func (r *Reader) Preview(wordIndex, n int) []string {
	if wordIndex < 0 || wordIndex >= len(r.Words) {
		return nil
	}
	end := wordIndex + n
	if end > len(r.Words) {
		end = len(r.Words)
	}
	return r.Words[wordIndex:end]
}
