// Package state persists the reading library: books with their reading
// position and settings, and bookmarks into them.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metcalfc/bookbrr/internal/reader"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a book or bookmark does not exist.
var ErrNotFound = errors.New("not found")

const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"

	defaultTitle = "Untitled"
	hashSample   = 10000 // runes of text hashed into a book id
)

// now is replaced in tests.
var now = time.Now

// Settings are per-book reader settings.
type Settings struct {
	WPM int `json:"wpm,omitempty"`
}

// Book is a stored ParseResult plus the reading cursor.
type Book struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Text             string           `json:"text"`
	CurrentWordIndex int              `json:"currentWordIndex"`
	TotalWords       int              `json:"totalWords"`
	Chapters         []reader.Chapter `json:"chapters"`
	Settings         Settings         `json:"settings"`
	LastRead         time.Time        `json:"lastRead"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// BookSummary is a library listing entry. It omits the text.
type BookSummary struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	CurrentWordIndex int              `json:"currentWordIndex"`
	TotalWords       int              `json:"totalWords"`
	Chapters         []reader.Chapter `json:"chapters"`
	LastRead         time.Time        `json:"lastRead"`
	CreatedAt        time.Time        `json:"createdAt"`
	Progress         int              `json:"progress"`
}

// Bookmark is a labeled word index in a book.
type Bookmark struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	WordIndex int       `json:"wordIndex"`
	Label     string    `json:"label"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the library persistence layer.
type Store interface {
	// PutBook creates or replaces a book and returns its id. An empty ID is
	// derived from the text. CreatedAt of an existing book is kept.
	PutBook(b *Book) (string, error)
	GetBook(id string) (*Book, error)
	// UpdateProgress moves the cursor and bumps LastRead. A nil settings
	// leaves the stored settings alone.
	UpdateProgress(id string, wordIndex int, settings *Settings) error
	// Library lists books, most recently read first.
	Library() ([]BookSummary, error)
	// DeleteBook removes a book and its bookmarks.
	DeleteBook(id string) error

	AddBookmark(bookID string, wordIndex int, label, preview string) (*Bookmark, error)
	// Bookmarks lists a book's bookmarks ordered by word index.
	Bookmarks(bookID string) ([]Bookmark, error)
	DeleteBookmark(id string) error

	Close() error
}

// Open opens the store for backend at path, creating parent directories.
func Open(backend, path string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	logger.Debug("opening library", zap.String("backend", backend), zap.String("path", path))
	switch backend {
	case BackendBolt, "":
		return OpenBolt(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// HashText derives a book id from the start of its text.
func HashText(text string) string {
	sample := text
	n := 0
	for i := range text {
		if n == hashSample {
			sample = text[:i]
			break
		}
		n++
	}
	sum := sha256.Sum256([]byte(sample))
	return "book_" + hex.EncodeToString(sum[:8])
}

// PercentageToWordIndex maps a 0-100 percentage onto a word index.
func PercentageToWordIndex(percentage float64, totalWords int) int {
	if totalWords <= 0 {
		return 0
	}
	p := math.Max(0, math.Min(100, percentage))
	return int(math.Floor(p / 100 * float64(totalWords)))
}

// WordIndexToPercentage returns the rounded percentage of wordIndex.
func WordIndexToPercentage(wordIndex, totalWords int) int {
	if totalWords <= 0 {
		return 0
	}
	return int(math.Round(float64(wordIndex) / float64(totalWords) * 100))
}

// NewBook builds a Book from an extraction result.
func NewBook(res *reader.ParseResult) *Book {
	return &Book{
		Title:      res.Title,
		Text:       res.Text,
		TotalWords: res.TotalWords(),
		Chapters:   res.Chapters,
	}
}

// prepareBook fills defaults before a write. existing is the stored copy,
// if any.
func prepareBook(b *Book, existing *Book) {
	if b.ID == "" {
		b.ID = HashText(b.Text)
	}
	if strings.TrimSpace(b.Title) == "" {
		b.Title = defaultTitle
	}
	if b.TotalWords == 0 {
		b.TotalWords = reader.CountWords(b.Text)
	}
	if b.Chapters == nil {
		b.Chapters = []reader.Chapter{}
	}
	t := now()
	b.LastRead = t
	switch {
	case existing != nil && !existing.CreatedAt.IsZero():
		b.CreatedAt = existing.CreatedAt
	case b.CreatedAt.IsZero():
		b.CreatedAt = t
	}
}

func newBookmark(bookID string, wordIndex int, label, preview string) *Bookmark {
	if wordIndex < 0 {
		wordIndex = 0
	}
	if strings.TrimSpace(label) == "" {
		label = fmt.Sprintf("Position %d", wordIndex)
	}
	return &Bookmark{
		ID:        uuid.NewString(),
		BookID:    bookID,
		WordIndex: wordIndex,
		Label:     label,
		Preview:   preview,
		CreatedAt: now(),
	}
}

func summarize(b *Book) BookSummary {
	return BookSummary{
		ID:               b.ID,
		Title:            b.Title,
		CurrentWordIndex: b.CurrentWordIndex,
		TotalWords:       b.TotalWords,
		Chapters:         b.Chapters,
		LastRead:         b.LastRead,
		CreatedAt:        b.CreatedAt,
		Progress:         WordIndexToPercentage(b.CurrentWordIndex, b.TotalWords),
	}
}

func sortLibrary(books []BookSummary) {
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].LastRead.After(books[j].LastRead)
	})
}
