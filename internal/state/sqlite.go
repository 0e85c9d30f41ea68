package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/metcalfc/bookbrr/internal/reader"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the library in SQLite. Bookmarks reference their book
// with ON DELETE CASCADE.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// foreign_keys is per connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, dbPath: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			text TEXT NOT NULL,
			current_word_index INTEGER NOT NULL DEFAULT 0,
			total_words INTEGER NOT NULL DEFAULT 0,
			chapters TEXT,
			settings TEXT,
			last_read INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_books_last_read ON books(last_read);`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY,
			book_id TEXT NOT NULL,
			word_index INTEGER NOT NULL,
			label TEXT NOT NULL,
			preview TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(book_id) REFERENCES books(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_book_id ON bookmarks(book_id);`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute init query: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) PutBook(b *Book) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = HashText(b.Text)
	}
	var existing *Book
	var created int64
	err := s.db.QueryRow(`SELECT created_at FROM books WHERE id = ?`, b.ID).Scan(&created)
	switch {
	case err == nil:
		existing = &Book{CreatedAt: time.Unix(0, created)}
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to save book: %w", err)
	}
	prepareBook(b, existing)

	chapters, err := json.Marshal(b.Chapters)
	if err != nil {
		return "", fmt.Errorf("failed to save book: %w", err)
	}
	settings, err := json.Marshal(b.Settings)
	if err != nil {
		return "", fmt.Errorf("failed to save book: %w", err)
	}

	// ON CONFLICT rather than INSERT OR REPLACE: replace deletes the row
	// and would cascade to the bookmarks.
	_, err = s.db.Exec(`
		INSERT INTO books (id, title, text, current_word_index, total_words, chapters, settings, last_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			text = excluded.text,
			current_word_index = excluded.current_word_index,
			total_words = excluded.total_words,
			chapters = excluded.chapters,
			settings = excluded.settings,
			last_read = excluded.last_read
	`, b.ID, b.Title, b.Text, b.CurrentWordIndex, b.TotalWords, string(chapters), string(settings),
		b.LastRead.UnixNano(), b.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to save book: %w", err)
	}
	return b.ID, nil
}

func (s *SQLiteStore) GetBook(id string) (*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b                  Book
		chapters, settings sql.NullString
		lastRead, created  int64
	)
	err := s.db.QueryRow(`
		SELECT id, title, text, current_word_index, total_words, chapters, settings, last_read, created_at
		FROM books WHERE id = ?
	`, id).Scan(&b.ID, &b.Title, &b.Text, &b.CurrentWordIndex, &b.TotalWords, &chapters, &settings, &lastRead, &created)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book %s: %w", id, err)
	}

	b.Chapters = []reader.Chapter{}
	if chapters.String != "" {
		if err := json.Unmarshal([]byte(chapters.String), &b.Chapters); err != nil {
			return nil, fmt.Errorf("failed to decode chapters: %w", err)
		}
	}
	if settings.String != "" {
		if err := json.Unmarshal([]byte(settings.String), &b.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode settings: %w", err)
		}
	}
	b.LastRead = time.Unix(0, lastRead)
	b.CreatedAt = time.Unix(0, created)
	return &b, nil
}

func (s *SQLiteStore) UpdateProgress(id string, wordIndex int, settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		res sql.Result
		err error
	)
	if settings != nil {
		data, merr := json.Marshal(settings)
		if merr != nil {
			return fmt.Errorf("failed to update progress: %w", merr)
		}
		res, err = s.db.Exec(`UPDATE books SET current_word_index = ?, last_read = ?, settings = ? WHERE id = ?`,
			wordIndex, now().UnixNano(), string(data), id)
	} else {
		res, err = s.db.Exec(`UPDATE books SET current_word_index = ?, last_read = ? WHERE id = ?`,
			wordIndex, now().UnixNano(), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update progress: %w", ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Library() ([]BookSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, title, current_word_index, total_words, chapters, last_read, created_at
		FROM books ORDER BY last_read DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}
	defer rows.Close()

	books := []BookSummary{}
	for rows.Next() {
		var (
			b                 Book
			chapters          sql.NullString
			lastRead, created int64
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.CurrentWordIndex, &b.TotalWords, &chapters, &lastRead, &created); err != nil {
			return nil, fmt.Errorf("failed to list library: %w", err)
		}
		b.Chapters = []reader.Chapter{}
		if chapters.String != "" {
			if err := json.Unmarshal([]byte(chapters.String), &b.Chapters); err != nil {
				return nil, fmt.Errorf("failed to decode chapters of %s: %w", b.ID, err)
			}
		}
		b.LastRead = time.Unix(0, lastRead)
		b.CreatedAt = time.Unix(0, created)
		books = append(books, summarize(&b))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}
	return books, nil
}

// DeleteBook deletes a book; the foreign key cascade removes its bookmarks.
func (s *SQLiteStore) DeleteBook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM books WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddBookmark(bookID string, wordIndex int, label, preview string) (*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM books WHERE id = ?`, bookID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}

	bm := newBookmark(bookID, wordIndex, label, preview)
	_, err = s.db.Exec(`
		INSERT INTO bookmarks (id, book_id, word_index, label, preview, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, bm.ID, bm.BookID, bm.WordIndex, bm.Label, bm.Preview, bm.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return bm, nil
}

func (s *SQLiteStore) Bookmarks(bookID string) ([]Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, book_id, word_index, label, preview, created_at
		FROM bookmarks WHERE book_id = ? ORDER BY word_index, created_at
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	marks := []Bookmark{}
	for rows.Next() {
		var (
			bm      Bookmark
			preview sql.NullString
			created int64
		)
		if err := rows.Scan(&bm.ID, &bm.BookID, &bm.WordIndex, &bm.Label, &preview, &created); err != nil {
			return nil, fmt.Errorf("failed to list bookmarks: %w", err)
		}
		bm.Preview = preview.String
		bm.CreatedAt = time.Unix(0, created)
		marks = append(marks, bm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return marks, nil
}

func (s *SQLiteStore) DeleteBookmark(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM bookmarks WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
