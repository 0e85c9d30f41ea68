package state

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	booksBucket     = []byte("books")
	bookmarksBucket = []byte("bookmarks")
	// byBookBucket indexes bookmarks by book: bookID, 0x00, big-endian
	// word index, bookmark id. Cursor order is word index order.
	byBookBucket = []byte("bookmarks_by_book")
)

// BoltStore keeps the library in a bbolt file as JSON records.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{booksBucket, bookmarksBucket, byBookBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) PutBook(b *Book) (string, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if b.ID == "" {
			b.ID = HashText(b.Text)
		}
		existing, err := getBook(tx, b.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		prepareBook(b, existing)
		return putJSON(tx.Bucket(booksBucket), b.ID, b)
	})
	if err != nil {
		return "", fmt.Errorf("failed to save book: %w", err)
	}
	return b.ID, nil
}

func (s *BoltStore) GetBook(id string) (*Book, error) {
	var book *Book
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		book, err = getBook(tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load book %s: %w", id, err)
	}
	return book, nil
}

func (s *BoltStore) UpdateProgress(id string, wordIndex int, settings *Settings) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		book, err := getBook(tx, id)
		if err != nil {
			return err
		}
		book.CurrentWordIndex = wordIndex
		book.LastRead = now()
		if settings != nil {
			book.Settings = *settings
		}
		return putJSON(tx.Bucket(booksBucket), id, book)
	})
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

func (s *BoltStore) Library() ([]BookSummary, error) {
	books := []BookSummary{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(booksBucket).ForEach(func(_, v []byte) error {
			var b Book
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			books = append(books, summarize(&b))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}
	sortLibrary(books)
	return books, nil
}

func (s *BoltStore) DeleteBook(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(booksBucket).Delete([]byte(id)); err != nil {
			return err
		}

		marks := tx.Bucket(bookmarksBucket)
		index := tx.Bucket(byBookBucket)
		prefix := bookPrefix(id)
		var keys [][]byte
		c := index.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
			if err := marks.Delete(v); err != nil {
				return err
			}
		}
		for _, k := range keys {
			if err := index.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

func (s *BoltStore) AddBookmark(bookID string, wordIndex int, label, preview string) (*Bookmark, error) {
	bm := newBookmark(bookID, wordIndex, label, preview)
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(booksBucket).Get([]byte(bookID)) == nil {
			return ErrNotFound
		}
		if err := putJSON(tx.Bucket(bookmarksBucket), bm.ID, bm); err != nil {
			return err
		}
		return tx.Bucket(byBookBucket).Put(indexKey(bm), []byte(bm.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add bookmark: %w", err)
	}
	return bm, nil
}

func (s *BoltStore) Bookmarks(bookID string) ([]Bookmark, error) {
	marks := []Bookmark{}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bookmarksBucket)
		prefix := bookPrefix(bookID)
		c := tx.Bucket(byBookBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			raw := data.Get(v)
			if raw == nil {
				continue
			}
			var bm Bookmark
			if err := json.Unmarshal(raw, &bm); err != nil {
				return err
			}
			marks = append(marks, bm)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return marks, nil
}

func (s *BoltStore) DeleteBookmark(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(bookmarksBucket)
		raw := data.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var bm Bookmark
		if err := json.Unmarshal(raw, &bm); err != nil {
			return err
		}
		if err := tx.Bucket(byBookBucket).Delete(indexKey(&bm)); err != nil {
			return err
		}
		return data.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

// Close closes the BoltDB database
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func getBook(tx *bolt.Tx, id string) (*Book, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	raw := tx.Bucket(booksBucket).Get([]byte(id))
	if raw == nil {
		return nil, ErrNotFound
	}
	var b Book
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func bookPrefix(bookID string) []byte {
	return append([]byte(bookID), 0)
}

func indexKey(bm *Bookmark) []byte {
	key := bookPrefix(bm.BookID)
	key = binary.BigEndian.AppendUint64(key, uint64(bm.WordIndex))
	return append(key, bm.ID...)
}
