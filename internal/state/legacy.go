package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	legacyFileName = "reading_positions.json"
	hashBytes      = 8192 // First 8KB for content hash
)

// legacyPosition is one entry of reading_positions.json.
type legacyPosition struct {
	WordIndex int `json:"word_index"`
}

// LegacyPositions reads the per-file position map written by earlier
// versions, keyed by ComputeHash. Positions are handed to the library once
// and then removed from the file.
type LegacyPositions struct {
	path string
	data map[string]legacyPosition
	mu   sync.Mutex
}

// OpenLegacyPositions loads dir/reading_positions.json. A missing file
// yields an empty set.
func OpenLegacyPositions(dir string) (*LegacyPositions, error) {
	l := &LegacyPositions{
		path: filepath.Join(dir, legacyFileName),
		data: make(map[string]legacyPosition),
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy positions: %w", err)
	}
	if err := json.Unmarshal(data, &l.data); err != nil {
		return nil, fmt.Errorf("failed to parse legacy positions: %w", err)
	}
	return l, nil
}

// Len returns the number of positions not yet migrated.
func (l *LegacyPositions) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}

// Take returns and forgets the position saved for a file hash. The file
// is deleted once it is empty.
func (l *LegacyPositions) Take(hash string) (int, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.data[hash]
	if !ok {
		return 0, false, nil
	}
	delete(l.data, hash)
	return pos.WordIndex, true, l.save()
}

func (l *LegacyPositions) save() error {
	if len(l.data) == 0 {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := json.MarshalIndent(l.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}

// ComputeHash generates content hash for file identity
func ComputeHash(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, hashBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}

	hash := sha256.Sum256(buf[:n])
	return hex.EncodeToString(hash[:16]), nil // First 16 bytes = 32 hex chars
}

// Resume returns the stored copy of b when the library already has it.
// Otherwise b is added, starting at the legacy position for fileHash if
// one exists. legacy may be nil and fileHash empty.
func Resume(s Store, legacy *LegacyPositions, fileHash string, b *Book) (*Book, error) {
	if b.ID == "" {
		b.ID = HashText(b.Text)
	}
	stored, err := s.GetBook(b.ID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if legacy != nil && fileHash != "" {
		pos, ok, err := legacy.Take(fileHash)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate legacy position: %w", err)
		}
		if ok && pos >= 0 {
			b.CurrentWordIndex = pos
		}
	}
	if _, err := s.PutBook(b); err != nil {
		return nil, err
	}
	return b, nil
}
