package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestComputeHash(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "test1.txt")
	file2 := filepath.Join(tmpDir, "test2.txt")
	file3 := filepath.Join(tmpDir, "test1_copy.txt")

	os.WriteFile(file1, []byte("Hello, World!"), 0644)
	os.WriteFile(file2, []byte("Different content"), 0644)
	os.WriteFile(file3, []byte("Hello, World!"), 0644) // Same as file1

	hash1, err := ComputeHash(file1)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	hash2, err := ComputeHash(file2)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	hash3, err := ComputeHash(file3)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}

	if hash1 != hash3 {
		t.Errorf("Same content should produce same hash: %s != %s", hash1, hash3)
	}
	if hash1 == hash2 {
		t.Errorf("Different content should produce different hash")
	}
	if len(hash1) != 32 {
		t.Errorf("Hash should be 32 chars, got %d", len(hash1))
	}

	if _, err := ComputeHash(filepath.Join(tmpDir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func writeLegacy(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, legacyFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLegacyPositions(t *testing.T) {
	dir := t.TempDir()
	writeLegacy(t, dir, `{
  "aaaa": {"word_index": 1234},
  "bbbb": {"word_index": 5}
}`)

	l, err := OpenLegacyPositions(dir)
	if err != nil {
		t.Fatalf("OpenLegacyPositions: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	pos, ok, err := l.Take("aaaa")
	if err != nil || !ok || pos != 1234 {
		t.Fatalf("Take(aaaa) = %d, %v, %v", pos, ok, err)
	}
	if _, ok, _ := l.Take("aaaa"); ok {
		t.Error("position should only be handed out once")
	}

	// The remaining entry is persisted.
	reloaded, err := OpenLegacyPositions(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 1 {
		t.Errorf("reloaded Len() = %d, want 1", reloaded.Len())
	}

	if _, _, err := l.Take("bbbb"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, legacyFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty legacy file should be removed, stat err = %v", err)
	}
}

func TestLegacyPositionsMissingAndCorrupt(t *testing.T) {
	l, err := OpenLegacyPositions(t.TempDir())
	if err != nil || l.Len() != 0 {
		t.Errorf("missing file: %v, %v", l, err)
	}

	dir := t.TempDir()
	writeLegacy(t, dir, "{not json")
	if _, err := OpenLegacyPositions(dir); err == nil {
		t.Error("expected error for corrupt file")
	}
}

func TestResume(t *testing.T) {
	dir := t.TempDir()
	writeLegacy(t, dir, `{"filehash": {"word_index": 3}}`)
	legacy, err := OpenLegacyPositions(dir)
	if err != nil {
		t.Fatal(err)
	}

	s, err := Open(BackendBolt, filepath.Join(dir, "library.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	book := &Book{Title: "T", Text: "one two three four five"}
	got, err := Resume(s, legacy, "filehash", book)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got.CurrentWordIndex != 3 {
		t.Errorf("migrated position = %d, want 3", got.CurrentWordIndex)
	}
	if legacy.Len() != 0 {
		t.Error("legacy position not consumed")
	}

	if err := s.UpdateProgress(got.ID, 4, nil); err != nil {
		t.Fatal(err)
	}
	again, err := Resume(s, legacy, "filehash", &Book{Title: "T", Text: "one two three four five"})
	if err != nil {
		t.Fatal(err)
	}
	if again.CurrentWordIndex != 4 {
		t.Errorf("stored position = %d, want 4", again.CurrentWordIndex)
	}

	fresh, err := Resume(s, nil, "", &Book{Text: "something else entirely"})
	if err != nil {
		t.Fatal(err)
	}
	if fresh.CurrentWordIndex != 0 || fresh.Title != "Untitled" {
		t.Errorf("fresh book = %+v", fresh)
	}
}
