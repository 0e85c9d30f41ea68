package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Format
		wantErr  bool
	}{
		{"pdf", "book.pdf", FormatPDF, false},
		{"upper pdf", "REPORT.PDF", FormatPDF, false},
		{"epub", "novel.epub", FormatEPUB, false},
		{"fb2", "story.fb2", FormatFB2, false},
		{"txt", "notes.txt", FormatText, false},
		{"mixed case", "Notes.TxT", FormatText, false},
		{"dotted name", "my.book.v2.epub", FormatEPUB, false},
		{"docx", "letter.docx", 0, true},
		{"markdown", "readme.md", 0, true},
		{"no extension", "README", 0, true},
		{"extension only in middle", "book.pdf.bak", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DetectFormat(%q) = %v, want error", tt.filename, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectFormat(%q): %v", tt.filename, err)
			}
			if got != tt.want {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestParseUnsupported(t *testing.T) {
	_, err := Parse(context.Background(), NewFile("Letter.DOCX", []byte("x")))
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if unsupported.Filename != "letter.docx" {
		t.Errorf("Filename = %q", unsupported.Filename)
	}
	if err.Error() != "unsupported file type: letter.docx" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestParseRoutesByExtensionCaseInsensitively(t *testing.T) {
	for name, title := range map[string]string{"REPORT.PDF": "REPORT", "report.pdf": "report"} {
		fake := &fakePDF{pages: [][]PageItem{runs("Hello")}}
		p := NewParser(ParserConfig{PDF: fake})
		res, err := p.Parse(context.Background(), NewFile(name, []byte("%PDF-1.4")))
		if err != nil {
			t.Fatalf("Parse(%q): %v", name, err)
		}
		if fake.opened != 1 {
			t.Errorf("Parse(%q) opened the PDF renderer %d times", name, fake.opened)
		}
		if res.Text != "Hello" || res.Title != title {
			t.Errorf("Parse(%q) = %+v", name, res)
		}
	}
}

func TestParseContentMismatchWarns(t *testing.T) {
	fake := &fakePDF{pages: [][]PageItem{runs("Hello")}}
	p := NewParser(ParserConfig{PDF: fake})
	res, err := p.Parse(context.Background(), NewFile("fake.pdf", []byte("just some plain words")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if fake.opened != 1 {
		t.Error("mismatched content must still be routed by extension")
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a content mismatch warning")
	}
}

func TestSupportedFormats(t *testing.T) {
	want := []string{"PDF (.pdf)", "EPUB (.epub)", "FB2 (.fb2)", "Text (.txt)"}
	if got := SupportedFormats(); !reflect.DeepEqual(got, want) {
		t.Errorf("SupportedFormats() = %v, want %v", got, want)
	}
	if SupportedExtensions != ".pdf,.epub,.fb2,.txt" {
		t.Errorf("SupportedExtensions = %q", SupportedExtensions)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		name, ext, want string
	}{
		{"book.epub", ".epub", "book"},
		{"dir/sub/My Book.EPUB", ".epub", "My Book"},
		{"a.b.txt", ".txt", "a.b"},
		{"noext", ".txt", "noext"},
	}
	for _, tt := range tests {
		if got := titleFromFilename(tt.name, tt.ext); got != tt.want {
			t.Errorf("titleFromFilename(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.want)
		}
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.txt")
	if err := os.WriteFile(path, []byte("Hello world this is a test."), 0644); err != nil {
		t.Fatal(err)
	}

	f := OpenFile(path)
	if f.Name() != "story.txt" {
		t.Errorf("Name() = %q", f.Name())
	}
	res, err := Parse(context.Background(), f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Text != "Hello world this is a test." || res.Title != "story" {
		t.Errorf("got %+v", res)
	}

	if _, err := Parse(context.Background(), OpenFile(filepath.Join(dir, "missing.txt"))); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}
}
