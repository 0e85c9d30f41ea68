package reader

import (
	"context"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func TestTextEndToEnd(t *testing.T) {
	res, err := Parse(context.Background(), NewFile("notes.txt", []byte("Chapter 1\nHello world.\nChapter 2\nGoodbye now.")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Text != "Chapter 1 Hello world. Chapter 2 Goodbye now." {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Title != "notes" {
		t.Errorf("Title = %q", res.Title)
	}
	assertChapters(t, res.Chapters, []Chapter{
		{Title: "Chapter 1", WordIndex: 0, WordCount: 4},
		{Title: "Chapter 2", WordIndex: 4, WordCount: 4},
	})
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v", res.Warnings)
	}
}

func TestTextCleansPunctuation(t *testing.T) {
	res, err := Parse(context.Background(), NewFile("a.txt", []byte("  Wait!!   what??\n\n\tok..  ")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Text != "Wait! what? ok." {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestTextKeywordLedProse(t *testing.T) {
	res, err := Parse(context.Background(), NewFile("rain.txt", []byte("Part of the problem was the rain.\nIt kept falling.")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Chapters == nil || len(res.Chapters) != 0 {
		t.Errorf("Chapters = %#v, want empty", res.Chapters)
	}
}

func TestTextEmpty(t *testing.T) {
	res, err := Parse(context.Background(), NewFile("empty.txt", nil))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Text != "" || len(res.Chapters) != 0 || res.Chapters == nil {
		t.Errorf("got %+v", res)
	}
}

func TestDecodeText(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("Hello there")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain", []byte("plain text"), "plain text"},
		{"utf8 bom", []byte("\xef\xbb\xbfwith bom"), "with bom"},
		{"utf16 bom", []byte(utf16), "Hello there"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeText(tt.in)
			if err != nil {
				t.Fatalf("decodeText: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
