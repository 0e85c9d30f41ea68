package reader

import (
	"context"
	"errors"
	"testing"
)

type fakePDF struct {
	pages   [][]PageItem
	pageErr map[int]error
	openErr error
	opened  int
}

func (f *fakePDF) Open(data []byte) (PDFDocument, error) {
	f.opened++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakePDF) NumPages() int { return len(f.pages) }

func (f *fakePDF) Page(n int) (PDFPage, error) {
	if err := f.pageErr[n]; err != nil {
		return nil, err
	}
	return fakePage(f.pages[n-1]), nil
}

type fakePage []PageItem

func (p fakePage) Items() ([]PageItem, error) { return p, nil }

func runs(texts ...string) []PageItem {
	items := make([]PageItem, 0, len(texts))
	for _, s := range texts {
		items = append(items, PageItem{Kind: TextRun, Text: s})
	}
	return items
}

func parsePDF(t *testing.T, f *fakePDF, name string) *ParseResult {
	t.Helper()
	p := NewParser(ParserConfig{PDF: f})
	res, err := p.Parse(context.Background(), NewFile(name, []byte("%PDF-1.4 fake")))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

func TestPDFSinglePage(t *testing.T) {
	res := parsePDF(t, &fakePDF{pages: [][]PageItem{runs("Hello", "World")}}, "test.pdf")
	if res.Text != "Hello World" {
		t.Errorf("Text = %q, want %q", res.Text, "Hello World")
	}
	if res.Title != "test" {
		t.Errorf("Title = %q, want %q", res.Title, "test")
	}
	if res.Chapters == nil || len(res.Chapters) != 0 {
		t.Errorf("Chapters = %#v, want empty", res.Chapters)
	}
}

func TestPDFMultiPage(t *testing.T) {
	f := &fakePDF{pages: [][]PageItem{runs("Page", "One"), runs("Page", "Two")}}
	res := parsePDF(t, f, "multipage.pdf")
	if res.Text != "Page One Page Two" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestPDFFiltersNonText(t *testing.T) {
	page := []PageItem{
		{Kind: TextRun, Text: "Text"},
		{Kind: Marker},
		{Kind: TextRun, Text: "Content"},
	}
	res := parsePDF(t, &fakePDF{pages: [][]PageItem{page}}, "test.pdf")
	if res.Text != "Text Content" {
		t.Errorf("Text = %q, want %q", res.Text, "Text Content")
	}
}

func TestPDFCleansText(t *testing.T) {
	res := parsePDF(t, &fakePDF{pages: [][]PageItem{runs("Hello", "   ", "World")}}, "spaces.pdf")
	if res.Text != "Hello World" {
		t.Errorf("Text = %q", res.Text)
	}

	res = parsePDF(t, &fakePDF{pages: [][]PageItem{runs("What???", "Really!!!")}}, "punctuation.pdf")
	if res.Text != "What? Really!" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestPDFChaptersFromRuns(t *testing.T) {
	f := &fakePDF{pages: [][]PageItem{
		runs("Chapter 1", "It begins here."),
		runs("Chapter 2", "And ends here."),
	}}
	res := parsePDF(t, f, "Novel.PDF")
	if res.Title != "Novel" {
		t.Errorf("Title = %q", res.Title)
	}
	assertChapters(t, res.Chapters, []Chapter{
		{Title: "Chapter 1", WordIndex: 0, WordCount: 5},
		{Title: "Chapter 2", WordIndex: 5, WordCount: 5},
	})
	assertChapterInvariants(t, res)
}

func TestPDFOpenError(t *testing.T) {
	cause := errors.New("bad xref")
	p := NewParser(ParserConfig{PDF: &fakePDF{openErr: cause}})
	_, err := p.Parse(context.Background(), NewFile("broken.pdf", []byte("junk")))

	var openErr *DocumentOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected DocumentOpenError, got %v", err)
	}
	if openErr.Format != FormatPDF || openErr.Filename != "broken.pdf" {
		t.Errorf("unexpected error fields: %+v", openErr)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error does not wrap cause: %v", err)
	}
}

func TestPDFSkipsBrokenPage(t *testing.T) {
	f := &fakePDF{
		pages:   [][]PageItem{runs("first"), runs("lost"), runs("third")},
		pageErr: map[int]error{2: errors.New("bad stream")},
	}
	res := parsePDF(t, f, "partial.pdf")
	if res.Text != "first third" {
		t.Errorf("Text = %q", res.Text)
	}
	found := false
	for _, w := range res.Warnings {
		if w == "failed to load section page 2: bad stream" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing page warning in %v", res.Warnings)
	}
}

func TestPDFCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewParser(ParserConfig{PDF: &fakePDF{pages: [][]PageItem{runs("x")}}})
	if _, err := p.Parse(ctx, NewFile("a.pdf", nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLedongthucRendererRejectsGarbage(t *testing.T) {
	if _, err := (LedongthucRenderer{}).Open(nil); err == nil {
		t.Error("expected error for empty content")
	}
	if _, err := (LedongthucRenderer{}).Open([]byte("this is not a pdf")); err == nil {
		t.Error("expected error for non-PDF content")
	}
}
