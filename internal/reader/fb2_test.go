package reader

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func parseFB2(t *testing.T, name, doc string) *ParseResult {
	t.Helper()
	res, err := Parse(context.Background(), NewFile(name, []byte(doc)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res
}

func TestFB2Sections(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0">
  <description>
    <title-info><book-title>Two Parts</book-title></title-info>
  </description>
  <body>
    <title><p>Two Parts</p></title>
    <section>
      <title><p>First</p></title>
      <p>Alpha beta.</p>
      <p>Gamma <emphasis>delta</emphasis>.</p>
    </section>
    <section>
      <title><p>Second</p><p>part</p></title>
      <p>Epsilon.</p>
    </section>
  </body>
</FictionBook>`

	res := parseFB2(t, "book.fb2", doc)
	if res.Title != "Two Parts" {
		t.Errorf("Title = %q", res.Title)
	}
	if res.Text != "Alpha beta. Gamma delta. Epsilon." {
		t.Errorf("Text = %q", res.Text)
	}
	assertChapters(t, res.Chapters, []Chapter{
		{Title: "First", WordIndex: 0, WordCount: 4},
		{Title: "Second part", WordIndex: 4, WordCount: 1},
	})
	assertChapterInvariants(t, res)
}

func TestFB2SectionWithoutTitle(t *testing.T) {
	doc := `<FictionBook><body>
  <section><p>Opening words here.</p></section>
  <section><title><p>Named</p></title><p>More text.</p></section>
  <section><title><p>Empty</p></title></section>
</body></FictionBook>`

	res := parseFB2(t, "Untitled.FB2", doc)
	if res.Title != "Untitled" {
		t.Errorf("Title = %q, want filename fallback", res.Title)
	}
	if res.Text != "Opening words here. More text." {
		t.Errorf("Text = %q", res.Text)
	}
	assertChapters(t, res.Chapters, []Chapter{
		{Title: "Named", WordIndex: 3, WordCount: 2},
	})
}

func TestFB2NestedSectionsFold(t *testing.T) {
	doc := `<FictionBook><body>
  <section>
    <title><p>Part One</p></title>
    <p>intro</p>
    <section>
      <title><p>Inner</p></title>
      <p>nested one</p>
      <poem><stanza><v>line of verse</v></stanza></poem>
    </section>
  </section>
  <section><title><p>Part Two</p></title><p>end</p></section>
</body></FictionBook>`

	res := parseFB2(t, "n.fb2", doc)
	if res.Text != "intro nested one line of verse end" {
		t.Errorf("Text = %q", res.Text)
	}
	assertChapters(t, res.Chapters, []Chapter{
		{Title: "Part One", WordIndex: 0, WordCount: 6},
		{Title: "Part Two", WordIndex: 6, WordCount: 1},
	})
}

func TestFB2SkipsNotesBody(t *testing.T) {
	doc := `<FictionBook>
  <body name="notes"><section><title><p>Note 1</p></title><p>A footnote.</p></section></body>
  <body><section><title><p>Main</p></title><p>Story text.</p></section></body>
</FictionBook>`

	res := parseFB2(t, "notes.fb2", doc)
	if res.Text != "Story text." {
		t.Errorf("Text = %q", res.Text)
	}
	assertChapters(t, res.Chapters, []Chapter{{Title: "Main", WordIndex: 0, WordCount: 2}})
}

func TestFB2NoBody(t *testing.T) {
	res := parseFB2(t, "empty.fb2", `<FictionBook><description/></FictionBook>`)
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
	if res.Chapters == nil || len(res.Chapters) != 0 {
		t.Errorf("Chapters = %#v, want empty", res.Chapters)
	}
}

func TestFB2NoSectionsUsesHeuristic(t *testing.T) {
	doc := `<FictionBook><body>
  <p>Chapter 1</p><p>Hello world.</p>
  <p>Chapter 2</p><p>Goodbye now.</p>
</body></FictionBook>`

	res := parseFB2(t, "flat.fb2", doc)
	if res.Text != "Chapter 1 Hello world. Chapter 2 Goodbye now." {
		t.Errorf("Text = %q", res.Text)
	}
	assertChapters(t, res.Chapters, []Chapter{
		{Title: "Chapter 1", WordIndex: 0, WordCount: 4},
		{Title: "Chapter 2", WordIndex: 4, WordCount: 4},
	})
}

func TestFB2Windows1251(t *testing.T) {
	doc := `<?xml version="1.0" encoding="windows-1251"?>
<FictionBook><description><title-info><book-title>Книга</book-title></title-info></description>
<body><section><title><p>Глава первая</p></title><p>Привет, мир.</p></section></body></FictionBook>`

	encoded, err := charmap.Windows1251.NewEncoder().String(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	res := parseFB2(t, "ru.fb2", encoded)
	if res.Title != "Книга" {
		t.Errorf("Title = %q", res.Title)
	}
	if res.Text != "Привет, мир." {
		t.Errorf("Text = %q", res.Text)
	}
	assertChapters(t, res.Chapters, []Chapter{{Title: "Глава первая", WordIndex: 0, WordCount: 2}})
}

func TestFB2Malformed(t *testing.T) {
	_, err := Parse(context.Background(), NewFile("bad.fb2", []byte("<FictionBook><body></section></body>")))
	var openErr *DocumentOpenError
	if !errors.As(err, &openErr) || openErr.Format != FormatFB2 {
		t.Fatalf("expected FB2 DocumentOpenError, got %v", err)
	}
}
