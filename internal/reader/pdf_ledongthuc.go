package reader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LedongthucRenderer implements PDFRenderer using github.com/ledongthuc/pdf.
// Each line of a page's plain text becomes one text run; pages without a
// page object yield a single marker.
type LedongthucRenderer struct{}

func (LedongthucRenderer) Open(data []byte) (doc PDFDocument, err error) {
	if len(data) == 0 {
		return nil, errors.New("empty PDF content")
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &ledongthucDocument{r: r}, nil
}

type ledongthucDocument struct {
	r *pdf.Reader
}

func (d *ledongthucDocument) NumPages() int { return d.r.NumPage() }

func (d *ledongthucDocument) Page(n int) (PDFPage, error) {
	if n < 1 || n > d.r.NumPage() {
		return nil, fmt.Errorf("invalid page number: %d", n)
	}
	return ledongthucPage{p: d.r.Page(n)}, nil
}

type ledongthucPage struct {
	p pdf.Page
}

func (lp ledongthucPage) Items() (items []PageItem, err error) {
	if lp.p.V.IsNull() {
		return []PageItem{{Kind: Marker}}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("malformed page content: %v", r)
		}
	}()

	text, err := lp.p.GetPlainText(nil)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			items = append(items, PageItem{Kind: Marker})
			continue
		}
		items = append(items, PageItem{Kind: TextRun, Text: line})
	}
	return items, nil
}
