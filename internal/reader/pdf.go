package reader

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ItemKind tells text runs apart from other page content.
type ItemKind int

const (
	TextRun ItemKind = iota
	Marker
)

// PageItem is one entry of a page's text content listing.
type PageItem struct {
	Kind ItemKind
	Text string
}

// PDFRenderer opens PDF bytes.
type PDFRenderer interface {
	Open(data []byte) (PDFDocument, error)
}

// PDFDocument exposes page-ordered content. Pages are numbered from 1.
type PDFDocument interface {
	NumPages() int
	Page(n int) (PDFPage, error)
}

// PDFPage lists the items drawn on one page in content order.
type PDFPage interface {
	Items() ([]PageItem, error)
}

func (p *Parser) extractPDF(ctx context.Context, logger *zap.Logger, name string, data []byte) (*ParseResult, error) {
	doc, err := p.pdf.Open(data)
	if err != nil {
		return nil, &DocumentOpenError{Filename: name, Format: FormatPDF, Err: err}
	}

	var (
		out      strings.Builder
		lines    strings.Builder
		warnings []string
	)

	for n := 1; n <= doc.NumPages(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		runs, err := pageRuns(doc, n)
		if err != nil {
			serr := &SectionLoadError{Ref: fmt.Sprintf("page %d", n), Err: err}
			logger.Warn("skipping page", zap.Int("page", n), zap.Error(err))
			warnings = append(warnings, serr.Error())
			continue
		}

		out.WriteString(strings.Join(runs, " "))
		out.WriteString(" ")
		lines.WriteString(strings.Join(runs, "\n"))
		lines.WriteString("\n")
	}

	text := Normalize(out.String())
	return &ParseResult{
		Text:     text,
		Chapters: DetectChapters(lines.String()),
		Title:    titleFromFilename(name, ".pdf"),
		Warnings: warnings,
	}, nil
}

// pageRuns returns the text runs of page n, dropping non-text items.
func pageRuns(doc PDFDocument, n int) ([]string, error) {
	page, err := doc.Page(n)
	if err != nil {
		return nil, err
	}
	items, err := page.Items()
	if err != nil {
		return nil, err
	}
	runs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Kind == TextRun {
			runs = append(runs, it.Text)
		}
	}
	return runs, nil
}
