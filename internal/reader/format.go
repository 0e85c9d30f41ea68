package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Format is one of the supported container formats.
type Format int

const (
	FormatPDF Format = iota
	FormatEPUB
	FormatFB2
	FormatText
)

// SupportedExtensions lists the accepted filename extensions.
const SupportedExtensions = ".pdf,.epub,.fb2,.txt"

var formats = []struct {
	format Format
	name   string
	ext    string
}{
	{FormatPDF, "PDF", ".pdf"},
	{FormatEPUB, "EPUB", ".epub"},
	{FormatFB2, "FB2", ".fb2"},
	{FormatText, "Text", ".txt"},
}

func (f Format) String() string {
	for _, e := range formats {
		if e.format == f {
			return e.name
		}
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the filename extension for the format.
func (f Format) Extension() string {
	for _, e := range formats {
		if e.format == f {
			return e.ext
		}
	}
	return ""
}

// DetectFormat picks a format from the lower-cased filename suffix.
// Routing never depends on the content.
func DetectFormat(filename string) (Format, error) {
	lower := strings.ToLower(filename)
	for _, e := range formats {
		if strings.HasSuffix(lower, e.ext) {
			return e.format, nil
		}
	}
	return 0, &UnsupportedFormatError{Filename: lower}
}

// SupportedFormats returns format names with their extensions.
func SupportedFormats() []string {
	out := make([]string, 0, len(formats))
	for _, e := range formats {
		out = append(out, e.name+" ("+e.ext+")")
	}
	return out
}

// File is the input handed to Parse.
type File interface {
	Name() string
	Bytes() ([]byte, error)
}

type memFile struct {
	name string
	data []byte
}

func (f *memFile) Name() string           { return f.name }
func (f *memFile) Bytes() ([]byte, error) { return f.data, nil }

// NewFile wraps in-memory content.
func NewFile(name string, data []byte) File {
	return &memFile{name: name, data: data}
}

type diskFile struct {
	path string
}

func (f *diskFile) Name() string { return filepath.Base(f.path) }

func (f *diskFile) Bytes() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// OpenFile returns a File reading from path on demand.
func OpenFile(path string) File {
	return &diskFile{path: path}
}

// ParserConfig configures a Parser. Zero values select defaults.
type ParserConfig struct {
	Logger *zap.Logger

	// PDF renders page text runs. Defaults to LedongthucRenderer.
	PDF PDFRenderer

	// EPUB opens EPUB containers. Defaults to OpenEPUBContainer.
	EPUB ContainerOpener

	// LoadConcurrency bounds parallel spine entry loads.
	LoadConcurrency int
}

// Parser routes files to the extractor for their format.
type Parser struct {
	logger      *zap.Logger
	pdf         PDFRenderer
	epub        ContainerOpener
	concurrency int
}

// NewParser creates a Parser from cfg.
func NewParser(cfg ParserConfig) *Parser {
	p := &Parser{
		logger:      cfg.Logger,
		pdf:         cfg.PDF,
		epub:        cfg.EPUB,
		concurrency: cfg.LoadConcurrency,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.pdf == nil {
		p.pdf = LedongthucRenderer{}
	}
	if p.epub == nil {
		p.epub = OpenEPUBContainer
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

var defaultParser = NewParser(ParserConfig{})

// Parse extracts text and chapters from file using default collaborators.
func Parse(ctx context.Context, file File) (*ParseResult, error) {
	return defaultParser.Parse(ctx, file)
}

// Parse extracts text and chapters from file. It fails with
// *UnsupportedFormatError for unknown extensions and *DocumentOpenError when
// the container cannot be opened.
func (p *Parser) Parse(ctx context.Context, file File) (*ParseResult, error) {
	name := file.Name()
	format, err := DetectFormat(name)
	if err != nil {
		return nil, err
	}

	data, err := file.Bytes()
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(zap.String("file", name), zap.Stringer("format", format))
	warning := p.checkContent(logger, format, data)

	var res *ParseResult
	switch format {
	case FormatPDF:
		res, err = p.extractPDF(ctx, logger, name, data)
	case FormatEPUB:
		res, err = p.extractEPUB(ctx, logger, name, data)
	case FormatFB2:
		res, err = extractFB2(logger, name, data)
	case FormatText:
		res, err = extractText(name, data)
	}
	if err != nil {
		return nil, err
	}

	if warning != "" {
		res.Warnings = append([]string{warning}, res.Warnings...)
	}
	logger.Debug("extracted document",
		zap.Int("words", res.TotalWords()),
		zap.Int("chapters", len(res.Chapters)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

// expectedMIME lists content types that agree with each extension.
var expectedMIME = map[Format][]string{
	FormatPDF:  {"application/pdf"},
	FormatEPUB: {"application/epub+zip", "application/zip"},
	FormatFB2:  {"text/xml", "application/xml", "text/plain"},
	FormatText: {"text/"},
}

// checkContent sniffs data and returns a warning when it does not look like
// format. Routing is by extension only, so the mismatch is informational.
func (p *Parser) checkContent(logger *zap.Logger, format Format, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	mt := mimetype.Detect(data)
	for _, want := range expectedMIME[format] {
		for m := mt; m != nil; m = m.Parent() {
			if strings.HasPrefix(m.String(), want) {
				return ""
			}
		}
	}
	logger.Warn("content does not match extension",
		zap.String("mime", mt.String()),
		zap.String("ext", format.Extension()))
	return fmt.Sprintf("content looks like %s, not %s", mt.String(), format)
}

// titleFromFilename strips the directory and a case-insensitive extension.
func titleFromFilename(name, ext string) string {
	base := filepath.Base(name)
	if len(base) >= len(ext) && strings.EqualFold(base[len(base)-len(ext):], ext) {
		return base[:len(base)-len(ext)]
	}
	return base
}
