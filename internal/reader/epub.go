package reader

import (
	"context"
	"net/url"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"
)

// NavPoint is one entry of an EPUB table of contents.
type NavPoint struct {
	Label    string
	Href     string
	Children []NavPoint
}

// SpineEntry is one document in the EPUB reading order.
type SpineEntry struct {
	Href string
}

// Content is what a container returns for a spine entry: MarkupContent or
// DocumentContent.
type Content interface {
	isContent()
}

// MarkupContent is unparsed (X)HTML.
type MarkupContent string

// DocumentContent is an already parsed document tree.
type DocumentContent struct {
	Root *html.Node
}

func (MarkupContent) isContent()   {}
func (DocumentContent) isContent() {}

// Container is an opened EPUB. Title and Navigation are best-effort and
// report false when the book does not carry them. Load must be safe for
// concurrent use.
type Container interface {
	Title() (string, bool)
	Navigation() ([]NavPoint, bool)
	Spine() []SpineEntry
	Load(ctx context.Context, href string) (Content, error)
}

// ContainerOpener opens EPUB bytes.
type ContainerOpener func(data []byte) (Container, error)

// spineResult is the outcome of loading one spine entry: text on success,
// err when the entry is skipped.
type spineResult struct {
	href string
	text string
	err  error
}

func (p *Parser) extractEPUB(ctx context.Context, logger *zap.Logger, name string, data []byte) (*ParseResult, error) {
	c, err := p.epub(data)
	if err != nil {
		return nil, &DocumentOpenError{Filename: name, Format: FormatEPUB, Err: err}
	}

	var toc tocLabels
	if nav, ok := c.Navigation(); ok {
		toc = flattenNavigation(nav)
	}

	results := p.loadSpine(ctx, c, c.Spine())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		out      strings.Builder
		lines    strings.Builder
		chapters []Chapter
		warnings []string
		total    int
	)

	for _, r := range results {
		if r.err != nil {
			serr := &SectionLoadError{Ref: r.href, Err: r.err}
			logger.Warn("skipping spine entry", zap.String("ref", r.href), zap.Error(r.err))
			warnings = append(warnings, serr.Error())
			continue
		}

		words := CountWords(r.text)
		if words == 0 {
			continue
		}
		if label, ok := toc.lookup(r.href); ok {
			chapters = append(chapters, Chapter{Title: label, WordIndex: total})
		}
		out.WriteString(r.text)
		out.WriteString(" ")
		lines.WriteString(r.text)
		lines.WriteString("\n")
		total += words
	}

	text := Normalize(out.String())
	if len(chapters) > 0 {
		chapters = finalizeChapters(chapters, CountWords(text))
	} else {
		chapters = DetectChapters(lines.String())
	}

	title, ok := c.Title()
	if !ok || strings.TrimSpace(title) == "" {
		title = titleFromFilename(name, ".epub")
	}

	return &ParseResult{
		Text:     text,
		Chapters: chapters,
		Title:    strings.TrimSpace(title),
		Warnings: warnings,
	}, nil
}

// loadSpine loads every entry with at most p.concurrency loads in flight.
// Results keep spine order regardless of completion order.
func (p *Parser) loadSpine(ctx context.Context, c Container, spine []SpineEntry) []spineResult {
	results := make([]spineResult, len(spine))
	sem := semaphore.NewWeighted(int64(p.concurrency))
	var wg sync.WaitGroup

	for i, entry := range spine {
		results[i].href = entry.Href
	}

	for i, entry := range spine {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(spine); j++ {
				results[j].err = err
			}
			break
		}

		wg.Add(1)
		go func(idx int, href string) {
			defer wg.Done()
			defer sem.Release(1)

			content, err := c.Load(ctx, href)
			if err != nil {
				results[idx].err = err
				return
			}
			results[idx].text = contentText(content)
		}(i, entry.Href)
	}

	wg.Wait()
	return results
}

// tocLabels maps normalized references to navigation labels.
type tocLabels struct {
	byRef  map[string]string
	byBase map[string]string
}

// flattenNavigation walks the tree in document order with an explicit
// stack. The first label seen for a reference wins.
func flattenNavigation(points []NavPoint) tocLabels {
	toc := tocLabels{
		byRef:  make(map[string]string),
		byBase: make(map[string]string),
	}

	stack := make([]NavPoint, 0, len(points))
	for i := len(points) - 1; i >= 0; i-- {
		stack = append(stack, points[i])
	}

	for len(stack) > 0 {
		np := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		key := normalizeRef(np.Href)
		label := strings.Join(strings.Fields(np.Label), " ")
		if key != "" && label != "" {
			if _, seen := toc.byRef[key]; !seen {
				toc.byRef[key] = label
			}
			if _, seen := toc.byBase[path.Base(key)]; !seen {
				toc.byBase[path.Base(key)] = label
			}
		}

		for i := len(np.Children) - 1; i >= 0; i-- {
			stack = append(stack, np.Children[i])
		}
	}
	return toc
}

func (t tocLabels) lookup(href string) (string, bool) {
	key := normalizeRef(href)
	if key == "" {
		return "", false
	}
	if label, ok := t.byRef[key]; ok {
		return label, true
	}
	label, ok := t.byBase[path.Base(key)]
	return label, ok
}

// normalizeRef drops the fragment and cleans the path so spine and
// navigation references compare equal.
func normalizeRef(ref string) string {
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref = ref[:i]
	}
	if u, err := url.PathUnescape(ref); err == nil {
		ref = u
	}
	if ref == "" {
		return ""
	}
	ref = path.Clean(ref)
	if ref == "." {
		return ""
	}
	return ref
}
