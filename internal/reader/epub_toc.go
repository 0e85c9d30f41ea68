package reader

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/taylorskalyo/goreader/epub"
)

// maxEntryBytes caps a single spine document.
const maxEntryBytes = 16 << 20

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

type epubContainer struct {
	book  *epub.Rootfile
	items map[string]*epub.Item
	nav   []NavPoint
}

// OpenEPUBContainer opens EPUB bytes with github.com/taylorskalyo/goreader.
// Navigation comes from the NCX when present, else from the EPUB 3
// navigation document. Hrefs are resolved against the navigation file so
// they compare equal to manifest hrefs.
func OpenEPUBContainer(data []byte) (Container, error) {
	rc, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	if len(rc.Rootfiles) == 0 {
		return nil, errors.New("no rootfiles found in epub")
	}

	book := rc.Rootfiles[0]
	c := &epubContainer{
		book:  book,
		items: make(map[string]*epub.Item, len(book.Manifest.Items)),
	}
	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		c.items[normalizeRef(item.HREF)] = item
	}
	c.nav = readNavigation(book)
	return c, nil
}

func (c *epubContainer) Title() (string, bool) {
	title := strings.TrimSpace(c.book.Metadata.Title)
	return title, title != ""
}

func (c *epubContainer) Navigation() ([]NavPoint, bool) {
	return c.nav, len(c.nav) > 0
}

func (c *epubContainer) Spine() []SpineEntry {
	entries := make([]SpineEntry, 0, len(c.book.Spine.Itemrefs))
	for _, ref := range c.book.Spine.Itemrefs {
		if ref.Item == nil {
			// Kept so the load failure is reported rather than silently dropped.
			entries = append(entries, SpineEntry{Href: "idref:" + ref.IDREF})
			continue
		}
		entries = append(entries, SpineEntry{Href: ref.Item.HREF})
	}
	return entries
}

func (c *epubContainer) Load(ctx context.Context, href string) (Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, ok := c.items[normalizeRef(href)]
	if !ok {
		return nil, fmt.Errorf("%s is not in the manifest", href)
	}
	data, err := readItem(item, maxEntryBytes)
	if err != nil {
		return nil, err
	}
	return MarkupContent(data), nil
}

func readItem(item *epub.Item, maxBytes int64) ([]byte, error) {
	r, err := item.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s exceeds %dMB limit", item.HREF, maxBytes>>20)
	}
	return data, nil
}

// readNavigation returns the book's table of contents, or nil.
func readNavigation(book *epub.Rootfile) []NavPoint {
	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		if item.MediaType != "application/x-dtbncx+xml" {
			continue
		}
		data, err := readItem(item, 4<<20)
		if err != nil {
			break
		}
		var toc ncx
		if err := xml.Unmarshal(data, &toc); err != nil {
			break
		}
		if nav := ncxToNav(toc.NavMap.NavPoints, path.Dir(item.HREF)); len(nav) > 0 {
			return nav
		}
		break
	}

	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		if !isNavCandidate(item) {
			continue
		}
		data, err := readItem(item, 4<<20)
		if err != nil {
			continue
		}
		if nav := parseNavDocument(data, path.Dir(item.HREF)); len(nav) > 0 {
			return nav
		}
	}
	return nil
}

func isNavCandidate(item *epub.Item) bool {
	if item.MediaType != "application/xhtml+xml" {
		return false
	}
	id := strings.ToLower(item.ID)
	base := strings.ToLower(path.Base(item.HREF))
	return strings.Contains(id, "nav") || strings.Contains(id, "toc") ||
		strings.Contains(base, "nav") || strings.Contains(base, "toc")
}

// ncxToNav converts navPoints without recursing on the call stack.
func ncxToNav(points []navPoint, dir string) []NavPoint {
	type job struct {
		src []navPoint
		dst []NavPoint
	}

	out := make([]NavPoint, len(points))
	stack := []job{{src: points, dst: out}}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for i := range j.src {
			np := &j.src[i]
			j.dst[i] = NavPoint{
				Label: strings.TrimSpace(np.Label.Text),
				Href:  resolveHref(dir, np.Content.Src),
			}
			if len(np.Children) > 0 {
				j.dst[i].Children = make([]NavPoint, len(np.Children))
				stack = append(stack, job{src: np.Children, dst: j.dst[i].Children})
			}
		}
	}
	return out
}

// parseNavDocument reads the toc nav of an EPUB 3 navigation document.
func parseNavDocument(data []byte, dir string) []NavPoint {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	navs := doc.Find("nav")
	nav := navs.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.AttrOr("epub:type", ""), "toc")
	}).First()
	if nav.Length() == 0 {
		nav = navs.First()
	}
	list := nav.ChildrenFiltered("ol").First()
	if list.Length() == 0 {
		return nil
	}

	type job struct {
		list *goquery.Selection
		dst  []NavPoint
	}

	out := make([]NavPoint, list.ChildrenFiltered("li").Length())
	stack := []job{{list: list, dst: out}}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		j.list.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
			link := li.ChildrenFiltered("a").First()
			if link.Length() == 0 {
				link = li.ChildrenFiltered("span").First()
			}
			j.dst[i] = NavPoint{
				Label: strings.Join(strings.Fields(link.Text()), " "),
				Href:  resolveHref(dir, link.AttrOr("href", "")),
			}
			if sub := li.ChildrenFiltered("ol").First(); sub.Length() > 0 {
				j.dst[i].Children = make([]NavPoint, sub.ChildrenFiltered("li").Length())
				stack = append(stack, job{list: sub, dst: j.dst[i].Children})
			}
		})
	}
	return out
}

// resolveHref makes a navigation href relative to the same root as the
// manifest hrefs.
func resolveHref(dir, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.Contains(href, "://") || strings.HasPrefix(href, "#") {
		return href
	}
	return path.Join(dir, href)
}
