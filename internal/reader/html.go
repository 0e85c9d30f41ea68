package reader

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements end a line in extracted text.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dt: true, atom.Figcaption: true,
	atom.Footer: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Td: true, atom.Th: true,
	atom.Tr: true,
}

// skipElements never contribute text.
var skipElements = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Template: true,
}

// contentText returns the text of a loaded spine entry with tags stripped,
// one block element per line.
func contentText(c Content) string {
	switch c := c.(type) {
	case MarkupContent:
		doc, err := html.Parse(strings.NewReader(string(c)))
		if err != nil {
			return ""
		}
		return extractTextFromHTML(bodyOrRoot(doc))
	case DocumentContent:
		if c.Root == nil {
			return ""
		}
		return extractTextFromHTML(bodyOrRoot(c.Root))
	default:
		return ""
	}
}

// bodyOrRoot returns the body element, else the document element, else n.
func bodyOrRoot(n *html.Node) *html.Node {
	if body := findElement(n, "body"); body != nil {
		return body
	}
	if n.Type == html.DocumentNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				return c
			}
		}
	}
	return n
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, name) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func extractTextFromHTML(n *html.Node) string {
	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			out.WriteString(collapseSpaces(n.Data))
			return
		case html.ElementNode:
			if skipElements[n.DataAtom] {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			out.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			out.WriteString("\n")
		}
	}
	walk(n)

	lines := strings.Split(out.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// collapseSpaces maps every whitespace run, newlines included, to one space.
func collapseSpaces(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if isSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	return sb.String()
}
