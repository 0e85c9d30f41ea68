package reader

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"
)

// fb2Paragraphs are the elements whose text makes up a section's content.
// Title paragraphs are excluded; the title becomes the chapter heading.
var fb2Paragraphs = map[string]bool{
	"p": true, "v": true, "subtitle": true, "text-author": true,
}

// fb2Inline elements do not break lines.
var fb2Inline = map[string]bool{
	"a": true, "emphasis": true, "strong": true, "style": true, "strikethrough": true,
	"sub": true, "sup": true, "code": true,
}

// extractFB2 reads a FictionBook document. Only direct child sections of
// the reading body become chapters; nested sections fold into their parent.
// The XML declaration's encoding (windows-1251, koi8-r, ...) is honored.
func extractFB2(logger *zap.Logger, name string, data []byte) (*ParseResult, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &DocumentOpenError{Filename: name, Format: FormatFB2, Err: err}
	}

	title := ""
	if info := findXMLElement(doc, "title-info"); info != nil {
		if bt := firstChildElement(info, "book-title"); bt != nil {
			title = strings.Join(strings.Fields(bt.InnerText()), " ")
		}
	}
	if title == "" {
		title = titleFromFilename(name, ".fb2")
	}

	body := readingBody(doc)
	if body == nil {
		logger.Debug("no body element")
		return &ParseResult{Text: "", Chapters: []Chapter{}, Title: title}, nil
	}

	sections := childElements(body, "section")
	if len(sections) == 0 {
		raw := fb2Text(body)
		return &ParseResult{
			Text:     Normalize(raw),
			Chapters: DetectChapters(raw),
			Title:    title,
		}, nil
	}

	var (
		out      strings.Builder
		lines    strings.Builder
		chapters []Chapter
		total    int
	)
	for _, section := range sections {
		heading := ""
		if t := firstChildElement(section, "title"); t != nil {
			heading = strings.Join(strings.Fields(fb2Text(t)), " ")
		}

		paras := sectionParagraphs(section)
		content := strings.Join(paras, " ")
		words := CountWords(content)
		if words == 0 {
			continue
		}
		if heading != "" {
			chapters = append(chapters, Chapter{Title: heading, WordIndex: total})
		}
		out.WriteString(content)
		out.WriteString(" ")
		lines.WriteString(strings.Join(paras, "\n"))
		lines.WriteString("\n")
		total += words
	}

	text := Normalize(out.String())
	if len(chapters) > 0 {
		chapters = finalizeChapters(chapters, CountWords(text))
	} else {
		chapters = DetectChapters(lines.String())
	}

	return &ParseResult{Text: text, Chapters: chapters, Title: title}, nil
}

// readingBody returns the first body that is not a notes or comments body.
func readingBody(doc *xmlquery.Node) *xmlquery.Node {
	root := doc
	if fb := findXMLElement(doc, "FictionBook"); fb != nil {
		root = fb
	}
	bodies := childElements(root, "body")
	if len(bodies) == 0 {
		if b := findXMLElement(doc, "body"); b != nil {
			return b
		}
		return nil
	}
	for _, b := range bodies {
		if b.SelectAttr("name") == "" {
			return b
		}
	}
	return bodies[0]
}

// sectionParagraphs returns the whitespace-collapsed text of every
// paragraph in section, nested sections included, in document order.
func sectionParagraphs(section *xmlquery.Node) []string {
	var paras []string
	stack := []*xmlquery.Node{section}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n != section && n.Type == xmlquery.ElementNode {
			if n.Data == "title" {
				continue
			}
			if fb2Paragraphs[n.Data] {
				if t := strings.Join(strings.Fields(fb2Text(n)), " "); t != "" {
					paras = append(paras, t)
				}
				continue
			}
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			if c.Type == xmlquery.ElementNode {
				stack = append(stack, c)
			}
		}
	}
	return paras
}

// fb2Text returns the text under n with a line break around every
// non-inline element.
func fb2Text(n *xmlquery.Node) string {
	var sb strings.Builder
	var walk func(*xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		switch n.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			sb.WriteString(collapseSpaces(n.Data))
			return
		case xmlquery.CommentNode:
			return
		}
		block := n.Type == xmlquery.ElementNode && !fb2Inline[n.Data]
		if block {
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteString("\n")
		}
	}
	walk(n)
	return sb.String()
}

func childElements(n *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			out = append(out, c)
		}
	}
	return out
}

func firstChildElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

// findXMLElement is a depth-first search for the first element called name.
func findXMLElement(n *xmlquery.Node, name string) *xmlquery.Node {
	stack := []*xmlquery.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type == xmlquery.ElementNode && cur.Data == name {
			return cur
		}
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return nil
}
