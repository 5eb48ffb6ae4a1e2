package render

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceRunRe   = regexp.MustCompile(`\s+`)
	pageMarkerRe = regexp.MustCompile(`(?i)\[page\s+\d+\]`)
	htmlSniffRe  = regexp.MustCompile(`(?i)<(html|p|h[1-6])[\s>]`)
)

// FromMarkdown parses arbitrary Markdown into the heading and paragraph
// stream used by the renderers. Every heading level becomes a "# " heading;
// list items and quoted blocks become paragraphs.
func FromMarkdown(source []byte) string {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))
	var paragraphs []Paragraph
	walkMarkdown(doc, source, &paragraphs)
	return JoinParagraphs(paragraphs)
}

func walkMarkdown(node ast.Node, source []byte, out *[]Paragraph) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Heading:
			*out = append(*out, Paragraph{Kind: KindHeading, Text: inlineText(n, source)})
		case *ast.Paragraph, *ast.TextBlock:
			*out = append(*out, Paragraph{Kind: KindParagraph, Text: inlineText(n, source)})
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			*out = append(*out, Paragraph{Kind: KindParagraph, Text: codeText(n, source)})
		case *ast.ThematicBreak, *ast.HTMLBlock:
		default:
			walkMarkdown(child, source, out)
		}
	}
}

func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *ast.Text:
				sb.Write(c.Segment.Value(source))
				if c.SoftLineBreak() || c.HardLineBreak() {
					sb.WriteByte(' ')
				}
			case *ast.String:
				sb.Write(c.Value)
			case *ast.AutoLink:
				sb.Write(c.Label(source))
			case *ast.RawHTML:
			default:
				walk(child)
			}
		}
	}
	walk(node)
	return collapseSpace(sb.String())
}

func codeText(node ast.Node, source []byte) string {
	lines := node.Lines()
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
	}
	return collapseSpace(sb.String())
}

// LooksLikeHTML reports whether uploaded text carries paragraph or heading
// markup.
func LooksLikeHTML(content string) bool {
	return htmlSniffRe.MatchString(content)
}

// FromHTML reads h1-h6 as headings, p as paragraphs and pagebreak elements
// or div.page-break as page breaks. Text in other elements becomes a
// paragraph of its own.
func FromHTML(r io.Reader) ([]Paragraph, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	body := findBody(root)
	if body == nil {
		body = root
	}

	var out []Paragraph
	collectHTML(body, &out)
	return out, nil
}

func collectHTML(parent *html.Node, out *[]Paragraph) {
	for node := parent.FirstChild; node != nil; node = node.NextSibling {
		switch node.Type {
		case html.TextNode:
			appendParagraph(out, KindParagraph, node.Data)
		case html.ElementNode:
			switch {
			case isHeading(node):
				appendParagraph(out, KindHeading, nodeText(node))
			case node.DataAtom == atom.P:
				appendParagraph(out, KindParagraph, nodeText(node))
			case isPageBreak(node):
				*out = append(*out, Paragraph{Index: len(*out), Kind: KindPageBreak})
				// An unknown element is never void, so content after a
				// <pagebreak> tag is parsed as its children.
				collectHTML(node, out)
			case containsBlocks(node):
				collectHTML(node, out)
			default:
				appendParagraph(out, KindParagraph, nodeText(node))
			}
		}
	}
}

func containsBlocks(node *html.Node) bool {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != html.ElementNode {
			continue
		}
		if child.DataAtom == atom.P || isHeading(child) || isPageBreak(child) || containsBlocks(child) {
			return true
		}
	}
	return false
}

// FromPlainText splits on "[Page N]" markers when present, giving each
// page a heading and a break; otherwise paragraphs follow blank lines.
func FromPlainText(content string) []Paragraph {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []Paragraph
	if !pageMarkerRe.MatchString(content) {
		for _, part := range strings.Split(content, "\n\n") {
			appendParagraph(&out, KindParagraph, part)
		}
		return out
	}

	markers := pageMarkerRe.FindAllStringIndex(content, -1)
	appendParagraph(&out, KindParagraph, content[:markers[0][0]])
	for i, marker := range markers {
		end := len(content)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		if len(out) > 0 {
			out = append(out, Paragraph{Kind: KindPageBreak})
		}
		label := strings.Trim(content[marker[0]:marker[1]], "[]")
		appendParagraph(&out, KindHeading, label)
		for _, part := range strings.Split(content[marker[1]:end], "\n\n") {
			appendParagraph(&out, KindParagraph, part)
		}
	}
	return out
}

func appendParagraph(out *[]Paragraph, kind ParagraphKind, text string) {
	text = collapseSpace(text)
	if text == "" {
		return
	}
	*out = append(*out, Paragraph{Index: len(*out), Kind: kind, Text: text})
}

func findBody(node *html.Node) *html.Node {
	if node.Type == html.ElementNode && node.DataAtom == atom.Body {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if body := findBody(child); body != nil {
			return body
		}
	}
	return nil
}

func isHeading(node *html.Node) bool {
	switch node.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

func isPageBreak(node *html.Node) bool {
	if strings.EqualFold(node.Data, "pagebreak") {
		return true
	}
	if node.DataAtom != atom.Div {
		return false
	}
	for _, attr := range node.Attr {
		if attr.Key == "class" && hasClass(attr.Val, "page-break") {
			return true
		}
	}
	return false
}

func hasClass(list, class string) bool {
	for _, name := range strings.Fields(list) {
		if name == class {
			return true
		}
	}
	return false
}

func nodeText(node *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br:
				sb.WriteByte(' ')
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return collapseSpace(sb.String())
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}
