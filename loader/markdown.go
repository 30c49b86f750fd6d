package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor parses Markdown with goldmark and emits plain text that
// keeps headings (as '#'-prefixed lines) and paragraph breaks, so the
// chunker can section the document.
type MarkdownExtractor struct{}

var _ Extractor = (*MarkdownExtractor)(nil)

func (MarkdownExtractor) Extract(content []byte) (Extracted, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(content))

	var out strings.Builder
	var headings []string

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(nodeText(node, content))
			if title == "" {
				continue
			}
			headings = append(headings, title)
			if out.Len() > 0 {
				out.WriteString("\n\n")
			}
			out.WriteString(strings.Repeat("#", node.Level))
			out.WriteString(" ")
			out.WriteString(title)

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			// Code bodies stay verbatim; chunk boundaries inside code are
			// worse than long chunks.
			body := blockLines(n, content)
			if body == "" {
				continue
			}
			if out.Len() > 0 {
				out.WriteString("\n\n")
			}
			out.WriteString(body)

		case *ast.List:
			items := listItems(node, content)
			if len(items) == 0 {
				continue
			}
			if out.Len() > 0 {
				out.WriteString("\n\n")
			}
			out.WriteString(strings.Join(items, "\n"))

		default:
			t := nodeText(n, content)
			if t == "" {
				continue
			}
			if out.Len() > 0 {
				out.WriteString("\n\n")
			}
			out.WriteString(t)
		}
	}

	return Extracted{
		Text:     strings.TrimSpace(out.String()),
		Headings: headings,
	}, nil
}

// nodeText gets the text content of a goldmark AST node, including nested
// inlines.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		return strings.TrimSpace(blockLines(n, src))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		default:
			if s := nodeText(c, src); s != "" {
				if buf.Len() > 0 && c.Type() == ast.TypeBlock {
					buf.WriteString("\n")
				}
				buf.WriteString(s)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// blockLines joins the raw source lines of a block node.
func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// listItems renders each list item as a "- " line so list structure survives
// into the chunker's structural scoring.
func listItems(list *ast.List, src []byte) []string {
	var items []string
	i := 0
	for li := list.FirstChild(); li != nil; li = li.NextSibling() {
		t := nodeText(li, src)
		if t == "" {
			continue
		}
		if list.IsOrdered() {
			i++
			items = append(items, fmt.Sprintf("%d. %s", i, t))
		} else {
			items = append(items, "- "+t)
		}
	}
	return items
}
