package loader

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// fakeBase anchors relative links during readability parsing of local files.
var fakeBase = &url.URL{Scheme: "file", Path: "/"}

// HTMLExtractor extracts readable article text from HTML. Pages that pass
// the readability check go through article extraction (boilerplate removal,
// title detection); everything else falls back to a plain tag-stripping walk.
// Readability on a non-article page keeps navigation and footer chrome in
// the text, so the check gates it rather than the other way around.
type HTMLExtractor struct{}

var _ Extractor = (*HTMLExtractor)(nil)

func (HTMLExtractor) Extract(content []byte) (Extracted, error) {
	if !readability.Check(bytes.NewReader(content)) {
		return stripTags(content)
	}
	article, err := readability.FromReader(bytes.NewReader(content), fakeBase)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		text := strings.TrimSpace(article.TextContent)
		var headings []string
		if article.Title != "" {
			headings = append(headings, article.Title)
			text = "# " + article.Title + "\n\n" + text
		}
		return Extracted{Text: text, Headings: headings}, nil
	}
	return stripTags(content)
}

// stripTags walks the HTML tree collecting text nodes, turning headings into
// '#'-prefixed lines and block elements into paragraph breaks.
func stripTags(content []byte) (Extracted, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return Extracted{}, err
	}

	var out strings.Builder
	var headings []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "nav", "footer":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				title := strings.TrimSpace(textOf(n))
				if title != "" {
					headings = append(headings, title)
					if out.Len() > 0 {
						out.WriteString("\n\n")
					}
					out.WriteString("# " + title)
				}
				return
			case "p", "div", "li", "blockquote", "pre", "section", "article", "tr":
				t := strings.TrimSpace(textOf(n))
				if t != "" {
					if out.Len() > 0 {
						out.WriteString("\n\n")
					}
					out.WriteString(t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return Extracted{
		Text:     strings.TrimSpace(out.String()),
		Headings: headings,
	}, nil
}

// textOf collects the text content under a node, space-joined.
func textOf(n *html.Node) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
