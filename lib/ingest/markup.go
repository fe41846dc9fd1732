package ingest

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	whitespace = regexp.MustCompile(`[\s\p{Zs}]+`)

	blockElements = map[string]bool{
		"p": true, "div": true, "li": true, "ul": true, "ol": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"tr": true, "table": true, "blockquote": true,
	}
	skippedElements = map[string]bool{"script": true, "style": true, "head": true}
)

// PlainText converts provider rich-text markup into plain text. Block
// elements and <br> become line breaks; runs of whitespace within a line are
// compacted and blank lines dropped.
func PlainText(markup string) (string, error) {
	if !strings.ContainsAny(markup, "<&") {
		return compactLines(markup), nil
	}

	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	buf := new(strings.Builder)
	dig(doc, buf)
	return compactLines(buf.String()), nil
}

func dig(n *html.Node, buf *strings.Builder) {
	if n == nil {
		return
	}
	switch n.Type {
	case html.TextNode:
		buf.WriteString(n.Data)
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
		if n.Data == "br" {
			buf.WriteByte('\n')
			return
		}
		if n.Data == "li" {
			buf.WriteString("\n- ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		dig(c, buf)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		buf.WriteByte('\n')
	}
}

func compactLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(whitespace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
