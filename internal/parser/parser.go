// Package parser extracts plain text suitable for indexing from documentation
// responses. HTML is stripped of markup and navigational boilerplate; markdown
// and plain text pass through with whitespace collapsed.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// boilerplateSelector matches elements that carry no documentation content.
const boilerplateSelector = "nav, header, footer, aside, script, style, noscript, svg"

// contentSelectors are tried in order to locate the main content region.
// Mirrors the structure of the NVIDIA documentation pages, which place the
// body under <main>, <article>, or a "content" container.
var contentSelectors = []string{"main", "article", ".content", "#content", "body"}

// ExtractHTML parses an HTML page and returns its title and plain-text
// content. Markup, scripts, and navigational boilerplate are removed and
// whitespace runs are collapsed. pageURL is used for the readability
// fallback and may be empty.
func ExtractHTML(r io.Reader, pageURL string) (title, text string, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("failed to read HTML: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title = CollapseWhitespace(doc.Find("title").First().Text())

	doc.Find(boilerplateSelector).Remove()

	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			text = CollapseWhitespace(s.Text())
			if text != "" {
				break
			}
		}
	}

	// Heavily templated pages sometimes leave nothing after stripping.
	// Fall back to readability's article extraction, then to a raw text walk.
	if text == "" {
		if t, article := extractReadable(raw, pageURL); article != "" {
			text = article
			if title == "" {
				title = t
			}
		}
	}
	if text == "" {
		text = CollapseWhitespace(rawText(raw))
	}

	return title, text, nil
}

// extractReadable runs go-readability over the raw page and returns the
// article title and collapsed text content. Returns empty strings when the
// page has no extractable article.
func extractReadable(raw []byte, pageURL string) (title, text string) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(raw), parsedURL)
	if err != nil {
		return "", ""
	}
	return CollapseWhitespace(article.Title), CollapseWhitespace(article.TextContent)
}

// rawText flattens every text node in the document. Last-resort extraction
// when neither the content selectors nor readability find anything.
func rawText(raw []byte) string {
	node, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	var buf strings.Builder
	flattenText(node, &buf)
	return buf.String()
}

// flattenText recursively collects text nodes, skipping script and style.
func flattenText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		buf.WriteString(" ")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flattenText(c, buf)
	}
}

// CollapseWhitespace replaces whitespace runs with single spaces and trims
// the result.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
