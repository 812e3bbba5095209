package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractMarkdown returns the title and plain-text content of a markdown
// document. The title comes from the first H1 heading, falling back to a
// YAML frontmatter "title:" entry. The body passes through with whitespace
// collapsed; markdown syntax tokenizes harmlessly for indexing purposes.
func ExtractMarkdown(content []byte) (string, string) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(content))

	title := firstHeadingTitle(doc, content)
	if title == "" {
		title = frontmatterTitle(content)
	}

	return title, CollapseWhitespace(string(content))
}

// firstHeadingTitle returns the text of the first level-1 heading.
func firstHeadingTitle(doc ast.Node, source []byte) string {
	for walker := doc.FirstChild(); walker != nil; walker = walker.NextSibling() {
		heading, ok := walker.(*ast.Heading)
		if !ok || heading.Level != 1 {
			continue
		}
		if t := headingText(heading, source); t != "" {
			return t
		}
	}
	return ""
}

// headingText extracts the plain text of a heading node.
func headingText(node ast.Node, source []byte) string {
	var buf strings.Builder
	for walker := node.FirstChild(); walker != nil; walker = walker.NextSibling() {
		switch n := walker.(type) {
		case *ast.Text:
			segment := n.Segment
			if segment.Start < len(source) && segment.Stop <= len(source) {
				buf.Write(segment.Value(source))
			}
		case *ast.Link, *ast.Emphasis, *ast.CodeSpan:
			buf.WriteString(headingText(walker, source))
		}
	}
	return CollapseWhitespace(buf.String())
}

// frontmatterTitle pulls the title out of a YAML frontmatter block, if any.
func frontmatterTitle(content []byte) string {
	s := string(content)
	if !strings.HasPrefix(s, "---") {
		return ""
	}

	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "---" {
			return ""
		}
		if strings.HasPrefix(line, "title:") {
			title := strings.TrimSpace(strings.TrimPrefix(line, "title:"))
			return strings.Trim(title, "\"'")
		}
	}
	return ""
}
