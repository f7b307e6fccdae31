package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

type section struct {
	title string
	body  string
}

// splitSections cuts markdown source at every top-level heading. Text before
// the first heading becomes an untitled section. Bodies are kept as markdown
// so tables and lists survive.
func splitSections(src []byte) []section {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		sections []section
		title    string
		bodyFrom int
	)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		lines := h.Lines()
		headStart := max(lineStart(src, lines.At(0).Start), bodyFrom)
		sections = append(sections, section{title: title, body: string(src[bodyFrom:headStart])})

		title = headingText(src, lines)
		bodyFrom = lineEnd(src, max(lines.At(lines.Len()-1).Stop-1, 0))
		if isSetextUnderline(src, bodyFrom) {
			bodyFrom = lineEnd(src, bodyFrom)
		}
	}
	sections = append(sections, section{title: title, body: string(src[bodyFrom:])})

	out := sections[:0]
	for _, s := range sections {
		if s.title == "" && strings.TrimSpace(s.body) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func headingText(src []byte, lines *text.Segments) string {
	var parts []string
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
	}
	return strings.TrimSpace(strings.Trim(strings.Join(parts, " "), "#"))
}

func lineStart(src []byte, i int) int {
	for i > 0 && src[i-1] != '\n' {
		i--
	}
	return i
}

func lineEnd(src []byte, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	if i < len(src) {
		i++
	}
	return i
}

// isSetextUnderline reports whether the line starting at i is a run of = or -.
func isSetextUnderline(src []byte, i int) bool {
	end := lineEnd(src, i)
	line := strings.TrimSpace(string(src[i:end]))
	return line != "" && (strings.Trim(line, "=") == "" || strings.Trim(line, "-") == "")
}
