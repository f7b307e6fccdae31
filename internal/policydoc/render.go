package policydoc

import (
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
)

const (
	marginMM   = 19.05
	fontFamily = "Helvetica"
	bodySize   = 10
	lineHeight = 5.0
)

type rgb struct{ r, g, b int }

var (
	titleColor      = rgb{26, 54, 93}
	headingColor    = rgb{45, 55, 72}
	subheadingColor = rgb{74, 85, 104}
	stripeColor     = rgb{247, 250, 252}
)

// renderer walks a goldmark document and draws it with fpdf. A thematic
// break starts a new page.
type renderer struct {
	pdf *fpdf.Fpdf
	src []byte
	tr  func(string) string
}

func newRenderer(pdf *fpdf.Fpdf, src []byte) *renderer {
	return &renderer{pdf: pdf, src: src, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (r *renderer) render(doc ast.Node) {
	r.pdf.AddPage()
	r.pdf.Ln(25)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		r.block(n)
	}
}

func (r *renderer) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		r.heading(n)
	case *ast.Paragraph, *ast.TextBlock:
		r.paragraph(n)
	case *ast.List:
		r.list(n)
	case *east.Table:
		r.table(n)
	case *ast.ThematicBreak:
		r.pdf.AddPage()
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			r.block(c)
		}
	}
}

func (r *renderer) heading(h *ast.Heading) {
	size, color, align := 12.0, subheadingColor, "L"
	switch h.Level {
	case 1:
		size, color, align = 18, titleColor, "C"
	case 2:
		size, color = 14, headingColor
	}

	r.pdf.Ln(size / 3)
	r.pdf.SetFont(fontFamily, "B", size)
	r.pdf.SetTextColor(color.r, color.g, color.b)
	r.pdf.MultiCell(0, size/2, r.tr(r.plain(h)), "", align, false)
	r.pdf.Ln(size / 3)
	r.resetText()
}

func (r *renderer) paragraph(p ast.Node) {
	r.inline(p, "")
	r.pdf.Ln(lineHeight)
	r.pdf.Ln(2)
}

func (r *renderer) list(l *ast.List) {
	indent := marginMM + 8
	r.pdf.SetLeftMargin(indent)
	defer r.pdf.SetLeftMargin(marginMM)

	num := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if l.IsOrdered() {
			marker = strconv.Itoa(num) + "."
			num++
		}
		r.pdf.SetX(marginMM + 3)
		r.write("", marker+" ")
		r.pdf.SetX(indent)
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				r.pdf.Ln(lineHeight)
				r.list(sub)
				r.pdf.SetLeftMargin(indent)
				continue
			}
			r.inline(c, "")
		}
		r.pdf.Ln(lineHeight + 1)
	}
	r.pdf.Ln(2)
}

func (r *renderer) table(t *east.Table) {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for c := row.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, r.plain(c))
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	pageW, _ := r.pdf.GetPageSize()
	width := pageW - 2*marginMM
	cols := len(rows[0])
	widths := make([]float64, cols)
	if cols == 1 {
		widths[0] = width
	} else {
		widths[0] = width * 0.36
		for j := 1; j < cols; j++ {
			widths[j] = (width - widths[0]) / float64(cols-1)
		}
	}

	for i, cells := range rows {
		if i == 0 {
			r.pdf.SetFont(fontFamily, "B", bodySize)
			r.pdf.SetFillColor(headingColor.r, headingColor.g, headingColor.b)
			r.pdf.SetTextColor(255, 255, 255)
		} else {
			r.pdf.SetFont(fontFamily, "", bodySize-1)
			r.pdf.SetTextColor(0, 0, 0)
			if i%2 == 0 {
				r.pdf.SetFillColor(stripeColor.r, stripeColor.g, stripeColor.b)
			} else {
				r.pdf.SetFillColor(255, 255, 255)
			}
		}
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(cells) {
				cell = cells[j]
			}
			r.pdf.CellFormat(widths[j], 7, r.tr(cell), "1", 0, "C", true, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.resetText()
	r.pdf.Ln(4)
}

// inline writes the inline children of n, switching to bold or italic
// inside emphasis.
func (r *renderer) inline(n ast.Node, style string) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			r.write(style, string(c.Segment.Value(r.src)))
			if c.HardLineBreak() {
				r.pdf.Ln(lineHeight)
			} else if c.SoftLineBreak() {
				r.write(style, " ")
			}
		case *ast.Emphasis:
			s := "I"
			if c.Level >= 2 {
				s = "B"
			}
			r.inline(c, style+s)
		case *ast.AutoLink:
			r.write(style, string(c.Label(r.src)))
		default:
			r.inline(c, style)
		}
	}
}

func (r *renderer) write(style, s string) {
	r.pdf.SetFont(fontFamily, fontStyle(style), bodySize)
	r.pdf.Write(lineHeight, r.tr(s))
}

// fontStyle folds nested emphasis markers into one of "", "B", "I", "BI".
func fontStyle(markers string) string {
	style := ""
	if strings.Contains(markers, "B") {
		style += "B"
	}
	if strings.Contains(markers, "I") {
		style += "I"
	}
	return style
}

// plain returns the text under n without formatting.
func (r *renderer) plain(n ast.Node) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Text:
				b.Write(c.Segment.Value(r.src))
				if c.HardLineBreak() {
					b.WriteByte('\n')
				} else if c.SoftLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.AutoLink:
				b.Write(c.Label(r.src))
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func (r *renderer) resetText() {
	r.pdf.SetTextColor(0, 0, 0)
	r.pdf.SetFont(fontFamily, "", bodySize)
}
