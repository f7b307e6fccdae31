// Package policydoc produces the sample insurance policy that serves as the
// knowledge base. The policy text lives in policy.md and is rendered to PDF.
package policydoc

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"insurance-rag/internal/helper"
)

// DefaultPath is where the sample PDF is written when no path is given.
const DefaultPath = "data/knowledge.pdf"

//go:embed policy.md
var policySource []byte

// Source returns the markdown text of the policy.
func Source() []byte {
	return append([]byte(nil), policySource...)
}

// Render writes the policy as PDF to w and returns the number of pages.
func Render(w io.Writer) (int, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(policySource))

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle("Comprehensive Insurance Policy", true)
	pdf.SetAuthor("Secure Life Insurance Company", true)
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)

	r := newRenderer(pdf, policySource)
	r.render(doc)
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("rendering policy: %w", err)
	}
	pages := pdf.PageCount()
	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("writing policy: %w", err)
	}
	return pages, nil
}

// WriteFile renders the policy to path, creating parent directories.
func WriteFile(path string) error {
	if path == "" {
		path = DefaultPath
	}
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}
	var pages int
	err := helper.WriteFileAtomic(path, func(f *os.File) error {
		var err error
		pages, err = Render(f)
		return err
	})
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int("pages", pages).Msg("Insurance policy PDF created")
	return nil
}

// Validate checks the PDF at path and returns its page count.
func Validate(path string) (int, error) {
	conf := api.LoadConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, fmt.Errorf("validating %s: %w", path, err)
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting pages of %s: %w", path, err)
	}
	return pages, nil
}
