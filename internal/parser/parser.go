package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"insurance-rag/internal/config"
	"insurance-rag/internal/models"
)

type Parser interface {
	ParseDocument(filePath string) ([]models.Chunk, error)
}

type ParserConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

const (
	defaultChunkSize    = 1000 // bytes
	defaultChunkOverlap = 200  // bytes
	defaultPageNumber   = 1
)

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxTextRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	pptxTextRe      = regexp.MustCompile(`(?s)<a:t>(.*?)</a:t>`)
	slideNameRe     = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	ruleLineRe      = regexp.MustCompile(`(?m)^ {0,3}(?:(?:-[ \t]*){3,}|(?:\*[ \t]*){3,}|(?:_[ \t]*){3,})$`)
)

// NewParserConfig takes the chunking settings from cfg, falling back to the
// defaults when cfg is nil or the chunk size is unset.
func NewParserConfig(cfg *config.Config) *ParserConfig {
	if cfg == nil || cfg.RAG.ChunkSize <= 0 {
		return &ParserConfig{ChunkSize: defaultChunkSize, ChunkOverlap: defaultChunkOverlap}
	}
	p := &ParserConfig{ChunkSize: cfg.RAG.ChunkSize, ChunkOverlap: cfg.RAG.ChunkOverlap}
	if p.ChunkOverlap < 0 {
		p.ChunkOverlap = defaultChunkOverlap
	}
	return p
}

// ParseDocument extracts the text of the file at filePath and splits it into
// chunks. The reader is picked by file extension.
func ParseDocument(filePath string, cfg *config.Config) ([]models.Chunk, error) {
	return NewParserConfig(cfg).ParseDocument(filePath)
}

func (p *ParserConfig) ParseDocument(filePath string) ([]models.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var (
		chunks []models.Chunk
		err    error
	)
	switch ext {
	case ".pdf":
		chunks, err = p.parsePDF(filePath)
	case ".docx":
		chunks, err = p.parseDOCX(filePath)
	case ".pptx":
		chunks, err = p.parsePPTX(filePath)
	case ".xlsx":
		chunks, err = p.parseXLSX(filePath)
	case ".ods":
		chunks, err = p.parseODS(filePath)
	case ".txt":
		chunks, err = p.parseText(filePath)
	case ".md", ".markdown":
		chunks, err = p.parseMarkdownFile(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}

	log.Debug().Str("file", filePath).Int("chunks", len(chunks)).Msg("Parsed document")
	return chunks, nil
}

func (p *ParserConfig) parsePDF(filePath string) ([]models.Chunk, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.Chunk
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		chunks = append(chunks, p.getChunks(cleanText(pageText), i, "")...)
	}
	return chunks, nil
}

func (p *ParserConfig) parseDOCX(filePath string) ([]models.Chunk, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// DOCX has no page numbers
	content := extractDocxText(r.Editable().GetContent())
	return p.getChunks(content, defaultPageNumber, ""), nil
}

func (p *ParserConfig) parsePPTX(filePath string) ([]models.Chunk, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var chunks []models.Chunk
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.num, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", s.num, err)
		}
		chunks = append(chunks, p.getChunks(extractSlideText(string(data)), s.num, "")...)
	}
	return chunks, nil
}

func (p *ParserConfig) parseXLSX(filePath string) ([]models.Chunk, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	for sheetNum, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		chunks = append(chunks, p.getChunks(sheetText(rows), sheetNum+1, sheet.Name)...)
	}
	return chunks, nil
}

func (p *ParserConfig) parseODS(filePath string) ([]models.Chunk, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.Chunk
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		chunks = append(chunks, p.getChunks(sheetText(rows), sheetNum+1, sheetName)...)
	}
	return chunks, nil
}

func (p *ParserConfig) parseText(filePath string) ([]models.Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	// TXT has no pages
	return p.getChunks(cleanText(string(data)), defaultPageNumber, ""), nil
}

func (p *ParserConfig) parseMarkdownFile(filePath string) ([]models.Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return p.ParseMarkdown(data), nil
}

// ParseMarkdown chunks markdown source section by section, so that no chunk
// spans two headings. Every chunk of a section starts with its heading.
func (p *ParserConfig) ParseMarkdown(src []byte) []models.Chunk {
	var chunks []models.Chunk
	src = bytes.ToValidUTF8(src, []byte("\uFFFD"))
	for _, s := range splitSections(src) {
		body := cleanText(ruleLineRe.ReplaceAllString(s.body, ""))
		if body == "" {
			continue
		}
		prefix := ""
		if s.title != "" {
			prefix = s.title + "\n"
		}
		size := p.ChunkSize - len(prefix)
		if size < p.ChunkSize/2 {
			prefix, size = "", p.ChunkSize
		}
		for i, text := range chunkContent(body, size, min(p.ChunkOverlap, size/2)) {
			chunks = append(chunks, models.Chunk{
				Content:    prefix + text,
				PageNumber: defaultPageNumber,
				ChunkID:    i + 1,
				Section:    s.title,
			})
		}
	}
	return chunks
}

func extractDocxText(content string) string {
	var text strings.Builder
	for _, para := range docxParagraphRe.FindAllString(content, -1) {
		var line strings.Builder
		for _, m := range docxTextRe.FindAllStringSubmatch(para, -1) {
			line.WriteString(html.UnescapeString(m[1]))
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			text.WriteString(s + "\n")
		}
	}
	return text.String()
}

func extractSlideText(xmlContent string) string {
	var parts []string
	for _, m := range pptxTextRe.FindAllStringSubmatch(xmlContent, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.Join(parts, " ")
}

func sheetText(rows [][]string) string {
	var text strings.Builder
	for _, row := range rows {
		line := strings.TrimRight(strings.Join(row, "\t"), "\t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		text.WriteString(line + "\n")
	}
	return text.String()
}

// cleanText replaces invalid UTF-8, normalizes line endings, trims trailing
// spaces and collapses runs of blank lines.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}

// get chunks from content and page number
func (p *ParserConfig) getChunks(content string, pageNumber int, section string) []models.Chunk {
	var chunks []models.Chunk

	content = strings.ToValidUTF8(content, "\uFFFD")
	chunkStrings := chunkContent(content, p.ChunkSize, p.ChunkOverlap)
	for i, chunkString := range chunkStrings {
		chunks = append(chunks, models.Chunk{
			Content:    chunkString,
			PageNumber: pageNumber,
			ChunkID:    i + 1,
			Section:    section,
		})
	}

	return chunks
}
