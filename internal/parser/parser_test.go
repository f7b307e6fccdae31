package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurance-rag/internal/config"
)

func TestChunkContentShortInput(t *testing.T) {
	assert.Nil(t, chunkContent("", 100, 10))
	assert.Nil(t, chunkContent("   \n ", 100, 10))
	assert.Nil(t, chunkContent("text", 0, 0))
	assert.Equal(t, []string{"short text"}, chunkContent("  short text \n", 100, 10))
}

func TestChunkContentBoundsAndOverlap(t *testing.T) {
	words := make([]string, 400)
	for i := range words {
		words[i] = "policy"
	}
	content := strings.Join(words, " ")

	chunks := chunkContent(content, 100, 20)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
		assert.NotEmpty(t, c)
	}
	assert.True(t, strings.HasSuffix(content, chunks[len(chunks)-1]))

	// consecutive windows share text
	for i := 1; i < len(chunks); i++ {
		head := chunks[i][:10]
		assert.Contains(t, chunks[i-1], head, "chunk %d should overlap chunk %d", i, i-1)
	}
}

func TestChunkContentCutsAtCleanBreak(t *testing.T) {
	content := strings.Repeat("a", 95) + " " + strings.Repeat("b", 50)
	chunks := chunkContent(content, 100, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 95), chunks[0])
}

func TestChunkContentOverlapClamped(t *testing.T) {
	content := strings.Repeat("x", 300)
	chunks := chunkContent(content, 100, 150)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}
}

func TestChunkContentKeepsRunesWhole(t *testing.T) {
	content := strings.Repeat("é", 200)
	for _, c := range chunkContent(content, 51, 10) {
		assert.True(t, strings.Trim(c, "é") == "", "chunk split a rune: %q", c)
	}
}

func TestChunkContentWindowNarrowerThanRune(t *testing.T) {
	content := strings.Repeat("日本語", 4)
	chunks := chunkContent(content, 2, 1)
	require.Len(t, chunks, 12)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk split a rune: %q", c)
		assert.Equal(t, 1, utf8.RuneCountInString(c))
	}
	assert.Equal(t, content, strings.Join(chunks, ""))
}

func TestNewParserConfigDefaults(t *testing.T) {
	p := NewParserConfig(nil)
	assert.Equal(t, defaultChunkSize, p.ChunkSize)
	assert.Equal(t, defaultChunkOverlap, p.ChunkOverlap)

	cfg := config.Defaults()
	cfg.RAG.ChunkSize = 300
	cfg.RAG.ChunkOverlap = 0
	p = NewParserConfig(&cfg)
	assert.Equal(t, 300, p.ChunkSize)
	assert.Equal(t, 0, p.ChunkOverlap)
}

const policyMarkdown = `Intro paragraph before any heading.

# Insurance Policy

Policy Number: INS-2025-001234

## 3. Exclusions

- Damage caused by floods or earthquakes
- Pre-existing medical conditions

Setext Heading
--------------

| Coverage | Limit |
|---|---|
| Hospital | $1500/day |
`

func TestSplitSections(t *testing.T) {
	sections := splitSections([]byte(policyMarkdown))
	require.Len(t, sections, 4)

	assert.Equal(t, "", sections[0].title)
	assert.Contains(t, sections[0].body, "Intro paragraph")

	assert.Equal(t, "Insurance Policy", sections[1].title)
	assert.Contains(t, sections[1].body, "INS-2025-001234")
	assert.NotContains(t, sections[1].body, "Exclusions")

	assert.Equal(t, "3. Exclusions", sections[2].title)
	assert.Contains(t, sections[2].body, "floods")

	assert.Equal(t, "Setext Heading", sections[3].title)
	assert.NotContains(t, sections[3].body, "-----")
	assert.Contains(t, sections[3].body, "$1500/day")
}

func TestParseMarkdownPrefixesHeading(t *testing.T) {
	chunks := NewParserConfig(nil).ParseMarkdown([]byte(policyMarkdown))
	require.Len(t, chunks, 4)
	assert.Equal(t, "3. Exclusions", chunks[2].Section)
	assert.True(t, strings.HasPrefix(chunks[2].Content, "3. Exclusions\n"))
	assert.Contains(t, chunks[2].Content, "earthquakes")
}

func TestParseMarkdownLongSection(t *testing.T) {
	src := "# Claims\n\n" + strings.Repeat("Claims are processed within 10-15 business days. ", 60)
	p := &ParserConfig{ChunkSize: 300, ChunkOverlap: 50}
	chunks := p.ParseMarkdown([]byte(src))
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 300)
		assert.Equal(t, "Claims", c.Section)
		assert.Equal(t, i+1, c.ChunkID)
	}
}

func TestParseDocumentText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.txt")
	require.NoError(t, os.WriteFile(path, []byte("Grace period: 30 days.\r\n\r\n\r\n\r\nLate fee: 5%.  \n"), 0o644))

	chunks, err := ParseDocument(path, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Grace period: 30 days.\n\nLate fee: 5%.", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageNumber)
}

func TestParseDocumentLatin1Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.txt")
	require.NoError(t, os.WriteFile(path, []byte("Caf\xe9 claims: 10-15 days."), 0o644))

	chunks, err := ParseDocument(path, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, utf8.ValidString(chunks[0].Content))
	assert.Equal(t, "Caf\uFFFD claims: 10-15 days.", chunks[0].Content)
}

func TestParseMarkdownInvalidUTF8(t *testing.T) {
	chunks := NewParserConfig(nil).ParseMarkdown([]byte("# Pr\xe4mie\n\nPaid yearly.\n"))
	require.Len(t, chunks, 1)
	assert.True(t, utf8.ValidString(chunks[0].Content))
	assert.Equal(t, "Pr\uFFFDmie\nPaid yearly.", chunks[0].Content)
}

func TestParseDocumentMarkdownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.md")
	require.NoError(t, os.WriteFile(path, []byte(policyMarkdown), 0o644))

	chunks, err := ParseDocument(path, nil)
	require.NoError(t, err)
	assert.Len(t, chunks, 4)
}

func TestParseDocumentUnsupported(t *testing.T) {
	_, err := ParseDocument("notes.rtf", nil)
	assert.ErrorContains(t, err, "unsupported file format: .rtf")
}

func TestParseDocumentMissingFile(t *testing.T) {
	_, err := ParseDocument(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractDocxText(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Premium &amp; fees</w:t></w:r><w:r><w:t xml:space="preserve"> apply</w:t></w:r></w:p>` +
		`<w:p w:rsidR="1"><w:r><w:t>Second</w:t></w:r></w:p><w:p></w:p></w:body>`
	assert.Equal(t, "Premium & fees apply\nSecond\n", extractDocxText(xml))
}

func TestExtractSlideText(t *testing.T) {
	xml := `<p:sp><a:t>Claims</a:t><a:t>Call 1-800-555-0199</a:t></p:sp>`
	assert.Equal(t, "Claims Call 1-800-555-0199", extractSlideText(xml))
}

func TestSheetText(t *testing.T) {
	rows := [][]string{{"Plan", "Premium"}, {"", ""}, {"Individual", "$250", ""}}
	assert.Equal(t, "Plan\tPremium\nIndividual\t$250\n", sheetText(rows))
}

func TestParseMarkdownDropsThematicBreaks(t *testing.T) {
	src := "## Renewal\n\nPolicies renew annually.\n\n---\n\n## Notice\n\nKeep this policy safe.\n"
	chunks := NewParserConfig(nil).ParseMarkdown([]byte(src))
	require.Len(t, chunks, 2)
	assert.Equal(t, "Renewal\nPolicies renew annually.", chunks[0].Content)
	assert.Equal(t, "Notice\nKeep this policy safe.", chunks[1].Content)
}
