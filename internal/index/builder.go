package index

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"insurance-rag/internal/embedding"
	"insurance-rag/internal/helper"
	"insurance-rag/internal/models"
)

// Builder embeds a corpus and persists the index/metadata pair.
type Builder struct {
	embedder embedding.Embedder
	store    Store
	now      func() time.Time
}

func NewBuilder(embedder embedding.Embedder, store Store) *Builder {
	return &Builder{embedder: embedder, store: store, now: time.Now}
}

// BuildAndSaveIndex embeds all chunks in one batch, saves the vectors to
// indexPath and the chunk text to metaPath. The index is written first and
// the metadata last; both are replaced atomically.
func (b *Builder) BuildAndSaveIndex(ctx context.Context, chunks []string, indexPath, metaPath string) (Manifest, error) {
	const op = "build index"

	if len(chunks) == 0 {
		return Manifest{}, models.ValidationError(op, fmt.Errorf("corpus: %w", models.ErrEmptyInput))
	}
	for i, c := range chunks {
		if strings.TrimSpace(c) == "" {
			return Manifest{}, models.ValidationError(op, fmt.Errorf("chunk %d: %w", i, models.ErrEmptyInput))
		}
		// The metadata file is JSON, which cannot carry invalid UTF-8 unchanged.
		if !utf8.ValidString(c) {
			return Manifest{}, models.ValidationError(op, fmt.Errorf("chunk %d is not valid UTF-8", i))
		}
	}

	vectors, err := b.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return Manifest{}, models.UpstreamError(op, err)
	}

	buildID, err := helper.GenerateUUID()
	if err != nil {
		return Manifest{}, err
	}
	manifest := Manifest{
		BuildID:   buildID,
		Model:     b.embedder.Model(),
		Dimension: len(vectors[0]),
		Count:     len(chunks),
		Checksum:  Checksum(chunks),
		CreatedAt: b.now().UTC(),
	}

	if err := b.store.Save(ctx, indexPath, manifest, chunks, vectors); err != nil {
		return Manifest{}, models.IOError(op, fmt.Errorf("saving index: %w", err))
	}
	if err := WriteMetadata(metaPath, Metadata{Manifest: manifest, Chunks: chunks}); err != nil {
		return Manifest{}, models.IOError(op, fmt.Errorf("saving metadata: %w", err))
	}

	log.Info().
		Str("build_id", manifest.BuildID).
		Str("model", manifest.Model).
		Int("chunks", manifest.Count).
		Int("dimension", manifest.Dimension).
		Msg("Index built")
	return manifest, nil
}
