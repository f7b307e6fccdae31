package index

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"insurance-rag/internal/models"
)

// Loader reopens index/metadata pairs written by a Builder.
type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// LoadIndex returns the index handle and the ordered chunk list.
func (l *Loader) LoadIndex(ctx context.Context, indexPath, metaPath string) (Searcher, []string, error) {
	loaded, err := l.Load(ctx, indexPath, metaPath)
	if err != nil {
		return nil, nil, err
	}
	return loaded.Searcher, loaded.Chunks, nil
}

// Load reads both artifacts and checks that they belong together.
func (l *Loader) Load(ctx context.Context, indexPath, metaPath string) (*Loaded, error) {
	const op = "load index"

	meta, err := ReadMetadata(metaPath)
	if err != nil {
		return nil, models.IOError(op, err)
	}
	searcher, err := l.store.Open(ctx, indexPath)
	if err != nil {
		return nil, models.IOError(op, fmt.Errorf("opening index: %w", err))
	}

	if err := Verify(meta, searcher.Len()); err != nil {
		return nil, models.ConsistencyError(op, err)
	}

	log.Debug().
		Str("build_id", meta.BuildID).
		Str("model", meta.Model).
		Int("chunks", len(meta.Chunks)).
		Msg("Index loaded")
	return &Loaded{Searcher: searcher, Chunks: meta.Chunks, Manifest: meta.Manifest}, nil
}

// Verify checks the metadata against itself and against the index size.
func Verify(meta Metadata, indexLen int) error {
	if indexLen != len(meta.Chunks) {
		return fmt.Errorf("%w: index holds %d vectors, metadata holds %d chunks",
			models.ErrCorpusMismatch, indexLen, len(meta.Chunks))
	}
	if meta.Count != len(meta.Chunks) {
		return fmt.Errorf("%w: metadata count %d, chunk list %d",
			models.ErrCorpusMismatch, meta.Count, len(meta.Chunks))
	}
	if meta.Checksum != "" && meta.Checksum != Checksum(meta.Chunks) {
		return fmt.Errorf("%w: metadata checksum does not match its chunks", models.ErrCorpusMismatch)
	}
	return nil
}
