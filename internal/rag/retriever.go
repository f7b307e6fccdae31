package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"insurance-rag/internal/embedding"
	"insurance-rag/internal/index"
	"insurance-rag/internal/models"
)

// DefaultTopK is the number of chunks retrieved when the caller has no
// preference.
const DefaultTopK = 4

// Retriever finds the chunks most similar to a query. It must use the same
// embedder the index was built with.
type Retriever struct {
	embedder embedding.Embedder
}

func NewRetriever(embedder embedding.Embedder) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve returns up to k chunk texts, most similar first. Empty index
// slots are skipped, so fewer than k chunks may come back.
func (r *Retriever) Retrieve(ctx context.Context, query string, searcher index.Searcher, chunks []string, k int) ([]string, error) {
	scored, err := r.RetrieveScored(ctx, query, searcher, chunks, k, "")
	if err != nil {
		return nil, err
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Text
	}
	return out, nil
}

// RetrieveScored is Retrieve with positions and scores. When buildID is
// set, every hit must carry it.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, searcher index.Searcher, chunks []string, k int, buildID string) ([]models.ScoredChunk, error) {
	const op = "retrieve"

	if k < 1 {
		return nil, models.ValidationError(op, fmt.Errorf("k must be at least 1, got %d", k))
	}
	if strings.TrimSpace(query) == "" {
		return nil, models.ValidationError(op, fmt.Errorf("query: %w", models.ErrEmptyInput))
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := searcher.Search(ctx, vec, k)
	if err != nil {
		return nil, models.IOError(op, fmt.Errorf("searching index: %w", err))
	}

	out := make([]models.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Position == index.NoMatch {
			continue
		}
		if err := checkHit(hit, chunks, buildID); err != nil {
			return nil, models.ConsistencyError(op, err)
		}
		out = append(out, models.ScoredChunk{
			Position: hit.Position,
			Score:    hit.Score,
			Text:     chunks[hit.Position],
		})
		if len(out) == k {
			break
		}
	}

	log.Debug().Str("query", query).Int("k", k).Int("hits", len(out)).Msg("Retrieved chunks")
	return out, nil
}

func checkHit(hit index.Hit, chunks []string, buildID string) error {
	if hit.Position < 0 || hit.Position >= len(chunks) {
		return fmt.Errorf("%w: position %d outside %d chunks", models.ErrCorpusMismatch, hit.Position, len(chunks))
	}
	if hit.Content != "" && hit.Content != chunks[hit.Position] {
		return fmt.Errorf("%w: stored text at position %d differs from metadata", models.ErrCorpusMismatch, hit.Position)
	}
	if buildID != "" && hit.BuildID != buildID {
		return fmt.Errorf("%w: hit from build %q, metadata from build %q", models.ErrCorpusMismatch, hit.BuildID, buildID)
	}
	return nil
}
