package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"insurance-rag/internal/embedding"
	"insurance-rag/internal/index"
	"insurance-rag/internal/models"
)

// AnswerGenerator turns a question and its context chunks into an answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []string) (string, error)
}

// RAG answers questions against one loaded index. It is read-only after
// construction and safe for concurrent use if its collaborators are.
type RAG struct {
	retriever *Retriever
	loaded    *index.Loaded
	generator AnswerGenerator
	source    string
}

// NewRAG refuses an embedder whose model differs from the one recorded when
// the index was built. Indexes without a recorded model are accepted.
func NewRAG(embedder embedding.Embedder, loaded *index.Loaded, generator AnswerGenerator) (*RAG, error) {
	if m := loaded.Manifest.Model; m != "" && m != embedder.Model() {
		return nil, models.ConsistencyError("new rag",
			fmt.Errorf("%w: index built with %q, querying with %q", models.ErrCorpusMismatch, m, embedder.Model()))
	}
	source := loaded.Manifest.BuildID
	if source == "" {
		source = "legacy"
	}
	return &RAG{
		retriever: NewRetriever(embedder),
		loaded:    loaded,
		generator: generator,
		source:    source,
	}, nil
}

// Query retrieves k chunks for question and asks the generator to answer
// from them. k < 1 uses DefaultTopK.
func (r *RAG) Query(ctx context.Context, question string, k int) (*models.PromptResponse, error) {
	if k < 1 {
		k = DefaultTopK
	}

	sources, err := r.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	answer, err := r.generator.GenerateAnswer(ctx, question, texts)
	if err != nil {
		return nil, err
	}

	log.Info().Str("source", r.source).Int("sources", len(sources)).Msg("Question answered")
	return &models.PromptResponse{
		Query:   question,
		Source:  r.source,
		Sources: sources,
		Content: answer,
	}, nil
}

// Retrieve returns the scored chunks for question without generating.
func (r *RAG) Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error) {
	return r.retriever.RetrieveScored(ctx, question, r.loaded.Searcher, r.loaded.Chunks, k, r.loaded.Manifest.BuildID)
}

func (r *RAG) Manifest() index.Manifest { return r.loaded.Manifest }
