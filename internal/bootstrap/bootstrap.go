// Package bootstrap assembles the pipeline components from configuration.
// Commands call into it so that no component reaches for globals.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"insurance-rag/internal/chromemdb"
	"insurance-rag/internal/config"
	"insurance-rag/internal/db"
	"insurance-rag/internal/embedding"
	"insurance-rag/internal/index"
	"insurance-rag/internal/llmservice"
	"insurance-rag/internal/metrics"
	"insurance-rag/internal/rag"
)

// NewStore returns the vector store selected by rag.backend and a function
// that releases it.
func NewStore(cfg *config.Config) (index.Store, func(), error) {
	switch cfg.RAG.Backend {
	case "chromem":
		return chromemdb.NewStore(cfg.RAG.Compress, cfg.RAG.EncryptionKey), func() {}, nil
	case "postgres":
		bunDB, err := db.ConnectDB(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		closeDB := func() {
			if err := bunDB.Close(); err != nil {
				log.Warn().Err(err).Msg("Closing database")
			}
		}
		return db.NewStore(bunDB), closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown rag backend %q", cfg.RAG.Backend)
	}
}

// Pipeline is a loaded question answering pipeline.
type Pipeline struct {
	*rag.RAG
	Close func()
}

// NewPipeline loads the index named in cfg and connects the embedder and the
// answer generator. With instrument set, generation is recorded in metrics.
func NewPipeline(ctx context.Context, cfg *config.Config, instrument bool, opts ...llmservice.Option) (*Pipeline, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	generator, err := llmservice.NewGenerator(&cfg.LLM, opts...)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	loaded, err := index.NewLoader(store).Load(ctx, cfg.RAG.IndexPath, cfg.RAG.MetaPath)
	if err != nil {
		closeStore()
		return nil, err
	}

	var answerer rag.AnswerGenerator = generator
	if instrument {
		answerer = metrics.NewGenerator(generator, generator.Model())
		metrics.IndexChunks.Set(float64(len(loaded.Chunks)))
	}

	pipeline, err := rag.NewRAG(embedder, loaded, answerer)
	if err != nil {
		closeStore()
		return nil, err
	}
	return &Pipeline{RAG: pipeline, Close: closeStore}, nil
}
