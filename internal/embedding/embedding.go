package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"insurance-rag/internal/config"
	"insurance-rag/internal/models"
)

const defaultBatchSize = 64

// Embedder maps text to L2-normalized vectors. Model identifies the embedding
// space; vectors from different models must never be compared.
type Embedder interface {
	embeddings.Embedder
	Model() string
}

// Provider wraps a langchaingo embedder and normalizes everything it returns.
type Provider struct {
	embedder embeddings.Embedder
	model    string
}

func NewProvider(e embeddings.Embedder, model string) *Provider {
	return &Provider{embedder: e, model: model}
}

// NewEmbedder builds the provider described by cfg.
func NewEmbedder(cfg *config.LLMConfig) (*Provider, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Loaded embedding config")

	model := cfg.Provider + ":" + cfg.Model
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return newLangchainProvider(llm, model)
	case "openai":
		if cfg.Key == "" {
			return nil, models.UpstreamError("new embedder", fmt.Errorf("%w: embedding key (env %s)", models.ErrMissingCredential, cfg.KeyEnv))
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("initializing openai: %w", err)
		}
		return newLangchainProvider(llm, model)
	case "hash":
		dim := cfg.Dimension
		if dim == 0 {
			dim = DefaultHashDimension
		}
		return NewProvider(NewHashEmbedder(dim), fmt.Sprintf("hash:%d", dim)), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}

func newLangchainProvider(client embeddings.EmbedderClient, model string) (*Provider, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(defaultBatchSize))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return NewProvider(embedder, model), nil
}

func (p *Provider) Model() string { return p.model }

// EmbedDocuments embeds texts in one batch call. The result has the same
// cardinality and order as texts, and every vector has the same dimension.
func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, models.ValidationError("embed documents", models.ErrEmptyInput)
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, models.UpstreamError("embed documents", err)
	}
	if len(vectors) != len(texts) {
		return nil, models.UpstreamError("embed documents",
			fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts)))
	}

	dim := len(vectors[0])
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, models.UpstreamError("embed documents",
				fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim))
		}
		n, ok := Normalize(v)
		if !ok {
			return nil, models.ValidationError("embed documents",
				fmt.Errorf("text %d: %w", i, models.ErrZeroVector))
		}
		out[i] = n
	}
	return out, nil
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ValidationError("embed query", models.ErrEmptyInput)
	}
	v, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, models.UpstreamError("embed query", err)
	}
	if len(v) == 0 {
		return nil, models.UpstreamError("embed query", errors.New("provider returned an empty vector"))
	}
	n, ok := Normalize(v)
	if !ok {
		return nil, models.ValidationError("embed query", fmt.Errorf("%q: %w", text, models.ErrZeroVector))
	}
	return n, nil
}
