package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"insurance-rag/internal/config"
	"insurance-rag/internal/models"
)

// ContentGenerator is the part of an LLM client the generator needs.
// langchaingo's llms.Model satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// TokenCounter reports the number of tokens in a prompt.
type TokenCounter func(text string) (int, error)

type Generator struct {
	llm         ContentGenerator
	model       string
	temperature float64
	maxTokens   int
	countTokens TokenCounter
}

type Option func(*Generator)

func WithTemperature(t float64) Option { return func(g *Generator) { g.temperature = t } }

func WithMaxTokens(n int) Option { return func(g *Generator) { g.maxTokens = n } }

// WithTokenCounter logs the prompt size of every request at debug level.
func WithTokenCounter(c TokenCounter) Option { return func(g *Generator) { g.countTokens = c } }

// NewGenerator connects to the OpenAI-compatible chat endpoint in cfg. The
// API key must already be resolved into cfg.Key; a missing key fails here,
// before any request is made.
func NewGenerator(cfg *config.LLMConfig, opts ...Option) (*Generator, error) {
	log.Debug().Interface("llmConfig", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating answer generator")

	if strings.TrimSpace(cfg.Key) == "" {
		return nil, models.UpstreamError("new generator",
			fmt.Errorf("%w: set %s", models.ErrMissingCredential, keyName(cfg)))
	}
	if cfg.Provider != "" && cfg.Provider != "openai" {
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}

	model := cfg.Model
	if model == "" {
		model = models.DefaultChatModel
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing openai client: %w", err)
	}

	base := []Option{}
	if cfg.Temperature != nil {
		base = append(base, WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		base = append(base, WithMaxTokens(cfg.MaxTokens))
	}
	return NewGeneratorWithModel(llm, model, append(base, opts...)...), nil
}

// NewGeneratorWithModel wraps an existing client.
func NewGeneratorWithModel(llm ContentGenerator, model string, opts ...Option) *Generator {
	g := &Generator{
		llm:         llm,
		model:       model,
		temperature: models.DefaultTemperature,
		maxTokens:   models.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Model() string { return g.model }

// BuildMessages assembles the system and user messages for a question. The
// chunks are joined in the given order.
func BuildMessages(question string, chunks []string) []llms.MessageContent {
	contextBlock := strings.Join(chunks, models.ContextSeparator)
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(models.UserPromptTemplate, contextBlock, question)),
	}
}

// GenerateAnswer asks the model to answer question from chunks only and
// returns the first choice verbatim. An empty chunk list is allowed; the
// model is then expected to say it has no answer.
func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []string) (string, error) {
	const op = "generate answer"

	if strings.TrimSpace(question) == "" {
		return "", models.ValidationError(op, fmt.Errorf("question: %w", models.ErrEmptyInput))
	}

	messages := BuildMessages(question, chunks)
	if g.countTokens != nil {
		g.logPromptSize(messages)
	}

	resp, err := g.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", models.UpstreamError(op, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", models.UpstreamError(op, errors.New("model returned no choices"))
	}

	log.Debug().Str("model", g.model).Int("chunks", len(chunks)).Msg("Answer generated")
	return resp.Choices[0].Content, nil
}

func (g *Generator) logPromptSize(messages []llms.MessageContent) {
	var prompt strings.Builder
	for _, m := range messages {
		for _, part := range m.Parts {
			if t, ok := part.(llms.TextContent); ok {
				prompt.WriteString(t.Text)
			}
		}
	}
	n, err := g.countTokens(prompt.String())
	if err != nil {
		log.Warn().Err(err).Msg("Counting prompt tokens")
		return
	}
	log.Debug().Int("prompt_tokens", n).Msg("Prompt size")
}

func keyName(cfg *config.LLMConfig) string {
	if cfg.KeyEnv != "" {
		return cfg.KeyEnv
	}
	return "llm.key"
}
