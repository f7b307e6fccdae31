package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "./configs/config.yaml"

	defaultChunkSize    = 1000 // bytes
	defaultChunkOverlap = 200  // bytes
	defaultTopK         = 4
	defaultTemperature  = 0.7
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// LLMConfig describes either the chat model or the embedding model.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
	KeyEnv   string `yaml:"key_env"`
	// Temperature is a pointer so that an explicit 0 survives; nil keeps the
	// generator default.
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Dimension   int      `yaml:"dimension"`
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	Backend       string `yaml:"backend"`
	IndexPath     string `yaml:"index_path"`
	MetaPath      string `yaml:"meta_path"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Defaults returns a configuration that works against Groq for answers and a
// local Ollama for embeddings.
func Defaults() Config {
	temperature := defaultTemperature
	return Config{
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			KeyEnv:      "GROQ_API_KEY",
			Temperature: &temperature,
			MaxTokens:   1024,
		},
		EmbedLLM: LLMConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "all-minilm",
		},
		RAG: RAGConfig{
			ChunkSize:    defaultChunkSize,
			ChunkOverlap: defaultChunkOverlap,
			TopK:         defaultTopK,
			Backend:      "chromem",
			IndexPath:    "./data/index.gob",
			MetaPath:     "./data/meta.json",
		},
		Database: DatabaseConfig{
			Driver: "pg",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies
// environment overrides and validates the result. A missing file at the
// default path is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.LLM.Key = resolveKey(cfg.LLM)
	cfg.EmbedLLM.Key = resolveKey(cfg.EmbedLLM)

	if v := os.Getenv("RAG_INDEX_PATH"); v != "" {
		cfg.RAG.IndexPath = v
	}
	if v := os.Getenv("RAG_META_PATH"); v != "" {
		cfg.RAG.MetaPath = v
	}
	if v := os.Getenv("RAG_BACKEND"); v != "" {
		cfg.RAG.Backend = v
	}
	if v := os.Getenv("RAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.RAG.TopK = k
		}
	}
	if v := os.Getenv("RAG_ENCRYPTION_KEY"); v != "" {
		cfg.RAG.EncryptionKey = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// resolveKey prefers the environment variable named by KeyEnv over an inline key.
func resolveKey(c LLMConfig) string {
	if c.KeyEnv != "" {
		if v := os.Getenv(c.KeyEnv); v != "" {
			return v
		}
	}
	return c.Key
}

// Validate checks ranges and enumerations. Missing credentials are reported
// by the components that need them.
func (c *Config) Validate() error {
	var errs []error
	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize))
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap))
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("llm.temperature must be in [0, 2], got %g", *t))
	}
	if c.RAG.TopK < 1 {
		errs = append(errs, fmt.Errorf("rag.top_k must be >= 1, got %d", c.RAG.TopK))
	}
	switch c.RAG.Backend {
	case "chromem":
		if c.RAG.IndexPath == "" {
			errs = append(errs, errors.New("rag.index_path is required for the chromem backend"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("rag.backend must be chromem or postgres, got %q", c.RAG.Backend))
	}
	if c.RAG.MetaPath == "" {
		errs = append(errs, errors.New("rag.meta_path is required"))
	}
	if k := len(c.RAG.EncryptionKey); k != 0 && k != 32 {
		errs = append(errs, fmt.Errorf("rag.encryption_key must be 32 bytes, got %d", k))
	}
	switch c.Database.Driver {
	case "pg", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be pg or postgres, got %q", c.Database.Driver))
	}
	if c.LLM.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be >= 1, got %d", c.LLM.MaxTokens))
	}
	return errors.Join(errs...)
}
