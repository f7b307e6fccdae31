package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"insurance-rag/internal/bootstrap"
	"insurance-rag/internal/config"
	"insurance-rag/internal/embedding"
	"insurance-rag/internal/helper"
	"insurance-rag/internal/index"
	"insurance-rag/internal/llmservice"
	"insurance-rag/internal/models"
	"insurance-rag/internal/parser"
	"insurance-rag/internal/policydoc"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to the config file (default "+config.DefaultPath+")")
	filePath := flag.String("file", "", "Path to the document to index")
	usePolicy := flag.Bool("policy", false, "Index the built-in sample policy text")
	query := flag.String("query", "", "Question to be answered")
	topK := flag.Int("k", 0, "Number of chunks to retrieve (default rag.top_k)")
	dryRun := flag.Bool("dry-run", false, "Parse and print chunks, do not embed or save")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.SetupLogger(config.Defaults().Log)
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.SetupLogger(cfg.Log)

	building := *filePath != "" || *usePolicy
	if building && *query != "" {
		log.Fatal().Msg("Please provide either a document (-file or -policy) or a question (-query), but not both")
	}

	ctx := context.Background()
	switch {
	case building:
		buildIndex(ctx, cfg, *filePath, *dryRun)
	case *query != "":
		k := *topK
		if k == 0 {
			k = cfg.RAG.TopK
		}
		answer(ctx, cfg, *query, k)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func buildIndex(ctx context.Context, cfg *config.Config, filePath string, dryRun bool) {
	var (
		chunks []models.Chunk
		err    error
	)
	if filePath == "" {
		chunks = parser.NewParserConfig(cfg).ParseMarkdown(policydoc.Source())
	} else {
		chunks, err = parser.ParseDocument(filePath, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Error parsing document")
		}
	}
	log.Info().Int("chunks", len(chunks)).Msg("Parsed content")

	if dryRun {
		helper.PrettyPrint(chunks)
		return
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	store, closeStore, err := bootstrap.NewStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer closeStore()

	manifest, err := index.NewBuilder(embedder, store).
		BuildAndSaveIndex(ctx, models.Texts(chunks), cfg.RAG.IndexPath, cfg.RAG.MetaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building index")
	}
	log.Info().
		Str("index", cfg.RAG.IndexPath).
		Str("metadata", cfg.RAG.MetaPath).
		Str("build_id", manifest.BuildID).
		Msg("Index saved")
}

func answer(ctx context.Context, cfg *config.Config, query string, k int) {
	var opts []llmservice.Option
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		if counter, err := llmservice.TiktokenCounter(); err == nil {
			opts = append(opts, llmservice.WithTokenCounter(counter))
		} else {
			log.Warn().Err(err).Msg("Token counting disabled")
		}
	}

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, false, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading pipeline")
	}
	defer pipeline.Close()

	response, err := pipeline.Query(ctx, query, k)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, s := range response.Sources {
		fmt.Printf("[%d] %.3f %s\n", s.Position, s.Score, firstLine(s.Text))
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if utf8.RuneCountInString(s) > 80 {
		s = string([]rune(s)[:77]) + "..."
	}
	return s
}
