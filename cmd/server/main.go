package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"insurance-rag/internal/bootstrap"
	"insurance-rag/internal/config"
	"insurance-rag/internal/helper"
	"insurance-rag/internal/server"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to the config file (default "+config.DefaultPath+")")
	listenAddr := flag.String("listen", "", "Listen address (default server.listen_addr)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.SetupLogger(config.Defaults().Log)
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.SetupLogger(cfg.Log)
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading pipeline")
	}
	defer pipeline.Close()

	log.Info().
		Str("build_id", pipeline.Manifest().BuildID).
		Int("chunks", pipeline.Manifest().Count).
		Msg("Index loaded")

	if err := server.NewServer(cfg.Server.ListenAddr, pipeline, cfg.RAG.TopK).Run(ctx); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
}
