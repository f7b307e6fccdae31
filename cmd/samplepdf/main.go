package main

import (
	"flag"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"insurance-rag/internal/config"
	"insurance-rag/internal/helper"
	"insurance-rag/internal/policydoc"
)

func main() {
	_ = godotenv.Load()

	out := flag.String("out", policydoc.DefaultPath, "Where to write the policy PDF")
	validate := flag.Bool("validate", true, "Validate the written PDF")
	flag.Parse()

	helper.SetupLogger(config.Defaults().Log)

	if err := policydoc.WriteFile(*out); err != nil {
		log.Fatal().Err(err).Msg("Error writing policy PDF")
	}
	if !*validate {
		return
	}

	pages, err := policydoc.Validate(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("Policy PDF is invalid")
	}
	log.Info().Str("path", *out).Int("pages", pages).Msg("Document contains the policy knowledge base")
}
