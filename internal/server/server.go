package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"insurance-rag/internal/api"
	"insurance-rag/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	listenAddr string
	asker      api.Asker
	topK       int
}

func NewServer(addr string, asker api.Asker, topK int) *Server {
	return &Server{
		listenAddr: addr,
		asker:      asker,
		topK:       topK,
	}
}

// App builds the fiber application with all routes mounted.
func (s *Server) App() *fiber.App {
	var (
		app          = fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler, DisableStartupMessage: true})
		checkHandler = api.NewCheckHandler()
		askHandler   = api.NewAskHandler(s.asker, s.topK)
		check        = app.Group("/check")
		apiv1        = app.Group("/api/v1")
	)

	app.Use(metrics.Middleware())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/ask", askHandler.HandleAsk)
	return app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	app := s.App()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.listenAddr).Msg("Server listening")
		errCh <- app.Listen(s.listenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}
