package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Middleware records request count and duration. Errors are passed to the
// app's error handler first so the recorded status is the one the client
// sees.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := "unknown"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		status := strconv.Itoa(c.Response().StatusCode()/100) + "xx"

		RequestsTotal.WithLabelValues(c.Method(), route, status).Inc()
		RequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return nil
	}
}

// AnswerGenerator matches the generator the question pipeline calls.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []string) (string, error)
}

// Generator wraps an AnswerGenerator with latency and outcome metrics.
type Generator struct {
	next  AnswerGenerator
	model string
}

func NewGenerator(next AnswerGenerator, model string) *Generator {
	return &Generator{next: next, model: model}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []string) (string, error) {
	start := time.Now()
	answer, err := g.next.GenerateAnswer(ctx, question, chunks)

	status := "ok"
	if err != nil {
		status = "error"
	}
	RetrievedChunks.Observe(float64(len(chunks)))
	GenerationsTotal.WithLabelValues(g.model, status).Inc()
	GenerationLatency.WithLabelValues(g.model).Observe(time.Since(start).Seconds())
	return answer, err
}
