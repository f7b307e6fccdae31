package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"insurance-rag/internal/models"
)

type CheckHandler struct{}

func NewCheckHandler() *CheckHandler {
	return &CheckHandler{}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// Asker answers a question from the k most relevant chunks.
type Asker interface {
	Query(ctx context.Context, question string, k int) (*models.PromptResponse, error)
}

type AskHandler struct {
	asker       Asker
	defaultTopK int
	now         func() time.Time
}

func NewAskHandler(asker Asker, defaultTopK int) *AskHandler {
	return &AskHandler{asker: asker, defaultTopK: defaultTopK, now: time.Now}
}

func (h *AskHandler) HandleAsk(c *fiber.Ctx) error {
	var params AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := params.Validate(); len(errs) > 0 {
		return NewValidationError(errs)
	}

	k := params.K
	if k == 0 {
		k = h.defaultTopK
	}

	resp, err := h.asker.Query(c.UserContext(), params.Question, k)
	if err != nil {
		return err
	}

	sources := resp.Sources
	if sources == nil {
		sources = []models.ScoredChunk{}
	}
	return c.JSON(&AskResponse{
		Answer:    resp.Content,
		Sources:   sources,
		Timestamp: h.now().UTC(),
	})
}
