package api

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"insurance-rag/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type AskParams struct {
	Question string `json:"question" validate:"required"`
	K        int    `json:"k" validate:"omitempty,min=1,max=20"`
}

// Validate returns the failing fields keyed by JSON name, or nil.
func (params *AskParams) Validate() map[string]string {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[jsonName(e.Field())] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "Question":
		return "question"
	case "K":
		return "k"
	default:
		return field
	}
}

type AskResponse struct {
	Answer    string               `json:"answer"`
	Sources   []models.ScoredChunk `json:"sources"`
	Timestamp time.Time            `json:"timestamp"`
}
