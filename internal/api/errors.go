package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"insurance-rag/internal/models"
)

// ErrorHandler renders every error returned by a handler as JSON. Errors
// from the question pipeline are mapped by kind.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		apiErr Error
		valErr ValidationError
		fbrErr *fiber.Error
	)
	switch {
	case errors.As(err, &valErr):
		return c.Status(valErr.Status).JSON(valErr)
	case errors.As(err, &apiErr):
	case errors.As(err, &fbrErr):
		apiErr = NewError(fbrErr.Code, fbrErr.Message)
	default:
		apiErr = NewError(StatusFor(err), err.Error())
	}

	if apiErr.Code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Int("code", apiErr.Code).Str("path", c.Path()).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("code", apiErr.Code).Str("path", c.Path()).Msg("Request rejected")
	}
	return c.Status(apiErr.Code).JSON(apiErr)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindValidation:
		return fiber.StatusUnprocessableEntity
	case models.KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}
