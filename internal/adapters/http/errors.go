package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/poiexplorer/internal/core/ports"
	"github.com/samirrijal/poiexplorer/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, internal_error, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// classify maps a core error onto an HTTP status and error code.
// ok is false for errors that have no client-facing meaning.
func classify(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, usecases.ErrSessionNotFound):
		return fiber.StatusNotFound, "not_found", true
	case errors.Is(err, usecases.ErrUnknownPOI),
		errors.Is(err, usecases.ErrUnknownCategory),
		errors.Is(err, usecases.ErrUnknownTheme),
		errors.Is(err, usecases.ErrInvalidTransportMode):
		return fiber.StatusUnprocessableEntity, "unprocessable", true
	case errors.Is(err, usecases.ErrPositionNotPushable):
		return fiber.StatusConflict, "conflict", true
	}
	return fiber.StatusInternalServerError, "internal_error", false
}

// errFromUsecase maps core errors onto HTTP responses.
func errFromUsecase(c *fiber.Ctx, err error) error {
	status, code, ok := classify(err)
	if !ok {
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, "internal error")
	}
	return newError(c, status, code, err.Error())
}
