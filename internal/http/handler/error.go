package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docintake/internal/async"
	"docintake/internal/http/middleware"
	"docintake/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// serviceError maps sentinel errors from the service and queue layers to
// HTTP responses. Unknown errors become an opaque 500.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotAccessible):
		// Missing and foreign documents get the same response.
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrIDRequired),
		errors.Is(err, service.ErrReaderNil),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrOwnerRequired):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrAlreadyProcessing):
		return writeError(c, fiber.StatusConflict, "ALREADY_PROCESSING", "document is already being processed")
	case errors.Is(err, service.ErrInvalidState):
		return writeError(c, fiber.StatusConflict, "INVALID_STATE", "operation not allowed in current document state")
	case errors.Is(err, service.ErrRetryLimit):
		return writeError(c, fiber.StatusConflict, "RETRY_LIMIT", "retry limit reached")
	case errors.Is(err, async.ErrQueueFull), errors.Is(err, async.ErrQueueClosed):
		return writeError(c, fiber.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "processing queue unavailable, try again later")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
