package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader propagates request IDs across service boundaries.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is where the request ID lives in Fiber's context
	// locals. The error payload and the request logger both read it.
	RequestIDLocalKey = "request_id"
)

// RequestID ensures every request carries an ID: an incoming X-Request-ID is
// kept, otherwise a fresh UUID is generated. The ID is stored in context
// locals and echoed on the response header.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)

		return c.Next()
	}
}
