package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(RequestIDLocalKey).(string))
	})

	t.Run("generates an id when absent", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		rid := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, rid)

		// Handlers see the same id through context locals.
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, rid, string(body))
	})

	t.Run("keeps an incoming id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set(RequestIDHeader, "upstream-id-123")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "upstream-id-123", resp.Header.Get(RequestIDHeader))

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "upstream-id-123", string(body))
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))
	app.Get("/documents", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/documents", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.NotEmpty(t, entry["request_id"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/documents", entry["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), entry["status"])
	assert.NotNil(t, entry["latency"])
	assert.NotEmpty(t, entry["ts"])
}
