package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/TrustRail/pkg/common"
	"github.com/NeuralTrust/TrustRail/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFingerPrintMiddleware_SetsTraceAndFingerprint(t *testing.T) {
	// Setup
	logger := logrus.New()
	fpMiddleware := middleware.NewFingerPrintMiddleware(logger)

	var traceID string
	var fingerprintID string

	app := fiber.New()
	app.Use(fpMiddleware.Middleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		if id, ok := c.Locals(common.TraceIdKey).(string); ok {
			traceID = id
		}
		if id, ok := c.Locals(common.FingerprintIdContextKey).(string); ok {
			fingerprintID = id
		}
		return c.SendString("OK")
	})

	// Test
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := app.Test(req)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, traceID)
	assert.NotEmpty(t, fingerprintID)
	assert.Equal(t, traceID, resp.Header.Get(common.InteractionIDHeader))
}

func TestFingerPrintMiddleware_StableAcrossRequests(t *testing.T) {
	// Setup
	logger := logrus.New()
	fpMiddleware := middleware.NewFingerPrintMiddleware(logger)

	var seen []string

	app := fiber.New()
	app.Use(fpMiddleware.Middleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		if id, ok := c.Locals(common.FingerprintIdContextKey).(string); ok {
			seen = append(seen, id)
		}
		return c.SendString("OK")
	})

	// Test
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("User-Agent", "Mozilla/5.0")
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	// Assert
	assert.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
}
