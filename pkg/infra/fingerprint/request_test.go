package fingerprint_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/TrustRail/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureFingerprint(t *testing.T, decorate func(*http.Request)) fingerprint.Fingerprint {
	t.Helper()

	var captured fingerprint.Fingerprint
	app := fiber.New()
	app.Post("/check", func(c *fiber.Ctx) error {
		captured = fingerprint.FromRequest(c)
		return c.SendString("OK")
	})

	req := httptest.NewRequest(http.MethodPost, "/check", nil)
	if decorate != nil {
		decorate(req)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	return captured
}

func TestFromRequest_AllHeaders(t *testing.T) {
	fp := captureFingerprint(t, func(req *http.Request) {
		req.Header.Set("X-User-ID", "User-42")
		req.Header.Set("Authorization", "Bearer SECRET-token")
		req.Header.Set("X-Real-IP", "203.0.113.7")
		req.Header.Set("User-Agent", "TrustRail-SDK/1.0")
	})

	assert.Equal(t, "user-42", fp.UserID)
	assert.Equal(t, "secret-token", fp.Token)
	assert.Equal(t, "203.0.113.7", fp.IP)
	assert.Equal(t, "trustrail-sdk/1.0", fp.UserAgent)
}

func TestFromRequest_TokenFallbackHeaders(t *testing.T) {
	fp := captureFingerprint(t, func(req *http.Request) {
		req.Header.Set("X-Auth-Token", "tok-123")
	})

	assert.Equal(t, "tok-123", fp.Token)
}

func TestFromRequest_ForwardedForTakesFirstValidIP(t *testing.T) {
	fp := captureFingerprint(t, func(req *http.Request) {
		req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	})

	assert.Equal(t, "198.51.100.9", fp.IP)
}

func TestFromRequest_RejectsUnparseableForwardedIP(t *testing.T) {
	fp := captureFingerprint(t, func(req *http.Request) {
		req.Header.Set("X-Forwarded-For", "not-an-ip")
	})

	// Falls back to the connection remote address.
	assert.NotEqual(t, "not-an-ip", fp.IP)
}

func TestFromRequest_SameCallerSameID(t *testing.T) {
	decorate := func(req *http.Request) {
		req.Header.Set("X-User-ID", "alice")
		req.Header.Set("User-Agent", "curl/8.0")
	}

	first := captureFingerprint(t, decorate)
	second := captureFingerprint(t, decorate)

	assert.Equal(t, first.ID(), second.ID())
}
