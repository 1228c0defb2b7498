package functional_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationRateLimit(t *testing.T) {
	conversationID := "functional-rl-1"

	for i := 1; i <= 3; i++ {
		status, body := sendRequest(t, "POST", ApiUrl+"/check/input", authHeaders(),
			map[string]interface{}{
				"content":         fmt.Sprintf("benign message %d", i),
				"conversation_id": conversationID,
			})
		require.Equal(t, http.StatusOK, status)
		assert.NotEqual(t, true, body["rate_limited"], "call %d should pass", i)
	}

	status, body := sendRequest(t, "POST", ApiUrl+"/check/input", authHeaders(),
		map[string]interface{}{
			"content":         "benign message 4",
			"conversation_id": conversationID,
		})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["rate_limited"])
	assert.Equal(t, true, body["blocked"])

	retryAfter, ok := body["retry_after_ms"].(float64)
	require.True(t, ok)
	assert.Greater(t, retryAfter, float64(0))

	reasons, ok := body["reasons"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, reasons)
	assert.Contains(t, reasons[0], "rate limit exceeded")
}

func TestConversationRateLimitIsScopedPerConversation(t *testing.T) {
	for i := 1; i <= 3; i++ {
		status, _ := sendRequest(t, "POST", ApiUrl+"/check/input", authHeaders(),
			map[string]interface{}{
				"content":         fmt.Sprintf("message %d", i),
				"conversation_id": "functional-rl-busy",
			})
		require.Equal(t, http.StatusOK, status)
	}

	// The busy conversation is exhausted; a fresh one is not.
	status, body := sendRequest(t, "POST", ApiUrl+"/check/input", authHeaders(),
		map[string]interface{}{
			"content":         "message 4",
			"conversation_id": "functional-rl-busy",
		})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["rate_limited"])

	status, body = sendRequest(t, "POST", ApiUrl+"/check/input", authHeaders(),
		map[string]interface{}{
			"content":         "first message",
			"conversation_id": "functional-rl-fresh",
		})
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, true, body["rate_limited"])
	assert.NotEqual(t, true, body["blocked"])
}

func TestStatelessChecksAreNeverRateLimited(t *testing.T) {
	for i := 1; i <= 6; i++ {
		status, body := sendRequest(t, "POST", ApiUrl+"/check/input", authHeaders(),
			map[string]interface{}{"content": fmt.Sprintf("stateless message %d", i)})
		require.Equal(t, http.StatusOK, status)
		assert.NotEqual(t, true, body["rate_limited"], "call %d should pass", i)
	}
}
