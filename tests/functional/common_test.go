package functional_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func sendRequest(t *testing.T, method, url string, headers map[string]string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	resp := doRequest(t, method, url, headers, body)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]interface{}{}
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), "response was not JSON: %s", string(data))
	}
	return resp.StatusCode, out
}

func doRequest(t *testing.T, method, url string, headers map[string]string, body interface{}) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func authHeaders() map[string]string {
	return map[string]string{"X-TR-API-Key": TestAPIKey}
}
