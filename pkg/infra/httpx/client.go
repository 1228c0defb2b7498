package httpx

import "net/http"

//go:generate mockery --name=Client --filename=http_client_mock.go --case=underscore

// Client abstracts the HTTP transport used to call external scoring
// services so guardrails can be tested against a mock.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}
