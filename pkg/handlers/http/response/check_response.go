package response

import "github.com/NeuralTrust/TrustRail/pkg/pipeline"

type CheckResponse struct {
	Blocked      bool                   `json:"blocked"`
	Reasons      []string               `json:"reasons,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	RateLimited  bool                   `json:"rate_limited,omitempty"`
	RetryAfterMs int64                  `json:"retry_after_ms,omitempty"`
	DurationMs   float64                `json:"duration_ms"`
	TraceID      string                 `json:"trace_id,omitempty"`
}

func FromEvaluation(eval pipeline.Evaluation, traceID string) CheckResponse {
	return CheckResponse{
		Blocked:      eval.Blocked,
		Reasons:      eval.Reasons,
		Warnings:     eval.Warnings,
		Details:      eval.Details,
		RateLimited:  eval.RateLimited,
		RetryAfterMs: eval.RetryAfter.Milliseconds(),
		DurationMs:   float64(eval.Duration.Microseconds()) / 1000.0,
		TraceID:      traceID,
	}
}
