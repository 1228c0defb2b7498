package audit

import (
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/google/uuid"
)

// RecordType distinguishes per-guardrail entries from pipeline summaries.
type RecordType string

const (
	RecordTypeGuardrail RecordType = "guardrail"
	RecordTypeSummary   RecordType = "summary"
)

// Record is a single audit trail entry. Once enqueued it is never
// mutated by the producer; redaction works on the writer's copy.
type Record struct {
	ID             string                 `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Type           RecordType             `json:"type"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Direction      types.Direction        `json:"direction"`
	GuardrailName  string                 `json:"guardrail_name,omitempty"`
	GuardrailKind  string                 `json:"guardrail_kind,omitempty"`
	Decision       types.Decision         `json:"decision"`
	Reason         string                 `json:"reason,omitempty"`
	LatencyMs      int64                  `json:"latency_ms"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Redacted       []string               `json:"redacted,omitempty"`
}

// NewGuardrailRecord builds the audit entry for a single guardrail
// evaluation.
func NewGuardrailRecord(
	conversationID string,
	direction types.Direction,
	result types.Result,
	latency time.Duration,
) Record {
	return Record{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Type:           RecordTypeGuardrail,
		ConversationID: conversationID,
		Direction:      direction,
		GuardrailName:  result.GuardrailName,
		GuardrailKind:  result.GuardrailKind,
		Decision:       result.Decision(),
		Reason:         result.Reason,
		LatencyMs:      latency.Milliseconds(),
		Details:        result.Details,
	}
}

// NewSummaryRecord builds the audit entry for a finished pipeline run.
func NewSummaryRecord(
	conversationID string,
	direction types.Direction,
	decision types.Decision,
	reason string,
	latency time.Duration,
	details map[string]interface{},
) Record {
	return Record{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Type:           RecordTypeSummary,
		ConversationID: conversationID,
		Direction:      direction,
		Decision:       decision,
		Reason:         reason,
		LatencyMs:      latency.Milliseconds(),
		Details:        details,
	}
}
