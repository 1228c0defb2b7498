package types

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/TrustRail/pkg/conversation"
)

// Guardrail is the contract every content check implements. Analyze must
// be safe for concurrent use across distinct contents, must treat the
// conversation as read-only, and must honor ctx cancellation: when the
// deadline expires the call returns promptly with ctx.Err() rather than
// blocking.
//
// A guardrail that is disabled or unavailable is skipped by the engine
// and contributes no result.
type Guardrail interface {
	Name() string
	Kind() string
	Direction() Direction
	Enabled() bool
	IsAvailable() bool
	Config() map[string]interface{}
	Analyze(ctx context.Context, content string, conv *conversation.Conversation) (Result, error)
}

// GuardrailError wraps a runtime failure of one guardrail together with
// the error policy that resolved it. The engine produces these; kinds
// return plain errors.
type GuardrailError struct {
	GuardrailName string
	Direction     Direction
	Policy        ErrorPolicy
	Err           error
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("guardrail %q (%s) failed, resolved as %s: %v",
		e.GuardrailName, e.Direction, e.Policy, e.Err)
}

func (e *GuardrailError) Unwrap() error {
	return e.Err
}
