package pipeline

import (
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/types"
)

// Evaluation is the aggregate outcome of one pipeline pass. Reasons and
// Warnings keep definition order; Details are keyed by guardrail name.
// The engine stays transport-agnostic: serialization is the handler's
// concern.
type Evaluation struct {
	Direction   types.Direction
	Blocked     bool
	Reasons     []string
	Warnings    []string
	Details     map[string]interface{}
	Results     []types.Result
	RateLimited bool
	RetryAfter  time.Duration
	Duration    time.Duration
}

// Decision collapses the aggregate onto the decision enum.
func (e Evaluation) Decision() types.Decision {
	switch {
	case e.Blocked:
		return types.DecisionBlock
	case len(e.Warnings) > 0:
		return types.DecisionWarn
	default:
		return types.DecisionAllow
	}
}
