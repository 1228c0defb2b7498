package types

// Result is the verdict a single guardrail produced for one piece of
// content. Results are value types and are never mutated after the
// guardrail returns them.
type Result struct {
	GuardrailName string                 `json:"guardrail_name"`
	GuardrailKind string                 `json:"guardrail_kind"`
	Blocked       bool                   `json:"blocked"`
	Warning       bool                   `json:"warning"`
	Confidence    float64                `json:"confidence"`
	Reason        string                 `json:"reason"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// Decision maps the result flags onto the decision enum.
func (r Result) Decision() Decision {
	switch {
	case r.Blocked:
		return DecisionBlock
	case r.Warning:
		return DecisionWarn
	default:
		return DecisionAllow
	}
}

func NewAllowResult(reason string) Result {
	return Result{Reason: reason, Confidence: 1.0}
}

func NewWarnResult(reason string, confidence float64) Result {
	return Result{Warning: true, Reason: reason, Confidence: confidence}
}

func NewBlockResult(reason string, confidence float64) Result {
	return Result{Blocked: true, Reason: reason, Confidence: confidence}
}

// WithDetails returns a copy of the result carrying the given detail map.
func (r Result) WithDetails(details map[string]interface{}) Result {
	r.Details = details
	return r
}

// Attributed returns a copy of the result stamped with the producing
// guardrail's identity. The pipeline applies this after Analyze so kinds
// do not need to fill the fields themselves.
func (r Result) Attributed(name, kind string) Result {
	r.GuardrailName = name
	r.GuardrailKind = kind
	return r
}
