package types

import (
	"fmt"
	"strings"
)

// Direction selects which guardrail collection a definition or an
// evaluation addresses. Input and output collections are independent:
// the same guardrail name may exist once in each, and the two instances
// are configured, toggled and reported separately.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case DirectionInput:
		return DirectionInput, nil
	case DirectionOutput:
		return DirectionOutput, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Decision is the externally visible verdict of a guardrail or of a
// whole evaluation pass. Severity ordering is block > warn > allow.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionBlock Decision = "block"
)

// Severity returns a comparable rank for a decision.
func (d Decision) Severity() int {
	switch d {
	case DecisionBlock:
		return 2
	case DecisionWarn:
		return 1
	default:
		return 0
	}
}

// ErrorPolicy decides the externally visible outcome when a guardrail
// fails at runtime (error, timeout, panic). The failure itself is logged
// and audited; the policy only controls the verdict it maps to.
type ErrorPolicy string

const (
	ErrorPolicyAllow ErrorPolicy = "allow"
	ErrorPolicyWarn  ErrorPolicy = "warn"
	ErrorPolicyBlock ErrorPolicy = "block"
)

func (p ErrorPolicy) Valid() bool {
	switch p {
	case ErrorPolicyAllow, ErrorPolicyWarn, ErrorPolicyBlock:
		return true
	}
	return false
}

// Definition is the configuration descriptor a guardrail instance is
// built from. Settings are kind-specific and decoded by the kind itself.
type Definition struct {
	Name      string                 `json:"name" mapstructure:"name"`
	Kind      string                 `json:"kind" mapstructure:"kind"`
	Direction Direction              `json:"direction" mapstructure:"direction"`
	Enabled   bool                   `json:"enabled" mapstructure:"enabled"`
	OnError   ErrorPolicy            `json:"on_error" mapstructure:"on_error"`
	Settings  map[string]interface{} `json:"settings" mapstructure:"settings"`
}

// Validate checks the descriptor fields every kind shares. Kind-specific
// settings are validated by the kind constructor.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("guardrail name is required")
	}
	if d.Kind == "" {
		return fmt.Errorf("guardrail %q: kind is required", d.Name)
	}
	if d.Direction != DirectionInput && d.Direction != DirectionOutput {
		return fmt.Errorf("guardrail %q: invalid direction %q", d.Name, d.Direction)
	}
	if d.OnError != "" && !d.OnError.Valid() {
		return fmt.Errorf("guardrail %q: invalid on_error policy %q", d.Name, d.OnError)
	}
	return nil
}

// OnErrorOrDefault returns the configured error policy, defaulting to
// block so that a misbehaving guardrail fails closed unless the operator
// opted out.
func (d Definition) OnErrorOrDefault() ErrorPolicy {
	if d.OnError == "" {
		return ErrorPolicyBlock
	}
	return d.OnError
}
