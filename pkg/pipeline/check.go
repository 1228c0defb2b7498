package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/NeuralTrust/TrustRail/pkg/audit"
	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustRail/pkg/types"
)

// rateLimitName identifies the synthetic result produced when a
// conversation's rate limit is exceeded. No registered kind uses it.
const rateLimitName = "rate_limit"

// CheckInput evaluates content a user sent against the input collection.
// The conversation may be nil for stateless checks.
func (p *Pipeline) CheckInput(ctx context.Context, content string, conv *conversation.Conversation) (Evaluation, error) {
	return p.check(ctx, types.DirectionInput, content, conv)
}

// CheckOutput evaluates content a model produced against the output
// collection.
func (p *Pipeline) CheckOutput(ctx context.Context, content string, conv *conversation.Conversation) (Evaluation, error) {
	return p.check(ctx, types.DirectionOutput, content, conv)
}

type outcome struct {
	result  types.Result
	err     error
	latency time.Duration
}

func (p *Pipeline) check(ctx context.Context, direction types.Direction, content string, conv *conversation.Conversation) (Evaluation, error) {
	start := p.clock()

	if conv != nil && p.limiter != nil && conv.Limits().Enabled() {
		decision, err := conv.CheckRateLimit(ctx, p.limiter)
		if err != nil {
			// A broken limiter store must not take the engine down with
			// it: log and evaluate as if the check had passed.
			p.logger.WithError(err).WithField("conversation_id", conv.ID()).
				Warn("rate limit check failed, continuing with evaluation")
		} else if decision.Exceeded {
			return p.rateLimited(direction, conv, decision.RetryAfter, start), nil
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	col := p.collections[direction]
	active := make([]types.Guardrail, 0, len(col.guardrails))
	for _, g := range col.guardrails {
		if !g.Enabled() {
			p.logger.WithField("guardrail", g.Name()).Debug("skipping disabled guardrail")
			continue
		}
		if !g.IsAvailable() {
			p.logger.WithField("guardrail", g.Name()).Warn("skipping unavailable guardrail")
			continue
		}
		active = append(active, g)
	}

	outcomes := make([]outcome, len(active))
	var grp errgroup.Group
	grp.SetLimit(p.concurrency)
	for i, g := range active {
		grp.Go(func() error {
			began := p.clock()
			result, err := p.analyze(ctx, g, content, conv)
			outcomes[i] = outcome{result: result, err: err, latency: p.clock().Sub(began)}
			return nil
		})
	}
	// Goroutines never return an error; failures live in their outcome slot.
	_ = grp.Wait()

	eval := p.merge(direction, col, active, outcomes)
	eval.Duration = p.clock().Sub(start)

	p.recordAudit(conversationID(conv), direction, eval, outcomes)
	p.recordMetrics(direction, eval, outcomes)
	return eval, nil
}

// analyze runs one guardrail, converting a panic into that guardrail's
// error so a misbehaving kind cannot abort its siblings.
func (p *Pipeline) analyze(ctx context.Context, g types.Guardrail, content string, conv *conversation.Conversation) (result types.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guardrail panicked: %v", r)
		}
	}()
	return g.Analyze(ctx, content, conv)
}

// merge resolves errors through each guardrail's on_error policy, stamps
// attribution and folds the results into the aggregate. Iteration follows
// definition order, so reasons and warnings come out deterministic no
// matter how the fan-out interleaved.
func (p *Pipeline) merge(direction types.Direction, col *collection, active []types.Guardrail, outcomes []outcome) Evaluation {
	eval := Evaluation{
		Direction: direction,
		Results:   make([]types.Result, 0, len(active)),
		Details:   make(map[string]interface{}),
	}
	for i, g := range active {
		o := outcomes[i]
		var result types.Result
		if o.err != nil {
			result = p.resolveError(direction, col.defs[g.Name()], g, o.err)
		} else {
			result = o.result.Attributed(g.Name(), g.Kind())
		}
		eval.Results = append(eval.Results, result)

		switch {
		case result.Blocked:
			eval.Blocked = true
			eval.Reasons = append(eval.Reasons, result.Reason)
		case result.Warning:
			eval.Warnings = append(eval.Warnings, result.Reason)
		}
		if len(result.Details) > 0 {
			eval.Details[result.GuardrailName] = result.Details
		}
	}
	if len(eval.Details) == 0 {
		eval.Details = nil
	}
	return eval
}

// resolveError maps a guardrail failure onto the verdict its on_error
// policy dictates. The underlying error is logged here and carried in the
// result reason; it never reaches the caller as an error.
func (p *Pipeline) resolveError(direction types.Direction, def types.Definition, g types.Guardrail, cause error) types.Result {
	policy := def.OnErrorOrDefault()
	gerr := &types.GuardrailError{
		GuardrailName: g.Name(),
		Direction:     direction,
		Policy:        policy,
		Err:           cause,
	}
	p.logger.WithError(cause).WithFields(logrus.Fields{
		"guardrail": g.Name(),
		"kind":      g.Kind(),
		"direction": direction,
		"on_error":  policy,
	}).Error("guardrail evaluation failed")

	if p.metrics && prometheus.Config.EnablePerGuardrail {
		prometheus.GuardrailErrorTotal.WithLabelValues(string(direction), g.Name(), g.Kind()).Inc()
	}

	var result types.Result
	switch policy {
	case types.ErrorPolicyAllow:
		result = types.NewAllowResult(gerr.Error())
	case types.ErrorPolicyWarn:
		result = types.NewWarnResult(gerr.Error(), 1.0)
	default:
		result = types.NewBlockResult(gerr.Error(), 1.0)
	}
	return result.Attributed(g.Name(), g.Kind())
}

// rateLimited produces the synthetic blocked evaluation for an exceeded
// conversation limit. Guardrails are not consulted; the audit trail still
// gets one guardrail-shaped record plus the summary.
func (p *Pipeline) rateLimited(direction types.Direction, conv *conversation.Conversation, retryAfter time.Duration, start time.Time) Evaluation {
	reason := fmt.Sprintf("rate limit exceeded for conversation %q, retry after %s", conv.ID(), retryAfter)
	result := types.NewBlockResult(reason, 1.0).
		WithDetails(map[string]interface{}{"retry_after_ms": retryAfter.Milliseconds()}).
		Attributed(rateLimitName, rateLimitName)

	eval := Evaluation{
		Direction:   direction,
		Blocked:     true,
		Reasons:     []string{reason},
		Details:     map[string]interface{}{rateLimitName: result.Details},
		Results:     []types.Result{result},
		RateLimited: true,
		RetryAfter:  retryAfter,
		Duration:    p.clock().Sub(start),
	}

	p.logger.WithFields(logrus.Fields{
		"conversation_id": conv.ID(),
		"direction":       direction,
		"retry_after":     retryAfter,
	}).Info("conversation rate limit exceeded")

	if p.metrics {
		prometheus.RateLimitExceededTotal.WithLabelValues("conversation").Inc()
	}
	synthetic := []outcome{{result: result}}
	p.recordAudit(conv.ID(), direction, eval, synthetic)
	p.recordMetrics(direction, eval, synthetic)
	return eval
}

// recordAudit enqueues one record per evaluated guardrail plus the run
// summary. Enqueue never blocks; the audit log counts its own drops.
func (p *Pipeline) recordAudit(conversationID string, direction types.Direction, eval Evaluation, outcomes []outcome) {
	if p.auditLog == nil {
		return
	}
	for i, result := range eval.Results {
		var latency time.Duration
		if i < len(outcomes) {
			latency = outcomes[i].latency
		}
		p.auditLog.Enqueue(audit.NewGuardrailRecord(conversationID, direction, result, latency))
	}
	p.auditLog.Enqueue(audit.NewSummaryRecord(
		conversationID,
		direction,
		eval.Decision(),
		summaryReason(eval),
		eval.Duration,
		map[string]interface{}{
			"guardrails_evaluated": len(eval.Results),
			"rate_limited":         eval.RateLimited,
		},
	))
}

func (p *Pipeline) recordMetrics(direction types.Direction, eval Evaluation, outcomes []outcome) {
	if !p.metrics {
		return
	}
	prometheus.EvaluationTotal.WithLabelValues(string(direction), string(eval.Decision())).Inc()
	if prometheus.Config.EnableLatency {
		prometheus.EvaluationLatency.WithLabelValues(string(direction)).
			Observe(float64(eval.Duration.Milliseconds()))
	}
	if prometheus.Config.EnablePerGuardrail {
		for i, result := range eval.Results {
			prometheus.GuardrailDecisionTotal.WithLabelValues(
				string(direction), result.GuardrailName, result.GuardrailKind, string(result.Decision()),
			).Inc()
			if prometheus.Config.EnableLatency && i < len(outcomes) {
				prometheus.GuardrailLatency.WithLabelValues(
					string(direction), result.GuardrailName, result.GuardrailKind,
				).Observe(float64(outcomes[i].latency.Milliseconds()))
			}
		}
	}
}

func summaryReason(eval Evaluation) string {
	switch {
	case len(eval.Reasons) > 0:
		return strings.Join(eval.Reasons, "; ")
	case len(eval.Warnings) > 0:
		return strings.Join(eval.Warnings, "; ")
	default:
		return "all guardrails passed"
	}
}

func conversationID(conv *conversation.Conversation) string {
	if conv == nil {
		return ""
	}
	return conv.ID()
}
