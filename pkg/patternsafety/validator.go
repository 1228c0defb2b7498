package patternsafety

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"
)

var (
	ErrPatternTooLong       = errors.New("pattern exceeds maximum length")
	ErrGroupsTooDeep        = errors.New("pattern group nesting exceeds maximum depth")
	ErrNestedQuantifier     = errors.New("pattern has a quantified group containing another quantifier")
	ErrDuplicateAlternation = errors.New("pattern has a quantified alternation with duplicate branches")
	ErrRepeatTooLarge       = errors.New("pattern has a bounded repetition above the maximum count")
	ErrCompileBudget        = errors.New("pattern compilation exceeded its time budget")
)

const (
	defaultMaxPatternLength = 1024
	defaultMaxGroupDepth    = 8
	defaultMaxRepeatCount   = 256
	defaultCompileBudget    = 100 * time.Millisecond
	defaultMatchBudget      = 50 * time.Millisecond
)

// Validator gates caller-supplied patterns before any guardrail may use
// them: a static complexity scan, a compile step under a wall-clock
// budget, and a per-match execution budget on the compiled pattern.
type Validator struct {
	logger *logrus.Logger

	maxPatternLength int
	maxGroupDepth    int
	maxRepeatCount   int
	compileBudget    time.Duration
	matchBudget      time.Duration
}

type Opts struct {
	MaxPatternLength int
	MaxGroupDepth    int
	MaxRepeatCount   int
	CompileBudget    time.Duration
	MatchBudget      time.Duration
}

func NewValidator(logger *logrus.Logger, opts *Opts) *Validator {
	v := &Validator{
		logger:           logger,
		maxPatternLength: defaultMaxPatternLength,
		maxGroupDepth:    defaultMaxGroupDepth,
		maxRepeatCount:   defaultMaxRepeatCount,
		compileBudget:    defaultCompileBudget,
		matchBudget:      defaultMatchBudget,
	}
	if opts != nil {
		if opts.MaxPatternLength > 0 {
			v.maxPatternLength = opts.MaxPatternLength
		}
		if opts.MaxGroupDepth > 0 {
			v.maxGroupDepth = opts.MaxGroupDepth
		}
		if opts.MaxRepeatCount > 0 {
			v.maxRepeatCount = opts.MaxRepeatCount
		}
		if opts.CompileBudget > 0 {
			v.compileBudget = opts.CompileBudget
		}
		if opts.MatchBudget > 0 {
			v.matchBudget = opts.MatchBudget
		}
	}
	return v
}

// Validate runs the static complexity scan and a budgeted compile. A nil
// return means the pattern may be compiled for matching.
func (v *Validator) Validate(pattern string) error {
	if err := v.analyze(pattern); err != nil {
		return err
	}
	_, err := v.compileWithBudget(pattern)
	return err
}

// Compile validates the pattern and returns a matcher whose per-match
// execution time is capped. Every guardrail accepting custom patterns
// must construct its matchers through here.
func (v *Validator) Compile(pattern string) (*SafePattern, error) {
	if err := v.analyze(pattern); err != nil {
		return nil, err
	}
	re, err := v.compileWithBudget(pattern)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = v.matchBudget
	return &SafePattern{
		pattern: pattern,
		re:      re,
		logger:  v.logger,
	}, nil
}

// compileWithBudget compiles on a separate goroutine so a pathological
// pattern cannot stall the caller past the budget. The goroutine is
// abandoned on timeout; the length cap bounds how long it can live.
func (v *Validator) compileWithBudget(pattern string) (*regexp2.Regexp, error) {
	type compiled struct {
		re  *regexp2.Regexp
		err error
	}
	done := make(chan compiled, 1)
	go func() {
		re, err := regexp2.Compile(pattern, regexp2.None)
		done <- compiled{re: re, err: err}
	}()

	timer := time.NewTimer(v.compileBudget)
	defer timer.Stop()

	select {
	case c := <-done:
		if c.err != nil {
			return nil, fmt.Errorf("pattern %q does not compile: %w", pattern, c.err)
		}
		return c.re, nil
	case <-timer.C:
		if v.logger != nil {
			v.logger.WithField("pattern_length", len(pattern)).
				Warn("pattern compilation exceeded budget")
		}
		return nil, ErrCompileBudget
	}
}
