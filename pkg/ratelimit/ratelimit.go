package ratelimit

import (
	"context"
	"time"
)

// Limits bounds request volume for one identity key. A zero value means
// the corresponding window is not enforced.
type Limits struct {
	PerMinute int `json:"per_minute" mapstructure:"per_minute"`
	PerHour   int `json:"per_hour" mapstructure:"per_hour"`
}

// Enabled reports whether any window is configured.
func (l Limits) Enabled() bool {
	return l.PerMinute > 0 || l.PerHour > 0
}

// Retention is the largest configured window; timestamps older than this
// are never needed again and may be pruned.
func (l Limits) Retention() time.Duration {
	if l.PerHour > 0 {
		return time.Hour
	}
	return time.Minute
}

// Decision is the outcome of a single check-and-record call.
type Decision struct {
	Exceeded   bool
	Remaining  int
	RetryAfter time.Duration
}

// Store maintains sliding-window counters per identity key.
//
// CheckAndRecord prunes stale timestamps, compares the in-window counts
// against the limits and, only when no limit is exceeded, records the
// current call. Check and record are one atomic operation: two
// concurrent calls against a fresh key with a limit of one can never
// both pass.
type Store interface {
	CheckAndRecord(ctx context.Context, key string, limits Limits) (Decision, error)
}
