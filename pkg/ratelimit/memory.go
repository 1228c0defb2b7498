package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultSweepInterval = time.Minute
	defaultIdleTTL       = 2 * time.Hour
)

// MemoryStore is the in-process sliding-window store. Window state is
// kept per key behind its own lock so unrelated identities never
// contend; the shared map lock is only held while looking a key up.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]*window

	logger       *logrus.Logger
	timeProvider func() time.Time

	sweepInterval time.Duration
	idleTTL       time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

type window struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

type MemoryStoreOpts struct {
	TimeProvider  func() time.Time
	SweepInterval time.Duration
	IdleTTL       time.Duration
}

func NewMemoryStore(logger *logrus.Logger, opts *MemoryStoreOpts) *MemoryStore {
	s := &MemoryStore{
		keys:          make(map[string]*window),
		logger:        logger,
		timeProvider:  time.Now,
		sweepInterval: defaultSweepInterval,
		idleTTL:       defaultIdleTTL,
		stopCh:        make(chan struct{}),
	}
	if opts != nil {
		if opts.TimeProvider != nil {
			s.timeProvider = opts.TimeProvider
		}
		if opts.SweepInterval > 0 {
			s.sweepInterval = opts.SweepInterval
		}
		if opts.IdleTTL > 0 {
			s.idleTTL = opts.IdleTTL
		}
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) CheckAndRecord(ctx context.Context, key string, limits Limits) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if !limits.Enabled() {
		return Decision{Remaining: -1}, nil
	}

	w := s.windowFor(key)
	now := s.timeProvider()

	// Check and record under the per-key lock so concurrent callers
	// serialize: with a limit of one, exactly one of them records.
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastSeen = now
	w.prune(now.Add(-limits.Retention()))

	remaining := -1
	var exceededIn time.Duration
	exceeded := false

	if limits.PerMinute > 0 {
		count := w.countSince(now.Add(-time.Minute))
		if count >= limits.PerMinute {
			exceeded = true
			exceededIn = w.retryAfter(now, time.Minute)
		} else if r := limits.PerMinute - count - 1; remaining < 0 || r < remaining {
			remaining = r
		}
	}
	if limits.PerHour > 0 {
		count := w.countSince(now.Add(-time.Hour))
		if count >= limits.PerHour {
			exceeded = true
			if ra := w.retryAfter(now, time.Hour); ra > exceededIn {
				exceededIn = ra
			}
		} else if r := limits.PerHour - count - 1; remaining < 0 || r < remaining {
			remaining = r
		}
	}

	if exceeded {
		return Decision{Exceeded: true, RetryAfter: exceededIn}, nil
	}

	w.stamps = append(w.stamps, now)
	return Decision{Remaining: remaining}, nil
}

// Stop terminates the background sweeper. Safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Len reports how many keys currently hold window state.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

func (s *MemoryStore) windowFor(key string) *window {
	s.mu.RLock()
	w, ok := s.keys[key]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok = s.keys[key]; ok {
		return w
	}
	w = &window{}
	s.keys[key] = w
	return w
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	cutoff := s.timeProvider().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.keys {
		w.mu.Lock()
		idle := w.lastSeen.Before(cutoff)
		w.mu.Unlock()
		if idle {
			delete(s.keys, key)
		}
	}
	if s.logger != nil {
		s.logger.WithField("keys", len(s.keys)).Debug("rate limit sweep completed")
	}
}

// prune drops timestamps older than the cutoff. Stamps are appended in
// order, so the retained suffix starts at the first in-window entry.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for ; i < len(w.stamps); i++ {
		if !w.stamps[i].Before(cutoff) {
			break
		}
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func (w *window) countSince(cutoff time.Time) int {
	n := 0
	for i := len(w.stamps) - 1; i >= 0; i-- {
		if w.stamps[i].Before(cutoff) {
			break
		}
		n++
	}
	return n
}

// retryAfter is the time until the oldest in-window timestamp slides out
// of the window.
func (w *window) retryAfter(now time.Time, windowSize time.Duration) time.Duration {
	cutoff := now.Add(-windowSize)
	for _, ts := range w.stamps {
		if !ts.Before(cutoff) {
			return ts.Add(windowSize).Sub(now)
		}
	}
	return 0
}
