package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/ratelimit"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, clock *fakeClock) *ratelimit.MemoryStore {
	t.Helper()
	logger := logrus.New()
	store := ratelimit.NewMemoryStore(logger, &ratelimit.MemoryStoreOpts{
		TimeProvider: clock.Now,
	})
	t.Cleanup(store.Stop)
	return store
}

func TestMemoryStore_AllowsUnderLimit(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	store := newTestStore(t, clock)
	limits := ratelimit.Limits{PerMinute: 3}

	for i := 0; i < 3; i++ {
		decision, err := store.CheckAndRecord(context.Background(), "key-a", limits)
		require.NoError(t, err)
		assert.False(t, decision.Exceeded)
		assert.Equal(t, 2-i, decision.Remaining)
	}
}

func TestMemoryStore_BlocksAtLimit(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	store := newTestStore(t, clock)
	limits := ratelimit.Limits{PerMinute: 2}

	for i := 0; i < 2; i++ {
		decision, err := store.CheckAndRecord(context.Background(), "key-b", limits)
		require.NoError(t, err)
		require.False(t, decision.Exceeded)
	}

	decision, err := store.CheckAndRecord(context.Background(), "key-b", limits)
	require.NoError(t, err)
	assert.True(t, decision.Exceeded)
	assert.Equal(t, time.Minute, decision.RetryAfter)
}

func TestMemoryStore_WindowSlides(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	store := newTestStore(t, clock)
	limits := ratelimit.Limits{PerMinute: 1}

	decision, err := store.CheckAndRecord(context.Background(), "key-c", limits)
	require.NoError(t, err)
	require.False(t, decision.Exceeded)

	decision, err = store.CheckAndRecord(context.Background(), "key-c", limits)
	require.NoError(t, err)
	require.True(t, decision.Exceeded)

	clock.Advance(61 * time.Second)

	decision, err = store.CheckAndRecord(context.Background(), "key-c", limits)
	require.NoError(t, err)
	assert.False(t, decision.Exceeded)
}

func TestMemoryStore_HourlyLimitIndependent(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	store := newTestStore(t, clock)
	limits := ratelimit.Limits{PerMinute: 100, PerHour: 2}

	for i := 0; i < 2; i++ {
		decision, err := store.CheckAndRecord(context.Background(), "key-d", limits)
		require.NoError(t, err)
		require.False(t, decision.Exceeded)
	}

	// A minute later the per-minute window is clear but the hourly
	// budget is spent.
	clock.Advance(2 * time.Minute)
	decision, err := store.CheckAndRecord(context.Background(), "key-d", limits)
	require.NoError(t, err)
	assert.True(t, decision.Exceeded)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestMemoryStore_NoLimitsConfigured(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	store := newTestStore(t, clock)

	decision, err := store.CheckAndRecord(context.Background(), "key-e", ratelimit.Limits{})
	require.NoError(t, err)
	assert.False(t, decision.Exceeded)
	assert.Equal(t, -1, decision.Remaining)
}

func TestMemoryStore_ConcurrentCallsSingleSlot(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	store := newTestStore(t, clock)
	limits := ratelimit.Limits{PerMinute: 1}

	const callers = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	passed := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := store.CheckAndRecord(context.Background(), "key-f", limits)
			require.NoError(t, err)
			if !decision.Exceeded {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, passed, "exactly one concurrent caller may take the last slot")
}

func TestMemoryStore_SweepEvictsIdleKeys(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	logger := logrus.New()
	store := ratelimit.NewMemoryStore(logger, &ratelimit.MemoryStoreOpts{
		TimeProvider:  clock.Now,
		SweepInterval: 10 * time.Millisecond,
		IdleTTL:       time.Hour,
	})
	t.Cleanup(store.Stop)

	_, err := store.CheckAndRecord(context.Background(), "key-g", ratelimit.Limits{PerMinute: 5})
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	clock.Advance(2 * time.Hour)

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	clock := newFakeClock(time.Unix(1740730536, 0))
	store := newTestStore(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.CheckAndRecord(ctx, "key-h", ratelimit.Limits{PerMinute: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
