package http

import (
	"sync"
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/common"
	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/ratelimit"
	"github.com/sirupsen/logrus"
)

// ConversationCache keeps conversations referenced by the check endpoints
// alive between requests. The engine itself is stateless; this cache is the
// only place conversation state lives, and entries idle past the TTL are
// swept so abandoned conversations cannot accumulate.
type ConversationCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry

	logger       *logrus.Logger
	defaults     ratelimit.Limits
	timeProvider func() time.Time

	ttl        time.Duration
	sweepEvery time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type cacheEntry struct {
	conv     *conversation.Conversation
	lastSeen time.Time
}

type ConversationCacheOpts struct {
	TTL           time.Duration
	SweepInterval time.Duration
	TimeProvider  func() time.Time
}

func NewConversationCache(logger *logrus.Logger, defaults ratelimit.Limits, opts *ConversationCacheOpts) *ConversationCache {
	c := &ConversationCache{
		entries:      make(map[string]*cacheEntry),
		logger:       logger,
		defaults:     defaults,
		timeProvider: time.Now,
		ttl:          common.ConversationCacheTTL,
		sweepEvery:   common.ConversationSweepEvery,
		stopCh:       make(chan struct{}),
	}
	if opts != nil {
		if opts.TTL > 0 {
			c.ttl = opts.TTL
		}
		if opts.SweepInterval > 0 {
			c.sweepEvery = opts.SweepInterval
		}
		if opts.TimeProvider != nil {
			c.timeProvider = opts.TimeProvider
		}
	}
	go c.sweepLoop()
	return c
}

// Get returns the conversation for the given id, creating it with the
// cache's default limits on first sight. The userID only applies at
// creation; an existing conversation keeps its original owner.
func (c *ConversationCache) Get(id, userID string) *conversation.Conversation {
	now := c.timeProvider()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		e.lastSeen = now
		return e.conv
	}

	conv := conversation.New(conversation.Options{
		ID:     id,
		UserID: userID,
		Limits: c.defaults,
	})
	c.entries[id] = &cacheEntry{conv: conv, lastSeen: now}
	return conv
}

// Len reports how many conversations are currently cached.
func (c *ConversationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background sweeper. Safe to call more than once.
func (c *ConversationCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *ConversationCache) sweepLoop() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *ConversationCache) sweep() {
	cutoff := c.timeProvider().Add(-c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.lastSeen.Before(cutoff) {
			delete(c.entries, id)
		}
	}
	if c.logger != nil {
		c.logger.WithField("conversations", len(c.entries)).Debug("conversation sweep completed")
	}
}
