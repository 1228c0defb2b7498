package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/ratelimit"
	"github.com/google/uuid"
)

var (
	// ErrNoPendingPrompt is returned when a response turn is added
	// while the most recent prompt has already been answered (or no
	// turn exists at all). This is a caller bug, never a race to be
	// papered over.
	ErrNoPendingPrompt = errors.New("no pending prompt to attach the response to")
)

// TurnType distinguishes the two halves of an exchange.
type TurnType string

const (
	TurnTypePrompt   TurnType = "prompt"
	TurnTypeResponse TurnType = "response"
)

// Turn is one exchange slot: a prompt and, once answered, its response.
// Appended turns are never removed or reordered; a response fills the
// pending slot in place.
type Turn struct {
	Timestamp time.Time              `json:"timestamp"`
	Content   string                 `json:"content"`
	Response  string                 `json:"response,omitempty"`
	Answered  bool                   `json:"answered"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Conversation is the multi-turn state for one logical session. All
// mutation goes through its methods; a single lock per instance
// serializes concurrent callers so updates are never lost and reads are
// never torn.
type Conversation struct {
	mu     sync.RWMutex
	id     string
	userID string
	turns  []Turn
	limits ratelimit.Limits
}

type Options struct {
	ID     string
	UserID string
	Limits ratelimit.Limits
}

func New(opts Options) *Conversation {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	return &Conversation{
		id:     id,
		userID: opts.UserID,
		limits: opts.Limits,
	}
}

func (c *Conversation) ID() string {
	return c.id
}

func (c *Conversation) UserID() string {
	return c.userID
}

func (c *Conversation) Limits() ratelimit.Limits {
	return c.limits
}

// AddTurn records one half of an exchange. A prompt appends a new turn.
// A response fills the most recent unanswered prompt and leaves the turn
// count unchanged; adding a response with no pending prompt returns
// ErrNoPendingPrompt.
func (c *Conversation) AddTurn(content string, turnType TurnType, metadata map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch turnType {
	case TurnTypePrompt:
		c.turns = append(c.turns, Turn{
			Timestamp: time.Now().UTC(),
			Content:   content,
			Metadata:  copyMetadata(metadata),
		})
		return nil
	case TurnTypeResponse:
		if len(c.turns) == 0 {
			return ErrNoPendingPrompt
		}
		last := &c.turns[len(c.turns)-1]
		if last.Answered {
			return ErrNoPendingPrompt
		}
		last.Response = content
		last.Answered = true
		for k, v := range metadata {
			if last.Metadata == nil {
				last.Metadata = make(map[string]interface{})
			}
			last.Metadata[k] = v
		}
		return nil
	default:
		return fmt.Errorf("unknown turn type %q", turnType)
	}
}

// Len reports the number of turns (exchange slots, answered or not).
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// History returns a copy of the most recent turns, oldest first. A
// non-positive limit returns the full history.
func (c *Conversation) History(limit int) []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(c.turns) {
		start = len(c.turns) - limit
	}
	out := make([]Turn, len(c.turns)-start)
	copy(out, c.turns[start:])
	return out
}

// HasPendingPrompt reports whether the newest turn is still unanswered.
func (c *Conversation) HasPendingPrompt() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns) > 0 && !c.turns[len(c.turns)-1].Answered
}

// CheckRateLimit consults the store under this conversation's key and
// limits. Conversations without configured limits always pass.
func (c *Conversation) CheckRateLimit(ctx context.Context, store ratelimit.Store) (ratelimit.Decision, error) {
	if store == nil || !c.limits.Enabled() {
		return ratelimit.Decision{Remaining: -1}, nil
	}
	return store.CheckAndRecord(ctx, "conversation:"+c.id, c.limits)
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
