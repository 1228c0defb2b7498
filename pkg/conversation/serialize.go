package conversation

import (
	"fmt"
	"time"

	"github.com/NeuralTrust/TrustRail/pkg/ratelimit"
)

// ToMap serializes the conversation to a plain key-value structure the
// caller can persist through any external mechanism. Timestamps are
// RFC 3339 strings so the map survives a JSON round trip unchanged.
func (c *Conversation) ToMap() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	turns := make([]interface{}, 0, len(c.turns))
	for _, t := range c.turns {
		entry := map[string]interface{}{
			"timestamp": t.Timestamp.Format(time.RFC3339Nano),
			"content":   t.Content,
			"answered":  t.Answered,
		}
		if t.Answered {
			entry["response"] = t.Response
		}
		if len(t.Metadata) > 0 {
			entry["metadata"] = copyMetadata(t.Metadata)
		}
		turns = append(turns, entry)
	}

	out := map[string]interface{}{
		"id":    c.id,
		"turns": turns,
	}
	if c.userID != "" {
		out["user_id"] = c.userID
	}
	if c.limits.Enabled() {
		out["rate_limit"] = map[string]interface{}{
			"per_minute": c.limits.PerMinute,
			"per_hour":   c.limits.PerHour,
		}
	}
	return out
}

// FromMap restores a conversation serialized by ToMap. Unknown keys are
// ignored; malformed turns fail loudly rather than silently dropping
// history.
func FromMap(data map[string]interface{}) (*Conversation, error) {
	id, _ := data["id"].(string)
	userID, _ := data["user_id"].(string)

	var limits ratelimit.Limits
	if raw, ok := data["rate_limit"].(map[string]interface{}); ok {
		limits.PerMinute = intFrom(raw["per_minute"])
		limits.PerHour = intFrom(raw["per_hour"])
	}

	c := New(Options{ID: id, UserID: userID, Limits: limits})

	rawTurns, ok := data["turns"].([]interface{})
	if !ok {
		if data["turns"] == nil {
			return c, nil
		}
		return nil, fmt.Errorf("conversation map has malformed turns of type %T", data["turns"])
	}

	for i, rt := range rawTurns {
		entry, ok := rt.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("turn %d is %T, expected a map", i, rt)
		}
		turn := Turn{}
		if rawTS, ok := entry["timestamp"].(string); ok {
			ts, err := time.Parse(time.RFC3339Nano, rawTS)
			if err != nil {
				return nil, fmt.Errorf("turn %d has invalid timestamp: %w", i, err)
			}
			turn.Timestamp = ts
		}
		turn.Content, _ = entry["content"].(string)
		turn.Answered, _ = entry["answered"].(bool)
		if turn.Answered {
			turn.Response, _ = entry["response"].(string)
		}
		if md, ok := entry["metadata"].(map[string]interface{}); ok {
			turn.Metadata = copyMetadata(md)
		}
		c.turns = append(c.turns, turn)
	}
	return c, nil
}

func intFrom(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
