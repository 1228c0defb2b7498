package common

import "time"

const (
	ConversationCacheTTL   = 30 * time.Minute
	ConversationSweepEvery = 5 * time.Minute

	ConversationIDHeader = "X-Conversation-Id"
	InteractionIDHeader  = "X-Interaction-Id"

	RecentStrategyName     = "recent"
	SuspiciousStrategyName = "suspicious"
	MixedStrategyName      = "mixed"
)
