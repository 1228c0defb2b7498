package common

type contextKey string

const (
	TraceIdKey              contextKey = "trace_id"
	MetadataKey             contextKey = "metadata"
	ConversationContextKey  contextKey = "conversation_id"
	ApiKeyContextKey        contextKey = "api_key"
	SubjectContextKey       contextKey = "subject"
	FingerprintIdContextKey contextKey = "fingerprint_id"
	LatencyContextKey       contextKey = "__execution_time"
)
