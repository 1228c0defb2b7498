package request

type CheckRequest struct {
	Content        string                 `json:"content"`
	ConversationID string                 `json:"conversation_id"`
	UserID         string                 `json:"user_id"`
	Metadata       map[string]interface{} `json:"metadata"`
}
