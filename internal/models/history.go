package models

// HistoryRole is the role vocabulary of the remote model's history.
type HistoryRole string

const (
	HistoryUser  HistoryRole = "user"
	HistoryModel HistoryRole = "model"
)

// HistoryEntry seeds a remote conversation session with one prior turn.
type HistoryEntry struct {
	Role HistoryRole `json:"role"`
	Text string      `json:"text"`
}

// Conversation is a point-in-time copy of the conversation state.
type Conversation struct {
	ID         string `json:"conversation_id"`
	Submitting bool   `json:"submitting"`
	Turns      []Turn `json:"turns"`
}
