package models

import "time"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Feedback is the user's rating of an assistant turn. The zero value means no rating.
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

// Valid reports whether f is one of the settable ratings.
func (f Feedback) Valid() bool {
	return f == FeedbackLike || f == FeedbackDislike
}

// Turn is a single message in the transcript.
type Turn struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Feedback  Feedback  `json:"feedback,omitempty"`
	Pending   bool      `json:"pending"`
	CreatedAt time.Time `json:"created_at"`
}
