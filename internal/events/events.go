// Package events carries conversation state changes to whoever renders them.
package events

import (
	"time"

	"unichatclient/internal/models"
)

// Kind names the store mutation an event reports.
type Kind string

const (
	KindTurnAppended Kind = "turn_appended"
	KindTurnUpdated  Kind = "turn_updated"
	KindReset        Kind = "reset"
)

// Event describes one mutation of the conversation state.
type Event struct {
	ConversationID string       `json:"conversation_id"`
	Kind           Kind         `json:"kind"`
	Turn           *models.Turn `json:"turn,omitempty"`
	Submitting     bool         `json:"submitting"`
	At             time.Time    `json:"at"`
}

// Publisher receives events after the state change is visible to readers.
// Publish must not block the caller for long.
type Publisher interface {
	Publish(Event)
}

// Multi fans an event out to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(ev Event) {
	f(ev)
}
