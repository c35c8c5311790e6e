// Package conversation holds the chat transcript state machine: the turn
// store, the lazily created remote session, the single-flight submission
// pipeline and the per-turn actions.
package conversation

import (
	"sync"
	"time"

	"unichatclient/internal/models"
)

// DefaultSubmitTimeout bounds a remote call when Config leaves it unset.
const DefaultSubmitTimeout = 2 * time.Minute

// Config wires the collaborators the conversation calls into.
type Config struct {
	SubmitTimeout time.Duration
	Clipboard     Clipboard
	// Sharer is optional; without it Share falls back to the clipboard.
	Sharer   Sharer
	Notifier Notifier
}

// Conversation is the entry point presentation code drives.
type Conversation struct {
	store     *Store
	sessions  *SessionManager
	timeout   time.Duration
	clipboard Clipboard
	sharer    Sharer
	notifier  Notifier

	mu     sync.Mutex
	flight uint64
	cancel func()
}

func New(store *Store, sessions *SessionManager, cfg Config) *Conversation {
	if store == nil {
		store = NewStore()
	}
	if sessions == nil {
		sessions = NewSessionManager(nil)
	}
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &Conversation{
		store:     store,
		sessions:  sessions,
		timeout:   timeout,
		clipboard: cfg.Clipboard,
		sharer:    cfg.Sharer,
		notifier:  cfg.Notifier,
	}
}

func (c *Conversation) Snapshot() models.Conversation {
	return c.store.Snapshot()
}

func (c *Conversation) Turn(id int64) (models.Turn, bool) {
	return c.store.Turn(id)
}

func (c *Conversation) Submitting() bool {
	return c.store.Submitting()
}

// Reset starts a new chat: the in-flight call is cancelled, the transcript
// cleared and the remote session dropped.
func (c *Conversation) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.flight++
	c.store.reset()
	c.sessions.Invalidate()
	c.mu.Unlock()

	// Observers are never waited on while c.mu is held.
	c.store.flush()
}
