package conversation

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"unichatclient/internal/models"
)

// RemoteSession is a stateful exchange with the model service.
type RemoteSession interface {
	SendTurn(ctx context.Context, text string) (string, error)
}

// SessionFactory opens a remote session seeded with prior history.
type SessionFactory interface {
	NewSession(ctx context.Context, history []models.HistoryEntry) (RemoteSession, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(ctx context.Context, history []models.HistoryEntry) (RemoteSession, error)

func (f SessionFactoryFunc) NewSession(ctx context.Context, history []models.HistoryEntry) (RemoteSession, error) {
	return f(ctx, history)
}

// SessionManager is the only holder of the remote session handle.
type SessionManager struct {
	mu      sync.Mutex
	factory SessionFactory
	handle  RemoteSession
}

func NewSessionManager(factory SessionFactory) *SessionManager {
	return &SessionManager{factory: factory}
}

// GetOrCreate returns the held session, or opens one seeded from prior.
// The lock is held across creation so at most one session is opened between
// invalidations.
func (m *SessionManager) GetOrCreate(ctx context.Context, prior []models.Turn) (RemoteSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		return m.handle, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.factory == nil {
		return nil, errors.New("no session factory configured")
	}
	handle, err := m.factory.NewSession(ctx, BuildHistory(prior))
	if err != nil {
		return nil, errors.Wrap(err, "create remote session")
	}
	if handle == nil {
		return nil, errors.New("session factory returned no session")
	}
	m.handle = handle
	return handle, nil
}

// Invalidate drops the held session; the next GetOrCreate opens a fresh one.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	m.handle = nil
	m.mu.Unlock()
}

// Active reports whether a session is currently held.
func (m *SessionManager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// BuildHistory maps turns to remote history entries in order. Pending turns
// carry no content yet and are skipped.
func BuildHistory(turns []models.Turn) []models.HistoryEntry {
	history := make([]models.HistoryEntry, 0, len(turns))
	for _, t := range turns {
		if t.Pending {
			continue
		}
		role := models.HistoryUser
		if t.Role == models.RoleAssistant {
			role = models.HistoryModel
		}
		history = append(history, models.HistoryEntry{Role: role, Text: t.Content})
	}
	return history
}
