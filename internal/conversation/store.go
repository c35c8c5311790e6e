package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"unichatclient/internal/events"
	"unichatclient/internal/models"
)

// Store is the ordered transcript plus the submitting flag. All writes go
// through AppendPair, ResolvePending, Reset and the package-internal update.
type Store struct {
	mu             sync.RWMutex
	conversationID string
	turns          []models.Turn
	submitting     bool
	pendingID      int64
	ids            idSource

	// outbox holds events in mutation order until flush hands them to the
	// publisher. flushing marks that one caller is already draining it.
	outbox   []events.Event
	flushing bool

	publisher events.Publisher
	now       func() time.Time
}

type StoreOption func(*Store)

// WithClock replaces time.Now for turn ids and timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher sends every mutation to p after it becomes visible.
func WithPublisher(p events.Publisher) StoreOption {
	return func(s *Store) {
		s.publisher = p
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		conversationID: uuid.NewString(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Conversation{
		ID:         s.conversationID,
		Submitting: s.submitting,
		Turns:      s.copyTurnsLocked(),
	}
}

func (s *Store) Turns() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyTurnsLocked()
}

func (s *Store) Submitting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitting
}

func (s *Store) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// Turn looks up a turn by id.
func (s *Store) Turn(id int64) (models.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.turns[idx], true
	}
	return models.Turn{}, false
}

// AppendPair appends a user turn and its pending assistant placeholder.
func (s *Store) AppendPair(userText string) (models.Turn, models.Turn, error) {
	user, pending, _, err := s.appendPair(userText)
	s.flush()
	return user, pending, err
}

// appendPair also returns the turns as they were just before the append.
// Its events stay queued until the caller flushes.
func (s *Store) appendPair(userText string) (user, pending models.Turn, prior []models.Turn, err error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return user, pending, nil, ErrEmptyInput
	}

	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return user, pending, nil, ErrSubmitting
	}
	prior = s.copyTurnsLocked()
	now := s.now()
	user = models.Turn{ID: s.ids.next(now), Role: models.RoleUser, Content: text, CreatedAt: now}
	pending = models.Turn{ID: s.ids.next(now), Role: models.RoleAssistant, Pending: true, CreatedAt: now}
	s.turns = append(s.turns, user, pending)
	s.submitting = true
	s.pendingID = pending.ID
	s.enqueueLocked(events.KindTurnAppended, &user)
	s.enqueueLocked(events.KindTurnAppended, &pending)
	s.mu.Unlock()
	return user, pending, prior, nil
}

// ResolvePending fills the pending turn and clears submitting in one step.
// An id that is not the current pending turn, e.g. one that was reset away,
// is rejected with ErrTurnNotFound.
func (s *Store) ResolvePending(pendingID int64, text string) (models.Turn, error) {
	s.mu.Lock()
	if !s.submitting || s.pendingID != pendingID {
		s.mu.Unlock()
		return models.Turn{}, ErrTurnNotFound
	}
	idx := s.indexLocked(pendingID)
	if idx < 0 {
		s.mu.Unlock()
		return models.Turn{}, ErrTurnNotFound
	}
	s.turns[idx].Content = text
	s.turns[idx].Pending = false
	s.submitting = false
	s.pendingID = 0
	resolved := s.turns[idx]
	s.enqueueLocked(events.KindTurnUpdated, &resolved)
	s.mu.Unlock()

	s.flush()
	return resolved, nil
}

// Reset starts a new, empty conversation. Resetting an already empty
// conversation changes nothing.
func (s *Store) Reset() {
	s.reset()
	s.flush()
}

// reset clears the state and queues the reset event without delivering it.
func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 && !s.submitting {
		return
	}
	s.turns = nil
	s.submitting = false
	s.pendingID = 0
	s.conversationID = uuid.NewString()
	s.enqueueLocked(events.KindReset, nil)
}

// update applies fn to a copy of the turn and stores the copy when fn succeeds.
// Only Content and Feedback may change; identity and pending state are kept.
func (s *Store) update(id int64, fn func(*models.Turn) error) (models.Turn, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Turn{}, ErrTurnNotFound
	}
	turn := s.turns[idx]
	if err := fn(&turn); err != nil {
		s.mu.Unlock()
		return models.Turn{}, err
	}
	turn.ID, turn.Role, turn.Pending, turn.CreatedAt = s.turns[idx].ID, s.turns[idx].Role, s.turns[idx].Pending, s.turns[idx].CreatedAt
	s.turns[idx] = turn
	s.enqueueLocked(events.KindTurnUpdated, &turn)
	s.mu.Unlock()

	s.flush()
	return turn, nil
}

func (s *Store) indexLocked(id int64) int {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyTurnsLocked() []models.Turn {
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Store) enqueueLocked(kind events.Kind, turn *models.Turn) {
	if s.publisher == nil {
		return
	}
	var copied *models.Turn
	if turn != nil {
		t := *turn
		copied = &t
	}
	s.outbox = append(s.outbox, events.Event{
		ConversationID: s.conversationID,
		Kind:           kind,
		Turn:           copied,
		Submitting:     s.submitting,
		At:             s.now(),
	})
}

// flush delivers queued events in mutation order, outside the state lock.
// Only one caller drains at a time; a caller that finds a drain in progress
// returns at once and leaves its events to that drain.
func (s *Store) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		s.deliver(batch)
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

func (s *Store) deliver(batch []events.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("conversation: event publisher panicked")
		}
	}()
	for _, ev := range batch {
		s.publisher.Publish(ev)
	}
}

// idSource derives turn ids from wall-clock milliseconds and never repeats one.
type idSource struct {
	last int64
}

func (g *idSource) next(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
