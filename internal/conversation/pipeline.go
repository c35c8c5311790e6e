package conversation

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"unichatclient/internal/models"
)

// ApologyMessage replaces the pending turn when the remote exchange fails.
const ApologyMessage = "Sorry, something went wrong while getting a response. Please try again."

// Submission tracks one accepted exchange.
type Submission struct {
	UserTurn    models.Turn
	PendingTurn models.Turn

	done   chan struct{}
	result models.Turn
	err    error
}

// Done is closed once the pending turn has been resolved or dropped.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the exchange settles and returns the resolved assistant
// turn. ErrTurnNotFound means a reset discarded the turn first.
func (s *Submission) Wait(ctx context.Context) (models.Turn, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		return models.Turn{}, ctx.Err()
	}
}

// Submit appends the user turn and a pending placeholder, then resolves the
// placeholder in the background. Blank text or an in-flight submission are
// rejected without touching state; see IsRejection.
//
// The remote call is detached from ctx cancellation; it ends on success,
// failure, the submit timeout or Reset.
func (c *Conversation) Submit(ctx context.Context, rawText string) (*Submission, error) {
	text := strings.TrimSpace(rawText)

	// c.mu orders phase one against Reset, so a reset never lands between the
	// append and the registration of the cancel func.
	c.mu.Lock()
	user, pending, prior, err := c.store.appendPair(text)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	c.flight++
	flight := c.flight
	c.cancel = cancel
	c.mu.Unlock()
	c.store.flush()

	sub := &Submission{UserTurn: user, PendingTurn: pending, done: make(chan struct{})}
	log.Debug().Int64("turn_id", user.ID).Int64("pending_id", pending.ID).Msg("conversation: submission accepted")
	go c.run(runCtx, cancel, flight, sub, prior, text)
	return sub, nil
}

// run is phase two: whatever happens, the pending turn is resolved and
// submitting cleared before it returns.
func (c *Conversation) run(ctx context.Context, cancel context.CancelFunc, flight uint64, sub *Submission, prior []models.Turn, text string) {
	reply := ApologyMessage
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("pending_id", sub.PendingTurn.ID).Msg("conversation: exchange panicked")
			reply = ApologyMessage
		}
		cancel()
		c.endFlight(flight)

		turn, err := c.store.ResolvePending(sub.PendingTurn.ID, reply)
		if err != nil {
			log.Debug().Int64("pending_id", sub.PendingTurn.ID).Msg("conversation: result dropped after reset")
		}
		sub.result, sub.err = turn, err
		close(sub.done)
	}()

	answer, err := c.exchange(ctx, prior, text)
	if err != nil {
		log.Warn().Err(err).Int64("pending_id", sub.PendingTurn.ID).Msg("conversation: remote exchange failed")
		return
	}
	reply = answer
}

func (c *Conversation) exchange(ctx context.Context, prior []models.Turn, text string) (string, error) {
	session, err := c.sessions.GetOrCreate(ctx, prior)
	if err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	// the collaborator may ignore ctx; the select below still honours the timeout
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: errors.Errorf("remote session panicked: %v", r)}
			}
		}()
		answer, err := session.SendTurn(ctx, text)
		ch <- result{text: answer, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", errors.Wrap(r.err, "send turn")
		}
		if strings.TrimSpace(r.text) == "" {
			return "", errors.New("remote session returned an empty reply")
		}
		return r.text, nil
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "wait for reply")
	}
}

func (c *Conversation) endFlight(flight uint64) {
	c.mu.Lock()
	if c.flight == flight {
		c.cancel = nil
	}
	c.mu.Unlock()
}
