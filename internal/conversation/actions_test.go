package conversation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unichatclient/internal/models"
)

type fakeClipboard struct {
	written []string
	err     error
}

func (f *fakeClipboard) Write(text string) error {
	if f.err != nil {
		return f.err
	}
	f.written = append(f.written, text)
	return nil
}

type fakeSharer struct {
	titles []string
	texts  []string
	err    error
	panics bool
}

func (f *fakeSharer) Share(title, text string) error {
	if f.panics {
		panic("share sheet crashed")
	}
	f.titles = append(f.titles, title)
	f.texts = append(f.texts, text)
	return f.err
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) Notify(title, message string) error {
	f.messages = append(f.messages, title+": "+message)
	return f.err
}

func conversationWithReply(t *testing.T, cfg Config) (*Conversation, models.Turn) {
	t.Helper()
	c := newTestConversation(t, echoFactory(), cfg)
	turn := submitAndWait(t, c, "Hello")
	return c, turn
}

func TestToggleFeedback(t *testing.T) {
	c, reply := conversationWithReply(t, Config{})

	turn, err := c.ToggleFeedback(reply.ID, models.FeedbackLike)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackLike, turn.Feedback)

	turn, err = c.ToggleFeedback(reply.ID, models.FeedbackLike)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackNone, turn.Feedback)

	_, err = c.ToggleFeedback(reply.ID, models.FeedbackLike)
	require.NoError(t, err)
	turn, err = c.ToggleFeedback(reply.ID, models.FeedbackDislike)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackDislike, turn.Feedback)

	stored, ok := c.Turn(reply.ID)
	require.True(t, ok)
	assert.Equal(t, models.FeedbackDislike, stored.Feedback)
	assert.Equal(t, reply.Content, stored.Content)
}

func TestToggleFeedbackRejectsBadInput(t *testing.T) {
	c, reply := conversationWithReply(t, Config{})
	userTurn := c.Snapshot().Turns[0]

	_, err := c.ToggleFeedback(reply.ID, models.Feedback("love"))
	assert.ErrorIs(t, err, ErrInvalidFeedback)
	_, err = c.ToggleFeedback(userTurn.ID, models.FeedbackLike)
	assert.ErrorIs(t, err, ErrTurnNotFound)
	_, err = c.ToggleFeedback(reply.ID+1000, models.FeedbackLike)
	assert.ErrorIs(t, err, ErrTurnNotFound)

	stored, _ := c.Turn(reply.ID)
	assert.Equal(t, models.FeedbackNone, stored.Feedback)
}

func TestRegenerateDoesNotStackMarker(t *testing.T) {
	c, reply := conversationWithReply(t, Config{})

	_, err := c.Regenerate(reply.ID)
	require.NoError(t, err)
	turn, err := c.Regenerate(reply.ID)
	require.NoError(t, err)

	assert.Equal(t, RegenerateMarker+reply.Content, turn.Content)
	assert.Equal(t, 1, strings.Count(turn.Content, RegenerateMarker))
	assert.False(t, turn.Pending)
	assert.Equal(t, reply.ID, turn.ID)
}

func TestRegenerateIgnoresUnknownAndUserTurns(t *testing.T) {
	c, _ := conversationWithReply(t, Config{})
	before := c.Snapshot()

	_, err := c.Regenerate(before.Turns[0].ID)
	assert.ErrorIs(t, err, ErrTurnNotFound)
	_, err = c.Regenerate(-1)
	assert.ErrorIs(t, err, ErrTurnNotFound)

	assert.Equal(t, before, c.Snapshot())
}

func TestCopy(t *testing.T) {
	clip := &fakeClipboard{}
	c := newTestConversation(t, echoFactory(), Config{Clipboard: clip})

	require.NoError(t, c.Copy("some text"))
	assert.Equal(t, []string{"some text"}, clip.written)

	clip.err = errors.New("no display")
	assert.Error(t, c.Copy("more"))

	bare := newTestConversation(t, echoFactory(), Config{})
	assert.ErrorIs(t, bare.Copy("x"), ErrNoClipboard)
}

func TestShareUsesSharerWhenPresent(t *testing.T) {
	clip := &fakeClipboard{}
	sharer := &fakeSharer{}
	c := newTestConversation(t, echoFactory(), Config{Clipboard: clip, Sharer: sharer})

	assert.Equal(t, ShareShared, c.Share("answer"))
	assert.Equal(t, []string{"answer"}, sharer.texts)
	assert.Equal(t, []string{ShareTitle}, sharer.titles)
	assert.Empty(t, clip.written)

	sharer.err = errors.New("cancelled by user")
	assert.Equal(t, ShareFailed, c.Share("answer"))

	sharer.panics = true
	assert.Equal(t, ShareFailed, c.Share("answer"))
}

func TestShareFallsBackToClipboard(t *testing.T) {
	clip := &fakeClipboard{}
	notifier := &fakeNotifier{}
	c := newTestConversation(t, echoFactory(), Config{Clipboard: clip, Notifier: notifier})

	assert.Equal(t, ShareCopied, c.Share("answer"))
	assert.Equal(t, []string{"answer"}, clip.written)
	require.Len(t, notifier.messages, 1)

	notifier.err = errors.New("no notification daemon")
	assert.Equal(t, ShareCopied, c.Share("again"))

	clip.err = errors.New("no display")
	assert.Equal(t, ShareFailed, c.Share("third"))
	assert.Len(t, notifier.messages, 2)
}

func TestActionsLeaveTranscriptOrderIntact(t *testing.T) {
	c, reply := conversationWithReply(t, Config{Clipboard: &fakeClipboard{}})
	submitAndWait(t, c, "second")

	_, err := c.ToggleFeedback(reply.ID, models.FeedbackLike)
	require.NoError(t, err)
	_, err = c.Regenerate(reply.ID)
	require.NoError(t, err)
	c.Share(reply.Content)

	turns := c.Snapshot().Turns
	require.Len(t, turns, 4)
	for i := 1; i < len(turns); i++ {
		assert.Greater(t, turns[i].ID, turns[i-1].ID)
	}
	assert.Equal(t, reply.ID, turns[1].ID)
}
