package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unichatclient/internal/conversation"
	"unichatclient/internal/events"
	"unichatclient/internal/models"
)

type echoSession struct{}

func (echoSession) SendTurn(_ context.Context, text string) (string, error) {
	if text == "fail" {
		return "", errors.New("boom")
	}
	return "echo: " + text, nil
}

type memClipboard struct {
	mu   sync.Mutex
	last string
}

func (m *memClipboard) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = text
	return nil
}

func newREPLConversation(clip conversation.Clipboard) *conversation.Conversation {
	factory := conversation.SessionFactoryFunc(func(context.Context, []models.HistoryEntry) (conversation.RemoteSession, error) {
		return echoSession{}, nil
	})
	return conversation.New(nil, conversation.NewSessionManager(factory), conversation.Config{
		SubmitTimeout: 5 * time.Second,
		Clipboard:     clip,
	})
}

func TestREPLExchange(t *testing.T) {
	conv := newREPLConversation(nil)
	in := strings.NewReader("Hello\n   \nfail\n/quit\nignored\n")
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), conv, in, &out))
	assert.Contains(t, out.String(), "assistant> echo: Hello")
	assert.Contains(t, out.String(), "assistant> "+conversation.ApologyMessage)

	turns := conv.Snapshot().Turns
	require.Len(t, turns, 4)
	assert.False(t, conv.Submitting())
}

func TestREPLCommands(t *testing.T) {
	clip := &memClipboard{}
	conv := newREPLConversation(clip)
	in := strings.NewReader(strings.Join([]string{
		"/like",
		"Hello",
		"/like",
		"/regen",
		"/regen",
		"/copy",
		"/share",
		"/bogus",
		"/new",
		"/history",
	}, "\n") + "\n")
	var out bytes.Buffer

	require.NoError(t, runREPL(context.Background(), conv, in, &out))
	text := out.String()
	assert.Contains(t, text, "! no reply yet")
	assert.Contains(t, text, "feedback: like")
	assert.Contains(t, text, "assistant> "+conversation.RegenerateMarker+"echo: Hello")
	assert.NotContains(t, text, conversation.RegenerateMarker+conversation.RegenerateMarker)
	assert.Contains(t, text, "copied")
	assert.Contains(t, text, "share: copied")
	assert.Contains(t, text, "! unknown command /bogus")
	assert.Equal(t, conversation.RegenerateMarker+"echo: Hello", clip.last)
	assert.Empty(t, conv.Snapshot().Turns)
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	setupLogging("warn", &buf)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	setupLogging("nonsense", &buf)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestPrintEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	var buf bytes.Buffer

	printEvent(&buf, events.Event{Kind: events.KindReset, ConversationID: "abc", At: at}, false)
	assert.Equal(t, "15:04:05 reset conversation=abc\n", buf.String())

	buf.Reset()
	turn := &models.Turn{ID: 7, Role: models.RoleAssistant, Pending: true}
	printEvent(&buf, events.Event{Kind: events.KindTurnAppended, Turn: turn, At: at}, false)
	assert.Equal(t, "15:04:05 turn_appended #7 assistant: ...\n", buf.String())

	buf.Reset()
	printEvent(&buf, events.Event{Kind: events.KindReset, At: at}, true)
	assert.Contains(t, buf.String(), `"kind":"reset"`)
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "repl", "watch"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}
