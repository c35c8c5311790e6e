package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unichatclient/internal/models"
)

// newFakeMirror returns a mirror whose writes land on the returned channel.
func newFakeMirror(t *testing.T, write func(ctx context.Context, data []byte) error) *SnapshotMirror {
	t.Helper()
	m := &SnapshotMirror{write: write}
	m.start()
	t.Cleanup(m.Close)
	return m
}

func TestSnapshotMirrorNilIsNoop(t *testing.T) {
	var nilMirror *SnapshotMirror
	nilMirror.Publish(Event{Kind: KindReset})
	nilMirror.Close()
}

func TestSnapshotMirrorSkipsUntilBound(t *testing.T) {
	var mu sync.Mutex
	writes := 0
	m := newFakeMirror(t, func(context.Context, []byte) error {
		mu.Lock()
		writes++
		mu.Unlock()
		return nil
	})

	m.Publish(Event{Kind: KindReset})
	m.Close()
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, writes)
}

func TestSnapshotMirrorPublishDoesNotWaitForWrite(t *testing.T) {
	release := make(chan struct{})
	written := make(chan []byte, 4)
	m := newFakeMirror(t, func(_ context.Context, data []byte) error {
		<-release
		written <- data
		return nil
	})
	m.Bind(func() models.Conversation { return models.Conversation{ID: "c-1"} })

	start := time.Now()
	for i := 0; i < 10; i++ {
		m.Publish(Event{Kind: KindTurnAppended})
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	select {
	case data := <-written:
		assert.Contains(t, string(data), `"conversation_id":"c-1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was never written")
	}
}

func TestSnapshotMirrorRoundTrip(t *testing.T) {
	client := newTestRedisClient(t)
	defer client.Close()
	ctx := context.Background()
	require.NoError(t, client.Del(ctx, SnapshotKey))

	_, ok, err := LoadSnapshot(ctx, client)
	require.NoError(t, err)
	assert.False(t, ok)

	snap := models.Conversation{
		ID: "c-1",
		Turns: []models.Turn{
			{ID: 1, Role: models.RoleUser, Content: "Hello"},
			{ID: 2, Role: models.RoleAssistant, Content: "Hi there"},
		},
	}
	m := NewSnapshotMirror(client)
	m.Bind(func() models.Conversation { return snap })
	m.Publish(Event{Kind: KindTurnUpdated})
	m.Close()

	got, ok, err := LoadSnapshot(ctx, client)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c-1", got.ID)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "Hi there", got.Turns[1].Content)
}
