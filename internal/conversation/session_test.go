package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unichatclient/internal/models"
)

func TestGetOrCreateSeedsHistoryOnce(t *testing.T) {
	factory := echoFactory()
	manager := NewSessionManager(factory)
	prior := []models.Turn{
		{ID: 1, Role: models.RoleUser, Content: "A"},
		{ID: 2, Role: models.RoleAssistant, Content: "B"},
	}

	first, err := manager.GetOrCreate(context.Background(), prior)
	require.NoError(t, err)
	second, err := manager.GetOrCreate(context.Background(), append(prior, models.Turn{ID: 3, Role: models.RoleUser, Content: "C"}))
	require.NoError(t, err)

	assert.Same(t, first, second)
	require.Equal(t, 1, factory.created())
	assert.Equal(t, []models.HistoryEntry{
		{Role: models.HistoryUser, Text: "A"},
		{Role: models.HistoryModel, Text: "B"},
	}, factory.history(0))
	assert.True(t, manager.Active())
}

func TestBuildHistorySkipsPendingTurns(t *testing.T) {
	history := BuildHistory([]models.Turn{
		{ID: 1, Role: models.RoleUser, Content: "hi"},
		{ID: 2, Role: models.RoleAssistant, Pending: true},
	})
	assert.Equal(t, []models.HistoryEntry{{Role: models.HistoryUser, Text: "hi"}}, history)
	assert.Empty(t, BuildHistory(nil))
}

func TestGetOrCreateRetriesAfterFactoryError(t *testing.T) {
	factory := echoFactory()
	factory.err = errors.New("boom")
	manager := NewSessionManager(factory)

	_, err := manager.GetOrCreate(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, manager.Active())

	factory.mu.Lock()
	factory.err = nil
	factory.mu.Unlock()
	_, err = manager.GetOrCreate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, factory.created())
}

func TestInvalidateForcesFreshSession(t *testing.T) {
	factory := echoFactory()
	manager := NewSessionManager(factory)

	first, err := manager.GetOrCreate(context.Background(), nil)
	require.NoError(t, err)
	manager.Invalidate()
	manager.Invalidate()
	assert.False(t, manager.Active())

	second, err := manager.GetOrCreate(context.Background(), nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, factory.created())
}

func TestGetOrCreateHonoursCancelledContext(t *testing.T) {
	factory := echoFactory()
	manager := NewSessionManager(factory)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := manager.GetOrCreate(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, factory.created())

	_, err = NewSessionManager(nil).GetOrCreate(context.Background(), nil)
	assert.Error(t, err)
}
