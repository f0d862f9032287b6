package presence

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/storage"
)

// mockDoorStore записывает вызовы SetStatus, остальное не используется.
type mockDoorStore struct {
	statuses []string
}

func (m *mockDoorStore) FindByID(_ context.Context, _ string) (*models.Door, error) {
	return nil, storage.ErrNotFound
}

func (m *mockDoorStore) Find(_ context.Context) ([]*models.Door, error) { return nil, nil }

func (m *mockDoorStore) Upsert(_ context.Context, _ *models.Door) error { return nil }

func (m *mockDoorStore) Patch(_ context.Context, _ *models.Door) error { return nil }

func (m *mockDoorStore) SetStatus(_ context.Context, id, status string) error {
	m.statuses = append(m.statuses, id+":"+status)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestTracker_FirstConnectLastDisconnect(t *testing.T) {
	store := &mockDoorStore{}
	tracker := NewTracker(store, testLogger())
	ctx := context.Background()

	// Два стрима одной двери: статус пишется один раз.
	require.NoError(t, tracker.Connect(ctx, "d1"))
	require.NoError(t, tracker.Connect(ctx, "d1"))
	assert.Equal(t, []string{"d1:ONLINE"}, store.statuses)
	assert.True(t, tracker.Online("d1"))

	// Первое отключение дверь ещё держит.
	require.NoError(t, tracker.Disconnect(ctx, "d1"))
	assert.Equal(t, []string{"d1:ONLINE"}, store.statuses)
	assert.True(t, tracker.Online("d1"))

	// Последнее — переводит в OFFLINE.
	require.NoError(t, tracker.Disconnect(ctx, "d1"))
	assert.Equal(t, []string{"d1:ONLINE", "d1:OFFLINE"}, store.statuses)
	assert.False(t, tracker.Online("d1"))
}

func TestTracker_IndependentDoors(t *testing.T) {
	store := &mockDoorStore{}
	tracker := NewTracker(store, testLogger())
	ctx := context.Background()

	require.NoError(t, tracker.Connect(ctx, "d1"))
	require.NoError(t, tracker.Connect(ctx, "d2"))
	require.NoError(t, tracker.Disconnect(ctx, "d1"))

	assert.False(t, tracker.Online("d1"))
	assert.True(t, tracker.Online("d2"))
	assert.Equal(t, []string{"d1:ONLINE", "d2:ONLINE", "d1:OFFLINE"}, store.statuses)
}

func TestTracker_IgnoresEmptyAndUnbalanced(t *testing.T) {
	store := &mockDoorStore{}
	tracker := NewTracker(store, testLogger())
	ctx := context.Background()

	require.NoError(t, tracker.Connect(ctx, ""))
	require.NoError(t, tracker.Disconnect(ctx, "d1")) // без Connect
	assert.Empty(t, store.statuses)
	assert.False(t, tracker.Online("d1"))
}
