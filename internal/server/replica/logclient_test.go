package replica

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/storage"
)

func logRow(id, clientID, typ string) Row[models.ClientLogEntry] {
	return Row[models.ClientLogEntry]{New: &models.ClientLogEntry{
		Meta:     models.Meta{ID: id, ClientCreatedAt: 900_000},
		ClientID: clientID,
		Type:     typ,
		Status:   "OK",
	}}
}

func TestClientLogService_CreateOnly(t *testing.T) {
	env := newTestEnv(t)
	svc := NewClientLogService(env.storage.ClientLogs(), env.bus, env.clock, setupTestLogger())
	ctx := context.Background()

	written, err := svc.Push(ctx, []Row[models.ClientLogEntry]{logRow("l1", "c1", "STARTUP")})
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, models.Timestamp(1_000_000), written[0].ServerCreatedAt)
}

func TestClientLogService_DuplicateAbortsWholeBatch(t *testing.T) {
	env := newTestEnv(t)
	svc := NewClientLogService(env.storage.ClientLogs(), env.bus, env.clock, setupTestLogger())
	ctx := context.Background()

	_, err := svc.Push(ctx, []Row[models.ClientLogEntry]{logRow("l1", "c1", "STARTUP")})
	require.NoError(t, err)

	_, err = svc.Push(ctx, []Row[models.ClientLogEntry]{
		logRow("l2", "c1", "ERROR"),
		logRow("l1", "c1", "STARTUP"), // повтор
		logRow("l3", "c1", "ERROR"),
	})
	require.ErrorIs(t, err, ErrDuplicateLogEntry)

	// Хвост батча после ошибки не записан.
	_, err = env.storage.ClientLogs().FindByID(ctx, "l3")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClientLogService_PartialBatchSkipsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	svc := NewClientLogService(env.storage.ClientLogs(), env.bus, env.clock, setupTestLogger()).AllowPartialBatch()
	ctx := context.Background()

	_, err := svc.Push(ctx, []Row[models.ClientLogEntry]{logRow("l1", "c1", "STARTUP")})
	require.NoError(t, err)

	written, err := svc.Push(ctx, []Row[models.ClientLogEntry]{
		logRow("l1", "c1", "STARTUP"), // повтор — пропущен
		logRow("l2", "c1", "ERROR"),
	})
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "l2", written[0].ID)
}
