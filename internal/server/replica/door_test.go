package replica

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/models"
)

func doorRow(id, name, status string, maxPersons int) Row[models.Door] {
	return Row[models.Door]{New: &models.Door{
		Meta:       models.Meta{ID: id, ClientCreatedAt: 900_000},
		Name:       name,
		Status:     status,
		MaxPersons: maxPersons,
	}}
}

func TestDoorService_CreateAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDoorService(env.storage.Doors(), env.bus, env.clock, setupTestLogger())
	ctx := context.Background()

	created, err := svc.Push(ctx, []Row[models.Door]{doorRow("d1", "Front", models.DoorStatusOffline, 50)})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.Timestamp(1_000_000), created[0].ServerCreatedAt)

	update := doorRow("d1", "Front Door", models.DoorStatusOnline, 75)
	update.New.CurrentPersons = 12
	update.New.ClientUpdatedAt = 950_000
	written, err := svc.Push(ctx, []Row[models.Door]{update})
	require.NoError(t, err)
	require.Len(t, written, 1)

	doc := written[0]
	assert.Equal(t, "Front Door", doc.Name)
	assert.Equal(t, models.DoorStatusOnline, doc.Status)
	assert.Equal(t, 75, doc.MaxPersons)
	assert.Equal(t, 12, doc.CurrentPersons)
	assert.True(t, doc.ServerUpdatedAt.After(created[0].ServerUpdatedAt))
	assert.Equal(t, created[0].ServerCreatedAt, doc.ServerCreatedAt)
}

func TestDoorService_PullOrderedByUpdateTime(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDoorService(env.storage.Doors(), env.bus, env.clock, setupTestLogger())
	ctx := context.Background()

	_, err := svc.Push(ctx, []Row[models.Door]{
		doorRow("d2", "Back", models.DoorStatusOffline, 20),
		doorRow("d1", "Front", models.DoorStatusOffline, 50),
	})
	require.NoError(t, err)

	// d2 запечатан раньше — идёт первым независимо от id.
	page, cp, err := svc.Pull(ctx, models.Checkpoint{}, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "d2", page[0].ID)
	assert.Equal(t, "d1", page[1].ID)
	assert.Equal(t, "d1", cp.ID)
}
