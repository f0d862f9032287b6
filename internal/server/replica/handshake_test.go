package replica

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/models"
)

func handshakeRow(id, transactionID, token, events string) Row[models.HandshakeLog] {
	return Row[models.HandshakeLog]{New: &models.HandshakeLog{
		Meta:          models.Meta{ID: id, ClientCreatedAt: 900_000},
		TransactionID: transactionID,
		Handshake:     token,
		Events:        events,
	}}
}

func TestHandshakeService_CreateAcknowledges(t *testing.T) {
	env := newTestEnv(t)
	svc := NewHandshakeService(env.storage.Handshakes(), env.bus, env.clock, setupTestLogger())

	written, err := svc.Push(context.Background(), []Row[models.HandshakeLog]{
		handshakeRow("h1", "t1", "CLIENT_HELLO", `{"type":"OPEN","at":"900000","actor":"CLIENT"}`),
	})
	require.NoError(t, err)
	require.Len(t, written, 1)

	doc := written[0]

	// Последовательность токенов дополнена серверным ack.
	assert.Equal(t, []string{"CLIENT_HELLO", models.HandshakeAckToken}, models.HandshakeTokens(doc.Handshake))

	// Журнал событий: клиентское событие плюс серверный маркер RECEIVE.
	log, err := models.ParseEventLog(doc.Events)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "OPEN", log[0].Type)
	assert.Equal(t, models.EventTypeReceive, log[1].Type)
	assert.Equal(t, models.EventActorServer, log[1].Actor)
	assert.Equal(t, doc.ServerCreatedAt, log[1].At)
}

func TestHandshakeService_UpdateAppendsNeverReplaces(t *testing.T) {
	env := newTestEnv(t)
	svc := NewHandshakeService(env.storage.Handshakes(), env.bus, env.clock, setupTestLogger())
	ctx := context.Background()

	_, err := svc.Push(ctx, []Row[models.HandshakeLog]{
		handshakeRow("h1", "t1", "CLIENT_HELLO", `{"type":"OPEN","at":"900000","actor":"CLIENT"}`),
	})
	require.NoError(t, err)

	written, err := svc.Push(ctx, []Row[models.HandshakeLog]{
		handshakeRow("h1", "t1", "CLIENT_DONE", `[{"type":"CLOSE","at":"910000","actor":"CLIENT"}]`),
	})
	require.NoError(t, err)
	require.Len(t, written, 1)

	doc := written[0]

	// Токены растут, ничего не затёрто.
	assert.Equal(t,
		[]string{"CLIENT_HELLO", models.HandshakeAckToken, "CLIENT_DONE"},
		models.HandshakeTokens(doc.Handshake))

	// Журнал: OPEN, RECEIVE, CLOSE.
	log, err := models.ParseEventLog(doc.Events)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, "OPEN", log[0].Type)
	assert.Equal(t, models.EventTypeReceive, log[1].Type)
	assert.Equal(t, "CLOSE", log[2].Type)
}

func TestHandshakeService_EventLogGrowsEveryMerge(t *testing.T) {
	env := newTestEnv(t)
	svc := NewHandshakeService(env.storage.Handshakes(), env.bus, env.clock, setupTestLogger())
	ctx := context.Background()

	_, err := svc.Push(ctx, []Row[models.HandshakeLog]{handshakeRow("h1", "t1", "T0", "")})
	require.NoError(t, err)

	prevLen := -1
	for i := 0; i < 5; i++ {
		written, err := svc.Push(ctx, []Row[models.HandshakeLog]{
			handshakeRow("h1", "t1", "Tn", `{"type":"PING","at":"900001","actor":"CLIENT"}`),
		})
		require.NoError(t, err)

		log, err := models.ParseEventLog(written[0].Events)
		require.NoError(t, err)
		require.Greater(t, len(log), prevLen, "accumulated log must grow monotonically")
		prevLen = len(log)
	}

	// Пустой клиентский журнал на создании — в хранилище только RECEIVE,
	// а каждый из пяти апдейтов добавил ровно одно событие.
	assert.Equal(t, 6, prevLen)
}
