package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/replica"
	"github.com/iudanet/doorsync/internal/server/storage/sqlite"
	"github.com/iudanet/doorsync/pkg/api"
)

// newReplicationMux собирает handler поверх настоящего :memory: SQLite.
// Роутинг повторяет боевой, чтобы работал r.PathValue.
func newReplicationMux(t *testing.T) *http.ServeMux {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := testLogger()
	clock := replica.NewClockAt(func() time.Time { return time.UnixMilli(1_000_000) })

	h := NewReplicationHandler(logger,
		replica.NewCheckInService(store.CheckIns(), nil, clock, logger),
		replica.NewDoorService(store.Doors(), nil, clock, logger),
		replica.NewHandshakeService(store.Handshakes(), nil, clock, logger),
		replica.NewClientLogService(store.ClientLogs(), nil, clock, logger),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/pull/{collection}", h.Pull)
	mux.HandleFunc("POST /api/v1/push/{collection}", h.Push)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func pushRows(docs ...any) api.PushRequest {
	req := api.PushRequest{}
	for _, doc := range docs {
		raw, _ := json.Marshal(doc)
		req.Rows = append(req.Rows, api.PushRow{NewDocumentState: raw})
	}
	return req
}

func checkInDoc(id, student, status string) models.CheckInRecord {
	return models.CheckInRecord{
		Meta:           models.Meta{ID: id, ClientCreatedAt: 900_000},
		Name:           "Student " + student,
		StudentNumber:  student,
		RegisterType:   "CARD",
		Status:         status,
		DoorPermission: "front",
	}
}

func TestReplication_PushThenPullRoundTrip(t *testing.T) {
	mux := newReplicationMux(t)

	rec := doJSON(t, mux, "/api/v1/push/transaction", pushRows(
		checkInDoc("t1", "S1", models.CheckInStatusIn),
		checkInDoc("t2", "S2", models.CheckInStatusIn),
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pushResp api.PushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pushResp))
	require.Len(t, pushResp.Documents, 2)

	// Сервер проставил метаданные.
	meta, err := models.ExtractMeta(pushResp.Documents[0])
	require.NoError(t, err)
	assert.Equal(t, "t1", meta.ID)
	assert.NotZero(t, meta.ServerUpdatedAt)

	// Pull с нулевого чекпоинта возвращает обе записи.
	rec = doJSON(t, mux, "/api/v1/pull/transaction", api.PullRequest{Limit: 10})
	require.Equal(t, http.StatusOK, rec.Code)

	var pullResp api.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pullResp))
	require.Len(t, pullResp.Documents, 2)
	assert.Equal(t, "t2", pullResp.Checkpoint.ID)

	// Повторный pull с возвращённого чекпоинта пуст, чекпоинт на месте.
	rec = doJSON(t, mux, "/api/v1/pull/transaction", api.PullRequest{
		Checkpoint: &pullResp.Checkpoint,
		Limit:      10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var empty api.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty.Documents)
	assert.Equal(t, pullResp.Checkpoint, empty.Checkpoint)
}

func TestReplication_PullPaginates(t *testing.T) {
	mux := newReplicationMux(t)

	req := pushRows(
		checkInDoc("t1", "S1", models.CheckInStatusIn),
		checkInDoc("t2", "S2", models.CheckInStatusIn),
		checkInDoc("t3", "S3", models.CheckInStatusIn),
	)
	require.Equal(t, http.StatusOK, doJSON(t, mux, "/api/v1/push/transaction", req).Code)

	var cp *api.Checkpoint
	var seen []string
	for i := 0; i < 3; i++ {
		rec := doJSON(t, mux, "/api/v1/pull/transaction", api.PullRequest{Checkpoint: cp, Limit: 2})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.PullResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		for _, doc := range resp.Documents {
			meta, err := models.ExtractMeta(doc)
			require.NoError(t, err)
			seen = append(seen, meta.ID)
		}
		cp = &resp.Checkpoint
		if len(resp.Documents) == 0 {
			break
		}
	}

	// Каждый документ ровно один раз, в тотальном порядке.
	assert.Equal(t, []string{"t1", "t2", "t3"}, seen)
}

func TestReplication_PushConflict(t *testing.T) {
	mux := newReplicationMux(t)

	rec := doJSON(t, mux, "/api/v1/push/transaction", pushRows(checkInDoc("t1", "S1", models.CheckInStatusIn)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, "/api/v1/push/transaction", pushRows(checkInDoc("t2", "S1", models.CheckInStatusIn)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "S1")
}

func TestReplication_BadRequests(t *testing.T) {
	mux := newReplicationMux(t)

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{
			name:       "unknown collection",
			target:     "/api/v1/pull/users",
			body:       "{}",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "push garbage body",
			target:     "/api/v1/push/door",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "push empty batch",
			target:     "/api/v1/push/door",
			body:       `{"rows":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "push row without id",
			target:     "/api/v1/push/door",
			body:       `{"rows":[{"newDocumentState":{"name":"Front"}}]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "pull bad checkpoint",
			target:     "/api/v1/pull/door",
			body:       `{"checkpoint":{"id":"d1","server_updated_at":"not-a-number"}}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestReplication_PullEmptyBodyStartsFromZero(t *testing.T) {
	mux := newReplicationMux(t)

	require.Equal(t, http.StatusOK,
		doJSON(t, mux, "/api/v1/push/door", pushRows(models.Door{
			Meta: models.Meta{ID: "d1", ClientCreatedAt: 900_000},
			Name: "Front", Status: models.DoorStatusOffline, MaxPersons: 50,
		})).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pull/door", http.NoBody)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Documents, 1)
}

func TestReplication_SelectivePullFilter(t *testing.T) {
	mux := newReplicationMux(t)

	req := pushRows(
		checkInDoc("t1", "S1", models.CheckInStatusIn),
		checkInDoc("t2", "S2", models.CheckInStatusIn),
	)
	require.Equal(t, http.StatusOK, doJSON(t, mux, "/api/v1/push/transaction", req).Code)

	// Отметить S1 как вышедшего.
	out := checkInDoc("t1", "S1", models.CheckInStatusOut)
	require.Equal(t, http.StatusOK, doJSON(t, mux, "/api/v1/push/transaction", pushRows(out)).Code)

	rec := doJSON(t, mux, "/api/v1/pull/transaction", api.PullRequest{
		Limit: 10,
		Where: &api.PullWhere{Status: models.CheckInStatusOut},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 1)
	meta, err := models.ExtractMeta(resp.Documents[0])
	require.NoError(t, err)
	assert.Equal(t, "t1", meta.ID)
}

func TestReplication_DefaultLimitApplied(t *testing.T) {
	mux := newReplicationMux(t)

	docs := make([]any, 0, DefaultPullLimit+5)
	for i := 0; i < DefaultPullLimit+5; i++ {
		docs = append(docs, models.ClientLogEntry{
			Meta:     models.Meta{ID: fmt.Sprintf("l%03d", i), ClientCreatedAt: 900_000},
			ClientID: "c1",
			Type:     "STARTUP",
			Status:   "OK",
		})
	}
	require.Equal(t, http.StatusOK, doJSON(t, mux, "/api/v1/push/logclient", pushRows(docs...)).Code)

	rec := doJSON(t, mux, "/api/v1/pull/logclient", api.PullRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Documents, DefaultPullLimit)
}
