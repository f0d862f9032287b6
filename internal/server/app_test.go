package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/config"
	"github.com/iudanet/doorsync/pkg/api"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DBPath = ":memory:"
	cfg.EnrollKey = "test-enroll-key"

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	app, err := NewApp(context.Background(), cfg, logger, "test")
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func enroll(t *testing.T, srv *httptest.Server, doorID string) string {
	t.Helper()

	body, err := json.Marshal(api.TokenRequest{
		DoorID:     doorID,
		DeviceName: "test-device",
		EnrollKey:  "test-enroll-key",
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok api.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	return tok.AccessToken
}

func authedPost(t *testing.T, srv *httptest.Server, token, path string, payload any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestApp_EnrollPushPull(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	token := enroll(t, srv, "door-1")

	doc, err := json.Marshal(models.CheckInRecord{
		Meta:           models.Meta{ID: "t1", ClientCreatedAt: models.TimestampFrom(time.Now())},
		Name:           "Student One",
		StudentNumber:  "S1",
		RegisterType:   "CARD",
		Status:         models.CheckInStatusIn,
		DoorPermission: "door-1",
	})
	require.NoError(t, err)

	resp := authedPost(t, srv, token, "/api/v1/push/transaction", api.PushRequest{
		Rows: []api.PushRow{{NewDocumentState: doc}},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = authedPost(t, srv, token, "/api/v1/pull/transaction", api.PullRequest{Limit: 10})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pull api.PullResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pull))
	require.Len(t, pull.Documents, 1)
	assert.Equal(t, "t1", pull.Checkpoint.ID)
}

func TestApp_RequiresToken(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/pull/door", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestApp_HealthOpenWithoutToken(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
}

func TestApp_StreamDeliversPushedBatch(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	token := enroll(t, srv, "door-1")

	// Дверь должна существовать до подключения: presence пишет её статус.
	doorDoc, err := json.Marshal(models.Door{
		Meta:       models.Meta{ID: "door-1", ClientCreatedAt: models.TimestampFrom(time.Now())},
		Name:       "Front",
		Status:     models.DoorStatusOffline,
		MaxPersons: 50,
	})
	require.NoError(t, err)
	resp := authedPost(t, srv, token, "/api/v1/push/door", api.PushRequest{
		Rows: []api.PushRow{{NewDocumentState: doorDoc}},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/api/v1/stream/transaction?door_id=door-1&token=" + token
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if wsResp != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	// Дать обработчику подписаться на шину после upgrade.
	time.Sleep(100 * time.Millisecond)

	// Поток живой: push батча приходит подписчику.
	doc, err := json.Marshal(models.CheckInRecord{
		Meta:           models.Meta{ID: "t1", ClientCreatedAt: models.TimestampFrom(time.Now())},
		Name:           "Student One",
		StudentNumber:  "S1",
		RegisterType:   "CARD",
		Status:         models.CheckInStatusIn,
		DoorPermission: "door-1",
	})
	require.NoError(t, err)
	resp = authedPost(t, srv, token, "/api/v1/push/transaction", api.PushRequest{
		Rows: []api.PushRow{{NewDocumentState: doc}},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg api.PullResponse
	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Documents, 1)

	meta, err := models.ExtractMeta(msg.Documents[0])
	require.NoError(t, err)
	assert.Equal(t, "t1", meta.ID)
	assert.Equal(t, "t1", msg.Checkpoint.ID)
}
