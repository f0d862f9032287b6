package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/server/auth"
	"github.com/iudanet/doorsync/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAuthConfig() auth.Config {
	return auth.Config{
		Secret:         []byte("handlers-test-secret"),
		EnrollKey:      "enroll-123",
		AccessTokenTTL: time.Hour,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestTokenHandler_IssueToken(t *testing.T) {
	cfg := testAuthConfig()
	h := NewTokenHandler(testLogger(), cfg)

	rec := postJSON(t, h.IssueToken, "/api/v1/auth/token", api.TokenRequest{
		DoorID:     "door-1",
		DeviceName: "turnstile-a",
		EnrollKey:  "enroll-123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := auth.ValidateDoorToken(cfg, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "door-1", claims.DoorID)
}

func TestTokenHandler_Rejections(t *testing.T) {
	h := NewTokenHandler(testLogger(), testAuthConfig())

	tests := []struct {
		name       string
		req        api.TokenRequest
		wantStatus int
	}{
		{
			name:       "wrong enroll key",
			req:        api.TokenRequest{DoorID: "door-1", EnrollKey: "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty door id",
			req:        api.TokenRequest{EnrollKey: "enroll-123"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid door id",
			req:        api.TokenRequest{DoorID: "front door!", EnrollKey: "enroll-123"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.IssueToken, "/api/v1/auth/token", tt.req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestTokenHandler_BadBody(t *testing.T) {
	h := NewTokenHandler(testLogger(), testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.IssueToken(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
