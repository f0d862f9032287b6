package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/doorsync/internal/server/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAuthConfig() auth.Config {
	return auth.Config{
		Secret:         []byte("middleware-test-secret"),
		AccessTokenTTL: 15 * time.Minute,
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testAuthConfig()
	token, _, err := auth.GenerateDoorToken(cfg, "door-1", "turnstile-a")
	require.NoError(t, err)

	tests := []struct {
		name       string
		setRequest func(r *http.Request)
		wantStatus int
		wantDoorID string
	}{
		{
			name: "valid bearer token",
			setRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+token)
			},
			wantStatus: http.StatusOK,
			wantDoorID: "door-1",
		},
		{
			name: "valid token via query param",
			setRequest: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", token)
				r.URL.RawQuery = q.Encode()
			},
			wantStatus: http.StatusOK,
			wantDoorID: "door-1",
		},
		{
			name:       "missing token",
			setRequest: func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed header",
			setRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Token "+token)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "garbage token",
			setRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer not.a.token")
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotDoorID, gotDevice string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotDoorID = DoorIDFromContext(r.Context())
				gotDevice = DeviceNameFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/pull/door", nil)
			tt.setRequest(req)
			rec := httptest.NewRecorder()

			AuthMiddleware(testLogger(), cfg)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantDoorID, gotDoorID)
				assert.Equal(t, "turnstile-a", gotDevice)
			}
		})
	}
}
