package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/doorsync/internal/server/auth"
)

type contextKey string

const (
	// DoorIDKey — id двери из валидного токена.
	DoorIDKey contextKey = "door_id"
	// DeviceNameKey — имя устройства из валидного токена.
	DeviceNameKey contextKey = "device_name"
)

// DoorIDFromContext возвращает id двери, положенный auth-middleware.
func DoorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(DoorIDKey).(string)
	return id
}

// DeviceNameFromContext возвращает имя устройства из контекста.
func DeviceNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(DeviceNameKey).(string)
	return name
}

// AuthMiddleware создает middleware для проверки JWT токена двери.
// Токен берётся из заголовка Authorization ("Bearer <token>") либо,
// для websocket-подключений, из query-параметра token.
func AuthMiddleware(logger *slog.Logger, cfg auth.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				logger.Warn("Missing access token", "path", r.URL.Path)
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateDoorToken(cfg, tokenString)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), DoorIDKey, claims.DoorID)
			ctx = context.WithValue(ctx, DeviceNameKey, claims.DeviceName)

			logger.Debug("Door authenticated", "door_id", claims.DoorID, "device", claims.DeviceName)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
