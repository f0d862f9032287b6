package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/doorsync/internal/server/auth"
	"github.com/iudanet/doorsync/internal/validation"
	"github.com/iudanet/doorsync/pkg/api"
)

// TokenHandler обрабатывает регистрацию дверей
type TokenHandler struct {
	logger *slog.Logger
	cfg    auth.Config
}

// NewTokenHandler создает новый handler выпуска токенов
func NewTokenHandler(logger *slog.Logger, cfg auth.Config) *TokenHandler {
	return &TokenHandler{logger: logger, cfg: cfg}
}

// IssueToken обрабатывает POST /api/v1/auth/token.
// Дверь предъявляет общий enroll-ключ и получает JWT для pull/push/stream.
func (h *TokenHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode token request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateDoorID(req.DoorID); err != nil {
		h.logger.WarnContext(ctx, "invalid door_id", slog.String("door_id", req.DoorID), slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := auth.VerifyEnrollKey(h.cfg, req.EnrollKey); err != nil {
		h.logger.WarnContext(ctx, "enrollment rejected",
			slog.String("door_id", req.DoorID),
			slog.String("device", req.DeviceName))
		sendError(h.logger, w, "invalid enroll key", http.StatusUnauthorized)
		return
	}

	token, expiresIn, err := auth.GenerateDoorToken(h.cfg, req.DoorID, req.DeviceName)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate door token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "door enrolled",
		slog.String("door_id", req.DoorID),
		slog.String("device", req.DeviceName))

	sendJSON(h.logger, w, api.TokenResponse{AccessToken: token, ExpiresIn: expiresIn}, http.StatusOK)
}
