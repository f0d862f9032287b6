package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/replica"
	"github.com/iudanet/doorsync/internal/validation"
	"github.com/iudanet/doorsync/pkg/api"
)

// DefaultPullLimit применяется, когда клиент не задал размер страницы.
const DefaultPullLimit = 50

// ReplicationHandler обрабатывает pull и push всех четырёх коллекций.
// Конверты у коллекций общие, семантика merge живёт в сервисах.
type ReplicationHandler struct {
	logger     *slog.Logger
	checkIns   *replica.CheckInService
	doors      *replica.DoorService
	handshakes *replica.HandshakeService
	clientLogs *replica.ClientLogService
}

// NewReplicationHandler creates the pull/push handler over the collection services.
func NewReplicationHandler(
	logger *slog.Logger,
	checkIns *replica.CheckInService,
	doors *replica.DoorService,
	handshakes *replica.HandshakeService,
	clientLogs *replica.ClientLogService,
) *ReplicationHandler {
	return &ReplicationHandler{
		logger:     logger,
		checkIns:   checkIns,
		doors:      doors,
		handshakes: handshakes,
		clientLogs: clientLogs,
	}
}

// Pull обрабатывает POST /api/v1/pull/{collection}.
func (h *ReplicationHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collection := r.PathValue("collection")

	req, err := decodePullRequest(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "bad pull request", slog.String("collection", collection), slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	cp, err := checkpointFromRequest(req.Checkpoint)
	if err != nil {
		sendError(h.logger, w, fmt.Sprintf("invalid checkpoint: %v", err), http.StatusBadRequest)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPullLimit
	}

	var resp api.PullResponse
	switch collection {
	case api.CollectionTransaction:
		docs, next, perr := h.checkIns.Pull(ctx, cp, limit, checkInWhere(req.Where))
		resp, err = pullResponse(docs, next, perr)
	case api.CollectionDoor:
		docs, next, perr := h.doors.Pull(ctx, cp, limit)
		resp, err = pullResponse(docs, next, perr)
	case api.CollectionHandshake:
		docs, next, perr := h.handshakes.Pull(ctx, cp, limit)
		resp, err = pullResponse(docs, next, perr)
	case api.CollectionLogClient:
		docs, next, perr := h.clientLogs.Pull(ctx, cp, limit)
		resp, err = pullResponse(docs, next, perr)
	default:
		sendError(h.logger, w, fmt.Sprintf("unknown collection %q", collection), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "pull failed", slog.String("collection", collection), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Push обрабатывает POST /api/v1/push/{collection}.
// Конфликт бизнес-правила отклоняет батч с кодом 409.
func (h *ReplicationHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collection := r.PathValue("collection")

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "bad push request", slog.String("collection", collection), slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateRows(req.Rows); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		resp api.PushResponse
		err  error
	)
	switch collection {
	case api.CollectionTransaction:
		resp, err = pushBatch(ctx, req.Rows, h.checkIns.Push)
	case api.CollectionDoor:
		resp, err = pushBatch(ctx, req.Rows, h.doors.Push)
	case api.CollectionHandshake:
		resp, err = pushBatch(ctx, req.Rows, h.handshakes.Push)
	case api.CollectionLogClient:
		resp, err = pushBatch(ctx, req.Rows, h.clientLogs.Push)
	default:
		sendError(h.logger, w, fmt.Sprintf("unknown collection %q", collection), http.StatusNotFound)
		return
	}

	switch {
	case errors.Is(err, replica.ErrDuplicateActiveCheckIn),
		errors.Is(err, replica.ErrDuplicateLogEntry):
		h.logger.WarnContext(ctx, "push rejected", slog.String("collection", collection), slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		var badRow *rowDecodeError
		if errors.As(err, &badRow) {
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "push failed", slog.String("collection", collection), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// decodePullRequest разбирает тело pull. Пустое тело равно запросу с
// нулевым чекпоинтом: так двери начинают первую синхронизацию.
func decodePullRequest(body io.Reader) (api.PullRequest, error) {
	var req api.PullRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return api.PullRequest{}, nil
		}
		return api.PullRequest{}, fmt.Errorf("invalid request body")
	}
	return req, nil
}

func checkpointFromRequest(cp *api.Checkpoint) (models.Checkpoint, error) {
	if cp == nil {
		return models.Checkpoint{}, nil
	}
	return models.CheckpointFromAPI(*cp)
}

// checkInWhere переводит проводной фильтр в доменный.
func checkInWhere(where *api.PullWhere) *models.CheckInWhere {
	if where == nil {
		return nil
	}
	return &models.CheckInWhere{
		DoorPermission: where.DoorID,
		Status:         where.Status,
	}
}

// validateRows проверяет первичные ключи до запуска merge.
func validateRows(rows []api.PushRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("push batch is empty")
	}
	for i, row := range rows {
		meta, err := models.ExtractMeta(row.NewDocumentState)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if err := validation.ValidateDocumentID(meta.ID); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

// rowDecodeError помечает строку батча, не разобравшуюся в документ.
type rowDecodeError struct {
	index int
	err   error
}

func (e *rowDecodeError) Error() string {
	return fmt.Sprintf("row %d: %v", e.index, e.err)
}

func (e *rowDecodeError) Unwrap() error { return e.err }

// decodeRows разбирает проводные строки в типизированные строки merge.
func decodeRows[D any](rows []api.PushRow) ([]replica.Row[D], error) {
	out := make([]replica.Row[D], 0, len(rows))
	for i, row := range rows {
		var doc D
		if err := json.Unmarshal(row.NewDocumentState, &doc); err != nil {
			return nil, &rowDecodeError{index: i, err: err}
		}
		typed := replica.Row[D]{New: &doc}
		if len(row.AssumedMasterState) > 0 {
			var assumed D
			if err := json.Unmarshal(row.AssumedMasterState, &assumed); err != nil {
				return nil, &rowDecodeError{index: i, err: err}
			}
			typed.Assumed = &assumed
		}
		out = append(out, typed)
	}
	return out, nil
}

// pushBatch — общий каркас push: декодировать строки, применить merge,
// вернуть записанные документы.
func pushBatch[D any](ctx context.Context, rows []api.PushRow, push func(context.Context, []replica.Row[D]) ([]*D, error)) (api.PushResponse, error) {
	typed, err := decodeRows[D](rows)
	if err != nil {
		return api.PushResponse{}, err
	}
	written, err := push(ctx, typed)
	if err != nil {
		return api.PushResponse{}, err
	}
	docs := make([]json.RawMessage, 0, len(written))
	for _, doc := range written {
		raw, err := json.Marshal(doc)
		if err != nil {
			return api.PushResponse{}, err
		}
		docs = append(docs, raw)
	}
	return api.PushResponse{Documents: docs}, nil
}

// pullResponse — общий каркас pull: сериализовать страницу и чекпоинт.
func pullResponse[D any](docs []*D, cp models.Checkpoint, err error) (api.PullResponse, error) {
	if err != nil {
		return api.PullResponse{}, err
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		raw, merr := json.Marshal(doc)
		if merr != nil {
			return api.PullResponse{}, merr
		}
		out = append(out, raw)
	}
	return api.PullResponse{Documents: out, Checkpoint: cp.API()}, nil
}
