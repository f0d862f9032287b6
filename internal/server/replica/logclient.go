package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/replication"
	"github.com/iudanet/doorsync/internal/server/storage"
	"github.com/iudanet/doorsync/internal/server/stream"
	"github.com/iudanet/doorsync/pkg/api"
)

// ClientLogService — pull и merge-резолвер коллекции logclient.
// Коллекция create-only: update-пути нет.
type ClientLogService struct {
	store  storage.ClientLogStore
	bus    *stream.Bus
	clock  Clock
	logger *slog.Logger
	// abortBatch определяет политику батча при повторном id: true —
	// отменить батч целиком (по умолчанию, атомарность одного push),
	// false — пропустить строку и продолжить.
	abortBatch bool
	mu         sync.Mutex
}

// NewClientLogService creates the logclient collection service.
// Батч атомарен: первая ошибка бизнес-правила отменяет его целиком.
func NewClientLogService(store storage.ClientLogStore, bus *stream.Bus, clock Clock, logger *slog.Logger) *ClientLogService {
	return &ClientLogService{store: store, bus: bus, clock: clock, logger: logger, abortBatch: true}
}

// AllowPartialBatch переключает сервис в режим, в котором строка с
// повторным id пропускается, а остальной батч записывается.
func (s *ClientLogService) AllowPartialBatch() *ClientLogService {
	s.abortBatch = false
	return s
}

// Pull возвращает очередную страницу после чекпоинта.
func (s *ClientLogService) Pull(ctx context.Context, cp models.Checkpoint, limit int) ([]*models.ClientLogEntry, models.Checkpoint, error) {
	docs, err := s.store.Find(ctx)
	if err != nil {
		return nil, cp, fmt.Errorf("failed to load client log entries: %w", err)
	}
	page, next := replication.Paginate(docs, cp, limit)
	return page, next, nil
}

// Push применяет push-батч. Записи неизменяемы: строка с существующим id —
// ошибка протокола ErrDuplicateLogEntry, а не merge.
func (s *ClientLogService) Push(ctx context.Context, rows []Row[models.ClientLogEntry]) ([]*models.ClientLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := make([]*models.ClientLogEntry, 0, len(rows))
	var cp models.Checkpoint

	for _, row := range rows {
		doc := row.New
		now := s.clock.Now()

		_, err := s.store.FindByID(ctx, doc.ID)
		switch {
		case err == nil:
			dupErr := fmt.Errorf("%w: id %s", ErrDuplicateLogEntry, doc.ID)
			if s.abortBatch {
				return nil, dupErr
			}
			s.logger.Warn("skipping duplicate client log entry", "id", doc.ID)
			continue

		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}

		doc.StampCreate(now)
		if err := s.store.Upsert(ctx, doc); err != nil {
			return nil, err
		}
		written = append(written, doc)
		cp = models.Checkpoint{ID: doc.ID, ServerUpdatedAt: doc.ServerUpdatedAt}
	}

	if err := publishBatch(s.bus, api.CollectionLogClient, written, cp); err != nil {
		return nil, err
	}

	s.logger.Info("client log batch persisted", "rows", len(rows), "written", len(written))
	return written, nil
}
