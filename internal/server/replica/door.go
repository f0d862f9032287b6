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

// DoorService — pull и merge-резолвер коллекции door.
type DoorService struct {
	store  storage.DoorStore
	bus    *stream.Bus
	clock  Clock
	logger *slog.Logger
	mu     sync.Mutex
}

// NewDoorService creates the door collection service.
func NewDoorService(store storage.DoorStore, bus *stream.Bus, clock Clock, logger *slog.Logger) *DoorService {
	return &DoorService{store: store, bus: bus, clock: clock, logger: logger}
}

// Pull возвращает очередную страницу после чекпоинта.
func (s *DoorService) Pull(ctx context.Context, cp models.Checkpoint, limit int) ([]*models.Door, models.Checkpoint, error) {
	docs, err := s.store.Find(ctx)
	if err != nil {
		return nil, cp, fmt.Errorf("failed to load doors: %w", err)
	}
	page, next := replication.Paginate(docs, cp, limit)
	return page, next, nil
}

// Push применяет push-батч. Правил создания сверх проставления серверных
// метаданных нет; обновление перезаписывает изменяемые поля. Поле
// current_persons протокол только переносит — им управляет прикладной слой.
func (s *DoorService) Push(ctx context.Context, rows []Row[models.Door]) ([]*models.Door, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := make([]*models.Door, 0, len(rows))
	var cp models.Checkpoint

	for _, row := range rows {
		doc := row.New
		now := s.clock.Now()

		existing, err := s.store.FindByID(ctx, doc.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			doc.StampCreate(now)
			if err := s.store.Upsert(ctx, doc); err != nil {
				return nil, err
			}
			written = append(written, doc)
			cp = models.Checkpoint{ID: doc.ID, ServerUpdatedAt: doc.ServerUpdatedAt}

		case err != nil:
			return nil, err

		default:
			existing.Name = doc.Name
			existing.Status = doc.Status
			existing.MaxPersons = doc.MaxPersons
			existing.CurrentPersons = doc.CurrentPersons
			existing.Deleted = doc.Deleted
			existing.ClientUpdatedAt = doc.ClientUpdatedAt
			existing.StampUpdate(now)
			if err := s.store.Patch(ctx, existing); err != nil {
				return nil, err
			}
			written = append(written, existing)
			cp = models.Checkpoint{ID: existing.ID, ServerUpdatedAt: existing.ServerUpdatedAt}
		}
	}

	if err := publishBatch(s.bus, api.CollectionDoor, written, cp); err != nil {
		return nil, err
	}

	s.logger.Info("door batch persisted", "rows", len(rows), "written", len(written))
	return written, nil
}
