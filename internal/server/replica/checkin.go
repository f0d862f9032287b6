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

// CheckInService — pull и merge-резолвер коллекции transaction.
type CheckInService struct {
	store  storage.CheckInStore
	bus    *stream.Bus
	clock  Clock
	logger *slog.Logger
	mu     sync.Mutex
}

// NewCheckInService creates the transaction collection service.
func NewCheckInService(store storage.CheckInStore, bus *stream.Bus, clock Clock, logger *slog.Logger) *CheckInService {
	return &CheckInService{store: store, bus: bus, clock: clock, logger: logger}
}

// Pull возвращает очередную страницу после чекпоинта. Выборочный фильтр
// (nil — всё) применяется до пагинации.
func (s *CheckInService) Pull(ctx context.Context, cp models.Checkpoint, limit int, where *models.CheckInWhere) ([]*models.CheckInRecord, models.Checkpoint, error) {
	docs, err := s.store.Find(ctx, where)
	if err != nil {
		return nil, cp, fmt.Errorf("failed to load check-in records: %w", err)
	}
	page, next := replication.Paginate(docs, cp, limit)
	return page, next, nil
}

// Push применяет push-батч. Правило создания: запись отклоняется с
// ErrDuplicateActiveCheckIn, если у студента уже есть запись со статусом
// "IN". Правило обновления: перезаписываются изменяемые поля (status,
// deleted); идентификационные поля берутся из существующей записи.
// Нарушение бизнес-правила отменяет батч целиком.
func (s *CheckInService) Push(ctx context.Context, rows []Row[models.CheckInRecord]) ([]*models.CheckInRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := make([]*models.CheckInRecord, 0, len(rows))
	var cp models.Checkpoint

	for _, row := range rows {
		doc := row.New
		now := s.clock.Now()

		existing, err := s.store.FindByID(ctx, doc.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			active, err := s.store.FindActiveByStudent(ctx, doc.StudentNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to check active check-ins: %w", err)
			}
			if len(active) > 0 {
				return nil, fmt.Errorf("%w: student_number %s", ErrDuplicateActiveCheckIn, doc.StudentNumber)
			}
			doc.StampCreate(now)
			if err := s.store.Upsert(ctx, doc); err != nil {
				return nil, err
			}
			written = append(written, doc)
			cp = models.Checkpoint{ID: doc.ID, ServerUpdatedAt: doc.ServerUpdatedAt}

		case err != nil:
			return nil, err

		default:
			existing.Status = doc.Status
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

	if err := publishBatch(s.bus, api.CollectionTransaction, written, cp); err != nil {
		return nil, err
	}

	s.logger.Info("check-in batch persisted", "rows", len(rows), "written", len(written))
	return written, nil
}
