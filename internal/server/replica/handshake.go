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

// HandshakeService — pull и merge-резолвер коллекции handshake.
type HandshakeService struct {
	store  storage.HandshakeStore
	bus    *stream.Bus
	clock  Clock
	logger *slog.Logger
	mu     sync.Mutex
}

// NewHandshakeService creates the handshake collection service.
func NewHandshakeService(store storage.HandshakeStore, bus *stream.Bus, clock Clock, logger *slog.Logger) *HandshakeService {
	return &HandshakeService{store: store, bus: bus, clock: clock, logger: logger}
}

// Pull возвращает очередную страницу после чекпоинта.
func (s *HandshakeService) Pull(ctx context.Context, cp models.Checkpoint, limit int) ([]*models.HandshakeLog, models.Checkpoint, error) {
	docs, err := s.store.Find(ctx)
	if err != nil {
		return nil, cp, fmt.Errorf("failed to load handshake logs: %w", err)
	}
	page, next := replication.Paginate(docs, cp, limit)
	return page, next, nil
}

// Push применяет push-батч. Обе накопительные части журнала только растут:
// создание дописывает к клиентскому событию серверный маркер RECEIVE и
// ack-токен, обновление — настоящий append-merge: разобрать существующий
// журнал, дописать входящие события, заново сериализовать. Ничего из
// накопленного не перезаписывается.
func (s *HandshakeService) Push(ctx context.Context, rows []Row[models.HandshakeLog]) ([]*models.HandshakeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := make([]*models.HandshakeLog, 0, len(rows))
	var cp models.Checkpoint

	for _, row := range rows {
		doc := row.New
		now := s.clock.Now()

		incoming, err := models.ParseEventLog(doc.Events)
		if err != nil {
			return nil, fmt.Errorf("handshake %s: %w", doc.ID, err)
		}

		existing, err := s.store.FindByID(ctx, doc.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			log := incoming.Append(models.Event{
				Type:  models.EventTypeReceive,
				At:    now,
				Actor: models.EventActorServer,
			})
			encoded, err := log.Encode()
			if err != nil {
				return nil, fmt.Errorf("handshake %s: %w", doc.ID, err)
			}
			doc.Events = encoded
			doc.Handshake = models.AppendHandshakeToken(doc.Handshake, models.HandshakeAckToken)
			doc.StampCreate(now)
			if err := s.store.Upsert(ctx, doc); err != nil {
				return nil, err
			}
			written = append(written, doc)
			cp = models.Checkpoint{ID: doc.ID, ServerUpdatedAt: doc.ServerUpdatedAt}

		case err != nil:
			return nil, err

		default:
			log, err := models.ParseEventLog(existing.Events)
			if err != nil {
				return nil, fmt.Errorf("handshake %s: stored events corrupted: %w", doc.ID, err)
			}
			encoded, err := log.Append(incoming...).Encode()
			if err != nil {
				return nil, fmt.Errorf("handshake %s: %w", doc.ID, err)
			}
			existing.Events = encoded
			existing.Handshake = models.AppendHandshakeToken(existing.Handshake, doc.Handshake)
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

	if err := publishBatch(s.bus, api.CollectionHandshake, written, cp); err != nil {
		return nil, err
	}

	s.logger.Info("handshake batch persisted", "rows", len(rows), "written", len(written))
	return written, nil
}
