// Package session ведёт репликацию клиента: начальную выгрузку,
// отправку накопленных изменений и live-поток, с переходом в офлайн
// при потере связности.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	httpClient "github.com/iudanet/doorsync/internal/client/api"
	"github.com/iudanet/doorsync/internal/client/storage"
	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/pkg/api"
)

const (
	// BatchSize — размер страницы pull и push-батча.
	BatchSize = 50
	// RetryInterval — фиксированная пауза между попытками переподключения.
	RetryInterval = 5 * time.Second
	// MaxConnectAttempts — лимит последовательных неудачных подключений,
	// после которого сессия ждёт восстановления связности.
	MaxConnectAttempts = 10
)

// Client — срез API-клиента, нужный сессии.
type Client interface {
	Probe(ctx context.Context) error
	SetToken(token string)
	IssueToken(ctx context.Context, req api.TokenRequest) (*api.TokenResponse, error)
	Pull(ctx context.Context, collection string, req api.PullRequest) (*api.PullResponse, error)
	Push(ctx context.Context, collection string, req api.PushRequest) (*api.PushResponse, error)
	Stream(ctx context.Context, collection, doorID string, handler func(api.PullResponse)) error
}

// Session реплицирует одну коллекцию. Чекпоинт сессии живёт в локальном
// хранилище и не делится с другими коллекциями.
type Session struct {
	client     Client
	store      storage.Storage
	collection string
	doorID     string
	logger     *slog.Logger
}

// NewSession creates a replication session for one collection.
func NewSession(client Client, store storage.Storage, collection, doorID string, logger *slog.Logger) *Session {
	return &Session{
		client:     client,
		store:      store,
		collection: collection,
		doorID:     doorID,
		logger:     logger,
	}
}

// InitialPull выкачивает хвост истории после сохранённого чекпоинта,
// страница за страницей, пока сервер не вернёт пустую страницу.
func (s *Session) InitialPull(ctx context.Context) (int, error) {
	total := 0
	for {
		cp, err := s.store.GetCheckpoint(ctx, s.collection)
		if err != nil {
			return total, fmt.Errorf("checkpoint load: %w", err)
		}

		req := api.PullRequest{Limit: BatchSize}
		if !cp.IsZero() {
			wire := cp.API()
			req.Checkpoint = &wire
		}

		resp, err := s.client.Pull(ctx, s.collection, req)
		if err != nil {
			return total, err
		}
		if len(resp.Documents) == 0 {
			return total, nil
		}

		applied, err := s.ApplyBatch(ctx, *resp)
		if err != nil {
			return total, err
		}
		total += applied
	}
}

// ApplyBatch применяет страницу pull или сообщение live-потока:
// идемпотентно записывает документы и продвигает чекпоинт. Документ со
// server_updated_at не новее сохранённого пропускается, поэтому повтор
// одного батча безвреден.
func (s *Session) ApplyBatch(ctx context.Context, batch api.PullResponse) (int, error) {
	applied := 0
	for _, doc := range batch.Documents {
		meta, err := models.ExtractMeta(doc)
		if err != nil {
			return applied, fmt.Errorf("bad document in %s batch: %w", s.collection, err)
		}

		fresh, err := s.isNewer(ctx, meta)
		if err != nil {
			return applied, err
		}
		if !fresh {
			continue
		}

		if err := s.store.SaveDocument(ctx, s.collection, meta.ID, doc); err != nil {
			return applied, err
		}
		applied++
	}

	cp, err := models.CheckpointFromAPI(batch.Checkpoint)
	if err != nil {
		return applied, fmt.Errorf("bad checkpoint in %s batch: %w", s.collection, err)
	}
	if !cp.IsZero() {
		if err := s.store.SaveCheckpoint(ctx, s.collection, cp); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

// isNewer сравнивает входящий документ с локальной копией.
func (s *Session) isNewer(ctx context.Context, incoming models.Meta) (bool, error) {
	existing, err := s.store.GetDocument(ctx, s.collection, incoming.ID)
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound):
		return true, nil
	case err != nil:
		return false, err
	}

	meta, err := models.ExtractMeta(existing)
	if err != nil {
		// Локальная копия нечитаема, замещаем серверной.
		return true, nil
	}
	return incoming.ServerUpdatedAt > meta.ServerUpdatedAt, nil
}

// PushPending отправляет очередь локальных изменений батчами.
// Подтверждённые сервером документы применяются к локальной реплике,
// отправленные строки убираются из очереди.
func (s *Session) PushPending(ctx context.Context) (int, error) {
	pushed := 0
	for {
		rows, err := s.store.ListPending(ctx, s.collection)
		if err != nil {
			return pushed, fmt.Errorf("pending load: %w", err)
		}
		if len(rows) == 0 {
			return pushed, nil
		}
		if len(rows) > BatchSize {
			rows = rows[:BatchSize]
		}

		req := api.PushRequest{Rows: make([]api.PushRow, 0, len(rows))}
		keys := make([]uint64, 0, len(rows))
		for _, row := range rows {
			req.Rows = append(req.Rows, api.PushRow{
				NewDocumentState:   row.Document,
				AssumedMasterState: row.Assumed,
			})
			keys = append(keys, row.Key)
		}

		resp, err := s.client.Push(ctx, s.collection, req)
		if err != nil {
			if errors.Is(err, httpClient.ErrConflict) {
				// Сервер отверг батч целиком: очередь чистим, истину
				// получим следующим pull.
				s.logger.Warn("push batch rejected", "collection", s.collection, "error", err)
				if rerr := s.store.RemovePending(ctx, s.collection, keys); rerr != nil {
					return pushed, rerr
				}
				continue
			}
			return pushed, err
		}

		for _, doc := range resp.Documents {
			meta, merr := models.ExtractMeta(doc)
			if merr != nil {
				continue
			}
			if serr := s.store.SaveDocument(ctx, s.collection, meta.ID, doc); serr != nil {
				return pushed, serr
			}
		}

		// Из очереди уходят ровно отправленные строки. Документ,
		// поставленный заново после формирования батча, лежит под
		// другим ключом и дождётся следующего прохода.
		if err := s.store.RemovePending(ctx, s.collection, keys); err != nil {
			return pushed, err
		}
		pushed += len(keys)
	}
}

// Stream держит live-поток коллекции. Попытки подключения идут с
// фиксированной паузой RetryInterval; после MaxConnectAttempts неудач
// подряд возвращается ошибка — дальше решает менеджер.
func (s *Session) Stream(ctx context.Context) error {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var received atomic.Bool
		err := s.client.Stream(ctx, s.collection, s.doorID, func(batch api.PullResponse) {
			received.Store(true)
			if _, aerr := s.ApplyBatch(ctx, batch); aerr != nil {
				s.logger.Error("failed to apply stream batch",
					"collection", s.collection, "error", aerr)
			}
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Доставка хотя бы одного батча подтверждает, что подключение
		// состоялось: счётчик неудач начинается заново.
		if received.Load() {
			attempts = 0
		}
		attempts++
		if attempts >= MaxConnectAttempts {
			return fmt.Errorf("stream %s: gave up after %d attempts: %w", s.collection, attempts, err)
		}

		s.logger.Warn("stream disconnected, retrying",
			"collection", s.collection,
			"attempt", attempts,
			"retry_in", RetryInterval,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetryInterval):
		}
	}
}
