// Package presence отслеживает живые websocket-подключения дверей и
// переключает статус двери ONLINE/OFFLINE в хранилище. Статус пишется
// напрямую, минуя merge-правила: это наблюдение сервера о связности, а не
// реплицируемое изменение клиента.
package presence

import (
	"context"
	"log/slog"
	"sync"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/storage"
)

// Tracker считает активные подключения каждой двери. Несколько стримов
// одной двери (по стриму на коллекцию) учитываются счётчиком: дверь
// становится OFFLINE только когда закрывается последнее подключение.
type Tracker struct {
	store  storage.DoorStore
	logger *slog.Logger
	counts map[string]int
	mu     sync.Mutex
}

// NewTracker creates a connection tracker backed by the door store.
func NewTracker(store storage.DoorStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		counts: make(map[string]int),
	}
}

// Connect регистрирует подключение двери. Первое подключение переводит
// дверь в ONLINE.
func (t *Tracker) Connect(ctx context.Context, doorID string) error {
	if doorID == "" {
		return nil
	}

	t.mu.Lock()
	t.counts[doorID]++
	first := t.counts[doorID] == 1
	t.mu.Unlock()

	if !first {
		return nil
	}

	t.logger.Info("door online", "door_id", doorID)
	return t.store.SetStatus(ctx, doorID, models.DoorStatusOnline)
}

// Disconnect снимает подключение двери. Последнее отключение переводит
// дверь в OFFLINE.
func (t *Tracker) Disconnect(ctx context.Context, doorID string) error {
	if doorID == "" {
		return nil
	}

	t.mu.Lock()
	switch {
	case t.counts[doorID] > 1:
		t.counts[doorID]--
		t.mu.Unlock()
		return nil
	case t.counts[doorID] == 1:
		delete(t.counts, doorID)
	default:
		// Disconnect без Connect: счётчик не уводим в минус.
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.logger.Info("door offline", "door_id", doorID)
	return t.store.SetStatus(ctx, doorID, models.DoorStatusOffline)
}

// Online сообщает, есть ли у двери хотя бы одно активное подключение.
func (t *Tracker) Online(doorID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[doorID] > 0
}
