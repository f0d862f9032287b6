package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/doorsync/internal/client/storage"
	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/pkg/api"
)

// ProbeInterval — период пробы связности.
const ProbeInterval = 5 * time.Second

// Manager ведёт сессии всех коллекций и режим офлайн. В офлайне сетевых
// вызовов нет вообще: локальные изменения копятся в очереди и уходят
// при восстановлении связности.
type Manager struct {
	client     Client
	store      storage.Storage
	logger     *slog.Logger
	doorID     string
	deviceName string
	enrollKey  string

	sessions map[string]*Session
	offline  atomic.Bool
	// pushSignal будит главный цикл сразу после QueueChange, чтобы
	// онлайн-клиент не ждал очередного тика пробы.
	pushSignal chan struct{}
	wg         sync.WaitGroup
}

// NewManager собирает менеджер с сессией на каждую коллекцию.
func NewManager(client Client, store storage.Storage, doorID, deviceName, enrollKey string, logger *slog.Logger) *Manager {
	m := &Manager{
		client:     client,
		store:      store,
		logger:     logger,
		doorID:     doorID,
		deviceName: deviceName,
		enrollKey:  enrollKey,
		sessions:   make(map[string]*Session),
		pushSignal: make(chan struct{}, 1),
	}
	for _, collection := range api.Collections() {
		m.sessions[collection] = NewSession(client, store, collection, doorID, logger)
	}
	// До первой успешной пробы считаем себя офлайн.
	m.offline.Store(true)
	return m
}

// Offline сообщает текущий режим.
func (m *Manager) Offline() bool {
	return m.offline.Load()
}

// Session возвращает сессию коллекции.
func (m *Manager) Session(collection string) *Session {
	return m.sessions[collection]
}

// ConnectivityCheck выполняет одну пробу и переключает режим.
// Возвращает true, когда сервер доступен.
func (m *Manager) ConnectivityCheck(ctx context.Context) bool {
	err := m.client.Probe(ctx)
	wasOffline := m.offline.Swap(err != nil)

	switch {
	case err != nil && !wasOffline:
		m.logger.Warn("server unreachable, switching to offline mode", "error", err)
	case err == nil && wasOffline:
		m.logger.Info("server reachable, leaving offline mode")
	}
	return err == nil
}

// Enroll обеспечивает наличие токена: берёт сохранённый или
// регистрирует дверь заново.
func (m *Manager) Enroll(ctx context.Context) error {
	auth, err := m.store.GetAuth(ctx)
	if err == nil && auth.AccessToken != "" && auth.ExpiresAt > time.Now().Unix() {
		m.client.SetToken(auth.AccessToken)
		return nil
	}
	if err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return err
	}

	resp, err := m.client.IssueToken(ctx, api.TokenRequest{
		DoorID:     m.doorID,
		DeviceName: m.deviceName,
		EnrollKey:  m.enrollKey,
	})
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	return m.store.SaveAuth(ctx, &storage.AuthData{
		DoorID:      m.doorID,
		DeviceName:  m.deviceName,
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.Now().Unix() + resp.ExpiresIn,
	})
}

// QueueChange сохраняет локальное изменение и ставит его в очередь
// отправки. Работает одинаково в онлайне и офлайне; сеть здесь не
// трогается.
func (m *Manager) QueueChange(ctx context.Context, collection string, doc json.RawMessage) error {
	meta, err := models.ExtractMeta(doc)
	if err != nil {
		return fmt.Errorf("bad document: %w", err)
	}

	// Прежняя локальная копия становится assumedMasterState.
	assumed, err := m.store.GetDocument(ctx, collection, meta.ID)
	if err != nil && !errors.Is(err, storage.ErrDocumentNotFound) {
		return err
	}

	if err := m.store.SaveDocument(ctx, collection, meta.ID, doc); err != nil {
		return err
	}
	if err := m.store.EnqueuePending(ctx, collection, storage.PendingRow{
		ID:       meta.ID,
		Document: doc,
		Assumed:  assumed,
		QueuedAt: time.Now().UnixMilli(),
	}); err != nil {
		return err
	}

	select {
	case m.pushSignal <- struct{}{}:
	default:
	}
	return nil
}

// LogStartup ставит в очередь запись журнала о старте клиента.
// Уйдёт на сервер вместе с остальной очередью logclient.
func (m *Manager) LogStartup(ctx context.Context) error {
	clientID, err := m.store.ClientID(ctx)
	if err != nil {
		return err
	}

	now := models.TimestampFrom(time.Now())
	entry := models.ClientLogEntry{
		Meta: models.Meta{
			ID:              uuid.New().String(),
			ClientCreatedAt: now,
			ClientUpdatedAt: now,
		},
		ClientID: clientID,
		Type:     "STARTUP",
		Status:   "OK",
	}
	doc, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return m.QueueChange(ctx, api.CollectionLogClient, doc)
}

// SyncOnce — один проход синхронизации всех коллекций: отправить
// очередь, докачать хвост истории. В офлайне — no-op.
func (m *Manager) SyncOnce(ctx context.Context) error {
	if m.Offline() {
		return nil
	}
	if err := m.Enroll(ctx); err != nil {
		return err
	}

	for _, collection := range api.Collections() {
		session := m.sessions[collection]

		pushed, err := session.PushPending(ctx)
		if err != nil {
			return fmt.Errorf("push %s: %w", collection, err)
		}
		pulled, err := session.InitialPull(ctx)
		if err != nil {
			return fmt.Errorf("pull %s: %w", collection, err)
		}
		if pushed > 0 || pulled > 0 {
			m.logger.Info("collection synced",
				"collection", collection, "pushed", pushed, "pulled", pulled)
		}
	}
	return nil
}

// FlushPending отправляет очереди всех коллекций, не трогая pull.
// В офлайне — no-op.
func (m *Manager) FlushPending(ctx context.Context) error {
	if m.Offline() {
		return nil
	}
	for _, collection := range api.Collections() {
		pushed, err := m.sessions[collection].PushPending(ctx)
		if err != nil {
			return fmt.Errorf("push %s: %w", collection, err)
		}
		if pushed > 0 {
			m.logger.Info("pending changes pushed",
				"collection", collection, "count", pushed)
		}
	}
	return nil
}

// Run — главный цикл клиента: проба связности каждые ProbeInterval,
// при выходе из офлайна — полная синхронизация и перезапуск live-потоков.
// Пока клиент онлайн, каждый проход дополнительно сбрасывает очередь
// локальных изменений; QueueChange будит цикл, не дожидаясь тика.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(ProbeInterval)
	defer ticker.Stop()

	var streamCancel context.CancelFunc

	stopStreams := func() {
		if streamCancel != nil {
			streamCancel()
			m.wg.Wait()
			streamCancel = nil
		}
	}
	defer stopStreams()

	for {
		wasOffline := m.Offline()
		if m.ConnectivityCheck(ctx) {
			if wasOffline {
				if err := m.SyncOnce(ctx); err != nil {
					m.logger.Error("sync failed", "error", err)
					m.offline.Store(true)
				} else {
					stopStreams()
					var streamCtx context.Context
					streamCtx, streamCancel = context.WithCancel(ctx)
					m.startStreams(streamCtx)
				}
			} else if err := m.FlushPending(ctx); err != nil {
				m.logger.Warn("push failed, switching to offline mode", "error", err)
				m.offline.Store(true)
				stopStreams()
			}
		} else {
			stopStreams()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-m.pushSignal:
		}
	}
}

// startStreams запускает live-поток каждой коллекции. Сессия, исчерпав
// попытки переподключения, роняет менеджер в офлайн — связность дальше
// восстанавливает проба.
func (m *Manager) startStreams(ctx context.Context) {
	for _, collection := range api.Collections() {
		session := m.sessions[collection]
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := session.Stream(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("stream stopped", "collection", session.collection, "error", err)
				m.offline.Store(true)
			}
		}()
	}
}
