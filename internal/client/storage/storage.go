// Package storage определяет клиентское хранилище реплики: документы
// коллекций, чекпоинты, очередь неотправленных изменений и данные
// регистрации двери.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/iudanet/doorsync/internal/models"
)

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no enrollment data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrDocumentNotFound indicates that document was not found
	ErrDocumentNotFound = errors.New("document not found")
)

// AuthData — данные регистрации двери.
type AuthData struct {
	DoorID      string `json:"door_id"`
	DeviceName  string `json:"device_name"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// PendingRow — локальное изменение, ожидающее отправки на сервер.
// Key — позиция строки в очереди; проставляется при чтении и служит
// адресом для RemovePending. Один документ может стоять в очереди
// несколько раз, поэтому удаление идёт по Key, а не по ID.
type PendingRow struct {
	Key      uint64          `json:"-"`
	ID       string          `json:"id"`
	Document json.RawMessage `json:"document"`
	Assumed  json.RawMessage `json:"assumed,omitempty"`
	QueuedAt int64           `json:"queued_at"`
}

// AuthStorage defines interface for storing enrollment data on client.
type AuthStorage interface {
	// SaveAuth stores enrollment data.
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored enrollment data.
	// Returns ErrAuthNotFound if no auth data exists.
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored enrollment data.
	DeleteAuth(ctx context.Context) error
}

// DocumentStorage хранит локальную реплику документов коллекции.
// Документы лежат как есть, в проводном JSON.
type DocumentStorage interface {
	// SaveDocument записывает документ, замещая прежнюю версию.
	SaveDocument(ctx context.Context, collection, id string, doc json.RawMessage) error

	// GetDocument возвращает документ или ErrDocumentNotFound.
	GetDocument(ctx context.Context, collection, id string) (json.RawMessage, error)

	// ListDocuments возвращает все документы коллекции.
	ListDocuments(ctx context.Context, collection string) ([]json.RawMessage, error)
}

// CheckpointStorage хранит чекпоинт каждой коллекции.
type CheckpointStorage interface {
	// SaveCheckpoint записывает чекпоинт коллекции.
	SaveCheckpoint(ctx context.Context, collection string, cp models.Checkpoint) error

	// GetCheckpoint возвращает чекпоинт коллекции.
	// Для нетронутой коллекции — нулевой чекпоинт без ошибки.
	GetCheckpoint(ctx context.Context, collection string) (models.Checkpoint, error)
}

// PendingStorage — очередь изменений, сделанных офлайн.
type PendingStorage interface {
	// EnqueuePending ставит изменение в очередь коллекции.
	EnqueuePending(ctx context.Context, collection string, row PendingRow) error

	// ListPending возвращает очередь коллекции в порядке постановки,
	// с заполненными Key.
	ListPending(ctx context.Context, collection string) ([]PendingRow, error)

	// RemovePending убирает из очереди строки с указанными Key.
	RemovePending(ctx context.Context, collection string, keys []uint64) error
}

// ClientIdentity выдаёт стабильный идентификатор установки клиента.
type ClientIdentity interface {
	// ClientID возвращает идентификатор, создавая его при первом вызове.
	ClientID(ctx context.Context) (string, error)
}

// Storage объединяет все клиентские хранилища.
type Storage interface {
	AuthStorage
	DocumentStorage
	CheckpointStorage
	PendingStorage
	ClientIdentity
	Close() error
}
