// Package storage определяет интерфейсы серверного хранилища документов:
// по одному независимо индексируемому хранилищу на коллекцию. Единственный
// обязательный индекс — первичный ключ id; вторичный индекс по
// (student_number, status) удешевляет проверку повторного входа.
package storage

import (
	"context"

	"github.com/iudanet/doorsync/internal/models"
)

// CheckInStore defines persistence for the transaction collection.
type CheckInStore interface {
	// FindByID retrieves a record by id.
	// Returns ErrNotFound if the record doesn't exist.
	FindByID(ctx context.Context, id string) (*models.CheckInRecord, error)

	// Find retrieves all records matching the optional filter.
	// A nil filter matches everything. Deleted records are included:
	// репликация никогда не скрывает soft-deleted документы.
	Find(ctx context.Context, where *models.CheckInWhere) ([]*models.CheckInRecord, error)

	// FindActiveByStudent retrieves records with the given student_number
	// and status "IN". Used by the duplicate check-in rule.
	FindActiveByStudent(ctx context.Context, studentNumber string) ([]*models.CheckInRecord, error)

	// Upsert inserts the record or fully replaces an existing one.
	Upsert(ctx context.Context, rec *models.CheckInRecord) error

	// Patch updates an existing record in place.
	// Returns ErrNotFound if the record doesn't exist.
	Patch(ctx context.Context, rec *models.CheckInRecord) error
}

// DoorStore defines persistence for the door collection.
type DoorStore interface {
	// FindByID retrieves a door by id.
	// Returns ErrNotFound if the door doesn't exist.
	FindByID(ctx context.Context, id string) (*models.Door, error)

	// Find retrieves all doors, including soft-deleted ones.
	Find(ctx context.Context) ([]*models.Door, error)

	// Upsert inserts the door or fully replaces an existing one.
	Upsert(ctx context.Context, door *models.Door) error

	// Patch updates an existing door in place.
	// Returns ErrNotFound if the door doesn't exist.
	Patch(ctx context.Context, door *models.Door) error

	// SetStatus перезаписывает только поле status, минуя merge-правила.
	// Используется трекером присутствия; отсутствие двери не ошибка.
	SetStatus(ctx context.Context, id, status string) error
}

// HandshakeStore defines persistence for the handshake collection.
type HandshakeStore interface {
	// FindByID retrieves a handshake log by id.
	// Returns ErrNotFound if the log doesn't exist.
	FindByID(ctx context.Context, id string) (*models.HandshakeLog, error)

	// Find retrieves all handshake logs, including soft-deleted ones.
	Find(ctx context.Context) ([]*models.HandshakeLog, error)

	// Upsert inserts the log or fully replaces an existing one.
	Upsert(ctx context.Context, log *models.HandshakeLog) error

	// Patch updates an existing log in place.
	// Returns ErrNotFound if the log doesn't exist.
	Patch(ctx context.Context, log *models.HandshakeLog) error
}

// ClientLogStore defines persistence for the logclient collection.
// Записи create-only, поэтому Patch отсутствует.
type ClientLogStore interface {
	// FindByID retrieves a log entry by id.
	// Returns ErrNotFound if the entry doesn't exist.
	FindByID(ctx context.Context, id string) (*models.ClientLogEntry, error)

	// Find retrieves all log entries, including soft-deleted ones.
	Find(ctx context.Context) ([]*models.ClientLogEntry, error)

	// Upsert inserts the entry or fully replaces an existing one.
	Upsert(ctx context.Context, entry *models.ClientLogEntry) error
}
