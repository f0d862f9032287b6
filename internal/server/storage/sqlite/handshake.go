package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/storage"
)

// HandshakeStore implements storage.HandshakeStore on SQLite.
type HandshakeStore struct {
	db *sql.DB
}

const handshakeColumns = `id, transaction_id, handshake, events,
	       server_created_at, server_updated_at, client_created_at, client_updated_at,
	       diff_time_create, diff_time_update, deleted`

// FindByID retrieves a handshake log by id.
// Returns storage.ErrNotFound if the log doesn't exist.
func (s *HandshakeStore) FindByID(ctx context.Context, id string) (*models.HandshakeLog, error) {
	query := `SELECT ` + handshakeColumns + ` FROM handshakes WHERE id = ?`

	log, err := scanHandshake(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get handshake log: %w", err)
	}
	return log, nil
}

// Find retrieves all handshake logs, including soft-deleted ones.
func (s *HandshakeStore) Find(ctx context.Context) ([]*models.HandshakeLog, error) {
	query := `SELECT ` + handshakeColumns + ` FROM handshakes`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query handshake logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.HandshakeLog, 0)
	for rows.Next() {
		log, err := scanHandshake(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan handshake log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate handshake logs: %w", err)
	}
	return logs, nil
}

// Upsert inserts the log or fully replaces an existing one.
func (s *HandshakeStore) Upsert(ctx context.Context, log *models.HandshakeLog) error {
	query := `
		INSERT INTO handshakes (
			id, transaction_id, handshake, events,
			server_created_at, server_updated_at, client_created_at, client_updated_at,
			diff_time_create, diff_time_update, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			transaction_id = excluded.transaction_id,
			handshake = excluded.handshake,
			events = excluded.events,
			server_created_at = excluded.server_created_at,
			server_updated_at = excluded.server_updated_at,
			client_created_at = excluded.client_created_at,
			client_updated_at = excluded.client_updated_at,
			diff_time_create = excluded.diff_time_create,
			diff_time_update = excluded.diff_time_update,
			deleted = excluded.deleted
	`

	_, err := s.db.ExecContext(ctx, query,
		log.ID, log.TransactionID, log.Handshake, log.Events,
		int64(log.ServerCreatedAt), int64(log.ServerUpdatedAt),
		int64(log.ClientCreatedAt), int64(log.ClientUpdatedAt),
		int64(log.DiffTimeCreate), int64(log.DiffTimeUpdate),
		boolToInt(log.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert handshake log: %w", err)
	}
	return nil
}

// Patch updates an existing log in place.
// Returns storage.ErrNotFound if the log doesn't exist.
func (s *HandshakeStore) Patch(ctx context.Context, log *models.HandshakeLog) error {
	query := `
		UPDATE handshakes
		SET transaction_id = ?, handshake = ?, events = ?,
		    server_updated_at = ?, client_updated_at = ?, diff_time_update = ?,
		    deleted = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		log.TransactionID, log.Handshake, log.Events,
		int64(log.ServerUpdatedAt), int64(log.ClientUpdatedAt), int64(log.DiffTimeUpdate),
		boolToInt(log.Deleted),
		log.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to patch handshake log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanHandshake(row rowScanner) (*models.HandshakeLog, error) {
	log := &models.HandshakeLog{}
	var deleted int
	var serverCreated, serverUpdated, clientCreated, clientUpdated, diffCreate, diffUpdate int64

	err := row.Scan(
		&log.ID, &log.TransactionID, &log.Handshake, &log.Events,
		&serverCreated, &serverUpdated, &clientCreated, &clientUpdated,
		&diffCreate, &diffUpdate, &deleted,
	)
	if err != nil {
		return nil, err
	}

	log.ServerCreatedAt = models.Timestamp(serverCreated)
	log.ServerUpdatedAt = models.Timestamp(serverUpdated)
	log.ClientCreatedAt = models.Timestamp(clientCreated)
	log.ClientUpdatedAt = models.Timestamp(clientUpdated)
	log.DiffTimeCreate = models.Timestamp(diffCreate)
	log.DiffTimeUpdate = models.Timestamp(diffUpdate)
	log.Deleted = intToBool(deleted)
	return log, nil
}
