package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/storage"
)

// ClientLogStore implements storage.ClientLogStore on SQLite.
// Журнал create-only, поэтому обновляющих методов нет.
type ClientLogStore struct {
	db *sql.DB
}

const clientLogColumns = `id, client_id, type, status, meta_data,
	       server_created_at, server_updated_at, client_created_at, client_updated_at,
	       diff_time_create, diff_time_update, deleted`

// FindByID retrieves a client log entry by id.
// Returns storage.ErrNotFound if the entry doesn't exist.
func (s *ClientLogStore) FindByID(ctx context.Context, id string) (*models.ClientLogEntry, error) {
	query := `SELECT ` + clientLogColumns + ` FROM client_logs WHERE id = ?`

	entry, err := scanClientLog(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client log entry: %w", err)
	}
	return entry, nil
}

// Find retrieves all client log entries, including soft-deleted ones.
func (s *ClientLogStore) Find(ctx context.Context) ([]*models.ClientLogEntry, error) {
	query := `SELECT ` + clientLogColumns + ` FROM client_logs`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query client log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ClientLogEntry, 0)
	for rows.Next() {
		entry, err := scanClientLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate client log entries: %w", err)
	}
	return entries, nil
}

// Upsert inserts the entry or fully replaces an existing one.
func (s *ClientLogStore) Upsert(ctx context.Context, entry *models.ClientLogEntry) error {
	query := `
		INSERT INTO client_logs (
			id, client_id, type, status, meta_data,
			server_created_at, server_updated_at, client_created_at, client_updated_at,
			diff_time_create, diff_time_update, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			type = excluded.type,
			status = excluded.status,
			meta_data = excluded.meta_data,
			server_created_at = excluded.server_created_at,
			server_updated_at = excluded.server_updated_at,
			client_created_at = excluded.client_created_at,
			client_updated_at = excluded.client_updated_at,
			diff_time_create = excluded.diff_time_create,
			diff_time_update = excluded.diff_time_update,
			deleted = excluded.deleted
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.ClientID, entry.Type, entry.Status, entry.MetaData,
		int64(entry.ServerCreatedAt), int64(entry.ServerUpdatedAt),
		int64(entry.ClientCreatedAt), int64(entry.ClientUpdatedAt),
		int64(entry.DiffTimeCreate), int64(entry.DiffTimeUpdate),
		boolToInt(entry.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert client log entry: %w", err)
	}
	return nil
}

func scanClientLog(row rowScanner) (*models.ClientLogEntry, error) {
	entry := &models.ClientLogEntry{}
	var deleted int
	var serverCreated, serverUpdated, clientCreated, clientUpdated, diffCreate, diffUpdate int64

	err := row.Scan(
		&entry.ID, &entry.ClientID, &entry.Type, &entry.Status, &entry.MetaData,
		&serverCreated, &serverUpdated, &clientCreated, &clientUpdated,
		&diffCreate, &diffUpdate, &deleted,
	)
	if err != nil {
		return nil, err
	}

	entry.ServerCreatedAt = models.Timestamp(serverCreated)
	entry.ServerUpdatedAt = models.Timestamp(serverUpdated)
	entry.ClientCreatedAt = models.Timestamp(clientCreated)
	entry.ClientUpdatedAt = models.Timestamp(clientUpdated)
	entry.DiffTimeCreate = models.Timestamp(diffCreate)
	entry.DiffTimeUpdate = models.Timestamp(diffUpdate)
	entry.Deleted = intToBool(deleted)
	return entry, nil
}
