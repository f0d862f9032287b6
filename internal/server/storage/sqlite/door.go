package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/storage"
)

// DoorStore implements storage.DoorStore on SQLite.
type DoorStore struct {
	db *sql.DB
}

const doorColumns = `id, name, status, max_persons, current_persons,
	       server_created_at, server_updated_at, client_created_at, client_updated_at,
	       diff_time_create, diff_time_update, deleted`

// FindByID retrieves a door by id.
// Returns storage.ErrNotFound if the door doesn't exist.
func (s *DoorStore) FindByID(ctx context.Context, id string) (*models.Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors WHERE id = ?`

	door, err := scanDoor(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get door: %w", err)
	}
	return door, nil
}

// Find retrieves all doors, including soft-deleted ones.
func (s *DoorStore) Find(ctx context.Context) ([]*models.Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query doors: %w", err)
	}
	defer rows.Close()

	doors := make([]*models.Door, 0)
	for rows.Next() {
		door, err := scanDoor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan door: %w", err)
		}
		doors = append(doors, door)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate doors: %w", err)
	}
	return doors, nil
}

// Upsert inserts the door or fully replaces an existing one.
func (s *DoorStore) Upsert(ctx context.Context, door *models.Door) error {
	query := `
		INSERT INTO doors (
			id, name, status, max_persons, current_persons,
			server_created_at, server_updated_at, client_created_at, client_updated_at,
			diff_time_create, diff_time_update, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			max_persons = excluded.max_persons,
			current_persons = excluded.current_persons,
			server_created_at = excluded.server_created_at,
			server_updated_at = excluded.server_updated_at,
			client_created_at = excluded.client_created_at,
			client_updated_at = excluded.client_updated_at,
			diff_time_create = excluded.diff_time_create,
			diff_time_update = excluded.diff_time_update,
			deleted = excluded.deleted
	`

	_, err := s.db.ExecContext(ctx, query,
		door.ID, door.Name, door.Status, door.MaxPersons, door.CurrentPersons,
		int64(door.ServerCreatedAt), int64(door.ServerUpdatedAt),
		int64(door.ClientCreatedAt), int64(door.ClientUpdatedAt),
		int64(door.DiffTimeCreate), int64(door.DiffTimeUpdate),
		boolToInt(door.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert door: %w", err)
	}
	return nil
}

// Patch updates an existing door in place.
// Returns storage.ErrNotFound if the door doesn't exist.
func (s *DoorStore) Patch(ctx context.Context, door *models.Door) error {
	query := `
		UPDATE doors
		SET name = ?, status = ?, max_persons = ?, current_persons = ?,
		    server_updated_at = ?, client_updated_at = ?, diff_time_update = ?,
		    deleted = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		door.Name, door.Status, door.MaxPersons, door.CurrentPersons,
		int64(door.ServerUpdatedAt), int64(door.ClientUpdatedAt), int64(door.DiffTimeUpdate),
		boolToInt(door.Deleted),
		door.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to patch door: %w", err)
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

// SetStatus перезаписывает только поле status, минуя merge-правила:
// присутствие двери — побочный эффект жизненного цикла подписки, а не push.
// Отсутствие двери с таким id не считается ошибкой.
func (s *DoorStore) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE doors SET status = ? WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("failed to set door status: %w", err)
	}
	return nil
}

func scanDoor(row rowScanner) (*models.Door, error) {
	door := &models.Door{}
	var deleted int
	var serverCreated, serverUpdated, clientCreated, clientUpdated, diffCreate, diffUpdate int64

	err := row.Scan(
		&door.ID, &door.Name, &door.Status, &door.MaxPersons, &door.CurrentPersons,
		&serverCreated, &serverUpdated, &clientCreated, &clientUpdated,
		&diffCreate, &diffUpdate, &deleted,
	)
	if err != nil {
		return nil, err
	}

	door.ServerCreatedAt = models.Timestamp(serverCreated)
	door.ServerUpdatedAt = models.Timestamp(serverUpdated)
	door.ClientCreatedAt = models.Timestamp(clientCreated)
	door.ClientUpdatedAt = models.Timestamp(clientUpdated)
	door.DiffTimeCreate = models.Timestamp(diffCreate)
	door.DiffTimeUpdate = models.Timestamp(diffUpdate)
	door.Deleted = intToBool(deleted)
	return door, nil
}
