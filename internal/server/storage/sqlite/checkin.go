package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/doorsync/internal/models"
	"github.com/iudanet/doorsync/internal/server/storage"
)

// CheckInStore implements storage.CheckInStore on SQLite.
type CheckInStore struct {
	db *sql.DB
}

const checkInColumns = `id, name, student_number, id_card_base64, register_type,
	       status, door_permission,
	       server_created_at, server_updated_at, client_created_at, client_updated_at,
	       diff_time_create, diff_time_update, deleted`

// FindByID retrieves a check-in record by id.
// Returns storage.ErrNotFound if the record doesn't exist.
func (s *CheckInStore) FindByID(ctx context.Context, id string) (*models.CheckInRecord, error) {
	query := `SELECT ` + checkInColumns + ` FROM transactions WHERE id = ?`

	rec, err := scanCheckIn(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get check-in record: %w", err)
	}
	return rec, nil
}

// Find retrieves all check-in records matching the optional filter.
// Непустые поля фильтра сопоставляются по подстроке (семантика $regex
// оригинального протокола). Deleted-записи включаются.
func (s *CheckInStore) Find(ctx context.Context, where *models.CheckInWhere) ([]*models.CheckInRecord, error) {
	query := `SELECT ` + checkInColumns + ` FROM transactions`
	var args []any
	if where != nil {
		query += `
		WHERE (? = '' OR instr(door_permission, ?) > 0)
		  AND (? = '' OR instr(status, ?) > 0)`
		args = append(args,
			where.DoorPermission, where.DoorPermission,
			where.Status, where.Status,
		)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-in records: %w", err)
	}
	defer rows.Close()

	return scanCheckIns(rows)
}

// FindActiveByStudent retrieves check-in records with the given
// student_number and status "IN". Uses the (student_number, status) index.
func (s *CheckInStore) FindActiveByStudent(ctx context.Context, studentNumber string) ([]*models.CheckInRecord, error) {
	query := `SELECT ` + checkInColumns + `
		FROM transactions
		WHERE student_number = ? AND status = ? AND deleted = 0`

	rows, err := s.db.QueryContext(ctx, query, studentNumber, models.CheckInStatusIn)
	if err != nil {
		return nil, fmt.Errorf("failed to query active check-ins: %w", err)
	}
	defer rows.Close()

	return scanCheckIns(rows)
}

// Upsert inserts the record or fully replaces an existing one.
func (s *CheckInStore) Upsert(ctx context.Context, rec *models.CheckInRecord) error {
	query := `
		INSERT INTO transactions (
			id, name, student_number, id_card_base64, register_type,
			status, door_permission,
			server_created_at, server_updated_at, client_created_at, client_updated_at,
			diff_time_create, diff_time_update, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			student_number = excluded.student_number,
			id_card_base64 = excluded.id_card_base64,
			register_type = excluded.register_type,
			status = excluded.status,
			door_permission = excluded.door_permission,
			server_created_at = excluded.server_created_at,
			server_updated_at = excluded.server_updated_at,
			client_created_at = excluded.client_created_at,
			client_updated_at = excluded.client_updated_at,
			diff_time_create = excluded.diff_time_create,
			diff_time_update = excluded.diff_time_update,
			deleted = excluded.deleted
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.StudentNumber, rec.IDCardBase64, rec.RegisterType,
		rec.Status, rec.DoorPermission,
		int64(rec.ServerCreatedAt), int64(rec.ServerUpdatedAt),
		int64(rec.ClientCreatedAt), int64(rec.ClientUpdatedAt),
		int64(rec.DiffTimeCreate), int64(rec.DiffTimeUpdate),
		boolToInt(rec.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert check-in record: %w", err)
	}
	return nil
}

// Patch updates an existing record in place.
// Returns storage.ErrNotFound if the record doesn't exist.
func (s *CheckInStore) Patch(ctx context.Context, rec *models.CheckInRecord) error {
	query := `
		UPDATE transactions
		SET name = ?, student_number = ?, id_card_base64 = ?, register_type = ?,
		    status = ?, door_permission = ?,
		    server_updated_at = ?, client_updated_at = ?, diff_time_update = ?,
		    deleted = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.Name, rec.StudentNumber, rec.IDCardBase64, rec.RegisterType,
		rec.Status, rec.DoorPermission,
		int64(rec.ServerUpdatedAt), int64(rec.ClientUpdatedAt), int64(rec.DiffTimeUpdate),
		boolToInt(rec.Deleted),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to patch check-in record: %w", err)
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

func scanCheckIn(row rowScanner) (*models.CheckInRecord, error) {
	rec := &models.CheckInRecord{}
	var deleted int
	var serverCreated, serverUpdated, clientCreated, clientUpdated, diffCreate, diffUpdate int64

	err := row.Scan(
		&rec.ID, &rec.Name, &rec.StudentNumber, &rec.IDCardBase64, &rec.RegisterType,
		&rec.Status, &rec.DoorPermission,
		&serverCreated, &serverUpdated, &clientCreated, &clientUpdated,
		&diffCreate, &diffUpdate, &deleted,
	)
	if err != nil {
		return nil, err
	}

	rec.ServerCreatedAt = models.Timestamp(serverCreated)
	rec.ServerUpdatedAt = models.Timestamp(serverUpdated)
	rec.ClientCreatedAt = models.Timestamp(clientCreated)
	rec.ClientUpdatedAt = models.Timestamp(clientUpdated)
	rec.DiffTimeCreate = models.Timestamp(diffCreate)
	rec.DiffTimeUpdate = models.Timestamp(diffUpdate)
	rec.Deleted = intToBool(deleted)
	return rec, nil
}

func scanCheckIns(rows *sql.Rows) ([]*models.CheckInRecord, error) {
	recs := make([]*models.CheckInRecord, 0)
	for rows.Next() {
		rec, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check-in record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate check-in records: %w", err)
	}
	return recs, nil
}
