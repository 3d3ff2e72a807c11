// Package assignments stores work assignments.
package assignments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/dbx"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const selectColumns = `local_id, server_id, dwr_local_id, work_description_id, work_description_data,
	description, from_time, to_time, input_values, is_legacy,
	has_local_changes, created_locally, deleted_locally`

const dirtyClause = `(has_local_changes = 1 OR created_locally = 1 OR deleted_locally = 1)`

func (r *SQLiteRepository) Save(ctx context.Context, w *models.WorkAssignment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO work_assignments (local_id, server_id, dwr_local_id, work_description_id, work_description_data,
			description, from_time, to_time, input_values, is_legacy,
			has_local_changes, created_locally, deleted_locally, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			dwr_local_id = excluded.dwr_local_id,
			work_description_id = excluded.work_description_id,
			work_description_data = excluded.work_description_data,
			description = excluded.description,
			from_time = excluded.from_time,
			to_time = excluded.to_time,
			input_values = excluded.input_values,
			is_legacy = excluded.is_legacy,
			has_local_changes = excluded.has_local_changes,
			created_locally = excluded.created_locally,
			deleted_locally = excluded.deleted_locally,
			updated_at = excluded.updated_at`,
		w.LocalID, dbx.NullInt64(w.ServerID), w.DWRLocalID,
		dbx.NullInt64(w.WorkDescriptionID), dbx.NullJSON(w.WorkDescriptionData),
		w.Description, w.FromTime, dbx.NullString(w.ToTime), dbx.NullJSON(w.InputValues),
		dbx.BoolInt(w.IsLegacy),
		dbx.BoolInt(w.HasLocalChanges), dbx.BoolInt(w.CreatedLocally), dbx.BoolInt(w.DeletedLocally),
		r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save work assignment[%s]: %w", w.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, localID string) (*models.WorkAssignment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM work_assignments WHERE local_id = ?`, localID)
	w, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work assignment[%s]: %w", localID, err)
	}
	return w, nil
}

func (r *SQLiteRepository) ListByDWR(ctx context.Context, dwrLocalID string) ([]models.WorkAssignment, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM work_assignments
		WHERE dwr_local_id = ? AND deleted_locally = 0 ORDER BY from_time, id`, dwrLocalID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.WorkAssignment, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM work_assignments WHERE `+dirtyClause+` ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.WorkAssignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list work assignments: %w", err)
	}
	defer rows.Close()

	var result []models.WorkAssignment
	for rows.Next() {
		w, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work assignment row: %w", err)
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work assignment rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetServerID(ctx context.Context, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE work_assignments SET server_id = ? WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to set server id for work assignment[%s]: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkCreated(ctx context.Context, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE work_assignments SET server_id = ?, created_locally = 0, has_local_changes = 1 WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to mark work assignment[%s] created: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, localID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM work_assignments WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete work assignment[%s]: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) CountDirty(ctx context.Context) (int, error) {
	n, err := dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM work_assignments WHERE `+dirtyClause)
	if err != nil {
		return 0, fmt.Errorf("failed to count dirty work assignments: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM work_assignments`); err != nil {
		return fmt.Errorf("failed to delete work assignments: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.WorkAssignment, error) {
	var (
		w                         models.WorkAssignment
		serverID, descriptionID   sql.NullInt64
		descriptionData, inputs   sql.NullString
		fromTime, toTime          sql.NullString
		legacy                    int
		changed, created, deleted int
	)
	if err := row.Scan(&w.LocalID, &serverID, &w.DWRLocalID, &descriptionID, &descriptionData,
		&w.Description, &fromTime, &toTime, &inputs, &legacy,
		&changed, &created, &deleted); err != nil {
		return nil, err
	}
	w.ServerID = dbx.Int64Ptr(serverID)
	w.WorkDescriptionID = dbx.Int64Ptr(descriptionID)
	w.WorkDescriptionData = dbx.JSON(descriptionData)
	w.FromTime = fromTime.String
	w.ToTime = dbx.StringPtr(toTime)
	w.InputValues = dbx.JSON(inputs)
	w.IsLegacy = legacy == 1
	w.HasLocalChanges = changed == 1
	w.CreatedLocally = created == 1
	w.DeletedLocally = deleted == 1
	return &w, nil
}
