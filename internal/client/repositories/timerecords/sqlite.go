// Package timerecords stores employee time records.
package timerecords

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

const selectColumns = `local_id, server_id, dwr_local_id, employee_id, employee_data,
	start_time, stop_time, rig_time, travel_time, role_id, role_data,
	has_local_changes, created_locally, deleted_locally`

const dirtyClause = `(has_local_changes = 1 OR created_locally = 1 OR deleted_locally = 1)`

func (r *SQLiteRepository) Save(ctx context.Context, tr *models.TimeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO time_records (local_id, server_id, dwr_local_id, employee_id, employee_data,
			start_time, stop_time, rig_time, travel_time, role_id, role_data,
			has_local_changes, created_locally, deleted_locally, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			dwr_local_id = excluded.dwr_local_id,
			employee_id = excluded.employee_id,
			employee_data = excluded.employee_data,
			start_time = excluded.start_time,
			stop_time = excluded.stop_time,
			rig_time = excluded.rig_time,
			travel_time = excluded.travel_time,
			role_id = excluded.role_id,
			role_data = excluded.role_data,
			has_local_changes = excluded.has_local_changes,
			created_locally = excluded.created_locally,
			deleted_locally = excluded.deleted_locally,
			updated_at = excluded.updated_at`,
		tr.LocalID, dbx.NullInt64(tr.ServerID), tr.DWRLocalID, tr.EmployeeID, dbx.NullJSON(tr.EmployeeData),
		dbx.NullString(tr.StartTime), dbx.NullString(tr.StopTime),
		dbx.NullString(tr.RigTime), dbx.NullString(tr.TravelTime),
		dbx.NullInt64(tr.RoleID), dbx.NullJSON(tr.RoleData),
		dbx.BoolInt(tr.HasLocalChanges), dbx.BoolInt(tr.CreatedLocally), dbx.BoolInt(tr.DeletedLocally),
		r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save time record[%s]: %w", tr.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, localID string) (*models.TimeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM time_records WHERE local_id = ?`, localID)
	tr, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time record[%s]: %w", localID, err)
	}
	return tr, nil
}

func (r *SQLiteRepository) ListByDWR(ctx context.Context, dwrLocalID string) ([]models.TimeRecord, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM time_records
		WHERE dwr_local_id = ? AND deleted_locally = 0 ORDER BY id`, dwrLocalID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.TimeRecord, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM time_records WHERE `+dirtyClause+` ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.TimeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time records: %w", err)
	}
	defer rows.Close()

	var result []models.TimeRecord
	for rows.Next() {
		tr, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time record row: %w", err)
		}
		result = append(result, *tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time record rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetServerID(ctx context.Context, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE time_records SET server_id = ? WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to set server id for time record[%s]: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkCreated(ctx context.Context, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE time_records SET server_id = ?, created_locally = 0, has_local_changes = 1 WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to mark time record[%s] created: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, localID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM time_records WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete time record[%s]: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) CountDirty(ctx context.Context) (int, error) {
	n, err := dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM time_records WHERE `+dirtyClause)
	if err != nil {
		return 0, fmt.Errorf("failed to count dirty time records: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM time_records`); err != nil {
		return fmt.Errorf("failed to delete time records: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.TimeRecord, error) {
	var (
		tr                        models.TimeRecord
		serverID, roleID          sql.NullInt64
		employeeData, roleData    sql.NullString
		start, stop, rig, travel  sql.NullString
		changed, created, deleted int
	)
	if err := row.Scan(&tr.LocalID, &serverID, &tr.DWRLocalID, &tr.EmployeeID, &employeeData,
		&start, &stop, &rig, &travel, &roleID, &roleData,
		&changed, &created, &deleted); err != nil {
		return nil, err
	}
	tr.ServerID = dbx.Int64Ptr(serverID)
	tr.EmployeeData = dbx.JSON(employeeData)
	tr.StartTime = dbx.StringPtr(start)
	tr.StopTime = dbx.StringPtr(stop)
	tr.RigTime = dbx.StringPtr(rig)
	tr.TravelTime = dbx.StringPtr(travel)
	tr.RoleID = dbx.Int64Ptr(roleID)
	tr.RoleData = dbx.JSON(roleData)
	tr.HasLocalChanges = changed == 1
	tr.CreatedLocally = created == 1
	tr.DeletedLocally = deleted == 1
	return &tr, nil
}
