// Package dwrs stores daily work records.
package dwrs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/dbx"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/timex"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const selectColumns = `local_id, server_id, subproject_id, subproject_data, date, ticket_number, notes,
	contact_id, contact_data, is_last_day, is_locked, lock_date, is_approved, approved_at, approved_by,
	status, is_checked_out, has_local_changes, created_locally, deleted_locally,
	last_synced_at, created_at, updated_at`

const dirtyClause = `(has_local_changes = 1 OR created_locally = 1 OR deleted_locally = 1)`

func (r *SQLiteRepository) Save(ctx context.Context, d *models.DWR) error {
	now := r.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	if d.Status == "" {
		d.Status = models.StatusDraft
	}

	var lastSynced sql.NullInt64
	if d.LastSyncedAt != nil {
		lastSynced = sql.NullInt64{Int64: d.LastSyncedAt.UnixMilli(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dwrs (local_id, server_id, subproject_id, subproject_data, date, ticket_number, notes,
			contact_id, contact_data, is_last_day, is_locked, lock_date, is_approved, approved_at, approved_by,
			status, is_checked_out, has_local_changes, created_locally, deleted_locally,
			last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			subproject_id = excluded.subproject_id,
			subproject_data = excluded.subproject_data,
			date = excluded.date,
			ticket_number = excluded.ticket_number,
			notes = excluded.notes,
			contact_id = excluded.contact_id,
			contact_data = excluded.contact_data,
			is_last_day = excluded.is_last_day,
			is_locked = excluded.is_locked,
			lock_date = excluded.lock_date,
			is_approved = excluded.is_approved,
			approved_at = excluded.approved_at,
			approved_by = excluded.approved_by,
			status = excluded.status,
			is_checked_out = excluded.is_checked_out,
			has_local_changes = excluded.has_local_changes,
			created_locally = excluded.created_locally,
			deleted_locally = excluded.deleted_locally,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at`,
		d.LocalID, dbx.NullInt64(d.ServerID), d.SubprojectID, dbx.NullJSON(d.SubprojectData),
		d.Date, d.TicketNumber, d.Notes,
		dbx.NullInt64(d.ContactID), dbx.NullJSON(d.ContactData),
		dbx.BoolInt(d.IsLastDay), dbx.BoolInt(d.IsLocked), dbx.NullString(d.LockDate),
		dbx.BoolInt(d.IsApproved), dbx.NullString(d.ApprovedAt), dbx.NullInt64(d.ApprovedBy),
		string(d.Status), dbx.BoolInt(d.IsCheckedOut),
		dbx.BoolInt(d.HasLocalChanges), dbx.BoolInt(d.CreatedLocally), dbx.BoolInt(d.DeletedLocally),
		lastSynced, timex.ToUnixMilli(d.CreatedAt), timex.ToUnixMilli(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save dwr[%s]: %w", d.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, localID string) (*models.DWR, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM dwrs WHERE local_id = ?`, localID)
	d, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dwr[%s]: %w", localID, err)
	}
	return d, nil
}

func (r *SQLiteRepository) GetByServerID(ctx context.Context, serverID int64) (*models.DWR, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM dwrs WHERE server_id = ?`, serverID)
	d, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dwr by server id[%d]: %w", serverID, err)
	}
	return d, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.DWR, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM dwrs WHERE deleted_locally = 0 ORDER BY date DESC, id`)
}

func (r *SQLiteRepository) ListBySubproject(ctx context.Context, subprojectID int64) ([]models.DWR, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM dwrs
		WHERE subproject_id = ? AND deleted_locally = 0 ORDER BY date DESC, id`, subprojectID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]models.DWR, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM dwrs WHERE `+dirtyClause+` ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.DWR, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dwrs: %w", err)
	}
	defer rows.Close()

	var result []models.DWR
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dwr row: %w", err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dwr rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetServerID(ctx context.Context, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE dwrs SET server_id = ? WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to set server id for dwr[%s]: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkCreated(ctx context.Context, localID string, serverID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dwrs SET server_id = ?, created_locally = 0, has_local_changes = 1, last_synced_at = ?
		WHERE local_id = ?`, serverID, at.UnixMilli(), localID)
	if err != nil {
		return fmt.Errorf("failed to mark dwr[%s] created: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, localID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dwrs WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete dwr[%s]: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	n, err := dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM dwrs`)
	if err != nil {
		return 0, fmt.Errorf("failed to count dwrs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountDirty(ctx context.Context) (int, error) {
	n, err := dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM dwrs WHERE `+dirtyClause)
	if err != nil {
		return 0, fmt.Errorf("failed to count dirty dwrs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dwrs`); err != nil {
		return fmt.Errorf("failed to delete dwrs: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.DWR, error) {
	var (
		d                                 models.DWR
		serverID, contactID, approvedBy   sql.NullInt64
		subprojectData, contactData       sql.NullString
		ticket, notes, lockDate, approved sql.NullString
		status                            string
		lastDay, locked, isApproved, out  int
		changed, created, deleted         int
		lastSynced                        sql.NullInt64
		createdAt, updatedAt              int64
	)
	if err := row.Scan(&d.LocalID, &serverID, &d.SubprojectID, &subprojectData, &d.Date, &ticket, &notes,
		&contactID, &contactData, &lastDay, &locked, &lockDate, &isApproved, &approved, &approvedBy,
		&status, &out, &changed, &created, &deleted,
		&lastSynced, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.ServerID = dbx.Int64Ptr(serverID)
	d.SubprojectData = dbx.JSON(subprojectData)
	d.TicketNumber = ticket.String
	d.Notes = notes.String
	d.ContactID = dbx.Int64Ptr(contactID)
	d.ContactData = dbx.JSON(contactData)
	d.IsLastDay = lastDay == 1
	d.IsLocked = locked == 1
	d.LockDate = dbx.StringPtr(lockDate)
	d.IsApproved = isApproved == 1
	d.ApprovedAt = dbx.StringPtr(approved)
	d.ApprovedBy = dbx.Int64Ptr(approvedBy)
	d.Status = models.DWRStatus(status)
	d.IsCheckedOut = out == 1
	d.HasLocalChanges = changed == 1
	d.CreatedLocally = created == 1
	d.DeletedLocally = deleted == 1
	if lastSynced.Valid {
		t := timex.UnixMilli(lastSynced.Int64)
		d.LastSyncedAt = &t
	}
	d.CreatedAt = timex.UnixMilli(createdAt)
	d.UpdatedAt = timex.UnixMilli(updatedAt)
	return &d, nil
}
