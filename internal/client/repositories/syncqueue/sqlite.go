// Package syncqueue stores the incremental sync operation log.
package syncqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/dbx"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/timex"
	"github.com/google/uuid"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const selectColumns = `operation_id, type, entity, local_id, server_id, parent_local_id, data,
	status, retry_count, max_retries, error, created_at, updated_at, synced_at`

const fifo = ` ORDER BY created_at, id`

func (r *SQLiteRepository) Enqueue(ctx context.Context, op *models.SyncOperation) (*models.SyncOperation, error) {
	existing, err := r.GetByKey(ctx, op.Entity, op.LocalID)
	if err != nil {
		return nil, err
	}
	now := r.now()

	if existing == nil {
		return r.insert(ctx, op, now)
	}

	if existing.Type == models.OpCreate && existing.Status != models.OpStatusSuccess {
		switch {
		case op.Type == models.OpDelete && existing.Status == models.OpStatusSyncing:
			// The create may land; MarkSuccess hands the delete its server id.
		case op.Type == models.OpDelete:
			// The server never saw the record.
			if err := r.Remove(ctx, existing.ID); err != nil {
				return nil, err
			}
			return nil, nil
		default:
			existing.Data = op.Data
			existing.Status = models.OpStatusPending
			existing.RetryCount = 0
			existing.Error = ""
			existing.UpdatedAt = now
			if op.ParentLocalID != "" {
				existing.ParentLocalID = op.ParentLocalID
			}
			if err := r.replace(ctx, existing, false); err != nil {
				return nil, err
			}
			return existing, nil
		}
	}

	restart := existing.Status == models.OpStatusSuccess
	existing.Type = op.Type
	existing.Data = op.Data
	if op.ServerID != nil {
		existing.ServerID = op.ServerID
	}
	if op.ParentLocalID != "" {
		existing.ParentLocalID = op.ParentLocalID
	}
	existing.Status = models.OpStatusPending
	existing.RetryCount = 0
	existing.Error = ""
	existing.UpdatedAt = now
	existing.SyncedAt = nil
	if restart {
		existing.CreatedAt = now
	}
	if op.MaxRetries > 0 {
		existing.MaxRetries = op.MaxRetries
	}
	if err := r.replace(ctx, existing, restart); err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *SQLiteRepository) insert(ctx context.Context, op *models.SyncOperation, now time.Time) (*models.SyncOperation, error) {
	out := *op
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = models.DefaultMaxRetries
	}
	out.Status = models.OpStatusPending
	out.RetryCount = 0
	out.Error = ""
	out.CreatedAt = now
	out.UpdatedAt = now
	out.SyncedAt = nil
	if len(out.Data) == 0 {
		out.Data = []byte("{}")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (operation_id, type, entity, local_id, server_id, parent_local_id, data,
			status, retry_count, max_retries, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		out.ID, string(out.Type), string(out.Entity), out.LocalID, dbx.NullInt64(out.ServerID),
		nullString(out.ParentLocalID), string(out.Data), string(out.Status), out.MaxRetries,
		now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s[%s]: %w", out.Entity, out.LocalID, err)
	}
	return &out, nil
}

func (r *SQLiteRepository) replace(ctx context.Context, op *models.SyncOperation, restart bool) error {
	query := `
		UPDATE sync_queue SET type = ?, server_id = ?, parent_local_id = ?, data = ?, status = ?,
			retry_count = ?, max_retries = ?, error = NULL, updated_at = ?, synced_at = NULL`
	args := []any{string(op.Type), dbx.NullInt64(op.ServerID), nullString(op.ParentLocalID), string(op.Data),
		string(op.Status), op.RetryCount, op.MaxRetries, op.UpdatedAt.UnixMilli()}
	if restart {
		query += `, created_at = ?`
		args = append(args, op.CreatedAt.UnixMilli())
	}
	query += ` WHERE operation_id = ?`
	args = append(args, op.ID)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update queued operation[%s]: %w", op.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.SyncOperation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sync_queue WHERE operation_id = ?`, id)
	op, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued operation[%s]: %w", id, err)
	}
	return op, nil
}

func (r *SQLiteRepository) GetByKey(ctx context.Context, entity models.EntityType, localID string) (*models.SyncOperation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sync_queue WHERE entity = ? AND local_id = ?`,
		string(entity), localID)
	op, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued operation for %s[%s]: %w", entity, localID, err)
	}
	return op, nil
}

func (r *SQLiteRepository) ListDrainable(ctx context.Context) ([]models.SyncOperation, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM sync_queue
		WHERE status = 'pending' OR (status = 'failed' AND retry_count < max_retries)`+fifo)
}

func (r *SQLiteRepository) ListOutstanding(ctx context.Context) ([]models.SyncOperation, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM sync_queue
		WHERE status IN ('pending', 'syncing', 'failed')`+fifo)
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, status models.OperationStatus) ([]models.SyncOperation, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM sync_queue WHERE status = ?`+fifo, string(status))
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.SyncOperation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued operations: %w", err)
	}
	defer rows.Close()

	var result []models.SyncOperation
	for rows.Next() {
		op, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queued operation row: %w", err)
		}
		result = append(result, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queued operation rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkSyncing(ctx context.Context, id string) error {
	return r.exec(ctx, "mark syncing", id,
		`UPDATE sync_queue SET status = 'syncing', updated_at = ? WHERE operation_id = ?`, r.now().UnixMilli(), id)
}

func (r *SQLiteRepository) MarkSuccess(ctx context.Context, id string, serverID *int64, at time.Time) (bool, error) {
	applied, err := r.execSyncing(ctx, "mark success", id, `
		UPDATE sync_queue SET status = 'success', error = NULL, server_id = COALESCE(?, server_id),
			updated_at = ?, synced_at = ?
		WHERE operation_id = ? AND status = 'syncing'`, dbx.NullInt64(serverID), at.UnixMilli(), at.UnixMilli(), id)
	if err != nil || applied || serverID == nil {
		return applied, err
	}
	// The row was re-enqueued mid-push. The record now exists on the server,
	// so folded-in create data goes out as an update.
	return false, r.exec(ctx, "mark success", id, `
		UPDATE sync_queue SET server_id = COALESCE(server_id, ?),
			type = CASE WHEN type = 'create' THEN 'update' ELSE type END
		WHERE operation_id = ?`, *serverID, id)
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	return r.execSyncing(ctx, "mark failed", id, `
		UPDATE sync_queue SET status = 'failed', retry_count = retry_count + 1, error = ?, updated_at = ?
		WHERE operation_id = ? AND status = 'syncing'`, reason, r.now().UnixMilli(), id)
}

func (r *SQLiteRepository) MarkConflict(ctx context.Context, id string, reason string) (bool, error) {
	return r.execSyncing(ctx, "mark conflict", id, `
		UPDATE sync_queue SET status = 'conflict', error = ?, updated_at = ?
		WHERE operation_id = ? AND status = 'syncing'`, reason, r.now().UnixMilli(), id)
}

func (r *SQLiteRepository) ResetSyncing(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = 'pending', updated_at = ? WHERE status = 'syncing'`, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to reset interrupted operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset operations: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ResetForRetry(ctx context.Context, id string) error {
	return r.exec(ctx, "reset", id, `
		UPDATE sync_queue SET status = 'pending', retry_count = 0, error = NULL, updated_at = ?
		WHERE operation_id = ?`, r.now().UnixMilli(), id)
}

func (r *SQLiteRepository) ResetAllFailed(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = 'pending', retry_count = 0, error = NULL, updated_at = ?
		WHERE status = 'failed'`, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset operations: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) SetServerID(ctx context.Context, entity models.EntityType, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET server_id = ? WHERE entity = ? AND local_id = ?`,
		serverID, string(entity), localID)
	if err != nil {
		return fmt.Errorf("failed to set server id for queued %s[%s]: %w", entity, localID, err)
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	return r.exec(ctx, "remove", id, `DELETE FROM sync_queue WHERE operation_id = ?`, id)
}

func (r *SQLiteRepository) ClearCompleted(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE status = 'success'`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear completed operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared operations: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("failed to clear sync queue: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Status(ctx context.Context) (models.QueueStatus, error) {
	var st models.QueueStatus
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return st, fmt.Errorf("failed to count queued operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("failed to scan queue status row: %w", err)
		}
		st.Total += n
		switch models.OperationStatus(status) {
		case models.OpStatusPending:
			st.Pending = n
		case models.OpStatusSyncing:
			st.Syncing = n
		case models.OpStatusSuccess:
			st.Success = n
		case models.OpStatusFailed:
			st.Failed = n
		case models.OpStatusConflict:
			st.Conflict = n
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("failed to iterate queue status rows: %w", err)
	}
	return st, nil
}

func (r *SQLiteRepository) exec(ctx context.Context, verb, id string, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s queued operation[%s]: %w", verb, id, err)
	}
	return nil
}

// execSyncing runs an outcome transition and reports whether the row was
// still syncing.
func (r *SQLiteRepository) execSyncing(ctx context.Context, verb, id string, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s queued operation[%s]: %w", verb, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to %s queued operation[%s]: %w", verb, id, err)
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.SyncOperation, error) {
	var (
		op                   models.SyncOperation
		typ, entity, status  string
		data                 string
		serverID, syncedAt   sql.NullInt64
		parent, reason       sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&op.ID, &typ, &entity, &op.LocalID, &serverID, &parent, &data,
		&status, &op.RetryCount, &op.MaxRetries, &reason, &createdAt, &updatedAt, &syncedAt); err != nil {
		return nil, err
	}
	op.Type = models.OperationType(typ)
	op.Entity = models.EntityType(entity)
	op.ServerID = dbx.Int64Ptr(serverID)
	op.ParentLocalID = parent.String
	op.Data = []byte(data)
	op.Status = models.OperationStatus(status)
	op.Error = reason.String
	op.CreatedAt = timex.UnixMilli(createdAt)
	op.UpdatedAt = timex.UnixMilli(updatedAt)
	if syncedAt.Valid {
		t := timex.UnixMilli(syncedAt.Int64)
		op.SyncedAt = &t
	}
	return &op, nil
}
