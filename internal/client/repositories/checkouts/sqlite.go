// Package checkouts stores CheckoutMetadata rows. The engines keep at most
// one row with is_active = 1.
package checkouts

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
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, checkout_id, rig_id, rig_name, user_id, username, device_id,
	checked_out_at, expires_at, is_active, record_count, last_sync_at`

func (r *SQLiteRepository) Insert(ctx context.Context, m *models.CheckoutMetadata) error {
	var lastSync sql.NullInt64
	if m.LastSyncAt != nil {
		lastSync = sql.NullInt64{Int64: m.LastSyncAt.UnixMilli(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_metadata (checkout_id, rig_id, rig_name, user_id, username, device_id,
			checked_out_at, expires_at, is_active, record_count, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.CheckoutID, m.RigID, m.RigName, m.UserID, m.Username, m.DeviceID,
		timex.ToUnixMilli(m.CheckedOutAt), timex.ToUnixMilli(m.ExpiresAt),
		dbx.BoolInt(m.IsActive), m.RecordCount, lastSync)
	if err != nil {
		return fmt.Errorf("failed to insert checkout[%s]: %w", m.CheckoutID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get checkout id: %w", err)
	}
	m.ID = id
	return nil
}

func (r *SQLiteRepository) GetActive(ctx context.Context) (*models.CheckoutMetadata, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+`
		FROM checkout_metadata WHERE is_active = 1 ORDER BY id DESC LIMIT 1`)
	m, err := scan(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get active checkout: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (*models.CheckoutMetadata, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+`
		FROM checkout_metadata WHERE checkout_id = ?`, checkoutID)
	m, err := scan(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout[%s]: %w", checkoutID, err)
	}
	return m, nil
}

func (r *SQLiteRepository) SetRecordCount(ctx context.Context, checkoutID string, n int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE checkout_metadata SET record_count = ? WHERE checkout_id = ?`, n, checkoutID)
	if err != nil {
		return fmt.Errorf("failed to update record count[%s]: %w", checkoutID, err)
	}
	return nil
}

func (r *SQLiteRepository) TouchLastSync(ctx context.Context, checkoutID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE checkout_metadata SET last_sync_at = ? WHERE checkout_id = ?`, at.UnixMilli(), checkoutID)
	if err != nil {
		return fmt.Errorf("failed to update last sync[%s]: %w", checkoutID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeactivateAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE checkout_metadata SET is_active = 0 WHERE is_active = 1`); err != nil {
		return fmt.Errorf("failed to deactivate checkouts: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountActive(ctx context.Context) (int, error) {
	n, err := dbx.Count(ctx, r.db, `SELECT COUNT(*) FROM checkout_metadata WHERE is_active = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to count active checkouts: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, checkoutID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkout_metadata WHERE checkout_id = ?`, checkoutID); err != nil {
		return fmt.Errorf("failed to delete checkout[%s]: %w", checkoutID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkout_metadata`); err != nil {
		return fmt.Errorf("failed to delete checkouts: %w", err)
	}
	return nil
}

func scan(row *sql.Row) (*models.CheckoutMetadata, error) {
	var (
		m                   models.CheckoutMetadata
		rigName, username   sql.NullString
		checkedOut, expires int64
		active              int
		lastSync            sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.CheckoutID, &m.RigID, &rigName, &m.UserID, &username, &m.DeviceID,
		&checkedOut, &expires, &active, &m.RecordCount, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.RigName = rigName.String
	m.Username = username.String
	m.CheckedOutAt = timex.UnixMilli(checkedOut)
	m.ExpiresAt = timex.UnixMilli(expires)
	m.IsActive = active == 1
	if lastSync.Valid {
		t := timex.UnixMilli(lastSync.Int64)
		m.LastSyncAt = &t
	}
	return &m, nil
}
