// Package charges stores charge records and charge lines.
package charges

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

const dirtyClause = `(has_local_changes = 1 OR created_locally = 1 OR deleted_locally = 1)`

const recordColumns = `local_id, server_id, dwr_local_id, total_amount, is_manual_total,
	has_local_changes, created_locally, deleted_locally`

// table returns the line table and its item id column for kind.
func table(kind models.ChargeKind) (string, string, error) {
	switch kind {
	case models.ChargeInventory:
		return "inventory_charges", "inventory_item_id", nil
	case models.ChargeService:
		return "service_charges", "service_item_id", nil
	case models.ChargeMisc:
		return "miscellaneous_charges", "miscellaneous_item_id", nil
	}
	return "", "", fmt.Errorf("unknown charge kind %q", kind)
}

func (r *SQLiteRepository) SaveRecord(ctx context.Context, c *models.ChargeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO charge_records (local_id, server_id, dwr_local_id, total_amount, is_manual_total,
			has_local_changes, created_locally, deleted_locally, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			dwr_local_id = excluded.dwr_local_id,
			total_amount = excluded.total_amount,
			is_manual_total = excluded.is_manual_total,
			has_local_changes = excluded.has_local_changes,
			created_locally = excluded.created_locally,
			deleted_locally = excluded.deleted_locally,
			updated_at = excluded.updated_at`,
		c.LocalID, dbx.NullInt64(c.ServerID), c.DWRLocalID, c.TotalAmount, dbx.BoolInt(c.IsManualTotal),
		dbx.BoolInt(c.HasLocalChanges), dbx.BoolInt(c.CreatedLocally), dbx.BoolInt(c.DeletedLocally),
		r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save charge record[%s]: %w", c.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetRecord(ctx context.Context, localID string) (*models.ChargeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM charge_records WHERE local_id = ?`, localID)
	c, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge record[%s]: %w", localID, err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetRecordByDWR(ctx context.Context, dwrLocalID string) (*models.ChargeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM charge_records
		WHERE dwr_local_id = ? AND deleted_locally = 0 ORDER BY id LIMIT 1`, dwrLocalID)
	c, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get charge record for dwr[%s]: %w", dwrLocalID, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListDirtyRecords(ctx context.Context) ([]models.ChargeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM charge_records WHERE `+dirtyClause+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list charge records: %w", err)
	}
	defer rows.Close()

	var result []models.ChargeRecord
	for rows.Next() {
		c, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan charge record row: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate charge record rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetRecordServerID(ctx context.Context, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE charge_records SET server_id = ? WHERE local_id = ?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to set server id for charge record[%s]: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkRecordCreated(ctx context.Context, localID string, serverID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE charge_records SET server_id = ?, created_locally = 0, has_local_changes = 1 WHERE local_id = ?`,
		serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to mark charge record[%s] created: %w", localID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRecord(ctx context.Context, localID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM charge_records WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete charge record[%s]: %w", localID, err)
	}
	return nil
}

func lineColumns(itemColumn string) string {
	return `local_id, server_id, charge_record_local_id, ` + itemColumn + `, item_name,
		quantity_used, price_at_use, is_billable, off_turnkey, total, unit_name, unit_abbreviation,
		has_local_changes, created_locally, deleted_locally`
}

func (r *SQLiteRepository) SaveLine(ctx context.Context, l *models.ChargeLine) error {
	tbl, itemCol, err := table(l.Kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO `+tbl+` (`+lineColumns(itemCol)+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			charge_record_local_id = excluded.charge_record_local_id,
			`+itemCol+` = excluded.`+itemCol+`,
			item_name = excluded.item_name,
			quantity_used = excluded.quantity_used,
			price_at_use = excluded.price_at_use,
			is_billable = excluded.is_billable,
			off_turnkey = excluded.off_turnkey,
			total = excluded.total,
			unit_name = excluded.unit_name,
			unit_abbreviation = excluded.unit_abbreviation,
			has_local_changes = excluded.has_local_changes,
			created_locally = excluded.created_locally,
			deleted_locally = excluded.deleted_locally,
			updated_at = excluded.updated_at`,
		l.LocalID, dbx.NullInt64(l.ServerID), l.ChargeRecordLocalID, l.ItemID, l.ItemName,
		l.QuantityUsed, l.PriceAtUse, dbx.BoolInt(l.IsBillable), dbx.BoolInt(l.OffTurnkey),
		dbx.NullFloat64(l.Total), l.UnitName, l.UnitAbbreviation,
		dbx.BoolInt(l.HasLocalChanges), dbx.BoolInt(l.CreatedLocally), dbx.BoolInt(l.DeletedLocally),
		r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save %s charge[%s]: %w", l.Kind, l.LocalID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetLine(ctx context.Context, kind models.ChargeKind, localID string) (*models.ChargeLine, error) {
	tbl, itemCol, err := table(kind)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+lineColumns(itemCol)+` FROM `+tbl+` WHERE local_id = ?`, localID)
	l, err := scanLine(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s charge[%s]: %w", kind, localID, err)
	}
	return l, nil
}

func (r *SQLiteRepository) ListLines(ctx context.Context, kind models.ChargeKind, chargeRecordLocalID string) ([]models.ChargeLine, error) {
	tbl, itemCol, err := table(kind)
	if err != nil {
		return nil, err
	}
	return r.listLines(ctx, kind, `SELECT `+lineColumns(itemCol)+` FROM `+tbl+`
		WHERE charge_record_local_id = ? AND deleted_locally = 0 ORDER BY id`, chargeRecordLocalID)
}

func (r *SQLiteRepository) ListDirtyLines(ctx context.Context, kind models.ChargeKind) ([]models.ChargeLine, error) {
	tbl, itemCol, err := table(kind)
	if err != nil {
		return nil, err
	}
	return r.listLines(ctx, kind, `SELECT `+lineColumns(itemCol)+` FROM `+tbl+` WHERE `+dirtyClause+` ORDER BY id`)
}

func (r *SQLiteRepository) listLines(ctx context.Context, kind models.ChargeKind, query string, args ...any) ([]models.ChargeLine, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s charges: %w", kind, err)
	}
	defer rows.Close()

	var result []models.ChargeLine
	for rows.Next() {
		l, err := scanLine(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s charge row: %w", kind, err)
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s charge rows: %w", kind, err)
	}
	return result, nil
}

func (r *SQLiteRepository) SetLineServerID(ctx context.Context, kind models.ChargeKind, localID string, serverID int64) error {
	tbl, _, err := table(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE `+tbl+` SET server_id = ? WHERE local_id = ?`, serverID, localID); err != nil {
		return fmt.Errorf("failed to set server id for %s charge[%s]: %w", kind, localID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkLineCreated(ctx context.Context, kind models.ChargeKind, localID string, serverID int64) error {
	tbl, _, err := table(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE `+tbl+` SET server_id = ?, created_locally = 0, has_local_changes = 1 WHERE local_id = ?`,
		serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to mark %s charge[%s] created: %w", kind, localID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteLine(ctx context.Context, kind models.ChargeKind, localID string) error {
	tbl, _, err := table(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to delete %s charge[%s]: %w", kind, localID, err)
	}
	return nil
}

func (r *SQLiteRepository) CountDirty(ctx context.Context) (int, error) {
	n, err := dbx.Count(ctx, r.db, `SELECT
		(SELECT COUNT(*) FROM charge_records WHERE `+dirtyClause+`) +
		(SELECT COUNT(*) FROM inventory_charges WHERE `+dirtyClause+`) +
		(SELECT COUNT(*) FROM service_charges WHERE `+dirtyClause+`) +
		(SELECT COUNT(*) FROM miscellaneous_charges WHERE `+dirtyClause+`)`)
	if err != nil {
		return 0, fmt.Errorf("failed to count dirty charges: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	for _, tbl := range []string{"inventory_charges", "service_charges", "miscellaneous_charges", "charge_records"} {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM `+tbl); err != nil {
			return fmt.Errorf("failed to delete %s: %w", tbl, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.ChargeRecord, error) {
	var (
		c                         models.ChargeRecord
		serverID                  sql.NullInt64
		total                     sql.NullFloat64
		manual                    int
		changed, created, deleted int
	)
	if err := row.Scan(&c.LocalID, &serverID, &c.DWRLocalID, &total, &manual,
		&changed, &created, &deleted); err != nil {
		return nil, err
	}
	c.ServerID = dbx.Int64Ptr(serverID)
	c.TotalAmount = total.Float64
	c.IsManualTotal = manual == 1
	c.HasLocalChanges = changed == 1
	c.CreatedLocally = created == 1
	c.DeletedLocally = deleted == 1
	return &c, nil
}

func scanLine(row scanner, kind models.ChargeKind) (*models.ChargeLine, error) {
	var (
		l                         models.ChargeLine
		serverID                  sql.NullInt64
		itemName, unit, unitAbbr  sql.NullString
		quantity, price, total    sql.NullFloat64
		billable, offTurnkey      int
		changed, created, deleted int
	)
	if err := row.Scan(&l.LocalID, &serverID, &l.ChargeRecordLocalID, &l.ItemID, &itemName,
		&quantity, &price, &billable, &offTurnkey, &total, &unit, &unitAbbr,
		&changed, &created, &deleted); err != nil {
		return nil, err
	}
	l.Kind = kind
	l.ServerID = dbx.Int64Ptr(serverID)
	l.ItemName = itemName.String
	l.QuantityUsed = quantity.Float64
	l.PriceAtUse = price.Float64
	l.IsBillable = billable == 1
	l.OffTurnkey = offTurnkey == 1
	l.Total = dbx.Float64Ptr(total)
	l.UnitName = unit.String
	l.UnitAbbreviation = unitAbbr.String
	l.HasLocalChanges = changed == 1
	l.CreatedLocally = created == 1
	l.DeletedLocally = deleted == 1
	return &l, nil
}
