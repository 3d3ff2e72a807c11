// Package projects stores the read-only project and subproject cache.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) SaveProject(ctx context.Context, p *models.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (server_id, name, description, customer_id, customer_name, status, start_date, end_date, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			customer_id = excluded.customer_id,
			customer_name = excluded.customer_name,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_active = excluded.is_active`,
		p.ServerID, p.Name, p.Description, dbx.NullInt64(p.CustomerID), p.CustomerName,
		p.Status, p.StartDate, p.EndDate, dbx.BoolInt(p.IsActive))
	if err != nil {
		return fmt.Errorf("failed to save project[%d]: %w", p.ServerID, err)
	}
	return nil
}

const projectColumns = `server_id, name, description, customer_id, customer_name, status, start_date, end_date, is_active`

func (r *SQLiteRepository) GetProject(ctx context.Context, serverID int64) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE server_id = ?`, serverID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project[%d]: %w", serverID, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var result []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) SaveSubproject(ctx context.Context, s *models.Subproject) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subprojects (server_id, project_id, name, job_number, description,
			assigned_rig_id, assigned_rig_name, assigned_rig_number,
			well_id, well_name, well_api_number, customer_id, customer_name, status, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			job_number = excluded.job_number,
			description = excluded.description,
			assigned_rig_id = excluded.assigned_rig_id,
			assigned_rig_name = excluded.assigned_rig_name,
			assigned_rig_number = excluded.assigned_rig_number,
			well_id = excluded.well_id,
			well_name = excluded.well_name,
			well_api_number = excluded.well_api_number,
			customer_id = excluded.customer_id,
			customer_name = excluded.customer_name,
			status = excluded.status,
			is_active = excluded.is_active`,
		s.ServerID, dbx.NullInt64(s.ProjectID), s.Name, s.JobNumber, s.Description,
		dbx.NullInt64(s.AssignedRigID), s.AssignedRigName, s.AssignedRigNumber,
		dbx.NullInt64(s.WellID), s.WellName, s.WellAPINumber,
		dbx.NullInt64(s.CustomerID), s.CustomerName, s.Status, dbx.BoolInt(s.IsActive))
	if err != nil {
		return fmt.Errorf("failed to save subproject[%d]: %w", s.ServerID, err)
	}
	return nil
}

const subprojectColumns = `server_id, project_id, name, job_number, description,
	assigned_rig_id, assigned_rig_name, assigned_rig_number,
	well_id, well_name, well_api_number, customer_id, customer_name, status, is_active`

func (r *SQLiteRepository) GetSubproject(ctx context.Context, serverID int64) (*models.Subproject, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subprojectColumns+` FROM subprojects WHERE server_id = ?`, serverID)
	s, err := scanSubproject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subproject[%d]: %w", serverID, err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListSubprojects(ctx context.Context) ([]models.Subproject, error) {
	return r.listSubprojects(ctx, `SELECT `+subprojectColumns+` FROM subprojects ORDER BY name`)
}

func (r *SQLiteRepository) ListSubprojectsByRig(ctx context.Context, rigID int64) ([]models.Subproject, error) {
	return r.listSubprojects(ctx, `SELECT `+subprojectColumns+` FROM subprojects WHERE assigned_rig_id = ? ORDER BY name`, rigID)
}

func (r *SQLiteRepository) ListSubprojectsByProject(ctx context.Context, projectID int64) ([]models.Subproject, error) {
	return r.listSubprojects(ctx, `SELECT `+subprojectColumns+` FROM subprojects WHERE project_id = ? ORDER BY name`, projectID)
}

func (r *SQLiteRepository) listSubprojects(ctx context.Context, query string, args ...any) ([]models.Subproject, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subprojects: %w", err)
	}
	defer rows.Close()

	var result []models.Subproject
	for rows.Next() {
		s, err := scanSubproject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subproject row: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subproject rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subprojects`); err != nil {
		return fmt.Errorf("failed to delete subprojects: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("failed to delete projects: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*models.Project, error) {
	var (
		p                         models.Project
		description, customerName sql.NullString
		status, start, end        sql.NullString
		customerID                sql.NullInt64
		active                    sql.NullInt64
	)
	if err := row.Scan(&p.ServerID, &p.Name, &description, &customerID, &customerName,
		&status, &start, &end, &active); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.CustomerID = dbx.Int64Ptr(customerID)
	p.CustomerName = customerName.String
	p.Status = status.String
	p.StartDate = start.String
	p.EndDate = end.String
	p.IsActive = !active.Valid || active.Int64 == 1
	return &p, nil
}

func scanSubproject(row scanner) (*models.Subproject, error) {
	var (
		s                                sql.NullString
		sp                               models.Subproject
		jobNumber, description           sql.NullString
		rigName, rigNumber               sql.NullString
		wellName, wellAPI, customerName  sql.NullString
		projectID, rigID, wellID, custID sql.NullInt64
		active                           sql.NullInt64
	)
	if err := row.Scan(&sp.ServerID, &projectID, &sp.Name, &jobNumber, &description,
		&rigID, &rigName, &rigNumber, &wellID, &wellName, &wellAPI,
		&custID, &customerName, &s, &active); err != nil {
		return nil, err
	}
	sp.ProjectID = dbx.Int64Ptr(projectID)
	sp.JobNumber = jobNumber.String
	sp.Description = description.String
	sp.AssignedRigID = dbx.Int64Ptr(rigID)
	sp.AssignedRigName = rigName.String
	sp.AssignedRigNumber = rigNumber.String
	sp.WellID = dbx.Int64Ptr(wellID)
	sp.WellName = wellName.String
	sp.WellAPINumber = wellAPI.String
	sp.CustomerID = dbx.Int64Ptr(custID)
	sp.CustomerName = customerName.String
	sp.Status = s.String
	sp.IsActive = !active.Valid || active.Int64 == 1
	return &sp, nil
}
