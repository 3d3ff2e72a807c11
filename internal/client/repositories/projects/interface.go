package projects

import (
	"context"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Repository caches projects and subprojects, keyed by server id. Rows are
// upserted on each checkout and never modified locally.
type Repository interface {
	SaveProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, serverID int64) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)

	SaveSubproject(ctx context.Context, s *models.Subproject) error
	GetSubproject(ctx context.Context, serverID int64) (*models.Subproject, error)
	ListSubprojects(ctx context.Context) ([]models.Subproject, error)
	ListSubprojectsByRig(ctx context.Context, rigID int64) ([]models.Subproject, error)
	ListSubprojectsByProject(ctx context.Context, projectID int64) ([]models.Subproject, error)

	DeleteAll(ctx context.Context) error
}
