package dwrs

import (
	"context"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Repository persists daily work records keyed by local id. Loaded records
// carry no children; the child repositories are queried separately.
type Repository interface {
	// Save inserts or replaces the record with d.LocalID. CreatedAt is kept
	// from the first insert.
	Save(ctx context.Context, d *models.DWR) error

	// Get returns (nil, nil) when no record matches.
	Get(ctx context.Context, localID string) (*models.DWR, error)
	GetByServerID(ctx context.Context, serverID int64) (*models.DWR, error)

	// List returns records not deleted locally, newest date first.
	List(ctx context.Context) ([]models.DWR, error)
	ListBySubproject(ctx context.Context, subprojectID int64) ([]models.DWR, error)

	// ListDirty returns every record with pending mutation flags, tombstones
	// included, in insertion order.
	ListDirty(ctx context.Context) ([]models.DWR, error)

	SetServerID(ctx context.Context, localID string, serverID int64) error

	// MarkCreated records the server id of a record the server has now seen.
	// created_locally is cleared and has_local_changes set, so the record
	// stays dirty until the session is cleaned up.
	MarkCreated(ctx context.Context, localID string, serverID int64, at time.Time) error

	// Delete removes the row; children go with it.
	Delete(ctx context.Context, localID string) error

	Count(ctx context.Context) (int, error)
	CountDirty(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
