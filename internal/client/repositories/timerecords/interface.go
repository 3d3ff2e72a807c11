package timerecords

import (
	"context"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Repository persists employee time records, children of a DWR.
type Repository interface {
	Save(ctx context.Context, tr *models.TimeRecord) error
	// Get returns (nil, nil) when no row matches.
	Get(ctx context.Context, localID string) (*models.TimeRecord, error)
	// ListByDWR skips rows deleted locally.
	ListByDWR(ctx context.Context, dwrLocalID string) ([]models.TimeRecord, error)
	ListDirty(ctx context.Context) ([]models.TimeRecord, error)
	SetServerID(ctx context.Context, localID string, serverID int64) error
	// MarkCreated stores the server id and turns the pending create into an
	// update; the record stays dirty.
	MarkCreated(ctx context.Context, localID string, serverID int64) error
	Delete(ctx context.Context, localID string) error
	CountDirty(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
