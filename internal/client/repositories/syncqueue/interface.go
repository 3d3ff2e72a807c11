package syncqueue

import (
	"context"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Repository is the persistent sync-operation log. There is at most one
// operation per (entity, local id); Enqueue folds new work into it.
type Repository interface {
	// Enqueue applies the dedup rules and returns the resulting operation,
	// or nil when the new operation cancelled the queued one out.
	Enqueue(ctx context.Context, op *models.SyncOperation) (*models.SyncOperation, error)

	// Get and GetByKey return (nil, nil) when nothing matches.
	Get(ctx context.Context, id string) (*models.SyncOperation, error)
	GetByKey(ctx context.Context, entity models.EntityType, localID string) (*models.SyncOperation, error)

	// ListDrainable returns pending operations and failed ones with retries
	// left, oldest first.
	ListDrainable(ctx context.Context) ([]models.SyncOperation, error)
	// ListOutstanding returns pending, syncing and failed operations, oldest first.
	ListOutstanding(ctx context.Context) ([]models.SyncOperation, error)
	ListByStatus(ctx context.Context, status models.OperationStatus) ([]models.SyncOperation, error)

	MarkSyncing(ctx context.Context, id string) error
	// MarkSuccess, MarkFailed and MarkConflict only move a syncing operation
	// and report whether they did. An operation re-enqueued during its push
	// stays pending; MarkSuccess still records the server id on it and turns
	// a folded create into an update.
	MarkSuccess(ctx context.Context, id string, serverID *int64, at time.Time) (bool, error)
	// MarkFailed increments retry_count.
	MarkFailed(ctx context.Context, id string, reason string) (bool, error)
	MarkConflict(ctx context.Context, id string, reason string) (bool, error)
	// ResetSyncing returns operations left syncing by an interrupted pass
	// to pending.
	ResetSyncing(ctx context.Context) (int, error)
	// ResetForRetry puts a failed or conflicted operation back to pending
	// with a zero retry count.
	ResetForRetry(ctx context.Context, id string) error
	ResetAllFailed(ctx context.Context) (int, error)

	// SetServerID records the server id on the queued operation for an entity.
	SetServerID(ctx context.Context, entity models.EntityType, localID string, serverID int64) error

	Remove(ctx context.Context, id string) error
	ClearCompleted(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error

	Status(ctx context.Context) (models.QueueStatus, error)
}
