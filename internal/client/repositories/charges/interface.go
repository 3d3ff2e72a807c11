package charges

import (
	"context"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Repository persists a DWR's charge record and its inventory, service and
// miscellaneous lines. Line methods pick the table by models.ChargeKind.
type Repository interface {
	SaveRecord(ctx context.Context, c *models.ChargeRecord) error
	// GetRecord and GetRecordByDWR return (nil, nil) when no row matches.
	GetRecord(ctx context.Context, localID string) (*models.ChargeRecord, error)
	GetRecordByDWR(ctx context.Context, dwrLocalID string) (*models.ChargeRecord, error)
	ListDirtyRecords(ctx context.Context) ([]models.ChargeRecord, error)
	SetRecordServerID(ctx context.Context, localID string, serverID int64) error
	// MarkRecordCreated stores the server id of a pushed create; the record
	// stays dirty.
	MarkRecordCreated(ctx context.Context, localID string, serverID int64) error
	DeleteRecord(ctx context.Context, localID string) error

	SaveLine(ctx context.Context, l *models.ChargeLine) error
	GetLine(ctx context.Context, kind models.ChargeKind, localID string) (*models.ChargeLine, error)
	// ListLines skips rows deleted locally.
	ListLines(ctx context.Context, kind models.ChargeKind, chargeRecordLocalID string) ([]models.ChargeLine, error)
	ListDirtyLines(ctx context.Context, kind models.ChargeKind) ([]models.ChargeLine, error)
	SetLineServerID(ctx context.Context, kind models.ChargeKind, localID string, serverID int64) error
	MarkLineCreated(ctx context.Context, kind models.ChargeKind, localID string, serverID int64) error
	DeleteLine(ctx context.Context, kind models.ChargeKind, localID string) error

	// CountDirty counts dirty charge records and lines together.
	CountDirty(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}
