package checkouts

import (
	"context"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Repository persists offline-session metadata.
type Repository interface {
	// Insert stores a new checkout row and sets m.ID.
	Insert(ctx context.Context, m *models.CheckoutMetadata) error

	// GetActive returns the active checkout, or (nil, nil) if there is none.
	GetActive(ctx context.Context) (*models.CheckoutMetadata, error)

	// GetByCheckoutID returns (nil, nil) when no row matches.
	GetByCheckoutID(ctx context.Context, checkoutID string) (*models.CheckoutMetadata, error)

	SetRecordCount(ctx context.Context, checkoutID string, n int) error
	TouchLastSync(ctx context.Context, checkoutID string, at time.Time) error

	// DeactivateAll clears is_active on every row.
	DeactivateAll(ctx context.Context) error

	CountActive(ctx context.Context) (int, error)
	Delete(ctx context.Context, checkoutID string) error
	DeleteAll(ctx context.Context) error
}
