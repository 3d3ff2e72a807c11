package client

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Login(ctx context.Context, username, password string) error
	// UserID returns the user id claim of the current access token.
	UserID() (int64, bool)

	Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	Checkin(ctx context.Context, req *CheckinRequest) (*CheckinResponse, error)

	// List returns every result of a collection, following pagination.
	List(ctx context.Context, resource string, params url.Values) ([]json.RawMessage, error)
	Create(ctx context.Context, resource string, body any) (json.RawMessage, error)
	Update(ctx context.Context, resource string, id int64, body any) (json.RawMessage, error)
	Delete(ctx context.Context, resource string, id int64) error
}

type CheckoutRequest struct {
	RigID    int64              `json:"rig_id"`
	Statuses []models.DWRStatus `json:"statuses"`
	DeviceID string             `json:"device_id"`
}

type CheckoutRecord struct {
	ID   int64             `json:"id"`
	Type models.EntityType `json:"type"`
	Data json.RawMessage   `json:"data"`
}

type CheckoutResponse struct {
	CheckoutID   string           `json:"checkout_id"`
	CheckedOutAt time.Time        `json:"checked_out_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
	RigID        int64            `json:"rig_id"`
	Records      []CheckoutRecord `json:"records"`
}

type CheckinRequest struct {
	CheckoutID string          `json:"checkout_id"`
	Changes    []models.Change `json:"changes"`
	DeviceID   string          `json:"device_id"`
}

type CheckinResponse struct {
	CheckinID string                `json:"checkin_id"`
	SyncedAt  string                `json:"synced_at"`
	Results   []models.ChangeResult `json:"results"`
	Conflicts []models.Conflict     `json:"conflicts"`
}

// Page is the paginated collection envelope.
type Page struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}
