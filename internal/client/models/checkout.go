package models

import "time"

// CheckoutMetadata describes one offline session. At most one row is active.
type CheckoutMetadata struct {
	ID           int64
	CheckoutID   string
	RigID        int64
	RigName      string
	UserID       int64
	Username     string
	DeviceID     string
	CheckedOutAt time.Time
	ExpiresAt    time.Time
	IsActive     bool
	RecordCount  int
	LastSyncAt   *time.Time
}

// Expired reports whether the checkout window has passed at now.
func (m *CheckoutMetadata) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}

// Project is a read-only reference entity keyed by its server id.
type Project struct {
	ServerID     int64
	Name         string
	Description  string
	CustomerID   *int64
	CustomerName string
	Status       string
	StartDate    string
	EndDate      string
	IsActive     bool
}

// Subproject is a read-only reference entity denormalized with its project,
// rig, well and customer for offline display.
type Subproject struct {
	ServerID          int64
	ProjectID         *int64
	Name              string
	JobNumber         string
	Description       string
	AssignedRigID     *int64
	AssignedRigName   string
	AssignedRigNumber string
	WellID            *int64
	WellName          string
	WellAPINumber     string
	CustomerID        *int64
	CustomerName      string
	Status            string
	IsActive          bool
}

// Reference data keys.
const (
	RefEmployees        = "offline:ref:employees"
	RefEmployeeTypes    = "offline:ref:employee_types"
	RefWorkDescriptions = "offline:ref:work_descriptions"
	RefInventoryItems   = "offline:ref:inventory_items"
	RefServiceItems     = "offline:ref:service_items"

	KeyDeviceID     = "offline:device_id"
	KeyAuthUsername = "offline:auth:username"
	KeyAuthUserID   = "offline:auth:user_id"
)

// SessionKeys survive a working-set purge.
var SessionKeys = []string{KeyDeviceID, KeyAuthUsername, KeyAuthUserID}
