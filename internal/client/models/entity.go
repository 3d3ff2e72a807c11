// Package models defines the offline working set: checkout metadata,
// reference entities, work records with their children, and the sync
// queue, plus the change/progress/result types passed between engines.
package models

import "github.com/google/uuid"

// EntityType names a syncable entity kind. Values match the server's
// entity identifiers.
type EntityType string

const (
	EntityDWR             EntityType = "daily_work_record"
	EntityWorkAssignment  EntityType = "work_assignment"
	EntityTimeRecord      EntityType = "employee_time_record"
	EntityChargeRecord    EntityType = "charge_record"
	EntityInventoryCharge EntityType = "inventory_charge"
	EntityServiceCharge   EntityType = "service_charge"
	EntityMiscCharge      EntityType = "miscellaneous_charge"
)

// EntityTypes lists every syncable entity in parent-before-child order.
var EntityTypes = []EntityType{
	EntityDWR,
	EntityWorkAssignment,
	EntityTimeRecord,
	EntityChargeRecord,
	EntityInventoryCharge,
	EntityServiceCharge,
	EntityMiscCharge,
}

func (e EntityType) Valid() bool {
	for _, t := range EntityTypes {
		if t == e {
			return true
		}
	}
	return false
}

// DWRStatus is the lifecycle status of a daily work record.
type DWRStatus string

const (
	StatusDraft      DWRStatus = "draft"
	StatusPending    DWRStatus = "pending"
	StatusInProgress DWRStatus = "in_progress"
	StatusInReview   DWRStatus = "in_review"
	StatusApproved   DWRStatus = "approved"
	StatusRejected   DWRStatus = "rejected"
	StatusCompleted  DWRStatus = "completed"
)

// DefaultCheckoutStatuses are the work-in-progress statuses eligible for
// offline editing.
func DefaultCheckoutStatuses() []DWRStatus {
	return []DWRStatus{StatusDraft, StatusPending, StatusInProgress, StatusInReview}
}

// OperationType is derived from mutation flags for checkin and stored
// verbatim on queued sync operations.
type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// Mutation is the per-record mutation state shared by every entity row.
type Mutation struct {
	HasLocalChanges bool `json:"has_local_changes"`
	CreatedLocally  bool `json:"created_locally"`
	DeletedLocally  bool `json:"deleted_locally"`
}

// Dirty reports whether the record has anything to push upstream.
func (m Mutation) Dirty() bool {
	return m.HasLocalChanges || m.CreatedLocally || m.DeletedLocally
}

// Operation derives the sync operation: created wins over deleted, which
// wins over a plain update.
func (m Mutation) Operation() OperationType {
	switch {
	case m.CreatedLocally:
		return OpCreate
	case m.DeletedLocally:
		return OpDelete
	default:
		return OpUpdate
	}
}

// NewLocalID returns a fresh client-side identifier.
func NewLocalID() string {
	return uuid.NewString()
}
