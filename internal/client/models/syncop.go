package models

import (
	"encoding/json"
	"time"
)

type OperationStatus string

const (
	OpStatusPending  OperationStatus = "pending"
	OpStatusSyncing  OperationStatus = "syncing"
	OpStatusSuccess  OperationStatus = "success"
	OpStatusFailed   OperationStatus = "failed"
	OpStatusConflict OperationStatus = "conflict"
)

// DefaultMaxRetries bounds automatic retries of a queued operation.
const DefaultMaxRetries = 3

// SyncOperation is one queued unit of incremental sync work. Operations are
// deduplicated per (Entity, LocalID).
type SyncOperation struct {
	ID            string
	Type          OperationType
	Entity        EntityType
	LocalID       string
	ServerID      *int64
	ParentLocalID string
	Data          json.RawMessage
	Status        OperationStatus
	RetryCount    int
	MaxRetries    int
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SyncedAt      *time.Time
}

// Exhausted reports a failed operation that used up its retries. It stays
// failed until explicitly retried or cancelled.
func (o *SyncOperation) Exhausted() bool {
	return o.Status == OpStatusFailed && o.RetryCount >= o.MaxRetries
}

// Drainable reports whether processAll should attempt the operation.
func (o *SyncOperation) Drainable() bool {
	return o.Status == OpStatusPending || (o.Status == OpStatusFailed && !o.Exhausted())
}

// Outstanding reports whether the operation still represents unsynced work.
// A syncing operation counts: it was interrupted if it is seen outside a drain.
func (o *SyncOperation) Outstanding() bool {
	return o.Status == OpStatusPending || o.Status == OpStatusSyncing || o.Status == OpStatusFailed
}

// Describe is the short "entity (type)" label used in progress reports.
func (o *SyncOperation) Describe() string {
	return string(o.Entity) + " (" + string(o.Type) + ")"
}

// QueueStatus counts queued operations by status.
type QueueStatus struct {
	Total    int
	Pending  int
	Syncing  int
	Success  int
	Failed   int
	Conflict int
}
