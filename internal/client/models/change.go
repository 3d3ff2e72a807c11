package models

import (
	"encoding/json"
	"time"
)

// Change is one entry of a checkin change set.
type Change struct {
	Type          OperationType  `json:"type"`
	Entity        EntityType     `json:"entity"`
	LocalID       string         `json:"local_id"`
	ServerID      *int64         `json:"server_id,omitempty"`
	ParentLocalID string         `json:"parent_local_id,omitempty"`
	Data          map[string]any `json:"data"`
}

// Key is the dedup key shared with the sync queue.
func (c Change) Key() string {
	return ChangeKey(c.Entity, c.LocalID)
}

func ChangeKey(entity EntityType, localID string) string {
	return string(entity) + ":" + localID
}

// ChangeFromOperation turns a queued operation into a change. A payload
// that cannot be decoded yields an empty data map.
func ChangeFromOperation(op *SyncOperation) Change {
	data := map[string]any{}
	if len(op.Data) > 0 {
		_ = json.Unmarshal(op.Data, &data)
	}
	return Change{
		Type:          op.Type,
		Entity:        op.Entity,
		LocalID:       op.LocalID,
		ServerID:      op.ServerID,
		ParentLocalID: op.ParentLocalID,
		Data:          data,
	}
}

// Conflict is a server-detected divergence returned to the caller as data.
type Conflict struct {
	Entity             EntityType     `json:"entity"`
	ID                 int64          `json:"id"`
	LocalID            string         `json:"local_id"`
	LocalVersion       map[string]any `json:"local_version"`
	ServerVersion      map[string]any `json:"server_version"`
	ConflictFields     []string       `json:"conflict_fields"`
	ResolutionStrategy string         `json:"resolution_strategy,omitempty"`
}

// ChangeResult is the server's per-change verdict in a bulk checkin.
type ChangeResult struct {
	Entity   EntityType `json:"entity"`
	LocalID  string     `json:"local_id"`
	ServerID *int64     `json:"server_id,omitempty"`
	Status   string     `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// ArchivedChangeSet is what gets exported before unsynced changes are purged.
type ArchivedChangeSet struct {
	CheckoutID string    `json:"checkout_id"`
	DeviceID   string    `json:"device_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
	Changes    []Change  `json:"changes"`
	Errors     []string  `json:"errors,omitempty"`
}
