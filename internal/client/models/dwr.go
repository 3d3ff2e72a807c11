package models

import (
	"encoding/json"
	"time"
)

// DWR is a daily work record, the root of the offline working set.
// LocalID is the primary key; ServerID is nil until the record is synced.
type DWR struct {
	LocalID        string
	ServerID       *int64
	SubprojectID   int64
	SubprojectData json.RawMessage
	Date           string
	TicketNumber   string
	Notes          string
	ContactID      *int64
	ContactData    json.RawMessage
	IsLastDay      bool
	IsLocked       bool
	LockDate       *string
	IsApproved     bool
	ApprovedAt     *string
	ApprovedBy     *int64
	Status         DWRStatus
	IsCheckedOut   bool
	Mutation
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	WorkAssignments []WorkAssignment
	TimeRecords     []TimeRecord
	ChargeRecord    *ChargeRecord
}

// WorkAssignment is a child of a DWR.
type WorkAssignment struct {
	LocalID             string
	ServerID            *int64
	DWRLocalID          string
	WorkDescriptionID   *int64
	WorkDescriptionData json.RawMessage
	Description         string
	FromTime            string
	ToTime              *string
	InputValues         json.RawMessage
	IsLegacy            bool
	Mutation
}

// TimeRecord is an employee time record, a child of a DWR.
type TimeRecord struct {
	LocalID      string
	ServerID     *int64
	DWRLocalID   string
	EmployeeID   int64
	EmployeeData json.RawMessage
	StartTime    *string
	StopTime     *string
	RigTime      *string
	TravelTime   *string
	RoleID       *int64
	RoleData     json.RawMessage
	Mutation
}
