package models

type CheckoutPhase string

const (
	CheckoutFetching      CheckoutPhase = "fetching"
	CheckoutSaving        CheckoutPhase = "saving"
	CheckoutReferenceData CheckoutPhase = "reference_data"
	CheckoutComplete      CheckoutPhase = "complete"
)

// CheckoutProgress reports percent-style progress: Current out of Total (100).
type CheckoutProgress struct {
	Phase   CheckoutPhase
	Current int
	Total   int
	Message string
}

type CheckinPhase string

const (
	CheckinCollecting CheckinPhase = "collecting"
	CheckinSyncing    CheckinPhase = "syncing"
	CheckinResolving  CheckinPhase = "resolving"
	CheckinCleanup    CheckinPhase = "cleanup"
	CheckinComplete   CheckinPhase = "complete"
)

type CheckinProgress struct {
	Phase   CheckinPhase
	Current int
	Total   int
	Message string
}

// SyncProgress reports queue draining progress.
type SyncProgress struct {
	Total     int
	Completed int
	Failed    int
	Current   string
}

type CheckoutResult struct {
	CheckoutID  string
	RecordCount int
}

// CheckinResult is returned even when some changes failed or conflicted.
type CheckinResult struct {
	CheckinID   string
	SyncedCount int
	FailedCount int
	Conflicts   []Conflict
	Errors      []string
	Purged      bool
}

type SyncResult struct {
	Success      bool
	SyncedCount  int
	FailedCount  int
	PendingCount int
	Errors       []string
}

// PendingSummary counts dirty records by family.
type PendingSummary struct {
	DWRs            int
	WorkAssignments int
	TimeRecords     int
	Charges         int
}

func (s PendingSummary) Total() int {
	return s.DWRs + s.WorkAssignments + s.TimeRecords + s.Charges
}
