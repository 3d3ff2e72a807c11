package store

import (
	"context"
	"fmt"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/migrations"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/dbx"
)

// Stats holds row counts per table.
type Stats struct {
	SchemaVersion    int64
	CheckoutMetadata int
	Projects         int
	Subprojects      int
	DWRs             int
	WorkAssignments  int
	TimeRecords      int
	ChargeRecords    int
	InventoryCharges int
	ServiceCharges   int
	MiscCharges      int
	SyncQueue        int
	ReferenceData    int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"checkout_metadata", &st.CheckoutMetadata},
		{"projects", &st.Projects},
		{"subprojects", &st.Subprojects},
		{"dwrs", &st.DWRs},
		{"work_assignments", &st.WorkAssignments},
		{"time_records", &st.TimeRecords},
		{"charge_records", &st.ChargeRecords},
		{"inventory_charges", &st.InventoryCharges},
		{"service_charges", &st.ServiceCharges},
		{"miscellaneous_charges", &st.MiscCharges},
		{"sync_queue", &st.SyncQueue},
		{"reference_data", &st.ReferenceData},
	}
	for _, c := range counts {
		n, err := dbx.Count(ctx, s.db, `SELECT COUNT(*) FROM `+c.table)
		if err != nil {
			return st, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
		*c.dst = n
	}

	v, err := migrations.Version(ctx, s.db)
	if err != nil {
		return st, fmt.Errorf("failed to read schema version: %w", err)
	}
	st.SchemaVersion = v
	return st, nil
}
