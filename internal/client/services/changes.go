package services

import (
	"context"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/converter"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
)

// collectDirty scans every entity table for rows carrying mutation flags and
// returns one change per row, parents before children.
func collectDirty(ctx context.Context, repos *store.Repositories) ([]models.Change, error) {
	var changes []models.Change

	dwrs, err := repos.DWRs.ListDirty(ctx)
	if err != nil {
		return nil, err
	}
	for i := range dwrs {
		d := &dwrs[i]
		changes = append(changes, change(models.EntityDWR, d.LocalID, d.ServerID, "", d.Mutation, converter.DWRPayload(d)))
	}

	parents := parentIDs{repos: repos, entity: models.EntityDWR, ids: map[string]*int64{}}

	assignments, err := repos.Assignments.ListDirty(ctx)
	if err != nil {
		return nil, err
	}
	for i := range assignments {
		w := &assignments[i]
		pid, err := parents.get(ctx, w.DWRLocalID)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change(models.EntityWorkAssignment, w.LocalID, w.ServerID, w.DWRLocalID, w.Mutation,
			converter.WorkAssignmentPayload(w, pid)))
	}

	records, err := repos.TimeRecords.ListDirty(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		tr := &records[i]
		pid, err := parents.get(ctx, tr.DWRLocalID)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change(models.EntityTimeRecord, tr.LocalID, tr.ServerID, tr.DWRLocalID, tr.Mutation,
			converter.TimeRecordPayload(tr, pid)))
	}

	charges, err := repos.Charges.ListDirtyRecords(ctx)
	if err != nil {
		return nil, err
	}
	for i := range charges {
		c := &charges[i]
		pid, err := parents.get(ctx, c.DWRLocalID)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change(models.EntityChargeRecord, c.LocalID, c.ServerID, c.DWRLocalID, c.Mutation,
			converter.ChargeRecordPayload(c, pid)))
	}

	chargeParents := parentIDs{repos: repos, entity: models.EntityChargeRecord, ids: map[string]*int64{}}
	for _, kind := range models.ChargeKinds {
		lines, err := repos.Charges.ListDirtyLines(ctx, kind)
		if err != nil {
			return nil, err
		}
		for i := range lines {
			l := &lines[i]
			pid, err := chargeParents.get(ctx, l.ChargeRecordLocalID)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change(kind.Entity(), l.LocalID, l.ServerID, l.ChargeRecordLocalID, l.Mutation,
				converter.ChargeLinePayload(l, pid)))
		}
	}
	return changes, nil
}

func change(entity models.EntityType, localID string, serverID *int64, parent string, m models.Mutation, data map[string]any) models.Change {
	return models.Change{
		Type:          m.Operation(),
		Entity:        entity,
		LocalID:       localID,
		ServerID:      serverID,
		ParentLocalID: parent,
		Data:          data,
	}
}

// mergeQueued appends outstanding queue operations whose record is not
// already represented, so both discovery paths yield one change per record.
func mergeQueued(changes []models.Change, ops []models.SyncOperation) []models.Change {
	seen := make(map[string]struct{}, len(changes))
	for _, c := range changes {
		seen[c.Key()] = struct{}{}
	}
	for i := range ops {
		c := models.ChangeFromOperation(&ops[i])
		if _, ok := seen[c.Key()]; ok {
			continue
		}
		seen[c.Key()] = struct{}{}
		changes = append(changes, c)
	}
	return changes
}

// collectChanges is the full checkin change set.
func collectChanges(ctx context.Context, repos *store.Repositories) ([]models.Change, error) {
	changes, err := collectDirty(ctx, repos)
	if err != nil {
		return nil, err
	}
	ops, err := repos.Queue.ListOutstanding(ctx)
	if err != nil {
		return nil, err
	}
	return mergeQueued(changes, ops), nil
}

// parentIDs memoizes parent server id lookups during one scan.
type parentIDs struct {
	repos  *store.Repositories
	entity models.EntityType
	ids    map[string]*int64
}

func (p *parentIDs) get(ctx context.Context, localID string) (*int64, error) {
	if id, ok := p.ids[localID]; ok {
		return id, nil
	}
	id, err := serverIDOf(ctx, p.repos, p.entity, localID)
	if err != nil {
		return nil, err
	}
	p.ids[localID] = id
	return id, nil
}
