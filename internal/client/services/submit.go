// Package services implements the offline engines: checkout, checkin, the
// incremental sync queue and the editor that tracks local mutations.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/converter"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

func storageErr(op string, err error) error {
	return common.E(common.KindStorageFailure, op, err)
}

func remoteErr(op string, err error) error {
	return common.E(common.KindNetworkFailure, op, err)
}

// submitter pushes single changes to the per-entity endpoints. It is shared
// by the checkin fallback and the sync queue.
type submitter struct {
	client client.Client
	log    logging.Logger
	now    func() time.Time
}

// push sends ch and returns the server id assigned to a create. A delete of
// a record the server never saw, or one already gone, counts as done.
func (s *submitter) push(ctx context.Context, repos *store.Repositories, ch *models.Change) (*int64, error) {
	resource, ok := client.EntityResource(ch.Entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", ch.Entity)
	}
	if err := s.resolveParent(ctx, repos, ch); err != nil {
		return nil, err
	}

	switch ch.Type {
	case models.OpCreate:
		body, err := s.client.Create(ctx, resource, ch.Data)
		if err != nil {
			return nil, err
		}
		id, err := converter.ServerID(body)
		if err != nil {
			s.log.Warn(ctx, "create response carried no id", "entity", ch.Entity, "local_id", ch.LocalID, "error", err)
			return nil, nil
		}
		return id, nil
	case models.OpUpdate:
		if ch.ServerID == nil {
			return nil, fmt.Errorf("cannot update %s without server id", ch.Entity)
		}
		_, err := s.client.Update(ctx, resource, *ch.ServerID, ch.Data)
		return ch.ServerID, err
	case models.OpDelete:
		if ch.ServerID == nil {
			return nil, nil
		}
		err := s.client.Delete(ctx, resource, *ch.ServerID)
		if errors.Is(err, client.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return nil, fmt.Errorf("unknown operation type %q", ch.Type)
}

// resolveParent fills the parent's server id into the payload when it was
// missing at enqueue time, e.g. because the parent was created offline and
// pushed earlier in the same pass.
func (s *submitter) resolveParent(ctx context.Context, repos *store.Repositories, ch *models.Change) error {
	field := converter.ParentField(ch.Entity)
	if field == "" || ch.ParentLocalID == "" {
		return nil
	}
	if ch.Data == nil {
		ch.Data = map[string]any{}
	}
	if v, ok := ch.Data[field]; ok && v != nil {
		return nil
	}
	id, err := serverIDOf(ctx, repos, converter.ParentEntity(ch.Entity), ch.ParentLocalID)
	if err != nil {
		return err
	}
	if id != nil {
		ch.Data[field] = *id
	}
	return nil
}

// recordCreated writes a new server id back to the entity row and to the
// queued operation for the same record.
func (s *submitter) recordCreated(ctx context.Context, repos *store.Repositories, entity models.EntityType, localID string, serverID int64) error {
	var err error
	switch entity {
	case models.EntityDWR:
		err = repos.DWRs.MarkCreated(ctx, localID, serverID, s.now())
	case models.EntityWorkAssignment:
		err = repos.Assignments.MarkCreated(ctx, localID, serverID)
	case models.EntityTimeRecord:
		err = repos.TimeRecords.MarkCreated(ctx, localID, serverID)
	case models.EntityChargeRecord:
		err = repos.Charges.MarkRecordCreated(ctx, localID, serverID)
	default:
		kind, ok := models.ChargeKindOf(entity)
		if !ok {
			return fmt.Errorf("unknown entity %q", entity)
		}
		err = repos.Charges.MarkLineCreated(ctx, kind, localID, serverID)
	}
	if err != nil {
		return err
	}
	return repos.Queue.SetServerID(ctx, entity, localID, serverID)
}

// serverIDOf returns the server id of a local record, nil if it has none or
// does not exist.
func serverIDOf(ctx context.Context, repos *store.Repositories, entity models.EntityType, localID string) (*int64, error) {
	switch entity {
	case models.EntityDWR:
		d, err := repos.DWRs.Get(ctx, localID)
		if err != nil || d == nil {
			return nil, err
		}
		return d.ServerID, nil
	case models.EntityWorkAssignment:
		w, err := repos.Assignments.Get(ctx, localID)
		if err != nil || w == nil {
			return nil, err
		}
		return w.ServerID, nil
	case models.EntityTimeRecord:
		tr, err := repos.TimeRecords.Get(ctx, localID)
		if err != nil || tr == nil {
			return nil, err
		}
		return tr.ServerID, nil
	case models.EntityChargeRecord:
		c, err := repos.Charges.GetRecord(ctx, localID)
		if err != nil || c == nil {
			return nil, err
		}
		return c.ServerID, nil
	}
	kind, ok := models.ChargeKindOf(entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	l, err := repos.Charges.GetLine(ctx, kind, localID)
	if err != nil || l == nil {
		return nil, err
	}
	return l.ServerID, nil
}
