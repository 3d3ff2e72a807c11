package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/converter"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

// EditorService reads and edits the checked-out working set. Every write
// sets the record's mutation flags and queues a sync operation in the same
// transaction.
//
// Deleting a record the server has never seen removes it outright; one that
// exists upstream becomes a tombstone until checkin.
type EditorService interface {
	GetDWR(ctx context.Context, localID string) (*models.DWR, error)
	ListDWRs(ctx context.Context) ([]models.DWR, error)
	ListSubprojects(ctx context.Context) ([]models.Subproject, error)
	ReferenceData(ctx context.Context, key string) (json.RawMessage, error)

	CreateDWR(ctx context.Context, d *models.DWR) (*models.DWR, error)
	UpdateDWR(ctx context.Context, d *models.DWR) error
	DeleteDWR(ctx context.Context, localID string) error

	CreateWorkAssignment(ctx context.Context, w *models.WorkAssignment) (*models.WorkAssignment, error)
	UpdateWorkAssignment(ctx context.Context, w *models.WorkAssignment) error
	DeleteWorkAssignment(ctx context.Context, localID string) error

	CreateTimeRecord(ctx context.Context, tr *models.TimeRecord) (*models.TimeRecord, error)
	UpdateTimeRecord(ctx context.Context, tr *models.TimeRecord) error
	DeleteTimeRecord(ctx context.Context, localID string) error

	CreateChargeRecord(ctx context.Context, c *models.ChargeRecord) (*models.ChargeRecord, error)
	UpdateChargeRecord(ctx context.Context, c *models.ChargeRecord) error
	DeleteChargeRecord(ctx context.Context, localID string) error

	CreateChargeLine(ctx context.Context, l *models.ChargeLine) (*models.ChargeLine, error)
	UpdateChargeLine(ctx context.Context, l *models.ChargeLine) error
	DeleteChargeLine(ctx context.Context, kind models.ChargeKind, localID string) error
}

type editorService struct {
	store      *store.Store
	log        logging.Logger
	maxRetries int
}

func NewEditorService(st *store.Store, log logging.Logger, maxRetries int) EditorService {
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	return &editorService{store: st, log: log, maxRetries: maxRetries}
}

func notFound(op string, entity models.EntityType, localID string) error {
	return common.Errorf(common.KindNotFound, op, "%s %s not found", entity, localID)
}

// write runs fn in a transaction after checking there is an active checkout.
func (s *editorService) write(ctx context.Context, op string, fn func(ctx context.Context, r *store.Repositories) error) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		active, err := r.Checkouts.GetActive(ctx)
		if err != nil {
			return storageErr(op, err)
		}
		if active == nil {
			return common.ErrNoActiveCheckout
		}
		return fn(ctx, r)
	})
	if err == nil || common.KindOf(err) != "" {
		return err
	}
	return storageErr(op, err)
}

func (s *editorService) enqueue(ctx context.Context, r *store.Repositories, typ models.OperationType, entity models.EntityType,
	localID string, serverID *int64, parent string, payload map[string]any) error {
	if typ == models.OpDelete && serverID == nil {
		// Nothing upstream to delete; only a queued create needs cancelling.
		existing, err := r.Queue.GetByKey(ctx, entity, localID)
		if err != nil || existing == nil {
			return err
		}
	}
	op := &models.SyncOperation{
		Type:          typ,
		Entity:        entity,
		LocalID:       localID,
		ServerID:      serverID,
		ParentLocalID: parent,
		MaxRetries:    s.maxRetries,
	}
	if payload != nil {
		data, err := converter.Encode(payload)
		if err != nil {
			return err
		}
		op.Data = data
	}
	_, err := r.Queue.Enqueue(ctx, op)
	return err
}

// touch marks an existing record as edited, keeping its creation state.
func touch(existing models.Mutation) models.Mutation {
	return models.Mutation{HasLocalChanges: true, CreatedLocally: existing.CreatedLocally}
}

func created() models.Mutation {
	return models.Mutation{HasLocalChanges: true, CreatedLocally: true}
}

func tombstone(existing models.Mutation) models.Mutation {
	return models.Mutation{HasLocalChanges: true, CreatedLocally: existing.CreatedLocally, DeletedLocally: true}
}

func (s *editorService) GetDWR(ctx context.Context, localID string) (*models.DWR, error) {
	repos := s.store.Repos()
	d, err := repos.DWRs.Get(ctx, localID)
	if err != nil {
		return nil, storageErr("editor.get_dwr", err)
	}
	if d == nil || d.DeletedLocally {
		return nil, notFound("editor.get_dwr", models.EntityDWR, localID)
	}
	if d.WorkAssignments, err = repos.Assignments.ListByDWR(ctx, localID); err != nil {
		return nil, storageErr("editor.get_dwr", err)
	}
	if d.TimeRecords, err = repos.TimeRecords.ListByDWR(ctx, localID); err != nil {
		return nil, storageErr("editor.get_dwr", err)
	}
	c, err := repos.Charges.GetRecordByDWR(ctx, localID)
	if err != nil {
		return nil, storageErr("editor.get_dwr", err)
	}
	if c != nil && !c.DeletedLocally {
		if c.InventoryCharges, err = repos.Charges.ListLines(ctx, models.ChargeInventory, c.LocalID); err != nil {
			return nil, storageErr("editor.get_dwr", err)
		}
		if c.ServiceCharges, err = repos.Charges.ListLines(ctx, models.ChargeService, c.LocalID); err != nil {
			return nil, storageErr("editor.get_dwr", err)
		}
		if c.MiscCharges, err = repos.Charges.ListLines(ctx, models.ChargeMisc, c.LocalID); err != nil {
			return nil, storageErr("editor.get_dwr", err)
		}
		d.ChargeRecord = c
	}
	return d, nil
}

func (s *editorService) ListDWRs(ctx context.Context) ([]models.DWR, error) {
	list, err := s.store.Repos().DWRs.List(ctx)
	if err != nil {
		return nil, storageErr("editor.list_dwrs", err)
	}
	return list, nil
}

func (s *editorService) ListSubprojects(ctx context.Context) ([]models.Subproject, error) {
	list, err := s.store.Repos().Projects.ListSubprojects(ctx)
	if err != nil {
		return nil, storageErr("editor.list_subprojects", err)
	}
	return list, nil
}

// ReferenceData returns the cached blob for key, nil if it was never fetched.
func (s *editorService) ReferenceData(ctx context.Context, key string) (json.RawMessage, error) {
	v, err := s.store.Repos().Reference.Get(ctx, key)
	if err != nil {
		return nil, storageErr("editor.reference", err)
	}
	return v, nil
}

func (s *editorService) CreateDWR(ctx context.Context, d *models.DWR) (*models.DWR, error) {
	err := s.write(ctx, "editor.create_dwr", func(ctx context.Context, r *store.Repositories) error {
		if d.LocalID == "" {
			d.LocalID = models.NewLocalID()
		}
		if d.Status == "" {
			d.Status = models.StatusDraft
		}
		d.ServerID = nil
		d.IsCheckedOut = true
		d.Mutation = created()
		if err := r.DWRs.Save(ctx, d); err != nil {
			return err
		}
		return s.enqueue(ctx, r, models.OpCreate, models.EntityDWR, d.LocalID, nil, "", converter.DWRPayload(d))
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *editorService) UpdateDWR(ctx context.Context, d *models.DWR) error {
	return s.write(ctx, "editor.update_dwr", func(ctx context.Context, r *store.Repositories) error {
		existing, err := r.DWRs.Get(ctx, d.LocalID)
		if err != nil {
			return err
		}
		if existing == nil || existing.DeletedLocally {
			return notFound("editor.update_dwr", models.EntityDWR, d.LocalID)
		}
		d.ServerID = existing.ServerID
		d.IsCheckedOut = existing.IsCheckedOut
		d.LastSyncedAt = existing.LastSyncedAt
		d.CreatedAt = existing.CreatedAt
		d.UpdatedAt = time.Time{}
		d.Mutation = touch(existing.Mutation)
		if err := r.DWRs.Save(ctx, d); err != nil {
			return err
		}
		return s.enqueue(ctx, r, d.Operation(), models.EntityDWR, d.LocalID, d.ServerID, "", converter.DWRPayload(d))
	})
}

func (s *editorService) DeleteDWR(ctx context.Context, localID string) error {
	return s.write(ctx, "editor.delete_dwr", func(ctx context.Context, r *store.Repositories) error {
		d, err := r.DWRs.Get(ctx, localID)
		if err != nil {
			return err
		}
		if d == nil || d.DeletedLocally {
			return notFound("editor.delete_dwr", models.EntityDWR, localID)
		}
		if d.ServerID != nil {
			d.Mutation = tombstone(d.Mutation)
			if err := r.DWRs.Save(ctx, d); err != nil {
				return err
			}
			return s.enqueue(ctx, r, models.OpDelete, models.EntityDWR, localID, d.ServerID, "", nil)
		}

		// Children of a record the server never saw are local too; their
		// queued creates cancel out.
		assignments, err := r.Assignments.ListByDWR(ctx, localID)
		if err != nil {
			return err
		}
		for _, w := range assignments {
			if err := s.enqueue(ctx, r, models.OpDelete, models.EntityWorkAssignment, w.LocalID, w.ServerID, localID, nil); err != nil {
				return err
			}
		}
		records, err := r.TimeRecords.ListByDWR(ctx, localID)
		if err != nil {
			return err
		}
		for _, tr := range records {
			if err := s.enqueue(ctx, r, models.OpDelete, models.EntityTimeRecord, tr.LocalID, tr.ServerID, localID, nil); err != nil {
				return err
			}
		}
		c, err := r.Charges.GetRecordByDWR(ctx, localID)
		if err != nil {
			return err
		}
		if c != nil {
			if err := s.dropChargeRecord(ctx, r, c); err != nil {
				return err
			}
		}
		if err := r.DWRs.Delete(ctx, localID); err != nil {
			return err
		}
		return s.enqueue(ctx, r, models.OpDelete, models.EntityDWR, localID, nil, "", nil)
	})
}

// dropChargeRecord queues deletes for a local-only charge record and its
// lines. The rows go with the owning DWR or are removed by the caller.
func (s *editorService) dropChargeRecord(ctx context.Context, r *store.Repositories, c *models.ChargeRecord) error {
	for _, kind := range models.ChargeKinds {
		lines, err := r.Charges.ListLines(ctx, kind, c.LocalID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if err := s.enqueue(ctx, r, models.OpDelete, kind.Entity(), l.LocalID, l.ServerID, c.LocalID, nil); err != nil {
				return err
			}
		}
	}
	return s.enqueue(ctx, r, models.OpDelete, models.EntityChargeRecord, c.LocalID, c.ServerID, c.DWRLocalID, nil)
}

// liveDWR returns the parent for a child write.
func liveDWR(ctx context.Context, r *store.Repositories, op, localID string) (*models.DWR, error) {
	d, err := r.DWRs.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if d == nil || d.DeletedLocally {
		return nil, notFound(op, models.EntityDWR, localID)
	}
	return d, nil
}

func (s *editorService) CreateWorkAssignment(ctx context.Context, w *models.WorkAssignment) (*models.WorkAssignment, error) {
	err := s.write(ctx, "editor.create_work_assignment", func(ctx context.Context, r *store.Repositories) error {
		d, err := liveDWR(ctx, r, "editor.create_work_assignment", w.DWRLocalID)
		if err != nil {
			return err
		}
		if w.LocalID == "" {
			w.LocalID = models.NewLocalID()
		}
		w.ServerID = nil
		w.Mutation = created()
		if err := r.Assignments.Save(ctx, w); err != nil {
			return err
		}
		return s.enqueue(ctx, r, models.OpCreate, models.EntityWorkAssignment, w.LocalID, nil, w.DWRLocalID,
			converter.WorkAssignmentPayload(w, d.ServerID))
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *editorService) UpdateWorkAssignment(ctx context.Context, w *models.WorkAssignment) error {
	return s.write(ctx, "editor.update_work_assignment", func(ctx context.Context, r *store.Repositories) error {
		existing, err := r.Assignments.Get(ctx, w.LocalID)
		if err != nil {
			return err
		}
		if existing == nil || existing.DeletedLocally {
			return notFound("editor.update_work_assignment", models.EntityWorkAssignment, w.LocalID)
		}
		d, err := liveDWR(ctx, r, "editor.update_work_assignment", existing.DWRLocalID)
		if err != nil {
			return err
		}
		w.ServerID = existing.ServerID
		w.DWRLocalID = existing.DWRLocalID
		w.Mutation = touch(existing.Mutation)
		if err := r.Assignments.Save(ctx, w); err != nil {
			return err
		}
		return s.enqueue(ctx, r, w.Operation(), models.EntityWorkAssignment, w.LocalID, w.ServerID, w.DWRLocalID,
			converter.WorkAssignmentPayload(w, d.ServerID))
	})
}

func (s *editorService) DeleteWorkAssignment(ctx context.Context, localID string) error {
	return s.write(ctx, "editor.delete_work_assignment", func(ctx context.Context, r *store.Repositories) error {
		w, err := r.Assignments.Get(ctx, localID)
		if err != nil {
			return err
		}
		if w == nil || w.DeletedLocally {
			return notFound("editor.delete_work_assignment", models.EntityWorkAssignment, localID)
		}
		if w.ServerID == nil {
			if err := r.Assignments.Delete(ctx, localID); err != nil {
				return err
			}
		} else {
			w.Mutation = tombstone(w.Mutation)
			if err := r.Assignments.Save(ctx, w); err != nil {
				return err
			}
		}
		return s.enqueue(ctx, r, models.OpDelete, models.EntityWorkAssignment, localID, w.ServerID, w.DWRLocalID, nil)
	})
}

func (s *editorService) CreateTimeRecord(ctx context.Context, tr *models.TimeRecord) (*models.TimeRecord, error) {
	err := s.write(ctx, "editor.create_time_record", func(ctx context.Context, r *store.Repositories) error {
		d, err := liveDWR(ctx, r, "editor.create_time_record", tr.DWRLocalID)
		if err != nil {
			return err
		}
		if tr.LocalID == "" {
			tr.LocalID = models.NewLocalID()
		}
		tr.ServerID = nil
		tr.Mutation = created()
		if err := r.TimeRecords.Save(ctx, tr); err != nil {
			return err
		}
		return s.enqueue(ctx, r, models.OpCreate, models.EntityTimeRecord, tr.LocalID, nil, tr.DWRLocalID,
			converter.TimeRecordPayload(tr, d.ServerID))
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func (s *editorService) UpdateTimeRecord(ctx context.Context, tr *models.TimeRecord) error {
	return s.write(ctx, "editor.update_time_record", func(ctx context.Context, r *store.Repositories) error {
		existing, err := r.TimeRecords.Get(ctx, tr.LocalID)
		if err != nil {
			return err
		}
		if existing == nil || existing.DeletedLocally {
			return notFound("editor.update_time_record", models.EntityTimeRecord, tr.LocalID)
		}
		d, err := liveDWR(ctx, r, "editor.update_time_record", existing.DWRLocalID)
		if err != nil {
			return err
		}
		tr.ServerID = existing.ServerID
		tr.DWRLocalID = existing.DWRLocalID
		tr.Mutation = touch(existing.Mutation)
		if err := r.TimeRecords.Save(ctx, tr); err != nil {
			return err
		}
		return s.enqueue(ctx, r, tr.Operation(), models.EntityTimeRecord, tr.LocalID, tr.ServerID, tr.DWRLocalID,
			converter.TimeRecordPayload(tr, d.ServerID))
	})
}

func (s *editorService) DeleteTimeRecord(ctx context.Context, localID string) error {
	return s.write(ctx, "editor.delete_time_record", func(ctx context.Context, r *store.Repositories) error {
		tr, err := r.TimeRecords.Get(ctx, localID)
		if err != nil {
			return err
		}
		if tr == nil || tr.DeletedLocally {
			return notFound("editor.delete_time_record", models.EntityTimeRecord, localID)
		}
		if tr.ServerID == nil {
			if err := r.TimeRecords.Delete(ctx, localID); err != nil {
				return err
			}
		} else {
			tr.Mutation = tombstone(tr.Mutation)
			if err := r.TimeRecords.Save(ctx, tr); err != nil {
				return err
			}
		}
		return s.enqueue(ctx, r, models.OpDelete, models.EntityTimeRecord, localID, tr.ServerID, tr.DWRLocalID, nil)
	})
}

func (s *editorService) CreateChargeRecord(ctx context.Context, c *models.ChargeRecord) (*models.ChargeRecord, error) {
	err := s.write(ctx, "editor.create_charge_record", func(ctx context.Context, r *store.Repositories) error {
		d, err := liveDWR(ctx, r, "editor.create_charge_record", c.DWRLocalID)
		if err != nil {
			return err
		}
		existing, err := r.Charges.GetRecordByDWR(ctx, c.DWRLocalID)
		if err != nil {
			return err
		}
		if existing != nil && !existing.DeletedLocally {
			return common.Errorf(common.KindInvalid, "editor.create_charge_record",
				"daily work record %s already has a charge record", c.DWRLocalID)
		}
		if c.LocalID == "" {
			c.LocalID = models.NewLocalID()
		}
		c.ServerID = nil
		c.Mutation = created()
		if err := r.Charges.SaveRecord(ctx, c); err != nil {
			return err
		}
		return s.enqueue(ctx, r, models.OpCreate, models.EntityChargeRecord, c.LocalID, nil, c.DWRLocalID,
			converter.ChargeRecordPayload(c, d.ServerID))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *editorService) UpdateChargeRecord(ctx context.Context, c *models.ChargeRecord) error {
	return s.write(ctx, "editor.update_charge_record", func(ctx context.Context, r *store.Repositories) error {
		existing, err := r.Charges.GetRecord(ctx, c.LocalID)
		if err != nil {
			return err
		}
		if existing == nil || existing.DeletedLocally {
			return notFound("editor.update_charge_record", models.EntityChargeRecord, c.LocalID)
		}
		d, err := liveDWR(ctx, r, "editor.update_charge_record", existing.DWRLocalID)
		if err != nil {
			return err
		}
		c.ServerID = existing.ServerID
		c.DWRLocalID = existing.DWRLocalID
		c.Mutation = touch(existing.Mutation)
		if err := r.Charges.SaveRecord(ctx, c); err != nil {
			return err
		}
		return s.enqueue(ctx, r, c.Operation(), models.EntityChargeRecord, c.LocalID, c.ServerID, c.DWRLocalID,
			converter.ChargeRecordPayload(c, d.ServerID))
	})
}

func (s *editorService) DeleteChargeRecord(ctx context.Context, localID string) error {
	return s.write(ctx, "editor.delete_charge_record", func(ctx context.Context, r *store.Repositories) error {
		c, err := r.Charges.GetRecord(ctx, localID)
		if err != nil {
			return err
		}
		if c == nil || c.DeletedLocally {
			return notFound("editor.delete_charge_record", models.EntityChargeRecord, localID)
		}
		if c.ServerID != nil {
			c.Mutation = tombstone(c.Mutation)
			if err := r.Charges.SaveRecord(ctx, c); err != nil {
				return err
			}
			return s.enqueue(ctx, r, models.OpDelete, models.EntityChargeRecord, localID, c.ServerID, c.DWRLocalID, nil)
		}
		if err := s.dropChargeRecord(ctx, r, c); err != nil {
			return err
		}
		return r.Charges.DeleteRecord(ctx, localID)
	})
}

func (s *editorService) liveRecord(ctx context.Context, r *store.Repositories, op, localID string) (*models.ChargeRecord, error) {
	c, err := r.Charges.GetRecord(ctx, localID)
	if err != nil {
		return nil, err
	}
	if c == nil || c.DeletedLocally {
		return nil, notFound(op, models.EntityChargeRecord, localID)
	}
	return c, nil
}

func (s *editorService) CreateChargeLine(ctx context.Context, l *models.ChargeLine) (*models.ChargeLine, error) {
	err := s.write(ctx, "editor.create_charge_line", func(ctx context.Context, r *store.Repositories) error {
		c, err := s.liveRecord(ctx, r, "editor.create_charge_line", l.ChargeRecordLocalID)
		if err != nil {
			return err
		}
		if l.Kind == "" {
			l.Kind = models.ChargeInventory
		}
		if l.LocalID == "" {
			l.LocalID = models.NewLocalID()
		}
		l.ServerID = nil
		l.Mutation = created()
		if err := r.Charges.SaveLine(ctx, l); err != nil {
			return err
		}
		return s.enqueue(ctx, r, models.OpCreate, l.Kind.Entity(), l.LocalID, nil, l.ChargeRecordLocalID,
			converter.ChargeLinePayload(l, c.ServerID))
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *editorService) UpdateChargeLine(ctx context.Context, l *models.ChargeLine) error {
	return s.write(ctx, "editor.update_charge_line", func(ctx context.Context, r *store.Repositories) error {
		existing, err := r.Charges.GetLine(ctx, l.Kind, l.LocalID)
		if err != nil {
			return err
		}
		if existing == nil || existing.DeletedLocally {
			return notFound("editor.update_charge_line", l.Kind.Entity(), l.LocalID)
		}
		c, err := s.liveRecord(ctx, r, "editor.update_charge_line", existing.ChargeRecordLocalID)
		if err != nil {
			return err
		}
		l.ServerID = existing.ServerID
		l.ChargeRecordLocalID = existing.ChargeRecordLocalID
		l.Mutation = touch(existing.Mutation)
		if err := r.Charges.SaveLine(ctx, l); err != nil {
			return err
		}
		return s.enqueue(ctx, r, l.Operation(), l.Kind.Entity(), l.LocalID, l.ServerID, l.ChargeRecordLocalID,
			converter.ChargeLinePayload(l, c.ServerID))
	})
}

func (s *editorService) DeleteChargeLine(ctx context.Context, kind models.ChargeKind, localID string) error {
	return s.write(ctx, "editor.delete_charge_line", func(ctx context.Context, r *store.Repositories) error {
		l, err := r.Charges.GetLine(ctx, kind, localID)
		if err != nil {
			return err
		}
		if l == nil || l.DeletedLocally {
			return notFound("editor.delete_charge_line", kind.Entity(), localID)
		}
		if l.ServerID == nil {
			if err := r.Charges.DeleteLine(ctx, kind, localID); err != nil {
				return err
			}
		} else {
			l.Mutation = tombstone(l.Mutation)
			if err := r.Charges.SaveLine(ctx, l); err != nil {
				return err
			}
		}
		return s.enqueue(ctx, r, models.OpDelete, kind.Entity(), localID, l.ServerID, l.ChargeRecordLocalID, nil)
	})
}
