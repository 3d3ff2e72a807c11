package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/converter"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
	"github.com/google/uuid"
)

// DefaultFallbackTTL is the checkout window used when the server does not
// issue one.
const DefaultFallbackTTL = 24 * time.Hour

type CheckoutRequest struct {
	RigID    int64
	RigName  string
	UserID   int64
	Username string
}

// CheckoutService downloads a rig's working set into the local store.
type CheckoutService interface {
	// Checkout fails with common.ErrAlreadyCheckedOut while an unexpired
	// checkout is active. An expired one is purged first.
	Checkout(ctx context.Context, req CheckoutRequest, onProgress func(models.CheckoutProgress)) (*models.CheckoutResult, error)
	HasActiveCheckout(ctx context.Context) (bool, error)
	// CheckoutInfo returns the active checkout, or nil.
	CheckoutInfo(ctx context.Context) (*models.CheckoutMetadata, error)
}

type CheckoutOptions struct {
	Statuses    []models.DWRStatus
	FallbackTTL time.Duration
}

type checkoutService struct {
	store  *store.Store
	client client.Client
	log    logging.Logger
	opts   CheckoutOptions
	now    func() time.Time
}

func NewCheckoutService(st *store.Store, c client.Client, log logging.Logger, opts CheckoutOptions) CheckoutService {
	if len(opts.Statuses) == 0 {
		opts.Statuses = models.DefaultCheckoutStatuses()
	}
	if opts.FallbackTTL <= 0 {
		opts.FallbackTTL = DefaultFallbackTTL
	}
	return &checkoutService{store: st, client: c, log: log, opts: opts, now: time.Now}
}

func (s *checkoutService) HasActiveCheckout(ctx context.Context) (bool, error) {
	m, err := s.CheckoutInfo(ctx)
	if err != nil {
		return false, err
	}
	return m != nil && !m.Expired(s.now()), nil
}

func (s *checkoutService) CheckoutInfo(ctx context.Context) (*models.CheckoutMetadata, error) {
	m, err := s.store.Repos().Checkouts.GetActive(ctx)
	if err != nil {
		return nil, storageErr("checkout.info", err)
	}
	return m, nil
}

func (s *checkoutService) Checkout(ctx context.Context, req CheckoutRequest, onProgress func(models.CheckoutProgress)) (*models.CheckoutResult, error) {
	report := func(phase models.CheckoutPhase, current int, msg string) {
		if onProgress != nil {
			onProgress(models.CheckoutProgress{Phase: phase, Current: current, Total: 100, Message: msg})
		}
	}
	repos := s.store.Repos()

	if err := s.precondition(ctx); err != nil {
		return nil, err
	}
	deviceID, err := s.store.DeviceID(ctx)
	if err != nil {
		return nil, storageErr("checkout", err)
	}
	if req.UserID == 0 {
		if id, ok := s.client.UserID(); ok {
			req.UserID = id
		}
	}

	report(models.CheckoutFetching, 0, "Fetching records from server...")
	resp, err := s.fetch(ctx, req.RigID, deviceID)
	if err != nil {
		return nil, err
	}

	meta := &models.CheckoutMetadata{
		CheckoutID:   resp.CheckoutID,
		RigID:        req.RigID,
		RigName:      req.RigName,
		UserID:       req.UserID,
		Username:     req.Username,
		DeviceID:     deviceID,
		CheckedOutAt: resp.CheckedOutAt,
		ExpiresAt:    resp.ExpiresAt,
		IsActive:     true,
	}
	if meta.CheckedOutAt.IsZero() {
		meta.CheckedOutAt = s.now()
	}
	if meta.ExpiresAt.IsZero() {
		meta.ExpiresAt = meta.CheckedOutAt.Add(s.opts.FallbackTTL)
	}
	if err := repos.Checkouts.Insert(ctx, meta); err != nil {
		return nil, storageErr("checkout", err)
	}

	report(models.CheckoutSaving, 10, "Saving records...")
	saved := 0
	for i, rec := range resp.Records {
		ok, err := s.saveRecord(ctx, repos, rec)
		if err != nil {
			s.discard(ctx, meta.CheckoutID)
			return nil, storageErr("checkout", err)
		}
		if ok {
			saved++
		}
		report(models.CheckoutSaving, 10+(i+1)*60/len(resp.Records), fmt.Sprintf("Saved %d of %d records", i+1, len(resp.Records)))
	}
	if err := repos.Checkouts.SetRecordCount(ctx, meta.CheckoutID, saved); err != nil {
		s.discard(ctx, meta.CheckoutID)
		return nil, storageErr("checkout", err)
	}

	report(models.CheckoutReferenceData, 75, "Caching reference data...")
	s.saveSubprojects(ctx, repos, req.RigID)
	s.saveReferenceData(ctx, repos, req.RigID)

	report(models.CheckoutComplete, 100, fmt.Sprintf("Checked out %d records", saved))
	s.log.Info(ctx, "checkout complete", "checkout_id", meta.CheckoutID, "rig_id", req.RigID, "records", saved)
	return &models.CheckoutResult{CheckoutID: meta.CheckoutID, RecordCount: saved}, nil
}

func (s *checkoutService) precondition(ctx context.Context) error {
	active, err := s.store.Repos().Checkouts.GetActive(ctx)
	if err != nil {
		return storageErr("checkout", err)
	}
	if active == nil {
		return nil
	}
	if !active.Expired(s.now()) {
		return common.ErrAlreadyCheckedOut
	}
	s.log.Info(ctx, "discarding expired checkout", "checkout_id", active.CheckoutID, "expired_at", active.ExpiresAt)
	err = s.store.WithTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		return r.PurgeAll(ctx)
	})
	if err != nil {
		return storageErr("checkout", err)
	}
	return nil
}

// fetch asks the bulk endpoint for the working set and falls back to
// assembling it from the collection endpoints when that is not served.
func (s *checkoutService) fetch(ctx context.Context, rigID int64, deviceID string) (*client.CheckoutResponse, error) {
	resp, err := s.client.Checkout(ctx, &client.CheckoutRequest{
		RigID:    rigID,
		Statuses: s.opts.Statuses,
		DeviceID: deviceID,
	})
	if err == nil {
		return resp, nil
	}
	if !client.BulkUnavailable(err) {
		return nil, remoteErr("checkout", err)
	}
	s.log.Warn(ctx, "checkout endpoint unavailable, using fallback", "error", err)
	resp, err = s.fallback(ctx, rigID)
	if err != nil {
		return nil, remoteErr("checkout", err)
	}
	return resp, nil
}

func (s *checkoutService) fallback(ctx context.Context, rigID int64) (*client.CheckoutResponse, error) {
	subprojects, err := s.client.List(ctx, client.ResourceSubprojects, url.Values{
		"assigned_rig": {strconv.FormatInt(rigID, 10)},
		"status":       {"active"},
		"page_size":    {"100"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list subprojects: %w", err)
	}

	allowed := make(map[models.DWRStatus]bool, len(s.opts.Statuses))
	for _, st := range s.opts.Statuses {
		allowed[st] = true
	}

	now := s.now()
	resp := &client.CheckoutResponse{
		CheckoutID:   uuid.NewString(),
		CheckedOutAt: now,
		ExpiresAt:    now.Add(s.opts.FallbackTTL),
		RigID:        rigID,
	}
	for _, raw := range subprojects {
		id, err := converter.ServerID(raw)
		if err != nil || id == nil {
			continue
		}
		dwrs, err := s.client.List(ctx, client.ResourceDWRs, url.Values{
			"subproject_id": {strconv.FormatInt(*id, 10)},
			"page_size":     {"50"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list daily work records[subproject=%d]: %w", *id, err)
		}
		for _, d := range dwrs {
			var head struct {
				ID     int64            `json:"id"`
				Status models.DWRStatus `json:"status"`
			}
			if err := json.Unmarshal(d, &head); err != nil {
				continue
			}
			if !allowed[head.Status] {
				continue
			}
			resp.Records = append(resp.Records, client.CheckoutRecord{ID: head.ID, Type: models.EntityDWR, Data: d})
		}
	}
	return resp, nil
}

// saveRecord converts and stores one DWR with its children. It reports
// whether the DWR was kept; only storage errors are returned.
func (s *checkoutService) saveRecord(ctx context.Context, repos *store.Repositories, rec client.CheckoutRecord) (bool, error) {
	if rec.Type != "" && rec.Type != models.EntityDWR {
		s.log.Debug(ctx, "skipping checkout record", "type", rec.Type, "id", rec.ID)
		return false, nil
	}
	d, err := converter.DWR(rec.Data, s.now())
	if err != nil {
		s.log.Warn(ctx, "failed to convert record", "entity", models.EntityDWR, "id", rec.ID, "error", err)
		return false, nil
	}
	if err := repos.DWRs.Save(ctx, d); err != nil {
		return false, err
	}
	if d.ServerID == nil {
		return true, nil
	}
	return true, s.saveChildren(ctx, repos, d)
}

func (s *checkoutService) saveChildren(ctx context.Context, repos *store.Repositories, d *models.DWR) error {
	params := url.Values{
		"daily_work_record": {strconv.FormatInt(*d.ServerID, 10)},
		"page_size":         {"100"},
	}

	items, err := s.listChildren(ctx, client.ResourceWorkAssignments, models.EntityWorkAssignment, d, params)
	if err != nil {
		return err
	}
	for _, raw := range items {
		w, err := converter.WorkAssignment(raw, d.LocalID)
		if err != nil {
			s.log.Warn(ctx, "failed to convert record", "entity", models.EntityWorkAssignment, "local_id", d.LocalID, "error", err)
			continue
		}
		if err := repos.Assignments.Save(ctx, w); err != nil {
			return err
		}
	}

	items, err = s.listChildren(ctx, client.ResourceTimeRecords, models.EntityTimeRecord, d, params)
	if err != nil {
		return err
	}
	for _, raw := range items {
		tr, err := converter.TimeRecord(raw, d.LocalID)
		if err != nil {
			s.log.Warn(ctx, "failed to convert record", "entity", models.EntityTimeRecord, "local_id", d.LocalID, "error", err)
			continue
		}
		if err := repos.TimeRecords.Save(ctx, tr); err != nil {
			return err
		}
	}

	items, err = s.listChildren(ctx, client.ResourceChargeRecords, models.EntityChargeRecord, d, params)
	if err != nil || len(items) == 0 {
		return err
	}
	c, err := converter.ChargeRecord(items[0], d.LocalID)
	if err != nil {
		s.log.Warn(ctx, "failed to convert record", "entity", models.EntityChargeRecord, "local_id", d.LocalID, "error", err)
		return nil
	}
	if err := repos.Charges.SaveRecord(ctx, c); err != nil {
		return err
	}
	for _, kind := range models.ChargeKinds {
		lines := c.Lines(kind)
		for i := range lines {
			if err := repos.Charges.SaveLine(ctx, &lines[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// listChildren swallows fetch failures: the parent is kept with whatever
// children could be loaded.
func (s *checkoutService) listChildren(ctx context.Context, resource string, entity models.EntityType, d *models.DWR, params url.Values) ([]json.RawMessage, error) {
	items, err := s.client.List(ctx, resource, params)
	if err != nil {
		s.log.Warn(ctx, "failed to fetch child records", "entity", entity, "local_id", d.LocalID, "error", err)
		return nil, nil
	}
	return items, nil
}

func (s *checkoutService) saveSubprojects(ctx context.Context, repos *store.Repositories, rigID int64) {
	items, err := s.client.List(ctx, client.ResourceSubprojects, url.Values{
		"assigned_rig": {strconv.FormatInt(rigID, 10)},
		"is_active":    {"true"},
		"page_size":    {"500"},
	})
	if err != nil {
		s.log.Warn(ctx, "failed to fetch subprojects", "rig_id", rigID, "error", err)
		return
	}
	projects := map[int64]bool{}
	for _, raw := range items {
		sp, p, err := converter.Subproject(raw, rigID)
		if err != nil {
			s.log.Warn(ctx, "failed to convert subproject", "error", err)
			continue
		}
		if p != nil && !projects[p.ServerID] {
			projects[p.ServerID] = true
			if err := repos.Projects.SaveProject(ctx, p); err != nil {
				s.log.Warn(ctx, "failed to save project", "id", p.ServerID, "error", err)
			}
		}
		if err := repos.Projects.SaveSubproject(ctx, sp); err != nil {
			s.log.Warn(ctx, "failed to save subproject", "id", sp.ServerID, "error", err)
		}
	}
}

type referenceSource struct {
	key      string
	resource string
	params   url.Values
}

func (s *checkoutService) saveReferenceData(ctx context.Context, repos *store.Repositories, rigID int64) {
	all := url.Values{"page_size": {"500"}}
	sources := []referenceSource{
		{models.RefEmployees, client.ResourceEmployees, url.Values{
			"assigned_rig": {strconv.FormatInt(rigID, 10)},
			"is_active":    {"true"},
			"page_size":    {"500"},
		}},
		{models.RefEmployeeTypes, client.ResourceEmployeeTypes, all},
		{models.RefWorkDescriptions, client.ResourceWorkDescriptions, all},
		{models.RefInventoryItems, client.ResourceInventoryItems, all},
		{models.RefServiceItems, client.ResourceServiceItems, all},
	}
	for _, src := range sources {
		items, err := s.client.List(ctx, src.resource, src.params)
		if err != nil {
			s.log.Warn(ctx, "failed to fetch reference data", "key", src.key, "error", err)
			continue
		}
		if items == nil {
			items = []json.RawMessage{}
		}
		blob, err := json.Marshal(items)
		if err != nil {
			s.log.Warn(ctx, "failed to encode reference data", "key", src.key, "error", err)
			continue
		}
		if err := repos.Reference.Set(ctx, src.key, blob); err != nil {
			s.log.Warn(ctx, "failed to save reference data", "key", src.key, "error", err)
		}
	}
}

// discard removes a half-written checkout.
func (s *checkoutService) discard(ctx context.Context, checkoutID string) {
	err := s.store.WithTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		if err := r.PurgeWorkingSet(ctx); err != nil {
			return err
		}
		return r.Checkouts.Delete(ctx, checkoutID)
	})
	if err != nil {
		s.log.Error(ctx, "failed to discard partial checkout", "checkout_id", checkoutID, "error", err)
	}
}
