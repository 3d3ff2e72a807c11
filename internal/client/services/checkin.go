package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/archive"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

// CheckinService pushes every local change of the active checkout and then
// clears the working set.
//
// A checkin with failed changes still purges local data unless
// PurgeOnPartialFailure is off; conflicts are returned in the result, not as
// an error.
type CheckinService interface {
	Checkin(ctx context.Context, onProgress func(models.CheckinProgress)) (*models.CheckinResult, error)
	// ForceCheckin discards the working set without contacting the server.
	ForceCheckin(ctx context.Context) error
	PendingChangesCount(ctx context.Context) (int, error)
	PendingChangesSummary(ctx context.Context) (models.PendingSummary, error)
	CollectChanges(ctx context.Context) ([]models.Change, error)
}

type CheckinOptions struct {
	PurgeOnPartialFailure bool
	Archiver              archive.Archiver
}

type checkinService struct {
	store  *store.Store
	client client.Client
	sub    *submitter
	log    logging.Logger
	opts   CheckinOptions
	now    func() time.Time
}

func NewCheckinService(st *store.Store, c client.Client, log logging.Logger, opts CheckinOptions) CheckinService {
	if opts.Archiver == nil {
		opts.Archiver = archive.Nop{}
	}
	s := &checkinService{store: st, client: c, log: log, opts: opts, now: time.Now}
	s.sub = &submitter{client: c, log: log, now: func() time.Time { return s.now() }}
	return s
}

func (s *checkinService) CollectChanges(ctx context.Context) ([]models.Change, error) {
	changes, err := collectChanges(ctx, s.store.Repos())
	if err != nil {
		return nil, storageErr("checkin.collect", err)
	}
	return changes, nil
}

func (s *checkinService) PendingChangesCount(ctx context.Context) (int, error) {
	changes, err := s.CollectChanges(ctx)
	if err != nil {
		return 0, err
	}
	return len(changes), nil
}

func (s *checkinService) PendingChangesSummary(ctx context.Context) (models.PendingSummary, error) {
	sum, err := s.store.Repos().PendingSummary(ctx)
	if err != nil {
		return sum, storageErr("checkin.summary", err)
	}
	return sum, nil
}

func (s *checkinService) Checkin(ctx context.Context, onProgress func(models.CheckinProgress)) (*models.CheckinResult, error) {
	report := func(phase models.CheckinPhase, current int, msg string) {
		if onProgress != nil {
			onProgress(models.CheckinProgress{Phase: phase, Current: current, Total: 100, Message: msg})
		}
	}

	meta, err := s.store.Repos().Checkouts.GetActive(ctx)
	if err != nil {
		return nil, storageErr("checkin", err)
	}
	if meta == nil {
		return nil, common.ErrNoActiveCheckout
	}

	report(models.CheckinCollecting, 0, "Collecting local changes...")
	changes, err := s.CollectChanges(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "checkin started", "checkout_id", meta.CheckoutID, "changes", len(changes))

	report(models.CheckinSyncing, 10, fmt.Sprintf("Syncing %d changes...", len(changes)))
	res := &models.CheckinResult{}
	var failed []models.Change
	if len(changes) > 0 {
		failed, err = s.submit(ctx, meta, changes, res, report)
		if err != nil {
			return nil, err
		}
	}

	report(models.CheckinResolving, 80, "Resolving conflicts...")
	for _, c := range res.Conflicts {
		s.log.Warn(ctx, "sync conflict", "entity", c.Entity, "local_id", c.LocalID, "fields", c.ConflictFields)
	}

	report(models.CheckinCleanup, 90, "Cleaning up local data...")
	if res.FailedCount > 0 && !s.opts.PurgeOnPartialFailure {
		s.log.Warn(ctx, "checkin incomplete, keeping local data", "failed", res.FailedCount)
		return res, common.E(common.KindPartialFailure, "checkin",
			fmt.Errorf("%d of %d changes failed to sync", res.FailedCount, len(changes)))
	}
	if len(failed) > 0 {
		s.archive(ctx, meta, "checkin_partial_failure", failed, res.Errors)
	}
	if err := s.cleanup(ctx, meta.CheckoutID, true); err != nil {
		return res, err
	}
	res.Purged = true

	report(models.CheckinComplete, 100, fmt.Sprintf("Synced %d changes", res.SyncedCount))
	s.log.Info(ctx, "checkin complete", "checkout_id", meta.CheckoutID,
		"synced", res.SyncedCount, "failed", res.FailedCount, "conflicts", len(res.Conflicts))
	return res, nil
}

// submit tries the bulk endpoint and falls back to per-entity requests when
// it is not served. It returns the changes that did not make it.
func (s *checkinService) submit(ctx context.Context, meta *models.CheckoutMetadata, changes []models.Change,
	res *models.CheckinResult, report func(models.CheckinPhase, int, string)) ([]models.Change, error) {
	resp, err := s.client.Checkin(ctx, &client.CheckinRequest{
		CheckoutID: meta.CheckoutID,
		Changes:    changes,
		DeviceID:   meta.DeviceID,
	})
	if err == nil {
		return s.applyBulk(changes, resp, res), nil
	}
	if !client.BulkUnavailable(err) {
		return nil, remoteErr("checkin", err)
	}
	s.log.Warn(ctx, "checkin endpoint unavailable, submitting individually", "error", err)
	return s.submitEach(ctx, changes, res, report)
}

func (s *checkinService) applyBulk(changes []models.Change, resp *client.CheckinResponse, res *models.CheckinResult) []models.Change {
	res.CheckinID = resp.CheckinID
	res.Conflicts = resp.Conflicts
	if len(resp.Results) == 0 {
		res.SyncedCount = len(changes) - len(resp.Conflicts)
		return nil
	}

	byKey := make(map[string]models.Change, len(changes))
	for _, c := range changes {
		byKey[c.Key()] = c
	}
	var failed []models.Change
	for _, r := range resp.Results {
		switch r.Status {
		case "error", "failed":
			res.FailedCount++
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %s", r.Entity, r.LocalID, r.Error))
			if c, ok := byKey[models.ChangeKey(r.Entity, r.LocalID)]; ok {
				failed = append(failed, c)
			}
		case "conflict":
		default:
			res.SyncedCount++
		}
	}
	return failed
}

func (s *checkinService) submitEach(ctx context.Context, changes []models.Change,
	res *models.CheckinResult, report func(models.CheckinPhase, int, string)) ([]models.Change, error) {
	repos := s.store.Repos()
	var failed []models.Change
	for i := range changes {
		ch := &changes[i]
		serverID, err := s.sub.push(ctx, repos, ch)
		switch {
		case err == nil:
			res.SyncedCount++
			if ch.Type == models.OpCreate && serverID != nil {
				if err := s.sub.recordCreated(ctx, repos, ch.Entity, ch.LocalID, *serverID); err != nil {
					return nil, storageErr("checkin", err)
				}
			}
		case errors.Is(err, client.ErrConflict):
			s.log.Warn(ctx, "change rejected as conflict", "entity", ch.Entity, "local_id", ch.LocalID, "error", err)
			res.Conflicts = append(res.Conflicts, models.Conflict{
				Entity:       ch.Entity,
				ID:           derefID(ch.ServerID),
				LocalID:      ch.LocalID,
				LocalVersion: ch.Data,
			})
		default:
			s.log.Warn(ctx, "failed to submit change", "entity", ch.Entity, "local_id", ch.LocalID, "error", err)
			res.FailedCount++
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %s", ch.Entity, ch.LocalID, err))
			failed = append(failed, *ch)
		}
		report(models.CheckinSyncing, 10+(i+1)*70/len(changes), fmt.Sprintf("Synced %d of %d changes", i+1, len(changes)))
	}
	return failed, nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func (s *checkinService) ForceCheckin(ctx context.Context) error {
	repos := s.store.Repos()
	meta, err := repos.Checkouts.GetActive(ctx)
	if err != nil {
		return storageErr("checkin.force", err)
	}
	if meta == nil {
		return common.ErrNoActiveCheckout
	}
	changes, err := s.CollectChanges(ctx)
	if err != nil {
		return err
	}
	if len(changes) > 0 {
		s.archive(ctx, meta, "force_disable", changes, nil)
	}
	if err := s.cleanup(ctx, meta.CheckoutID, false); err != nil {
		return err
	}
	s.log.Info(ctx, "offline data discarded", "checkout_id", meta.CheckoutID, "changes", len(changes))
	return nil
}

func (s *checkinService) cleanup(ctx context.Context, checkoutID string, synced bool) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		if synced {
			if err := r.Checkouts.TouchLastSync(ctx, checkoutID, s.now()); err != nil {
				return err
			}
		}
		if err := r.PurgeWorkingSet(ctx); err != nil {
			return err
		}
		return r.Checkouts.DeactivateAll(ctx)
	})
	if err != nil {
		return storageErr("checkin.cleanup", err)
	}
	return nil
}

// archive is best effort; a failure is logged and the purge goes ahead.
func (s *checkinService) archive(ctx context.Context, meta *models.CheckoutMetadata, reason string, changes []models.Change, errs []string) {
	key, err := s.opts.Archiver.Archive(ctx, &models.ArchivedChangeSet{
		CheckoutID: meta.CheckoutID,
		DeviceID:   meta.DeviceID,
		Reason:     reason,
		CreatedAt:  s.now(),
		Changes:    changes,
		Errors:     errs,
	})
	if err != nil {
		s.log.Warn(ctx, "failed to archive discarded changes", "checkout_id", meta.CheckoutID, "changes", len(changes), "error", err)
		return
	}
	if key != "" {
		s.log.Info(ctx, "archived discarded changes", "key", key, "changes", len(changes))
	}
}
