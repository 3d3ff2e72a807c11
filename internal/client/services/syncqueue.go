package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

// SyncQueueService drains the sync operation log against the REST API.
//
// Contract:
//   - Enqueue: fold an operation into the log using the dedup rules.
//   - ProcessAll: push pending and retryable failed operations oldest first.
//   - Retry: reset one failed or conflicted operation and push it now.
//   - Cancel: drop one operation.
//
// ProcessAll and Retry run one at a time. Operations a previous pass left
// syncing go back to pending when the next one starts.
type SyncQueueService interface {
	Enqueue(ctx context.Context, op *models.SyncOperation) (*models.SyncOperation, error)
	ProcessAll(ctx context.Context, onProgress func(models.SyncProgress)) (*models.SyncResult, error)
	Retry(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	RetryAllFailed(ctx context.Context) (int, error)
	ClearCompleted(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
	Status(ctx context.Context) (models.QueueStatus, error)
	// FailedOperations lists operations that used up their retries.
	FailedOperations(ctx context.Context) ([]models.SyncOperation, error)
	// PendingCount counts pending, syncing and failed operations.
	PendingCount(ctx context.Context) (int, error)
}

type SyncOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
}

type syncQueueService struct {
	store *store.Store
	sub   *submitter
	log   logging.Logger
	opts  SyncOptions
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	drainMu sync.Mutex
}

func NewSyncQueueService(st *store.Store, c client.Client, log logging.Logger, opts SyncOptions) SyncQueueService {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = models.DefaultMaxRetries
	}
	s := &syncQueueService{store: st, log: log, opts: opts, now: time.Now, sleep: sleepCtx}
	s.sub = &submitter{client: c, log: log, now: func() time.Time { return s.now() }}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *syncQueueService) Enqueue(ctx context.Context, op *models.SyncOperation) (*models.SyncOperation, error) {
	if !op.Entity.Valid() {
		return nil, common.Errorf(common.KindInvalid, "syncqueue.enqueue", "unknown entity %q", op.Entity)
	}
	if op.MaxRetries <= 0 {
		op.MaxRetries = s.opts.MaxRetries
	}
	res, err := s.store.Repos().Queue.Enqueue(ctx, op)
	if err != nil {
		return nil, storageErr("syncqueue.enqueue", err)
	}
	return res, nil
}

func (s *syncQueueService) ProcessAll(ctx context.Context, onProgress func(models.SyncProgress)) (*models.SyncResult, error) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	repos := s.store.Repos()
	if err := s.recoverInterrupted(ctx, repos); err != nil {
		return nil, storageErr("syncqueue.process", err)
	}
	ops, err := repos.Queue.ListDrainable(ctx)
	if err != nil {
		return nil, storageErr("syncqueue.process", err)
	}

	res := &models.SyncResult{Success: true}
	progress := models.SyncProgress{Total: len(ops)}
	report := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}

	for i := range ops {
		op := &ops[i]
		progress.Current = op.Describe()
		report()

		if err := repos.Queue.MarkSyncing(ctx, op.ID); err != nil {
			return nil, storageErr("syncqueue.process", err)
		}

		backoff, pushErr, err := s.attempt(ctx, repos, op, res)
		if err != nil {
			return nil, storageErr("syncqueue.process", err)
		}
		if pushErr == nil {
			progress.Completed++
		} else {
			progress.Failed++
		}

		if backoff && i < len(ops)-1 {
			delay := s.opts.BaseDelay * time.Duration(1<<op.RetryCount)
			s.log.Debug(ctx, "backing off", "operation_id", op.ID, "delay", delay)
			if err := s.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	progress.Current = ""
	report()

	res.Success = res.FailedCount == 0
	n, err := s.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	res.PendingCount = n
	s.log.Info(ctx, "sync pass complete", "synced", res.SyncedCount, "failed", res.FailedCount, "pending", n)
	return res, nil
}

func (s *syncQueueService) recoverInterrupted(ctx context.Context, repos *store.Repositories) error {
	n, err := repos.Queue.ResetSyncing(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Warn(ctx, "requeued interrupted operations", "count", n)
	}
	return nil
}

// attempt pushes one operation and records the outcome. retryable reports
// a failure the drain should back off after; pushErr is the remote failure,
// err a storage failure. Only failures that will not be retried count
// against res.
func (s *syncQueueService) attempt(ctx context.Context, repos *store.Repositories, op *models.SyncOperation,
	res *models.SyncResult) (retryable bool, pushErr error, err error) {
	ch := models.ChangeFromOperation(op)
	serverID, pushErr := s.sub.push(ctx, repos, &ch)
	if pushErr == nil {
		applied, err := repos.Queue.MarkSuccess(ctx, op.ID, serverID, s.now())
		if err != nil {
			return false, nil, err
		}
		if !applied {
			s.log.Debug(ctx, "operation changed while syncing", "entity", op.Entity, "local_id", op.LocalID)
		}
		if op.Type == models.OpCreate && serverID != nil {
			if err := s.sub.recordCreated(ctx, repos, op.Entity, op.LocalID, *serverID); err != nil {
				return false, nil, err
			}
		}
		res.SyncedCount++
		return false, nil, nil
	}

	msg := pushErr.Error()
	if errors.Is(pushErr, client.ErrConflict) {
		applied, err := repos.Queue.MarkConflict(ctx, op.ID, msg)
		if err != nil {
			return false, nil, err
		}
		pushErr = common.E(common.KindSyncConflict, "syncqueue", pushErr)
		if !applied {
			return false, pushErr, nil
		}
		s.log.Warn(ctx, "sync conflict", "entity", op.Entity, "local_id", op.LocalID, "error", msg)
		res.FailedCount++
		res.Errors = append(res.Errors, fmt.Sprintf("%s %s: conflict", op.Entity, op.LocalID))
		return false, pushErr, nil
	}

	applied, err := repos.Queue.MarkFailed(ctx, op.ID, msg)
	if err != nil {
		return false, nil, err
	}
	pushErr = common.E(common.KindNetworkFailure, "syncqueue", pushErr)
	if !applied {
		// Newer data replaced the operation; it goes out on the next pass.
		return false, pushErr, nil
	}
	if op.RetryCount+1 >= op.MaxRetries {
		s.log.Warn(ctx, "sync operation failed permanently", "entity", op.Entity, "local_id", op.LocalID, "error", msg)
		res.FailedCount++
		res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %s", op.Entity, op.LocalID, msg))
		return false, pushErr, nil
	}
	s.log.Warn(ctx, "sync operation failed", "entity", op.Entity, "local_id", op.LocalID,
		"retry", op.RetryCount+1, "error", msg)
	return true, pushErr, nil
}

func (s *syncQueueService) Retry(ctx context.Context, id string) error {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	repos := s.store.Repos()
	op, err := repos.Queue.Get(ctx, id)
	if err != nil {
		return storageErr("syncqueue.retry", err)
	}
	if op == nil {
		return common.Errorf(common.KindNotFound, "syncqueue.retry", "operation %s not found", id)
	}
	// Nothing is draining while drainMu is held, so a syncing operation was
	// interrupted.
	switch op.Status {
	case models.OpStatusFailed, models.OpStatusConflict, models.OpStatusSyncing:
	default:
		return common.Errorf(common.KindInvalid, "syncqueue.retry", "operation %s is %s, not failed", id, op.Status)
	}
	if err := repos.Queue.ResetForRetry(ctx, id); err != nil {
		return storageErr("syncqueue.retry", err)
	}
	op.RetryCount = 0
	if err := repos.Queue.MarkSyncing(ctx, id); err != nil {
		return storageErr("syncqueue.retry", err)
	}

	var res models.SyncResult
	_, pushErr, err := s.attempt(ctx, repos, op, &res)
	if err != nil {
		return storageErr("syncqueue.retry", err)
	}
	return pushErr
}

func (s *syncQueueService) Cancel(ctx context.Context, id string) error {
	repos := s.store.Repos()
	op, err := repos.Queue.Get(ctx, id)
	if err != nil {
		return storageErr("syncqueue.cancel", err)
	}
	if op == nil {
		return common.Errorf(common.KindNotFound, "syncqueue.cancel", "operation %s not found", id)
	}
	if err := repos.Queue.Remove(ctx, id); err != nil {
		return storageErr("syncqueue.cancel", err)
	}
	return nil
}

func (s *syncQueueService) RetryAllFailed(ctx context.Context) (int, error) {
	n, err := s.store.Repos().Queue.ResetAllFailed(ctx)
	if err != nil {
		return 0, storageErr("syncqueue.retry_all", err)
	}
	return n, nil
}

func (s *syncQueueService) ClearCompleted(ctx context.Context) (int, error) {
	n, err := s.store.Repos().Queue.ClearCompleted(ctx)
	if err != nil {
		return 0, storageErr("syncqueue.clear_completed", err)
	}
	return n, nil
}

func (s *syncQueueService) ClearAll(ctx context.Context) error {
	if err := s.store.Repos().Queue.ClearAll(ctx); err != nil {
		return storageErr("syncqueue.clear", err)
	}
	return nil
}

func (s *syncQueueService) Status(ctx context.Context) (models.QueueStatus, error) {
	st, err := s.store.Repos().Queue.Status(ctx)
	if err != nil {
		return st, storageErr("syncqueue.status", err)
	}
	return st, nil
}

func (s *syncQueueService) FailedOperations(ctx context.Context) ([]models.SyncOperation, error) {
	ops, err := s.store.Repos().Queue.ListByStatus(ctx, models.OpStatusFailed)
	if err != nil {
		return nil, storageErr("syncqueue.failed", err)
	}
	out := ops[:0]
	for _, op := range ops {
		if op.Exhausted() {
			out = append(out, op)
		}
	}
	return out, nil
}

func (s *syncQueueService) PendingCount(ctx context.Context) (int, error) {
	ops, err := s.store.Repos().Queue.ListOutstanding(ctx)
	if err != nil {
		return 0, storageErr("syncqueue.pending", err)
	}
	return len(ops), nil
}
