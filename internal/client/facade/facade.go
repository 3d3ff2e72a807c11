// Package facade is the single entry point the application uses to enter,
// leave and sync offline mode. It keeps a state snapshot for display and
// allows at most one checkout, one checkin and one sync pass in flight.
package facade

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/services"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
)

// DisplayErrorLimit caps State.SyncErrors.
const DisplayErrorLimit = 3

// State is a snapshot; the facade never hands out its own copy.
type State struct {
	IsOfflineMode    bool
	IsOnline         bool
	IsCheckingOut    bool
	IsCheckingIn     bool
	IsSyncing        bool
	Checkout         *models.CheckoutMetadata
	// PendingSyncCount counts queued operations not yet synced.
	PendingSyncCount int
	LastSyncAt       *time.Time

	CheckoutProgress *models.CheckoutProgress
	CheckinProgress  *models.CheckinProgress
	SyncProgress     *models.SyncProgress

	// Error is the last enable/disable failure as one line.
	Error      string
	SyncErrors []string
}

type Options struct {
	// AutoSync drains the queue when connectivity returns.
	AutoSync bool
}

type Facade struct {
	checkout services.CheckoutService
	checkin  services.CheckinService
	queue    services.SyncQueueService
	log      logging.Logger
	opts     Options
	now      func() time.Time

	// One slot per operation class; TryLock rejects re-entrant calls.
	checkoutMu sync.Mutex
	checkinMu  sync.Mutex
	syncMu     sync.Mutex

	mu    sync.RWMutex
	state State

	events bus
}

func New(checkout services.CheckoutService, checkin services.CheckinService, queue services.SyncQueueService,
	log logging.Logger, opts Options) *Facade {
	return &Facade{checkout: checkout, checkin: checkin, queue: queue, log: log, opts: opts, now: time.Now}
}

// Init loads the persisted checkout, if any, into the state.
func (f *Facade) Init(ctx context.Context, online bool) error {
	meta, err := f.checkout.CheckoutInfo(ctx)
	if err != nil {
		return err
	}
	f.update(func(s *State) {
		s.IsOnline = online
		s.Checkout = meta
		s.IsOfflineMode = meta != nil
		if meta != nil {
			s.LastSyncAt = meta.LastSyncAt
		}
	})
	return f.RefreshPendingCount(ctx)
}

func (f *Facade) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := f.state
	if s.Checkout != nil {
		m := *s.Checkout
		s.Checkout = &m
	}
	s.SyncErrors = append([]string(nil), s.SyncErrors...)
	return s
}

// Subscribe registers fn for every event and returns a function that
// removes it.
func (f *Facade) Subscribe(fn func(Event)) func() {
	return f.events.subscribe(fn)
}

func (f *Facade) update(fn func(s *State)) {
	f.mu.Lock()
	fn(&f.state)
	f.mu.Unlock()
}

// EnableOfflineMode checks out the rig's working set.
func (f *Facade) EnableOfflineMode(ctx context.Context, req services.CheckoutRequest) (*models.CheckoutResult, error) {
	s := f.State()
	switch {
	case s.IsOfflineMode:
		return nil, f.fail(common.ErrAlreadyCheckedOut, "Failed to enable offline mode")
	case !s.IsOnline:
		return nil, f.fail(common.ErrOfflineRequired, "Failed to enable offline mode")
	}
	if !f.checkoutMu.TryLock() {
		return nil, common.ErrOperationInProgress
	}
	defer f.checkoutMu.Unlock()

	f.update(func(s *State) {
		s.IsCheckingOut = true
		s.Error = ""
		s.CheckoutProgress = nil
	})
	defer f.update(func(s *State) { s.IsCheckingOut = false })
	f.events.emit(EventCheckoutStart, req)

	res, err := f.checkout.Checkout(ctx, req, func(p models.CheckoutProgress) {
		f.update(func(s *State) { s.CheckoutProgress = &p })
		f.events.emit(EventCheckoutProgress, p)
	})
	if err != nil {
		f.log.Error(ctx, "checkout failed", "rig_id", req.RigID, "error", err)
		f.events.emit(EventCheckoutError, err)
		return nil, f.fail(err, "Failed to enable offline mode")
	}

	meta, err := f.checkout.CheckoutInfo(ctx)
	if err != nil {
		return nil, f.fail(err, "Failed to enable offline mode")
	}
	f.update(func(s *State) {
		s.IsOfflineMode = true
		s.Checkout = meta
		s.PendingSyncCount = 0
		s.SyncErrors = nil
	})
	f.events.emit(EventCheckoutComplete, res)
	return res, nil
}

// DisableOfflineMode checks everything in and leaves offline mode.
func (f *Facade) DisableOfflineMode(ctx context.Context) (*models.CheckinResult, error) {
	s := f.State()
	switch {
	case !s.IsOfflineMode:
		return nil, f.fail(common.ErrNoActiveCheckout, "Failed to disable offline mode")
	case !s.IsOnline:
		return nil, f.fail(common.ErrOfflineRequired, "Failed to disable offline mode")
	}
	if !f.checkinMu.TryLock() {
		return nil, common.ErrOperationInProgress
	}
	defer f.checkinMu.Unlock()
	// A sync pass pushing the same changes must not overlap a checkin.
	if !f.syncMu.TryLock() {
		return nil, common.ErrOperationInProgress
	}
	defer f.syncMu.Unlock()

	f.update(func(s *State) {
		s.IsCheckingIn = true
		s.Error = ""
		s.CheckinProgress = nil
	})
	defer f.update(func(s *State) { s.IsCheckingIn = false })
	f.events.emit(EventCheckinStart, nil)

	res, err := f.checkin.Checkin(ctx, func(p models.CheckinProgress) {
		f.update(func(s *State) { s.CheckinProgress = &p })
		f.events.emit(EventCheckinProgress, p)
	})
	if res != nil && len(res.Conflicts) > 0 {
		f.events.emit(EventConflictDetected, res.Conflicts)
	}
	if err != nil {
		f.log.Error(ctx, "checkin failed", "error", err)
		f.events.emit(EventCheckinError, err)
		if res != nil {
			f.update(func(s *State) { s.SyncErrors = common.DisplayErrors(res.Errors, DisplayErrorLimit) })
		}
		_ = f.RefreshPendingCount(ctx)
		return res, f.fail(err, "Failed to disable offline mode")
	}

	now := f.now()
	f.update(func(s *State) {
		s.IsOfflineMode = false
		s.Checkout = nil
		s.PendingSyncCount = 0
		s.LastSyncAt = &now
		s.SyncErrors = common.DisplayErrors(res.Errors, DisplayErrorLimit)
	})
	f.events.emit(EventCheckinComplete, res)
	return res, nil
}

// ForceDisableOfflineMode discards the working set without syncing. It is a
// no-op when offline mode is not enabled.
func (f *Facade) ForceDisableOfflineMode(ctx context.Context) error {
	if !f.State().IsOfflineMode {
		return nil
	}
	if !f.checkinMu.TryLock() {
		return common.ErrOperationInProgress
	}
	defer f.checkinMu.Unlock()
	if !f.syncMu.TryLock() {
		return common.ErrOperationInProgress
	}
	defer f.syncMu.Unlock()

	if err := f.checkin.ForceCheckin(ctx); err != nil && !errors.Is(err, common.ErrNoActiveCheckout) {
		return f.fail(err, "Failed to discard offline data")
	}
	f.update(func(s *State) {
		s.IsOfflineMode = false
		s.Checkout = nil
		s.PendingSyncCount = 0
		s.SyncErrors = nil
		s.Error = ""
	})
	f.log.Warn(ctx, "offline mode force-disabled")
	return nil
}

// SyncNow drains the sync queue once.
func (f *Facade) SyncNow(ctx context.Context) (*models.SyncResult, error) {
	s := f.State()
	switch {
	case !s.IsOnline:
		return nil, common.ErrOfflineRequired
	case !s.IsOfflineMode:
		return nil, common.ErrNoActiveCheckout
	}
	if !f.syncMu.TryLock() {
		return nil, common.ErrOperationInProgress
	}
	defer f.syncMu.Unlock()
	return f.sync(ctx)
}

func (f *Facade) sync(ctx context.Context) (*models.SyncResult, error) {
	f.update(func(s *State) {
		s.IsSyncing = true
		s.SyncProgress = nil
	})
	defer f.update(func(s *State) { s.IsSyncing = false })
	f.events.emit(EventSyncStart, nil)

	res, err := f.queue.ProcessAll(ctx, func(p models.SyncProgress) {
		f.update(func(s *State) { s.SyncProgress = &p })
		f.events.emit(EventSyncProgress, p)
	})
	if err != nil {
		f.log.Error(ctx, "sync failed", "error", err)
		f.update(func(s *State) { s.SyncErrors = []string{common.Message(err, "Sync failed")} })
		f.events.emit(EventSyncError, err)
		return nil, err
	}

	now := f.now()
	f.update(func(s *State) {
		s.PendingSyncCount = res.PendingCount
		s.SyncErrors = common.DisplayErrors(res.Errors, DisplayErrorLimit)
		if res.SyncedCount > 0 {
			s.LastSyncAt = &now
		}
	})
	f.events.emit(EventSyncComplete, res)
	return res, nil
}

// SetOnline records a connectivity change. Coming back online with pending
// changes triggers a sync pass when AutoSync is set; a pass already in
// flight is left alone.
func (f *Facade) SetOnline(ctx context.Context, online bool) {
	var was bool
	f.update(func(s *State) {
		was = s.IsOnline
		s.IsOnline = online
	})
	if was == online {
		return
	}
	f.log.Info(ctx, "connectivity changed", "online", online)
	f.events.emit(EventNetworkChange, online)

	if !online || !f.opts.AutoSync {
		return
	}
	s := f.State()
	if !s.IsOfflineMode || s.PendingSyncCount == 0 {
		return
	}
	if !f.syncMu.TryLock() {
		return
	}
	defer f.syncMu.Unlock()
	if _, err := f.sync(ctx); err != nil {
		f.log.Warn(ctx, "automatic sync failed", "error", err)
	}
}

// RefreshPendingCount recounts outstanding sync operations, e.g. after an
// edit.
func (f *Facade) RefreshPendingCount(ctx context.Context) error {
	n, err := f.queue.PendingCount(ctx)
	if err != nil {
		return err
	}
	f.update(func(s *State) { s.PendingSyncCount = n })
	return nil
}

func (f *Facade) ClearError() {
	f.update(func(s *State) {
		s.Error = ""
		s.SyncErrors = nil
	})
}

// fail records err as the display error and returns it.
func (f *Facade) fail(err error, fallback string) error {
	msg := common.Message(err, fallback)
	f.update(func(s *State) { s.Error = msg })
	return err
}
