package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/services"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves the endpoints the engines call.
type fakeAPI struct {
	mu       sync.Mutex
	checkins []client.CheckinRequest
	patches  []string
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == client.PathCheckout:
		now := time.Now().UTC()
		resp := client.CheckoutResponse{CheckoutID: "co-1", CheckedOutAt: now, ExpiresAt: now.Add(time.Hour), RigID: 5}
		for id := int64(1); id <= 3; id++ {
			resp.Records = append(resp.Records, client.CheckoutRecord{
				ID:   id,
				Type: models.EntityDWR,
				Data: json.RawMessage(fmt.Sprintf(`{"id": %d, "subproject": 7, "date": "2025-05-01", "status": "draft"}`, id)),
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && r.URL.Path == client.PathCheckin:
		var req client.CheckinRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		a.checkins = append(a.checkins, req)
		a.mu.Unlock()
		resp := client.CheckinResponse{CheckinID: "ci-1"}
		for _, c := range req.Changes {
			resp.Results = append(resp.Results, models.ChangeResult{Entity: c.Entity, LocalID: c.LocalID, Status: "success"})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPatch:
		a.mu.Lock()
		a.patches = append(a.patches, r.URL.Path)
		a.mu.Unlock()
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		_, _ = fmt.Fprintf(w, `{"id": %s}`, parts[len(parts)-1])
	case r.Method == http.MethodPost:
		_, _ = w.Write([]byte(`{"id": 500}`))
	default:
		_, _ = w.Write([]byte(`[]`))
	}
}

func (a *fakeAPI) Checkins() []client.CheckinRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]client.CheckinRequest(nil), a.checkins...)
}

func (a *fakeAPI) Patches() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.patches...)
}

type harness struct {
	api    *fakeAPI
	store  *store.Store
	editor services.EditorService
	facade *Facade
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	ctx := context.Background()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	st, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	c, err := client.NewHTTPClient(srv.URL)
	require.NoError(t, err)
	log := logging.NewDiscard()

	f := New(
		services.NewCheckoutService(st, c, log, services.CheckoutOptions{}),
		services.NewCheckinService(st, c, log, services.CheckinOptions{PurgeOnPartialFailure: true}),
		services.NewSyncQueueService(st, c, log, services.SyncOptions{}),
		log, opts)
	require.NoError(t, f.Init(ctx, true))
	return &harness{api: api, store: st, editor: services.NewEditorService(st, log, 3), facade: f}
}

func (h *harness) editAll(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	list, err := h.editor.ListDWRs(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), n)
	for i := 0; i < n; i++ {
		d := list[i]
		d.Notes = fmt.Sprintf("edit %d", i)
		require.NoError(t, h.editor.UpdateDWR(ctx, &d))
	}
	require.NoError(t, h.facade.RefreshPendingCount(ctx))
}

func TestFacade_CheckoutEditCheckin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	var events []EventType
	unsubscribe := h.facade.Subscribe(func(e Event) {
		if e.Type != EventCheckoutProgress && e.Type != EventCheckinProgress {
			events = append(events, e.Type)
		}
	})
	defer unsubscribe()

	res, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordCount)

	s := h.facade.State()
	assert.True(t, s.IsOfflineMode)
	assert.False(t, s.IsCheckingOut)
	require.NotNil(t, s.Checkout)
	assert.Equal(t, "co-1", s.Checkout.CheckoutID)
	require.NotNil(t, s.CheckoutProgress)
	assert.Equal(t, 100, s.CheckoutProgress.Current)

	h.editAll(t, 1)
	assert.Equal(t, 1, h.facade.State().PendingSyncCount)

	in, err := h.facade.DisableOfflineMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, in.SyncedCount)

	checkins := h.api.Checkins()
	require.Len(t, checkins, 1)
	require.Len(t, checkins[0].Changes, 1)
	assert.Equal(t, models.OpUpdate, checkins[0].Changes[0].Type)

	s = h.facade.State()
	assert.False(t, s.IsOfflineMode)
	assert.Nil(t, s.Checkout)
	assert.Zero(t, s.PendingSyncCount)
	assert.NotNil(t, s.LastSyncAt)

	n, err := h.store.Repos().DWRs.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []EventType{EventCheckoutStart, EventCheckoutComplete, EventCheckinStart, EventCheckinComplete}, events)
}

func TestFacade_EnableRejectsSecondCheckout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	_, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)

	_, err = h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.ErrorIs(t, err, common.ErrAlreadyCheckedOut)
	assert.Equal(t, "records are already checked out, check in first", h.facade.State().Error)

	n, err := h.store.Repos().Checkouts.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFacade_EnableRequiresNetwork(t *testing.T) {
	h := newHarness(t, Options{})
	h.facade.SetOnline(context.Background(), false)

	_, err := h.facade.EnableOfflineMode(context.Background(), services.CheckoutRequest{RigID: 5})
	require.ErrorIs(t, err, common.ErrOfflineRequired)
	assert.Equal(t, "network connection required", h.facade.State().Error)
}

func TestFacade_DisableRejectedWhileOffline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	_, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)
	h.editAll(t, 3)
	require.Equal(t, 3, h.facade.State().PendingSyncCount)

	h.facade.SetOnline(ctx, false)
	_, err = h.facade.DisableOfflineMode(ctx)
	require.ErrorIs(t, err, common.ErrOfflineRequired)

	meta, err := h.store.Repos().Checkouts.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.True(t, meta.IsActive)
	assert.True(t, h.facade.State().IsOfflineMode)
	assert.Empty(t, h.api.Checkins())
}

func TestFacade_RejectsReentrantOperations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})

	h.facade.checkoutMu.Lock()
	_, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.ErrorIs(t, err, common.ErrOperationInProgress)
	h.facade.checkoutMu.Unlock()

	_, err = h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)

	h.facade.syncMu.Lock()
	_, err = h.facade.SyncNow(ctx)
	require.ErrorIs(t, err, common.ErrOperationInProgress)
	h.facade.syncMu.Unlock()

	h.facade.checkinMu.Lock()
	_, err = h.facade.DisableOfflineMode(ctx)
	require.ErrorIs(t, err, common.ErrOperationInProgress)
	h.facade.checkinMu.Unlock()
}

func TestFacade_SyncNowGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})

	_, err := h.facade.SyncNow(ctx)
	require.ErrorIs(t, err, common.ErrNoActiveCheckout)

	h.facade.SetOnline(ctx, false)
	_, err = h.facade.SyncNow(ctx)
	require.ErrorIs(t, err, common.ErrOfflineRequired)
}

func TestFacade_SyncNowDrainsQueue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	_, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)
	h.editAll(t, 2)

	res, err := h.facade.SyncNow(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedCount)
	assert.Len(t, h.api.Patches(), 2)

	s := h.facade.State()
	assert.Zero(t, s.PendingSyncCount)
	assert.False(t, s.IsSyncing)
	assert.NotNil(t, s.LastSyncAt)
	assert.True(t, s.IsOfflineMode)
}

func TestFacade_AutoSyncOnReconnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{AutoSync: true})
	_, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)

	var network []bool
	h.facade.Subscribe(func(e Event) {
		if e.Type == EventNetworkChange {
			network = append(network, e.Data.(bool))
		}
	})

	h.facade.SetOnline(ctx, false)
	h.editAll(t, 1)
	assert.Empty(t, h.api.Patches())

	h.facade.SetOnline(ctx, true)
	assert.Len(t, h.api.Patches(), 1)
	assert.Zero(t, h.facade.State().PendingSyncCount)

	h.facade.SetOnline(ctx, true)
	assert.Equal(t, []bool{false, true}, network)
}

func TestFacade_ForceDisableIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	require.NoError(t, h.facade.ForceDisableOfflineMode(ctx))

	_, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)
	h.editAll(t, 2)

	require.NoError(t, h.facade.ForceDisableOfflineMode(ctx))
	require.NoError(t, h.facade.ForceDisableOfflineMode(ctx))
	assert.Empty(t, h.api.Checkins())

	s := h.facade.State()
	assert.False(t, s.IsOfflineMode)
	assert.Zero(t, s.PendingSyncCount)

	meta, err := h.store.Repos().Checkouts.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestFacade_InitRestoresActiveCheckout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	_, err := h.facade.EnableOfflineMode(ctx, services.CheckoutRequest{RigID: 5})
	require.NoError(t, err)
	h.editAll(t, 1)

	log := logging.NewDiscard()
	c, err := client.NewHTTPClient("http://127.0.0.1:1")
	require.NoError(t, err)
	f := New(
		services.NewCheckoutService(h.store, c, log, services.CheckoutOptions{}),
		services.NewCheckinService(h.store, c, log, services.CheckinOptions{}),
		services.NewSyncQueueService(h.store, c, log, services.SyncOptions{}),
		log, Options{})
	require.NoError(t, f.Init(ctx, false))

	s := f.State()
	assert.True(t, s.IsOfflineMode)
	assert.False(t, s.IsOnline)
	assert.Equal(t, 1, s.PendingSyncCount)
	require.NotNil(t, s.Checkout)
	assert.Equal(t, "co-1", s.Checkout.CheckoutID)
}
