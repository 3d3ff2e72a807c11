package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/config"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/facade"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/services"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOffline struct {
	state    facade.State
	requests []services.CheckoutRequest
	forced   int
	checkin  func() (*models.CheckinResult, error)
}

func (f *fakeOffline) State() facade.State { return f.state }

func (f *fakeOffline) EnableOfflineMode(_ context.Context, req services.CheckoutRequest) (*models.CheckoutResult, error) {
	f.requests = append(f.requests, req)
	return &models.CheckoutResult{CheckoutID: "co-1", RecordCount: 3}, nil
}

func (f *fakeOffline) DisableOfflineMode(context.Context) (*models.CheckinResult, error) {
	return f.checkin()
}

func (f *fakeOffline) ForceDisableOfflineMode(context.Context) error {
	f.forced++
	return nil
}

func (f *fakeOffline) SyncNow(context.Context) (*models.SyncResult, error) {
	return &models.SyncResult{Success: true, SyncedCount: 2}, nil
}

func (f *fakeOffline) RefreshPendingCount(context.Context) error { return nil }

type fakeAuth struct {
	services.AuthService
	password string
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*services.User, error) {
	if password != f.password {
		return nil, errors.New("login error: invalid credentials")
	}
	return &services.User{Username: username, UserID: 42}, nil
}

type fakeQueue struct {
	services.SyncQueueService
	reset int
}

func (f *fakeQueue) RetryAllFailed(context.Context) (int, error) { return f.reset, nil }

func newTestApp(input string, cfg *config.Config) (*App, *fakeOffline, *bytes.Buffer) {
	off := &fakeOffline{state: facade.State{IsOnline: true}}
	out := &bytes.Buffer{}
	a := &App{
		config:  cfg,
		auth:    &fakeAuth{password: "secret"},
		queue:   &fakeQueue{reset: 2},
		offline: off,
		log:     logging.NewDiscard(),
		reader:  bufio.NewReader(strings.NewReader(input)),
		out:     out,
	}
	return a, off, out
}

func TestApp_GetStatus(t *testing.T) {
	a, off, _ := newTestApp("", nil)
	assert.Equal(t, "(online)", a.getStatus())

	a.user = &services.User{Username: "jdoe"}
	off.state = facade.State{IsOnline: false, IsOfflineMode: true, PendingSyncCount: 3}
	assert.Equal(t, "(jdoe offline checked-out 3)", a.getStatus())
}

func TestApp_Login(t *testing.T) {
	old := getPassword
	t.Cleanup(func() { getPassword = old })
	getPassword = func(io.Writer) (string, error) { return "secret", nil }

	a, _, out := newTestApp("jdoe\n", nil)
	require.NoError(t, a.Login(context.Background()))
	require.True(t, a.isLoggedIn())
	assert.Equal(t, int64(42), a.user.UserID)
	assert.Contains(t, out.String(), "Logged in as jdoe")

	getPassword = func(io.Writer) (string, error) { return "wrong", nil }
	a, _, out = newTestApp("jdoe\n", nil)
	require.Error(t, a.Login(context.Background()))
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "error: login error: invalid credentials")
}

func TestApp_CheckoutRigSources(t *testing.T) {
	ctx := context.Background()

	a, off, _ := newTestApp("", &config.Config{DefaultRigID: 9})
	a.user = &services.User{Username: "jdoe", UserID: 42}
	require.NoError(t, a.Checkout(ctx, []string{"5"}))
	require.NoError(t, a.Checkout(ctx, nil))
	require.Len(t, off.requests, 2)
	assert.Equal(t, services.CheckoutRequest{RigID: 5, UserID: 42, Username: "jdoe"}, off.requests[0])
	assert.Equal(t, int64(9), off.requests[1].RigID)

	a, off, _ = newTestApp("12\n", &config.Config{})
	require.NoError(t, a.Checkout(ctx, nil))
	require.Len(t, off.requests, 1)
	assert.Equal(t, int64(12), off.requests[0].RigID)
}

func TestApp_CheckoutInvalidRig(t *testing.T) {
	a, off, out := newTestApp("", nil)
	require.Error(t, a.Checkout(context.Background(), []string{"rig"}))
	assert.Empty(t, off.requests)
	assert.Contains(t, out.String(), `invalid rig id "rig"`)
}

func TestApp_CheckinReportsOfflineRequired(t *testing.T) {
	a, off, out := newTestApp("", nil)
	off.checkin = func() (*models.CheckinResult, error) { return nil, common.ErrOfflineRequired }

	err := a.Checkin(context.Background())
	require.ErrorIs(t, err, common.ErrOfflineRequired)
	assert.Contains(t, out.String(), "error: network connection required")
}

func TestApp_CheckinPrintsResult(t *testing.T) {
	a, off, out := newTestApp("", nil)
	off.checkin = func() (*models.CheckinResult, error) {
		return &models.CheckinResult{SyncedCount: 4, FailedCount: 1}, nil
	}
	require.NoError(t, a.Checkin(context.Background()))
	assert.Contains(t, out.String(), "Synced: 4, failed: 1, conflicts: 0")
	assert.Contains(t, out.String(), "Offline mode disabled")
}

func TestApp_DiscardNeedsConfirmation(t *testing.T) {
	ctx := context.Background()

	a, off, out := newTestApp("n\n", nil)
	off.state.IsOfflineMode = true
	require.NoError(t, a.Discard(ctx))
	assert.Zero(t, off.forced)
	assert.Contains(t, out.String(), "Cancelled")

	a, off, _ = newTestApp("yes\n", nil)
	off.state.IsOfflineMode = true
	require.NoError(t, a.Discard(ctx))
	assert.Equal(t, 1, off.forced)
}

func TestApp_RetryAll(t *testing.T) {
	a, _, out := newTestApp("", nil)
	require.NoError(t, a.Retry(context.Background(), []string{"all"}))
	assert.Contains(t, out.String(), "2 operations reset")
}

func TestApp_Sync(t *testing.T) {
	a, _, out := newTestApp("", nil)
	require.NoError(t, a.Sync(context.Background()))
	assert.Contains(t, out.String(), "Synced: 2, failed: 0, still pending: 0")
}
