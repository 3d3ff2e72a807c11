package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/client"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncQueue(st *store.Store, fc *fakeClient) (*syncQueueService, *[]time.Duration) {
	s := NewSyncQueueService(st, fc, logging.NewDiscard(), SyncOptions{MaxRetries: 3, BaseDelay: time.Second}).(*syncQueueService)
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func failingUpdates(string, int64, any) (json.RawMessage, error) {
	return nil, &client.HTTPError{Status: 503, Body: "maintenance"}
}

func TestProcessAll_PushesParentsFirstAndWritesBackServerIDs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	seedCheckout(t, st, fc, 1)
	ed := newEditor(st)
	d, err := ed.CreateDWR(ctx, &models.DWR{SubprojectID: 7, Date: "2025-05-02"})
	require.NoError(t, err)
	w, err := ed.CreateWorkAssignment(ctx, &models.WorkAssignment{DWRLocalID: d.LocalID, Description: "rig up", FromTime: "07:00"})
	require.NoError(t, err)

	sq, slept := newSyncQueue(st, fc)
	var progress []models.SyncProgress
	res, err := sq.ProcessAll(ctx, func(p models.SyncProgress) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedCount)
	assert.Zero(t, res.PendingCount)
	assert.Empty(t, *slept)

	require.Len(t, fc.bodies, 2)
	assert.Nil(t, fc.bodies[0]["dwr_id"])
	assert.EqualValues(t, 1001, fc.bodies[1]["dwr_id"])

	repos := st.Repos()
	got, err := repos.DWRs.Get(ctx, d.LocalID)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), *got.ServerID)
	assert.False(t, got.CreatedLocally)
	assert.True(t, got.HasLocalChanges)
	assert.NotNil(t, got.LastSyncedAt)

	gotW, err := repos.Assignments.Get(ctx, w.LocalID)
	require.NoError(t, err)
	assert.Equal(t, int64(1002), *gotW.ServerID)

	status, err := sq.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Success)

	last := progress[len(progress)-1]
	assert.Equal(t, models.SyncProgress{Total: 2, Completed: 2}, last)

	// The rows stay dirty, so checkin pushes updates rather than second creates.
	changes, err := collectChanges(ctx, repos)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, models.OpUpdate, c.Type)
		assert.NotNil(t, c.ServerID)
	}
}

func TestProcessAll_RetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1, 2)
	editNotes(t, st, dwrs[1], "a")
	editNotes(t, st, dwrs[2], "b")
	fc.update = failingUpdates
	sq, slept := newSyncQueue(st, fc)

	for pass := 1; pass <= 3; pass++ {
		res, err := sq.ProcessAll(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, res.PendingCount)
		if pass < 3 {
			// Failures with retries left do not fail the pass.
			assert.True(t, res.Success)
			assert.Zero(t, res.FailedCount)
			assert.Empty(t, res.Errors)
		} else {
			assert.False(t, res.Success)
			assert.Equal(t, 2, res.FailedCount)
			assert.Len(t, res.Errors, 2)
		}
	}
	// One backoff per pass, after the first operation; none after the last.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, (*slept)[:2])
	assert.Len(t, *slept, 2)

	failed, err := sq.FailedOperations(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, 3, failed[0].RetryCount)

	patches := 0
	for _, c := range fc.Calls() {
		if c == "PATCH "+client.ResourceDWRs+"1/" {
			patches++
		}
	}
	assert.Equal(t, 3, patches)

	res, err := sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.SyncedCount)
	assert.Equal(t, 2, res.PendingCount)
}

func TestProcessAll_ConflictIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1)
	editNotes(t, st, dwrs[1], "a")
	fc.update = func(string, int64, any) (json.RawMessage, error) {
		return nil, &client.HTTPError{Status: 409, Body: "stale"}
	}
	sq, slept := newSyncQueue(st, fc)

	res, err := sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, *slept)

	status, err := sq.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Conflict)

	res, err = sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, res.FailedCount)
}

func TestProcessAll_EditDuringPushIsKept(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1)
	editNotes(t, st, dwrs[1], "a")
	var sent []any
	fc.update = func(resource string, id int64, body any) (json.RawMessage, error) {
		sent = append(sent, body.(map[string]any)["notes"])
		if len(sent) == 1 {
			editNotes(t, st, dwrs[1], "b")
		}
		return json.RawMessage(`{"id": 1}`), nil
	}
	sq, _ := newSyncQueue(st, fc)

	res, err := sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Equal(t, 1, res.PendingCount)

	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpStatusPending, ops[0].Status)
	assert.Contains(t, string(ops[0].Data), `"b"`)

	res, err = sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Zero(t, res.PendingCount)
	assert.Equal(t, []any{"a", "b"}, sent)
}

func TestProcessAll_EditDuringCreateBecomesUpdate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	seedCheckout(t, st, fc, 1)
	ed := newEditor(st)
	d, err := ed.CreateDWR(ctx, &models.DWR{SubprojectID: 7, Date: "2025-05-02", Notes: "a"})
	require.NoError(t, err)
	fc.create = func(resource string, body any) (json.RawMessage, error) {
		editNotes(t, st, d, "b")
		return json.RawMessage(`{"id": 77}`), nil
	}
	sq, _ := newSyncQueue(st, fc)

	res, err := sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PendingCount)

	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpUpdate, ops[0].Type)
	require.NotNil(t, ops[0].ServerID)
	assert.Equal(t, int64(77), *ops[0].ServerID)

	_, err = sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	calls := fc.Calls()
	assert.Equal(t, "PATCH "+client.ResourceDWRs+"77/", calls[len(calls)-1])
	posts := 0
	for _, c := range calls {
		if c == "POST "+client.ResourceDWRs {
			posts++
		}
	}
	assert.Equal(t, 1, posts)
}

func TestProcessAll_FailureAfterEditStaysPending(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1)
	editNotes(t, st, dwrs[1], "a")
	fc.update = func(string, int64, any) (json.RawMessage, error) {
		fc.update = nil
		editNotes(t, st, dwrs[1], "b")
		return nil, &client.HTTPError{Status: 503, Body: "maintenance"}
	}
	sq, slept := newSyncQueue(st, fc)

	res, err := sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, *slept)

	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpStatusPending, ops[0].Status)
	assert.Zero(t, ops[0].RetryCount)
}

func TestProcessAll_RecoversInterruptedOperation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1)
	editNotes(t, st, dwrs[1], "a")
	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	require.NoError(t, st.Repos().Queue.MarkSyncing(ctx, ops[0].ID))
	sq, _ := newSyncQueue(st, fc)

	res, err := sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SyncedCount)
	assert.Zero(t, res.PendingCount)
	assert.Contains(t, fc.Calls(), "PATCH "+client.ResourceDWRs+"1/")
}

func TestRetry_AcceptsInterruptedOperation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1)
	editNotes(t, st, dwrs[1], "a")
	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	require.NoError(t, st.Repos().Queue.MarkSyncing(ctx, ops[0].ID))
	sq, _ := newSyncQueue(st, fc)

	require.NoError(t, sq.Retry(ctx, ops[0].ID))
	op, err := st.Repos().Queue.Get(ctx, ops[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpStatusSuccess, op.Status)
}

func TestRetry_ResetsAndPushesNow(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1)
	editNotes(t, st, dwrs[1], "a")
	fc.update = failingUpdates
	sq, _ := newSyncQueue(st, fc)
	for i := 0; i < 3; i++ {
		_, err := sq.ProcessAll(ctx, nil)
		require.NoError(t, err)
	}
	failed, err := sq.FailedOperations(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	err = sq.Retry(ctx, failed[0].ID)
	require.ErrorIs(t, err, common.ErrNetworkFailure)

	fc.update = nil
	require.NoError(t, sq.Retry(ctx, failed[0].ID))
	op, err := st.Repos().Queue.Get(ctx, failed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpStatusSuccess, op.Status)
	assert.NotNil(t, op.SyncedAt)

	err = sq.Retry(ctx, failed[0].ID)
	require.ErrorIs(t, err, common.ErrInvalid)
	err = sq.Retry(ctx, "nope")
	require.ErrorIs(t, err, common.ErrNotFound)

	n, err := sq.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRetryAllFailed_OnlyResets(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	dwrs := seedCheckout(t, st, fc, 1)
	editNotes(t, st, dwrs[1], "a")
	fc.update = failingUpdates
	sq, _ := newSyncQueue(st, fc)
	_, err := sq.ProcessAll(ctx, nil)
	require.NoError(t, err)
	before := len(fc.Calls())

	n, err := sq.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, fc.Calls(), before)

	status, err := sq.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Pending)
}

func TestEnqueue_DedupRules(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sq, _ := newSyncQueue(st, newFakeClient())

	op, err := sq.Enqueue(ctx, &models.SyncOperation{Type: models.OpCreate, Entity: models.EntityDWR, LocalID: "d1", Data: json.RawMessage(`{"notes": "a"}`)})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMaxRetries, op.MaxRetries)

	op, err = sq.Enqueue(ctx, &models.SyncOperation{Type: models.OpUpdate, Entity: models.EntityDWR, LocalID: "d1", Data: json.RawMessage(`{"notes": "b"}`)})
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, op.Type)
	assert.JSONEq(t, `{"notes": "b"}`, string(op.Data))

	op, err = sq.Enqueue(ctx, &models.SyncOperation{Type: models.OpDelete, Entity: models.EntityDWR, LocalID: "d1"})
	require.NoError(t, err)
	assert.Nil(t, op)

	n, err := sq.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = sq.Enqueue(ctx, &models.SyncOperation{Type: models.OpUpdate, Entity: "widget", LocalID: "x"})
	require.ErrorIs(t, err, common.ErrInvalid)
}

func TestCancelAndClearAll(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sq, _ := newSyncQueue(st, newFakeClient())
	sid := int64(9)
	a, err := sq.Enqueue(ctx, &models.SyncOperation{Type: models.OpUpdate, Entity: models.EntityDWR, LocalID: "d1", ServerID: &sid})
	require.NoError(t, err)
	_, err = sq.Enqueue(ctx, &models.SyncOperation{Type: models.OpUpdate, Entity: models.EntityDWR, LocalID: "d2", ServerID: &sid})
	require.NoError(t, err)

	require.NoError(t, sq.Cancel(ctx, a.ID))
	require.ErrorIs(t, sq.Cancel(ctx, a.ID), common.ErrNotFound)

	status, err := sq.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Total)

	require.NoError(t, sq.ClearAll(ctx))
	n, err := sq.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
