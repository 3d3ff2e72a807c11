package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/store"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/common"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedCheckout checks out one DWR per server id and returns them by id.
func seedCheckout(t *testing.T, st *store.Store, fc *fakeClient, ids ...int64) map[int64]*models.DWR {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	fc.checkout = checkoutOf(now, time.Hour, ids...)
	_, err := newCheckout(st, fc, now).Checkout(ctx, CheckoutRequest{RigID: 5}, nil)
	require.NoError(t, err)

	list, err := st.Repos().DWRs.List(ctx)
	require.NoError(t, err)
	out := map[int64]*models.DWR{}
	for i := range list {
		out[*list[i].ServerID] = &list[i]
	}
	require.Len(t, out, len(ids))
	return out
}

func newEditor(st *store.Store) EditorService {
	return NewEditorService(st, logging.NewDiscard(), 3)
}

func outstanding(t *testing.T, st *store.Store) []models.SyncOperation {
	t.Helper()
	ops, err := st.Repos().Queue.ListOutstanding(context.Background())
	require.NoError(t, err)
	return ops
}

func TestEditor_RequiresActiveCheckout(t *testing.T) {
	_, err := newEditor(newTestStore(t)).CreateDWR(context.Background(), &models.DWR{SubprojectID: 7, Date: "2025-05-01"})
	require.ErrorIs(t, err, common.ErrNoActiveCheckout)
}

func TestEditor_UpdateMarksDirtyAndQueuesUpdate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	dwrs := seedCheckout(t, st, newFakeClient(), 1, 2)
	ed := newEditor(st)

	a, err := ed.GetDWR(ctx, dwrs[1].LocalID)
	require.NoError(t, err)
	a.Notes = "swapped pump"
	require.NoError(t, ed.UpdateDWR(ctx, a))

	got, err := ed.GetDWR(ctx, a.LocalID)
	require.NoError(t, err)
	assert.Equal(t, "swapped pump", got.Notes)
	assert.True(t, got.HasLocalChanges)
	assert.False(t, got.CreatedLocally)
	assert.Equal(t, int64(1), *got.ServerID)

	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpUpdate, ops[0].Type)
	assert.Equal(t, models.EntityDWR, ops[0].Entity)
	assert.Equal(t, int64(1), *ops[0].ServerID)
	var data map[string]any
	require.NoError(t, json.Unmarshal(ops[0].Data, &data))
	assert.Equal(t, "swapped pump", data["notes"])

	b, err := ed.GetDWR(ctx, dwrs[2].LocalID)
	require.NoError(t, err)
	assert.False(t, b.Dirty())
}

func TestEditor_CreateThenUpdateKeepsCreate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCheckout(t, st, newFakeClient(), 1)
	ed := newEditor(st)

	d, err := ed.CreateDWR(ctx, &models.DWR{SubprojectID: 7, Date: "2025-05-02", Notes: "first"})
	require.NoError(t, err)
	assert.NotEmpty(t, d.LocalID)
	assert.True(t, d.CreatedLocally)

	d.Notes = "second"
	require.NoError(t, ed.UpdateDWR(ctx, d))

	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpCreate, ops[0].Type)
	var data map[string]any
	require.NoError(t, json.Unmarshal(ops[0].Data, &data))
	assert.Equal(t, "second", data["notes"])

	got, err := st.Repos().DWRs.Get(ctx, d.LocalID)
	require.NoError(t, err)
	assert.True(t, got.CreatedLocally)
	assert.Equal(t, models.OpCreate, got.Operation())
}

func TestEditor_DeleteLocalOnlyLeavesNothingToSync(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCheckout(t, st, newFakeClient(), 1)
	ed := newEditor(st)

	d, err := ed.CreateDWR(ctx, &models.DWR{SubprojectID: 7, Date: "2025-05-02"})
	require.NoError(t, err)
	_, err = ed.CreateWorkAssignment(ctx, &models.WorkAssignment{DWRLocalID: d.LocalID, Description: "rig up", FromTime: "07:00"})
	require.NoError(t, err)
	c, err := ed.CreateChargeRecord(ctx, &models.ChargeRecord{DWRLocalID: d.LocalID})
	require.NoError(t, err)
	_, err = ed.CreateChargeLine(ctx, &models.ChargeLine{Kind: models.ChargeService, ChargeRecordLocalID: c.LocalID, ItemID: 6})
	require.NoError(t, err)
	require.Len(t, outstanding(t, st), 4)

	require.NoError(t, ed.DeleteDWR(ctx, d.LocalID))

	got, err := st.Repos().DWRs.Get(ctx, d.LocalID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, outstanding(t, st))

	changes, err := collectChanges(ctx, st.Repos())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestEditor_DeleteSyncedRecordLeavesTombstone(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	dwrs := seedCheckout(t, st, newFakeClient(), 1)
	ed := newEditor(st)

	require.NoError(t, ed.DeleteDWR(ctx, dwrs[1].LocalID))

	_, err := ed.GetDWR(ctx, dwrs[1].LocalID)
	require.ErrorIs(t, err, common.ErrNotFound)

	row, err := st.Repos().DWRs.Get(ctx, dwrs[1].LocalID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.DeletedLocally)
	assert.True(t, row.HasLocalChanges)

	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OpDelete, ops[0].Type)
	assert.Equal(t, int64(1), *ops[0].ServerID)

	list, err := ed.ListDWRs(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEditor_ChildrenCarryParentServerID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	dwrs := seedCheckout(t, st, newFakeClient(), 1)
	ed := newEditor(st)

	tr, err := ed.CreateTimeRecord(ctx, &models.TimeRecord{DWRLocalID: dwrs[1].LocalID, EmployeeID: 12})
	require.NoError(t, err)

	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, tr.LocalID, ops[0].LocalID)
	assert.Equal(t, dwrs[1].LocalID, ops[0].ParentLocalID)
	var data map[string]any
	require.NoError(t, json.Unmarshal(ops[0].Data, &data))
	assert.EqualValues(t, 1, data["dwr_id"])

	got, err := ed.GetDWR(ctx, dwrs[1].LocalID)
	require.NoError(t, err)
	require.Len(t, got.TimeRecords, 1)
	assert.Equal(t, int64(12), got.TimeRecords[0].EmployeeID)
}

func TestEditor_ChargeLineLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	dwrs := seedCheckout(t, st, newFakeClient(), 1)
	ed := newEditor(st)

	c, err := ed.CreateChargeRecord(ctx, &models.ChargeRecord{DWRLocalID: dwrs[1].LocalID})
	require.NoError(t, err)
	_, err = ed.CreateChargeRecord(ctx, &models.ChargeRecord{DWRLocalID: dwrs[1].LocalID})
	require.ErrorIs(t, err, common.ErrInvalid)

	l, err := ed.CreateChargeLine(ctx, &models.ChargeLine{Kind: models.ChargeMisc, ChargeRecordLocalID: c.LocalID, ItemName: "Hauling", QuantityUsed: 1})
	require.NoError(t, err)
	l.QuantityUsed = 3
	require.NoError(t, ed.UpdateChargeLine(ctx, l))

	got, err := ed.GetDWR(ctx, dwrs[1].LocalID)
	require.NoError(t, err)
	require.NotNil(t, got.ChargeRecord)
	require.Len(t, got.ChargeRecord.MiscCharges, 1)
	assert.InDelta(t, 3.0, got.ChargeRecord.MiscCharges[0].QuantityUsed, 0.0001)

	require.NoError(t, ed.DeleteChargeLine(ctx, models.ChargeMisc, l.LocalID))
	ops := outstanding(t, st)
	require.Len(t, ops, 1)
	assert.Equal(t, models.EntityChargeRecord, ops[0].Entity)
}

func TestEditor_UnknownRecord(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedCheckout(t, st, newFakeClient(), 1)
	ed := newEditor(st)

	err := ed.UpdateWorkAssignment(ctx, &models.WorkAssignment{LocalID: "missing"})
	require.ErrorIs(t, err, common.ErrNotFound)
	err = ed.DeleteTimeRecord(ctx, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = ed.CreateWorkAssignment(ctx, &models.WorkAssignment{DWRLocalID: "missing"})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestEditor_ReferenceData(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	fc := newFakeClient()
	fc.lists["/api/employees/employees/"] = []json.RawMessage{json.RawMessage(`{"id": 12}`)}
	seedCheckout(t, st, fc, 1)

	v, err := newEditor(st).ReferenceData(ctx, models.RefEmployees)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 12}]`, string(v))

	v, err = newEditor(st).ReferenceData(ctx, "offline:ref:unknown")
	require.NoError(t, err)
	assert.Nil(t, v)
}
