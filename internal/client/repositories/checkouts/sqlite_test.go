package checkouts

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/migrations"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func sample(id string) *models.CheckoutMetadata {
	now := time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)
	return &models.CheckoutMetadata{
		CheckoutID:   id,
		RigID:        5,
		RigName:      "Rig 5",
		UserID:       9,
		Username:     "crew",
		DeviceID:     "dev-1",
		CheckedOutAt: now,
		ExpiresAt:    now.Add(24 * time.Hour),
		IsActive:     true,
		RecordCount:  2,
	}
}

func TestInsertAndGetActive(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	m := sample("co-1")
	require.NoError(t, r.Insert(ctx, m))
	assert.NotZero(t, m.ID)

	got, err := r.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "co-1", got.CheckoutID)
	assert.Equal(t, "Rig 5", got.RigName)
	assert.True(t, got.IsActive)
	assert.Equal(t, m.ExpiresAt, got.ExpiresAt)
	assert.Nil(t, got.LastSyncAt)
}

func TestGetActive_NoneReturnsNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	got, err := r.GetActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeactivateAll_KeepsRow(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("co-1")))
	require.NoError(t, r.DeactivateAll(ctx))

	n, err := r.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := r.GetByCheckoutID(ctx, "co-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
}

func TestTouchLastSyncAndRecordCount(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, sample("co-1")))

	at := time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, r.TouchLastSync(ctx, "co-1", at))
	require.NoError(t, r.SetRecordCount(ctx, "co-1", 7))

	got, err := r.GetByCheckoutID(ctx, "co-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncAt)
	assert.Equal(t, at, *got.LastSyncAt)
	assert.Equal(t, 7, got.RecordCount)
}

func TestInsert_DuplicateCheckoutIDFails(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("co-1")))
	err := r.Insert(ctx, sample("co-1"))
	require.ErrorContains(t, err, "failed to insert checkout[co-1]")
}

func TestInsert_SecondActiveCheckoutFails(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("co-1")))
	err := r.Insert(ctx, sample("co-2"))
	require.ErrorContains(t, err, "failed to insert checkout[co-2]")

	require.NoError(t, r.DeactivateAll(ctx))
	require.NoError(t, r.Insert(ctx, sample("co-2")))
	n, err := r.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteAll(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, sample("co-1")))
	require.NoError(t, r.DeleteAll(ctx))

	got, err := r.GetByCheckoutID(ctx, "co-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDelete_OnlyNamedCheckout(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	old := sample("co-1")
	old.IsActive = false
	require.NoError(t, r.Insert(ctx, old))
	require.NoError(t, r.Insert(ctx, sample("co-2")))

	require.NoError(t, r.Delete(ctx, "co-2"))

	got, err := r.GetByCheckoutID(ctx, "co-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	active, err := r.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)
}
