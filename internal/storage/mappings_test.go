package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/model"
)

func TestWriteMappingLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first := &model.MappingRecord{
		TenantID:     "t1",
		CanonicalKey: "key-1",
		PriceEntryID: "price-1",
		Actor:        model.ActorAuto,
		CreatedBy:    "engine",
		Reason:       "auto-accepted",
	}
	require.NoError(t, store.WriteMapping(ctx, first))
	assert.NotEmpty(t, first.ID, "id is assigned on write")
	assert.False(t, first.StartTS.IsZero())

	active, err := store.LookupMapping(ctx, "t1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "price-1", active.PriceEntryID)
	assert.True(t, active.Active())

	correction := &model.MappingRecord{
		TenantID:     "t1",
		CanonicalKey: "key-1",
		PriceEntryID: "price-2",
		Actor:        model.ActorCorrection,
		CreatedBy:    "reviewer",
		Reason:       "wrong vendor entry",
		StartTS:      first.StartTS.Add(time.Hour),
	}
	require.NoError(t, store.WriteMapping(ctx, correction))

	active, err = store.LookupMapping(ctx, "t1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "price-2", active.PriceEntryID)
	assert.Equal(t, model.ActorCorrection, active.Actor)

	history, err := store.GetMappingHistory(ctx, "t1", "key-1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	// The superseded row is closed at exactly the successor's start, so
	// the intervals tile the timeline with no gap and no overlap.
	require.NotNil(t, history[0].EndTS)
	assert.True(t, history[0].EndTS.Equal(history[1].StartTS))
	assert.Nil(t, history[1].EndTS)
}

func TestLookupMappingNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.LookupMapping(context.Background(), "t1", "never-mapped")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMappingAsOf(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	t1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-1",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto", StartTS: t1,
	}))
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-2",
		Actor: model.ActorCorrection, CreatedBy: "reviewer", Reason: "correction", StartTS: t2,
	}))

	// Before any mapping existed.
	_, err := store.MappingAsOf(ctx, "t1", "key-1", t1.Add(-time.Hour))
	assert.ErrorIs(t, err, common.ErrNotFound)

	// During the first interval.
	record, err := store.MappingAsOf(ctx, "t1", "key-1", t1.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "price-1", record.PriceEntryID)

	// Exactly at the boundary the successor owns the instant; intervals
	// are half-open.
	record, err = store.MappingAsOf(ctx, "t1", "key-1", t2)
	require.NoError(t, err)
	assert.Equal(t, "price-2", record.PriceEntryID)

	// After the correction.
	record, err = store.MappingAsOf(ctx, "t1", "key-1", t2.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "price-2", record.PriceEntryID)
}

func TestActiveMappingUniqueness(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	insert := `
		INSERT INTO mappings (id, tenant_id, canonical_key, price_entry_id,
			start_ts, end_ts, actor, created_by, reason)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?)`

	now := time.Now().UTC()
	_, err := store.db.ExecContext(ctx, insert,
		"m1", "t1", "key-1", "price-1", now, "AUTO", "test", "first")
	require.NoError(t, err)

	// A second active row for the same key violates the partial unique
	// index; the write path can lose a race but never double-map.
	_, err = store.db.ExecContext(ctx, insert,
		"m2", "t1", "key-1", "price-2", now, "AUTO", "test", "second")
	require.Error(t, err)
	assert.ErrorIs(t, wrapSQLiteError(err, "insert mapping"), common.ErrIntegrity)
}

func TestWriteMappingConcurrentWritersKeepSingleActiveRow(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	const writers = 8
	errs := make(chan error, writers)

	var wg sync.WaitGroup
	wg.Add(writers)
	for n := 0; n < writers; n++ {
		go func(n int) {
			defer wg.Done()
			errs <- store.WriteMapping(ctx, &model.MappingRecord{
				TenantID:     "t1",
				CanonicalKey: "key-1",
				PriceEntryID: fmt.Sprintf("price-%d", n),
				Actor:        model.ActorAuto,
				CreatedBy:    "engine",
				Reason:       "auto-accepted",
			})
		}(n)
	}
	wg.Wait()
	close(errs)

	// Writers that lose the race surface as integrity violations; they
	// never corrupt the key's row set.
	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, common.ErrIntegrity)
	}
	require.GreaterOrEqual(t, succeeded, 1)

	var active int
	err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mappings
		 WHERE tenant_id = ? AND canonical_key = ? AND end_ts IS NULL`,
		"t1", "key-1").Scan(&active)
	require.NoError(t, err)
	assert.Equal(t, 1, active, "exactly one active row survives concurrent writers")

	history, err := store.GetMappingHistory(ctx, "t1", "key-1")
	require.NoError(t, err)
	assert.Len(t, history, succeeded, "every successful write is preserved in history")
}

func TestClosedRowsDoNotBlockNewActiveRow(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for i, entry := range []string{"price-1", "price-2", "price-3"} {
		require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
			TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: entry,
			Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto",
			StartTS: time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}))
	}

	history, err := store.GetMappingHistory(ctx, "t1", "key-1")
	require.NoError(t, err)
	assert.Len(t, history, 3)

	active, err := store.LookupMapping(ctx, "t1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "price-3", active.PriceEntryID)
}

func TestGetActiveMappings(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-b", PriceEntryID: "price-1",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto",
	}))
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-a", PriceEntryID: "price-2",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto",
	}))
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t2", CanonicalKey: "key-a", PriceEntryID: "price-3",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto",
	}))

	records, err := store.GetActiveMappings(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "key-a", records[0].CanonicalKey)
	assert.Equal(t, "key-b", records[1].CanonicalKey)
}

func TestWriteMappingValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-1",
		Actor: model.ActorAuto, CreatedBy: "engine",
	})
	assert.ErrorIs(t, err, ErrInvalidMapping, "a mapping without a reason is rejected")

	err = store.WriteMapping(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParameter)
}
