package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlink/costlink/internal/model"
)

func TestGetReportRowsJoinsActiveMapping(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	mapped := testItem("item-1")
	mapped.CanonicalKey = "key-1"
	unmapped := testItem("item-2")
	require.NoError(t, store.SaveItems(ctx, []model.Item{mapped, unmapped}))
	require.NoError(t, store.SavePriceEntries(ctx, []model.PriceEntry{testPrice("price-1", 310)}))

	mappedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-1",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto", StartTS: mappedAt,
	}))

	rows, err := store.GetReportRows(ctx, "t1", mappedAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "item-1", rows[0].ItemID)
	assert.True(t, rows[0].Mapped)
	assert.Equal(t, "price-1", rows[0].PriceEntryID)
	assert.Equal(t, "12.50", rows[0].UnitPrice)
	assert.Equal(t, "EUR", rows[0].Currency)

	assert.Equal(t, "item-2", rows[1].ItemID)
	assert.False(t, rows[1].Mapped)
	assert.Empty(t, rows[1].UnitPrice)
}

func TestGetReportRowsBeforeMapping(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := testItem("item-1")
	item.CanonicalKey = "key-1"
	require.NoError(t, store.SaveItems(ctx, []model.Item{item}))
	require.NoError(t, store.SavePriceEntries(ctx, []model.PriceEntry{testPrice("price-1", 310)}))

	mappedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-1",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto", StartTS: mappedAt,
	}))

	rows, err := store.GetReportRows(ctx, "t1", mappedAt.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Mapped)
}

func TestGetReportRowsReproducibleAfterLaterWrites(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	item := testItem("item-1")
	item.CanonicalKey = "key-1"
	require.NoError(t, store.SaveItems(ctx, []model.Item{item}))
	require.NoError(t, store.SavePriceEntries(ctx, []model.PriceEntry{
		testPrice("price-1", 310), testPrice("price-2", 310),
	}))

	t1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-1",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto", StartTS: t1,
	}))

	asOf := t1.Add(time.Hour)
	before, err := store.GetReportRows(ctx, "t1", asOf)
	require.NoError(t, err)

	// A correction written after asOf must not change the asOf view.
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-2",
		Actor: model.ActorCorrection, CreatedBy: "reviewer", Reason: "correction",
		StartTS: t1.Add(48 * time.Hour),
	}))

	after, err := store.GetReportRows(ctx, "t1", asOf)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	require.Len(t, after, 1)
	assert.Equal(t, "price-1", after[0].PriceEntryID)
}
