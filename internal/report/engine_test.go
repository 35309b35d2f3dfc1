package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlink/costlink/internal/model"
	"github.com/costlink/costlink/internal/storage"
	"github.com/costlink/costlink/internal/testutil"
)

func seedMappedTenant(t *testing.T, store *storage.SQLiteStorage, mappedAt time.Time) {
	t.Helper()
	ctx := context.Background()

	ducts := testutil.Item("item-1", "t1")
	ducts.Quantity = 2
	ducts.CanonicalKey = "key-1"

	imported := testutil.Item("item-2", "t1")
	imported.Quantity = 3
	imported.CanonicalKey = "key-2"

	unmapped := testutil.Item("item-3", "t1")
	testutil.SaveItems(t, store, ducts, imported, unmapped)

	domestic := testutil.PriceEntry("price-1", 310) // 12.5 EUR
	foreign := testutil.PriceEntry("price-2", 310)
	foreign.Currency = "USD"
	foreign.UnitPrice = decimal.NewFromFloat(10)
	testutil.SavePrices(t, store, domestic, foreign)

	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-1",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto", StartTS: mappedAt,
	}))
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-2", PriceEntryID: "price-2",
		Actor: model.ActorAuto, CreatedBy: "engine", Reason: "auto", StartTS: mappedAt,
	}))
}

func TestReportSummary(t *testing.T) {
	store := testutil.SetupTestDB(t)
	eng := NewEngine(store)

	mappedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	seedMappedTenant(t, store, mappedAt)

	summary, err := eng.Report(context.Background(), "t1", mappedAt.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.MappedCount)
	assert.Equal(t, 1, summary.UnmappedCount)
	require.Len(t, summary.Rows, 3)

	// 2 × 12.5 EUR and 3 × 10 USD.
	require.Contains(t, summary.TotalByCurrency, "EUR")
	require.Contains(t, summary.TotalByCurrency, "USD")
	assert.True(t, summary.TotalByCurrency["EUR"].Equal(decimal.NewFromFloat(25)),
		"EUR total is %s", summary.TotalByCurrency["EUR"])
	assert.True(t, summary.TotalByCurrency["USD"].Equal(decimal.NewFromFloat(30)),
		"USD total is %s", summary.TotalByCurrency["USD"])
}

func TestReportBeforeMappings(t *testing.T) {
	store := testutil.SetupTestDB(t)
	eng := NewEngine(store)

	mappedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	seedMappedTenant(t, store, mappedAt)

	summary, err := eng.Report(context.Background(), "t1", mappedAt.Add(-time.Hour))
	require.NoError(t, err)

	assert.Zero(t, summary.MappedCount)
	assert.Equal(t, 3, summary.UnmappedCount)
	assert.Empty(t, summary.TotalByCurrency)
}

func TestReportReproducibleAfterLaterCorrections(t *testing.T) {
	store := testutil.SetupTestDB(t)
	eng := NewEngine(store)
	ctx := context.Background()

	mappedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	seedMappedTenant(t, store, mappedAt)

	asOf := mappedAt.Add(time.Hour)
	before, err := eng.Report(ctx, "t1", asOf)
	require.NoError(t, err)

	// A later correction repoints key-1 at the foreign entry; the asOf
	// view must not move.
	require.NoError(t, store.WriteMapping(ctx, &model.MappingRecord{
		TenantID: "t1", CanonicalKey: "key-1", PriceEntryID: "price-2",
		Actor: model.ActorCorrection, CreatedBy: "reviewer", Reason: "correction",
		StartTS: mappedAt.Add(48 * time.Hour),
	}))

	after, err := eng.Report(ctx, "t1", asOf)
	require.NoError(t, err)

	assert.Equal(t, before.Rows, after.Rows)
	assert.Equal(t, before.MappedCount, after.MappedCount)
	require.Contains(t, after.TotalByCurrency, "EUR")
	assert.True(t, before.TotalByCurrency["EUR"].Equal(after.TotalByCurrency["EUR"]))
}
