// Package testutil provides shared helpers for tests that need a real
// database or fixture data.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/costlink/costlink/internal/model"
	"github.com/costlink/costlink/internal/storage"
)

// SetupTestDB creates a new in-memory database with migrations applied.
// Cleanup is registered on the test.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// Float returns a pointer to v, for optional dimension fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for optional classification fields.
func Int(v int) *int {
	return &v
}

// Item returns a schedule item with sensible defaults. Callers override
// fields on the returned value before saving.
func Item(id, tenantID string) *model.Item {
	return &model.Item{
		ID:       id,
		TenantID: tenantID,
		Family:   "Rectangular Duct",
		TypeName: "Standard",
		Unit:     "m",
		Material: "galvanized",
		Quantity: 1,
		WidthMM:  Float(300),
		HeightMM: Float(200),
	}
}

// PriceEntry returns a current price-book entry with sensible defaults.
func PriceEntry(id string, code int) *model.PriceEntry {
	return &model.PriceEntry{
		ID:          id,
		Code:        code,
		Description: "rectangular duct standard galvanized 300x200",
		Unit:        "m",
		Material:    "galvanized",
		UnitPrice:   decimal.NewFromFloat(12.50),
		Currency:    "EUR",
		Source:      "pricebook",
		ValidFrom:   time.Now().UTC().Add(-24 * time.Hour),
		IsCurrent:   true,
		WidthMM:     Float(300),
		HeightMM:    Float(200),
	}
}

// SaveItems persists the given items or fails the test.
func SaveItems(t *testing.T, store *storage.SQLiteStorage, items ...*model.Item) {
	t.Helper()

	batch := make([]model.Item, 0, len(items))
	for _, it := range items {
		batch = append(batch, *it)
	}
	if err := store.SaveItems(context.Background(), batch); err != nil {
		t.Fatalf("failed to save items: %v", err)
	}
}

// SavePrices persists the given price entries or fails the test.
func SavePrices(t *testing.T, store *storage.SQLiteStorage, entries ...*model.PriceEntry) {
	t.Helper()

	batch := make([]model.PriceEntry, 0, len(entries))
	for _, e := range entries {
		batch = append(batch, *e)
	}
	if err := store.SavePriceEntries(context.Background(), batch); err != nil {
		t.Fatalf("failed to save price entries: %v", err)
	}
}
