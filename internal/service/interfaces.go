// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/costlink/costlink/internal/model"
)

// ItemFilter defines filtering options for item queries.
type ItemFilter struct {
	TenantID      string
	OnlyUnmatched bool
	Limit         int
	Offset        int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Item operations
	SaveItems(ctx context.Context, items []model.Item) error
	GetItemByID(ctx context.Context, id string) (*model.Item, error)
	GetItems(ctx context.Context, filter ItemFilter) ([]model.Item, error)
	GetItemsToMatch(ctx context.Context, tenantID string) ([]model.Item, error)
	UpdateItemClassification(ctx context.Context, itemID string, code int, canonicalKey string) error

	// Price entry operations
	SavePriceEntries(ctx context.Context, entries []model.PriceEntry) error
	GetPriceEntryByID(ctx context.Context, id string) (*model.PriceEntry, error)
	GetCurrentPricesByCode(ctx context.Context, code int, limit int) ([]model.PriceEntry, error)
	GetCurrentPricesRelaxed(ctx context.Context, unit string, limit int) ([]model.PriceEntry, error)

	// Mapping memory operations (SCD Type-2)
	LookupMapping(ctx context.Context, tenantID, canonicalKey string) (*model.MappingRecord, error)
	WriteMapping(ctx context.Context, record *model.MappingRecord) error
	MappingAsOf(ctx context.Context, tenantID, canonicalKey string, asOf time.Time) (*model.MappingRecord, error)
	GetMappingHistory(ctx context.Context, tenantID, canonicalKey string) ([]model.MappingRecord, error)
	GetActiveMappings(ctx context.Context, tenantID string) ([]model.MappingRecord, error)

	// Match result operations (append-only)
	SaveMatchResult(ctx context.Context, result *model.MatchResult) error
	GetLatestMatchResult(ctx context.Context, itemID string) (*model.MatchResult, error)
	GetMatchResultsByDecision(ctx context.Context, tenantID string, decision model.Decision) ([]model.MatchResult, error)

	// Reporting
	GetReportRows(ctx context.Context, tenantID string, asOf time.Time) ([]ReportRow, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
}

// ReportRow is one line of the as-of reconciliation report: an item joined
// to the mapping active at the requested instant and to the price entry
// that mapping referenced.
type ReportRow struct {
	MappedAt     *time.Time
	ItemID       string
	Family       string
	TypeName     string
	CanonicalKey string
	PriceEntryID string
	Description  string
	Currency     string
	UnitPrice    string // Decimal string; empty when unmapped
	Code         int
	Quantity     float64
	Mapped       bool
}

// MatchRunStats shows the results of a matching run.
type MatchRunStats struct {
	TotalItems   int
	AutoAccepted int
	ManualReview int
	Rejected     int
	Failed       int
	Duration     time.Duration
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
