// Package report reconstructs the mapping state for any historical instant.
// Reports are pure reads: identical (tenant, asOf) arguments always produce
// identical rows in identical order, no matter what was written later.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/costlink/costlink/internal/service"
)

// Engine produces as-of reconciliation reports.
type Engine struct {
	storage service.Storage
}

// NewEngine creates a report engine.
func NewEngine(storage service.Storage) *Engine {
	return &Engine{storage: storage}
}

// Summary aggregates one report run.
type Summary struct {
	// TotalByCurrency sums quantity × unit price per currency over mapped
	// rows. Unmapped rows contribute nothing.
	TotalByCurrency map[string]decimal.Decimal
	Rows            []service.ReportRow
	MappedCount     int
	UnmappedCount   int
}

// Report returns every item in the tenant joined to the mapping active at
// asOf and that mapping's price entry, with extended totals.
func (e *Engine) Report(ctx context.Context, tenantID string, asOf time.Time) (*Summary, error) {
	rows, err := e.storage.GetReportRows(ctx, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	summary := &Summary{
		Rows:            rows,
		TotalByCurrency: make(map[string]decimal.Decimal),
	}

	for _, row := range rows {
		if !row.Mapped {
			summary.UnmappedCount++
			continue
		}
		summary.MappedCount++

		price, parseErr := decimal.NewFromString(row.UnitPrice)
		if parseErr != nil {
			return nil, fmt.Errorf("corrupt unit price %q for item %s: %w", row.UnitPrice, row.ItemID, parseErr)
		}
		extended := price.Mul(decimal.NewFromFloat(row.Quantity))
		summary.TotalByCurrency[row.Currency] = summary.TotalByCurrency[row.Currency].Add(extended)
	}

	return summary, nil
}
