// Package candidate retrieves bounded candidate sets of price entries for
// classified items. Retrieval blocks on classification code first, then
// filters by numeric tolerance; when blocking yields nothing, an escape
// hatch returns a small number of out-of-class candidates tagged so the
// flag engine can penalize them.
package candidate

import (
	"context"
	"fmt"
	"math"

	"github.com/costlink/costlink/internal/canonical"
	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
	"github.com/costlink/costlink/internal/service"
)

// Generator retrieves candidates from storage. Safe for concurrent use.
type Generator struct {
	storage service.Storage
	norm    *canonical.Generator
	cfg     config.CandidateConfig
}

// NewGenerator creates a candidate generator.
func NewGenerator(storage service.Storage, norm *canonical.Generator, cfg config.CandidateConfig) *Generator {
	return &Generator{storage: storage, norm: norm, cfg: cfg}
}

// Candidates returns at most limit candidates for a classified item. A zero
// result is a normal outcome, not an error. Items classified Unknown skip
// blocking entirely and go straight to the escape hatch.
func (g *Generator) Candidates(ctx context.Context, item *model.Item, limit int) ([]model.Candidate, error) {
	if item == nil || item.Code == nil {
		return nil, fmt.Errorf("%w: item classification code", common.ErrMissingField)
	}
	if limit <= 0 {
		limit = g.cfg.Limit
	}

	var candidates []model.Candidate

	if *item.Code != model.CodeUnknown {
		entries, err := g.storage.GetCurrentPricesByCode(ctx, *item.Code, g.cfg.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to query prices for code %d: %w", *item.Code, err)
		}

		for _, entry := range entries {
			if !g.withinTolerance(item, &entry) {
				continue
			}
			if g.cfg.RequireUnitMatch && !g.unitsMatch(item, &entry) {
				continue
			}
			candidates = append(candidates, model.Candidate{Entry: entry})
			if len(candidates) >= limit {
				break
			}
		}
	}

	if len(candidates) > 0 || !g.cfg.EnableEscapeHatch {
		return candidates, nil
	}

	// Escape hatch: relax the classification filter and return a couple of
	// best-effort candidates, explicitly tagged as out-of-class.
	entries, err := g.storage.GetCurrentPricesRelaxed(ctx, g.norm.NormalizeUnit(item.Unit), g.cfg.EscapeHatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query relaxed candidates: %w", err)
	}

	for _, entry := range entries {
		candidates = append(candidates, model.Candidate{Entry: entry, OutOfClass: true})
	}

	return candidates, nil
}

// withinTolerance keeps an entry only if every populated dimension on the
// item is present on the entry and within the configured absolute tolerance.
func (g *Generator) withinTolerance(item *model.Item, entry *model.PriceEntry) bool {
	checks := []struct {
		want *float64
		got  *float64
		tol  float64
	}{
		{item.WidthMM, entry.WidthMM, g.cfg.DimensionTolMM},
		{item.HeightMM, entry.HeightMM, g.cfg.DimensionTolMM},
		{item.DiameterMM, entry.DiameterMM, g.cfg.DimensionTolMM},
		{item.AngleDeg, entry.AngleDeg, g.cfg.AngleTolDeg},
	}

	for _, check := range checks {
		if check.want == nil {
			continue
		}
		if check.got == nil {
			return false
		}
		if math.Abs(*check.want-*check.got) > check.tol {
			return false
		}
	}

	return true
}

func (g *Generator) unitsMatch(item *model.Item, entry *model.PriceEntry) bool {
	return g.norm.NormalizeUnit(item.Unit) == g.norm.NormalizeUnit(entry.Unit)
}
