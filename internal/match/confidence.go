// Package match scores (item, candidate) pairs, evaluates the risk-flag
// taxonomy, and routes each pair to a terminal decision. Everything here is
// pure computation over its inputs except the mapping-memory lookup, which
// goes through the injected repository interface.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"

	"github.com/costlink/costlink/internal/canonical"
	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
)

// MemoryLookup is the slice of storage the calculator needs: resolving a
// canonical key to the currently approved price entry.
type MemoryLookup interface {
	LookupMapping(ctx context.Context, tenantID, canonicalKey string) (*model.MappingRecord, error)
}

// Calculator computes confidence scores. Immutable after construction and
// safe for concurrent use; identical inputs always yield identical results.
type Calculator struct {
	memory MemoryLookup
	norm   *canonical.Generator
	cfg    config.ConfidenceConfig
}

// NewCalculator creates a confidence calculator.
func NewCalculator(memory MemoryLookup, norm *canonical.Generator, cfg config.ConfidenceConfig) *Calculator {
	return &Calculator{memory: memory, norm: norm, cfg: cfg}
}

// Score runs the priority waterfall for one (item, candidate) pair:
// exact identifier equality, then mapping memory, then weighted fuzzy
// comparison. Each step short-circuits on success.
func (c *Calculator) Score(ctx context.Context, item *model.Item, cand model.Candidate) (int, model.MatchMethod, error) {
	if item == nil {
		return 0, model.MethodNone, fmt.Errorf("%w: item", common.ErrMissingField)
	}

	if item.PartNumber != "" {
		if item.PartNumber == cand.Entry.PartNumber || item.PartNumber == cand.Entry.VendorSKU {
			return 100, model.MethodExactID, nil
		}
	}

	if item.CanonicalKey != "" {
		record, err := c.memory.LookupMapping(ctx, item.TenantID, item.CanonicalKey)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return 0, model.MethodNone, fmt.Errorf("mapping memory lookup failed: %w", err)
		}
		if record != nil && record.PriceEntryID == cand.Entry.ID {
			return 100, model.MethodMemory, nil
		}
	}

	score, bonused := c.fuzzyScore(item, &cand.Entry)
	method := model.MethodWeightedFuzzy
	if bonused {
		method = model.MethodWeightedFuzzyBonus
	}
	return score, method, nil
}

// fuzzyScore computes the weighted field comparison. Weights are integer
// percentages summing to 100; the result is capped at 100 after bonuses.
func (c *Calculator) fuzzyScore(item *model.Item, entry *model.PriceEntry) (int, bool) {
	w := c.cfg.Weights
	desc := c.norm.NormalizeText(entry.Description)

	total := 0.0
	total += float64(w.Family) * c.textSimilarity(item.Family, desc)
	total += float64(w.TypeName) * c.textSimilarity(item.TypeName, desc)
	total += float64(w.Material) * boolScore(c.materialsAgree(item.Material, entry.Material))
	total += float64(w.Size) * c.sizeScore(item, entry)
	total += float64(w.Unit) * boolScore(c.unitsAgree(item.Unit, entry.Unit))
	total += float64(w.Angle) * c.angleScore(item, entry)

	bonused := false
	if c.exactDimensions(item, entry) {
		total += float64(c.cfg.BonusExactDims)
		bonused = true
	}
	if item.Material != "" && c.materialsAgree(item.Material, entry.Material) && c.unitsAgree(item.Unit, entry.Unit) {
		total += float64(c.cfg.BonusMaterialUnit)
		bonused = true
	}

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, bonused
}

// textSimilarity compares a normalized item field against the normalized
// candidate description with Jaro-Winkler. Empty-against-empty is neutral
// agreement; empty-against-populated scores zero.
func (c *Calculator) textSimilarity(field, desc string) float64 {
	norm := c.norm.NormalizeText(field)
	switch {
	case norm == "" && desc == "":
		return 1
	case norm == "" || desc == "":
		return 0
	case desc == norm:
		return 1
	}

	// A field whose whole token stream appears inside the description is a
	// containment match, which Jaro-Winkler under-rewards for long
	// descriptions.
	if containsTokens(desc, norm) {
		return 1
	}

	return smetrics.JaroWinkler(norm, desc, 0.7, 4)
}

// materialsAgree applies token equality: exact match or an edit-distance
// ratio at or above the configured floor.
func (c *Calculator) materialsAgree(a, b string) bool {
	na, nb := c.norm.NormalizeText(a), c.norm.NormalizeText(b)
	if na == "" && nb == "" {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	return tokensEqual(na, nb, c.cfg.TokenEqualityRatio)
}

func (c *Calculator) unitsAgree(a, b string) bool {
	na, nb := c.norm.NormalizeUnit(a), c.norm.NormalizeUnit(b)
	if na == "" && nb == "" {
		return true
	}
	return na == nb
}

// sizeScore is the fraction of the item's populated linear dimensions the
// candidate matches within the bucketing grid. Items without dimensions
// score neutral full credit.
func (c *Calculator) sizeScore(item *model.Item, entry *model.PriceEntry) float64 {
	type pair struct{ want, got *float64 }
	pairs := []pair{
		{item.WidthMM, entry.WidthMM},
		{item.HeightMM, entry.HeightMM},
		{item.DiameterMM, entry.DiameterMM},
	}

	populated, matched := 0, 0
	for _, p := range pairs {
		if p.want == nil {
			continue
		}
		populated++
		if p.got != nil && c.norm.BucketDimension(*p.want) == c.norm.BucketDimension(*p.got) {
			matched++
		}
	}

	if populated == 0 {
		return 1
	}
	return float64(matched) / float64(populated)
}

func (c *Calculator) angleScore(item *model.Item, entry *model.PriceEntry) float64 {
	if item.AngleDeg == nil {
		return 1
	}
	if entry.AngleDeg == nil {
		return 0
	}
	return boolScore(c.norm.BucketAngle(*item.AngleDeg) == c.norm.BucketAngle(*entry.AngleDeg))
}

// exactDimensions reports whether every populated item dimension equals the
// candidate's at full precision, with at least one dimension populated.
func (c *Calculator) exactDimensions(item *model.Item, entry *model.PriceEntry) bool {
	type pair struct{ want, got *float64 }
	pairs := []pair{
		{item.WidthMM, entry.WidthMM},
		{item.HeightMM, entry.HeightMM},
		{item.DiameterMM, entry.DiameterMM},
		{item.AngleDeg, entry.AngleDeg},
	}

	populated := 0
	for _, p := range pairs {
		if p.want == nil {
			continue
		}
		populated++
		if p.got == nil || *p.want != *p.got {
			return false
		}
	}
	return populated > 0
}

// tokensEqual reports string equality under the edit-distance ratio floor.
func tokensEqual(a, b string, ratio float64) bool {
	if a == b {
		return true
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return true
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1-float64(dist)/float64(longest) >= ratio
}

// containsTokens reports whether needle occurs in haystack on token
// boundaries. Both arguments are normalized token streams.
func containsTokens(haystack, needle string) bool {
	offset := 0
	for {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return false
		}
		idx += offset
		before := idx == 0 || haystack[idx-1] == ' '
		end := idx + len(needle)
		after := end == len(haystack) || haystack[end] == ' '
		if before && after {
			return true
		}
		offset = idx + 1
	}
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
