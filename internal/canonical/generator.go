// Package canonical derives deterministic identity keys from the
// descriptive and numeric attributes of schedule items. Two items that
// differ only in formatting noise (case, whitespace, synonym spelling,
// revision markers, unit aliases) must converge to the same key; that
// property is what makes mapping-memory lookups effective across projects.
package canonical

import (
	"crypto/sha256"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
)

// absent marks an omitted field in the assembled key so that field
// boundaries never shift between entities with different populated fields.
const absent = "-"

// Generator produces canonical keys. It is immutable after construction and
// safe for concurrent use.
type Generator struct {
	synonyms    map[string]string
	unitAliases map[string]string
	revisions   []*regexp.Regexp
	dimGrid     float64
	angleGrid   float64
}

// NewGenerator compiles the normalization tables. Pattern compilation
// failures are configuration errors and should have been caught by config
// validation already; they are fatal here too.
func NewGenerator(cfg config.CanonicalConfig) (*Generator, error) {
	g := &Generator{
		synonyms:    make(map[string]string, len(cfg.Synonyms)),
		unitAliases: make(map[string]string, len(cfg.UnitAliases)),
		revisions:   make([]*regexp.Regexp, 0, len(cfg.RevisionPatterns)),
		dimGrid:     cfg.DimensionGridMM,
		angleGrid:   cfg.AngleGridDeg,
	}

	for from, to := range cfg.Synonyms {
		g.synonyms[strings.ToLower(from)] = strings.ToLower(to)
	}
	for from, to := range cfg.UnitAliases {
		g.unitAliases[strings.ToLower(from)] = strings.ToLower(to)
	}
	for _, pattern := range cfg.RevisionPatterns {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			return nil, common.NewConfigError("canonical.revision_patterns",
				fmt.Errorf("%w: %q: %v", common.ErrInvalidConfig, pattern, err))
		}
		g.revisions = append(g.revisions, re)
	}

	return g, nil
}

// Key derives the canonical key for an item. The item must be classified
// and must carry at least one of family or type name; a missing required
// text field fails only this item, not the run.
func (g *Generator) Key(item *model.Item) (string, error) {
	if item.Code == nil {
		return "", fmt.Errorf("%w: classification code", common.ErrMissingField)
	}
	if strings.TrimSpace(item.Family) == "" && strings.TrimSpace(item.TypeName) == "" {
		return "", fmt.Errorf("%w: family or type name", common.ErrMissingField)
	}

	parts := []string{
		strconv.Itoa(*item.Code),
		orAbsent(g.NormalizeText(item.Family)),
		orAbsent(g.NormalizeText(item.TypeName)),
		g.bucketField(item.WidthMM, g.dimGrid),
		g.bucketField(item.HeightMM, g.dimGrid),
		g.bucketField(item.DiameterMM, g.dimGrid),
		g.bucketField(item.AngleDeg, g.angleGrid),
		orAbsent(g.NormalizeText(item.Material)),
		orAbsent(g.NormalizeUnit(item.Unit)),
	}

	digest := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", digest), nil
}

// NormalizeText folds a freeform text field to its canonical token stream:
// lowercase, diacritics stripped, revision markers removed, punctuation
// collapsed to spaces, synonyms expanded.
func (g *Generator) NormalizeText(s string) string {
	s = fold(s)

	for _, re := range g.revisions {
		s = re.ReplaceAllString(s, " ")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '°' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		if canon, ok := g.synonyms[tok]; ok {
			tokens[i] = canon
		}
	}

	return strings.Join(tokens, " ")
}

// NormalizeUnit maps a unit string onto the closed unit vocabulary.
// Unknown units pass through lowercased rather than erroring; the flag
// engine surfaces mismatches.
func (g *Generator) NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if canon, ok := g.unitAliases[u]; ok {
		return canon
	}
	return u
}

// Bucket rounds a numeric value onto the configured grid so near-identical
// geometries collapse to the same key. Rounding is half away from zero.
func (g *Generator) Bucket(value, grid float64) float64 {
	if grid <= 0 {
		return value
	}
	return math.Round(value/grid) * grid
}

// BucketDimension buckets a value on the dimension grid.
func (g *Generator) BucketDimension(value float64) float64 {
	return g.Bucket(value, g.dimGrid)
}

// BucketAngle buckets a value on the angle grid.
func (g *Generator) BucketAngle(value float64) float64 {
	return g.Bucket(value, g.angleGrid)
}

func (g *Generator) bucketField(value *float64, grid float64) string {
	if value == nil {
		return absent
	}
	return strconv.FormatFloat(g.Bucket(*value, grid), 'f', -1, 64)
}

func orAbsent(s string) string {
	if s == "" {
		return absent
	}
	return s
}

// foldTransformer strips diacritical marks after canonical decomposition.
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		// Fall back to the raw string; lowercasing still applies.
		folded = s
	}
	return strings.ToLower(folded)
}
