// Package config loads and validates the rule tables that drive matching.
// All tables are read once at startup into immutable structures; any
// validation failure is fatal before the first item is processed.
package config

import (
	"fmt"
	"regexp"

	"github.com/costlink/costlink/internal/common"
)

// Config is the full set of rule tables and thresholds for one process.
type Config struct {
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Canonical  CanonicalConfig  `mapstructure:"canonical"`
	Candidates CandidateConfig  `mapstructure:"candidates"`
	Confidence ConfidenceConfig `mapstructure:"confidence"`
	Flags      FlagConfig       `mapstructure:"flags"`
	Router     RouterConfig     `mapstructure:"router"`
}

// FamilyTypeRule maps a (family, type name) pair to a classification code.
// Matching is case-insensitive on normalized text.
type FamilyTypeRule struct {
	Family   string `mapstructure:"family"`
	TypeName string `mapstructure:"type_name"`
	Code     int    `mapstructure:"code"`
}

// CategoryRule maps a (category, system type) pair to a classification code.
type CategoryRule struct {
	Category   string `mapstructure:"category"`
	SystemType string `mapstructure:"system_type"`
	Code       int    `mapstructure:"code"`
}

// KeywordRule assigns a classification code when every keyword appears in
// the item's combined family/type text.
type KeywordRule struct {
	Keywords []string `mapstructure:"keywords"`
	Code     int      `mapstructure:"code"`
}

// ClassifierConfig holds the ordered trust-hierarchy rule tables.
type ClassifierConfig struct {
	FamilyTypeRules []FamilyTypeRule `mapstructure:"family_type_rules"`
	CategoryRules   []CategoryRule   `mapstructure:"category_rules"`
	KeywordRules    []KeywordRule    `mapstructure:"keyword_rules"`
}

// CanonicalConfig controls text normalization and numeric bucketing for
// canonical key generation.
type CanonicalConfig struct {
	Synonyms         map[string]string `mapstructure:"synonyms"`
	UnitAliases      map[string]string `mapstructure:"unit_aliases"`
	RevisionPatterns []string          `mapstructure:"revision_patterns"`
	DimensionGridMM  float64           `mapstructure:"dimension_grid_mm"`
	AngleGridDeg     float64           `mapstructure:"angle_grid_deg"`
}

// CandidateConfig controls candidate retrieval.
type CandidateConfig struct {
	Limit             int     `mapstructure:"limit"`
	DimensionTolMM    float64 `mapstructure:"dimension_tolerance_mm"`
	AngleTolDeg       float64 `mapstructure:"angle_tolerance_deg"`
	RequireUnitMatch  bool    `mapstructure:"require_unit_match"`
	EscapeHatchLimit  int     `mapstructure:"escape_hatch_limit"`
	EnableEscapeHatch bool    `mapstructure:"enable_escape_hatch"`
}

// Weights holds the fuzzy-score field weights in integer percent. They must
// sum to exactly 100.
type Weights struct {
	Family   int `mapstructure:"family"`
	TypeName int `mapstructure:"type_name"`
	Material int `mapstructure:"material"`
	Size     int `mapstructure:"size"`
	Unit     int `mapstructure:"unit"`
	Angle    int `mapstructure:"angle"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() int {
	return w.Family + w.TypeName + w.Material + w.Size + w.Unit + w.Angle
}

// ConfidenceConfig controls weighted fuzzy scoring.
type ConfidenceConfig struct {
	Weights            Weights `mapstructure:"weights"`
	BonusExactDims     int     `mapstructure:"bonus_exact_dimensions"`
	BonusMaterialUnit  int     `mapstructure:"bonus_material_unit"`
	TokenEqualityRatio float64 `mapstructure:"token_equality_ratio"`
}

// FlagConfig controls the advisory flag thresholds.
type FlagConfig struct {
	DefaultCurrency     string `mapstructure:"default_currency"`
	StalePriceAfterDays int    `mapstructure:"stale_price_after_days"`
}

// RouterConfig controls auto-routing thresholds on the 0-100 score scale.
type RouterConfig struct {
	AcceptThreshold int `mapstructure:"accept_threshold"`
	ReviewThreshold int `mapstructure:"review_threshold"`
}

// Default returns the configuration used when no file overrides are given.
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{},
		Canonical: CanonicalConfig{
			DimensionGridMM: 5,
			AngleGridDeg:    5,
			RevisionPatterns: []string{
				`\brev\.?\s*[a-z0-9]+\b`,
				`\bv\d+(\.\d+)*\b`,
				`\bproj[-_ ]?\d+\b`,
			},
			Synonyms: map[string]string{
				"galv":       "galvanized",
				"galvanised": "galvanized",
				"verzinkt":   "galvanized",
				"stainless":  "stainless-steel",
				"ss":         "stainless-steel",
				"alu":        "aluminum",
				"aluminium":  "aluminum",
			},
			UnitAliases: map[string]string{
				"meter":    "m",
				"meters":   "m",
				"metre":    "m",
				"lfm":      "m",
				"each":     "ea",
				"piece":    "ea",
				"pc":       "ea",
				"pcs":      "ea",
				"stk":      "ea",
				"m2":       "sqm",
				"m²":       "sqm",
				"kilogram": "kg",
			},
		},
		Candidates: CandidateConfig{
			Limit:             25,
			DimensionTolMM:    10,
			AngleTolDeg:       5,
			RequireUnitMatch:  false,
			EscapeHatchLimit:  2,
			EnableEscapeHatch: true,
		},
		Confidence: ConfidenceConfig{
			Weights: Weights{
				Family:   30,
				TypeName: 25,
				Material: 15,
				Size:     15,
				Unit:     10,
				Angle:    5,
			},
			BonusExactDims:     5,
			BonusMaterialUnit:  5,
			TokenEqualityRatio: 0.85,
		},
		Flags: FlagConfig{
			DefaultCurrency:     "EUR",
			StalePriceAfterDays: 365,
		},
		Router: RouterConfig{
			AcceptThreshold: 85,
			ReviewThreshold: 70,
		},
	}
}

// Validate checks every rule table eagerly. Any error here is fatal; the
// process must not start matching with a partially valid configuration.
func (c *Config) Validate() error {
	if err := c.Classifier.validate(); err != nil {
		return err
	}
	if err := c.Canonical.validate(); err != nil {
		return err
	}
	if err := c.Candidates.validate(); err != nil {
		return err
	}
	if err := c.Confidence.validate(); err != nil {
		return err
	}
	if err := c.Flags.validate(); err != nil {
		return err
	}
	if err := c.Router.validate(); err != nil {
		return err
	}
	return nil
}

func (c *ClassifierConfig) validate() error {
	for i, rule := range c.FamilyTypeRules {
		if rule.Family == "" {
			return common.NewConfigError("classifier.family_type_rules",
				fmt.Errorf("%w: rule %d has empty family", common.ErrInvalidConfig, i))
		}
		if err := validateCode(rule.Code); err != nil {
			return common.NewConfigError("classifier.family_type_rules", err)
		}
	}
	for i, rule := range c.CategoryRules {
		if rule.Category == "" {
			return common.NewConfigError("classifier.category_rules",
				fmt.Errorf("%w: rule %d has empty category", common.ErrInvalidConfig, i))
		}
		if err := validateCode(rule.Code); err != nil {
			return common.NewConfigError("classifier.category_rules", err)
		}
	}
	for i, rule := range c.KeywordRules {
		if len(rule.Keywords) == 0 {
			return common.NewConfigError("classifier.keyword_rules",
				fmt.Errorf("%w: rule %d has no keywords", common.ErrInvalidConfig, i))
		}
		for _, kw := range rule.Keywords {
			if kw == "" {
				return common.NewConfigError("classifier.keyword_rules",
					fmt.Errorf("%w: rule %d has an empty keyword", common.ErrInvalidConfig, i))
			}
		}
		if err := validateCode(rule.Code); err != nil {
			return common.NewConfigError("classifier.keyword_rules", err)
		}
	}
	return nil
}

func validateCode(code int) error {
	if code <= 0 || code > 9999 {
		return fmt.Errorf("%w: classification code %d out of range", common.ErrInvalidConfig, code)
	}
	return nil
}

func (c *CanonicalConfig) validate() error {
	if c.DimensionGridMM <= 0 {
		return common.NewConfigError("canonical",
			fmt.Errorf("%w: dimension_grid_mm must be positive", common.ErrInvalidConfig))
	}
	if c.AngleGridDeg <= 0 {
		return common.NewConfigError("canonical",
			fmt.Errorf("%w: angle_grid_deg must be positive", common.ErrInvalidConfig))
	}
	for _, pattern := range c.RevisionPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return common.NewConfigError("canonical.revision_patterns",
				fmt.Errorf("%w: %q: %v", common.ErrInvalidConfig, pattern, err))
		}
	}
	for from, to := range c.Synonyms {
		if from == "" || to == "" {
			return common.NewConfigError("canonical.synonyms",
				fmt.Errorf("%w: empty synonym entry", common.ErrInvalidConfig))
		}
	}
	for from, to := range c.UnitAliases {
		if from == "" || to == "" {
			return common.NewConfigError("canonical.unit_aliases",
				fmt.Errorf("%w: empty unit alias entry", common.ErrInvalidConfig))
		}
	}
	return nil
}

func (c *CandidateConfig) validate() error {
	if c.Limit <= 0 {
		return common.NewConfigError("candidates",
			fmt.Errorf("%w: limit must be positive", common.ErrInvalidConfig))
	}
	if c.DimensionTolMM < 0 || c.AngleTolDeg < 0 {
		return common.NewConfigError("candidates",
			fmt.Errorf("%w: tolerances must not be negative", common.ErrInvalidConfig))
	}
	if c.EnableEscapeHatch && c.EscapeHatchLimit <= 0 {
		return common.NewConfigError("candidates",
			fmt.Errorf("%w: escape_hatch_limit must be positive when enabled", common.ErrInvalidConfig))
	}
	return nil
}

func (c *ConfidenceConfig) validate() error {
	if sum := c.Weights.Sum(); sum != 100 {
		return common.NewConfigError("confidence.weights",
			fmt.Errorf("%w: weights sum to %d, want 100", common.ErrInvalidConfig, sum))
	}
	if c.BonusExactDims < 0 || c.BonusMaterialUnit < 0 {
		return common.NewConfigError("confidence",
			fmt.Errorf("%w: bonuses must not be negative", common.ErrInvalidConfig))
	}
	if c.TokenEqualityRatio <= 0 || c.TokenEqualityRatio > 1 {
		return common.NewConfigError("confidence",
			fmt.Errorf("%w: token_equality_ratio must be in (0, 1]", common.ErrInvalidConfig))
	}
	return nil
}

func (c *FlagConfig) validate() error {
	if c.DefaultCurrency == "" {
		return common.NewConfigError("flags",
			fmt.Errorf("%w: default_currency", common.ErrMissingConfig))
	}
	if c.StalePriceAfterDays <= 0 {
		return common.NewConfigError("flags",
			fmt.Errorf("%w: stale_price_after_days must be positive", common.ErrInvalidConfig))
	}
	return nil
}

func (c *RouterConfig) validate() error {
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 100 {
		return common.NewConfigError("router",
			fmt.Errorf("%w: accept_threshold must be in [0, 100]", common.ErrInvalidConfig))
	}
	if c.ReviewThreshold < 0 || c.ReviewThreshold > c.AcceptThreshold {
		return common.NewConfigError("router",
			fmt.Errorf("%w: review_threshold must be in [0, accept_threshold]", common.ErrInvalidConfig))
	}
	return nil
}
