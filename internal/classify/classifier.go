// Package classify assigns classification codes to entities using an
// ordered trust hierarchy: explicit override, curated (family, type)
// lookup, (category, system type) rules, keyword fallback, and finally the
// Unknown sentinel. The hierarchy is an explicit strategy list evaluated in
// a fixed loop so priority order stays auditable.
package classify

import (
	"fmt"
	"strings"

	"github.com/costlink/costlink/internal/canonical"
	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
)

// strategyKind tags one level of the trust hierarchy.
type strategyKind string

const (
	kindOverride   strategyKind = "override"
	kindFamilyType strategyKind = "family_type"
	kindCategory   strategyKind = "category_system"
	kindKeyword    strategyKind = "keyword"
)

// strategy is one level of the hierarchy. It reports whether it produced a
// code; a false result means "try the next level", never an error.
type strategy struct {
	apply func(*model.Item) (int, bool)
	kind  strategyKind
}

// keywordRule is a compiled keyword fallback rule.
type keywordRule struct {
	keywords []string
	code     int
}

// Classifier assigns classification codes. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	norm       *canonical.Generator
	familyType map[string]int
	category   map[string]int
	keywords   []keywordRule
	strategies []strategy
}

// New compiles the rule tables into a classifier. Rule tables are assumed
// to have passed config validation; an empty table set is legal and simply
// classifies everything as Unknown.
func New(cfg config.ClassifierConfig, norm *canonical.Generator) (*Classifier, error) {
	if norm == nil {
		return nil, fmt.Errorf("%w: canonical generator is required", common.ErrInvalidConfig)
	}

	c := &Classifier{
		norm:       norm,
		familyType: make(map[string]int, len(cfg.FamilyTypeRules)),
		category:   make(map[string]int, len(cfg.CategoryRules)),
		keywords:   make([]keywordRule, 0, len(cfg.KeywordRules)),
	}

	for _, rule := range cfg.FamilyTypeRules {
		key := pairKey(norm.NormalizeText(rule.Family), norm.NormalizeText(rule.TypeName))
		if existing, ok := c.familyType[key]; ok && existing != rule.Code {
			return nil, common.NewConfigError("classifier.family_type_rules",
				fmt.Errorf("%w: conflicting codes %d and %d for (%s, %s)",
					common.ErrInvalidConfig, existing, rule.Code, rule.Family, rule.TypeName))
		}
		c.familyType[key] = rule.Code
	}

	for _, rule := range cfg.CategoryRules {
		key := pairKey(norm.NormalizeText(rule.Category), norm.NormalizeText(rule.SystemType))
		if existing, ok := c.category[key]; ok && existing != rule.Code {
			return nil, common.NewConfigError("classifier.category_rules",
				fmt.Errorf("%w: conflicting codes %d and %d for (%s, %s)",
					common.ErrInvalidConfig, existing, rule.Code, rule.Category, rule.SystemType))
		}
		c.category[key] = rule.Code
	}

	for _, rule := range cfg.KeywordRules {
		compiled := keywordRule{code: rule.Code, keywords: make([]string, len(rule.Keywords))}
		for i, kw := range rule.Keywords {
			compiled.keywords[i] = norm.NormalizeText(kw)
		}
		c.keywords = append(c.keywords, compiled)
	}

	c.strategies = []strategy{
		{kind: kindOverride, apply: c.applyOverride},
		{kind: kindFamilyType, apply: c.applyFamilyType},
		{kind: kindCategory, apply: c.applyCategory},
		{kind: kindKeyword, apply: c.applyKeyword},
	}

	return c, nil
}

// Classify runs the trust hierarchy top to bottom and returns the first
// code produced. Every level is tried fresh for every item; no "no rule
// matched" outcome is ever cached across items. Unknown is a valid terminal
// classification, not an error.
func (c *Classifier) Classify(item *model.Item) (int, error) {
	if item == nil {
		return 0, fmt.Errorf("%w: item", common.ErrMissingField)
	}
	if item.CodeOverride == nil &&
		strings.TrimSpace(item.Family) == "" &&
		strings.TrimSpace(item.TypeName) == "" &&
		strings.TrimSpace(item.Category) == "" {
		return 0, fmt.Errorf("%w: item %s has no classifiable text", common.ErrMissingField, item.ID)
	}

	for _, s := range c.strategies {
		if code, ok := s.apply(item); ok {
			return code, nil
		}
	}

	return model.CodeUnknown, nil
}

func (c *Classifier) applyOverride(item *model.Item) (int, bool) {
	if item.CodeOverride == nil {
		return 0, false
	}
	return *item.CodeOverride, true
}

func (c *Classifier) applyFamilyType(item *model.Item) (int, bool) {
	key := pairKey(c.norm.NormalizeText(item.Family), c.norm.NormalizeText(item.TypeName))
	code, ok := c.familyType[key]
	return code, ok
}

func (c *Classifier) applyCategory(item *model.Item) (int, bool) {
	key := pairKey(c.norm.NormalizeText(item.Category), c.norm.NormalizeText(item.SystemType))
	code, ok := c.category[key]
	return code, ok
}

func (c *Classifier) applyKeyword(item *model.Item) (int, bool) {
	text := c.norm.NormalizeText(item.Family + " " + item.TypeName)
	if text == "" {
		return 0, false
	}

	for _, rule := range c.keywords {
		matched := true
		for _, kw := range rule.keywords {
			if !containsToken(text, kw) {
				matched = false
				break
			}
		}
		if matched {
			return rule.code, true
		}
	}

	return 0, false
}

// containsToken reports whether needle appears in haystack on token
// boundaries. Both strings are already normalized token streams.
func containsToken(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	idx := strings.Index(haystack, needle)
	for idx >= 0 {
		before := idx == 0 || haystack[idx-1] == ' '
		end := idx + len(needle)
		after := end == len(haystack) || haystack[end] == ' '
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], needle)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func pairKey(a, b string) string {
	return a + "\x1f" + b
}
