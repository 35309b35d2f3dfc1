package match

import (
	"fmt"
	"math"
	"time"

	"github.com/costlink/costlink/internal/canonical"
	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
)

// FlagEngine evaluates the fixed risk-condition taxonomy on an
// (item, candidate) pair. Evaluation is pure: the caller supplies the
// reference time, so a pair plus a timestamp always yields the same flags
// in the same order.
type FlagEngine struct {
	norm   *canonical.Generator
	flags  config.FlagConfig
	limits config.CandidateConfig
}

// NewFlagEngine creates a flag engine. The candidate tolerances double as
// the conflict thresholds, so a pair that slipped past blocking is judged
// by the same limits.
func NewFlagEngine(norm *canonical.Generator, flags config.FlagConfig, limits config.CandidateConfig) *FlagEngine {
	return &FlagEngine{norm: norm, flags: flags, limits: limits}
}

// Evaluate returns every flag the pair triggers, critical conditions first.
// A pair may carry zero, one, or many flags of mixed severity.
func (e *FlagEngine) Evaluate(item *model.Item, cand model.Candidate, now time.Time) []model.Flag {
	var flags []model.Flag
	entry := &cand.Entry

	if f := e.unitConflict(item, entry); f != nil {
		flags = append(flags, *f)
	}
	flags = append(flags, e.dimensionConflicts(item, entry)...)
	if f := e.angleConflict(item, entry); f != nil {
		flags = append(flags, *f)
	}
	if f := e.materialConflict(item, entry); f != nil {
		flags = append(flags, *f)
	}
	if f := e.classificationConflict(item, cand); f != nil {
		flags = append(flags, *f)
	}
	if cand.OutOfClass {
		flags = append(flags, model.Flag{
			Type:     model.FlagOutOfClassMatch,
			Severity: model.SeverityCritical,
			Message:  "candidate found by relaxing classification blocking",
		})
	}

	if age := now.Sub(entry.ValidFrom); age > time.Duration(e.flags.StalePriceAfterDays)*24*time.Hour {
		flags = append(flags, model.Flag{
			Type:     model.FlagStalePrice,
			Severity: model.SeverityAdvisory,
			Message:  fmt.Sprintf("price version dated %s is older than %d days", entry.ValidFrom.Format("2006-01-02"), e.flags.StalePriceAfterDays),
		})
	}
	if entry.Currency != "" && entry.Currency != e.flags.DefaultCurrency {
		flags = append(flags, model.Flag{
			Type:     model.FlagForeignCurrency,
			Severity: model.SeverityAdvisory,
			Message:  fmt.Sprintf("price is in %s, default currency is %s", entry.Currency, e.flags.DefaultCurrency),
		})
	}
	if entry.VATRate == nil {
		flags = append(flags, model.Flag{
			Type:     model.FlagMissingTaxRate,
			Severity: model.SeverityAdvisory,
			Message:  "price entry carries no VAT rate",
		})
	}
	if entry.Annotation != "" {
		flags = append(flags, model.Flag{
			Type:     model.FlagVendorAnnotation,
			Severity: model.SeverityAdvisory,
			Message:  "vendor annotation present: " + entry.Annotation,
		})
	}

	return flags
}

func (e *FlagEngine) unitConflict(item *model.Item, entry *model.PriceEntry) *model.Flag {
	iu, eu := e.norm.NormalizeUnit(item.Unit), e.norm.NormalizeUnit(entry.Unit)
	if iu == "" || eu == "" || iu == eu {
		return nil
	}
	return &model.Flag{
		Type:     model.FlagUnitConflict,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("item unit %q does not match price unit %q", iu, eu),
	}
}

func (e *FlagEngine) dimensionConflicts(item *model.Item, entry *model.PriceEntry) []model.Flag {
	checks := []struct {
		want *float64
		got  *float64
		name string
	}{
		{item.WidthMM, entry.WidthMM, "width"},
		{item.HeightMM, entry.HeightMM, "height"},
		{item.DiameterMM, entry.DiameterMM, "diameter"},
	}

	var flags []model.Flag
	for _, check := range checks {
		if check.want == nil || check.got == nil {
			continue
		}
		if diff := math.Abs(*check.want - *check.got); diff > e.limits.DimensionTolMM {
			flags = append(flags, model.Flag{
				Type:     model.FlagDimensionConflict,
				Severity: model.SeverityCritical,
				Message:  fmt.Sprintf("%s differs by %.1f mm, tolerance is %.1f mm", check.name, diff, e.limits.DimensionTolMM),
			})
		}
	}
	return flags
}

func (e *FlagEngine) angleConflict(item *model.Item, entry *model.PriceEntry) *model.Flag {
	if item.AngleDeg == nil || entry.AngleDeg == nil {
		return nil
	}
	diff := math.Abs(*item.AngleDeg - *entry.AngleDeg)
	if diff <= e.limits.AngleTolDeg {
		return nil
	}
	return &model.Flag{
		Type:     model.FlagAngleConflict,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("angle differs by %.1f°, tolerance is %.1f°", diff, e.limits.AngleTolDeg),
	}
}

func (e *FlagEngine) materialConflict(item *model.Item, entry *model.PriceEntry) *model.Flag {
	im, em := e.norm.NormalizeText(item.Material), e.norm.NormalizeText(entry.Material)
	if im == "" || em == "" || im == em {
		return nil
	}
	return &model.Flag{
		Type:     model.FlagMaterialConflict,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("item material %q does not match price material %q", im, em),
	}
}

// classificationConflict is a safety net: blocking should make it rare, and
// escape-hatch candidates get their own flag instead.
func (e *FlagEngine) classificationConflict(item *model.Item, cand model.Candidate) *model.Flag {
	if cand.OutOfClass || item.Code == nil {
		return nil
	}
	if *item.Code == cand.Entry.Code {
		return nil
	}
	return &model.Flag{
		Type:     model.FlagClassificationConflict,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("item code %d does not match price code %d", *item.Code, cand.Entry.Code),
	}
}
