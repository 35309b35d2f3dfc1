package model

// FlagSeverity distinguishes conditions that veto auto-acceptance from
// conditions that are merely surfaced to reviewers.
type FlagSeverity string

const (
	// SeverityCritical flags unconditionally prevent auto-acceptance.
	SeverityCritical FlagSeverity = "CRITICAL_VETO"
	// SeverityAdvisory flags are informational and do not block acceptance
	// on their own, though any flag disqualifies a pair from auto-accept.
	SeverityAdvisory FlagSeverity = "ADVISORY"
)

// FlagType identifies a business-risk condition.
type FlagType string

// Critical-veto flag types.
const (
	FlagUnitConflict           FlagType = "UNIT_CONFLICT"
	FlagDimensionConflict      FlagType = "DIMENSION_CONFLICT"
	FlagAngleConflict          FlagType = "ANGLE_CONFLICT"
	FlagMaterialConflict       FlagType = "MATERIAL_CONFLICT"
	FlagClassificationConflict FlagType = "CLASSIFICATION_CONFLICT"
	FlagOutOfClassMatch        FlagType = "OUT_OF_CLASS_MATCH"
)

// Advisory flag types.
const (
	FlagStalePrice       FlagType = "STALE_PRICE"
	FlagForeignCurrency  FlagType = "FOREIGN_CURRENCY"
	FlagMissingTaxRate   FlagType = "MISSING_TAX_RATE"
	FlagVendorAnnotation FlagType = "VENDOR_ANNOTATION"
)

// Flag records one risk condition found on an (item, candidate) pair.
// Flags are recomputed per evaluation and persisted only inside a
// MatchResult.
type Flag struct {
	Type     FlagType
	Severity FlagSeverity
	Message  string
}

// HasCriticalFlag reports whether any flag in the list is a critical veto.
func HasCriticalFlag(flags []Flag) bool {
	for _, f := range flags {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
