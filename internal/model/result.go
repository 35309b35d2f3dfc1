package model

import "time"

// Decision is the terminal outcome of routing one (item, candidate) pair.
type Decision string

const (
	// DecisionAutoAccepted means the match was accepted without review and
	// written to the mapping memory.
	DecisionAutoAccepted Decision = "AUTO_ACCEPTED"
	// DecisionManualReview means the match needs a human decision.
	DecisionManualReview Decision = "MANUAL_REVIEW"
	// DecisionRejected means no viable candidate existed.
	DecisionRejected Decision = "REJECTED"
)

// MatchMethod records which step of the confidence waterfall produced the
// score.
type MatchMethod string

const (
	// MethodExactID means a manufacturer part number or vendor SKU matched.
	MethodExactID MatchMethod = "EXACT_ID"
	// MethodMemory means the mapping memory resolved the canonical key.
	MethodMemory MatchMethod = "MEMORY"
	// MethodWeightedFuzzy means the weighted field comparison scored the pair.
	MethodWeightedFuzzy MatchMethod = "WEIGHTED_FUZZY"
	// MethodWeightedFuzzyBonus is weighted fuzzy scoring where exact-match
	// bonus points were applied.
	MethodWeightedFuzzyBonus MatchMethod = "WEIGHTED_FUZZY_BONUS"
	// MethodNone means no candidate was scored.
	MethodNone MatchMethod = "NONE"
)

// MatchResult is the append-only record of one routing decision for one
// item in one matching run. Results are never updated; the latest result
// per item is derived by timestamp ordering.
type MatchResult struct {
	CreatedAt    time.Time
	ID           string
	TenantID     string
	ItemID       string
	PriceEntryID string // Empty when no candidate was chosen
	Method       MatchMethod
	Decision     Decision
	Reason       string
	Actor        string
	Flags        []Flag
	Score        int
}
