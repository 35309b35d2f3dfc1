package match

import (
	"fmt"
	"strings"

	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
)

// Router turns a score and flag list into one of three terminal decisions.
// There are no intermediate states: one evaluation, one decision, always
// with a persisted reason.
type Router struct {
	cfg config.RouterConfig
}

// NewRouter creates a router with the given thresholds.
func NewRouter(cfg config.RouterConfig) *Router {
	return &Router{cfg: cfg}
}

// Route decides the outcome for one scored pair:
//   - auto-accepted: score at or above the accept threshold and zero flags
//     of any severity
//   - manual-review: score at or above the review threshold, or any flag
//     present
//   - rejected: otherwise
//
// Any critical-veto flag forces non-acceptance regardless of score.
func (r *Router) Route(score int, flags []model.Flag) (model.Decision, string) {
	critical := model.HasCriticalFlag(flags)

	switch {
	case score >= r.cfg.AcceptThreshold && len(flags) == 0:
		return model.DecisionAutoAccepted,
			fmt.Sprintf("score %d meets accept threshold %d with no flags", score, r.cfg.AcceptThreshold)

	case critical:
		return model.DecisionManualReview,
			fmt.Sprintf("critical veto (%s) forces review at score %d", flagSummary(flags, model.SeverityCritical), score)

	case len(flags) > 0:
		return model.DecisionManualReview,
			fmt.Sprintf("advisory flags (%s) require review at score %d", flagSummary(flags, model.SeverityAdvisory), score)

	case score >= r.cfg.ReviewThreshold:
		return model.DecisionManualReview,
			fmt.Sprintf("score %d is below accept threshold %d but above review threshold %d",
				score, r.cfg.AcceptThreshold, r.cfg.ReviewThreshold)

	default:
		return model.DecisionRejected,
			fmt.Sprintf("score %d is below review threshold %d and no flags justify review", score, r.cfg.ReviewThreshold)
	}
}

// RouteNoCandidate is the decision for items with an empty candidate set.
// Zero candidates is a normal outcome that always goes to review, never a
// silent rejection.
func (r *Router) RouteNoCandidate() (model.Decision, string) {
	return model.DecisionManualReview, "no candidates qualified; manual selection required"
}

func flagSummary(flags []model.Flag, severity model.FlagSeverity) string {
	var names []string
	for _, f := range flags {
		if f.Severity == severity {
			names = append(names, string(f.Type))
		}
	}
	return strings.Join(names, ", ")
}
