package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/model"
)

func TestRoute(t *testing.T) {
	r := NewRouter(config.Default().Router)

	critical := []model.Flag{{Type: model.FlagUnitConflict, Severity: model.SeverityCritical}}
	advisory := []model.Flag{{Type: model.FlagStalePrice, Severity: model.SeverityAdvisory}}

	tests := []struct {
		name  string
		flags []model.Flag
		score int
		want  model.Decision
	}{
		{"high score no flags auto-accepts", nil, 95, model.DecisionAutoAccepted},
		{"accept threshold is inclusive", nil, 85, model.DecisionAutoAccepted},
		{"just below accept goes to review", nil, 84, model.DecisionManualReview},
		{"review threshold is inclusive", nil, 70, model.DecisionManualReview},
		{"below review with no flags rejects", nil, 69, model.DecisionRejected},
		{"critical veto overrides any score", critical, 100, model.DecisionManualReview},
		{"advisory flag blocks auto-accept", advisory, 95, model.DecisionManualReview},
		{"advisory flag rescues a low score", advisory, 40, model.DecisionManualReview},
		{"critical flag rescues a low score", critical, 10, model.DecisionManualReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, reason := r.Route(tt.score, tt.flags)
			assert.Equal(t, tt.want, decision)
			assert.NotEmpty(t, reason, "every decision carries a reason")
		})
	}
}

func TestRouteReasonNamesFlags(t *testing.T) {
	r := NewRouter(config.Default().Router)

	_, reason := r.Route(95, []model.Flag{
		{Type: model.FlagUnitConflict, Severity: model.SeverityCritical},
	})
	assert.Contains(t, reason, string(model.FlagUnitConflict))
}

func TestRouteNoCandidate(t *testing.T) {
	r := NewRouter(config.Default().Router)

	decision, reason := r.RouteNoCandidate()
	assert.Equal(t, model.DecisionManualReview, decision)
	assert.NotEmpty(t, reason)
}
