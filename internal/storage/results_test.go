package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/model"
)

func testResult(itemID string, decision model.Decision, createdAt time.Time) *model.MatchResult {
	return &model.MatchResult{
		TenantID:     "t1",
		ItemID:       itemID,
		PriceEntryID: "price-1",
		Score:        90,
		Method:       model.MethodWeightedFuzzy,
		Decision:     decision,
		Reason:       "test reason",
		Actor:        "test",
		CreatedAt:    createdAt,
	}
}

func TestSaveMatchResultRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	result := testResult("item-1", model.DecisionManualReview, time.Time{})
	result.Flags = []model.Flag{
		{Type: model.FlagUnitConflict, Severity: model.SeverityCritical, Message: "m vs ea"},
		{Type: model.FlagStalePrice, Severity: model.SeverityAdvisory, Message: "old price"},
	}
	require.NoError(t, store.SaveMatchResult(ctx, result))
	assert.NotEmpty(t, result.ID)
	assert.False(t, result.CreatedAt.IsZero())

	got, err := store.GetLatestMatchResult(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, result.Decision, got.Decision)
	assert.Equal(t, result.Method, got.Method)
	assert.Equal(t, result.Score, got.Score)
	assert.Equal(t, result.Reason, got.Reason)
	require.Len(t, got.Flags, 2)
	assert.Equal(t, model.FlagUnitConflict, got.Flags[0].Type)
	assert.Equal(t, model.SeverityCritical, got.Flags[0].Severity)
}

func TestResultsAreAppendOnly(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveMatchResult(ctx, testResult("item-1", model.DecisionManualReview, base)))
	require.NoError(t, store.SaveMatchResult(ctx, testResult("item-1", model.DecisionAutoAccepted, base.Add(time.Hour))))

	latest, err := store.GetLatestMatchResult(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAutoAccepted, latest.Decision)

	// Both rows survive; re-matching never rewrites history.
	var count int
	require.NoError(t, store.db.QueryRow(
		"SELECT COUNT(*) FROM match_results WHERE item_id = ?", "item-1").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestGetLatestMatchResultNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetLatestMatchResult(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetMatchResultsByDecisionUsesLatestPerItem(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	// item-1 was reviewed, then re-matched and accepted: it must not
	// appear in the review queue any more.
	require.NoError(t, store.SaveMatchResult(ctx, testResult("item-1", model.DecisionManualReview, base)))
	require.NoError(t, store.SaveMatchResult(ctx, testResult("item-1", model.DecisionAutoAccepted, base.Add(time.Hour))))
	require.NoError(t, store.SaveMatchResult(ctx, testResult("item-2", model.DecisionManualReview, base)))

	review, err := store.GetMatchResultsByDecision(ctx, "t1", model.DecisionManualReview)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "item-2", review[0].ItemID)

	accepted, err := store.GetMatchResultsByDecision(ctx, "t1", model.DecisionAutoAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "item-1", accepted[0].ItemID)
}

func TestSaveMatchResultValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	bad := testResult("item-1", model.DecisionAutoAccepted, time.Time{})
	bad.Score = 101
	assert.ErrorIs(t, store.SaveMatchResult(ctx, bad), ErrInvalidResult)

	missing := testResult("item-1", "", time.Time{})
	assert.ErrorIs(t, store.SaveMatchResult(ctx, missing), ErrInvalidResult)
}
