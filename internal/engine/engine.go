// Package engine orchestrates matching runs: classification, key
// generation, candidate retrieval, scoring, flagging, routing, and
// persistence of the resulting decisions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/costlink/costlink/internal/candidate"
	"github.com/costlink/costlink/internal/canonical"
	"github.com/costlink/costlink/internal/classify"
	"github.com/costlink/costlink/internal/common"
	"github.com/costlink/costlink/internal/match"
	"github.com/costlink/costlink/internal/model"
	"github.com/costlink/costlink/internal/service"
)

// Options configures a matching run.
type Options struct {
	Actor          string
	Workers        int
	CandidateLimit int
	ShowProgress   bool
	Retry          service.RetryOptions
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Actor:          "engine",
		Workers:        4,
		CandidateLimit: 25,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
		},
	}
}

// MatchingEngine wires the matching components together. Per-item
// evaluation is pure apart from read-only storage access, so items are
// processed concurrently; all writes happen on the collector goroutine,
// which serializes mapping-memory updates.
type MatchingEngine struct {
	storage    service.Storage
	classifier *classify.Classifier
	keys       *canonical.Generator
	candidates *candidate.Generator
	scorer     *match.Calculator
	flags      *match.FlagEngine
	router     *match.Router
	opts       Options
}

// New creates a matching engine with the given dependencies.
func New(
	storage service.Storage,
	classifier *classify.Classifier,
	keys *canonical.Generator,
	candidates *candidate.Generator,
	scorer *match.Calculator,
	flags *match.FlagEngine,
	router *match.Router,
	opts Options,
) *MatchingEngine {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.Actor == "" {
		opts.Actor = DefaultOptions().Actor
	}
	return &MatchingEngine{
		storage:    storage,
		classifier: classifier,
		keys:       keys,
		candidates: candidates,
		scorer:     scorer,
		flags:      flags,
		router:     router,
		opts:       opts,
	}
}

// itemOutcome carries one item's evaluation from a worker to the collector.
type itemOutcome struct {
	err    error
	result *model.MatchResult
	item   model.Item
	code   int
	key    string
}

// Run matches every unprocessed item in the tenant and returns run
// statistics. Per-item failures are logged and skipped; they never abort
// the run.
func (e *MatchingEngine) Run(ctx context.Context, tenantID string) (*service.MatchRunStats, error) {
	started := time.Now()

	items, err := e.storage.GetItemsToMatch(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	stats := &service.MatchRunStats{TotalItems: len(items)}
	if len(items) == 0 {
		slog.Info("No items to match", "tenant", tenantID)
		stats.Duration = time.Since(started)
		return stats, nil
	}

	slog.Info("Starting matching run",
		"tenant", tenantID,
		"items", len(items),
		"workers", e.opts.Workers)

	outcomes := e.evaluateParallel(ctx, items)

	var bar *progressbar.ProgressBar
	if e.opts.ShowProgress {
		bar = progressbar.Default(int64(len(items)), "matching")
	}

	for outcome := range outcomes {
		if bar != nil {
			_ = bar.Add(1)
		}

		if outcome.err != nil {
			stats.Failed++
			common.LogError(outcome.err, "Item evaluation failed, skipping", common.Fields{
				"item": outcome.item.ID,
			})
			continue
		}

		if err := e.persist(ctx, &outcome); err != nil {
			stats.Failed++
			common.LogError(err, "Failed to persist match outcome", common.Fields{
				"item": outcome.item.ID,
			})
			continue
		}

		switch outcome.result.Decision {
		case model.DecisionAutoAccepted:
			stats.AutoAccepted++
		case model.DecisionManualReview:
			stats.ManualReview++
		case model.DecisionRejected:
			stats.Rejected++
		}
	}

	stats.Duration = time.Since(started)
	slog.Info("Matching run complete",
		"tenant", tenantID,
		"total", stats.TotalItems,
		"auto_accepted", stats.AutoAccepted,
		"manual_review", stats.ManualReview,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
		"duration", stats.Duration)

	return stats, nil
}

// evaluateParallel fans items out to workers and returns the outcome
// channel. Workers only read; the caller persists.
func (e *MatchingEngine) evaluateParallel(ctx context.Context, items []model.Item) <-chan itemOutcome {
	workChan := make(chan model.Item, len(items))
	for _, item := range items {
		workChan <- item
	}
	close(workChan)

	outcomes := make(chan itemOutcome, len(items))

	var wg sync.WaitGroup
	wg.Add(e.opts.Workers)

	for i := 0; i < e.opts.Workers; i++ {
		go func() {
			defer wg.Done()
			for item := range workChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				outcomes <- e.evaluate(ctx, item)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}

// evaluate runs the read-only pipeline for one item: classify, derive the
// canonical key, retrieve candidates, score, flag, and route.
func (e *MatchingEngine) evaluate(ctx context.Context, item model.Item) itemOutcome {
	outcome := itemOutcome{item: item}

	code, err := e.classifier.Classify(&item)
	if err != nil {
		outcome.err = fmt.Errorf("classify: %w", err)
		return outcome
	}
	item.Code = &code
	outcome.code = code

	key, err := e.keys.Key(&item)
	if err != nil {
		outcome.err = fmt.Errorf("canonical key: %w", err)
		return outcome
	}
	item.CanonicalKey = key
	outcome.key = key

	candidates, err := e.candidates.Candidates(ctx, &item, e.opts.CandidateLimit)
	if err != nil {
		outcome.err = fmt.Errorf("candidates: %w", err)
		return outcome
	}

	now := time.Now().UTC()
	result := &model.MatchResult{
		TenantID:  item.TenantID,
		ItemID:    item.ID,
		Actor:     e.opts.Actor,
		CreatedAt: now,
	}

	if len(candidates) == 0 {
		decision, reason := e.router.RouteNoCandidate()
		result.Method = model.MethodNone
		result.Decision = decision
		result.Reason = reason
		outcome.result = result
		return outcome
	}

	best, err := e.pickBest(ctx, &item, candidates, now)
	if err != nil {
		outcome.err = err
		return outcome
	}

	decision, reason := e.router.Route(best.score, best.flags)
	result.PriceEntryID = best.cand.Entry.ID
	result.Score = best.score
	result.Method = best.method
	result.Decision = decision
	result.Flags = best.flags
	result.Reason = reason
	outcome.result = result
	return outcome
}

// scoredCandidate pairs a candidate with its evaluation.
type scoredCandidate struct {
	method model.MatchMethod
	flags  []model.Flag
	cand   model.Candidate
	score  int
}

// pickBest scores and flags every candidate and returns the winner. Ties
// break on fewest critical flags, then entry id, so reruns are stable.
func (e *MatchingEngine) pickBest(ctx context.Context, item *model.Item, candidates []model.Candidate, now time.Time) (*scoredCandidate, error) {
	scored := make([]scoredCandidate, 0, len(candidates))

	for _, cand := range candidates {
		score, method, err := e.scorer.Score(ctx, item, cand)
		if err != nil {
			return nil, fmt.Errorf("score candidate %s: %w", cand.Entry.ID, err)
		}
		scored = append(scored, scoredCandidate{
			cand:   cand,
			score:  score,
			method: method,
			flags:  e.flags.Evaluate(item, cand, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		ci := countCritical(scored[i].flags)
		cj := countCritical(scored[j].flags)
		if ci != cj {
			return ci < cj
		}
		return scored[i].cand.Entry.ID < scored[j].cand.Entry.ID
	})

	return &scored[0], nil
}

// persist writes one outcome: the item's classification, the append-only
// match result, and, for auto-accepted matches, the mapping-memory row.
// Running on the collector goroutine serializes mapping writes within a
// run; the partial unique index guards against writers outside it.
// Transient storage failures are retried with backoff; integrity and
// validation failures surface immediately.
func (e *MatchingEngine) persist(ctx context.Context, outcome *itemOutcome) error {
	err := common.WithRetry(ctx, func() error {
		return e.storage.UpdateItemClassification(ctx, outcome.item.ID, outcome.code, outcome.key)
	}, e.opts.Retry)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}

	err = common.WithRetry(ctx, func() error {
		return e.storage.SaveMatchResult(ctx, outcome.result)
	}, e.opts.Retry)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	if outcome.result.Decision != model.DecisionAutoAccepted {
		return nil
	}

	record := &model.MappingRecord{
		TenantID:     outcome.item.TenantID,
		CanonicalKey: outcome.key,
		PriceEntryID: outcome.result.PriceEntryID,
		Actor:        model.ActorAuto,
		CreatedBy:    e.opts.Actor,
		Reason:       outcome.result.Reason,
	}
	err = common.WithRetry(ctx, func() error {
		return e.storage.WriteMapping(ctx, record)
	}, e.opts.Retry)
	if err != nil {
		if errors.Is(err, common.ErrIntegrity) {
			// A concurrent writer won the race for this key. The accepted
			// result stands; the memory keeps the winner's row.
			slog.Warn("Mapping write lost a race, keeping existing row",
				"tenant", outcome.item.TenantID,
				"canonical_key", outcome.key)
			return nil
		}
		return fmt.Errorf("write mapping: %w", err)
	}
	return nil
}

func countCritical(flags []model.Flag) int {
	n := 0
	for _, f := range flags {
		if f.Severity == model.SeverityCritical {
			n++
		}
	}
	return n
}
