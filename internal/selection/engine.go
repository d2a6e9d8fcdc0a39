// Package selection scores and picks one candidate fix among several,
// using one of five interchangeable strategies.
package selection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/config"
)

// ErrNoCandidates is returned when the generator produced nothing to choose
// from.
var ErrNoCandidates = errors.New("selection: no candidates")

// Lead over the runner-up is converted into extra confidence at this rate.
const leadConfidenceFactor = 0.3

// Context carries the failure being fixed and the operator's preferences into
// a selection call.
type Context struct {
	FailureType    schemas.FailureType
	PreferredTypes []schemas.PatchType
	AvoidedTypes   []schemas.PatchType
}

// Engine selects candidates. Each engine owns its decision history, so
// multiple engines can score in parallel without interference.
type Engine struct {
	logger   *zap.Logger
	cfg      config.SelectionConfig
	strategy Strategy
	history  *decisionHistory
}

// NewEngine builds a selection engine from configuration.
func NewEngine(logger *zap.Logger, cfg config.SelectionConfig) *Engine {
	strategy := Strategy(cfg.Strategy)
	switch strategy {
	case StrategyWeighted, StrategyRules, StrategyLearned, StrategyHybrid, StrategyUserGuided:
	default:
		strategy = StrategyWeighted
	}
	return &Engine{
		logger:   logger.Named("selection"),
		cfg:      cfg,
		strategy: strategy,
		history:  newDecisionHistory(cfg.HistorySize),
	}
}

// ContextFor derives the selection context for a failure from the engine's
// configured type preferences.
func (e *Engine) ContextFor(failureType schemas.FailureType) Context {
	return Context{
		FailureType:    failureType,
		PreferredTypes: toPatchTypes(e.cfg.PreferredTypes),
		AvoidedTypes:   toPatchTypes(e.cfg.AvoidedTypes),
	}
}

// Select picks the best candidate. It fails only when the list is empty; a
// single candidate short-circuits to a trivial result.
func (e *Engine) Select(ctx context.Context, candidates []schemas.GeneratedPatch, selCtx Context) (*schemas.SelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	start := time.Now()

	if len(candidates) == 1 {
		only := candidates[0]
		e.record(selCtx, only)
		return &schemas.SelectionResult{
			Selected:        only,
			Justification:   "only candidate supplied",
			ConfidenceScore: only.Confidence,
			Metrics: schemas.SelectionMetrics{
				Scores:     map[string]float64{only.ID: only.Confidence},
				Duration:   time.Since(start),
				Algorithms: []string{"short-circuit"},
			},
			Recommendations: e.recommendations(only, nil),
		}, nil
	}

	var (
		rank      ranking
		unanimous bool
	)
	algorithms := []string{string(e.strategy)}
	switch e.strategy {
	case StrategyRules:
		rank = e.rankRules(candidates, selCtx)
	case StrategyLearned:
		rank = e.rankLearned(candidates, selCtx)
	case StrategyHybrid:
		rank, unanimous = e.rankHybrid(candidates, selCtx)
		algorithms = []string{string(StrategyWeighted), string(StrategyRules), string(StrategyLearned), string(StrategyHybrid)}
	case StrategyUserGuided:
		rank = e.rankUserGuided(candidates, selCtx)
	default:
		rank = e.rankWeighted(candidates, selCtx)
	}

	selected := candidates[rank.winner]
	alternatives := make([]schemas.GeneratedPatch, 0, len(candidates)-1)
	for i, p := range candidates {
		if i != rank.winner {
			alternatives = append(alternatives, p)
		}
	}

	justification := fmt.Sprintf("selected by %s strategy with score %.3f",
		rank.algorithm, rank.scores[selected.ID])
	if unanimous {
		justification = "all strategies unanimously agreed on this candidate"
	}

	result := &schemas.SelectionResult{
		Selected:        selected,
		Justification:   justification,
		Alternatives:    alternatives,
		ConfidenceScore: e.boostedConfidence(selected, rank),
		Metrics: schemas.SelectionMetrics{
			Scores:     rank.scores,
			Criteria:   rank.criteria,
			Duration:   time.Since(start),
			Algorithms: algorithms,
		},
		Recommendations: e.recommendations(selected, alternatives),
	}

	e.record(selCtx, selected)
	e.logger.Debug("Candidate selected.",
		zap.String("candidate_id", selected.ID),
		zap.String("strategy", string(e.strategy)),
		zap.Float64("confidence_score", result.ConfidenceScore))
	return result, nil
}

// boostedConfidence reports the pick's confidence, boosted by how far its
// score leads the runner-up: min(1, confidence + 0.3*(top-second)).
func (e *Engine) boostedConfidence(selected schemas.GeneratedPatch, rank ranking) float64 {
	top := rank.scores[selected.ID]
	second := math.Inf(-1)
	for id, score := range rank.scores {
		if id != selected.ID && score > second {
			second = score
		}
	}
	lead := top - second
	if math.IsInf(second, -1) || lead < 0 {
		lead = 0
	}
	return math.Min(1, selected.Confidence+leadConfidenceFactor*lead)
}

// recommendations emits advisory notes about the pick for a human reviewer.
func (e *Engine) recommendations(selected schemas.GeneratedPatch, alternatives []schemas.GeneratedPatch) []string {
	var recs []string
	for _, alt := range alternatives {
		if math.Abs(alt.Confidence-selected.Confidence) < 0.1 {
			recs = append(recs, fmt.Sprintf(
				"alternative %s has nearly identical confidence (%.2f vs %.2f); consider manual review",
				alt.ID, alt.Confidence, selected.Confidence))
		}
	}
	if selected.Impact.LinesChanged > 50 {
		recs = append(recs, fmt.Sprintf(
			"selected patch changes %d lines; verify the blast radius before merging",
			selected.Impact.LinesChanged))
	}
	switch selected.Type {
	case schemas.PatchImportAddition:
		recs = append(recs, "patch adds imports; confirm the new dependencies are intended")
	case schemas.PatchRefactor:
		recs = append(recs, "refactoring patches warrant extra review beyond the passing tests")
	}
	return recs
}

// record appends the decision to the bounded history when learning is
// enabled.
func (e *Engine) record(selCtx Context, selected schemas.GeneratedPatch) {
	if !e.cfg.LearningEnabled {
		return
	}
	e.history.add(decision{
		FailureType: selCtx.FailureType,
		ChosenType:  selected.Type,
		Confidence:  selected.Confidence,
		At:          time.Now().UTC(),
	})
}

func toPatchTypes(names []string) []schemas.PatchType {
	types := make([]schemas.PatchType, 0, len(names))
	for _, name := range names {
		types = append(types, schemas.PatchType(name))
	}
	return types
}
