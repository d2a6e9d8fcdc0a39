// File: internal/evaluation/runner.go
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/config"
	"github.com/xkilldash9x/patchbench/internal/generator"
	"github.com/xkilldash9x/patchbench/internal/request"
	"github.com/xkilldash9x/patchbench/internal/selection"
	"github.com/xkilldash9x/patchbench/internal/vcs"
)

// PatchApplier is the transactional apply surface the runner drives.
type PatchApplier interface {
	Apply(ctx context.Context, candidate schemas.GeneratedPatch, req schemas.PatchRequest) (*schemas.PatchValidationResult, error)
}

// TreeState exposes the worktree cleanliness check used by the dirty-tree
// guard.
type TreeState interface {
	IsDirty() (bool, error)
}

// Runner drives a batch evaluation. Request building, candidate generation,
// and selection run concurrently across cases; the working tree is a shared
// resource, so apply cycles run strictly one at a time, in case order.
type Runner struct {
	logger    *zap.Logger
	cfg       config.EvaluationConfig
	repoCfg   config.RepoConfig
	builder   *request.Builder
	generator schemas.CandidateGenerator
	selector  *selection.Engine
	applier   PatchApplier
	tree      TreeState
}

func NewRunner(
	logger *zap.Logger,
	cfg config.EvaluationConfig,
	repoCfg config.RepoConfig,
	builder *request.Builder,
	gen schemas.CandidateGenerator,
	selector *selection.Engine,
	app PatchApplier,
	tree TreeState,
) *Runner {
	return &Runner{
		logger:    logger.Named("evaluation"),
		cfg:       cfg,
		repoCfg:   repoCfg,
		builder:   builder,
		generator: gen,
		selector:  selector,
		applier:   app,
		tree:      tree,
	}
}

// Run evaluates mined test cases. It returns one CaseResult per input case
// in input order. The only error returns are the dirty-tree guard and a
// failed restore, which aborts the batch; every other failure becomes a
// failed result so one bad case cannot sink the run.
func (r *Runner) Run(ctx context.Context, cases []schemas.TestCase) ([]CaseResult, error) {
	if err := r.guardDirty(); err != nil {
		return nil, err
	}

	results := make([]CaseResult, len(cases))
	requests := make([]schemas.PatchRequest, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())
	for i, tc := range cases {
		g.Go(func() error {
			requests[i] = r.builder.FromTestCase(tc)
			results[i] = r.prepare(gctx, tc, requests[i])
			return nil
		})
	}
	// Goroutines never return an error; per-case failures land in results.
	_ = g.Wait()

	return r.applySerially(ctx, results, requests)
}

// RunLive evaluates already-parsed live test failures, wrapping each in a
// synthetic case so the outcomes aggregate the same way mined cases do.
func (r *Runner) RunLive(ctx context.Context, liveFailures []schemas.TestFailure) ([]CaseResult, error) {
	if err := r.guardDirty(); err != nil {
		return nil, err
	}

	results := make([]CaseResult, len(liveFailures))
	requests := make([]schemas.PatchRequest, len(liveFailures))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())
	for i, failure := range liveFailures {
		g.Go(func() error {
			requests[i] = r.builder.FromFailure(failure)
			results[i] = r.prepare(gctx, syntheticCase(failure), requests[i])
			return nil
		})
	}
	_ = g.Wait()

	return r.applySerially(ctx, results, requests)
}

// prepare runs the non-mutating stages for one case: generate candidates and
// select a winner. Generator errors and empty candidate lists degrade to a
// zero-confidence error patch so the pipeline always has something to
// record.
func (r *Runner) prepare(ctx context.Context, tc schemas.TestCase, req schemas.PatchRequest) CaseResult {
	result := CaseResult{Case: tc}

	candidates, err := r.generator.Generate(ctx, req)
	if err != nil || len(candidates) == 0 {
		if err == nil {
			err = errors.New("generator returned no candidates")
		}
		r.logger.Warn("Candidate generation failed; recording error patch.",
			zap.String("case_id", tc.ID), zap.Error(err))
		candidates = []schemas.GeneratedPatch{generator.NewErrorPatch(req, err)}
	}

	sel, err := r.selector.Select(ctx, candidates, r.selector.ContextFor(req.Failure.Type))
	if err != nil {
		result.Err = fmt.Sprintf("selection failed: %v", err)
		return result
	}
	result.Selection = sel
	return result
}

// applySerially runs the mutating stage for every prepared case, one at a
// time. A restore failure is fatal and aborts the batch with the results
// collected so far.
func (r *Runner) applySerially(ctx context.Context, results []CaseResult, requests []schemas.PatchRequest) ([]CaseResult, error) {
	for i := range results {
		if results[i].Err != "" || results[i].Selection == nil {
			continue
		}
		selected := results[i].Selection.Selected
		if len(selected.ModifiedFiles) == 0 {
			// Nothing to write; applying would just re-run the failing
			// suite. Record the candidate as a failed attempt instead.
			results[i].Validation = &schemas.PatchValidationResult{
				CandidateID:   selected.ID,
				ErrorMessages: []string{"candidate contains no file changes"},
			}
			continue
		}

		validation, err := r.applier.Apply(ctx, selected, requests[i])
		if err != nil {
			if errors.Is(err, vcs.ErrRestoreFailed) {
				r.logger.Error("Working tree restore failed; aborting batch.",
					zap.String("case_id", results[i].Case.ID), zap.Error(err))
				return results, err
			}
			results[i].Err = err.Error()
			continue
		}
		results[i].Validation = validation
		r.logger.Info("Case evaluated.",
			zap.String("case_id", results[i].Case.ID),
			zap.Bool("success", validation.Success))
	}
	return results, nil
}

// guardDirty refuses to start a batch over a dirty tree unless the operator
// opted in. The snapshot/restore contract only holds from a known state.
func (r *Runner) guardDirty() error {
	if r.repoCfg.AllowDirty || r.tree == nil {
		return nil
	}
	dirty, err := r.tree.IsDirty()
	if err != nil {
		return fmt.Errorf("failed to check worktree state: %w", err)
	}
	if dirty {
		return errors.New("worktree has uncommitted changes; commit, stash, or pass --allow-dirty")
	}
	return nil
}

func (r *Runner) concurrency() int {
	if r.cfg.Concurrency > 0 {
		return r.cfg.Concurrency
	}
	return 4
}

// syntheticCase wraps a live failure in a minimal test case so live results
// share the aggregation path with mined ones.
func syntheticCase(failure schemas.TestFailure) schemas.TestCase {
	return schemas.TestCase{
		ID: "live-" + uuid.NewString()[:8],
		Bug: schemas.BugReport{
			Title:         failure.TestName,
			Description:   failure.ErrorMessage,
			AffectedFiles: failure.AffectedFiles,
			TestFiles:     []string{failure.TestFile},
			Severity:      schemas.SeverityMedium,
			Category:      categoryFor(failure.Type),
			CreatedAt:     time.Now().UTC(),
		},
		Difficulty: schemas.DifficultyMedium,
	}
}

func categoryFor(failureType schemas.FailureType) schemas.Category {
	switch failureType {
	case schemas.FailureCompilation:
		return schemas.CategoryCompilation
	case schemas.FailureRuntime, schemas.FailureTimeout:
		return schemas.CategoryRuntime
	default:
		return schemas.CategoryLogic
	}
}
