package evaluation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/config"
	"github.com/xkilldash9x/patchbench/internal/request"
	"github.com/xkilldash9x/patchbench/internal/selection"
	"github.com/xkilldash9x/patchbench/internal/vcs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGenerator returns one candidate per request, or a canned error.
type fakeGenerator struct {
	err   error
	empty bool
}

func (f *fakeGenerator) Generate(_ context.Context, req schemas.PatchRequest) ([]schemas.GeneratedPatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	return []schemas.GeneratedPatch{{
		ID:            "cand-" + req.Failure.TestName,
		Type:          schemas.PatchDirectFix,
		Confidence:    0.8,
		ModifiedFiles: map[string]string{"fix.go": "package main\n"},
		Validation:    schemas.ValidationReport{SyntaxValid: true, SemanticsValid: true},
	}}, nil
}

func (f *fakeGenerator) Close() error { return nil }

// fakeApplier records apply order and asserts no two cycles overlap.
type fakeApplier struct {
	mu      sync.Mutex
	active  int
	applied []string
	failID  string
	fatalID string
}

func (f *fakeApplier) Apply(_ context.Context, candidate schemas.GeneratedPatch, _ schemas.PatchRequest) (*schemas.PatchValidationResult, error) {
	f.mu.Lock()
	f.active++
	overlap := f.active > 1
	f.applied = append(f.applied, candidate.ID)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if overlap {
		return nil, errors.New("concurrent apply detected")
	}
	if candidate.ID == f.fatalID {
		return nil, fmt.Errorf("%w: stash pop conflicted", vcs.ErrRestoreFailed)
	}
	if candidate.ID == f.failID {
		return nil, errors.New("snapshot refused")
	}
	return &schemas.PatchValidationResult{CandidateID: candidate.ID, Applied: true, Compiled: true, Success: true}, nil
}

type fakeTreeState struct {
	dirty bool
	err   error
}

func (f *fakeTreeState) IsDirty() (bool, error) { return f.dirty, f.err }

func minedCase(id, testName string) schemas.TestCase {
	return schemas.TestCase{
		ID: id,
		Bug: schemas.BugReport{
			Title:    testName,
			Category: schemas.CategoryLogic,
			Severity: schemas.SeverityMedium,
		},
		Before:     schemas.RepoState{FailingTests: []string{testName}},
		Difficulty: schemas.DifficultyEasy,
	}
}

func newTestRunner(t *testing.T, gen schemas.CandidateGenerator, app PatchApplier, tree TreeState, repoCfg config.RepoConfig) *Runner {
	t.Helper()
	logger := zaptest.NewLogger(t)
	builder := request.NewBuilder(logger, t.TempDir(), schemas.ProjectContext{Language: "go"})
	engine := selection.NewEngine(logger, config.SelectionConfig{
		Strategy:    "weighted",
		ConfidenceW: 0.4, ImpactW: 0.3, ValidationW: 0.2, ContextW: 0.1,
	})
	return NewRunner(logger, config.EvaluationConfig{Concurrency: 2}, repoCfg, builder, gen, engine, app, tree)
}

func TestRun_BatchAppliesSeriallyInOrder(t *testing.T) {
	app := &fakeApplier{}
	r := newTestRunner(t, &fakeGenerator{}, app, &fakeTreeState{}, config.RepoConfig{})

	cases := []schemas.TestCase{
		minedCase("case-1", "TestAlpha"),
		minedCase("case-2", "TestBeta"),
		minedCase("case-3", "TestGamma"),
	}
	results, err := r.Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"cand-TestAlpha", "cand-TestBeta", "cand-TestGamma"}, app.applied)
	for i, res := range results {
		assert.Equal(t, cases[i].ID, res.Case.ID, "results keep input order")
		require.NotNil(t, res.Validation)
		assert.True(t, res.Passed())
	}

	summary := Aggregate(results)
	assert.InDelta(t, 1.0, summary.PassRate, 1e-9)
}

func TestRun_GeneratorErrorBecomesErrorPatch(t *testing.T) {
	app := &fakeApplier{}
	r := newTestRunner(t, &fakeGenerator{err: errors.New("model unavailable")}, app, &fakeTreeState{}, config.RepoConfig{})

	results, err := r.Run(context.Background(), []schemas.TestCase{minedCase("case-1", "TestAlpha")})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	require.NotNil(t, res.Selection)
	assert.Zero(t, res.Selection.Selected.Confidence)
	assert.Contains(t, res.Selection.Selected.Reasoning, "model unavailable")

	// An error patch has no file changes, so the tree is never touched.
	assert.Empty(t, app.applied)
	require.NotNil(t, res.Validation)
	assert.False(t, res.Passed())
	assert.Contains(t, res.Validation.ErrorMessages[0], "no file changes")
}

func TestRun_EmptyCandidateListBehavesLikeGeneratorError(t *testing.T) {
	app := &fakeApplier{}
	r := newTestRunner(t, &fakeGenerator{empty: true}, app, &fakeTreeState{}, config.RepoConfig{})

	results, err := r.Run(context.Background(), []schemas.TestCase{minedCase("case-1", "TestAlpha")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed())
	assert.Empty(t, app.applied)
}

func TestRun_DirtyTreeGuard(t *testing.T) {
	gen := &fakeGenerator{}
	app := &fakeApplier{}

	r := newTestRunner(t, gen, app, &fakeTreeState{dirty: true}, config.RepoConfig{})
	_, err := r.Run(context.Background(), []schemas.TestCase{minedCase("case-1", "TestAlpha")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uncommitted changes")
	assert.Empty(t, app.applied)

	allowed := newTestRunner(t, gen, app, &fakeTreeState{dirty: true}, config.RepoConfig{AllowDirty: true})
	_, err = allowed.Run(context.Background(), []schemas.TestCase{minedCase("case-1", "TestAlpha")})
	require.NoError(t, err)
	assert.Len(t, app.applied, 1)
}

func TestRun_RestoreFailureAbortsBatch(t *testing.T) {
	app := &fakeApplier{fatalID: "cand-TestAlpha"}
	r := newTestRunner(t, &fakeGenerator{}, app, &fakeTreeState{}, config.RepoConfig{})

	results, err := r.Run(context.Background(), []schemas.TestCase{
		minedCase("case-1", "TestAlpha"),
		minedCase("case-2", "TestBeta"),
	})
	require.ErrorIs(t, err, vcs.ErrRestoreFailed)
	assert.Equal(t, []string{"cand-TestAlpha"}, app.applied, "the batch stops at the failed restore")
	assert.Len(t, results, 2, "collected results are still returned")
}

func TestRun_NonFatalApplyErrorFailsOnlyThatCase(t *testing.T) {
	app := &fakeApplier{failID: "cand-TestAlpha"}
	r := newTestRunner(t, &fakeGenerator{}, app, &fakeTreeState{}, config.RepoConfig{})

	results, err := r.Run(context.Background(), []schemas.TestCase{
		minedCase("case-1", "TestAlpha"),
		minedCase("case-2", "TestBeta"),
	})
	require.NoError(t, err)
	assert.False(t, results[0].Passed())
	assert.Contains(t, results[0].Err, "snapshot refused")
	assert.True(t, results[1].Passed(), "one bad case cannot sink the batch")
}

func TestRunLive_WrapsFailuresInSyntheticCases(t *testing.T) {
	app := &fakeApplier{}
	r := newTestRunner(t, &fakeGenerator{}, app, &fakeTreeState{}, config.RepoConfig{})

	failures := []schemas.TestFailure{{
		TestName:     "TestCheckout",
		TestFile:     "checkout_test.ts",
		ErrorMessage: "TypeError: cart is not a function",
		Type:         schemas.FailureRuntime,
	}}
	results, err := r.RunLive(context.Background(), failures)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Contains(t, res.Case.ID, "live-")
	assert.Equal(t, "TestCheckout", res.Case.Bug.Title)
	assert.Equal(t, schemas.CategoryRuntime, res.Case.Bug.Category)
	assert.True(t, res.Passed())
}

func TestWriteAndReadReport(t *testing.T) {
	results := []CaseResult{
		caseResult(schemas.DifficultyEasy, schemas.CategoryLogic, schemas.SeverityLow, true, 0.9),
	}
	summary := Aggregate(results)
	path := filepath.Join(t.TempDir(), "reports", "eval.json")

	require.NoError(t, WriteReport(path, "/repo", results, summary))

	report, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, "/repo", report.RepoRoot)
	assert.Equal(t, 1, report.Summary.TotalTests)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Passed())
	assert.False(t, report.GeneratedAt.IsZero())
}
