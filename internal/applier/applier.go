// File: internal/applier/applier.go
//
// Transactional patch application. The applier is the only component that
// mutates the working tree, and every apply runs inside a snapshot/restore
// bracket: whatever the candidate does to the tree, the pre-apply state comes
// back before Apply returns.
package applier

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/config"
	"github.com/xkilldash9x/patchbench/internal/failures"
	"github.com/xkilldash9x/patchbench/internal/vcs"
)

// Tree is the snapshot/restore surface the applier needs from version
// control.
type Tree interface {
	Snapshot(ctx context.Context, label string) (*vcs.Snapshot, error)
	Restore(ctx context.Context, snap *vcs.Snapshot) error
}

// execCommand runs one collaborator command in the repo root and returns its
// combined stdout+stderr.
type execCommand func(ctx context.Context, root string, argv []string) (string, error)

// Applier applies one candidate at a time. Callers must not run concurrent
// Apply cycles against the same tree; overlapping snapshots would corrupt
// each other.
type Applier struct {
	logger  *zap.Logger
	cfg     config.RunnerConfig
	root    string
	tree    Tree
	quality schemas.QualityAnalyzer
	exec    execCommand
}

// New builds an applier over the given tree. A nil analyzer falls back to
// DerivedQuality.
func New(logger *zap.Logger, cfg config.RunnerConfig, root string, tree Tree, analyzer schemas.QualityAnalyzer) *Applier {
	if analyzer == nil {
		analyzer = DerivedQuality{}
	}
	return &Applier{
		logger:  logger.Named("applier"),
		cfg:     cfg,
		root:    root,
		tree:    tree,
		quality: analyzer,
		exec:    runCommand,
	}
}

// Apply writes the candidate's files, builds, tests, and restores the tree.
// Write, build, and test failures land in the result, never in err. The only
// error returns are a failed snapshot (nothing was mutated) and a failed
// restore, which wraps vcs.ErrRestoreFailed and means the batch must abort.
func (a *Applier) Apply(ctx context.Context, candidate schemas.GeneratedPatch, req schemas.PatchRequest) (result *schemas.PatchValidationResult, err error) {
	start := time.Now()
	result = &schemas.PatchValidationResult{CandidateID: candidate.ID}
	defer func() { result.Duration = time.Since(start) }()

	snap, snapErr := a.tree.Snapshot(ctx, candidate.ID)
	if snapErr != nil {
		return nil, fmt.Errorf("failed to snapshot tree before apply: %w", snapErr)
	}
	defer func() {
		// The restore must run on every exit path, including timeouts and
		// cancellation, so it gets a context detached from the caller's.
		if rerr := a.tree.Restore(context.WithoutCancel(ctx), snap); rerr != nil {
			a.logger.Error("Working tree restore failed; tree integrity is no longer guaranteed.",
				zap.String("candidate_id", candidate.ID), zap.Error(rerr))
			err = rerr
		}
	}()

	if writeErr := a.writeFiles(candidate.ModifiedFiles); writeErr != nil {
		result.ErrorMessages = append(result.ErrorMessages, writeErr.Error())
		return result, nil
	}
	result.Applied = true

	result.Compiled = a.build(ctx, result)
	testsRan := false
	if result.Compiled {
		testsRan = a.test(ctx, req, result)
	}

	result.Quality = a.quality.Analyze(ctx, candidate, result)
	result.Success = result.Applied && result.Compiled && testsRan &&
		(result.Tests.Failed == 0 || len(result.Tests.FixedFailures) > 0)

	a.logger.Info("Candidate applied and verified.",
		zap.String("candidate_id", candidate.ID),
		zap.Bool("compiled", result.Compiled),
		zap.Bool("success", result.Success),
		zap.Int("tests_failed", result.Tests.Failed))
	return result, nil
}

// writeFiles writes every proposed file under the repo root, creating parent
// directories as needed.
func (a *Applier) writeFiles(files map[string]string) error {
	for path, content := range files {
		full := filepath.Join(a.root, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// build runs the configured build command. A missing command counts as a
// successful build; a timeout or nonzero exit is recorded and reported false.
func (a *Applier) build(ctx context.Context, result *schemas.PatchValidationResult) bool {
	if len(a.cfg.BuildCommand) == 0 {
		return true
	}
	buildCtx, cancel := withTimeout(ctx, a.cfg.BuildTimeout)
	defer cancel()

	out, err := a.exec(buildCtx, a.root, a.cfg.BuildCommand)
	if err == nil {
		return true
	}
	if buildCtx.Err() == context.DeadlineExceeded {
		result.ErrorMessages = append(result.ErrorMessages,
			fmt.Sprintf("build timed out after %s", a.cfg.BuildTimeout))
		return false
	}
	result.ErrorMessages = append(result.ErrorMessages,
		fmt.Sprintf("build failed: %v\n%s", err, truncate(out, 4000)))
	return false
}

// test runs the configured test command and deltas its failures against the
// failure the request set out to fix. Test failures are outcome, not error:
// a nonzero exit with parseable failures is a normal, completed run. It
// returns false when the run itself broke (timeout, or a nonzero exit with
// nothing parseable), since an empty failure list from a broken run must not
// read as "everything passed".
func (a *Applier) test(ctx context.Context, req schemas.PatchRequest, result *schemas.PatchValidationResult) bool {
	if len(a.cfg.TestCommand) == 0 {
		return true
	}
	testCtx, cancel := withTimeout(ctx, a.cfg.TestTimeout)
	defer cancel()

	out, err := a.exec(testCtx, a.root, a.cfg.TestCommand)
	if testCtx.Err() == context.DeadlineExceeded {
		result.ErrorMessages = append(result.ErrorMessages,
			fmt.Sprintf("tests timed out after %s", a.cfg.TestTimeout))
		return false
	}

	counts := failures.Summarize(out)
	result.Tests = deltaRun(counts, req.Failure.TestName)

	if err != nil && counts.Failed == 0 {
		result.ErrorMessages = append(result.ErrorMessages,
			fmt.Sprintf("test command failed: %v\n%s", err, truncate(out, 4000)))
		return false
	}
	return true
}

// deltaRun compares post-patch failures against the single failing test the
// request targets. A test failing now that was not the target is both a new
// failure and a regression; the target disappearing from the failure list
// counts as fixed.
func deltaRun(counts failures.RunCounts, targetTest string) schemas.TestRunSummary {
	summary := schemas.TestRunSummary{
		Total:  counts.Total,
		Passed: counts.Passed,
		Failed: counts.Failed,
	}

	stillFailing := false
	for _, name := range counts.FailedTests {
		if name == targetTest {
			stillFailing = true
			continue
		}
		summary.NewFailures = append(summary.NewFailures, name)
		summary.Regressions = append(summary.Regressions, name)
	}
	if targetTest != "" && !stillFailing {
		summary.FixedFailures = append(summary.FixedFailures, targetTest)
	}
	return summary
}

func runCommand(ctx context.Context, root string, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// withTimeout bounds ctx by d when d is positive; a zero timeout means the
// operator disabled the bound.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
