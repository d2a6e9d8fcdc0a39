// Package miner turns version-control history into labeled before/after test
// cases. One unusable commit never aborts a batch: it is logged and skipped.
package miner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/config"
	"github.com/xkilldash9x/patchbench/internal/vcs"
)

// History is the slice of the version-control collaborator the miner needs.
// *vcs.Git satisfies it.
type History interface {
	ListCommits(ctx context.Context, filter *regexp.Regexp, since time.Time, max int) ([]vcs.Commit, error)
	Parent(ctx context.Context, hash string) (string, error)
	ChangedFiles(ctx context.Context, from, to string) ([]string, error)
	Diff(ctx context.Context, from, to string) (string, error)
	FileAt(ctx context.Context, commit, path string) (string, error)
}

// Miner mines fix-like commits into evaluation test cases.
type Miner struct {
	logger  *zap.Logger
	history History
	cfg     config.MinerConfig
}

// NewMiner creates a miner over the given history.
func NewMiner(logger *zap.Logger, history History, cfg config.MinerConfig) *Miner {
	return &Miner{
		logger:  logger.Named("miner"),
		history: history,
		cfg:     cfg,
	}
}

// Mine enumerates fix-like commits within the lookback window, newest first,
// and builds a test case from each one it can fully resolve. Partial results
// are expected; per-commit failures are logged and skipped.
func (m *Miner) Mine(ctx context.Context) ([]schemas.TestCase, error) {
	filter, err := regexp.Compile(m.cfg.MessageFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid commit message filter %q: %w", m.cfg.MessageFilter, err)
	}

	since := time.Time{}
	if m.cfg.Lookback > 0 {
		since = time.Now().Add(-m.cfg.Lookback)
	}

	commits, err := m.history.ListCommits(ctx, filter, since, m.cfg.MaxCommits)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate fix commits: %w", err)
	}
	m.logger.Info("Enumerated fix-like commits.", zap.Int("count", len(commits)))

	var cases []schemas.TestCase
	for _, commit := range commits {
		tc, err := m.buildCase(ctx, commit)
		if err != nil {
			m.logger.Warn("Skipping unusable commit.",
				zap.String("commit", commit.Hash),
				zap.Error(err))
			continue
		}
		if tc == nil {
			m.logger.Debug("Commit yielded no usable test case.", zap.String("commit", commit.Hash))
			continue
		}
		cases = append(cases, *tc)
	}
	m.logger.Info("Mining complete.", zap.Int("cases", len(cases)))
	return cases, nil
}

// buildCase mines one commit. A nil, nil return means the commit is valid but
// not usable as a test case (e.g. no readable source file in the parent).
func (m *Miner) buildCase(ctx context.Context, commit vcs.Commit) (*schemas.TestCase, error) {
	parent, err := m.history.Parent(ctx, commit.Hash)
	if err != nil {
		return nil, err
	}

	changed, err := m.history.ChangedFiles(ctx, parent, commit.Hash)
	if err != nil {
		return nil, err
	}

	diff, err := m.history.Diff(ctx, parent, commit.Hash)
	if err != nil {
		return nil, err
	}

	affected, testFiles := m.partitionFiles(changed)
	report := m.buildReport(commit, changed, affected, testFiles, diff)

	before := schemas.RepoState{Commit: parent, Files: map[string]string{}, FailingTests: testFiles}
	after := schemas.RepoState{Commit: commit.Hash, Files: map[string]string{}, PassingTests: testFiles}
	for _, path := range affected {
		beforeContent, err := m.history.FileAt(ctx, parent, path)
		if err != nil {
			// Added in the fix commit, or otherwise unreadable. Skip the file.
			continue
		}
		afterContent, err := m.history.FileAt(ctx, commit.Hash, path)
		if err != nil {
			continue
		}
		before.Files[path] = beforeContent
		after.Files[path] = afterContent
	}
	if len(before.Files) == 0 {
		// A commit that only touched undiscoverable files is not a usable
		// test case.
		return nil, nil
	}

	return &schemas.TestCase{
		ID:         "case-" + shortHash(commit.Hash),
		Bug:        report,
		Before:     before,
		After:      after,
		HumanPatch: diff,
		Difficulty: DeriveDifficulty(CountDiffLines(diff), len(affected)),
	}, nil
}

// partitionFiles splits changed paths into affected source files and test
// files. A test file with a source extension lands only in the test bucket.
func (m *Miner) partitionFiles(changed []string) (affected, testFiles []string) {
	for _, path := range changed {
		if m.isTestFile(path) {
			testFiles = append(testFiles, path)
			continue
		}
		if m.hasSourceExt(path) {
			affected = append(affected, path)
		}
	}
	return affected, testFiles
}

func (m *Miner) hasSourceExt(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range m.cfg.SourceExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (m *Miner) isTestFile(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range m.cfg.TestMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (m *Miner) buildReport(commit vcs.Commit, changed, affected, testFiles []string, diff string) schemas.BugReport {
	title, _, _ := strings.Cut(commit.Message, "\n")
	return schemas.BugReport{
		ID:          uuid.New().String(),
		Title:       title,
		Description: commit.Message,
		ReproductionSteps: []string{
			fmt.Sprintf("Check out commit %s", shortHash(commit.Hash)+"^"),
			"Run the project test suite",
			"Observe the failing tests listed in the before state",
		},
		ExpectedBehavior: "All tests pass after the fix is applied",
		ActualBehavior:   fmt.Sprintf("Behavior described by: %s", title),
		AffectedFiles:    affected,
		TestFiles:        testFiles,
		Severity:         DeriveSeverity(commit.Message, diff),
		Category:         DeriveCategory(commit.Message, changed),
		CreatedAt:        commit.When,
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
