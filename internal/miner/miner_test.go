package miner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/config"
	"github.com/xkilldash9x/patchbench/internal/vcs"
)

// fakeHistory is an in-memory History backed by hand-written commit data.
type fakeHistory struct {
	commits []vcs.Commit
	parents map[string]string
	changed map[string][]string
	diffs   map[string]string
	// files is keyed by "commit:path".
	files map[string]string
	// failing simulates per-commit collaborator failures.
	failing map[string]bool
}

func (f *fakeHistory) ListCommits(_ context.Context, filter *regexp.Regexp, _ time.Time, max int) ([]vcs.Commit, error) {
	var out []vcs.Commit
	for _, c := range f.commits {
		if filter != nil && !filter.MatchString(c.Message) {
			continue
		}
		out = append(out, c)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (f *fakeHistory) Parent(_ context.Context, hash string) (string, error) {
	if f.failing[hash] {
		return "", errors.New("git rev-list failed: unknown revision")
	}
	p, ok := f.parents[hash]
	if !ok {
		return "", errors.New("no parent")
	}
	return p, nil
}

func (f *fakeHistory) ChangedFiles(_ context.Context, _, to string) ([]string, error) {
	return f.changed[to], nil
}

func (f *fakeHistory) Diff(_ context.Context, _, to string) (string, error) {
	return f.diffs[to], nil
}

func (f *fakeHistory) FileAt(_ context.Context, commit, path string) (string, error) {
	content, ok := f.files[commit+":"+path]
	if !ok {
		return "", fmt.Errorf("file %s not readable at %s", path, commit)
	}
	return content, nil
}

func minerConfig() config.MinerConfig {
	return config.MinerConfig{
		Lookback:      30 * 24 * time.Hour,
		MessageFilter: `(?i)\bfix\b`,
		MaxCommits:    10,
		SourceExts:    []string{".go", ".ts"},
		TestMarkers:   []string{"_test", ".spec."},
	}
}

const sampleDiff = `--- a/pkg/cart.go
+++ b/pkg/cart.go
@@ -10,3 +10,3 @@
-	total := price
+	total := price * quantity
`

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		commits: []vcs.Commit{
			{Hash: "c2c2c2c2c2c2c2c2", Message: "fix: apply quantity when computing cart total", When: time.Now()},
			{Hash: "c1c1c1c1c1c1c1c1", Message: "add cart feature", When: time.Now().Add(-time.Hour)},
		},
		parents: map[string]string{"c2c2c2c2c2c2c2c2": "c1c1c1c1c1c1c1c1"},
		changed: map[string][]string{
			"c2c2c2c2c2c2c2c2": {"pkg/cart.go", "pkg/cart_test.go", "README.md"},
		},
		diffs: map[string]string{"c2c2c2c2c2c2c2c2": sampleDiff},
		files: map[string]string{
			"c1c1c1c1c1c1c1c1:pkg/cart.go": "package pkg\n\nfunc Total(price int) int { return price }\n",
			"c2c2c2c2c2c2c2c2:pkg/cart.go": "package pkg\n\nfunc Total(price, quantity int) int { return price * quantity }\n",
		},
		failing: map[string]bool{},
	}
}

func TestMiner_Mine_BuildsLabeledCase(t *testing.T) {
	t.Parallel()
	m := NewMiner(zaptest.NewLogger(t), newFakeHistory(), minerConfig())

	cases, err := m.Mine(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)

	tc := cases[0]
	assert.Equal(t, "case-c2c2c2c2c2c2", tc.ID)
	assert.Equal(t, "fix: apply quantity when computing cart total", tc.Bug.Title)
	// README.md has no source extension; cart_test.go is a test file.
	assert.Equal(t, []string{"pkg/cart.go"}, tc.Bug.AffectedFiles)
	assert.Equal(t, []string{"pkg/cart_test.go"}, tc.Bug.TestFiles)
	assert.Equal(t, "c1c1c1c1c1c1c1c1", tc.Before.Commit)
	assert.Contains(t, tc.Before.Files["pkg/cart.go"], "return price }")
	assert.Contains(t, tc.After.Files["pkg/cart.go"], "price * quantity")
	assert.Equal(t, []string{"pkg/cart_test.go"}, tc.Before.FailingTests)
	assert.Equal(t, sampleDiff, tc.HumanPatch)
	// 2 diff lines + 10*1 file = 12 -> easy.
	assert.Equal(t, schemas.DifficultyEasy, tc.Difficulty)
	assert.NotEmpty(t, tc.Bug.ID)
}

func TestMiner_Mine_SkipsUnreadableBeforeState(t *testing.T) {
	t.Parallel()
	h := newFakeHistory()
	// The only affected file did not exist in the parent commit.
	delete(h.files, "c1c1c1c1c1c1c1c1:pkg/cart.go")

	m := NewMiner(zaptest.NewLogger(t), h, minerConfig())
	cases, err := m.Mine(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestMiner_Mine_ContinuesPastBadCommit(t *testing.T) {
	t.Parallel()
	h := newFakeHistory()
	h.commits = append([]vcs.Commit{
		{Hash: "badbadbadbadbad1", Message: "fix: commit with broken history", When: time.Now()},
	}, h.commits...)
	h.failing["badbadbadbadbad1"] = true

	m := NewMiner(zaptest.NewLogger(t), h, minerConfig())
	cases, err := m.Mine(context.Background())
	require.NoError(t, err)
	// The bad commit is skipped, the good one still mined.
	require.Len(t, cases, 1)
	assert.Equal(t, "case-c2c2c2c2c2c2", cases[0].ID)
}

func TestMiner_Mine_RejectsBadFilter(t *testing.T) {
	t.Parallel()
	cfg := minerConfig()
	cfg.MessageFilter = `(unclosed`
	m := NewMiner(zaptest.NewLogger(t), newFakeHistory(), cfg)
	_, err := m.Mine(context.Background())
	assert.Error(t, err)
}

func TestDeriveDifficulty_Thresholds(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name      string
		diffLines int
		files     int
		want      schemas.Difficulty
	}{
		{"small single-file diff", 15, 1, schemas.DifficultyMedium}, // complexity 25
		{"tiny diff no files", 10, 0, schemas.DifficultyEasy},       // complexity 10
		{"upper easy boundary", 19, 0, schemas.DifficultyEasy},
		{"lower medium boundary", 20, 0, schemas.DifficultyMedium},
		{"lower hard boundary", 0, 5, schemas.DifficultyHard},    // complexity 50
		{"lower expert boundary", 90, 1, schemas.DifficultyExpert}, // complexity 100
		{"large diff", 400, 10, schemas.DifficultyExpert},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DeriveDifficulty(tc.diffLines, tc.files))
		})
	}
}

func TestDeriveSeverity_KeywordPriority(t *testing.T) {
	t.Parallel()
	assert.Equal(t, schemas.SeverityCritical, DeriveSeverity("fix: crash on empty cart", ""))
	assert.Equal(t, schemas.SeverityCritical, DeriveSeverity("fix security hole", "harmless diff"))
	assert.Equal(t, schemas.SeverityHigh, DeriveSeverity("fix regression in totals", ""))
	assert.Equal(t, schemas.SeverityLow, DeriveSeverity("fix typo in error message", ""))
	assert.Equal(t, schemas.SeverityMedium, DeriveSeverity("fix rounding behavior", ""))
	// Critical keyword in the diff text alone is enough.
	assert.Equal(t, schemas.SeverityCritical, DeriveSeverity("fix totals", "-  // may panic here"))
}

func TestDeriveCategory_KeywordsAndExtensions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, schemas.CategoryCompilation, DeriveCategory("fix build error on windows", nil))
	assert.Equal(t, schemas.CategoryRuntime, DeriveCategory("fix nil pointer in handler", nil))
	assert.Equal(t, schemas.CategoryPerformance, DeriveCategory("fix slow query on dashboard", nil))
	assert.Equal(t, schemas.CategoryUI, DeriveCategory("fix layout shift", nil))
	assert.Equal(t, schemas.CategoryUI, DeriveCategory("fix widget", []string{"app/widget.css"}))
	assert.Equal(t, schemas.CategoryLogic, DeriveCategory("fix rounding", []string{"pkg/math.go"}))
}

func TestCountDiffLines(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 2, CountDiffLines(sampleDiff))
	assert.Equal(t, 0, CountDiffLines(""))
	// File headers are not counted.
	assert.Equal(t, 0, CountDiffLines("--- a/x.go\n+++ b/x.go\n"))
}
