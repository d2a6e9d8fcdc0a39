package request

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/patchbench/api/schemas"
)

func testContext() schemas.ProjectContext {
	return schemas.ProjectContext{ProjectType: "service", Language: "go", Framework: "stdlib"}
}

func TestBuilder_FromFailure_ReadsWorkingTree(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "cart.go"), []byte("package pkg\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "cart_test.go"), []byte("package pkg // tests\n"), 0o644))

	b := NewBuilder(zaptest.NewLogger(t), root, testContext())
	failure := schemas.TestFailure{
		TestName:      "TestTotal",
		TestFile:      "pkg/cart_test.go",
		ErrorMessage:  "expected 90, got 100",
		AffectedFiles: []string{"pkg/cart.go", "pkg/missing.go"},
		Type:          schemas.FailureAssertion,
	}

	req := b.FromFailure(failure)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, failure, req.Failure)
	assert.Equal(t, testContext(), req.Context)
	assert.Contains(t, req.ExpectedOutcome, `Test "TestTotal" passes`)
	// Unreadable files are omitted, not fatal.
	require.Len(t, req.Files, 2)
	assert.Equal(t, "package pkg\n", req.Files["pkg/cart.go"])
	assert.Equal(t, "package pkg // tests\n", req.Files["pkg/cart_test.go"])
	assert.NotContains(t, req.Files, "pkg/missing.go")
}

func TestBuilder_FromTestCase_SyntheticFailure(t *testing.T) {
	t.Parallel()
	b := NewBuilder(zaptest.NewLogger(t), t.TempDir(), testContext())

	tc := schemas.TestCase{
		ID: "case-abc123def456",
		Bug: schemas.BugReport{
			Title:          "fix: nil pointer in hydrate",
			ActualBehavior: "Behavior described by: fix: nil pointer in hydrate",
			AffectedFiles:  []string{"src/models/user.ts"},
			TestFiles:      []string{"src/models/user.test.ts"},
			Category:       schemas.CategoryRuntime,
		},
		Before: schemas.RepoState{
			Commit:       "parent",
			Files:        map[string]string{"src/models/user.ts": "export const hydrate = () => {}\n"},
			FailingTests: []string{"src/models/user.test.ts"},
		},
	}

	req := b.FromTestCase(tc)

	assert.Equal(t, "src/models/user.test.ts", req.Failure.TestName)
	assert.Equal(t, "src/models/user.test.ts", req.Failure.TestFile)
	assert.Equal(t, schemas.FailureRuntime, req.Failure.Type)
	assert.Contains(t, req.Description, "case-abc123def456")
	// Contents come from the mined before snapshot, not the working tree.
	assert.Equal(t, tc.Before.Files, req.Files)
}

func TestBuilder_FromFailure_EmptyPathsAreSkipped(t *testing.T) {
	t.Parallel()
	b := NewBuilder(zaptest.NewLogger(t), t.TempDir(), testContext())
	req := b.FromFailure(schemas.TestFailure{TestName: "TestX"})
	assert.Empty(t, req.Files)
}
