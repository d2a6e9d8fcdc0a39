package cmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/patchbench/api/schemas"
	"github.com/xkilldash9x/patchbench/internal/observability"
)

// resetState clears the global viper and logger between command runs; cobra
// commands are rebuilt per invocation, but viper is process-wide.
func resetState(t *testing.T) {
	t.Helper()
	viper.Reset()
	observability.ResetForTest()
	cfgFile = ""
}

func TestNewRootCommand_Wiring(t *testing.T) {
	resetState(t)
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["mine"])
	assert.True(t, names["evaluate"])
	assert.Equal(t, Version, root.Version)
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	resetState(t)
	root := NewRootCommand()
	root.SetArgs([]string{"excavate"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
}

// newFixtureRepo builds a repo with one mineable fix commit.
func newFixtureRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	root := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	require.NoError(t, os.WriteFile(filepath.Join(root, "calc.go"),
		[]byte("package calc\n\nfunc Add(a, b int) int { return a - b }\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "initial commit")

	require.NoError(t, os.WriteFile(filepath.Join(root, "calc.go"),
		[]byte("package calc\n\nfunc Add(a, b int) int { return a + b }\n"), 0o644))
	run("add", ".")
	run("commit", "-m", "fix: Add subtracted instead of adding")

	return root
}

func TestMineCommand_EndToEnd(t *testing.T) {
	resetState(t)
	repo := newFixtureRepo(t)
	out := filepath.Join(t.TempDir(), "cases.json")

	root := NewRootCommand()
	root.SetArgs([]string{"mine", "--repo", repo, "--out", out})
	stdout := new(bytes.Buffer)
	root.SetOut(stdout)

	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var cases []schemas.TestCase
	require.NoError(t, json.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &cases))
	require.Len(t, cases, 1)

	tc := cases[0]
	assert.Contains(t, tc.Bug.Title, "fix: Add subtracted")
	assert.Equal(t, []string{"calc.go"}, tc.Bug.AffectedFiles)
	assert.Contains(t, tc.Before.Files["calc.go"], "return a - b")
	assert.Contains(t, tc.After.Files["calc.go"], "return a + b")
	assert.Contains(t, stdout.String(), "Mined 1 test cases")
}
