// Package vcs wraps the version-control collaborator. All mutation and
// history access goes through the git porcelain via os/exec; go-git is used
// read-only to fingerprint the worktree.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRestoreFailed means the working tree could not be returned to its
// pre-snapshot state even after the hard-reset fallback. The batch must abort:
// tree integrity can no longer be guaranteed.
var ErrRestoreFailed = errors.New("vcs: working tree restore failed")

// Commit is one entry from the repository log.
type Commit struct {
	Hash    string
	Author  string
	When    time.Time
	Message string
}

// Git drives a single repository rooted at a fixed path.
type Git struct {
	logger *zap.Logger
	root   string
}

// NewGit creates a collaborator for the repository at root.
func NewGit(logger *zap.Logger, root string) *Git {
	return &Git{logger: logger.Named("vcs"), root: root}
}

// Root returns the repository root path.
func (g *Git) Root() string { return g.root }

// run executes one git command in the repository root and returns its
// combined output.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s failed: %w\nOutput: %s", strings.Join(args, " "), err, string(output))
	}
	return string(output), nil
}

// Log field separators. Unit separator between fields, record separator
// between commits, so subjects containing newlines stay intact.
const (
	logFormat  = "%H%x1f%an%x1f%aI%x1f%B%x1e"
	fieldSep   = "\x1f"
	commitSep  = "\x1e"
	timeLayout = time.RFC3339
)

// ListCommits enumerates commits newest first whose message matches filter,
// bounded by the lookback window and max count. A nil filter matches all.
func (g *Git) ListCommits(ctx context.Context, filter *regexp.Regexp, since time.Time, max int) ([]Commit, error) {
	args := []string{"log", "--pretty=format:" + logFormat, "--no-merges"}
	if !since.IsZero() {
		args = append(args, "--since="+since.Format(timeLayout))
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var commits []Commit
	for _, record := range strings.Split(out, commitSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 4)
		if len(fields) != 4 {
			continue
		}
		message := strings.TrimSpace(fields[3])
		if filter != nil && !filter.MatchString(message) {
			continue
		}
		when, err := time.Parse(timeLayout, fields[2])
		if err != nil {
			when = time.Time{}
		}
		commits = append(commits, Commit{
			Hash:    fields[0],
			Author:  fields[1],
			When:    when,
			Message: message,
		})
		if max > 0 && len(commits) >= max {
			break
		}
	}
	return commits, nil
}

// Parent resolves the single parent of a commit. Root commits and merge
// commits both surface as errors; neither yields a usable before/after pair.
func (g *Git) Parent(ctx context.Context, hash string) (string, error) {
	out, err := g.run(ctx, "rev-list", "--parents", "-n", "1", hash)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 2 {
		return "", fmt.Errorf("commit %s does not have exactly one parent", hash)
	}
	return fields[1], nil
}

// ChangedFiles lists paths changed between two commits.
func (g *Git) ChangedFiles(ctx context.Context, from, to string) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", from, to)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// Diff returns the unified diff between two commits.
func (g *Git) Diff(ctx context.Context, from, to string) (string, error) {
	return g.run(ctx, "diff", from, to)
}

// FileAt fetches a file's content at a commit. Callers treat a missing file
// as "skip", not as a batch error.
func (g *Git) FileAt(ctx context.Context, commit, path string) (string, error) {
	out, err := g.run(ctx, "show", commit+":"+path)
	if err != nil {
		return "", fmt.Errorf("file %s not readable at %s: %w", path, commit, err)
	}
	return out, nil
}
