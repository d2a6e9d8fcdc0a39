// File: internal/vcs/snapshot.go
package vcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Snapshot is a restorable capture of the working tree's uncommitted state.
type Snapshot struct {
	// Stashed is false when the tree was clean at capture time; restoring
	// then only needs to discard whatever the patch attempt wrote.
	Stashed bool
	Message string
}

const snapshotPrefix = "patchbench-snapshot"

// Snapshot captures all tracked and untracked changes so the tree can be
// rolled back exactly, whatever an apply attempt does to it afterwards.
func (g *Git) Snapshot(ctx context.Context, label string) (*Snapshot, error) {
	message := fmt.Sprintf("%s-%s", snapshotPrefix, label)
	out, err := g.run(ctx, "stash", "push", "--include-untracked", "-m", message)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot working tree: %w", err)
	}
	if strings.Contains(out, "No local changes to save") {
		g.logger.Debug("Snapshot taken of a clean tree; nothing stashed.", zap.String("label", label))
		return &Snapshot{Stashed: false, Message: message}, nil
	}
	g.logger.Debug("Working tree stashed.", zap.String("label", label))
	return &Snapshot{Stashed: true, Message: message}, nil
}

// Restore unconditionally returns the tree to its pre-snapshot state. Any
// failure falls back to a hard reset; if that too fails, ErrRestoreFailed is
// returned and the caller must abort the batch.
func (g *Git) Restore(ctx context.Context, snap *Snapshot) error {
	// First discard everything the apply attempt wrote, tracked or not.
	if err := g.hardReset(ctx); err != nil {
		return err
	}
	if snap == nil || !snap.Stashed {
		return nil
	}
	if _, err := g.run(ctx, "stash", "pop"); err != nil {
		g.logger.Error("Stash pop failed; retrying with hard reset.", zap.Error(err))
		// The pop may have half-applied. Reset once more, then try again so
		// a transient conflict does not strand the stash entry.
		if resetErr := g.hardReset(ctx); resetErr != nil {
			return resetErr
		}
		if _, popErr := g.run(ctx, "stash", "pop"); popErr != nil {
			return fmt.Errorf("%w: %v", ErrRestoreFailed, popErr)
		}
	}
	return nil
}

// hardReset discards all uncommitted changes and untracked files.
func (g *Git) hardReset(ctx context.Context) error {
	if _, err := g.run(ctx, "reset", "--hard", "HEAD"); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	if _, err := g.run(ctx, "clean", "-fd"); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	return nil
}

// IsDirty reports whether the worktree has uncommitted changes.
func (g *Git) IsDirty() (bool, error) {
	repo, err := gogit.PlainOpen(g.root)
	if err != nil {
		return false, fmt.Errorf("failed to open repository at %s: %w", g.root, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	return !status.IsClean(), nil
}

// Fingerprint hashes the on-disk content of every tracked file plus any
// untracked file, keyed by repo-relative path. Two byte-identical trees yield
// equal fingerprints, which is how the restore invariant is checked.
func (g *Git) Fingerprint() (map[string]string, error) {
	repo, err := gogit.PlainOpen(g.root)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", g.root, err)
	}

	fp := make(map[string]string)

	head, err := repo.Head()
	if err == nil {
		commit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return nil, err
		}
		tree, err := commit.Tree()
		if err != nil {
			return nil, err
		}
		err = tree.Files().ForEach(func(f *object.File) error {
			fp[f.Name] = g.hashWorktreeFile(f.Name)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// Untracked files must break the fingerprint too, or a patch that only
	// creates files would falsely count as restored.
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	for path, st := range status {
		if st.Worktree == gogit.Untracked {
			fp[path] = g.hashWorktreeFile(path)
		}
	}
	return fp, nil
}

// hashWorktreeFile returns the sha256 of a worktree file, or a sentinel when
// the file is absent on disk.
func (g *Git) hashWorktreeFile(relPath string) string {
	data, err := os.ReadFile(filepath.Join(g.root, relPath))
	if err != nil {
		return "<missing>"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
