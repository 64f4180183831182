package gitops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	appcfg "git.home.luguber.info/inful/docpages/internal/config"
	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// PublishRequest carries the inputs of a hosting-branch publication.
type PublishRequest struct {
	// OutputDir is the generation staging directory produced by the build
	// step. Its contents are relocated to the hosting branch root and the
	// directory itself is removed afterwards.
	OutputDir    string
	Actor        string
	SourceCommit string
}

// PublishResult describes a completed publication.
type PublishResult struct {
	Commit string // hosting branch commit, empty when nothing changed
	Pushed bool
	Files  int // files relocated from the staging directory
}

// Publish runs the ordered publication sequence against the hosting branch:
// clone, clear tracked files except the preserve set, relocate the generated
// output (with the entry-document rename), commit with the automation
// identity, and push.
//
// The destructive clear happens only on the local ephemeral clone; the remote
// is mutated solely by the final push, so a failure at any earlier step
// leaves the published branch untouched.
func (c *Client) Publish(ctx context.Context, url string, cfg appcfg.PublishConfig, req PublishRequest) (PublishResult, error) {
	repoPath := filepath.Join(c.workspaceDir, "publish")
	if err := os.RemoveAll(repoPath); err != nil {
		return PublishResult{}, fmt.Errorf("failed to remove stale publish clone: %w", err)
	}

	auth, err := c.getAuth(cfg.Auth)
	if err != nil {
		return PublishResult{}, fmt.Errorf("failed to setup authentication: %w", err)
	}

	// 1. Fetch and check out the hosting branch (separate history from main).
	cloneOptions := &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	}
	var repository *git.Repository
	err = c.withRetry("clone-hosting", url, func() error {
		var cloneErr error
		repository, cloneErr = git.PlainCloneContext(ctx, repoPath, false, cloneOptions)
		if cloneErr != nil {
			_ = os.RemoveAll(repoPath)
			msg := strings.ToLower(cloneErr.Error())
			if strings.Contains(msg, "reference not found") || strings.Contains(msg, "couldn't find remote ref") {
				return &BranchMissingError{URL: url, Branch: cfg.Branch, Err: cloneErr}
			}
			return classifyRemoteError("clone", url, cloneErr)
		}
		return nil
	})
	if err != nil {
		return PublishResult{}, err
	}

	wt, err := repository.Worktree()
	if err != nil {
		return PublishResult{}, fmt.Errorf("worktree: %w", err)
	}
	headRef, err := repository.Head()
	if err != nil {
		return PublishResult{}, fmt.Errorf("hosting branch HEAD: %w", err)
	}
	headCommit, err := repository.CommitObject(headRef.Hash())
	if err != nil {
		return PublishResult{}, fmt.Errorf("hosting branch commit: %w", err)
	}
	tree, err := headCommit.Tree()
	if err != nil {
		return PublishResult{}, fmt.Errorf("hosting branch tree: %w", err)
	}

	// The exception markers must exist before the clear; a hosting branch
	// without them is misconfigured and publishing would silently drop them.
	for _, marker := range cfg.PreserveFiles {
		if _, ferr := tree.File(marker); ferr != nil {
			return PublishResult{}, ferrors.PublishError("preserved marker missing from hosting branch").
				WithContext("marker", marker).
				WithContext("branch", cfg.Branch).
				Build()
		}
	}

	// 2+3. Remove all tracked files except the preserve set. Skipping the
	// preserved paths in place is equivalent to delete-then-restore and
	// cannot lose the markers halfway through.
	err = tree.Files().ForEach(func(f *object.File) error {
		if preserved(f.Name, cfg) {
			return nil
		}
		_, rerr := wt.Remove(f.Name)
		return rerr
	})
	if err != nil {
		return PublishResult{}, fmt.Errorf("clearing hosting branch: %w", err)
	}

	// 4. The generated output may contain a generic entry file colliding with
	// the preserved subdirectory; drop it before relocation.
	if cfg.ConflictingEntry != "" {
		conflicting := filepath.Join(req.OutputDir, filepath.FromSlash(cfg.ConflictingEntry))
		if rerr := os.Remove(conflicting); rerr != nil && !os.IsNotExist(rerr) {
			return PublishResult{}, fmt.Errorf("removing conflicting entry: %w", rerr)
		}
	}

	// 5. Move the secondary entry document into the preserved subdirectory
	// under its new name, then everything else to branch root.
	if cfg.PreserveDir != "" {
		if merr := os.MkdirAll(filepath.Join(repoPath, cfg.PreserveDir), 0o750); merr != nil {
			return PublishResult{}, fmt.Errorf("restoring preserved subdirectory: %w", merr)
		}
	}
	if cfg.EntrySource != "" {
		entrySrc := filepath.Join(req.OutputDir, filepath.FromSlash(cfg.EntrySource))
		if _, serr := os.Stat(entrySrc); serr == nil {
			dest := filepath.Join(repoPath, cfg.PreserveDir, cfg.EntryName)
			if merr := moveFile(entrySrc, dest); merr != nil {
				return PublishResult{}, fmt.Errorf("relocating entry document: %w", merr)
			}
		} else {
			slog.Warn("Entry document missing from generated output",
				logfields.Path(cfg.EntrySource))
		}
	}
	moved, err := moveTree(req.OutputDir, repoPath)
	if err != nil {
		return PublishResult{}, fmt.Errorf("relocating generated output: %w", err)
	}

	// 6. Remove the now-empty generation staging directory.
	if err := os.RemoveAll(req.OutputDir); err != nil {
		return PublishResult{}, fmt.Errorf("removing staging directory: %w", err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return PublishResult{}, fmt.Errorf("staging published files: %w", err)
	}

	// 7. Commit with the automation identity; the message embeds the acting
	// user and the source commit hash.
	actor := req.Actor
	if actor == "" {
		actor = "unknown"
	}
	message := fmt.Sprintf("Publish docs at %s (triggered by %s)", ShortHash(req.SourceCommit), actor)
	sig := &object.Signature{Name: cfg.AuthorName, Email: cfg.AuthorEmail, When: time.Now()}
	commitHash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			slog.Info("Hosting branch already up to date, nothing to publish",
				logfields.Branch(cfg.Branch))
			return PublishResult{Files: moved}, nil
		}
		return PublishResult{}, fmt.Errorf("committing published files: %w", err)
	}

	// 8. Push. The hosting branch is rebuilt every run; last push wins.
	refSpec := gitcfg.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", cfg.Branch, cfg.Branch))
	pushOptions := &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{refSpec},
		Force:      cfg.ForcePush(),
		Auth:       auth,
	}
	err = c.withRetry("push", url, func() error {
		perr := repository.PushContext(ctx, pushOptions)
		if perr != nil && !errors.Is(perr, git.NoErrAlreadyUpToDate) {
			return classifyRemoteError("push", url, perr)
		}
		return nil
	})
	if err != nil {
		return PublishResult{}, err
	}

	slog.Info("Published hosting branch",
		logfields.Branch(cfg.Branch),
		logfields.Commit(ShortHash(commitHash.String())),
		logfields.Actor(actor),
		slog.Int("files", moved))
	return PublishResult{Commit: commitHash.String(), Pushed: true, Files: moved}, nil
}

// preserved reports whether a tracked path survives the clear: root markers
// and everything under the preserved subdirectory.
func preserved(name string, cfg appcfg.PublishConfig) bool {
	for _, marker := range cfg.PreserveFiles {
		if name == marker {
			return true
		}
	}
	if cfg.PreserveDir != "" {
		if name == cfg.PreserveDir || strings.HasPrefix(name, cfg.PreserveDir+"/") {
			return true
		}
	}
	return false
}

// moveTree relocates every file below src into dst, merging into existing
// directories. Returns the number of files moved.
func moveTree(src, dst string) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	moved := 0
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := os.MkdirAll(dstPath, 0o750); err != nil {
				return moved, err
			}
			n, err := moveTree(srcPath, dstPath)
			moved += n
			if err != nil {
				return moved, err
			}
			continue
		}
		if err := moveFile(srcPath, dstPath); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// moveFile renames when possible and falls back to copy+remove across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o640); err != nil {
		return err
	}
	return os.Remove(src)
}
