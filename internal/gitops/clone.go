package gitops

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	appcfg "git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// CloneResult describes a completed source checkout.
type CloneResult struct {
	Path   string
	Branch string
	Commit string
}

// CloneSource clones the watched branch of the source repository into the
// workspace and reports the checked-out commit. Any pre-existing checkout
// directory is removed first; every run starts from a fresh working copy.
func (c *Client) CloneSource(src appcfg.SourceConfig) (CloneResult, error) {
	repoPath := filepath.Join(c.workspaceDir, "source")

	slog.Debug("Cloning source repository",
		logfields.URL(src.URL),
		logfields.Branch(src.Branch),
		logfields.Path(repoPath))

	if err := os.RemoveAll(repoPath); err != nil {
		return CloneResult{}, fmt.Errorf("failed to remove existing checkout: %w", err)
	}

	cloneOptions := &git.CloneOptions{URL: src.URL}
	if src.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		cloneOptions.SingleBranch = true
	}
	if src.ShallowDepth > 0 {
		cloneOptions.Depth = src.ShallowDepth
	}
	if !src.Auth.IsZero() {
		auth, err := c.getAuth(src.Auth)
		if err != nil {
			return CloneResult{}, fmt.Errorf("failed to setup authentication: %w", err)
		}
		cloneOptions.Auth = auth
	}

	var repository *git.Repository
	err := c.withRetry("clone", src.URL, func() error {
		var cloneErr error
		repository, cloneErr = git.PlainClone(repoPath, false, cloneOptions)
		if cloneErr != nil {
			_ = os.RemoveAll(repoPath)
			return classifyRemoteError("clone", src.URL, cloneErr)
		}
		return nil
	})
	if err != nil {
		return CloneResult{}, err
	}

	ref, err := repository.Head()
	if err != nil {
		return CloneResult{}, fmt.Errorf("failed to resolve HEAD of %s: %w", src.URL, err)
	}

	result := CloneResult{Path: repoPath, Branch: src.Branch, Commit: ref.Hash().String()}
	slog.Info("Source repository cloned",
		logfields.URL(src.URL),
		logfields.Branch(src.Branch),
		logfields.Commit(ShortHash(result.Commit)),
		logfields.Path(repoPath))
	return result, nil
}

// ShortHash abbreviates a commit hash for logs and commit messages.
func ShortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
