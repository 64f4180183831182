package gitops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/docpages/internal/config"
)

func testSignature() *object.Signature {
	return &object.Signature{Name: "seed", Email: "seed@test", When: time.Now()}
}

func writeFileT(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
}

func commitAll(t *testing.T, wt *git.Worktree, msg string) plumbing.Hash {
	t.Helper()
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	sig := testSignature()
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
	return hash
}

// seedRemote creates a bare remote with a main branch (source files) and a
// gh-pages branch holding markers, a preserved manual directory, and stale
// site files from a previous run.
func seedRemote(t *testing.T, withMarkers bool) string {
	t.Helper()
	bare := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInitWithOptions(bare, &git.PlainInitOptions{
		Bare:        true,
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)

	work := filepath.Join(t.TempDir(), "seed")
	repo, err := git.PlainInitWithOptions(work, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	writeFileT(t, filepath.Join(work, "website", "pages", "index.md"), "# home")
	writeFileT(t, filepath.Join(work, "README.md"), "readme")
	commitAll(t, wt, "seed main")

	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("gh-pages"),
		Create: true,
	}))
	if withMarkers {
		writeFileT(t, filepath.Join(work, ".nojekyll"), "")
		writeFileT(t, filepath.Join(work, "CNAME"), "docs.example.com")
	}
	writeFileT(t, filepath.Join(work, "stale.html"), "old run output")
	writeFileT(t, filepath.Join(work, "manual", "reference.html"), "kept manual page")
	commitAll(t, wt, "seed gh-pages")

	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	require.NoError(t, repo.Push(&git.PushOptions{
		RefSpecs: []gitcfg.RefSpec{"refs/heads/*:refs/heads/*"},
	}))
	return bare
}

func stageOutput(t *testing.T) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "build")
	writeFileT(t, filepath.Join(out, "index.html"), "new site")
	writeFileT(t, filepath.Join(out, "css", "site.css"), "body{}")
	writeFileT(t, filepath.Join(out, "manual.html"), "secondary entry")
	writeFileT(t, filepath.Join(out, "manual", "index.html"), "generic collide")
	return out
}

func publishConfig() appcfg.PublishConfig {
	return appcfg.PublishConfig{
		Branch:           "gh-pages",
		PreserveFiles:    []string{".nojekyll", "CNAME"},
		PreserveDir:      "manual",
		EntrySource:      "manual.html",
		EntryName:        "index.html",
		ConflictingEntry: "manual/index.html",
		AuthorName:       "docpages-bot",
		AuthorEmail:      "docpages@localhost",
	}
}

func branchFiles(t *testing.T, bare, branch string) map[string]string {
	t.Helper()
	repo, err := git.PlainOpen(bare)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)

	files := map[string]string{}
	require.NoError(t, tree.Files().ForEach(func(f *object.File) error {
		content, cerr := f.Contents()
		if cerr != nil {
			return cerr
		}
		files[f.Name] = content
		return nil
	}))
	return files
}

func TestPublishReplacesBranchContents(t *testing.T) {
	bare := seedRemote(t, true)
	out := stageOutput(t)

	client := NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())

	res, err := client.Publish(context.Background(), bare, publishConfig(), PublishRequest{
		OutputDir:    out,
		Actor:        "alice",
		SourceCommit: "0123456789abcdef",
	})
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.NotEmpty(t, res.Commit)

	files := branchFiles(t, bare, "gh-pages")
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	assert.Equal(t, []string{
		".nojekyll",
		"CNAME",
		"css/site.css",
		"index.html",
		"manual/index.html",
		"manual/reference.html",
	}, names)

	// markers kept verbatim
	assert.Equal(t, "docs.example.com", files["CNAME"])
	// entry document landed under its new name, not the generated collision
	assert.Equal(t, "secondary entry", files["manual/index.html"])
	// stale output from the previous run is gone
	_, stale := files["stale.html"]
	assert.False(t, stale)

	// staging directory is removed
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestPublishCommitEmbedsActorAndCommit(t *testing.T) {
	bare := seedRemote(t, true)
	out := stageOutput(t)

	client := NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())

	res, err := client.Publish(context.Background(), bare, publishConfig(), PublishRequest{
		OutputDir:    out,
		Actor:        "bob",
		SourceCommit: "feedfacefeedface",
	})
	require.NoError(t, err)

	repo, err := git.PlainOpen(bare)
	require.NoError(t, err)
	commit, err := repo.CommitObject(plumbing.NewHash(res.Commit))
	require.NoError(t, err)

	assert.Contains(t, commit.Message, "bob")
	assert.Contains(t, commit.Message, "feedface")
	assert.Equal(t, "docpages-bot", commit.Author.Name)
	assert.Equal(t, "docpages@localhost", commit.Author.Email)
}

func TestPublishMissingMarkerAborts(t *testing.T) {
	bare := seedRemote(t, false)
	out := stageOutput(t)

	client := NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())

	before := branchFiles(t, bare, "gh-pages")

	_, err := client.Publish(context.Background(), bare, publishConfig(), PublishRequest{
		OutputDir: out,
	})
	require.Error(t, err)

	// the remote is untouched by the failed attempt
	assert.Equal(t, before, branchFiles(t, bare, "gh-pages"))
}

func TestPublishMissingHostingBranch(t *testing.T) {
	bare := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInitWithOptions(bare, &git.PlainInitOptions{
		Bare:        true,
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)

	work := filepath.Join(t.TempDir(), "seed")
	repo, err := git.PlainInitWithOptions(work, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	writeFileT(t, filepath.Join(work, "README.md"), "readme")
	commitAll(t, wt, "seed main")
	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	require.NoError(t, repo.Push(&git.PushOptions{
		RefSpecs: []gitcfg.RefSpec{"refs/heads/*:refs/heads/*"},
	}))

	client := NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())

	_, err = client.Publish(context.Background(), bare, publishConfig(), PublishRequest{
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)

	var missing *BranchMissingError
	assert.True(t, errors.As(err, &missing))
}

func TestPublishTwiceLeavesNoStaleFiles(t *testing.T) {
	bare := seedRemote(t, true)
	client := NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())

	_, err := client.Publish(context.Background(), bare, publishConfig(), PublishRequest{
		OutputDir: stageOutput(t), Actor: "alice", SourceCommit: "aaaa",
	})
	require.NoError(t, err)

	// second run generates a different file set
	out := filepath.Join(t.TempDir(), "build")
	writeFileT(t, filepath.Join(out, "only.html"), "second run")
	writeFileT(t, filepath.Join(out, "manual.html"), "second manual")

	_, err = client.Publish(context.Background(), bare, publishConfig(), PublishRequest{
		OutputDir: out, Actor: "alice", SourceCommit: "bbbb",
	})
	require.NoError(t, err)

	files := branchFiles(t, bare, "gh-pages")
	_, hasFirstIndex := files["index.html"]
	assert.False(t, hasFirstIndex, "file from the first run must not survive")
	assert.Contains(t, files, "only.html")
	assert.Contains(t, files, ".nojekyll")
	assert.Contains(t, files, "CNAME")
	assert.Equal(t, "second manual", files["manual/index.html"])
}

func TestPreservedMatching(t *testing.T) {
	cfg := publishConfig()
	tests := []struct {
		name string
		want bool
	}{
		{".nojekyll", true},
		{"CNAME", true},
		{"manual", true},
		{"manual/reference.html", true},
		{"manual-old/x.html", false},
		{"index.html", false},
		{"nested/CNAME", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, preserved(tc.name, cfg), "path %q", tc.name)
	}
}

func TestMoveTreeMerges(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFileT(t, filepath.Join(src, "a.txt"), "a")
	writeFileT(t, filepath.Join(src, "sub", "b.txt"), "b")
	writeFileT(t, filepath.Join(dst, "sub", "existing.txt"), "keep")

	moved, err := moveTree(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	for _, f := range []string{"a.txt", "sub/b.txt", "sub/existing.txt"} {
		_, err := os.Stat(filepath.Join(dst, filepath.FromSlash(f)))
		assert.NoError(t, err, f)
	}
}
