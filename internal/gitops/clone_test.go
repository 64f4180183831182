package gitops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/docpages/internal/config"
)

func TestCloneSource(t *testing.T) {
	bare := seedRemote(t, true)

	client := NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())

	res, err := client.CloneSource(appcfg.SourceConfig{URL: bare, Branch: "main"})
	require.NoError(t, err)

	assert.Equal(t, "main", res.Branch)
	assert.Len(t, res.Commit, 40)
	_, err = os.Stat(filepath.Join(res.Path, "website", "pages", "index.md"))
	assert.NoError(t, err)
	// only the requested branch is checked out
	_, err = os.Stat(filepath.Join(res.Path, "stale.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestCloneSourceMissingRemote(t *testing.T) {
	client := NewClient(t.TempDir())
	require.NoError(t, client.EnsureWorkspace())

	_, err := client.CloneSource(appcfg.SourceConfig{URL: filepath.Join(t.TempDir(), "nowhere.git"), Branch: "main"})
	require.Error(t, err)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0123abcd", ShortHash("0123abcdef99"))
	assert.Equal(t, "abc", ShortHash("abc"))
	assert.Equal(t, "", ShortHash(""))
}
