package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEphemeralLifecycle(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.Create())

	path := m.GetPath()
	require.NotEmpty(t, path)
	assert.True(t, strings.Contains(filepath.Base(path), "docpages-"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, m.Cleanup())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, m.GetPath())
}

func TestPersistentSurvivesCleanup(t *testing.T) {
	base := t.TempDir()
	m := NewPersistentManager(base, "working")
	require.NoError(t, m.Create())

	path := m.GetPath()
	assert.Equal(t, filepath.Join(base, "working"), path)

	require.NoError(t, m.Cleanup())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestCreateSubdir(t *testing.T) {
	m := NewManager(t.TempDir())

	_, err := m.CreateSubdir("checkout")
	require.Error(t, err, "subdir before Create must fail")

	require.NoError(t, m.Create())
	sub, err := m.CreateSubdir("checkout")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.GetPath(), "checkout"), sub)

	info, err := os.Stat(sub)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
