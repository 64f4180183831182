package daemon

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpages/internal/config"
)

func writeWatchedConfig(t *testing.T, path, title string) {
	t.Helper()
	content := "source:\n" +
		"  url: https://example.com/repo.git\n" +
		"generator:\n" +
		"  kind: markdown\n" +
		"  title: " + title + "\n" +
		"publish:\n" +
		"  branch: gh-pages\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpages.yaml")
	writeWatchedConfig(t, path, "Original")

	var mu sync.Mutex
	var applied *config.Config
	cw, err := NewConfigWatcher(path, func(cfg *config.Config) {
		mu.Lock()
		applied = cfg
		mu.Unlock()
	})
	require.NoError(t, err)
	cw.Start()
	defer cw.Stop()

	writeWatchedConfig(t, path, "Updated")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return applied != nil
	})
	mu.Lock()
	assert.Equal(t, "Updated", applied.Generator.Title)
	mu.Unlock()
}

func TestConfigWatcherKeepsPreviousOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpages.yaml")
	writeWatchedConfig(t, path, "Original")

	var mu sync.Mutex
	calls := 0
	cw, err := NewConfigWatcher(path, func(*config.Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	cw.Start()
	defer cw.Stop()

	// same source and hosting branch fails validation
	require.NoError(t, os.WriteFile(path, []byte(
		"source:\n  url: https://example.com/repo.git\n  branch: pages\ngenerator:\n  kind: markdown\npublish:\n  branch: pages\n"), 0o644))

	time.Sleep(reloadDebounce + time.Second)
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
}

func TestConfigWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docpages.yaml")
	writeWatchedConfig(t, path, "Original")

	var mu sync.Mutex
	calls := 0
	cw, err := NewConfigWatcher(path, func(*config.Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	cw.Start()
	defer cw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644))

	time.Sleep(reloadDebounce + time.Second)
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
}
