package daemon

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpages/internal/config"
)

func daemonTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docpages.yaml")
	writeWatchedConfig(t, path, "Docs")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Daemon = &config.DaemonConfig{
		WebhookAddr:    "127.0.0.1:0",
		EventStorePath: ":memory:",
	}
	return path, cfg
}

func TestNewDaemonWiresComponents(t *testing.T) {
	path, cfg := daemonTestConfig(t)

	d, err := New(path, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })

	assert.NotNil(t, d.queue)
	assert.NotNil(t, d.webhook)
	assert.NotNil(t, d.watcher)
	assert.NotNil(t, d.store)
	assert.Nil(t, d.scheduler, "no schedule configured")
	assert.Nil(t, d.dispatch, "no NATS configured")
}

func TestNewDaemonRequiresDaemonSection(t *testing.T) {
	path, cfg := daemonTestConfig(t)
	cfg.Daemon = nil

	_, err := New(path, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon section")
}

func TestNewDaemonRejectsBadSchedule(t *testing.T) {
	path, cfg := daemonTestConfig(t)
	cfg.Daemon.Schedule = "every-so-often"

	_, err := New(path, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")
}

func TestReloadConfigRefreshesPushFiltering(t *testing.T) {
	path, cfg := daemonTestConfig(t)

	d, err := New(path, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })

	body := pushBody(t, "refs/heads/docs", []string{"handbook/guide.md"})
	rec := postJSON(d.webhook, "/webhook", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeResponse(t, rec)["status"])

	updated := *cfg
	updated.Source.Branch = "docs"
	updated.Source.WatchPath = "handbook"
	d.ReloadConfig(&updated)

	rec = postJSON(d.webhook, "/webhook", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, d.queue.Length())
}

func TestReloadConfigSwapsRunParameters(t *testing.T) {
	path, cfg := daemonTestConfig(t)

	d, err := New(path, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.store.Close() })

	updated := *cfg
	updated.Generator.Title = "Renamed"
	d.ReloadConfig(&updated)

	assert.Equal(t, "Renamed", d.config().Generator.Title)
}
