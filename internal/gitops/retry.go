package gitops

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/retry"
)

// withRetry wraps a remote git operation with retry logic based on build
// configuration. Retries stay disabled unless max_retries is configured,
// matching the bare pipeline's fail-fast semantics.
func (c *Client) withRetry(op, url string, fn func() error) error {
	if c.buildCfg == nil || c.buildCfg.MaxRetries <= 0 {
		return fn()
	}
	pol := retry.FromBuildConfig(*c.buildCfg)

	var lastErr error
	for attempt := 0; attempt <= pol.MaxRetries; attempt++ {
		if attempt > 0 {
			c.recorder.IncGitRetry(op)
			slog.Warn("retrying git operation",
				slog.String("operation", op),
				logfields.URL(url),
				slog.Int("attempt", attempt))
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanentGitError(err) {
			slog.Error("permanent git error",
				slog.String("operation", op),
				logfields.URL(url),
				logfields.Error(err))
			return err
		}
		if attempt == pol.MaxRetries {
			break
		}
		time.Sleep(pol.Delay(attempt + 1))
	}
	return lastErr
}
