package config

// Default values applied when the configuration leaves fields empty.
const (
	DefaultSourceBranch  = "main"
	DefaultWatchPath     = "website"
	DefaultOutputDir     = "build"
	DefaultHostingBranch = "gh-pages"
	DefaultPreserveDir   = "manual"
	DefaultEntrySource   = "manual.html"
	DefaultEntryName     = "index.html"
	DefaultAuthorName    = "docpages-bot"
	DefaultAuthorEmail   = "docpages@localhost"
	DefaultWebhookAddr   = ":8080"
	DefaultMetricsAddr   = ":9090"
	DefaultQueueSize     = 100
	DefaultWorkers       = 1
)

// DefaultPreserveFiles are the root marker files every run must keep:
// the do-not-serve-via-default-index marker and the custom-domain marker.
func DefaultPreserveFiles() []string { return []string{".nojekyll", "CNAME"} }

// applyDefaults fills unset fields in place.
func applyDefaults(cfg *Config) {
	if cfg.Source.Branch == "" {
		cfg.Source.Branch = DefaultSourceBranch
	}
	if cfg.Source.WatchPath == "" {
		cfg.Source.WatchPath = DefaultWatchPath
	}
	if cfg.Generator.OutputDir == "" {
		cfg.Generator.OutputDir = DefaultOutputDir
	}
	if cfg.Publish.Branch == "" {
		cfg.Publish.Branch = DefaultHostingBranch
	}
	if cfg.Publish.PreserveFiles == nil {
		cfg.Publish.PreserveFiles = DefaultPreserveFiles()
	}
	if cfg.Publish.PreserveDir == "" {
		cfg.Publish.PreserveDir = DefaultPreserveDir
	}
	if cfg.Publish.EntrySource == "" {
		cfg.Publish.EntrySource = DefaultEntrySource
	}
	if cfg.Publish.EntryName == "" {
		cfg.Publish.EntryName = DefaultEntryName
	}
	if cfg.Publish.ConflictingEntry == "" {
		cfg.Publish.ConflictingEntry = cfg.Publish.PreserveDir + "/" + DefaultEntryName
	}
	if cfg.Publish.AuthorName == "" {
		cfg.Publish.AuthorName = DefaultAuthorName
	}
	if cfg.Publish.AuthorEmail == "" {
		cfg.Publish.AuthorEmail = DefaultAuthorEmail
	}
	if cfg.Publish.Auth == nil {
		cfg.Publish.Auth = cfg.Source.Auth
	}
	if cfg.Daemon != nil {
		if cfg.Daemon.WebhookAddr == "" {
			cfg.Daemon.WebhookAddr = DefaultWebhookAddr
		}
		if cfg.Daemon.MetricsAddr == "" {
			cfg.Daemon.MetricsAddr = DefaultMetricsAddr
		}
		if cfg.Daemon.QueueSize <= 0 {
			cfg.Daemon.QueueSize = DefaultQueueSize
		}
		if cfg.Daemon.Workers <= 0 {
			cfg.Daemon.Workers = DefaultWorkers
		}
		if cfg.Daemon.NATS != nil {
			if cfg.Daemon.NATS.DispatchSubject == "" {
				cfg.Daemon.NATS.DispatchSubject = "docpages.dispatch"
			}
			if cfg.Daemon.NATS.ResultSubject == "" {
				cfg.Daemon.NATS.ResultSubject = "docpages.runs"
			}
		}
	}
}
