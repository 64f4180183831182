package config

import "strings"

// Config is the root docpages configuration.
type Config struct {
	Version   string          `yaml:"version,omitempty"`
	Source    SourceConfig    `yaml:"source"`
	Generator GeneratorConfig `yaml:"generator"`
	Publish   PublishConfig   `yaml:"publish"`
	Build     BuildConfig     `yaml:"build,omitempty"`
	Daemon    *DaemonConfig   `yaml:"daemon,omitempty"`
}

// SourceConfig describes the repository whose documentation is built.
type SourceConfig struct {
	URL          string      `yaml:"url"`
	Branch       string      `yaml:"branch,omitempty"`     // watched branch, defaults to "main"
	WatchPath    string      `yaml:"watch_path,omitempty"` // subdirectory whose changes trigger runs
	Auth         *AuthConfig `yaml:"auth,omitempty"`
	ShallowDepth int         `yaml:"shallow_depth,omitempty"`
}

// AuthType enumerates supported authentication methods (stringly for YAML compatibility)
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Type     AuthType `yaml:"type"` // ssh|token|basic|none
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// IsZero reports whether no auth method specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// GeneratorKind is a typed enumeration of supported site generators.
type GeneratorKind string

const (
	// GeneratorCommand shells out to an external generator binary.
	GeneratorCommand GeneratorKind = "command"
	// GeneratorMarkdown uses the built-in goldmark renderer.
	GeneratorMarkdown GeneratorKind = "markdown"
)

// GeneratorConfig describes how the site output directory is produced.
type GeneratorConfig struct {
	Kind       string   `yaml:"kind,omitempty"` // raw kind string; normalized via KindType()
	Command    []string `yaml:"command,omitempty"`
	ConfigFile string   `yaml:"config_file,omitempty"`
	Install    []string `yaml:"install,omitempty"` // optional dependency install command
	OutputDir  string   `yaml:"output_dir,omitempty"`
	Title      string   `yaml:"title,omitempty"` // built-in renderer site title
}

// KindType returns the normalized typed generator kind (lowercasing the raw string).
// Unknown kinds return "" so callers can branch safely.
func (g GeneratorConfig) KindType() GeneratorKind {
	s := strings.ToLower(strings.TrimSpace(g.Kind))
	switch s {
	case string(GeneratorCommand):
		return GeneratorCommand
	case string(GeneratorMarkdown):
		return GeneratorMarkdown
	case "":
		if len(g.Command) > 0 {
			return GeneratorCommand
		}
		return GeneratorMarkdown
	default:
		return ""
	}
}

// PublishConfig describes the hosting branch and the publication layout rules.
type PublishConfig struct {
	Branch        string   `yaml:"branch,omitempty"`         // hosting branch, defaults to "gh-pages"
	PreserveFiles []string `yaml:"preserve_files,omitempty"` // root marker files to survive every run
	PreserveDir   string   `yaml:"preserve_dir,omitempty"`   // subdirectory holding the secondary entry document

	// EntrySource is a generated file moved into PreserveDir as EntryName.
	EntrySource string `yaml:"entry_source,omitempty"`
	EntryName   string `yaml:"entry_name,omitempty"`
	// ConflictingEntry is a path inside the generated output removed before
	// relocation so it cannot clobber the preserved subdirectory.
	ConflictingEntry string `yaml:"conflicting_entry,omitempty"`

	AuthorName  string      `yaml:"author_name,omitempty"`
	AuthorEmail string      `yaml:"author_email,omitempty"`
	Auth        *AuthConfig `yaml:"auth,omitempty"`
	Force       *bool       `yaml:"force,omitempty"` // defaults to true; hosting branch is rebuilt every run
}

// ForcePush reports the effective force-push setting.
func (p PublishConfig) ForcePush() bool { return p.Force == nil || *p.Force }

// RetryBackoffMode enumerates supported backoff growth modes.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// BuildConfig holds run tuning knobs.
// All zero values trigger sensible defaults.
type BuildConfig struct {
	// MaxRetries caps retries of transient git operations (clone/fetch/push).
	// Zero disables retries, matching the bare pipeline semantics.
	MaxRetries        int              `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
	// Timeout bounds a single generator invocation ("30m" style). Empty means no bound.
	Timeout string `yaml:"timeout,omitempty"`
}

// DaemonConfig configures continuous mode.
type DaemonConfig struct {
	WebhookAddr    string      `yaml:"webhook_addr,omitempty"`
	WebhookSecret  string      `yaml:"webhook_secret,omitempty"`
	MetricsAddr    string      `yaml:"metrics_addr,omitempty"`
	Schedule       string      `yaml:"schedule,omitempty"` // rebuild interval, e.g. "4h"; empty disables
	QueueSize      int         `yaml:"queue_size,omitempty"`
	Workers        int         `yaml:"workers,omitempty"`
	EventStorePath string      `yaml:"event_store_path,omitempty"` // sqlite file; ":memory:" allowed
	NATS           *NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig wires manual dispatch and run-result notification subjects.
type NATSConfig struct {
	URL             string `yaml:"url"`
	DispatchSubject string `yaml:"dispatch_subject,omitempty"`
	ResultSubject   string `yaml:"result_subject,omitempty"`
}
