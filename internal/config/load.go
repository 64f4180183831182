package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docpages/internal/foundation/errors"
)

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	// Secrets may be provided via environment references (${VAR}).
	expanded := os.Expand(string(data), func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return "${" + key + "}"
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.ConfigError("failed to parse configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants a run depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source.URL) == "" {
		return errors.ValidationError("source.url is required").Build()
	}
	if c.Source.Branch == c.Publish.Branch {
		return errors.ValidationError("hosting branch must differ from the source branch").
			WithContext("branch", c.Publish.Branch).
			Build()
	}
	if filepath.IsAbs(c.Generator.OutputDir) {
		return errors.ValidationError("generator.output_dir must be relative to the checkout").
			WithContext("output_dir", c.Generator.OutputDir).
			Build()
	}
	switch c.Generator.KindType() {
	case GeneratorCommand:
		if len(c.Generator.Command) == 0 {
			return errors.ValidationError("generator.command is required for kind=command").Build()
		}
	case GeneratorMarkdown:
		// built-in renderer needs nothing beyond the watch path
	default:
		return errors.ValidationError("unknown generator kind").
			WithContext("kind", c.Generator.Kind).
			Build()
	}
	for _, f := range c.Publish.PreserveFiles {
		if strings.Contains(f, "/") {
			return errors.ValidationError("preserve_files entries must be branch-root file names").
				WithContext("file", f).
				Build()
		}
	}
	return nil
}

const starterConfig = `# docpages configuration
source:
  url: https://example.com/org/project.git
  branch: main
  watch_path: website

generator:
  kind: command
  # {config} and {output} are replaced with config_file and the staging
  # directory before the command runs.
  command: ["mkdocs", "build", "--config-file", "{config}", "--site-dir", "{output}"]
  config_file: website/mkdocs.yml
  install: ["pip", "install", "-r", "website/requirements.txt"]
  output_dir: build

publish:
  branch: gh-pages
  preserve_files: [".nojekyll", "CNAME"]
  preserve_dir: manual
  entry_source: manual.html
`

// Init writes a starter configuration file.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.ConfigError("configuration file already exists").
				WithContext("path", path).
				Build()
		}
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return errors.FileSystemError("failed to write configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
