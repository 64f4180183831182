// Package builder turns a checked-out documentation source tree into a static
// site ready for publication. Two builders exist: CommandBuilder shells out to
// an external generator (mkdocs, hugo, sphinx), MarkdownBuilder renders the
// watched tree directly with goldmark.
package builder

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpages/internal/config"
	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
)

// BuildRequest describes one generator invocation.
type BuildRequest struct {
	SourceDir string // root of the checked-out source repository
	OutputDir string // absolute path the generated site must land in
	Commit    string // source commit being built, for logging only
}

// BuildResult reports a completed build.
type BuildResult struct {
	OutputDir string
	Files     int
	Duration  time.Duration
}

type Builder interface {
	Name() string
	Build(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// New selects the builder implementation from the generator config.
func New(gen config.GeneratorConfig, build config.BuildConfig, watchPath string) (Builder, error) {
	switch gen.KindType() {
	case config.GeneratorCommand:
		return NewCommandBuilder(gen, build), nil
	case config.GeneratorMarkdown:
		return NewMarkdownBuilder(gen, watchPath), nil
	default:
		return nil, ferrors.ConfigError(fmt.Sprintf("unknown generator kind %q", gen.Kind)).Build()
	}
}

// countFiles counts regular files under dir, erroring on an empty tree.
// A generator that exits zero but produces nothing must still abort the run.
func countFiles(dir string) (int, error) {
	entries := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			entries++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if entries == 0 {
		return 0, ferrors.BuildError("generator produced no output files").
			WithContext("path", dir).
			Build()
	}
	return entries, nil
}
