package builder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/docpages/internal/config"
	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// CommandBuilder runs an external site generator. The optional install command
// runs first (dependency bootstrap), then the generator command itself with the
// config file and output directory appended.
type CommandBuilder struct {
	gen   config.GeneratorConfig
	build config.BuildConfig
}

func NewCommandBuilder(gen config.GeneratorConfig, build config.BuildConfig) *CommandBuilder {
	return &CommandBuilder{gen: gen, build: build}
}

func (b *CommandBuilder) Name() string { return "command" }

func (b *CommandBuilder) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()

	if timeout := b.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if len(b.gen.Install) > 0 {
		if err := b.runCommand(ctx, req.SourceDir, b.gen.Install); err != nil {
			return nil, ferrors.BuildError("dependency install failed").
				WithCause(err).
				WithContext("command", b.gen.Install[0]).
				Build()
		}
	}

	args := b.expandArgs(req)

	slog.Info("Running site generator",
		logfields.Commit(req.Commit),
		logfields.Path(req.SourceDir),
		slog.String("command", args[0]))

	if err := b.runCommand(ctx, req.SourceDir, args); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ferrors.BuildError("generator timed out").
				WithCause(err).
				WithContext("timeout", b.build.Timeout).
				Build()
		}
		return nil, ferrors.BuildError("generator failed").
			WithCause(err).
			WithContext("command", args[0]).
			Build()
	}

	files, err := countFiles(req.OutputDir)
	if err != nil {
		return nil, err
	}
	return &BuildResult{OutputDir: req.OutputDir, Files: files, Duration: time.Since(start)}, nil
}

// expandArgs substitutes the {config} and {output} placeholders in the
// configured command line. Generators disagree on flag spelling, so the
// command carries its own flags and only the paths are filled in.
func (b *CommandBuilder) expandArgs(req BuildRequest) []string {
	args := make([]string, 0, len(b.gen.Command))
	for _, arg := range b.gen.Command {
		arg = strings.ReplaceAll(arg, "{config}", b.gen.ConfigFile)
		arg = strings.ReplaceAll(arg, "{output}", req.OutputDir)
		args = append(args, arg)
	}
	return args
}

func (b *CommandBuilder) timeout() time.Duration {
	if b.build.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(b.build.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// runCommand executes argv in dir, capturing combined output for the error path.
func (b *CommandBuilder) runCommand(ctx context.Context, dir string, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		tail := output.String()
		if len(tail) > 2048 {
			tail = tail[len(tail)-2048:]
		}
		return fmt.Errorf("%s: %w: %s", argv[0], err, tail)
	}
	return nil
}
