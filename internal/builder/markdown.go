package builder

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/docpages/internal/config"
	ferrors "git.home.luguber.info/inful/docpages/internal/foundation/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// MarkdownBuilder is the built-in fallback generator: it renders every
// Markdown file under the watched subdirectory to a standalone HTML page and
// writes an index listing. No external toolchain required.
type MarkdownBuilder struct {
	gen       config.GeneratorConfig
	watchPath string
	md        goldmark.Markdown
}

func NewMarkdownBuilder(gen config.GeneratorConfig, watchPath string) *MarkdownBuilder {
	return &MarkdownBuilder{
		gen:       gen,
		watchPath: watchPath,
		md:        goldmark.New(),
	}
}

func (b *MarkdownBuilder) Name() string { return "markdown" }

type renderedPage struct {
	SourcePath string // relative to the content root, slash-separated
	OutputPath string // relative to the output root, slash-separated
	Title      string
}

func (b *MarkdownBuilder) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	start := time.Now()

	contentRoot := req.SourceDir
	if b.watchPath != "" {
		contentRoot = filepath.Join(req.SourceDir, filepath.FromSlash(b.watchPath))
	}
	if _, err := os.Stat(contentRoot); err != nil {
		return nil, ferrors.BuildError("content directory not found").
			WithCause(err).
			WithContext("path", contentRoot).
			Build()
	}

	if err := os.MkdirAll(req.OutputDir, 0o750); err != nil {
		return nil, ferrors.FileSystemError("failed to create output directory").
			WithCause(err).
			Build()
	}

	var pages []renderedPage
	err := filepath.WalkDir(contentRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(contentRoot, path)
		if err != nil {
			return err
		}
		page, perr := b.renderPage(contentRoot, req.OutputDir, filepath.ToSlash(rel))
		if perr != nil {
			return perr
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, ferrors.BuildError("markdown rendering failed").WithCause(err).Build()
	}
	if len(pages) == 0 {
		return nil, ferrors.BuildError("no markdown sources found").
			WithContext("path", contentRoot).
			Build()
	}

	if err := b.writeIndex(req.OutputDir, pages); err != nil {
		return nil, err
	}

	files, err := countFiles(req.OutputDir)
	if err != nil {
		return nil, err
	}
	slog.Info("Rendered markdown site",
		logfields.Path(req.OutputDir),
		slog.Int("pages", len(pages)))
	return &BuildResult{OutputDir: req.OutputDir, Files: files, Duration: time.Since(start)}, nil
}

// renderPage converts one source file, slugifying each path segment so the
// published URLs stay ASCII regardless of source naming.
func (b *MarkdownBuilder) renderPage(contentRoot, outputDir, rel string) (renderedPage, error) {
	src, err := os.ReadFile(filepath.Join(contentRoot, filepath.FromSlash(rel)))
	if err != nil {
		return renderedPage{}, err
	}

	var body bytes.Buffer
	if err := b.md.Convert(src, &body); err != nil {
		return renderedPage{}, fmt.Errorf("convert %s: %w", rel, err)
	}

	segments := strings.Split(strings.TrimSuffix(rel, filepath.Ext(rel)), "/")
	for i, seg := range segments {
		segments[i] = slugify(seg)
	}
	outRel := strings.Join(segments, "/") + ".html"
	if strings.EqualFold(path.Base(rel), "README.md") {
		dir := path.Dir(rel)
		if dir == "." {
			outRel = "index.html"
		} else {
			outRel = strings.Join(segments[:len(segments)-1], "/") + "/index.html"
		}
	}

	title := pageTitle(src, rel)
	outPath := filepath.Join(outputDir, filepath.FromSlash(outRel))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return renderedPage{}, err
	}
	doc := pageShell(title, body.String())
	if err := os.WriteFile(outPath, []byte(doc), 0o640); err != nil {
		return renderedPage{}, err
	}
	return renderedPage{SourcePath: rel, OutputPath: outRel, Title: title}, nil
}

// pageTitle takes the first ATX heading, falling back to the file name.
func pageTitle(src []byte, rel string) string {
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	return strings.ReplaceAll(base, "-", " ")
}

func (b *MarkdownBuilder) writeIndex(outputDir string, pages []renderedPage) error {
	sort.Slice(pages, func(i, j int) bool { return pages[i].OutputPath < pages[j].OutputPath })

	title := b.gen.Title
	if title == "" {
		title = "Documentation"
	}

	var list strings.Builder
	list.WriteString("<ul>\n")
	for _, p := range pages {
		fmt.Fprintf(&list, "  <li><a href=%q>%s</a></li>\n",
			p.OutputPath, html.EscapeString(p.Title))
	}
	list.WriteString("</ul>\n")

	doc := pageShell(title, fmt.Sprintf("<h1>%s</h1>\n%s", html.EscapeString(title), list.String()))
	indexPath := filepath.Join(outputDir, "index.html")
	if _, err := os.Stat(indexPath); err == nil {
		// a rendered README already claimed the root index; keep it
		return nil
	}
	if err := os.WriteFile(indexPath, []byte(doc), 0o640); err != nil {
		return ferrors.FileSystemError("failed to write index page").WithCause(err).Build()
	}
	return nil
}

func pageShell(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body)
}
