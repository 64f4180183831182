// Package linkcheck verifies internal links in the generated site before
// publication. Findings are advisory: a broken internal link is logged, never
// fails the run.
package linkcheck

import (
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Finding is one internal link whose target does not exist in the output tree.
type Finding struct {
	Page   string // page containing the link, relative to the output root
	URL    string // raw link value
	Target string // resolved output path that was not found
}

// Report summarizes a pre-publish link check.
type Report struct {
	Pages    int
	Links    int
	Findings []Finding
}

func (r Report) Clean() bool { return len(r.Findings) == 0 }

// Check walks the generated output directory and resolves every internal link
// against the file set.
func Check(outputDir string) (Report, error) {
	files := map[string]struct{}{}
	var pages []string

	err := filepath.WalkDir(outputDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outputDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files[rel] = struct{}{}
		if strings.EqualFold(path.Ext(rel), ".html") {
			pages = append(pages, rel)
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	report := Report{Pages: len(pages)}
	for _, page := range pages {
		links, err := extractLinks(filepath.Join(outputDir, filepath.FromSlash(page)))
		if err != nil {
			slog.Warn("Skipping unparseable page", logfields.Path(page), logfields.Error(err))
			continue
		}
		for _, link := range links {
			if !isCheckable(link.URL) {
				continue
			}
			report.Links++
			target := resolveTarget(page, link.URL)
			if target == "" {
				continue
			}
			if !targetExists(files, target) {
				report.Findings = append(report.Findings, Finding{Page: page, URL: link.URL, Target: target})
			}
		}
	}

	for _, f := range report.Findings {
		slog.Warn("Broken internal link",
			logfields.Path(f.Page),
			logfields.URL(f.URL))
	}
	return report, nil
}

// resolveTarget maps a link to an output-relative path. Root-relative links
// resolve from the output root, others from the containing page's directory.
func resolveTarget(page, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := u.Path
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(p, "/")
	} else {
		p = path.Join(path.Dir(page), p)
	}
	return path.Clean(p)
}

// targetExists accepts either the file itself or a directory with an index page.
func targetExists(files map[string]struct{}, target string) bool {
	if _, ok := files[target]; ok {
		return true
	}
	_, ok := files[path.Join(target, "index.html")]
	return ok
}
