package linkcheck

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docpages/internal/foundation/errors"
)

// Link is one link-bearing attribute found in a generated page.
type Link struct {
	URL       string
	Tag       string // a, img, script, link, source
	Attribute string // href or src
}

// extractLinks parses one generated HTML file and returns its links.
func extractLinks(htmlPath string) ([]Link, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open generated page").WithContext("path", htmlPath).Build()
	}
	defer func() {
		_ = file.Close()
	}()
	return extractLinksFromReader(file)
}

func extractLinksFromReader(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse generated page").Build()
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if l, ok := elementLink(n); ok {
				links = append(links, l)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func elementLink(n *html.Node) (Link, bool) {
	var attr string
	switch n.Data {
	case "a", "link":
		attr = "href"
	case "img", "script", "video", "audio", "source":
		attr = "src"
	default:
		return Link{}, false
	}
	val := getAttr(n, attr)
	if val == "" {
		return Link{}, false
	}
	return Link{URL: val, Tag: n.Data, Attribute: attr}, true
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// isCheckable filters out links that cannot resolve to a file in the output
// tree: external URLs, anchors, and special protocols.
func isCheckable(raw string) bool {
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}
	if strings.HasPrefix(raw, "mailto:") ||
		strings.HasPrefix(raw, "tel:") ||
		strings.HasPrefix(raw, "javascript:") ||
		strings.HasPrefix(raw, "data:") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
