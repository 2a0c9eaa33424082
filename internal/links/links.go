// Package links extracts the resources an HTML page refers to.
package links

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one discovered reference.
type Link struct {
	Tag string `json:"tag"`
	URL string `json:"url"`
}

// selectors maps a CSS selector to the attribute holding the reference.
var selectors = []struct {
	sel, attr string
}{
	{"link[href]", "href"},
	{"script[src]", "src"},
	{"img[src]", "src"},
	{"iframe[src]", "src"},
	{"frame[src]", "src"},
	{"a[href]", "href"},
}

// Extractor finds links in HTML documents.
type Extractor struct {
	limit int
}

// New returns an extractor that keeps at most limit links. limit <= 0 means no limit.
func New(limit int) *Extractor {
	return &Extractor{limit: limit}
}

// IsHTML reports whether a media type is worth parsing for links.
func IsHTML(media string) bool {
	media = strings.ToLower(strings.TrimSpace(media))
	return media == "text/html" || media == "application/xhtml+xml"
}

// Extract resolves every http and https reference in body against base. The
// result is de-duplicated, fragment-free and in document order, with embedded
// resources before anchors.
func (e *Extractor) Extract(base *url.URL, body []byte) ([]Link, error) {
	if len(body) == 0 {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	seen := make(map[string]struct{})
	var out []Link
	for _, s := range selectors {
		doc.Find(s.sel).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			if e.limit > 0 && len(out) >= e.limit {
				return false
			}
			raw, _ := node.Attr(s.attr)
			target, ok := resolve(base, raw)
			if !ok {
				return true
			}
			if _, dup := seen[target]; dup {
				return true
			}
			seen[target] = struct{}{}
			out = append(out, Link{Tag: goquery.NodeName(node), URL: target})
			return true
		})
	}
	return out, nil
}

func resolve(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	u, err := base.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
