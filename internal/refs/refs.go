// Package refs turns the raw search hits collected while grounding an
// analysis into the ordered reference list used for source attribution.
package refs

import (
	"net/url"
	"strings"

	"github.com/hyperifyio/goproof/internal/analysis"
	"github.com/hyperifyio/goproof/internal/search"
)

const (
	DefaultMaxTotal  = 10
	DefaultPerDomain = 3
)

// Options bounds the reference list.
type Options struct {
	// MaxTotal caps the list length. Zero means DefaultMaxTotal.
	MaxTotal int
	// PerDomain caps how many references may share a host, so one
	// well-indexed site cannot claim every attribution. Zero means
	// DefaultPerDomain.
	PerDomain int
}

// Collect merges the hits of every grounding search into one reference list:
// URLs are canonicalized, tracking parameters dropped, duplicates removed,
// and the per-domain and total caps applied. First-seen order is preserved
// because attribution assigns references positionally.
func Collect(groups [][]search.Result, opt Options) []analysis.Reference {
	maxTotal := opt.MaxTotal
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	perDomain := opt.PerDomain
	if perDomain <= 0 {
		perDomain = DefaultPerDomain
	}

	seen := map[string]struct{}{}
	perHost := map[string]int{}
	out := make([]analysis.Reference, 0, maxTotal)
	for _, g := range groups {
		for _, r := range g {
			if r.URL == "" {
				continue
			}
			u, err := url.Parse(strings.TrimSpace(r.URL))
			if err != nil || u.Host == "" {
				continue
			}
			normalizeURL(u)
			key := u.String()
			if _, ok := seen[key]; ok {
				continue
			}
			if perHost[u.Host] >= perDomain {
				continue
			}
			seen[key] = struct{}{}
			perHost[u.Host]++
			out = append(out, analysis.Reference{URI: key, Title: strings.TrimSpace(r.Title)})
			if len(out) >= maxTotal {
				return out
			}
		}
	}
	return out
}

// normalizeURL lowercases the host and strips the fragment and common
// tracking parameters so trivially different URLs collapse into one
// reference.
func normalizeURL(u *url.URL) {
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
}
