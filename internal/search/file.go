package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// FileProvider serves search results from a local JSON file for offline and
// test runs. The file holds an array of objects:
// {"title": "...", "url": "...", "snippet": "..."}.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

// Search matches fixtures by token overlap rather than whole-query substring:
// grounding queries are model-written sentences, and requiring the entire
// sentence to appear in a fixture would make offline runs return nothing.
func (f *FileProvider) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []Result
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	tokens := queryTokens(query)
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" || r.Title == "" {
			continue
		}
		if matchesTokens(r, tokens) {
			r.Source = f.Name()
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// queryTokens lowercases the query and keeps words long enough to be
// discriminating. Returns nil for an effectively empty query, which matches
// everything.
func queryTokens(query string) []string {
	var tokens []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()[]`)
		if len(w) >= 4 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

func matchesTokens(r Result, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	haystack := strings.ToLower(r.Title + " " + r.Snippet)
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}
