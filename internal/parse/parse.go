// Package parse turns the raw text answer of the analysis model into a typed
// result. Models wrap JSON in prose and markdown fences, truncate output and
// invent casing, so parsing is deliberately forgiving about the envelope and
// strict about the payload.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hyperifyio/goproof/internal/analysis"
	"github.com/hyperifyio/goproof/internal/score"
)

var (
	// ErrEmptyResponse reports a blank answer from the analysis service.
	ErrEmptyResponse = errors.New("empty response from analysis service")
	// ErrMalformedResponse reports an answer with no usable analysis object.
	ErrMalformedResponse = errors.New("malformed response from analysis service")
)

// requiredFields must all be present in the analysis object. Empty arrays are
// acceptable values; a missing key is not.
var requiredFields = []string{
	"plagiarismPercentage",
	"grammarScore",
	"segments",
	"citations",
}

// ParseAnalysis extracts the analysis object from a raw model answer.
// The answer is accepted as bare JSON, as JSON inside a markdown code fence,
// or as JSON embedded in surrounding prose; in the last case the first
// balanced object that parses wins. Scores are clamped into [0, 100] before
// the result is returned.
func ParseAnalysis(raw string) (*analysis.Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyResponse
	}
	candidate := StripFences(trimmed)
	if !gjson.Valid(candidate) {
		obj, ok := ExtractJSONObject(trimmed)
		if !ok {
			return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
		}
		candidate = obj
	}
	for _, field := range requiredFields {
		if !gjson.Get(candidate, field).Exists() {
			return nil, fmt.Errorf("%w: missing required field %q", ErrMalformedResponse, field)
		}
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(candidate), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	score.Normalize(&res)
	return &res, nil
}

// StripFences removes a markdown code fence wrapped around the whole answer.
// Fences that appear mid-answer are left for ExtractJSONObject to deal with.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// ExtractJSONObject returns the first balanced JSON object embedded in s that
// is syntactically valid. Brace matching honors JSON string and escape rules,
// so braces inside quoted text do not confuse it.
func ExtractJSONObject(s string) (string, bool) {
	for start := 0; ; {
		i := strings.IndexByte(s[start:], '{')
		if i < 0 {
			return "", false
		}
		i += start
		if end, ok := matchBrace(s, i); ok {
			if obj := s[i : end+1]; gjson.Valid(obj) {
				return obj, true
			}
		}
		start = i + 1
	}
}

// matchBrace scans from the opening brace at i and returns the index of the
// matching closing brace.
func matchBrace(s string, i int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for j := i; j < len(s); j++ {
		c := s[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, true
			}
		}
	}
	return 0, false
}
