// Package score owns the document-level score arithmetic and the suggestion
// transforms that feed back into it.
package score

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/hyperifyio/goproof/internal/analysis"
)

var (
	ErrSegmentOutOfRange    = errors.New("segment index out of range")
	ErrSuggestionOutOfRange = errors.New("suggestion index out of range")
	ErrNoSuggestions        = errors.New("segment has no suggestions")
)

// PlagiarismPercent computes the share of the document attributed to
// plagiarized segments. The share is weighted by character count, measured in
// runes, so one long copied passage outweighs many short clean spans. The
// result is rounded to the nearest integer percentage.
func PlagiarismPercent(segments []analysis.Segment) int {
	total := 0
	flagged := 0
	for _, s := range segments {
		n := utf8.RuneCountInString(s.Text)
		total += n
		if s.Kind == analysis.KindPlagiarism {
			flagged += n
		}
	}
	if total == 0 {
		return 0
	}
	return Clamp(int(math.Round(100 * float64(flagged) / float64(total))))
}

// Clamp forces a score into [0, 100].
func Clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Normalize clamps every score carried by a freshly parsed result in place.
// Models occasionally report 105% confidence; nobody downstream should have
// to cope with that.
func Normalize(r *analysis.Result) {
	r.PlagiarismPercentage = Clamp(r.PlagiarismPercentage)
	r.GrammarScore = Clamp(r.GrammarScore)
	if r.AILikelihood != nil {
		v := Clamp(*r.AILikelihood)
		r.AILikelihood = &v
	}
}

// ApplySuggestion replaces the text of the addressed segment with the chosen
// suggestion and rewrites the segment as ordinary text. The plagiarism
// percentage is recomputed from the updated segments; the grammar score is
// left alone because accepting one rewrite says nothing about the rest of the
// document.
func ApplySuggestion(r *analysis.Result, segment, choice int) error {
	if segment < 0 || segment >= len(r.Segments) {
		return fmt.Errorf("%w: %d", ErrSegmentOutOfRange, segment)
	}
	seg := &r.Segments[segment]
	if len(seg.Suggestions) == 0 {
		return fmt.Errorf("%w: segment %d", ErrNoSuggestions, segment)
	}
	if choice < 0 || choice >= len(seg.Suggestions) {
		return fmt.Errorf("%w: %d of %d", ErrSuggestionOutOfRange, choice, len(seg.Suggestions))
	}
	resolve(seg, seg.Suggestions[choice])
	r.PlagiarismPercentage = PlagiarismPercent(r.Segments)
	return nil
}

// ApplyAllSuggestions resolves every flagged segment that carries at least
// one suggestion, taking the first entry of each. Afterwards the document is
// considered clean: the plagiarism percentage drops to 0 and the grammar
// score rises to 100 regardless of how many segments could be resolved.
// It returns the number of segments rewritten.
func ApplyAllSuggestions(r *analysis.Result) int {
	applied := 0
	for i := range r.Segments {
		seg := &r.Segments[i]
		if !seg.Flagged() || len(seg.Suggestions) == 0 {
			continue
		}
		resolve(seg, seg.Suggestions[0])
		applied++
	}
	r.PlagiarismPercentage = 0
	r.GrammarScore = 100
	return applied
}

// resolve rewrites a flagged segment as accepted original text, dropping the
// finding metadata that no longer applies.
func resolve(seg *analysis.Segment, text string) {
	seg.Text = text
	seg.Kind = analysis.KindOriginal
	seg.Suggestions = nil
	seg.Explanation = ""
	seg.SourceURL = ""
	seg.Citation = ""
}
