package analysis

import (
	"encoding/json"
	"strings"
)

// SegmentKind classifies a span of the analyzed document. The zero value is
// not meaningful; decoding defaults unrecognized labels to KindOriginal so a
// sloppy model answer degrades to "no finding" rather than a false positive.
type SegmentKind string

const (
	KindOriginal   SegmentKind = "original"
	KindPlagiarism SegmentKind = "plagiarism"
	KindGrammar    SegmentKind = "grammar"
)

// ParseKind maps a free-form label onto a SegmentKind. Matching is
// case-insensitive and ignores surrounding whitespace; anything that is not
// recognizably "plagiarism" or "grammar" counts as original text.
func ParseKind(s string) SegmentKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindPlagiarism):
		return KindPlagiarism
	case string(KindGrammar):
		return KindGrammar
	default:
		return KindOriginal
	}
}

// UnmarshalJSON accepts the kind labels produced by the analysis model.
func (k *SegmentKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k = ParseKind(s)
	return nil
}

// Segment is one contiguous span of the analyzed document. Segments are
// ordered and gap-free: concatenating their Text fields in order must yield
// the document that was analyzed.
type Segment struct {
	Text string      `json:"text"`
	Kind SegmentKind `json:"kind"`
	// Suggestions holds candidate rewrites for flagged segments, best first.
	Suggestions []string `json:"suggestions,omitempty"`
	// SourceURL is the attributed origin for plagiarism findings. It may be
	// empty after parsing and filled in later from grounding references.
	SourceURL   string `json:"sourceUrl,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	// Citation is an optional human-readable citation string supplied by the
	// model alongside SourceURL.
	Citation string `json:"citation,omitempty"`
}

// Flagged reports whether the segment carries a finding.
func (s Segment) Flagged() bool {
	return s.Kind == KindPlagiarism || s.Kind == KindGrammar
}

// Subtopic is a named anchor into the segment list, used by reports to build
// a small table of contents over the findings.
type Subtopic struct {
	Title        string `json:"title"`
	SegmentIndex int    `json:"segmentIndex"`
}

// Reference is a source URI discovered while grounding the analysis. Title is
// best-effort and may be empty for providers that only return bare links.
type Reference struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Result is the reconciled outcome of one document analysis.
type Result struct {
	// PlagiarismPercentage and GrammarScore are integer scores in [0, 100].
	PlagiarismPercentage int `json:"plagiarismPercentage"`
	GrammarScore         int `json:"grammarScore"`
	// AILikelihood is an optional [0, 100] estimate; nil when the model did
	// not report one.
	AILikelihood   *int       `json:"aiLikelihood,omitempty"`
	WritingTone    string     `json:"writingTone,omitempty"`
	OverallSummary string     `json:"overallSummary,omitempty"`
	Subtopics      []Subtopic `json:"subtopics,omitempty"`
	Segments       []Segment  `json:"segments"`
	// Citations lists source URLs referenced anywhere in the analysis.
	Citations []string `json:"citations"`
}

// ReconstructedText concatenates all segment texts in order.
func (r *Result) ReconstructedText() string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing internal slices to mutation.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.AILikelihood != nil {
		v := *r.AILikelihood
		out.AILikelihood = &v
	}
	if r.Subtopics != nil {
		out.Subtopics = append([]Subtopic(nil), r.Subtopics...)
	}
	if r.Citations != nil {
		out.Citations = append([]string(nil), r.Citations...)
	}
	if r.Segments != nil {
		out.Segments = make([]Segment, len(r.Segments))
		for i, s := range r.Segments {
			if s.Suggestions != nil {
				s.Suggestions = append([]string(nil), s.Suggestions...)
			}
			out.Segments[i] = s
		}
	}
	return &out
}
