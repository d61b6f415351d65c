// Package reconcile joins the two halves of an analysis answer: the parsed
// segment findings and the grounding references collected while the model
// searched for sources.
package reconcile

import (
	"github.com/hyperifyio/goproof/internal/analysis"
)

// AttributeSources backfills the source of every plagiarism segment that the
// model flagged but failed to attribute. References are assigned round-robin
// in segment order, so a reference list shorter than the number of
// unattributed findings is reused cyclically; every flagged span ends up
// pointing at some discovered source. Segments that already carry a source
// are never touched, which also makes a second pass over the same result a
// no-op. An empty reference list assigns nothing and is not an error.
// It returns the number of segments attributed.
func AttributeSources(r *analysis.Result, refs []analysis.Reference) int {
	if r == nil || len(refs) == 0 {
		return 0
	}
	assigned := 0
	for i := range r.Segments {
		seg := &r.Segments[i]
		if seg.Kind != analysis.KindPlagiarism || seg.SourceURL != "" {
			continue
		}
		seg.SourceURL = refs[assigned%len(refs)].URI
		assigned++
	}
	mergeCitations(r)
	return assigned
}

// mergeCitations appends any attributed source URL missing from the citation
// list, keeping the model-reported citations first.
func mergeCitations(r *analysis.Result) {
	seen := make(map[string]bool, len(r.Citations))
	for _, c := range r.Citations {
		seen[c] = true
	}
	for i := range r.Segments {
		u := r.Segments[i].SourceURL
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		r.Citations = append(r.Citations, u)
	}
}
