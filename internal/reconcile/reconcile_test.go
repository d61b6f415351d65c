package reconcile

import (
	"reflect"
	"testing"

	"github.com/hyperifyio/goproof/internal/analysis"
)

func refs(uris ...string) []analysis.Reference {
	out := make([]analysis.Reference, len(uris))
	for i, u := range uris {
		out[i] = analysis.Reference{URI: u}
	}
	return out
}

func TestAttributeSourcesRoundRobin(t *testing.T) {
	r := &analysis.Result{Segments: []analysis.Segment{
		{Text: "a", Kind: analysis.KindPlagiarism},
		{Text: "b", Kind: analysis.KindOriginal},
		{Text: "c", Kind: analysis.KindPlagiarism},
		{Text: "d", Kind: analysis.KindPlagiarism},
		{Text: "e", Kind: analysis.KindGrammar},
		{Text: "f", Kind: analysis.KindPlagiarism},
		{Text: "g", Kind: analysis.KindPlagiarism},
	}}
	n := AttributeSources(r, refs("https://s.test/1", "https://s.test/2"))
	if n != 5 {
		t.Fatalf("attributed %d segments, want 5", n)
	}
	got := []string{}
	for _, s := range r.Segments {
		if s.Kind == analysis.KindPlagiarism {
			got = append(got, s.SourceURL)
		}
	}
	want := []string{
		"https://s.test/1", "https://s.test/2",
		"https://s.test/1", "https://s.test/2",
		"https://s.test/1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round robin order %v, want %v", got, want)
	}
	if r.Segments[1].SourceURL != "" || r.Segments[4].SourceURL != "" {
		t.Fatalf("non-plagiarism segments must stay unattributed")
	}
}

func TestAttributeSourcesKeepsExisting(t *testing.T) {
	r := &analysis.Result{Segments: []analysis.Segment{
		{Text: "a", Kind: analysis.KindPlagiarism, SourceURL: "https://model.test/cited"},
		{Text: "b", Kind: analysis.KindPlagiarism},
	}}
	if n := AttributeSources(r, refs("https://s.test/1")); n != 1 {
		t.Fatalf("attributed %d, want 1", n)
	}
	if r.Segments[0].SourceURL != "https://model.test/cited" {
		t.Fatalf("existing attribution overwritten: %q", r.Segments[0].SourceURL)
	}
	if r.Segments[1].SourceURL != "https://s.test/1" {
		t.Fatalf("missing attribution not filled: %q", r.Segments[1].SourceURL)
	}
}

func TestAttributeSourcesIdempotent(t *testing.T) {
	r := &analysis.Result{Segments: []analysis.Segment{
		{Text: "a", Kind: analysis.KindPlagiarism},
		{Text: "b", Kind: analysis.KindPlagiarism},
		{Text: "c", Kind: analysis.KindPlagiarism},
	}}
	list := refs("https://s.test/1", "https://s.test/2")
	AttributeSources(r, list)
	first := r.Clone()
	if n := AttributeSources(r, list); n != 0 {
		t.Fatalf("second pass attributed %d segments, want 0", n)
	}
	if !reflect.DeepEqual(first, r) {
		t.Fatalf("second pass changed the result")
	}
}

func TestAttributeSourcesNoReferences(t *testing.T) {
	r := &analysis.Result{Segments: []analysis.Segment{
		{Text: "a", Kind: analysis.KindPlagiarism},
	}}
	if n := AttributeSources(r, nil); n != 0 {
		t.Fatalf("attributed %d with no references", n)
	}
	if r.Segments[0].SourceURL != "" {
		t.Fatalf("segment gained a source from nowhere: %q", r.Segments[0].SourceURL)
	}
}

func TestAttributeSourcesMergesCitations(t *testing.T) {
	r := &analysis.Result{
		Citations: []string{"https://model.test/cited"},
		Segments: []analysis.Segment{
			{Text: "a", Kind: analysis.KindPlagiarism, SourceURL: "https://model.test/cited"},
			{Text: "b", Kind: analysis.KindPlagiarism},
		},
	}
	AttributeSources(r, refs("https://s.test/1"))
	want := []string{"https://model.test/cited", "https://s.test/1"}
	if !reflect.DeepEqual(r.Citations, want) {
		t.Fatalf("citations %v, want %v", r.Citations, want)
	}
}
