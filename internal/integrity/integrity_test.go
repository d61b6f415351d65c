package integrity

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperifyio/goproof/internal/analysis"
)

func TestVerifyReconstructionExactMatch(t *testing.T) {
	doc := "The sky is blue. Water is wet."
	segs := []analysis.Segment{
		{Text: "The sky is blue. ", Kind: analysis.KindOriginal},
		{Text: "Water is wet.", Kind: analysis.KindPlagiarism},
	}
	if err := VerifyReconstruction(doc, segs); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}

func TestVerifyReconstructionDroppedWhitespace(t *testing.T) {
	doc := "The sky is blue. Water is wet."
	segs := []analysis.Segment{
		{Text: "The sky is blue."},
		{Text: "Water is wet."},
	}
	err := VerifyReconstruction(doc, segs)
	if !errors.Is(err, ErrReconstruction) {
		t.Fatalf("expected ErrReconstruction, got %v", err)
	}
	if !strings.Contains(err.Error(), "byte 16") {
		t.Fatalf("expected divergence at byte 16, got %v", err)
	}
}

func TestVerifyReconstructionExtraText(t *testing.T) {
	err := VerifyReconstruction("abc", []analysis.Segment{{Text: "abc"}, {Text: "d"}})
	if !errors.Is(err, ErrReconstruction) {
		t.Fatalf("expected ErrReconstruction, got %v", err)
	}
}

func TestVerifyReconstructionEmpty(t *testing.T) {
	if err := VerifyReconstruction("", nil); err != nil {
		t.Fatalf("empty document with no segments should pass, got %v", err)
	}
	if err := VerifyReconstruction("text", nil); !errors.Is(err, ErrReconstruction) {
		t.Fatalf("no segments for a non-empty document must fail, got %v", err)
	}
}
