package compose

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestComposeCarriesDocumentVerbatim(t *testing.T) {
	doc := "The sky is blue. Water is wet."
	req := Compose(doc, Options{})
	if req.Document != doc {
		t.Fatalf("document changed: %q", req.Document)
	}
	if !strings.HasSuffix(req.User, DocumentMarker+doc) {
		t.Fatalf("user message does not end with the marked document")
	}
	if req.Truncated || req.DroppedRunes != 0 {
		t.Fatalf("short document reported as truncated")
	}
}

func TestComposeInstructionsNameTheContract(t *testing.T) {
	req := Compose("text", Options{})
	for _, want := range []string{
		"plagiarismPercentage", "grammarScore", "segments", "citations",
		"reproduce the document exactly",
	} {
		if !strings.Contains(req.System, want) {
			t.Fatalf("instructions missing %q", want)
		}
	}
	if strings.Contains(req.System, "web_search") {
		t.Fatalf("grounding instructions present without grounding enabled")
	}
}

func TestComposeGroundingSwitch(t *testing.T) {
	req := Compose("text", Options{Grounding: true})
	if !req.GroundingEnabled {
		t.Fatalf("grounding flag not carried")
	}
	if !strings.Contains(req.System, "web_search") {
		t.Fatalf("grounding instructions not appended")
	}
}

func TestComposeTruncatesAtRuneCap(t *testing.T) {
	doc := strings.Repeat("ä", 50) // 2 bytes per rune
	req := Compose(doc, Options{MaxDocumentRunes: 30})
	if !req.Truncated || req.DroppedRunes != 20 {
		t.Fatalf("truncated=%v dropped=%d, want true/20", req.Truncated, req.DroppedRunes)
	}
	if got := utf8.RuneCountInString(req.Document); got != 30 {
		t.Fatalf("capped document has %d runes, want 30", got)
	}
	if !utf8.ValidString(req.Document) {
		t.Fatalf("cap cut inside a rune")
	}
}

func TestComposeDeterministic(t *testing.T) {
	doc := strings.Repeat("word ", 100)
	a := Compose(doc, Options{MaxDocumentRunes: 42, Grounding: true})
	b := Compose(doc, Options{MaxDocumentRunes: 42, Grounding: true})
	if a != b {
		t.Fatalf("same input produced different requests")
	}
}

func TestComposeEstimatesPromptTokens(t *testing.T) {
	req := Compose("some document text", Options{})
	if req.EstimatedPromptTokens <= 0 {
		t.Fatalf("no token estimate")
	}
	want := estimateTokens(req.System) + estimateTokens(req.User)
	if req.EstimatedPromptTokens != want {
		t.Fatalf("estimate %d, want %d", req.EstimatedPromptTokens, want)
	}
}
