// Package compose builds the outbound analysis request: the fixed
// instruction set, the length-capped document and the grounding switch.
// Composition is pure; callers decide how to surface the truncation warning.
package compose

import (
	"math"
	"unicode/utf8"
)

// DefaultMaxDocumentRunes caps the analyzed document. The cap is counted in
// runes so multibyte text is not cut mid-character, and it is deliberately
// generous: a capped document still produces a valid analysis of its visible
// prefix rather than an error.
const DefaultMaxDocumentRunes = 24_000

// DocumentMarker separates the task preamble from the document inside the
// user message. Everything after the marker, to the end of the message, is
// the document under analysis.
const DocumentMarker = "DOCUMENT:\n"

// Instructions is the fixed system instruction set sent with every analysis
// request. The segmentation rules are the load-bearing part: downstream
// validation rejects any answer whose segments fail to reassemble into the
// document, so the contract is spelled out bluntly here.
const Instructions = `You are a rigorous writing-integrity analyst. Examine the document supplied by the user for plagiarized passages and grammar problems.

Respond with a single JSON object and nothing else: no prose before or after it and no markdown fences. The object must contain these fields:
- "plagiarismPercentage": integer 0-100, share of the text that is plagiarized
- "grammarScore": integer 0-100, overall grammatical quality
- "aiLikelihood": integer 0-100, optional, likelihood the text is machine-generated
- "writingTone": optional short label such as "formal" or "conversational"
- "overallSummary": one or two sentences summarizing the findings
- "subtopics": array of {"title": string, "segmentIndex": integer} anchors
- "segments": array of {"text": string, "kind": string, "suggestions": [string], "sourceUrl": string, "explanation": string, "citation": string}
- "citations": array of source URL strings

Segmentation rules:
- Split the document into contiguous segments that cover the whole text.
- Concatenating every segment "text" in order must reproduce the document exactly, including all whitespace and punctuation. Never paraphrase, trim or normalize inside "text".
- "kind" is "original", "plagiarism" or "grammar".
- Give every flagged segment at least one rewrite in "suggestions", best first, and a short "explanation".
- Name the copied source of each plagiarism segment in "sourceUrl" whenever you can identify one.`

// groundingInstructions is appended to the system message when the search
// grounding capability is switched on for the request.
const groundingInstructions = `

Before answering, use the web_search tool to look for likely sources of any passage you suspect is copied. Record discovered source URLs in the matching segment "sourceUrl" and in "citations".`

// Options tune a single composition.
type Options struct {
	// MaxDocumentRunes overrides DefaultMaxDocumentRunes when positive.
	MaxDocumentRunes int
	// Grounding enables the search-grounding capability for this request.
	Grounding bool
}

// Request is a composed, self-contained analysis request. System and User
// are the two chat messages handed to the service client; Document repeats
// the capped text so validation can compare against exactly what was sent.
type Request struct {
	System   string
	User     string
	Document string
	// GroundingEnabled mirrors Options.Grounding for the service client.
	GroundingEnabled bool
	// Truncated and DroppedRunes describe the applied cap, for the caller's
	// warning log.
	Truncated    bool
	DroppedRunes int
	// EstimatedPromptTokens is a conservative chars/4 estimate of the
	// composed prompt, for capacity logging only.
	EstimatedPromptTokens int
}

// Compose builds the analysis request for a document. Truncation to the rune
// cap is deterministic: same input, same cap, same request.
func Compose(document string, opts Options) Request {
	max := opts.MaxDocumentRunes
	if max <= 0 {
		max = DefaultMaxDocumentRunes
	}
	capped, dropped := capRunes(document, max)

	system := Instructions
	if opts.Grounding {
		system += groundingInstructions
	}
	user := "Analyze the document that follows the marker. Everything after the marker, up to the end of this message, is the document.\n\n" + DocumentMarker + capped

	return Request{
		System:                system,
		User:                  user,
		Document:              capped,
		GroundingEnabled:      opts.Grounding,
		Truncated:             dropped > 0,
		DroppedRunes:          dropped,
		EstimatedPromptTokens: estimateTokens(system) + estimateTokens(user),
	}
}

// capRunes cuts s after max runes and reports how many runes were dropped.
func capRunes(s string, max int) (string, int) {
	total := utf8.RuneCountInString(s)
	if total <= max {
		return s, 0
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i], total - max
		}
		count++
	}
	return s, 0
}

// estimateTokens uses the usual ~4 chars per token English heuristic,
// rounding up.
func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(s)) / 4.0))
}
