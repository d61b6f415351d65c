// Command openai-stub is a minimal OpenAI-compatible server for exercising
// goproof without a real model. Its answers always reconstruct the submitted
// document, so the full analysis pipeline passes deterministically. When a
// request offers the web_search tool, the stub asks for one search before
// answering, which drives the grounding loop end to end.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/hyperifyio/goproof/internal/analysis"
	"github.com/hyperifyio/goproof/internal/compose"
)

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []chatMessage     `json:"messages"`
	Tools    []json.RawMessage `json:"tools"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		document := ""
		sawToolResult := false
		for _, m := range req.Messages {
			if m.Role == "tool" {
				sawToolResult = true
			}
			if m.Role == "user" {
				if i := strings.Index(m.Content, compose.DocumentMarker); i >= 0 {
					document = m.Content[i+len(compose.DocumentMarker):]
				}
			}
		}
		if document == "" {
			http.Error(w, "no document after marker", http.StatusBadRequest)
			return
		}

		if len(req.Tools) > 0 && !sawToolResult {
			writeJSON(w, toolCallTurn(document))
			return
		}
		writeJSON(w, answerTurn(document, sawToolResult))
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// toolCallTurn asks for a single web_search over the document's first words.
func toolCallTurn(document string) map[string]any {
	words := strings.Fields(document)
	if len(words) > 6 {
		words = words[:6]
	}
	args, _ := json.Marshal(map[string]any{
		"query": strings.Join(words, " "),
		"limit": 3,
	})
	return map[string]any{
		"choices": []map[string]any{{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      "web_search",
						"arguments": string(args),
					},
				}},
			},
		}},
	}
}

// answerTurn renders the final analysis as fenced JSON, the way instructed
// models tend to answer even when asked for bare JSON.
func answerTurn(document string, grounded bool) map[string]any {
	payload, _ := json.MarshalIndent(buildAnalysis(document, grounded), "", "  ")
	content := "```json\n" + string(payload) + "\n```"
	return map[string]any{
		"choices": []map[string]any{{
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
	}
}

// buildAnalysis splits the document into three segments on rune boundaries:
// a plagiarism finding, a grammar finding and an untouched tail. In grounded
// answers the plagiarism segment is left unattributed so the caller's
// reference backfill has work to do.
func buildAnalysis(document string, grounded bool) analysis.Result {
	runes := []rune(document)
	total := len(runes)
	if total < 12 {
		return analysis.Result{
			GrammarScore:   100,
			OverallSummary: "Document too short for findings.",
			Segments:       []analysis.Segment{{Text: document, Kind: analysis.KindOriginal}},
			Citations:      []string{},
		}
	}

	aEnd := total / 3
	bEnd := 2 * total / 3

	plag := analysis.Segment{
		Text:        string(runes[:aEnd]),
		Kind:        analysis.KindPlagiarism,
		Explanation: "Close match to a published passage.",
		Suggestions: []string{"Rephrase this passage in your own words."},
	}
	citations := []string{}
	if !grounded {
		plag.SourceURL = "https://example.com/source"
		plag.Citation = "Example source"
		citations = append(citations, plag.SourceURL)
	}
	gram := analysis.Segment{
		Text:        string(runes[aEnd:bEnd]),
		Kind:        analysis.KindGrammar,
		Explanation: "Awkward phrasing.",
		Suggestions: []string{"Tighten this sentence.", "Split it into two sentences."},
	}
	orig := analysis.Segment{Text: string(runes[bEnd:]), Kind: analysis.KindOriginal}

	ai := 15
	return analysis.Result{
		PlagiarismPercentage: (aEnd*100 + total/2) / total,
		GrammarScore:         100 - (bEnd-aEnd)*50/total,
		AILikelihood:         &ai,
		WritingTone:          "neutral",
		OverallSummary:       "One likely copied passage and one grammar issue.",
		Subtopics:            []analysis.Subtopic{{Title: "Copied passage", SegmentIndex: 0}},
		Segments:             []analysis.Segment{plag, gram, orig},
		Citations:            citations,
	}
}
