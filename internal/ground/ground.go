// Package ground runs the tool-enabled analysis conversation. The model may
// call web_search while forming its answer; every executed search is kept as
// grounding metadata so unattributed findings can be tied back to real URLs.
package ground

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goproof/internal/llm"
	"github.com/hyperifyio/goproof/internal/search"
)

const toolName = "web_search"

// DefaultMaxToolCalls bounds executed searches per run. Grounding a single
// document needs a handful of lookups, not a research crawl.
const DefaultMaxToolCalls = 8

// webSearchSchema describes the single tool offered to the model.
var webSearchSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search query for the suspected source of a passage"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 10}
  },
  "required": ["query"]
}`)

// Orchestrator drives a tool-enabled chat until the model produces a final
// text answer. It executes web_search calls against the configured provider,
// feeds results back as tool messages, and stops offering the tool once the
// search budget is spent so the model is forced to answer.
type Orchestrator struct {
	Client llm.Client
	Search search.Provider
	// MaxToolCalls limits executed searches per run. Zero means
	// DefaultMaxToolCalls.
	MaxToolCalls int
	// PerToolTimeout bounds one search. Zero means 10 seconds.
	PerToolTimeout time.Duration
	// MaxWallClock bounds the whole loop. Zero applies no deadline beyond
	// the caller's context.
	MaxWallClock time.Duration
	// ResultsPerSearch caps hits kept per executed search. Zero means 5.
	ResultsPerSearch int
}

// Outcome is the final assistant text plus the grounding hits gathered on
// the way there, grouped per executed search.
type Outcome struct {
	Text     string
	Hits     [][]search.Result
	Searches int
}

// Run executes the loop. The request must arrive with its messages already
// composed; Run manages the tool offering and the growing transcript.
func (o *Orchestrator) Run(ctx context.Context, baseReq openai.ChatCompletionRequest) (Outcome, error) {
	var out Outcome
	if o.Client == nil {
		return out, fmt.Errorf("ground: client is nil")
	}
	if o.Search == nil {
		return out, fmt.Errorf("ground: search provider is nil")
	}

	messages := append([]openai.ChatCompletionMessage(nil), baseReq.Messages...)
	tools := []openai.Tool{{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolName,
			Description: "Search the web for pages likely to be the source of a quoted or suspicious passage.",
			Parameters:  webSearchSchema,
		},
	}}

	var deadline time.Time
	if o.MaxWallClock > 0 {
		deadline = time.Now().Add(o.MaxWallClock)
	}
	maxCalls := o.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = DefaultMaxToolCalls
	}
	// Turn cap covers the degenerate model that keeps requesting unknown
	// tools or malformed arguments, which consume no search budget.
	maxTurns := 2*maxCalls + 4

	for turn := 0; ; turn++ {
		if turn >= maxTurns {
			return out, fmt.Errorf("ground: no final answer after %d turns", turn)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return out, fmt.Errorf("ground: wall-clock budget exceeded")
		}

		req := baseReq
		req.Messages = messages
		if out.Searches < maxCalls {
			req.Tools = tools
		} else {
			// Budget spent: withhold the tool so the model must answer.
			req.Tools = nil
		}
		resp, err := o.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			return out, err
		}
		if len(resp.Choices) == 0 {
			return out, fmt.Errorf("ground: empty choices from model")
		}
		assistant := resp.Choices[0].Message
		messages = append(messages, assistant)

		calls := functionCalls(assistant)
		if len(calls) == 0 {
			out.Text = assistant.Content
			return out, nil
		}
		if len(req.Tools) == 0 {
			return out, fmt.Errorf("ground: model requested tools after the search budget was exhausted")
		}
		for _, call := range calls {
			var content string
			if out.Searches >= maxCalls {
				content = errEnvelope(call.Function.Name, "search budget exhausted")
			} else {
				content = o.execute(ctx, deadline, call, &out)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
				Content:    content,
			})
		}
	}
}

// execute runs one web_search call and returns the tool result envelope.
// Executed searches append their hits to the outcome even when later turns
// fail; attribution can use everything that was actually found.
func (o *Orchestrator) execute(ctx context.Context, deadline time.Time, call openai.ToolCall, out *Outcome) string {
	if call.Function.Name != toolName {
		return errEnvelope(call.Function.Name, "unknown tool")
	}
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return errEnvelope(toolName, `invalid arguments: expected {"query": string}`)
	}
	maxResults := o.ResultsPerSearch
	if maxResults <= 0 {
		maxResults = 5
	}
	limit := args.Limit
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}

	per := o.PerToolTimeout
	if per <= 0 {
		per = 10 * time.Second
	}
	if !deadline.IsZero() {
		if remain := time.Until(deadline); remain < per {
			per = remain
		}
	}
	if per <= 0 {
		return errEnvelope(toolName, "time budget exhausted")
	}
	toolCtx, cancel := context.WithTimeout(ctx, per)
	defer cancel()

	hits, err := o.Search.Search(toolCtx, args.Query, limit)
	if err != nil {
		log.Warn().Err(err).Str("query", args.Query).Msg("grounding search failed")
		return errEnvelope(toolName, "search failed: "+err.Error())
	}
	log.Debug().Str("query", args.Query).Int("hits", len(hits)).Msg("grounding search")
	out.Hits = append(out.Hits, hits)
	out.Searches++

	payload := make([]map[string]string, 0, len(hits))
	for _, h := range hits {
		payload = append(payload, map[string]string{
			"title":   h.Title,
			"url":     h.URL,
			"snippet": h.Snippet,
		})
	}
	b, _ := json.Marshal(map[string]any{"ok": true, "tool": toolName, "data": payload})
	return string(b)
}

// functionCalls returns the function tool calls in an assistant message.
func functionCalls(msg openai.ChatCompletionMessage) []openai.ToolCall {
	var out []openai.ToolCall
	for _, tc := range msg.ToolCalls {
		if tc.Type == openai.ToolTypeFunction {
			out = append(out, tc)
		}
	}
	return out
}

func errEnvelope(tool, msg string) string {
	b, _ := json.Marshal(map[string]any{"ok": false, "tool": tool, "error": msg})
	return string(b)
}
