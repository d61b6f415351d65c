// Package service is the client for the external grounded analysis model.
// It owns vendor selection, lazy client construction, the response cache and
// the optional search-grounded tool loop; callers hand it a composed request
// and get back raw text plus any grounding references.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goproof/internal/analysis"
	"github.com/hyperifyio/goproof/internal/cache"
	"github.com/hyperifyio/goproof/internal/compose"
	"github.com/hyperifyio/goproof/internal/ground"
	"github.com/hyperifyio/goproof/internal/llm"
	"github.com/hyperifyio/goproof/internal/refs"
	"github.com/hyperifyio/goproof/internal/search"
)

const (
	VendorOpenAI    = "openai"
	VendorAnthropic = "anthropic"
)

var (
	// ErrNotConfigured marks fatal configuration problems: missing model,
	// missing credentials, unknown vendor. Its message is meant to be shown
	// to the operator verbatim.
	ErrNotConfigured = errors.New("analysis service not configured")
	// ErrCacheMiss is returned in cache-only mode when no cached answer
	// exists for the request.
	ErrCacheMiss = errors.New("no cached analysis for this request")
)

// Analyzer is what the session consumes: one call per analysis, raw text and
// references out.
type Analyzer interface {
	Analyze(ctx context.Context, req compose.Request) (Response, error)
}

// Response carries the raw model answer and the grounding references
// discovered while producing it. RawText is deliberately unparsed here;
// validation owns that step.
type Response struct {
	RawText    string               `json:"rawText"`
	References []analysis.Reference `json:"references,omitempty"`
	// FromCache marks answers served from the response cache.
	FromCache bool `json:"-"`
}

// Client talks to the configured model vendor. The zero value plus a Model
// and credentials is usable; the underlying provider is built lazily on the
// first call and reused afterwards.
type Client struct {
	// Provider, when pre-set, is used as-is. Otherwise one is built from
	// Vendor, BaseURL and APIKey on first use.
	Provider llm.Client
	Vendor   string
	BaseURL  string
	APIKey   string
	Model    string

	// Search powers the web_search tool during grounded requests. Without
	// it, grounding degrades to a plain request.
	Search search.Provider
	Cache  *cache.ResponseCache
	// CacheOnly serves cached answers only and fails fast on a miss.
	CacheOnly bool

	MaxToolCalls   int
	PerToolTimeout time.Duration
	MaxWallClock   time.Duration
	MaxReferences  int
	PerDomainRefs  int

	mu sync.Mutex
}

// Analyze performs one analysis call, consulting the cache first. Transient
// transport failures get a single short-backoff retry; whatever text comes
// back is returned unparsed, except that blank answers are never cached.
func (c *Client) Analyze(ctx context.Context, req compose.Request) (Response, error) {
	if strings.TrimSpace(c.Model) == "" {
		return Response{}, fmt.Errorf("%w: model name is empty", ErrNotConfigured)
	}

	key := cache.Key(c.Model, req.System+"\n\n"+req.User)
	if c.Cache != nil {
		if raw, ok, _ := c.Cache.Get(ctx, key); ok {
			var out Response
			if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.RawText) != "" {
				out.FromCache = true
				log.Debug().Str("model", c.Model).Msg("analysis served from cache")
				return out, nil
			}
		}
	}
	// Cache-only mode never needs credentials, so the provider check comes
	// after the cache lookup.
	if c.CacheOnly {
		return Response{}, ErrCacheMiss
	}

	provider, err := c.provider()
	if err != nil {
		return Response{}, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: 0.1,
		N:           1,
	}

	grounded := req.GroundingEnabled && c.Search != nil && llm.SupportsTools(provider)
	if req.GroundingEnabled && !grounded {
		log.Warn().Str("vendor", c.vendor()).Msg("grounding requested but unavailable; analyzing without source search")
	}

	var out Response
	if grounded {
		outcome, err := c.runGrounded(ctx, provider, chatReq)
		if err != nil {
			return Response{}, fmt.Errorf("analysis call: %w", err)
		}
		out.RawText = outcome.Text
		out.References = refs.Collect(outcome.Hits, refs.Options{
			MaxTotal:  c.MaxReferences,
			PerDomain: c.PerDomainRefs,
		})
		log.Debug().Int("searches", outcome.Searches).Int("references", len(out.References)).Msg("grounded analysis complete")
	} else {
		resp, err := c.complete(ctx, provider, chatReq)
		if err != nil {
			return Response{}, fmt.Errorf("analysis call: %w", err)
		}
		if len(resp.Choices) > 0 {
			out.RawText = resp.Choices[0].Message.Content
		}
	}

	if c.Cache != nil && strings.TrimSpace(out.RawText) != "" {
		payload, _ := json.Marshal(out)
		_ = c.Cache.Save(ctx, key, payload)
	}
	return out, nil
}

// Preflight verifies the client can construct its provider and, when the
// provider can list models, warns if the configured model is not advertised.
// A failed or absent listing is not an error; local stubs often omit the
// endpoint.
func (c *Client) Preflight(ctx context.Context) error {
	provider, err := c.provider()
	if err != nil {
		return err
	}
	lister, ok := provider.(llm.ModelLister)
	if !ok {
		return nil
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("model listing unavailable")
		return nil
	}
	for _, m := range models.Models {
		if m.ID == c.Model {
			return nil
		}
	}
	log.Warn().Str("model", c.Model).Int("advertised", len(models.Models)).Msg("configured model not advertised by the service")
	return nil
}

// runGrounded executes the tool loop, retrying the whole loop once on error.
func (c *Client) runGrounded(ctx context.Context, provider llm.Client, req openai.ChatCompletionRequest) (ground.Outcome, error) {
	orch := &ground.Orchestrator{
		Client:         provider,
		Search:         c.Search,
		MaxToolCalls:   c.MaxToolCalls,
		PerToolTimeout: c.PerToolTimeout,
		MaxWallClock:   c.MaxWallClock,
	}
	outcome, err := orch.Run(ctx, req)
	if err != nil {
		pause(100)
		outcome, err = orch.Run(ctx, req)
		if err != nil {
			return ground.Outcome{}, fmt.Errorf("after retry: %w", err)
		}
	}
	return outcome, nil
}

// complete performs a plain single-turn call with one retry on error. The
// caller's context deadline still bounds the second attempt.
func (c *Client) complete(ctx context.Context, provider llm.Client, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := provider.CreateChatCompletion(ctx, req)
	if err != nil {
		pause(100)
		resp, err = provider.CreateChatCompletion(ctx, req)
		if err != nil {
			return openai.ChatCompletionResponse{}, fmt.Errorf("after retry: %w", err)
		}
	}
	return resp, nil
}

// provider returns the configured client, building it on first use. The
// model and credential checks run on every call, so a misconfigured client
// fails the same way no matter when it is first exercised.
func (c *Client) provider() (llm.Client, error) {
	if strings.TrimSpace(c.Model) == "" {
		return nil, fmt.Errorf("%w: model name is empty", ErrNotConfigured)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Provider != nil {
		return c.Provider, nil
	}
	switch c.vendor() {
	case VendorAnthropic:
		if strings.TrimSpace(c.APIKey) == "" {
			return nil, fmt.Errorf("%w: anthropic API key is empty", ErrNotConfigured)
		}
		c.Provider = llm.NewAnthropicProvider(c.APIKey)
	case VendorOpenAI:
		if strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.BaseURL) == "" {
			return nil, fmt.Errorf("%w: set an API key or a local base URL", ErrNotConfigured)
		}
		c.Provider = llm.NewOpenAIProvider(c.BaseURL, c.APIKey)
	default:
		return nil, fmt.Errorf("%w: unknown vendor %q", ErrNotConfigured, c.Vendor)
	}
	return c.Provider, nil
}

func (c *Client) vendor() string {
	v := strings.ToLower(strings.TrimSpace(c.Vendor))
	if v == "" {
		return VendorOpenAI
	}
	return v
}

// sleepFunc lets tests replace the retry backoff, in milliseconds.
var sleepFunc func(ms int)

func pause(ms int) {
	if sleepFunc != nil {
		sleepFunc(ms)
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
