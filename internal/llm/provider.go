package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the minimal interface the analysis pipeline needs to call a chat
// model. It mirrors the CreateChatCompletion method shape so any
// OpenAI-compatible backend, hosted or local, can be plugged in.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is an optional capability that allows listing available models.
// Providers that do not support this can omit it; callers should use a type
// assertion to detect availability.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// ToolCapable is an optional capability reporting whether a provider relays
// function tool calls. Providers without it are assumed not to; callers
// detect it the same way as ModelLister.
type ToolCapable interface {
	SupportsToolCalls() bool
}

// SupportsTools reports whether c can relay tool calls. Search grounding is
// only attempted against providers that can.
func SupportsTools(c Client) bool {
	tc, ok := c.(ToolCapable)
	return ok && tc.SupportsToolCalls()
}

// OpenAIProvider adapts *openai.Client to the Client interface, covering
// both hosted endpoints and self-hosted OpenAI-compatible servers.
type OpenAIProvider struct {
	Inner *openai.Client
}

// NewOpenAIProvider builds a provider for the given endpoint. An empty
// baseURL keeps the library default; local servers commonly ignore the key.
func NewOpenAIProvider(baseURL, apiKey string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = newServiceHTTPClient()
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

func (p *OpenAIProvider) SupportsToolCalls() bool { return true }
