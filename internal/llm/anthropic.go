package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
)

// defaultAnthropicMaxTokens bounds the answer when the caller sets none; the
// Anthropic API requires an explicit output budget on every request.
const defaultAnthropicMaxTokens = 4096

// ErrToolCallsUnsupported reports a request that asked the Anthropic adapter
// to relay function tools, which it does not translate.
var ErrToolCallsUnsupported = errors.New("anthropic provider does not relay tool calls")

// AnthropicProvider adapts the Anthropic Messages API to the Client
// interface for single-turn analysis calls. Only system and user messages
// are translated; the adapter reports itself as not tool capable, so search
// grounding degrades to an ungrounded analysis on this backend.
type AnthropicProvider struct {
	Inner anthropic.Client
}

// NewAnthropicProvider builds a provider authenticated with the given key.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{Inner: anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(newServiceHTTPClient()),
	)}
}

func (p *AnthropicProvider) SupportsToolCalls() bool { return false }

func (p *AnthropicProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(request.Tools) > 0 {
		return openai.ChatCompletionResponse{}, ErrToolCallsUnsupported
	}

	var system strings.Builder
	var messages []anthropic.MessageParam
	for _, m := range request.Messages {
		switch m.Role {
		case openai.ChatMessageRoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case openai.ChatMessageRoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return openai.ChatCompletionResponse{}, fmt.Errorf("anthropic provider: unsupported message role %q", m.Role)
		}
	}

	maxTokens := int64(request.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if system.Len() > 0 {
		// The instruction set is identical across requests, so let the API
		// cache it.
		params.System = []anthropic.TextBlockParam{
			{Text: system.String(), CacheControl: anthropic.NewCacheControlEphemeralParam()},
		}
	}

	message, err := p.Inner.Messages.New(ctx, params)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return openai.ChatCompletionResponse{
		Model: string(message.Model),
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: text.String(),
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}, nil
}
