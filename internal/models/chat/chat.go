// Package chat adapts github.com/sashabaranov/go-openai into the
// types/interfaces.ChatProvider contract, routing on a "provider:model"
// prefix the way the teacher's internal/models/provider package routes
// embedders and chat providers by vendor (spec.md §9 design note).
package chat

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// PeerBaseURLs maps an OpenAI-compatible peer's provider key to its API base
// URL, grounded on the teacher's per-vendor provider files (aliyun, jina,
// volcengine, deepseek, openrouter) which each hardcode a DefaultURL.
var PeerBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"xai":        "https://api.x.ai/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

type provider struct {
	client *openai.Client
	model  string
}

// New builds a ChatProvider for a "provider:model" spec (e.g.
// "xai:grok-2-latest"); a bare model name defaults to provider "openai".
func New(providerModel string, apiKeys map[string]string) (interfaces.ChatProvider, error) {
	vendor, model := splitProviderModel(providerModel)
	baseURL, ok := PeerBaseURLs[vendor]
	if !ok {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown chat provider %q", vendor))
	}
	apiKey := apiKeys[vendor]
	if apiKey == "" {
		return nil, apperrors.NewUpstreamUnavailableError(fmt.Sprintf("no API key configured for chat provider %q", vendor))
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &provider{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func splitProviderModel(providerModel string) (vendor, model string) {
	if idx := strings.Index(providerModel, ":"); idx >= 0 {
		return providerModel[:idx], providerModel[idx+1:]
	}
	return "openai", providerModel
}

func (p *provider) Chat(ctx context.Context, model string, messages []interfaces.ChatMessage) (string, error) {
	if model == "" {
		model = p.model
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstreamUnavailable, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewUpstreamUnavailableError("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []interfaces.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
