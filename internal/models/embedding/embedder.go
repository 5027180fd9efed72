// Package embedding adapts github.com/sashabaranov/go-openai's embeddings
// endpoint into the types/interfaces.Embedder contract, plus a deterministic
// hash-to-vector embedder for offline tests (spec.md §9 design note: "a
// deterministic hash embedder stands in for a real provider in tests so
// retrieval-ranking invariants can be asserted without network access").
package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/models/chat"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

type provider struct {
	client *openai.Client
	model  string
	dim    int
}

// New builds an Embedder for a "provider:model" spec, reusing the same
// vendor base-URL table the chat package routes through.
func New(providerModel string, apiKeys map[string]string, dim int) (interfaces.Embedder, error) {
	vendor, model := splitProviderModel(providerModel)
	baseURL, ok := chat.PeerBaseURLs[vendor]
	if !ok {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown embedding provider %q", vendor))
	}
	apiKey := apiKeys[vendor]
	if apiKey == "" {
		return nil, apperrors.NewUpstreamUnavailableError(fmt.Sprintf("no API key configured for embedding provider %q", vendor))
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if dim == 0 {
		dim = 3072
	}
	return &provider{client: openai.NewClientWithConfig(cfg), model: model, dim: dim}, nil
}

func splitProviderModel(providerModel string) (vendor, model string) {
	if idx := strings.Index(providerModel, ":"); idx >= 0 {
		return providerModel[:idx], providerModel[idx+1:]
	}
	return "openai", providerModel
}

func (p *provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, "create embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.NewUpstreamUnavailableError("embedding response had no data")
	}
	return resp.Data[0].Embedding, nil
}

func (p *provider) Dimension() int { return p.dim }

// hashEmbedder is a deterministic, dependency-free stand-in used by tests
// and by any deployment that has not configured a real embedding provider.
type hashEmbedder struct {
	dim int
}

// NewHashEmbedder builds a deterministic hash-to-vector embedder of the
// given dimension.
func NewHashEmbedder(dim int) interfaces.Embedder {
	if dim <= 0 {
		dim = 256
	}
	return &hashEmbedder{dim: dim}
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		tokens = []string{""}
	}
	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		for i := 0; i < h.dim; i++ {
			byteVal := sum[i%len(sum)]
			sign := float32(1)
			if byteVal%2 == 0 {
				sign = -1
			}
			vec[i] += sign * float32(byteVal) / 255.0
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (h *hashEmbedder) Dimension() int { return h.dim }
