package interfaces

import "context"

// Embedder embeds text into a vector (spec.md §1 "text-in/vector-out").
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ChatMessage is one role-tagged message in a chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatProvider turns a message list into a text completion
// (spec.md §1 "messages-in/text-out").
type ChatProvider interface {
	Chat(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

// IdentityResolver is a pure function from (vantage, alias) to canonical id
// (spec.md §1 "Identity aliasing").
type IdentityResolver interface {
	Resolve(ctx context.Context, vantageID, aliasUserID string) (canonicalUserID string, err error)
}
