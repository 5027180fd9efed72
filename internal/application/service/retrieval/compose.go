package retrieval

import "context"

// bypassPrefixes are message prefixes routed straight past retrieval — the
// identity/policy control surface never gets grounded in memory or corpus
// hits (spec.md §4.H "identity/policy query bypass").
var bypassPrefixes = []string{
	"echo model id", "echo decision", "echo threadctx",
	"preflight_", "preflight:", "memtest:", "memoryseed:", "seedmemory:",
}

// IsBypassQuery reports whether a query should skip retrieval entirely.
func IsBypassQuery(query string) bool {
	q := normalizeForBypass(query)
	return hasAnyPrefix(q, bypassPrefixes...)
}

func normalizeForBypass(query string) string {
	out := make([]rune, 0, len(query))
	for _, r := range query {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	s := string(out)
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t' || s[0] == '\n') {
		s = s[1:]
	}
	return s
}

// Composed is the personal+corpus result handed to the chat path for
// grounding (spec.md §4.H "personal-then-corpus composition").
type Composed struct {
	Personal []Hit
	Corpus   []Hit
}

// All returns personal hits followed by corpus hits, the order the chat
// path renders context in.
func (c Composed) All() []Hit {
	out := make([]Hit, 0, len(c.Personal)+len(c.Corpus))
	out = append(out, c.Personal...)
	out = append(out, c.Corpus...)
	return out
}

// Retrieve runs personal-then-corpus retrieval and composes the result:
// personal[:k_personal] + corpus[:k_corpus], each independently sorted
// descending by score (spec.md §4.H "personal-then-corpus composition").
// Returns a zero Composed, no error, when the query is an identity/policy
// bypass query.
func (s *Service) Retrieve(ctx context.Context, userID, vantageID, query string, topKPersonal, topKCorpus int, scoreThreshold float64) (Composed, error) {
	if IsBypassQuery(query) {
		return Composed{}, nil
	}

	personal, err := s.RetrievePersonalMemory(ctx, userID, vantageID, query, topKPersonal, scoreThreshold)
	if err != nil {
		return Composed{}, err
	}
	corpus, err := s.RetrieveCorpus(ctx, vantageID, query, topKCorpus, scoreThreshold)
	if err != nil {
		return Composed{}, err
	}
	return Composed{Personal: personal, Corpus: corpus}, nil
}
