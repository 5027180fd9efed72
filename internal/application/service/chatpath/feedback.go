package chatpath

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/vantageplatform/vantage-core/internal/application/service/retrieval"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// Sentiment is the classified feedback polarity (spec.md §4.L "Feedback path").
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

var negativeMarkers = []string{
	"wrong", "not right", "incorrect", "that's not it", "no that's not", "bad answer",
	"didn't help", "did not help", "not helpful", "useless", "that's not what i meant",
}

var positiveMarkers = []string{
	"thanks", "thank you", "that helped", "that's helpful", "perfect", "exactly",
	"great", "nice", "that's right", "correct", "good answer", "love it",
}

var tagThisRe = regexp.MustCompile(`(?i)tag this as\s+([a-z0-9_\- ]{2,64})`)

// ClassifySentiment applies the marker-based classifier (spec.md §4.L
// "classify sentiment via markers"). Returns SentimentNeutral when no
// marker matches; callers may fall back to an LLM classifier.
func ClassifySentiment(message string) Sentiment {
	m := strings.ToLower(message)
	for _, n := range negativeMarkers {
		if strings.Contains(m, n) {
			return SentimentNegative
		}
	}
	for _, p := range positiveMarkers {
		if strings.Contains(m, p) {
			return SentimentPositive
		}
	}
	return SentimentNeutral
}

// ExtractUserTag finds an explicit "tag this as X" instruction and slugs it.
func ExtractUserTag(message string) string {
	match := tagThisRe.FindStringSubmatch(message)
	if match == nil {
		return ""
	}
	return slugify(match[1])
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('_')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// classifyWithLLMFallback asks the chat provider to emit exactly one of
// positive/negative/neutral when the marker classifier stays neutral
// (spec.md §4.L "if still neutral and a language model is available").
func (s *Service) classifyWithLLMFallback(ctx context.Context, message string) Sentiment {
	sentiment := ClassifySentiment(message)
	if sentiment != SentimentNeutral || s.Chat == nil {
		return sentiment
	}
	reply, err := s.Chat.Chat(ctx, s.Model, []interfaces.ChatMessage{
		{Role: "system", Content: "Classify the sentiment of the next message as exactly one word: positive, negative, or neutral. Reply with only that word."},
		{Role: "user", Content: message},
	})
	if err != nil {
		return SentimentNeutral
	}
	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "positive":
		return SentimentPositive
	case "negative":
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// FeedbackResult reports what a feedback call did.
type FeedbackResult struct {
	Sentiment     Sentiment
	Tag           string
	MemoryUpdated int
}

// lastResultCache keys a user's most recent answer trace by
// (user_id, thread_id, vantage_id) for feedback resolution when no
// answer_id is supplied (spec.md §4.L "cache last-result").
var lastResultCache sync.Map // cacheKey -> *Result

type cacheKey struct {
	UserID, ThreadID, VantageID string
}

func cacheResult(userID, threadID, vantageID string, res *Result) {
	lastResultCache.Store(cacheKey{userID, threadID, vantageID}, res)
}

func lookupCachedResult(userID, threadID, vantageID string) *Result {
	v, ok := lastResultCache.Load(cacheKey{userID, threadID, vantageID})
	if !ok {
		return nil
	}
	return v.(*Result)
}

// Feedback resolves the memory ids an answer grounded in (answer_id first,
// then the cached last result), classifies the follow-up message's
// sentiment, and updates each memory point's feedback counters and
// user_tags (spec.md §4.L "Feedback path").
func (s *Service) Feedback(ctx context.Context, userID, threadID, vantageID, answerID, message string) (*FeedbackResult, error) {
	var memoryIDs []string
	if answerID != "" && s.Traces != nil {
		if trace, err := s.Traces.Get(ctx, answerID); err == nil && trace != nil {
			memoryIDs = []string(trace.MemoryIDs)
		}
	}
	if len(memoryIDs) == 0 {
		if cached := lookupCachedResult(userID, threadID, vantageID); cached != nil {
			memoryIDs = cached.MemoryIDs
		}
	}

	sentiment := s.classifyWithLLMFallback(ctx, message)
	tag := ExtractUserTag(message)

	updated := 0
	if s.Retrieval != nil && len(memoryIDs) > 0 {
		for _, id := range memoryIDs {
			if err := s.applyMemoryFeedback(ctx, id, sentiment, tag); err == nil {
				updated++
			}
		}
	}

	return &FeedbackResult{Sentiment: sentiment, Tag: tag, MemoryUpdated: updated}, nil
}

// applyMemoryFeedback increments feedback.positive_signals/negative_signals
// on a memory point's payload and appends an explicit user tag.
func (s *Service) applyMemoryFeedback(ctx context.Context, memoryID string, sentiment Sentiment, tag string) error {
	points, err := s.Retrieval.Vectors.Retrieve(ctx, retrieval.MemoryCollection, []string{memoryID})
	if err != nil {
		return fmt.Errorf("retrieve memory point %s: %w", memoryID, err)
	}
	if len(points) == 0 {
		return nil
	}
	point := points[0]
	if point.Payload == nil {
		point.Payload = map[string]interface{}{}
	}
	fb, _ := point.Payload["feedback"].(map[string]interface{})
	if fb == nil {
		fb = map[string]interface{}{}
	}
	switch sentiment {
	case SentimentPositive:
		fb["positive_signals"] = asFloat(fb["positive_signals"]) + 1
	case SentimentNegative:
		fb["negative_signals"] = asFloat(fb["negative_signals"]) + 1
	}
	point.Payload["feedback"] = fb

	if tag != "" {
		userTags, _ := point.Payload["user_tags"].([]interface{})
		userTags = append(userTags, tag)
		point.Payload["user_tags"] = userTags
	}

	return s.Retrieval.Vectors.Upsert(ctx, retrieval.MemoryCollection, []interfaces.Point{point})
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
