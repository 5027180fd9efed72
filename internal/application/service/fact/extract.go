package fact

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vantageplatform/vantage-core/internal/idgen"
	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types"
)

const (
	docContentSHAConfidence = 0.90
	attrClaimConfidence     = 0.60
	defaultMaxFacts         = 50
	normalizedKeyMaxLen     = 64
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeKVKey lowercases, replaces runs of non-alphanumerics with a single
// underscore, trims, and caps at 64 chars, falling back to "unknown"
// (spec.md §4.E "KV key normalization").
func normalizeKVKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = nonAlnumRe.ReplaceAllString(k, "_")
	k = strings.Trim(k, "_")
	if len(k) > normalizedKeyMaxLen {
		k = k[:normalizedKeyMaxLen]
	}
	if k == "" {
		k = "unknown"
	}
	return k
}

// ExtractOne runs one fact_extract_v1 pass: claims the next pending source,
// upserts a doc.content_sha256 claim plus one attr.<key> claim per KV line,
// and marks the source done (spec.md §4.E "fact_extract_v1"). Returns false
// with no error if there was nothing pending to claim.
func (s *Service) ExtractOne(ctx context.Context, maxFacts int) (processed bool, err error) {
	if maxFacts <= 0 {
		maxFacts = defaultMaxFacts
	}

	src, err := s.Facts.ClaimNextPendingSource(ctx)
	if err != nil {
		return false, fmt.Errorf("claim next pending source: %w", err)
	}
	if src == nil {
		return false, nil
	}

	contentSHA := idgen.ContentSHA256(src.Content)
	if err := s.Facts.SetSourceContentSHA256(ctx, src.SourceID, contentSHA); err != nil {
		return false, s.failSource(ctx, src.SourceID, fmt.Errorf("persist content sha256: %w", err))
	}

	title := src.Title
	if title == "" {
		title = src.SourceID
	}
	entity, err := s.Facts.GetOrCreateEntity(ctx, "document", title)
	if err != nil {
		return false, s.failSource(ctx, src.SourceID, fmt.Errorf("get-or-create document entity: %w", err))
	}

	if err := s.upsertClaimWithEvidence(ctx, entity.EntityID, "doc.content_sha256", contentSHA, docContentSHAConfidence, src.SourceID, nil, nil); err != nil {
		return false, s.failSource(ctx, src.SourceID, fmt.Errorf("upsert content sha claim: %w", err))
	}

	lines := strings.Split(src.Content, "\n")
	facts := 0
	offset := 0
	for _, line := range lines {
		lineLen := len(line)
		start := offset
		offset += lineLen + 1
		if facts >= maxFacts {
			break
		}
		if !kvLineRe.MatchString(line) {
			continue
		}
		idx := strings.Index(line, ":")
		key := normalizeKVKey(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		if val == "" {
			continue
		}
		end := start + lineLen
		if err := s.upsertClaimWithEvidence(ctx, entity.EntityID, "attr."+key, val, attrClaimConfidence, src.SourceID, &start, &end); err != nil {
			return false, s.failSource(ctx, src.SourceID, fmt.Errorf("upsert attr.%s claim: %w", key, err))
		}
		facts++
	}

	if err := s.Facts.MarkSourceDone(ctx, src.SourceID); err != nil {
		return false, fmt.Errorf("mark source done: %w", err)
	}
	logger.Infof(ctx, "fact_extract_v1: source %s done with %d attr claims", src.SourceID, facts)
	return true, nil
}

func (s *Service) upsertClaimWithEvidence(ctx context.Context, entityID, predicate, value string, confidence float64, sourceID string, spanStart, spanEnd *int) error {
	canonicalKey := idgen.ClaimCanonicalKey(entityID, predicate, value, "")
	claim := &types.Claim{
		SubjectEntityID: entityID,
		Predicate:       predicate,
		ObjectLiteral:   quoteJSONLiteral(value),
		Confidence:      confidence,
		CanonicalKey:    canonicalKey,
	}
	saved, err := s.Facts.UpsertClaim(ctx, claim)
	if err != nil {
		return err
	}
	ev := &types.Evidence{
		ClaimID:              saved.ClaimID,
		SourceID:             sourceID,
		SpanStart:            spanStart,
		SpanEnd:              spanEnd,
		Extractor:            "fact_extract_v1",
		ExtractorVersion:     "1",
		ExtractionConfidence: confidence,
	}
	return s.Facts.InsertEvidence(ctx, ev)
}

func (s *Service) failSource(ctx context.Context, sourceID string, cause error) error {
	if markErr := s.Facts.MarkSourceError(ctx, sourceID, cause.Error()); markErr != nil {
		logger.Errorf(ctx, "failed to mark source %s as error after %v: %v", sourceID, cause, markErr)
	}
	return cause
}

func quoteJSONLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
