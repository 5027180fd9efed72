// Package fact implements the fact pipeline (spec.md §4.E): seeding sources
// from chat transcripts, extracting structured claims, and scanning for
// cardinality-one contradictions.
package fact

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vantageplatform/vantage-core/internal/logger"
	"github.com/vantageplatform/vantage-core/internal/types"
	"github.com/vantageplatform/vantage-core/internal/types/interfaces"
)

// Service drives the three fact pipeline jobs.
type Service struct {
	Facts   interfaces.FactRepository
	Threads interfaces.ThreadRepository
}

func New(facts interfaces.FactRepository, threads interfaces.ThreadRepository) *Service {
	return &Service{Facts: facts, Threads: threads}
}

const (
	maxSeedMessageLen = 8000
	defaultSeedLimit  = 200
)

// kvLineRe matches a single "<Key>: <Value>" line with a restricted key
// charset (spec.md §4.E "fact_seed_from_chat_log_v1").
var kvLineRe = regexp.MustCompile(`^\s*[A-Za-z][A-Za-z0-9 _\-/]{0,63}\s*:\s*.+?\s*$`)

// SeedFromChatLog inserts up to N newest user-authored chat messages that
// look like KV lines into the source table as pending, deduped on
// external_id (spec.md §4.E "fact_seed_from_chat_log_v1").
func (s *Service) SeedFromChatLog(ctx context.Context, vantageID string, n int) (seeded int, err error) {
	if n <= 0 {
		n = defaultSeedLimit
	}
	rows, err := s.Threads.ListRecentUserMessages(ctx, vantageID, n)
	if err != nil {
		return 0, fmt.Errorf("list recent user messages: %w", err)
	}

	for _, row := range rows {
		text := strings.TrimRight(row.Text, "\n")
		if len(text) == 0 || len(text) > maxSeedMessageLen {
			continue
		}
		if !isKVLine(text) {
			continue
		}
		src := &types.Source{
			SourceType: "chat_log",
			ExternalID: fmt.Sprintf("chat_log:%s", row.ID),
			Title:      firstKVKey(text),
			Content:    text,
			Metadata: types.JSONMap{
				"chat_log_id": row.ID,
				"user_id":     row.UserID,
				"vantage_id":  row.VantageID,
			},
			CreatedAt: row.CreatedAt,
		}
		inserted, ierr := s.Facts.InsertSourceIfAbsent(ctx, src)
		if ierr != nil {
			return seeded, fmt.Errorf("insert source for chat_log %s: %w", row.ID, ierr)
		}
		if inserted {
			seeded++
		}
	}
	logger.Infof(ctx, "fact_seed_from_chat_log_v1: seeded %d/%d candidates for vantage %s", seeded, len(rows), vantageID)
	return seeded, nil
}

// isKVLine reports whether text is a single KV line, or its first line is
// (multi-line KV-ish content is still accepted as a source: the line regex
// only gates which messages are worth seeding at all).
func isKVLine(text string) bool {
	lines := strings.Split(text, "\n")
	return kvLineRe.MatchString(lines[0])
}

func firstKVKey(text string) string {
	lines := strings.Split(text, "\n")
	idx := strings.Index(lines[0], ":")
	if idx < 0 {
		return "source"
	}
	return strings.TrimSpace(lines[0][:idx])
}
