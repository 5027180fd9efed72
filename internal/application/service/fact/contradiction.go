package fact

import (
	"context"
	"fmt"

	"github.com/vantageplatform/vantage-core/internal/logger"
)

// ScanContradictions runs one fact_contradiction_scan_v1 pass: for every
// cardinality-one predicate, opens (or refreshes) a contradiction wherever a
// subject holds more than one distinct active value. It never auto-resolves
// (spec.md §4.E "fact_contradiction_scan_v1").
func (s *Service) ScanContradictions(ctx context.Context) (opened int, err error) {
	predicates, err := s.Facts.CardinalityOnePredicates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cardinality-one predicates: %w", err)
	}

	for _, predicate := range predicates {
		subjects, err := s.Facts.SubjectsWithMultipleActiveValues(ctx, predicate)
		if err != nil {
			return opened, fmt.Errorf("find contradictory subjects for %s: %w", predicate, err)
		}
		for subjectID, claims := range subjects {
			memberIDs := make([]string, 0, len(claims))
			for _, c := range claims {
				memberIDs = append(memberIDs, c.ClaimID)
			}
			if err := s.Facts.OpenOrCreateContradiction(ctx, subjectID, predicate, memberIDs); err != nil {
				return opened, fmt.Errorf("open contradiction for %s/%s: %w", subjectID, predicate, err)
			}
			opened++
		}
	}
	logger.Infof(ctx, "fact_contradiction_scan_v1: %d subject/predicate contradictions open across %d predicates", opened, len(predicates))
	return opened, nil
}
