package repository

import "gorm.io/gorm/clause"

// onConflictDoNothing builds an ON CONFLICT (cols...) DO NOTHING clause, used
// wherever the spec calls for idempotent inserts (card links, alias rows,
// telemetry events).
func onConflictDoNothing(cols ...string) clause.OnConflict {
	columns := make([]clause.Column, 0, len(cols))
	for _, c := range cols {
		columns = append(columns, clause.Column{Name: c})
	}
	return clause.OnConflict{Columns: columns, DoNothing: true}
}

// onConflictUpdateCanonical re-aliases an existing (vantage_id,
// alias_user_id) row to a new canonical_user_id instead of erroring.
func onConflictUpdateCanonical() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "vantage_id"}, {Name: "alias_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"canonical_user_id"}),
	}
}

// onConflictUpdatePolicy replaces an existing rag_policy row's document.
func onConflictUpdatePolicy() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "vantage_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"policy", "updated_at"}),
	}
}
