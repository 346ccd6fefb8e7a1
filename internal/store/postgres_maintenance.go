package store

import (
	"context"
	"fmt"
	"time"
)

// softDeletableTables lists every table PruneSoftDeleted sweeps. Order
// doesn't matter: each row's deleted_at is independent and no foreign
// keys are declared between them (the control plane cross-references by
// string id and tolerates interleaved async cleanup here and in
// internal/vectorstore).
var softDeletableTables = []string{
	"collections",
	"files",
	"qa_pairs",
	"platforms",
	"visitors",
	"channel_members",
}

func (s *PostgresStore) PruneSoftDeleted(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	total := 0
	for _, table := range softDeletableTables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE deleted_at IS NOT NULL AND deleted_at < $1`, table)
		tag, err := s.db(ctx).Exec(ctx, query, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune soft deleted %s: %w", table, err)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}
