package store

import (
	"context"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/tenant"
)

// Stats summarizes one tenant's footprint across the tiers.
type Stats struct {
	DatabaseType     string `json:"database_type"`
	ChatHistoryCount int    `json:"chat_history_count"`
	ShortTermCount   int    `json:"short_term_count"`
	LongTermCount    int    `json:"long_term_count"`
	PermanentCount   int    `json:"permanent_count"`
	TotalMemories    int    `json:"total_memories"`
}

// Stats counts the tenant's rows in every tier. The total is derived
// from the per-tier counts, never queried separately. Counts run as
// separate queries, so a concurrent writer can skew them slightly.
func (s *Store) Stats(ctx context.Context, key tenant.Key) (Stats, error) {
	st := Stats{DatabaseType: string(s.db.Dialect())}

	pred, predArgs := key.Predicate("")

	count := func(query string, extra ...any) (int, error) {
		args := append([]any{}, predArgs...)
		args = append(args, extra...)
		var n int
		err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
		if err != nil {
			return 0, db.Classify("stats", err)
		}
		return n, nil
	}

	var err error
	if st.ChatHistoryCount, err = count(`SELECT COUNT(*) FROM chat_history WHERE ` + pred); err != nil {
		return Stats{}, err
	}
	if st.ShortTermCount, err = count(`SELECT COUNT(*) FROM short_term_memory WHERE ` + pred); err != nil {
		return Stats{}, err
	}
	if st.LongTermCount, err = count(`SELECT COUNT(*) FROM long_term_memory WHERE ` + pred); err != nil {
		return Stats{}, err
	}
	if st.PermanentCount, err = count(`SELECT COUNT(*) FROM short_term_memory WHERE `+pred+` AND is_permanent_context = ?`, true); err != nil {
		return Stats{}, err
	}

	st.TotalMemories = st.ChatHistoryCount + st.ShortTermCount + st.LongTermCount
	return st, nil
}
