package store

import (
	"context"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
	"github.com/tiermem/tiermem/internal/textkit"
)

// sqliteStrategy ranks with FTS5 bm25. bm25() returns lower-is-better,
// so the sign is flipped to keep score-descending ordering uniform.
type sqliteStrategy struct {
	db *db.DB
}

func (st *sqliteStrategy) name(string) string { return StrategySQLiteFTS5 }

func (st *sqliteStrategy) search(ctx context.Context, query string, key tenant.Key, limit int, scope Scope) ([]model.SearchResult, error) {
	match := textkit.FTSQuery(query)
	if match == "" {
		return nil, nil
	}

	var results []model.SearchResult
	if scope == ScopeLongTerm || scope == ScopeBoth {
		hits, err := st.tier(ctx, key, match, limit, model.TierLongTerm)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	if scope == ScopeShortTerm || scope == ScopeBoth {
		hits, err := st.tier(ctx, key, match, limit, model.TierShortTerm)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	return results, nil
}

func (st *sqliteStrategy) tier(ctx context.Context, key tenant.Key, match string, limit int, tier model.Tier) ([]model.SearchResult, error) {
	pred, predArgs := key.Predicate("m.")
	args := append([]any{match}, predArgs...)
	args = append(args, limit)

	var query string
	switch tier {
	case model.TierLongTerm:
		query = `
			SELECT m.id, m.content, m.summary, m.classification, m.importance, m.created_at,
			       -bm25(long_term_fts) AS score
			FROM long_term_memory m
			JOIN long_term_fts ON long_term_fts.rowid = m.rowid
			WHERE long_term_fts MATCH ? AND ` + pred + `
			ORDER BY score DESC, m.created_at DESC, m.id DESC
			LIMIT ?`
	case model.TierShortTerm:
		query = `
			SELECT m.id, m.content, m.summary, m.category_primary, '', m.created_at,
			       -bm25(short_term_fts) AS score
			FROM short_term_memory m
			JOIN short_term_fts ON short_term_fts.rowid = m.rowid
			WHERE short_term_fts MATCH ? AND ` + pred + `
			ORDER BY score DESC, m.created_at DESC, m.id DESC
			LIMIT ?`
	}

	rows, err := st.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRanked(rows, tier, StrategySQLiteFTS5)
}
