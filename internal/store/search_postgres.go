package store

import (
	"context"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// postgresStrategy matches against the trigger-maintained tsvector
// column. plainto_tsquery accepts raw user text, so no sanitizing pass
// is needed here.
type postgresStrategy struct {
	db *db.DB
}

func (st *postgresStrategy) name(string) string { return StrategyPostgresTSVector }

func (st *postgresStrategy) search(ctx context.Context, query string, key tenant.Key, limit int, scope Scope) ([]model.SearchResult, error) {
	var results []model.SearchResult
	if scope == ScopeLongTerm || scope == ScopeBoth {
		hits, err := st.tier(ctx, key, query, limit, model.TierLongTerm)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	if scope == ScopeShortTerm || scope == ScopeBoth {
		hits, err := st.tier(ctx, key, query, limit, model.TierShortTerm)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	return results, nil
}

func (st *postgresStrategy) tier(ctx context.Context, key tenant.Key, query string, limit int, tier model.Tier) ([]model.SearchResult, error) {
	pred, predArgs := key.Predicate("m.")
	args := append([]any{query, query}, predArgs...)
	args = append(args, limit)

	var stmt string
	switch tier {
	case model.TierLongTerm:
		stmt = `
			SELECT m.id, m.content, m.summary, m.classification, m.importance, m.created_at,
			       ts_rank(m.content_tsv, plainto_tsquery('english', ?)) AS score
			FROM long_term_memory m
			WHERE m.content_tsv @@ plainto_tsquery('english', ?) AND ` + pred + `
			ORDER BY score DESC, m.created_at DESC, m.id DESC
			LIMIT ?`
	case model.TierShortTerm:
		stmt = `
			SELECT m.id, m.content, m.summary, m.category_primary, '', m.created_at,
			       ts_rank(m.content_tsv, plainto_tsquery('english', ?)) AS score
			FROM short_term_memory m
			WHERE m.content_tsv @@ plainto_tsquery('english', ?) AND ` + pred + `
			ORDER BY score DESC, m.created_at DESC, m.id DESC
			LIMIT ?`
	}

	rows, err := st.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return collectRanked(rows, tier, StrategyPostgresTSVector)
}
