package store

import (
	"context"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
	"github.com/tiermem/tiermem/internal/textkit"
)

// mysqlStrategy picks the FULLTEXT mode per query: natural-language for
// a single term, boolean AND for multi-term so every term must appear.
// Natural mode ORs terms, which floods multi-term queries with
// one-term matches.
type mysqlStrategy struct {
	db *db.DB
}

func (st *mysqlStrategy) name(query string) string {
	_, _, label := mysqlMode(query)
	return label
}

// mysqlMode resolves one query's FULLTEXT mode, its strategy label, and
// the MATCH argument to send. name and search share it so the label in
// degradation logs is the one the query actually ran under.
func mysqlMode(query string) (match, mode, label string) {
	if len(textkit.Terms(query)) > 1 {
		return textkit.BooleanQuery(query), "IN BOOLEAN MODE", StrategyMySQLBoolean
	}
	return query, "IN NATURAL LANGUAGE MODE", StrategyMySQLNatural
}

func (st *mysqlStrategy) search(ctx context.Context, query string, key tenant.Key, limit int, scope Scope) ([]model.SearchResult, error) {
	if len(textkit.Terms(query)) == 0 {
		return nil, nil
	}
	match, mode, label := mysqlMode(query)

	var results []model.SearchResult
	if scope == ScopeLongTerm || scope == ScopeBoth {
		hits, err := st.tier(ctx, key, match, mode, label, limit, model.TierLongTerm)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	if scope == ScopeShortTerm || scope == ScopeBoth {
		hits, err := st.tier(ctx, key, match, mode, label, limit, model.TierShortTerm)
		if err != nil {
			return nil, err
		}
		results = append(results, hits...)
	}
	return results, nil
}

func (st *mysqlStrategy) tier(ctx context.Context, key tenant.Key, match, mode, label string, limit int, tier model.Tier) ([]model.SearchResult, error) {
	pred, predArgs := key.Predicate("m.")
	args := append([]any{match, match}, predArgs...)
	args = append(args, limit)

	var stmt string
	switch tier {
	case model.TierLongTerm:
		stmt = `
			SELECT m.id, m.content, m.summary, m.classification, m.importance, m.created_at,
			       MATCH(m.content, m.summary) AGAINST (? ` + mode + `) AS score
			FROM long_term_memory m
			WHERE MATCH(m.content, m.summary) AGAINST (? ` + mode + `) AND ` + pred + `
			ORDER BY score DESC, m.created_at DESC, m.id DESC
			LIMIT ?`
	case model.TierShortTerm:
		stmt = `
			SELECT m.id, m.content, m.summary, m.category_primary, '', m.created_at,
			       MATCH(m.content, m.summary) AGAINST (? ` + mode + `) AS score
			FROM short_term_memory m
			WHERE MATCH(m.content, m.summary) AGAINST (? ` + mode + `) AND ` + pred + `
			ORDER BY score DESC, m.created_at DESC, m.id DESC
			LIMIT ?`
	}

	rows, err := st.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return collectRanked(rows, tier, label)
}
