package store

import (
	"context"
	"sort"
	"strings"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/memerr"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// Scope selects which tiers a search covers.
type Scope string

const (
	ScopeShortTerm Scope = "short_term"
	ScopeLongTerm  Scope = "long_term"
	ScopeBoth      Scope = "both"
)

// Strategy names reported on results and in degradation logs.
const (
	StrategySQLiteFTS5       = "sqlite_fts5"
	StrategyPostgresTSVector = "postgres_tsvector"
	StrategyMySQLNatural     = "mysql_fulltext_natural"
	StrategyMySQLBoolean     = "mysql_fulltext_boolean"
	StrategyLikeFallback     = "like_fallback"
)

const defaultSearchLimit = 10

// searchStrategy is the native full-text engine for one dialect. name
// reports the strategy label a query runs under; MySQL resolves it per
// query, the others are fixed.
type searchStrategy interface {
	name(query string) string
	search(ctx context.Context, query string, key tenant.Key, limit int, scope Scope) ([]model.SearchResult, error)
}

// SearchMemories runs the dialect's native full-text search and degrades
// to a LIKE scan when the native engine errors or matches nothing. The
// native engines tokenize on word boundaries; the LIKE pass is what
// keeps substring queries working. Results are ranked by score, then
// recency.
func (s *Store) SearchMemories(ctx context.Context, key tenant.Key, query string, limit int, scope Scope) ([]model.SearchResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []model.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if scope == "" {
		scope = ScopeBoth
	}

	results, err := s.strategy.search(ctx, q, key, limit, scope)
	if err != nil {
		strategy := s.strategy.name(q)
		serr := memerr.Search(strategy, err)
		s.logger.Warn("native search failed, degrading to LIKE",
			"strategy", strategy, "tenant", key.String(), "error", serr)
		return s.likeSearch(ctx, key, q, limit, scope)
	}
	if len(results) == 0 {
		return s.likeSearch(ctx, key, q, limit, scope)
	}
	return rankAndTrim(results, limit), nil
}

// likeSearch is the portable last line: case-insensitive substring match
// over content and summary, scored 0, newest first.
func (s *Store) likeSearch(ctx context.Context, key tenant.Key, query string, limit int, scope Scope) ([]model.SearchResult, error) {
	pattern := "%" + strings.ToLower(query) + "%"

	var results []model.SearchResult
	if scope == ScopeLongTerm || scope == ScopeBoth {
		pred, predArgs := key.Predicate("m.")
		args := append([]any{}, predArgs...)
		args = append(args, pattern, pattern, limit)

		rows, err := s.db.QueryContext(ctx, `
			SELECT m.id, m.content, m.summary, m.classification, m.importance, m.created_at
			FROM long_term_memory m
			WHERE `+pred+` AND (LOWER(m.content) LIKE ? OR LOWER(m.summary) LIKE ?)
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?`, args...)
		if err != nil {
			return nil, db.Classify("like search", err)
		}
		hits, err := collectUnranked(rows, model.TierLongTerm)
		if err != nil {
			return nil, db.Classify("like search", err)
		}
		results = append(results, hits...)
	}
	if scope == ScopeShortTerm || scope == ScopeBoth {
		pred, predArgs := key.Predicate("m.")
		args := append([]any{}, predArgs...)
		args = append(args, pattern, pattern, limit)

		rows, err := s.db.QueryContext(ctx, `
			SELECT m.id, m.content, m.summary, m.category_primary, '', m.created_at
			FROM short_term_memory m
			WHERE `+pred+` AND (LOWER(m.content) LIKE ? OR LOWER(m.summary) LIKE ?)
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?`, args...)
		if err != nil {
			return nil, db.Classify("like search", err)
		}
		hits, err := collectUnranked(rows, model.TierShortTerm)
		if err != nil {
			return nil, db.Classify("like search", err)
		}
		results = append(results, hits...)
	}

	return rankAndTrim(results, limit), nil
}

// rankAndTrim re-sorts merged tier results: score descending, then
// created_at descending, then ID descending.
func rankAndTrim(results []model.SearchResult, limit int) []model.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].MemoryID > results[j].MemoryID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// collectRanked scans rows shaped (id, content, summary, category,
// importance, created_at, score).
func collectRanked(rows rowIter, tier model.Tier, strategy string) ([]model.SearchResult, error) {
	defer rows.Close()

	var out []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		var created string
		if err := rows.Scan(&r.MemoryID, &r.Content, &r.Summary, &r.Category, &r.Importance, &created, &r.Score); err != nil {
			return nil, err
		}
		r.Tier = tier
		r.CreatedAt = model.ParseTime(created)
		r.SearchStrategy = strategy
		out = append(out, r)
	}
	return out, rows.Err()
}

// collectUnranked scans the same shape minus the score column.
func collectUnranked(rows rowIter, tier model.Tier) ([]model.SearchResult, error) {
	defer rows.Close()

	var out []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		var created string
		if err := rows.Scan(&r.MemoryID, &r.Content, &r.Summary, &r.Category, &r.Importance, &created); err != nil {
			return nil, err
		}
		r.Tier = tier
		r.CreatedAt = model.ParseTime(created)
		r.SearchStrategy = StrategyLikeFallback
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}
