package store

import (
	"context"
	"time"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/memerr"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// ShortTermParams carries one working-set entry.
type ShortTermParams struct {
	OriginChatID      string
	Content           string
	Summary           string
	CategoryPrimary   string
	CategorySecondary string
	Permanent         bool
	CreatedAt         time.Time
}

// AddShortTerm inserts into the tenant's working set and evicts the
// oldest non-permanent entries above the conscious limit. Insert and
// eviction commit in one transaction, so a crash never leaves the set
// over the limit with the new row present.
func (s *Store) AddShortTerm(ctx context.Context, key tenant.Key, p ShortTermParams) (string, error) {
	category := orDefault(p.CategoryPrimary, model.CategoryContext)
	if !model.ValidCategories[category] {
		return "", memerr.Validationf("category_primary", memerr.KindRange, "unknown category %q", category)
	}

	id := s.newID()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", db.Classify("add short term", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO short_term_memory (`+shortTermCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullable(key.UserID), nullable(key.AssistantID), nullable(key.SessionID), key.Namespace,
		nullable(p.OriginChatID), p.Content, p.Summary, category,
		nullable(p.CategorySecondary), p.Permanent, model.FormatTime(orNow(p.CreatedAt)),
	)
	if err != nil {
		return "", db.Classify("add short term", err)
	}

	pred, predArgs := key.Predicate("")

	var count int
	countArgs := append([]any{}, predArgs...)
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_term_memory WHERE `+pred, countArgs...).Scan(&count)
	if err != nil {
		return "", db.Classify("add short term", err)
	}

	if over := count - s.limit; over > 0 {
		// The derived table keeps MySQL happy: it refuses a direct
		// subquery on the table being deleted from.
		evictArgs := append([]any{}, predArgs...)
		evictArgs = append(evictArgs, false, over)
		res, err := tx.ExecContext(ctx, `
			DELETE FROM short_term_memory WHERE id IN (
				SELECT id FROM (
					SELECT id FROM short_term_memory
					WHERE `+pred+` AND is_permanent_context = ?
					ORDER BY created_at ASC, id ASC
					LIMIT ?
				) evictable
			)`, evictArgs...)
		if err != nil {
			return "", db.Classify("evict short term", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			s.logger.Debug("evicted short-term memories", "tenant", key.String(), "count", n)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", db.Classify("add short term", err)
	}
	return id, nil
}

// ShortTermSet returns the tenant's whole working set: permanent
// entries first, then the rest newest first.
func (s *Store) ShortTermSet(ctx context.Context, key tenant.Key) ([]model.ShortTermMemory, error) {
	pred, args := key.Predicate("")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shortTermCols+`
		FROM short_term_memory
		WHERE `+pred+`
		ORDER BY is_permanent_context DESC, created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, db.Classify("short term set", err)
	}
	defer rows.Close()

	var out []model.ShortTermMemory
	for rows.Next() {
		m, err := scanShortTerm(rows)
		if err != nil {
			return nil, db.Classify("short term set", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("short term set", err)
	}
	return out, nil
}
