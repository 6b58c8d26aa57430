package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/memerr"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// LongTermParams carries one archive entry. ChatID ties the memory to
// the turn it was extracted from and anchors idempotency.
type LongTermParams struct {
	ChatID         string
	Content        string
	Summary        string
	Classification string
	Importance     string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// AddLongTerm inserts into the tenant's archive. Re-ingesting the same
// (chat ID, content) pair returns the existing row's ID with created
// false instead of a duplicate. The insert is attempted first; racing
// writers lose to the unique constraint and fall through to the lookup.
func (s *Store) AddLongTerm(ctx context.Context, key tenant.Key, p LongTermParams) (id string, created bool, err error) {
	classification := orDefault(p.Classification, model.CategoryContext)
	if !model.ValidCategories[classification] {
		return "", false, memerr.Validationf("classification", memerr.KindRange, "unknown classification %q", classification)
	}
	importance := orDefault(p.Importance, model.ImportanceMedium)
	if !model.ValidImportances[importance] {
		return "", false, memerr.Validationf("importance", memerr.KindRange, "unknown importance %q", importance)
	}

	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return "", false, err
	}

	id = s.newID()
	hash := contentHash(p.Content)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO long_term_memory (`+longTermCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullable(key.UserID), nullable(key.AssistantID), nullable(key.SessionID), key.Namespace,
		nullable(p.ChatID), p.Content, p.Summary, classification, importance,
		currentVersion, meta, hash, model.FormatTime(orNow(p.CreatedAt)),
	)
	if err != nil {
		if db.IsUniqueViolation(err) && p.ChatID != "" {
			existing, lookupErr := s.longTermIDByHash(ctx, key, p.ChatID, hash)
			if lookupErr == nil {
				return existing, false, nil
			}
		}
		return "", false, db.Classify("add long term", err)
	}
	return id, true, nil
}

func (s *Store) longTermIDByHash(ctx context.Context, key tenant.Key, chatID, hash string) (string, error) {
	pred, predArgs := key.Predicate("")
	args := append([]any{chatID, hash}, predArgs...)

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM long_term_memory
		WHERE chat_id = ? AND content_hash = ? AND `+pred+`
		LIMIT 1`, args...).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecentLongTerm returns the tenant's newest archive entries.
func (s *Store) RecentLongTerm(ctx context.Context, key tenant.Key, limit int) ([]model.LongTermMemory, error) {
	if limit <= 0 {
		limit = 10
	}

	pred, args := key.Predicate("")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+longTermCols+`
		FROM long_term_memory
		WHERE `+pred+`
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, db.Classify("recent long term", err)
	}
	defer rows.Close()

	var out []model.LongTermMemory
	for rows.Next() {
		m, err := scanLongTerm(rows)
		if err != nil {
			return nil, db.Classify("recent long term", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("recent long term", err)
	}
	return out, nil
}

// LongTermByID fetches one archive entry. A row owned by a different
// tenant is indistinguishable from a missing one.
func (s *Store) LongTermByID(ctx context.Context, key tenant.Key, id string) (model.LongTermMemory, error) {
	pred, predArgs := key.Predicate("")
	args := append([]any{id}, predArgs...)

	row := s.db.QueryRowContext(ctx, `
		SELECT `+longTermCols+`
		FROM long_term_memory
		WHERE id = ? AND `+pred, args...)

	m, err := scanLongTerm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LongTermMemory{}, fmt.Errorf("long-term memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.LongTermMemory{}, db.Classify("long term by id", err)
	}
	return m, nil
}
