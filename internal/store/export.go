package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// ExportRecord is one JSONL line of a tenant export. Exactly one of the
// payload fields is set, selected by Kind.
type ExportRecord struct {
	Kind      string                 `json:"kind"`
	Chat      *model.ChatRecord      `json:"chat,omitempty"`
	ShortTerm *model.ShortTermMemory `json:"short_term,omitempty"`
	LongTerm  *model.LongTermMemory  `json:"long_term,omitempty"`
}

// Export record kinds.
const (
	ExportKindChat      = "chat"
	ExportKindShortTerm = "short_term"
	ExportKindLongTerm  = "long_term"
)

// ExportTenant streams every record the tenant owns as JSONL, oldest
// first within each tier: chat history, then short-term, then
// long-term.
func (s *Store) ExportTenant(ctx context.Context, key tenant.Key, w io.Writer) error {
	enc := json.NewEncoder(w)

	pred, predArgs := key.Predicate("")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chatCols+`
		FROM chat_history
		WHERE `+pred+`
		ORDER BY timestamp ASC, chat_id ASC`, predArgs...)
	if err != nil {
		return db.Classify("export", err)
	}
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			rows.Close()
			return db.Classify("export", err)
		}
		if err := enc.Encode(ExportRecord{Kind: ExportKindChat, Chat: &c}); err != nil {
			rows.Close()
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := closeRows(rows); err != nil {
		return db.Classify("export", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT `+shortTermCols+`
		FROM short_term_memory
		WHERE `+pred+`
		ORDER BY created_at ASC, id ASC`, predArgs...)
	if err != nil {
		return db.Classify("export", err)
	}
	for rows.Next() {
		m, err := scanShortTerm(rows)
		if err != nil {
			rows.Close()
			return db.Classify("export", err)
		}
		if err := enc.Encode(ExportRecord{Kind: ExportKindShortTerm, ShortTerm: &m}); err != nil {
			rows.Close()
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := closeRows(rows); err != nil {
		return db.Classify("export", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT `+longTermCols+`
		FROM long_term_memory
		WHERE `+pred+`
		ORDER BY created_at ASC, id ASC`, predArgs...)
	if err != nil {
		return db.Classify("export", err)
	}
	for rows.Next() {
		m, err := scanLongTerm(rows)
		if err != nil {
			rows.Close()
			return db.Classify("export", err)
		}
		if err := enc.Encode(ExportRecord{Kind: ExportKindLongTerm, LongTerm: &m}); err != nil {
			rows.Close()
			return fmt.Errorf("export: %w", err)
		}
	}
	return closeRows(rows)
}

func closeRows(rows rowIter) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
