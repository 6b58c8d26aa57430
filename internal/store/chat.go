package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// ChatParams carries one conversation turn. ChatID and Timestamp are
// optional; blank values are filled in at insert time.
type ChatParams struct {
	ChatID     string
	UserInput  string
	AIOutput   string
	Model      string
	Timestamp  time.Time
	TokensUsed int
	Metadata   map[string]any
}

// AddChat appends a turn to the tenant's chat history and returns its
// chat ID.
func (s *Store) AddChat(ctx context.Context, key tenant.Key, p ChatParams) (string, error) {
	chatID := p.ChatID
	if chatID == "" {
		chatID = uuid.NewString()
	}

	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_history (`+chatCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chatID,
		nullable(key.UserID), nullable(key.AssistantID), nullable(key.SessionID), key.Namespace,
		p.UserInput, p.AIOutput, nullable(p.Model),
		model.FormatTime(orNow(p.Timestamp)), p.TokensUsed, meta,
	)
	if err != nil {
		return "", db.Classify("add chat", err)
	}
	return chatID, nil
}

// ChatHistory returns the tenant's most recent turns, newest first.
func (s *Store) ChatHistory(ctx context.Context, key tenant.Key, limit int) ([]model.ChatRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	pred, args := key.Predicate("")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chatCols+`
		FROM chat_history
		WHERE `+pred+`
		ORDER BY timestamp DESC, chat_id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, db.Classify("chat history", err)
	}
	defer rows.Close()

	var out []model.ChatRecord
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, db.Classify("chat history", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify("chat history", err)
	}
	return out, nil
}
