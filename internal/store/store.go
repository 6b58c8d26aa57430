// Package store persists the three memory record families (chat history,
// short-term working set, long-term archive) over SQLite, PostgreSQL or
// MySQL, and serves ranked full-text search with a per-backend strategy.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/memerr"
	"github.com/tiermem/tiermem/internal/model"
)

// ErrNotFound is returned when a record lookup matches nothing within
// the caller's tenant scope.
var ErrNotFound = errors.New("memory not found")

// currentVersion is the schema generation stamped on long-term rows
// written by this engine. Version 1 rows predate multi-tenancy.
const currentVersion = 2

// Options configures a Store.
type Options struct {
	// ConsciousMemoryLimit bounds the short-term working set per tenant.
	// Must be within [1, 2000].
	ConsciousMemoryLimit int

	Logger *slog.Logger
}

// Store is safe for concurrent use. Every operation takes exactly one
// tenant key and applies it as a mandatory filter.
type Store struct {
	db       *db.DB
	logger   *slog.Logger
	limit    int
	strategy searchStrategy
}

// New runs the idempotent migrations for the connection's dialect and
// selects the matching search strategy.
func New(ctx context.Context, database *db.DB, opts Options) (*Store, error) {
	limit := opts.ConsciousMemoryLimit
	if limit < minConsciousLimit || limit > maxConsciousLimit {
		return nil, memerr.Validationf("conscious_memory_limit", memerr.KindRange,
			"must be between %d and %d, got %d", minConsciousLimit, maxConsciousLimit, limit)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{db: database, logger: logger, limit: limit}

	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	switch database.Dialect() {
	case db.SQLite:
		s.strategy = &sqliteStrategy{db: database}
	case db.Postgres:
		s.strategy = &postgresStrategy{db: database}
	case db.MySQL:
		s.strategy = &mysqlStrategy{db: database}
	default:
		return nil, memerr.Validationf("database_url", memerr.KindType,
			"no search strategy for dialect %q", database.Dialect())
	}

	return s, nil
}

const (
	minConsciousLimit = 1
	maxConsciousLimit = 2000
)

// ConsciousLimit returns the configured working-set bound.
func (s *Store) ConsciousLimit() int { return s.limit }

// Dialect returns the backend this store runs on.
func (s *Store) Dialect() db.Dialect { return s.db.Dialect() }

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) newID() string {
	return ulid.Make().String()
}

// contentHash is the idempotency component for long-term rows: the hex
// SHA-256 of the content.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// nullable maps "" to SQL NULL. Unset tenant parts and optional columns
// are stored as NULL, never as empty strings.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalMetadata(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(raw sql.NullString) map[string]any {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil
	}
	return m
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

type scanner interface {
	Scan(dest ...any) error
}

const chatCols = "chat_id, user_id, assistant_id, session_id, namespace, user_input, ai_output, model, timestamp, tokens_used, metadata"

func scanChat(row scanner) (model.ChatRecord, error) {
	var c model.ChatRecord
	var userID, assistantID, sessionID, modelName, metadata sql.NullString
	var ts string

	err := row.Scan(
		&c.ChatID, &userID, &assistantID, &sessionID, &c.Namespace,
		&c.UserInput, &c.AIOutput, &modelName, &ts, &c.TokensUsed, &metadata,
	)
	if err != nil {
		return c, err
	}

	c.UserID = userID.String
	c.AssistantID = assistantID.String
	c.SessionID = sessionID.String
	c.Model = modelName.String
	c.Timestamp = model.ParseTime(ts)
	c.Metadata = unmarshalMetadata(metadata)
	return c, nil
}

const shortTermCols = "id, user_id, assistant_id, session_id, namespace, origin_chat_id, content, summary, category_primary, category_secondary, is_permanent_context, created_at"

func scanShortTerm(row scanner) (model.ShortTermMemory, error) {
	var m model.ShortTermMemory
	var userID, assistantID, sessionID, originChat, secondary sql.NullString
	var created string

	err := row.Scan(
		&m.ID, &userID, &assistantID, &sessionID, &m.Namespace,
		&originChat, &m.Content, &m.Summary, &m.CategoryPrimary,
		&secondary, &m.IsPermanentContext, &created,
	)
	if err != nil {
		return m, err
	}

	m.UserID = userID.String
	m.AssistantID = assistantID.String
	m.SessionID = sessionID.String
	m.OriginChatID = originChat.String
	m.CategorySecondary = secondary.String
	m.CreatedAt = model.ParseTime(created)
	return m, nil
}

const longTermCols = "id, user_id, assistant_id, session_id, namespace, chat_id, content, summary, classification, importance, version, metadata, content_hash, created_at"

func scanLongTerm(row scanner) (model.LongTermMemory, error) {
	var m model.LongTermMemory
	var userID, assistantID, sessionID, chatID, metadata sql.NullString
	var created string

	err := row.Scan(
		&m.ID, &userID, &assistantID, &sessionID, &m.Namespace,
		&chatID, &m.Content, &m.Summary, &m.Classification, &m.Importance,
		&m.Version, &metadata, &m.ContentHash, &created,
	)
	if err != nil {
		return m, err
	}

	m.UserID = userID.String
	m.AssistantID = assistantID.String
	m.SessionID = sessionID.String
	m.ChatID = chatID.String
	m.Metadata = unmarshalMetadata(metadata)
	m.CreatedAt = model.ParseTime(created)
	return m, nil
}
