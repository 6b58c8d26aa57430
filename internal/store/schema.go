package store

import (
	"context"

	"github.com/tiermem/tiermem/internal/db"
)

// migrate applies the dialect's DDL. Every statement is idempotent, so
// opening an existing database is a no-op.
func (s *Store) migrate(ctx context.Context) error {
	var stmts []string
	switch s.db.Dialect() {
	case db.SQLite:
		stmts = sqliteSchema
	case db.Postgres:
		stmts = postgresSchema
	case db.MySQL:
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return db.Classify("migrate", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_history (
		chat_id      TEXT PRIMARY KEY,
		user_id      TEXT,
		assistant_id TEXT,
		session_id   TEXT,
		namespace    TEXT NOT NULL,
		user_input   TEXT NOT NULL,
		ai_output    TEXT NOT NULL,
		model        TEXT,
		timestamp    TEXT NOT NULL,
		tokens_used  INTEGER NOT NULL DEFAULT 0,
		metadata     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_tenant ON chat_history (namespace, user_id, timestamp)`,

	`CREATE TABLE IF NOT EXISTS short_term_memory (
		id                   TEXT PRIMARY KEY,
		user_id              TEXT,
		assistant_id         TEXT,
		session_id           TEXT,
		namespace            TEXT NOT NULL,
		origin_chat_id       TEXT,
		content              TEXT NOT NULL,
		summary              TEXT NOT NULL DEFAULT '',
		category_primary     TEXT NOT NULL,
		category_secondary   TEXT,
		is_permanent_context INTEGER NOT NULL DEFAULT 0,
		created_at           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stm_tenant ON short_term_memory (namespace, user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS long_term_memory (
		id             TEXT PRIMARY KEY,
		user_id        TEXT,
		assistant_id   TEXT,
		session_id     TEXT,
		namespace      TEXT NOT NULL,
		chat_id        TEXT,
		content        TEXT NOT NULL,
		summary        TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL,
		importance     TEXT NOT NULL,
		version        INTEGER NOT NULL DEFAULT 2,
		metadata       TEXT,
		content_hash   TEXT NOT NULL,
		created_at     TEXT NOT NULL,
		UNIQUE (chat_id, content_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ltm_tenant ON long_term_memory (namespace, user_id, created_at)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS short_term_fts USING fts5(
		content, summary,
		content='short_term_memory',
		content_rowid='rowid'
	)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS long_term_fts USING fts5(
		content, summary,
		content='long_term_memory',
		content_rowid='rowid'
	)`,

	`CREATE TRIGGER IF NOT EXISTS short_term_ai AFTER INSERT ON short_term_memory BEGIN
		INSERT INTO short_term_fts(rowid, content, summary) VALUES (new.rowid, new.content, new.summary);
	END`,
	`CREATE TRIGGER IF NOT EXISTS short_term_ad AFTER DELETE ON short_term_memory BEGIN
		INSERT INTO short_term_fts(short_term_fts, rowid, content, summary) VALUES ('delete', old.rowid, old.content, old.summary);
	END`,
	`CREATE TRIGGER IF NOT EXISTS short_term_au AFTER UPDATE ON short_term_memory BEGIN
		INSERT INTO short_term_fts(short_term_fts, rowid, content, summary) VALUES ('delete', old.rowid, old.content, old.summary);
		INSERT INTO short_term_fts(rowid, content, summary) VALUES (new.rowid, new.content, new.summary);
	END`,

	`CREATE TRIGGER IF NOT EXISTS long_term_ai AFTER INSERT ON long_term_memory BEGIN
		INSERT INTO long_term_fts(rowid, content, summary) VALUES (new.rowid, new.content, new.summary);
	END`,
	`CREATE TRIGGER IF NOT EXISTS long_term_ad AFTER DELETE ON long_term_memory BEGIN
		INSERT INTO long_term_fts(long_term_fts, rowid, content, summary) VALUES ('delete', old.rowid, old.content, old.summary);
	END`,
	`CREATE TRIGGER IF NOT EXISTS long_term_au AFTER UPDATE ON long_term_memory BEGIN
		INSERT INTO long_term_fts(long_term_fts, rowid, content, summary) VALUES ('delete', old.rowid, old.content, old.summary);
		INSERT INTO long_term_fts(rowid, content, summary) VALUES (new.rowid, new.content, new.summary);
	END`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_history (
		chat_id      TEXT PRIMARY KEY,
		user_id      TEXT,
		assistant_id TEXT,
		session_id   TEXT,
		namespace    TEXT NOT NULL,
		user_input   TEXT NOT NULL,
		ai_output    TEXT NOT NULL,
		model        TEXT,
		timestamp    TEXT NOT NULL,
		tokens_used  INTEGER NOT NULL DEFAULT 0,
		metadata     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_tenant ON chat_history (namespace, user_id, timestamp)`,

	`CREATE TABLE IF NOT EXISTS short_term_memory (
		id                   TEXT PRIMARY KEY,
		user_id              TEXT,
		assistant_id         TEXT,
		session_id           TEXT,
		namespace            TEXT NOT NULL,
		origin_chat_id       TEXT,
		content              TEXT NOT NULL,
		summary              TEXT NOT NULL DEFAULT '',
		category_primary     TEXT NOT NULL,
		category_secondary   TEXT,
		is_permanent_context BOOLEAN NOT NULL DEFAULT FALSE,
		created_at           TEXT NOT NULL,
		content_tsv          tsvector
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stm_tenant ON short_term_memory (namespace, user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_stm_tsv ON short_term_memory USING GIN (content_tsv)`,

	`CREATE TABLE IF NOT EXISTS long_term_memory (
		id             TEXT PRIMARY KEY,
		user_id        TEXT,
		assistant_id   TEXT,
		session_id     TEXT,
		namespace      TEXT NOT NULL,
		chat_id        TEXT,
		content        TEXT NOT NULL,
		summary        TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL,
		importance     TEXT NOT NULL,
		version        INTEGER NOT NULL DEFAULT 2,
		metadata       TEXT,
		content_hash   TEXT NOT NULL,
		created_at     TEXT NOT NULL,
		content_tsv    tsvector,
		UNIQUE (chat_id, content_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ltm_tenant ON long_term_memory (namespace, user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ltm_tsv ON long_term_memory USING GIN (content_tsv)`,

	`CREATE OR REPLACE FUNCTION short_term_memory_tsv() RETURNS trigger AS $$
	BEGIN
		NEW.content_tsv := to_tsvector('english', coalesce(NEW.content, '') || ' ' || coalesce(NEW.summary, ''));
		RETURN NEW;
	END
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS short_term_tsv_update ON short_term_memory`,
	`CREATE TRIGGER short_term_tsv_update
		BEFORE INSERT OR UPDATE ON short_term_memory
		FOR EACH ROW EXECUTE FUNCTION short_term_memory_tsv()`,

	`CREATE OR REPLACE FUNCTION long_term_memory_tsv() RETURNS trigger AS $$
	BEGIN
		NEW.content_tsv := to_tsvector('english', coalesce(NEW.content, '') || ' ' || coalesce(NEW.summary, ''));
		RETURN NEW;
	END
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS long_term_tsv_update ON long_term_memory`,
	`CREATE TRIGGER long_term_tsv_update
		BEFORE INSERT OR UPDATE ON long_term_memory
		FOR EACH ROW EXECUTE FUNCTION long_term_memory_tsv()`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_history (
		chat_id      VARCHAR(64) PRIMARY KEY,
		user_id      VARCHAR(255),
		assistant_id VARCHAR(255),
		session_id   VARCHAR(255),
		namespace    VARCHAR(255) NOT NULL,
		user_input   TEXT NOT NULL,
		ai_output    TEXT NOT NULL,
		model        VARCHAR(255),
		timestamp    VARCHAR(32) NOT NULL,
		tokens_used  INT NOT NULL DEFAULT 0,
		metadata     TEXT,
		KEY idx_chat_tenant (namespace, user_id, timestamp)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS short_term_memory (
		id                   VARCHAR(26) PRIMARY KEY,
		user_id              VARCHAR(255),
		assistant_id         VARCHAR(255),
		session_id           VARCHAR(255),
		namespace            VARCHAR(255) NOT NULL,
		origin_chat_id       VARCHAR(64),
		content              TEXT NOT NULL,
		summary              TEXT NOT NULL,
		category_primary     VARCHAR(32) NOT NULL,
		category_secondary   VARCHAR(32),
		is_permanent_context BOOLEAN NOT NULL DEFAULT FALSE,
		created_at           VARCHAR(32) NOT NULL,
		KEY idx_stm_tenant (namespace, user_id, created_at),
		FULLTEXT KEY ftx_stm (content, summary)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS long_term_memory (
		id             VARCHAR(26) PRIMARY KEY,
		user_id        VARCHAR(255),
		assistant_id   VARCHAR(255),
		session_id     VARCHAR(255),
		namespace      VARCHAR(255) NOT NULL,
		chat_id        VARCHAR(64),
		content        TEXT NOT NULL,
		summary        TEXT NOT NULL,
		classification VARCHAR(32) NOT NULL,
		importance     VARCHAR(32) NOT NULL,
		version        INT NOT NULL DEFAULT 2,
		metadata       TEXT,
		content_hash   CHAR(64) NOT NULL,
		created_at     VARCHAR(32) NOT NULL,
		UNIQUE KEY uq_ltm_chat_hash (chat_id, content_hash),
		KEY idx_ltm_tenant (namespace, user_id, created_at),
		FULLTEXT KEY ftx_ltm (content, summary)
	) ENGINE=InnoDB`,
}
