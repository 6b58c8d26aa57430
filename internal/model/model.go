// Package model defines the memory record families and result types.
package model

import "time"

// TimeLayout is the fixed-width RFC 3339 form timestamps are stored with.
// The fractional part is always nine digits so that lexicographic order of
// the stored text equals chronological order on every backend.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeLayout, normalized to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp, tolerating both the fixed-width
// form and plain RFC 3339 written by older rows.
func ParseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// ChatRecord is one recorded conversation turn. Append-only: created on
// every recorded turn, never mutated.
type ChatRecord struct {
	ChatID      string         `json:"chat_id"`
	UserID      string         `json:"user_id,omitempty"`
	AssistantID string         `json:"assistant_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Namespace   string         `json:"namespace"`
	UserInput   string         `json:"user_input"`
	AIOutput    string         `json:"ai_output"`
	Model       string         `json:"model,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	TokensUsed  int            `json:"tokens_used,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ShortTermMemory is a row in the bounded working-memory ("conscious")
// tier. Rows with IsPermanentContext set are never auto-evicted.
type ShortTermMemory struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id,omitempty"`
	AssistantID        string    `json:"assistant_id,omitempty"`
	SessionID          string    `json:"session_id,omitempty"`
	Namespace          string    `json:"namespace"`
	OriginChatID       string    `json:"origin_chat_id,omitempty"`
	Content            string    `json:"content"`
	Summary            string    `json:"summary,omitempty"`
	CategoryPrimary    string    `json:"category_primary"`
	CategorySecondary  string    `json:"category_secondary,omitempty"`
	IsPermanentContext bool      `json:"is_permanent_context"`
	CreatedAt          time.Time `json:"created_at"`
}

// LongTermMemory is a row in the unbounded searchable tier. Rows written
// by this engine carry Version 2; Version 1 rows predate the
// multi-tenant schema.
type LongTermMemory struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id,omitempty"`
	AssistantID    string         `json:"assistant_id,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	Namespace      string         `json:"namespace"`
	ChatID         string         `json:"chat_id,omitempty"`
	Content        string         `json:"content"`
	Summary        string         `json:"summary,omitempty"`
	Classification string         `json:"classification"`
	Importance     string         `json:"importance"`
	Version        int            `json:"version"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ContentHash    string         `json:"content_hash"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Tier names a memory tier in search results.
type Tier string

const (
	TierShortTerm Tier = "short_term"
	TierLongTerm  Tier = "long_term"
)

// SearchResult is one ranked search hit. Score is backend-specific and
// comparable only within a single backend's result set; SearchStrategy
// names the mechanism that produced the hit.
type SearchResult struct {
	MemoryID       string    `json:"memory_id"`
	Tier           Tier      `json:"tier"`
	Content        string    `json:"content"`
	Summary        string    `json:"summary,omitempty"`
	Category       string    `json:"category"`
	Importance     string    `json:"importance,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Score          float64   `json:"search_score"`
	SearchStrategy string    `json:"search_strategy"`
}

// Retrieval methods annotated on context records, naming which path of
// the retrieval chain produced a record.
const (
	RetrievalDirect         = "direct_database_search"
	RetrievalRecentFallback = "recent_memories_fallback"
	RetrievalSearchEngine   = "search_engine"
)

// ContextRecord is a memory prepared for injection into an LLM call.
type ContextRecord struct {
	MemoryID        string    `json:"memory_id"`
	Content         string    `json:"content"`
	Summary         string    `json:"summary,omitempty"`
	Category        string    `json:"category,omitempty"`
	Importance      string    `json:"importance,omitempty"`
	Permanent       bool      `json:"permanent,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Score           float64   `json:"search_score,omitempty"`
	SearchStrategy  string    `json:"search_strategy,omitempty"`
	RetrievalMethod string    `json:"retrieval_method,omitempty"`
	RetrievalQuery  string    `json:"retrieval_query,omitempty"`
	Excerpt         bool      `json:"excerpt,omitempty"`
}

// Canonical classification labels.
const (
	CategoryFact       = "fact"
	CategoryPreference = "preference"
	CategoryKnowledge  = "knowledge"
	CategoryContext    = "context"
	CategoryRule       = "rule"
)

// Importance levels.
const (
	ImportanceLow    = "low"
	ImportanceMedium = "medium"
	ImportanceHigh   = "high"
)

// ValidCategories are the canonical classification labels.
var ValidCategories = map[string]bool{
	CategoryFact:       true,
	CategoryPreference: true,
	CategoryKnowledge:  true,
	CategoryContext:    true,
	CategoryRule:       true,
}

// ValidImportances are the allowed importance levels.
var ValidImportances = map[string]bool{
	ImportanceLow:    true,
	ImportanceMedium: true,
	ImportanceHigh:   true,
}
