// Package engine coordinates the memory tiers: it records conversation
// turns, promotes essential memories into the working set, and
// assembles injection-ready context for a query.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/tiermem/tiermem/internal/classify"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/store"
	"github.com/tiermem/tiermem/internal/tenant"
	"github.com/tiermem/tiermem/internal/vector"
)

// MemoryStore is the persistence surface the engine runs on. *store.Store
// implements it.
type MemoryStore interface {
	AddChat(ctx context.Context, key tenant.Key, p store.ChatParams) (string, error)
	AddShortTerm(ctx context.Context, key tenant.Key, p store.ShortTermParams) (string, error)
	AddLongTerm(ctx context.Context, key tenant.Key, p store.LongTermParams) (id string, created bool, err error)
	ShortTermSet(ctx context.Context, key tenant.Key) ([]model.ShortTermMemory, error)
	RecentLongTerm(ctx context.Context, key tenant.Key, limit int) ([]model.LongTermMemory, error)
	LongTermByID(ctx context.Context, key tenant.Key, id string) (model.LongTermMemory, error)
	SearchMemories(ctx context.Context, key tenant.Key, query string, limit int, scope store.Scope) ([]model.SearchResult, error)
}

// Secondary is an optional semantic index consulted as the last resort
// of the retrieval chain and fed on every long-term write.
type Secondary interface {
	Index(ctx context.Context, key tenant.Key, doc vector.Doc) error
	Search(ctx context.Context, key tenant.Key, query string, limit int) ([]model.SearchResult, error)
}

// Mode selects how context is assembled. Conscious ingestion serves the
// standing working set; auto ingestion retrieves per query. Both may be
// on at once.
type Mode struct {
	ConsciousIngest bool
	AutoIngest      bool
}

// Engine is safe for concurrent use.
type Engine struct {
	store      MemoryStore
	classifier classify.Classifier
	secondary  Secondary
	cache      *Cache
	logger     *slog.Logger
	mode       Mode

	contextLimit  int
	contextBudget int
	now           func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithMode sets the ingestion mode.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c classify.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithSecondary attaches a semantic index.
func WithSecondary(s Secondary) Option {
	return func(e *Engine) { e.secondary = s }
}

// WithCache attaches a working-set cache.
func WithCache(c *Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithContextLimit caps the number of records ContextForQuery returns.
func WithContextLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.contextLimit = n
		}
	}
}

// WithContextBudget caps the total content bytes ContextForQuery
// returns. Zero means unlimited.
func WithContextBudget(chars int) Option {
	return func(e *Engine) {
		if chars > 0 {
			e.contextBudget = chars
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

const (
	defaultContextLimit = 10

	// autoSearchLimit bounds every step of the auto-ingest retrieval
	// chain.
	autoSearchLimit = 5
)

// New builds an engine over st. Without options it classifies with the
// keyword classifier and assembles no context (both modes off).
func New(st MemoryStore, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		classifier:   classify.NewKeyword(),
		logger:       slog.Default(),
		contextLimit: defaultContextLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// retrievalKey marks a context that is already inside a retrieval pass.
type retrievalKey struct{}

func withRetrieval(ctx context.Context) context.Context {
	return context.WithValue(ctx, retrievalKey{}, true)
}

func inRetrieval(ctx context.Context) bool {
	v, _ := ctx.Value(retrievalKey{}).(bool)
	return v
}

// TurnParams is one user/assistant exchange to record.
type TurnParams struct {
	UserInput  string
	AIOutput   string
	Model      string
	TokensUsed int
	Metadata   map[string]any
}

// TurnResult reports what RecordTurn persisted.
type TurnResult struct {
	ChatID      string `json:"chat_id"`
	LongTermID  string `json:"long_term_id,omitempty"`
	ShortTermID string `json:"short_term_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Importance  string `json:"importance,omitempty"`
	Promoted    bool   `json:"promoted,omitempty"`
}

// RecordTurn appends the turn to chat history and, when an ingest mode
// is on, ingests it into long-term memory. Only the history append can
// fail the call; classification and ingestion degrade to a log line so
// a flaky classifier never loses a conversation. In conscious mode,
// turns the classifier marks essential are promoted into the working
// set. With both modes off, turns land in chat history only.
func (e *Engine) RecordTurn(ctx context.Context, key tenant.Key, p TurnParams) (TurnResult, error) {
	chatID, err := e.store.AddChat(ctx, key, store.ChatParams{
		UserInput:  p.UserInput,
		AIOutput:   p.AIOutput,
		Model:      p.Model,
		Timestamp:  e.now(),
		TokensUsed: p.TokensUsed,
		Metadata:   p.Metadata,
	})
	if err != nil {
		return TurnResult{}, err
	}
	res := TurnResult{ChatID: chatID}
	if !e.mode.ConsciousIngest && !e.mode.AutoIngest {
		return res, nil
	}

	// The classifier may be an LLM whose middleware asks for context;
	// the retrieval mark keeps that from fanning out.
	cls, err := e.classifier.Classify(withRetrieval(ctx), p.UserInput, p.AIOutput)
	if err != nil {
		e.logger.Warn("classification failed, using defaults", "tenant", key.String(), "error", err)
		cls = classify.Result{Category: model.CategoryContext, Importance: model.ImportanceMedium}
	}
	res.Category = cls.Category
	res.Importance = cls.Importance

	content := "User: " + p.UserInput + "\nAssistant: " + p.AIOutput
	ltID, _, err := e.store.AddLongTerm(ctx, key, store.LongTermParams{
		ChatID:         chatID,
		Content:        content,
		Summary:        cls.Summary,
		Classification: cls.Category,
		Importance:     cls.Importance,
		CreatedAt:      e.now(),
	})
	if err != nil {
		e.logger.Warn("long-term ingest failed", "tenant", key.String(), "chat_id", chatID, "error", err)
		return res, nil
	}
	res.LongTermID = ltID

	if e.secondary != nil {
		doc := vector.Doc{
			ID:         ltID,
			Content:    content,
			Tier:       string(model.TierLongTerm),
			Category:   cls.Category,
			Importance: cls.Importance,
			CreatedAt:  model.FormatTime(e.now()),
		}
		if err := e.secondary.Index(ctx, key, doc); err != nil {
			e.logger.Warn("secondary index failed", "memory_id", ltID, "error", err)
		}
	}

	if e.mode.ConsciousIngest && cls.Promote {
		stID, err := e.Promote(ctx, key, ltID, false)
		if err != nil {
			e.logger.Warn("promotion failed", "memory_id", ltID, "error", err)
		} else {
			res.ShortTermID = stID
			res.Promoted = true
		}
	}

	e.cache.invalidate(key)
	return res, nil
}
