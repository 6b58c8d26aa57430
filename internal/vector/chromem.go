package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

// Strategy is the name stamped on results served from the vector index.
const Strategy = "chromem_vector"

// Engine indexes memory text in chromem-go, one collection per tenant
// key. Collections are created lazily and cached; the documents carry
// precomputed embeddings, so chromem never calls out itself.
type Engine struct {
	db       *chromem.DB
	embedder Embedder
	logger   *slog.Logger

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

func NewEngine(embedder Embedder, logger *slog.Logger) *Engine {
	return newEngine(chromem.NewDB(), embedder, logger)
}

// NewPersistentEngine stores the index under dir so it survives process
// restarts. The embedder must stay the same across runs; mixing
// embedding spaces in one index makes similarities meaningless.
func NewPersistentEngine(dir string, embedder Embedder, logger *slog.Logger) (*Engine, error) {
	cdb, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	return newEngine(cdb, embedder, logger), nil
}

func newEngine(cdb *chromem.DB, embedder Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:          cdb,
		embedder:    embedder,
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}
}

// collectionName hashes the tenant key so session and assistant parts
// never leak into collection names.
func collectionName(key tenant.Key) string {
	sum := sha256.Sum256([]byte(key.String()))
	return "tenant_" + hex.EncodeToString(sum[:8])
}

func (e *Engine) collection(key tenant.Key) (*chromem.Collection, error) {
	name := collectionName(key)

	e.mu.RLock()
	col, ok := e.collections[name]
	e.mu.RUnlock()
	if ok {
		return col, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if col, ok := e.collections[name]; ok {
		return col, nil
	}

	// GetOrCreate keeps a persisted collection's documents; a plain
	// create would overwrite them.
	col, err := e.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	e.collections[name] = col
	return col, nil
}

// Doc is one entry to index.
type Doc struct {
	ID         string
	Content    string
	Tier       string
	Category   string
	Importance string
	CreatedAt  string
}

// Index embeds and stores one document in the tenant's collection.
// Re-indexing an existing ID replaces it.
func (e *Engine) Index(ctx context.Context, key tenant.Key, doc Doc) error {
	emb, err := e.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	col, err := e.collection(key)
	if err != nil {
		return err
	}

	return col.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: emb,
		Metadata: map[string]string{
			"tier":       doc.Tier,
			"category":   doc.Category,
			"importance": doc.Importance,
			"created_at": doc.CreatedAt,
		},
	})
}

// Search embeds the query and returns the tenant's nearest documents,
// best first. The result count is clamped to the collection size, which
// chromem requires.
func (e *Engine) Search(ctx context.Context, key tenant.Key, query string, limit int) ([]model.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	col, err := e.collection(key)
	if err != nil {
		return nil, err
	}
	if n := col.Count(); n < limit {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	emb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := col.QueryEmbedding(ctx, emb, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, model.SearchResult{
			MemoryID:       hit.ID,
			Tier:           model.Tier(hit.Metadata["tier"]),
			Content:        hit.Content,
			Category:       hit.Metadata["category"],
			Importance:     hit.Metadata["importance"],
			CreatedAt:      model.ParseTime(hit.Metadata["created_at"]),
			Score:          float64(hit.Similarity),
			SearchStrategy: Strategy,
		})
	}

	e.logger.Debug("vector search", "tenant", key.String(), "hits", len(results))
	return results, nil
}
