package engine

import (
	"context"
	"strings"

	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/store"
	"github.com/tiermem/tiermem/internal/tenant"
)

// ContextResult is the assembled context for one query.
type ContextResult struct {
	Records []model.ContextRecord `json:"records"`
	Budget  int                   `json:"budget,omitempty"`
	Used    int                   `json:"used"`
}

// ContextForQuery assembles the records to inject for query, honoring
// the engine's mode. Conscious mode contributes the standing working
// set; auto mode retrieves per query through the fallback chain. With
// both on, the working set leads and retrieved records fill the rest.
// Retrieval never fails the call: every step degrades to the next with
// a log line, and the worst case is an empty result.
func (e *Engine) ContextForQuery(ctx context.Context, key tenant.Key, query string) (ContextResult, error) {
	var records []model.ContextRecord

	if e.mode.ConsciousIngest {
		records = append(records, e.workingSet(ctx, key)...)
	}
	if e.mode.AutoIngest {
		auto := e.autoIngestContext(ctx, key, query)
		seen := make(map[string]bool, len(records))
		for _, r := range records {
			seen[r.MemoryID] = true
		}
		for _, r := range auto {
			if !seen[r.MemoryID] {
				records = append(records, r)
			}
		}
	}

	if len(records) > e.contextLimit {
		records = records[:e.contextLimit]
	}
	records, used := packBudget(records, e.contextBudget)
	if records == nil {
		records = []model.ContextRecord{}
	}
	return ContextResult{Records: records, Budget: e.contextBudget, Used: used}, nil
}

// workingSet returns the short-term tier as context records, cached per
// tenant so repeated prompts do not requery.
func (e *Engine) workingSet(ctx context.Context, key tenant.Key) []model.ContextRecord {
	if cached, ok := e.cache.get(key); ok {
		return cached
	}
	set, err := e.store.ShortTermSet(ctx, key)
	if err != nil {
		e.logger.Warn("working set load failed", "tenant", key.String(), "error", err)
		return nil
	}
	records := make([]model.ContextRecord, 0, len(set))
	for _, m := range set {
		records = append(records, model.ContextRecord{
			MemoryID:        m.ID,
			Content:         m.Content,
			Summary:         m.Summary,
			Category:        m.CategoryPrimary,
			Permanent:       m.IsPermanentContext,
			CreatedAt:       m.CreatedAt,
			RetrievalMethod: model.RetrievalDirect,
		})
	}
	e.cache.set(key, records)
	return records
}

// autoIngestContext runs the retrieval chain: primary search, then
// recent long-term memories, then the secondary engine. Inside a
// retrieval pass it collapses to a single direct search so a classifier
// that itself asks for context cannot recurse.
func (e *Engine) autoIngestContext(ctx context.Context, key tenant.Key, query string) []model.ContextRecord {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if inRetrieval(ctx) {
		hits, err := e.store.SearchMemories(ctx, key, query, autoSearchLimit, store.ScopeBoth)
		if err != nil {
			e.logger.Warn("guarded search failed", "tenant", key.String(), "error", err)
			return nil
		}
		return searchRecords(hits, model.RetrievalDirect, query)
	}
	ctx = withRetrieval(ctx)

	hits, err := e.store.SearchMemories(ctx, key, query, autoSearchLimit, store.ScopeBoth)
	if err != nil {
		e.logger.Warn("primary search failed", "tenant", key.String(), "error", err)
	}
	if len(hits) > 0 {
		return searchRecords(hits, model.RetrievalDirect, query)
	}

	recent, err := e.store.RecentLongTerm(ctx, key, autoSearchLimit)
	if err != nil {
		e.logger.Warn("recent fallback failed", "tenant", key.String(), "error", err)
	}
	if len(recent) > 0 {
		return recentRecords(recent, query)
	}

	if e.secondary != nil {
		hits, err := e.secondary.Search(ctx, key, query, autoSearchLimit)
		if err != nil {
			e.logger.Warn("secondary search failed", "tenant", key.String(), "error", err)
		}
		if len(hits) > 0 {
			return searchRecords(hits, model.RetrievalSearchEngine, query)
		}
	}
	return nil
}

func searchRecords(hits []model.SearchResult, method, query string) []model.ContextRecord {
	records := make([]model.ContextRecord, 0, len(hits))
	for _, h := range hits {
		records = append(records, model.ContextRecord{
			MemoryID:        h.MemoryID,
			Content:         h.Content,
			Summary:         h.Summary,
			Category:        h.Category,
			Importance:      h.Importance,
			CreatedAt:       h.CreatedAt,
			Score:           h.Score,
			SearchStrategy:  h.SearchStrategy,
			RetrievalMethod: method,
			RetrievalQuery:  query,
		})
	}
	return records
}

func recentRecords(memories []model.LongTermMemory, query string) []model.ContextRecord {
	records := make([]model.ContextRecord, 0, len(memories))
	for _, m := range memories {
		records = append(records, model.ContextRecord{
			MemoryID:        m.ID,
			Content:         m.Content,
			Summary:         m.Summary,
			Category:        m.Classification,
			Importance:      m.Importance,
			CreatedAt:       m.CreatedAt,
			RetrievalMethod: model.RetrievalRecentFallback,
			RetrievalQuery:  query,
		})
	}
	return records
}

// minExcerptLen is the smallest remaining budget worth filling with a
// truncated record.
const minExcerptLen = 100

// packBudget greedily packs records into a character budget. A record
// that does not fit whole is excerpted when at least minExcerptLen
// characters remain; anything after that is dropped. budget <= 0 means
// unlimited.
func packBudget(records []model.ContextRecord, budget int) ([]model.ContextRecord, int) {
	used := 0
	if budget <= 0 {
		for _, r := range records {
			used += len(r.Content)
		}
		return records, used
	}
	packed := make([]model.ContextRecord, 0, len(records))
	for _, r := range records {
		remaining := budget - used
		if remaining <= 0 {
			break
		}
		if len(r.Content) <= remaining {
			packed = append(packed, r)
			used += len(r.Content)
			continue
		}
		if remaining >= minExcerptLen {
			r.Content = r.Content[:remaining] + "..."
			r.Excerpt = true
			packed = append(packed, r)
			used += remaining
		}
		break
	}
	return packed, used
}
