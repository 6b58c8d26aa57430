package engine

import (
	"context"

	"github.com/tiermem/tiermem/internal/store"
	"github.com/tiermem/tiermem/internal/tenant"
)

// Promote copies a long-term memory into the working set. The long-term
// row is left untouched; the copy competes for working-set slots unless
// permanent is set. Returns the new short-term ID.
func (e *Engine) Promote(ctx context.Context, key tenant.Key, longTermID string, permanent bool) (string, error) {
	m, err := e.store.LongTermByID(ctx, key, longTermID)
	if err != nil {
		return "", err
	}
	id, err := e.store.AddShortTerm(ctx, key, store.ShortTermParams{
		OriginChatID:    m.ChatID,
		Content:         m.Content,
		Summary:         m.Summary,
		CategoryPrimary: m.Classification,
		Permanent:       permanent,
		CreatedAt:       e.now(),
	})
	if err != nil {
		return "", err
	}
	e.cache.invalidate(key)
	return id, nil
}
