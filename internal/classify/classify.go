// Package classify decides how a conversation turn should be
// remembered: which category it belongs to, how important it is, and
// whether it earns a seat in the working set.
package classify

import "context"

// Result labels one conversation turn.
type Result struct {
	Category   string
	Importance string
	Summary    string
	// Promote marks the turn as essential: durable personal
	// information that conscious ingestion copies into the
	// working set.
	Promote bool
}

// Classifier labels turns. Implementations must be safe for concurrent
// use.
type Classifier interface {
	Classify(ctx context.Context, userInput, aiOutput string) (Result, error)
}
