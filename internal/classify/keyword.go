package classify

import (
	"context"

	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/textkit"
)

// KeywordClassifier labels turns by keyword presence. It is the default
// classifier: deterministic, offline, zero cost. Categories are scored
// by distinct keyword hits and ties break in a fixed order, so the same
// turn always gets the same label.
type KeywordClassifier struct{}

func NewKeyword() *KeywordClassifier {
	return &KeywordClassifier{}
}

// categoryOrder fixes tie-breaking. Context never appears here: it is
// the floor when nothing scores.
var categoryOrder = []string{
	model.CategoryPreference,
	model.CategoryRule,
	model.CategoryFact,
	model.CategoryKnowledge,
}

var categoryKeywords = map[string][]string{
	model.CategoryPreference: {
		"prefer", "prefers", "preference", "favorite", "favourite",
		"love", "loves", "hate", "hates", "enjoy", "enjoys",
	},
	model.CategoryRule: {
		"must", "should", "never", "always", "rule", "policy",
		"require", "required", "forbidden", "cannot",
	},
	model.CategoryFact: {
		"name", "born", "live", "lives", "age", "email",
		"work", "works", "address", "birthday", "married",
	},
	model.CategoryKnowledge: {
		"means", "meaning", "definition", "explain", "explained",
		"learned", "algorithm", "concept", "documentation", "how",
	},
}

var highMarkers = []string{
	"always", "never", "must", "critical", "important", "remember",
}

const summaryMax = 160

func (KeywordClassifier) Classify(ctx context.Context, userInput, aiOutput string) (Result, error) {
	present := map[string]bool{}
	for _, term := range textkit.Terms(userInput + " " + aiOutput) {
		present[term] = true
	}

	category := model.CategoryContext
	best := 0
	for _, cand := range categoryOrder {
		score := 0
		for _, kw := range categoryKeywords[cand] {
			if present[kw] {
				score++
			}
		}
		if score > best {
			best = score
			category = cand
		}
	}

	importance := model.ImportanceMedium
	if best == 0 {
		importance = model.ImportanceLow
	}
	for _, marker := range highMarkers {
		if present[marker] {
			importance = model.ImportanceHigh
			break
		}
	}

	source := userInput
	if source == "" {
		source = aiOutput
	}

	promote := importance == model.ImportanceHigh ||
		category == model.CategoryPreference ||
		category == model.CategoryRule ||
		category == model.CategoryFact

	return Result{
		Category:   category,
		Importance: importance,
		Summary:    textkit.Excerpt(source, summaryMax),
		Promote:    promote,
	}, nil
}
