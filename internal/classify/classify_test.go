package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/tiermem/tiermem/internal/model"
)

func TestKeywordCategories(t *testing.T) {
	ctx := context.Background()
	c := NewKeyword()

	cases := []struct {
		input      string
		category   string
		importance string
		promote    bool
	}{
		{"My favorite color is blue", model.CategoryPreference, model.ImportanceMedium, true},
		{"You must always run the linter before pushing", model.CategoryRule, model.ImportanceHigh, true},
		{"My name is Alice and I live in Berlin", model.CategoryFact, model.ImportanceMedium, true},
		{"Can you explain how the algorithm works", model.CategoryKnowledge, model.ImportanceMedium, false},
		{"ok thanks bye", model.CategoryContext, model.ImportanceLow, false},
		{"Remember that I am allergic to peanuts", model.CategoryContext, model.ImportanceHigh, true},
	}

	for _, tc := range cases {
		got, err := c.Classify(ctx, tc.input, "")
		if err != nil {
			t.Fatalf("classify %q: %v", tc.input, err)
		}
		if got.Category != tc.category {
			t.Errorf("%q: expected category %s, got %s", tc.input, tc.category, got.Category)
		}
		if got.Importance != tc.importance {
			t.Errorf("%q: expected importance %s, got %s", tc.input, tc.importance, got.Importance)
		}
		if got.Promote != tc.promote {
			t.Errorf("%q: expected promote=%v", tc.input, tc.promote)
		}
	}
}

func TestKeywordDeterministic(t *testing.T) {
	ctx := context.Background()
	c := NewKeyword()

	first, _ := c.Classify(ctx, "I prefer dark mode and I always use vim", "noted")
	for i := 0; i < 10; i++ {
		again, _ := c.Classify(ctx, "I prefer dark mode and I always use vim", "noted")
		if again != first {
			t.Fatalf("classification drifted: %+v vs %+v", first, again)
		}
	}
}

func TestKeywordSummary(t *testing.T) {
	ctx := context.Background()
	c := NewKeyword()

	long := strings.Repeat("my favorite thing is repetition ", 20)
	got, _ := c.Classify(ctx, long, "")
	if len(got.Summary) > summaryMax+3 {
		t.Errorf("summary too long: %d bytes", len(got.Summary))
	}
	if !strings.HasSuffix(got.Summary, "...") {
		t.Errorf("truncated summary should end with ellipsis: %q", got.Summary)
	}

	// Falls back to the assistant's output when the user said nothing.
	fromAI, _ := c.Classify(ctx, "", "Stored your preference for tabs")
	if fromAI.Summary == "" {
		t.Error("expected summary from assistant output")
	}
}

func TestParseResult(t *testing.T) {
	got, err := parseResult(`{"category":"preference","importance":"high","summary":"Likes blue","promote":true}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Category != model.CategoryPreference || got.Importance != model.ImportanceHigh || !got.Promote {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestParseResultStripsFences(t *testing.T) {
	raw := "```json\n{\"category\":\"fact\",\"importance\":\"low\",\"summary\":\"x\",\"promote\":false}\n```"
	got, err := parseResult(raw)
	if err != nil {
		t.Fatalf("parse fenced: %v", err)
	}
	if got.Category != model.CategoryFact {
		t.Errorf("expected fact, got %s", got.Category)
	}
}

func TestParseResultCoercesUnknownLabels(t *testing.T) {
	got, err := parseResult(`{"category":"gossip","importance":"extreme","summary":"","promote":false}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Category != model.CategoryContext {
		t.Errorf("unknown category should coerce to context, got %s", got.Category)
	}
	if got.Importance != model.ImportanceMedium {
		t.Errorf("unknown importance should coerce to medium, got %s", got.Importance)
	}
}

func TestParseResultRejectsGarbage(t *testing.T) {
	if _, err := parseResult("I think this is a preference!"); err == nil {
		t.Error("expected error for non-JSON reply")
	}
}
