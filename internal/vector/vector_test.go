package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tiermem/tiermem/internal/tenant"
)

func TestCosineSimilarity(t *testing.T) {
	a := Vector{1, 0, 0}
	b := Vector{0, 1, 0}

	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-6 {
		t.Errorf("identical vectors: expected 1, got %f", got)
	}
	if got := CosineSimilarity(a, b); math.Abs(got) > 1e-6 {
		t.Errorf("orthogonal vectors: expected 0, got %f", got)
	}
	if got := CosineSimilarity(a, Vector{1, 0}); got != 0 {
		t.Errorf("mismatched dims: expected 0, got %f", got)
	}
	if got := CosineSimilarity(Vector{}, Vector{}); got != 0 {
		t.Errorf("empty vectors: expected 0, got %f", got)
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder()

	a, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, _ := e.Embed(ctx, "hello world")
	c, _ := e.Embed(ctx, "different text")

	if len(a) != e.Dims() {
		t.Fatalf("expected %d dims, got %d", e.Dims(), len(a))
	}
	if CosineSimilarity(a, b) < 0.999999 {
		t.Error("same input must produce the same embedding")
	}
	if CosineSimilarity(a, c) > 0.999 {
		t.Error("different inputs should not collide")
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-4 {
		t.Errorf("expected unit vector, norm %f", math.Sqrt(norm))
	}
}

func TestOllamaEmbedderRequestShape(t *testing.T) {
	var gotPath, gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel, gotPrompt = req.Model, req.Prompt
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", srv.URL)

	e := NewOllamaEmbedder("all-minilm")
	vec, err := e.Embed(context.Background(), "tabs or spaces")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("wrong vector: %v", vec)
	}
	if gotPath != "/api/embeddings" || gotModel != "all-minilm" || gotPrompt != "tabs or spaces" {
		t.Fatalf("request shape: path=%q model=%q prompt=%q", gotPath, gotModel, gotPrompt)
	}
	if e.Dims() != 384 {
		t.Errorf("all-minilm dims = %d, want 384", e.Dims())
	}
}

func TestOpenAIEmbedderAuthAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1, 0}}},
		})
	}))
	defer srv.Close()

	good := NewOpenAIEmbedder(srv.URL, "sk-test", "", 0)
	vec, err := good.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Fatalf("wrong vector: %v", vec)
	}
	if good.Dims() != 1536 {
		t.Errorf("default dims = %d, want 1536", good.Dims())
	}

	bad := NewOpenAIEmbedder(srv.URL, "wrong", "", 0)
	if _, err := bad.Embed(context.Background(), "hello"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected the status in the error, got %v", err)
	}
}

func TestEngineTenantIsolation(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewHashEmbedder(), nil)

	alice := tenant.Key{UserID: "alice", Namespace: "default"}
	bob := tenant.Key{UserID: "bob", Namespace: "default"}

	err := e.Index(ctx, alice, Doc{
		ID:      "m1",
		Content: "alice likes postgres",
		Tier:    "long_term",
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	hits, err := e.Search(ctx, bob, "postgres", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("bob should see nothing, got %d hits", len(hits))
	}

	hits, err = e.Search(ctx, alice, "postgres", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].MemoryID != "m1" {
		t.Fatalf("expected alice's document, got %+v", hits)
	}
	if hits[0].SearchStrategy != Strategy {
		t.Errorf("expected strategy %s, got %q", Strategy, hits[0].SearchStrategy)
	}
}

func TestEngineClampsLimit(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewHashEmbedder(), nil)
	key := tenant.Key{UserID: "alice", Namespace: "default"}

	e.Index(ctx, key, Doc{ID: "m1", Content: "one"})
	e.Index(ctx, key, Doc{ID: "m2", Content: "two"})

	// Asking for more results than documents must not error.
	hits, err := e.Search(ctx, key, "one", 50)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}

func TestEngineEmptyCollection(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(NewHashEmbedder(), nil)
	key := tenant.Key{UserID: "nobody", Namespace: "default"}

	hits, err := e.Search(ctx, key, "anything", 5)
	if err != nil {
		t.Fatalf("search on empty collection: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestPersistentEngineSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := tenant.Key{UserID: "alice", Namespace: "default"}

	e, err := NewPersistentEngine(dir, NewHashEmbedder(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = e.Index(ctx, key, Doc{
		ID:       "m1",
		Content:  "the deploy password is stored in vault",
		Tier:     "long_term",
		Category: "fact",
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	reopened, err := NewPersistentEngine(dir, NewHashEmbedder(), nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	hits, err := reopened.Search(ctx, key, "deploy", 5)
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(hits) != 1 || hits[0].MemoryID != "m1" {
		t.Fatalf("expected persisted document, got %+v", hits)
	}
	if hits[0].Category != "fact" {
		t.Errorf("metadata lost on reload: %+v", hits[0])
	}
}
