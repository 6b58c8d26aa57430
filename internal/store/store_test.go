package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/memerr"
	"github.com/tiermem/tiermem/internal/model"
	"github.com/tiermem/tiermem/internal/tenant"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreLimit(t, 10)
}

func newTestStoreLimit(t *testing.T, limit int) *Store {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, db.Config{URL: "sqlite://" + filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	s, err := New(ctx, database, Options{ConsciousMemoryLimit: limit})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return s
}

func aliceKey() tenant.Key {
	return tenant.Key{UserID: "alice", Namespace: "default"}
}

func TestAddChatAndHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, input := range []string{"first", "second", "third"} {
		_, err := s.AddChat(ctx, key, ChatParams{
			UserInput: input,
			AIOutput:  "reply to " + input,
			Model:     "test-model",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Metadata:  map[string]any{"turn": input},
		})
		if err != nil {
			t.Fatalf("add chat: %v", err)
		}
	}

	history, err := s.ChatHistory(ctx, key, 10)
	if err != nil {
		t.Fatalf("chat history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(history))
	}
	if history[0].UserInput != "third" || history[2].UserInput != "first" {
		t.Errorf("expected newest first, got %q .. %q", history[0].UserInput, history[2].UserInput)
	}
	if history[0].ChatID == "" {
		t.Error("expected generated chat ID")
	}
	if history[0].Metadata["turn"] != "third" {
		t.Errorf("metadata not round-tripped: %v", history[0].Metadata)
	}

	limited, _ := s.ChatHistory(ctx, key, 2)
	if len(limited) != 2 || limited[0].UserInput != "third" {
		t.Errorf("limit 2 should return the 2 newest, got %d", len(limited))
	}
}

func TestShortTermEviction(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreLimit(t, 3)
	key := aliceKey()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"oldest", "middle", "newer", "newest"} {
		_, err := s.AddShortTerm(ctx, key, ShortTermParams{
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("add short term: %v", err)
		}
	}

	set, err := s.ShortTermSet(ctx, key)
	if err != nil {
		t.Fatalf("short term set: %v", err)
	}
	if len(set) != 3 {
		t.Fatalf("expected working set of 3, got %d", len(set))
	}
	for _, m := range set {
		if m.Content == "oldest" {
			t.Error("oldest entry should have been evicted")
		}
	}
	if set[0].Content != "newest" {
		t.Errorf("expected newest first, got %q", set[0].Content)
	}
}

func TestPermanentNeverEvicted(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreLimit(t, 2)
	key := aliceKey()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.AddShortTerm(ctx, key, ShortTermParams{
		Content:   "pinned rule",
		Permanent: true,
		CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("add permanent: %v", err)
	}
	for i, content := range []string{"a", "b", "c"} {
		s.AddShortTerm(ctx, key, ShortTermParams{
			Content:   content,
			CreatedAt: base.Add(time.Duration(i+1) * time.Second),
		})
	}

	set, _ := s.ShortTermSet(ctx, key)
	if len(set) != 2 {
		t.Fatalf("expected working set of 2, got %d", len(set))
	}
	if !set[0].IsPermanentContext || set[0].Content != "pinned rule" {
		t.Errorf("expected the permanent entry first, got %+v", set[0])
	}
	if set[1].Content != "c" {
		t.Errorf("expected newest non-permanent to survive, got %q", set[1].Content)
	}
}

func TestAddLongTermIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	p := LongTermParams{
		ChatID:         "chat-1",
		Content:        "User prefers tabs over spaces",
		Classification: model.CategoryPreference,
		Importance:     model.ImportanceHigh,
	}

	first, created, err := s.AddLongTerm(ctx, key, p)
	if err != nil {
		t.Fatalf("add long term: %v", err)
	}
	if !created {
		t.Error("first ingest should report created")
	}
	second, created, err := s.AddLongTerm(ctx, key, p)
	if err != nil {
		t.Fatalf("re-add long term: %v", err)
	}
	if first != second {
		t.Errorf("re-ingest should return the existing ID: %q vs %q", first, second)
	}
	if created {
		t.Error("re-ingest should not report created")
	}

	other, created, err := s.AddLongTerm(ctx, key, LongTermParams{
		ChatID:  "chat-1",
		Content: "different content, same chat",
	})
	if err != nil {
		t.Fatalf("add distinct content: %v", err)
	}
	if other == first {
		t.Error("distinct content should get its own row")
	}
	if !created {
		t.Error("distinct content should report created")
	}

	st, _ := s.Stats(ctx, key)
	if st.LongTermCount != 2 {
		t.Errorf("expected 2 long-term rows, got %d", st.LongTermCount)
	}
}

func TestLongTermByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	id, _, err := s.AddLongTerm(ctx, key, LongTermParams{
		ChatID:     "chat-9",
		Content:    "Deploys happen on Fridays",
		Importance: model.ImportanceLow,
	})
	if err != nil {
		t.Fatalf("add long term: %v", err)
	}

	got, err := s.LongTermByID(ctx, key, id)
	if err != nil {
		t.Fatalf("long term by id: %v", err)
	}
	if got.Content != "Deploys happen on Fridays" {
		t.Errorf("wrong content: %q", got.Content)
	}
	if got.Version != currentVersion {
		t.Errorf("expected version %d, got %d", currentVersion, got.Version)
	}
	if got.ContentHash == "" || len(got.ContentHash) != 64 {
		t.Errorf("expected hex sha256 content hash, got %q", got.ContentHash)
	}

	bob := tenant.Key{UserID: "bob", Namespace: "default"}
	if _, err := s.LongTermByID(ctx, bob, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("other tenant should get ErrNotFound, got %v", err)
	}
	if _, err := s.LongTermByID(ctx, key, "01ZZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing ID should get ErrNotFound, got %v", err)
	}
}

func TestRecentLongTermOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, content := range []string{"old fact", "mid fact", "new fact"} {
		s.AddLongTerm(ctx, key, LongTermParams{
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	recent, err := s.RecentLongTerm(ctx, key, 2)
	if err != nil {
		t.Fatalf("recent long term: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2, got %d", len(recent))
	}
	if recent[0].Content != "new fact" || recent[1].Content != "mid fact" {
		t.Errorf("expected newest first, got %q, %q", recent[0].Content, recent[1].Content)
	}
}

func TestSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	s.AddLongTerm(ctx, key, LongTermParams{Content: "User loves Python programming"})
	s.AddLongTerm(ctx, key, LongTermParams{Content: "Weekly sync happens on Mondays"})
	s.AddShortTerm(ctx, key, ShortTermParams{Content: "Currently debugging the Python parser"})

	results, err := s.SearchMemories(ctx, key, "python", 10, ScopeBoth)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}
	tiers := map[model.Tier]bool{}
	for _, r := range results {
		tiers[r.Tier] = true
		if r.SearchStrategy != StrategySQLiteFTS5 {
			t.Errorf("expected %s strategy, got %q", StrategySQLiteFTS5, r.SearchStrategy)
		}
		if !strings.Contains(strings.ToLower(r.Content), "python") {
			t.Errorf("unexpected hit: %q", r.Content)
		}
	}
	if !tiers[model.TierShortTerm] || !tiers[model.TierLongTerm] {
		t.Errorf("expected hits from both tiers, got %v", tiers)
	}
}

func TestSearchSubstringFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	s.AddLongTerm(ctx, key, LongTermParams{Content: "The staging database lives in Frankfurt"})

	// FTS5 tokenizes on words, so a partial token only matches via the
	// LIKE pass.
	results, err := s.SearchMemories(ctx, key, "datab", 10, ScopeLongTerm)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 fallback hit, got %d", len(results))
	}
	if results[0].SearchStrategy != StrategyLikeFallback {
		t.Errorf("expected %s, got %q", StrategyLikeFallback, results[0].SearchStrategy)
	}
	if results[0].Score != 0 {
		t.Errorf("fallback hits carry score 0, got %v", results[0].Score)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	s.AddLongTerm(ctx, key, LongTermParams{Content: "anything"})

	for _, q := range []string{"", "   ", "\t\n"} {
		results, err := s.SearchMemories(ctx, key, q, 10, ScopeBoth)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if results == nil || len(results) != 0 {
			t.Errorf("blank query should return an empty slice, got %v", results)
		}
	}
}

func TestSearchScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	s.AddLongTerm(ctx, key, LongTermParams{Content: "kubernetes cluster config"})
	s.AddShortTerm(ctx, key, ShortTermParams{Content: "kubernetes upgrade in progress"})

	long, _ := s.SearchMemories(ctx, key, "kubernetes", 10, ScopeLongTerm)
	if len(long) != 1 || long[0].Tier != model.TierLongTerm {
		t.Errorf("long_term scope leaked: %+v", long)
	}

	short, _ := s.SearchMemories(ctx, key, "kubernetes", 10, ScopeShortTerm)
	if len(short) != 1 || short[0].Tier != model.TierShortTerm {
		t.Errorf("short_term scope leaked: %+v", short)
	}

	both, _ := s.SearchMemories(ctx, key, "kubernetes", 10, ScopeBoth)
	if len(both) != 2 {
		t.Errorf("expected 2 across both tiers, got %d", len(both))
	}
}

func TestSearchTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice := tenant.Key{UserID: "alice", Namespace: "default"}
	bob := tenant.Key{UserID: "bob", Namespace: "default"}

	s.AddLongTerm(ctx, alice, LongTermParams{Content: "alice's secret launch codes"})

	results, err := s.SearchMemories(ctx, bob, "launch codes", 10, ScopeBoth)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("bob sees alice's memories: %+v", results)
	}
}

func TestSessionWildcard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s1 := tenant.Key{UserID: "alice", SessionID: "s1", Namespace: "default"}
	s2 := tenant.Key{UserID: "alice", SessionID: "s2", Namespace: "default"}
	anySession := tenant.Key{UserID: "alice", Namespace: "default"}

	s.AddLongTerm(ctx, s1, LongTermParams{Content: "note from session one"})
	s.AddLongTerm(ctx, s2, LongTermParams{Content: "note from session two"})

	scoped, _ := s.SearchMemories(ctx, s1, "note session", 10, ScopeLongTerm)
	if len(scoped) != 1 {
		t.Fatalf("session-scoped search should see 1, got %d", len(scoped))
	}

	all, _ := s.SearchMemories(ctx, anySession, "note session", 10, ScopeLongTerm)
	if len(all) != 2 {
		t.Fatalf("unset session should match all sessions, got %d", len(all))
	}
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	work := tenant.Key{UserID: "alice", Namespace: "work"}
	home := tenant.Key{UserID: "alice", Namespace: "home"}

	s.AddLongTerm(ctx, work, LongTermParams{Content: "quarterly report deadline"})

	results, _ := s.SearchMemories(ctx, home, "quarterly report", 10, ScopeBoth)
	if len(results) != 0 {
		t.Errorf("namespace leak: %+v", results)
	}

	st, _ := s.Stats(ctx, home)
	if st.TotalMemories != 0 {
		t.Errorf("expected empty home namespace, got %+v", st)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	s.AddChat(ctx, key, ChatParams{UserInput: "hi", AIOutput: "hello"})
	s.AddShortTerm(ctx, key, ShortTermParams{Content: "working note"})
	s.AddShortTerm(ctx, key, ShortTermParams{Content: "pinned", Permanent: true})
	s.AddLongTerm(ctx, key, LongTermParams{Content: "stored fact"})

	st, err := s.Stats(ctx, key)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.DatabaseType != "sqlite" {
		t.Errorf("expected sqlite, got %q", st.DatabaseType)
	}
	if st.ChatHistoryCount != 1 || st.ShortTermCount != 2 || st.LongTermCount != 1 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if st.PermanentCount != 1 {
		t.Errorf("expected 1 permanent, got %d", st.PermanentCount)
	}
	if st.TotalMemories != 4 {
		t.Errorf("expected total 4, got %d", st.TotalMemories)
	}
	if st.TotalMemories != st.ChatHistoryCount+st.ShortTermCount+st.LongTermCount {
		t.Errorf("total %d must equal chat(%d)+short(%d)+long(%d)",
			st.TotalMemories, st.ChatHistoryCount, st.ShortTermCount, st.LongTermCount)
	}

	again, err := s.Stats(ctx, key)
	if err != nil {
		t.Fatalf("second stats: %v", err)
	}
	if again != st {
		t.Errorf("stats drifted without writes: %+v vs %+v", again, st)
	}
}

func TestAddChatDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	_, err := s.AddChat(ctx, key, ChatParams{ChatID: "chat-dup", UserInput: "q", AIOutput: "a"})
	if err != nil {
		t.Fatalf("add chat: %v", err)
	}

	_, err = s.AddChat(ctx, key, ChatParams{ChatID: "chat-dup", UserInput: "q2", AIOutput: "a2"})
	var se *memerr.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("duplicate chat ID should be a storage error, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()

	_, _, err := s.AddLongTerm(ctx, key, LongTermParams{Content: "x", Classification: "gossip"})
	var verr *memerr.ValidationError
	if !errors.As(err, &verr) || verr.Kind != memerr.KindRange {
		t.Errorf("expected range validation error, got %v", err)
	}

	_, _, err = s.AddLongTerm(ctx, key, LongTermParams{Content: "x", Importance: "extreme"})
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}

	_, err = s.AddShortTerm(ctx, key, ShortTermParams{Content: "x", CategoryPrimary: "nope"})
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNewRejectsBadLimit(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(ctx, db.Config{URL: "sqlite://" + filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	for _, limit := range []int{0, -1, 2001} {
		if _, err := New(ctx, database, Options{ConsciousMemoryLimit: limit}); err == nil {
			t.Errorf("limit %d should be rejected", limit)
		}
	}

	if _, err := New(ctx, database, Options{ConsciousMemoryLimit: 2000}); err != nil {
		t.Errorf("limit 2000 is the inclusive bound: %v", err)
	}
}

func TestExportTenant(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := aliceKey()
	bob := tenant.Key{UserID: "bob", Namespace: "default"}

	s.AddChat(ctx, key, ChatParams{UserInput: "q", AIOutput: "a"})
	s.AddShortTerm(ctx, key, ShortTermParams{Content: "short note"})
	s.AddLongTerm(ctx, key, LongTermParams{Content: "long fact"})
	s.AddLongTerm(ctx, bob, LongTermParams{Content: "bob's fact"})

	var buf bytes.Buffer
	if err := s.ExportTenant(ctx, key, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %s", len(lines), buf.String())
	}

	var kinds []string
	for _, line := range lines {
		var rec ExportRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad JSONL line %q: %v", line, err)
		}
		kinds = append(kinds, rec.Kind)
		if rec.LongTerm != nil && rec.LongTerm.Content == "bob's fact" {
			t.Error("export leaked another tenant's row")
		}
	}
	want := []string{ExportKindChat, ExportKindShortTerm, ExportKindLongTerm}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("line %d: expected kind %q, got %q", i, want[i], kinds[i])
		}
	}
}
