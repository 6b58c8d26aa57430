// Package cli implements the tiermem CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiermem/tiermem/internal/classify"
	"github.com/tiermem/tiermem/internal/config"
	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/engine"
	"github.com/tiermem/tiermem/internal/store"
	"github.com/tiermem/tiermem/internal/tenant"
	"github.com/tiermem/tiermem/internal/vector"
)

var (
	dbURL       string
	configPath  string
	userID      string
	assistantID string
	sessionID   string
	namespace   string
	formatFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tiermem",
	Short: "Tiered conversation memory for LLM applications",
	Long: "Record conversation turns, promote what matters into a bounded working set,\n" +
		"and retrieve ranked context per query. SQLite, PostgreSQL or MySQL backed.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbURL, "db", "d", "", "Database URL (default: $TIERMEM_DATABASE_URL or sqlite://tiermem.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	RootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Tenant user ID")
	RootCmd.PersistentFlags().StringVarP(&assistantID, "assistant", "a", "", "Tenant assistant ID")
	RootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "Tenant session ID")
	RootCmd.PersistentFlags().StringVarP(&namespace, "ns", "n", "", "Tenant namespace")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// loadConfig layers defaults, the optional YAML file, TIERMEM_* env vars
// and finally the command-line flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if userID != "" {
		cfg.UserID = userID
	}
	if assistantID != "" {
		cfg.AssistantID = assistantID
	}
	if sessionID != "" {
		cfg.SessionID = sessionID
	}
	if namespace != "" {
		cfg.Namespace = namespace
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// stdout carries command output; logs go to stderr.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStore(cmd *cobra.Command, cfg config.Config) *store.Store {
	database, err := db.Open(cmd.Context(), db.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
	if err != nil {
		exitErr("open database", err)
	}

	s, err := store.New(cmd.Context(), database, store.Options{
		ConsciousMemoryLimit: cfg.ConsciousMemoryLimit,
		Logger:               newLogger(cfg.LogLevel),
	})
	if err != nil {
		database.Close()
		exitErr("open store", err)
	}
	return s
}

// openEngine wires the store, classifier and optional secondary index.
// The classifier upgrades from keyword rules to Anthropic when an API
// key is present; the vector index is attached when an embedding
// provider is configured.
func openEngine(cmd *cobra.Command, cfg config.Config) (*engine.Engine, *store.Store) {
	s := openStore(cmd, cfg)
	logger := newLogger(cfg.LogLevel)

	opts := []engine.Option{
		engine.WithMode(engine.Mode{ConsciousIngest: cfg.ConsciousIngest, AutoIngest: cfg.AutoIngest}),
		engine.WithLogger(logger),
		engine.WithContextLimit(cfg.ContextLimit),
		engine.WithContextBudget(cfg.ContextBudget),
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		opts = append(opts, engine.WithClassifier(classify.NewAnthropic(apiKey, os.Getenv("TIERMEM_CLASSIFY_MODEL"))))
	}
	if sec := openSecondary(logger); sec != nil {
		opts = append(opts, engine.WithSecondary(sec))
	}
	return engine.New(s, opts...), s
}

// openSecondary builds the vector index when TIERMEM_EMBED_PROVIDER is
// set. TIERMEM_VECTOR_DIR persists it on disk; without it the index
// lives only for this invocation.
func openSecondary(logger *slog.Logger) *vector.Engine {
	emb := vector.NewFromEnv()
	if emb == nil {
		return nil
	}
	if dir := os.Getenv("TIERMEM_VECTOR_DIR"); dir != "" {
		eng, err := vector.NewPersistentEngine(dir, emb, logger)
		if err != nil {
			exitErr("open vector index", err)
		}
		return eng
	}
	return vector.NewEngine(emb, logger)
}

func tenantKey(cfg config.Config) tenant.Key {
	key, err := cfg.TenantKey()
	if err != nil {
		exitErr("tenant", err)
	}
	return key
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
