package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiermem/tiermem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by relevance",
		Long: "Ranked full-text search over the memory tiers, using the backend's native\n" +
			"facility with a LIKE fallback. Scores are comparable only within one backend.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().String("scope", "both", "Tier to search: short, long or both")

	RootCmd.AddCommand(cmd)
}

func parseScope(s string) (store.Scope, error) {
	switch s {
	case "short", "short_term":
		return store.ScopeShortTerm, nil
	case "long", "long_term":
		return store.ScopeLongTerm, nil
	case "both", "":
		return store.ScopeBoth, nil
	}
	return store.ScopeBoth, fmt.Errorf("unknown scope %q", s)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	scopeStr, _ := cmd.Flags().GetString("scope")
	query := strings.Join(args, " ")

	scope, err := parseScope(scopeStr)
	if err != nil {
		exitErr("search", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s := openStore(cmd, cfg)
	defer s.Close()

	results, err := s.SearchMemories(cmd.Context(), tenantKey(cfg), query, limit, scope)
	if err != nil {
		exitErr("search", err)
	}

	if formatFlag == "text" {
		for _, r := range results {
			line := r.Summary
			if line == "" {
				line = r.Content
			}
			fmt.Printf("%.3f\t%s\t%s\t%s\n", r.Score, r.Tier, r.MemoryID, line)
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
