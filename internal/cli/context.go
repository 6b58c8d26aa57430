package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble injection-ready context for a query",
		Long: "Retrieve the memories an LLM call should see for a query: the working set\n" +
			"under conscious mode, ranked retrieval with fallbacks under auto mode.\n" +
			"With neither mode configured, both are consulted.",
		Args: cobra.ArbitraryArgs,
		Run:  runContext,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max records (default from config)")
	cmd.Flags().IntP("budget", "b", 0, "Max content chars, 0 = unlimited (default from config)")
	cmd.Flags().Bool("conscious", false, "Override conscious_ingest")
	cmd.Flags().Bool("auto", false, "Override auto_ingest")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if cmd.Flags().Changed("limit") {
		cfg.ContextLimit, _ = cmd.Flags().GetInt("limit")
	}
	if cmd.Flags().Changed("budget") {
		cfg.ContextBudget, _ = cmd.Flags().GetInt("budget")
	}
	if cmd.Flags().Changed("conscious") {
		cfg.ConsciousIngest, _ = cmd.Flags().GetBool("conscious")
	}
	if cmd.Flags().Changed("auto") {
		cfg.AutoIngest, _ = cmd.Flags().GetBool("auto")
	}
	// A context command with no mode at all would always print nothing.
	if !cfg.ConsciousIngest && !cfg.AutoIngest {
		cfg.ConsciousIngest, cfg.AutoIngest = true, true
	}

	eng, s := openEngine(cmd, cfg)
	defer s.Close()

	result, err := eng.ContextForQuery(cmd.Context(), tenantKey(cfg), query)
	if err != nil {
		exitErr("context", err)
	}

	if formatFlag == "text" {
		for i, r := range result.Records {
			if i > 0 {
				fmt.Println()
			}
			fmt.Println(r.Content)
		}
		return
	}
	printJSON(result)
}
