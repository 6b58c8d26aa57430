package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories in a tier",
		Long:  "List the short-term working set (permanent entries first) or the newest long-term memories.",
		Run:   runList,
	}

	cmd.Flags().StringP("tier", "t", "short", "Tier to list: short or long")
	cmd.Flags().IntP("limit", "l", 10, "Max results (long tier only; the working set is bounded already)")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s := openStore(cmd, cfg)
	defer s.Close()

	key := tenantKey(cfg)

	switch tier {
	case "short", "short_term":
		set, err := s.ShortTermSet(cmd.Context(), key)
		if err != nil {
			exitErr("list", err)
		}
		if len(set) == 0 {
			fmt.Println("[]")
			return
		}
		printJSON(set)

	case "long", "long_term":
		memories, err := s.RecentLongTerm(cmd.Context(), key, limit)
		if err != nil {
			exitErr("list", err)
		}
		if len(memories) == 0 {
			fmt.Println("[]")
			return
		}
		printJSON(memories)

	default:
		exitErr("list", fmt.Errorf("unknown tier %q", tier))
	}
}
