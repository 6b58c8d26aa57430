package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent chat history",
		Run:   runHistory,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max turns")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s := openStore(cmd, cfg)
	defer s.Close()

	turns, err := s.ChatHistory(cmd.Context(), tenantKey(cfg), limit)
	if err != nil {
		exitErr("history", err)
	}

	if len(turns) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(turns)
}
