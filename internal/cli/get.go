package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Fetch a long-term memory by ID",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s := openStore(cmd, cfg)
	defer s.Close()

	m, err := s.LongTermByID(cmd.Context(), tenantKey(cfg), args[0])
	if err != nil {
		exitErr("get", err)
	}
	printJSON(m)
}
