package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the tenant's memories as JSONL",
		Long: "Stream every record of the tenant to stdout, one JSON object per line:\n" +
			"chat history first, then the short-term and long-term tiers, oldest first.",
		Run: runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s := openStore(cmd, cfg)
	defer s.Close()

	if err := s.ExportTenant(cmd.Context(), tenantKey(cfg), os.Stdout); err != nil {
		exitErr("export", err)
	}
}
