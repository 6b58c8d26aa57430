package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "promote [long-term-id]",
		Short: "Copy a long-term memory into the working set",
		Long: "Promotion copies; the long-term row stays. The copy competes for\n" +
			"working-set slots unless --permanent pins it.",
		Args: cobra.ExactArgs(1),
		Run:  runPromote,
	}

	cmd.Flags().BoolP("permanent", "p", false, "Pin the copy so eviction never removes it")

	RootCmd.AddCommand(cmd)
}

func runPromote(cmd *cobra.Command, args []string) {
	permanent, _ := cmd.Flags().GetBool("permanent")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	eng, s := openEngine(cmd, cfg)
	defer s.Close()

	id, err := eng.Promote(cmd.Context(), tenantKey(cfg), args[0], permanent)
	if err != nil {
		exitErr("promote", err)
	}

	fmt.Printf(`{"ok":true,"short_term_id":%q,"permanent":%v}`+"\n", id, permanent)
}
