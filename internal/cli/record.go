package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiermem/tiermem/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "record [user-input] [ai-output]",
		Short: "Record a conversation turn",
		Long: "Record one user/assistant exchange. The assistant reply can be a positional\n" +
			"arg or piped via stdin. Ingestion follows the configured modes; with both\n" +
			"off the turn lands in chat history only.",
		Args: cobra.RangeArgs(1, 2),
		Run:  runRecord,
	}

	cmd.Flags().StringP("model", "m", "", "Model that produced the reply")
	cmd.Flags().Int("tokens", 0, "Tokens used by the turn")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.Flags().Bool("conscious", false, "Override conscious_ingest for this turn")
	cmd.Flags().Bool("auto", false, "Override auto_ingest for this turn")

	RootCmd.AddCommand(cmd)
}

func runRecord(cmd *cobra.Command, args []string) {
	modelName, _ := cmd.Flags().GetString("model")
	tokens, _ := cmd.Flags().GetInt("tokens")
	meta, _ := cmd.Flags().GetString("meta")

	userInput := args[0]

	// AI output: positional arg first, then check stdin
	var aiOutput string
	if len(args) > 1 {
		aiOutput = args[1]
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			aiOutput = strings.TrimSpace(string(b))
		}
	}
	if aiOutput == "" {
		exitErr("record", fmt.Errorf("ai output is required (positional arg or stdin)"))
	}

	var metadata map[string]any
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse meta", err)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if cmd.Flags().Changed("conscious") {
		cfg.ConsciousIngest, _ = cmd.Flags().GetBool("conscious")
	}
	if cmd.Flags().Changed("auto") {
		cfg.AutoIngest, _ = cmd.Flags().GetBool("auto")
	}

	eng, s := openEngine(cmd, cfg)
	defer s.Close()

	res, err := eng.RecordTurn(cmd.Context(), tenantKey(cfg), engine.TurnParams{
		UserInput:  userInput,
		AIOutput:   aiOutput,
		Model:      modelName,
		TokensUsed: tokens,
		Metadata:   metadata,
	})
	if err != nil {
		exitErr("record", err)
	}

	b, _ := json.Marshal(res)
	fmt.Println(string(b))
}
