package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiermem/tiermem/internal/db"
	"github.com/tiermem/tiermem/internal/store"
	"github.com/tiermem/tiermem/internal/tenant"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSONL",
		Long: "Read the format produced by export from stdin and insert every record\n" +
			"under its own tenant scope. Re-running an import is safe: existing chat\n" +
			"turns and working-set entries are skipped, and long-term rows\n" +
			"deduplicate by turn and content.",
		Run: runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s := openStore(cmd, cfg)
	defer s.Close()

	imp := &importer{s: s, seen: make(map[string]map[string]bool)}
	dec := json.NewDecoder(os.Stdin)

	var imported, skipped int
	for line := 1; ; line++ {
		var rec store.ExportRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			exitErr(fmt.Sprintf("parse line %d", line), err)
		}

		ok, err := imp.record(cmd.Context(), rec)
		switch {
		case err == nil && ok:
			imported++
		case err == nil:
			skipped++
		case db.IsUniqueViolation(err):
			skipped++
		default:
			exitErr(fmt.Sprintf("import line %d", line), err)
		}
	}

	fmt.Printf(`{"ok":true,"imported":%d,"skipped":%d}`+"\n", imported, skipped)
}

// importer tracks working-set contents per tenant so short-term rows,
// which carry no unique constraint, are not duplicated on re-import.
type importer struct {
	s    *store.Store
	seen map[string]map[string]bool
}

func (imp *importer) record(ctx context.Context, rec store.ExportRecord) (bool, error) {
	switch rec.Kind {
	case store.ExportKindChat:
		if rec.Chat == nil {
			return false, fmt.Errorf("chat record has no payload")
		}
		c := rec.Chat
		key, err := tenant.NewKey(c.UserID, c.AssistantID, c.SessionID, c.Namespace)
		if err != nil {
			return false, err
		}
		_, err = imp.s.AddChat(ctx, key, store.ChatParams{
			ChatID:     c.ChatID,
			UserInput:  c.UserInput,
			AIOutput:   c.AIOutput,
			Model:      c.Model,
			Timestamp:  c.Timestamp,
			TokensUsed: c.TokensUsed,
			Metadata:   c.Metadata,
		})
		return err == nil, err

	case store.ExportKindShortTerm:
		if rec.ShortTerm == nil {
			return false, fmt.Errorf("short-term record has no payload")
		}
		m := rec.ShortTerm
		key, err := tenant.NewKey(m.UserID, m.AssistantID, m.SessionID, m.Namespace)
		if err != nil {
			return false, err
		}
		present, err := imp.workingSet(ctx, key)
		if err != nil {
			return false, err
		}
		if present[m.OriginChatID+"\x00"+m.Content] {
			return false, nil
		}
		id, err := imp.s.AddShortTerm(ctx, key, store.ShortTermParams{
			OriginChatID:      m.OriginChatID,
			Content:           m.Content,
			Summary:           m.Summary,
			CategoryPrimary:   m.CategoryPrimary,
			CategorySecondary: m.CategorySecondary,
			Permanent:         m.IsPermanentContext,
			CreatedAt:         m.CreatedAt,
		})
		if err == nil && id != "" {
			present[m.OriginChatID+"\x00"+m.Content] = true
		}
		return err == nil, err

	case store.ExportKindLongTerm:
		if rec.LongTerm == nil {
			return false, fmt.Errorf("long-term record has no payload")
		}
		m := rec.LongTerm
		key, err := tenant.NewKey(m.UserID, m.AssistantID, m.SessionID, m.Namespace)
		if err != nil {
			return false, err
		}
		_, created, err := imp.s.AddLongTerm(ctx, key, store.LongTermParams{
			ChatID:         m.ChatID,
			Content:        m.Content,
			Summary:        m.Summary,
			Classification: m.Classification,
			Importance:     m.Importance,
			Metadata:       m.Metadata,
			CreatedAt:      m.CreatedAt,
		})
		return created, err
	}
	return false, fmt.Errorf("unknown record kind %q", rec.Kind)
}

func (imp *importer) workingSet(ctx context.Context, key tenant.Key) (map[string]bool, error) {
	ks := key.String()
	if present, ok := imp.seen[ks]; ok {
		return present, nil
	}
	set, err := imp.s.ShortTermSet(ctx, key)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(set))
	for _, m := range set {
		present[m.OriginChatID+"\x00"+m.Content] = true
	}
	imp.seen[ks] = present
	return present, nil
}
