package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loggate/loggate/internal/core/quota"
	"github.com/loggate/loggate/internal/core/store"
	"github.com/loggate/loggate/internal/output"
)

var (
	quotaListAll    bool
	quotaListPrefix string

	quotaDeleteAll    bool
	quotaDeleteName   string
	quotaDeletePrefix string
	quotaDeleteYes    bool
	quotaDeleteDryRun bool
)

var quotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored quota records",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd, "quota.list")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		cfg, err := requireStoreBackend(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.QuotaQuery{
			All:    quotaListAll,
			Prefix: strings.TrimSpace(quotaListPrefix),
		}
		if !query.All && query.Prefix == "" {
			query.All = true
		}

		entries, err := db.ListQuotas(ctx, query)
		if err != nil {
			return err
		}

		views := make([]quota.View, 0, len(entries))
		for _, entry := range entries {
			views = append(views, quota.NewView(entry.Name, entry.State))
		}
		return renderViews(cmd.OutOrStdout(), target, views)
	},
}

var quotaDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete stored quota records (they are re-created with defaults on next use)",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveOutput(cmd, "quota.delete")
		if err != nil {
			return err
		}
		format := target.Format
		if format == output.FormatMarkdown {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		query := store.QuotaQuery{
			All:    quotaDeleteAll,
			Name:   strings.TrimSpace(quotaDeleteName),
			Prefix: strings.TrimSpace(quotaDeletePrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !quotaDeleteYes && !quotaDeleteDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		ctx := cmd.Context()
		cfg, err := requireStoreBackend(ctx)
		if err != nil {
			return err
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountQuotas(ctx, query)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if quotaDeleteDryRun {
			return writeDeleteResult(format, out, matched, 0, true)
		}

		deleted, err := db.DeleteQuotas(ctx, query)
		if err != nil {
			return err
		}
		return writeDeleteResult(format, out, matched, deleted, false)
	},
}

func writeDeleteResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		writeBox(w, "Quota delete (dry run)", []string{fmt.Sprintf("Would delete %d record(s)", matched)})
		return nil
	}
	writeBox(w, "Quota delete", []string{fmt.Sprintf("Deleted %d/%d record(s)", deleted, matched)})
	return nil
}

func init() {
	addOutputFlags(quotaListCmd)
	quotaListCmd.Flags().BoolVar(&quotaListAll, "all", false, "List all records")
	quotaListCmd.Flags().StringVar(&quotaListPrefix, "prefix", "", "List records with matching name prefix")

	quotaDeleteCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
	quotaDeleteCmd.Flags().BoolVar(&quotaDeleteAll, "all", false, "Delete all records")
	quotaDeleteCmd.Flags().StringVar(&quotaDeleteName, "record", "", "Delete a single record (exact match)")
	quotaDeleteCmd.Flags().StringVar(&quotaDeletePrefix, "prefix", "", "Delete records with matching name prefix")
	quotaDeleteCmd.Flags().BoolVar(&quotaDeleteYes, "yes", false, "Confirm destructive delete")
	quotaDeleteCmd.Flags().BoolVar(&quotaDeleteDryRun, "dry-run", false, "Show what would be deleted")
}
