package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/loggate/loggate/internal/config"
	"github.com/loggate/loggate/internal/core/quota"
	"github.com/loggate/loggate/internal/observability"
	"github.com/loggate/loggate/internal/output"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and manage persisted escalation quotas",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the quota record (created with defaults if missing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, func(w *wiring) (quota.View, error) {
			return quota.NewView(w.Name, w.Gateway.Snapshot()), nil
		})
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start a fresh window for the quota record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(cmd, func(w *wiring) (quota.View, error) {
			if err := w.Gateway.Reset(cmd.Context()); err != nil {
				return quota.View{}, err
			}
			return quota.NewView(w.Name, w.Gateway.Snapshot()), nil
		})
	},
}

var quotaEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable remote escalation for the quota record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRemote(cmd, true)
	},
}

var quotaDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable remote escalation; events are logged locally only",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRemote(cmd, false)
	},
}

func setRemote(cmd *cobra.Command, enabled bool) error {
	return withGateway(cmd, func(w *wiring) (quota.View, error) {
		if err := w.Gateway.SetRemoteEnabled(cmd.Context(), enabled); err != nil {
			return quota.View{}, err
		}
		return quota.NewView(w.Name, w.Gateway.Snapshot()), nil
	})
}

// withGateway wires a gateway for the selected record, runs fn and renders
// the resulting view.
func withGateway(cmd *cobra.Command, fn func(w *wiring) (quota.View, error)) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx, nil)
	if err != nil {
		return err
	}

	target, err := resolveOutput(cmd, "quota."+cfg.Quota.Name)
	if err != nil {
		return err
	}

	w, err := buildWiring(ctx, cfg, observability.CLILogger)
	if err != nil {
		return err
	}
	defer w.Close() // nolint:errcheck // best-effort cleanup

	view, err := fn(w)
	if err != nil {
		return err
	}
	return renderViews(cmd.OutOrStdout(), target, []quota.View{view})
}

func renderViews(stdout io.Writer, target outputTarget, views []quota.View) error {
	rendered, err := output.NewFormatter(target.Format).FormatQuotas(views)
	if err != nil {
		return err
	}
	return target.write(stdout, rendered)
}

// requireStoreBackend rejects admin commands on backends without listing.
func requireStoreBackend(ctx context.Context) (*config.Config, error) {
	cfg, err := loadConfig(ctx, nil)
	if err != nil {
		return nil, err
	}
	if cfg.Quota.Backend != config.BackendStore {
		return nil, fmt.Errorf("this command requires quota.backend=%s, got %s", config.BackendStore, cfg.Quota.Backend)
	}
	return cfg, nil
}

func writeBox(w io.Writer, title string, lines []string) {
	body := append([]string{title, ""}, lines...)
	_, _ = fmt.Fprint(w, ascii.DrawBox(strings.Join(body, "\n"), 0))
}

func addOutputFlags(c *cobra.Command) {
	c.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	c.Flags().String("out", "", "Write output to a file (default stdout)")
	c.Flags().String("out-dir", "", "Write output to a directory")
}

func init() {
	for _, c := range []*cobra.Command{quotaShowCmd, quotaResetCmd, quotaEnableCmd, quotaDisableCmd} {
		addOutputFlags(c)
		quotaCmd.AddCommand(c)
	}
	quotaCmd.AddCommand(quotaListCmd)
	quotaCmd.AddCommand(quotaDeleteCmd)
	rootCmd.AddCommand(quotaCmd)
}
