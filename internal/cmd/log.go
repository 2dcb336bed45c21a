package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/loggate/loggate/internal/core"
	errwrap "github.com/loggate/loggate/internal/errors"
	"github.com/loggate/loggate/internal/gateway"
	"github.com/loggate/loggate/internal/observability"
	"github.com/loggate/loggate/internal/output"
)

var (
	logSeverity string
	logStdin    bool
	logOutput   string
)

// logResult summarizes one gateway write for CLI output.
type logResult struct {
	Severity   core.Severity      `json:"severity"`
	Message    string             `json:"message"`
	Escalation gateway.Escalation `json:"escalation"`
}

var logCmd = &cobra.Command{
	Use:   "log [message...]",
	Short: "Write events through the gateway",
	Long: `Write one event (the arguments joined by spaces) or, with --stdin, one
event per input line. Each event is logged locally; error events are
escalated remotely while the quota allows.`,
	Example: `  loggate log --severity error "upload failed: disk full"
  tail -f app.log | loggate log --stdin --severity warning`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		severity, err := core.ParseSeverity(logSeverity)
		if err != nil {
			return errwrap.FromGateway(ctx, err)
		}

		format, err := output.ParseFormat(logOutput)
		if err != nil {
			return err
		}

		if err := checkMessageArgs(args, logStdin); err != nil {
			return err
		}

		cfg, err := loadConfig(ctx, nil)
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Configuration invalid", err)
		}

		w, err := buildWiring(ctx, cfg, observability.CLILogger)
		if err != nil {
			return err
		}
		defer w.Close() // nolint:errcheck // best-effort cleanup

		printer := newLogPrinter(cmd.OutOrStdout(), format)
		return streamMessages(args, logStdin, cmd.InOrStdin(), func(message string) error {
			return printer.print(logResult{
				Severity:   severity,
				Message:    message,
				Escalation: w.Gateway.Write(ctx, severity, message),
			})
		})
	},
}

func checkMessageArgs(args []string, stdin bool) error {
	if stdin {
		if len(args) > 0 {
			return fmt.Errorf("--stdin does not accept message arguments")
		}
		return nil
	}
	if strings.TrimSpace(strings.Join(args, " ")) == "" {
		return fmt.Errorf("a message is required (or use --stdin)")
	}
	return nil
}

// streamMessages hands each message to emit as soon as it is read: the
// joined arguments, or every non-blank stdin line.
func streamMessages(args []string, stdin bool, in io.Reader, emit func(message string) error) error {
	if err := checkMessageArgs(args, stdin); err != nil {
		return err
	}
	if !stdin {
		return emit(strings.TrimSpace(strings.Join(args, " ")))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := emit(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}

type logPrinter struct {
	w      io.Writer
	format output.Format
	table  *output.EventTable
}

func newLogPrinter(w io.Writer, format output.Format) *logPrinter {
	return &logPrinter{w: w, format: format, table: output.NewEventTable(w)}
}

func (p *logPrinter) print(result logResult) error {
	if p.format == output.FormatJSON {
		payload, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(payload))
		return err
	}
	return p.table.Append(string(result.Severity), string(result.Escalation), result.Message)
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().StringVarP(&logSeverity, "severity", "s", string(core.SeverityInformation), "Event severity: debug|information|warning|error")
	logCmd.Flags().BoolVar(&logStdin, "stdin", false, "Read one event per line from stdin")
	logCmd.Flags().StringVar(&logOutput, "output-format", string(output.FormatTable), "Output format: table|json (one row per event, written as it is logged)")
}
