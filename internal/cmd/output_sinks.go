package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loggate/loggate/internal/output"
)

// outputTarget is where a command renders its result: stdout, a file
// (--out), or a generated file name under a directory (--out-dir).
type outputTarget struct {
	Format output.Format
	Path   string
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

func sanitizeFilename(value string) string {
	clean := unsafeFilename.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	if clean = strings.Trim(clean, "-."); clean == "" {
		return "output"
	}
	return clean
}

// resolveOutput reads the output flags. stem names the file written under
// --out-dir.
func resolveOutput(cmd *cobra.Command, stem string) (outputTarget, error) {
	flags := cmd.Flags()

	formatValue, err := flags.GetString("output-format")
	if err != nil {
		return outputTarget{}, err
	}
	format, err := output.ParseFormat(formatValue)
	if err != nil {
		return outputTarget{}, err
	}
	target := outputTarget{Format: format}

	var outPath, outDir string
	if flags.Lookup("out") != nil {
		if outPath, err = flags.GetString("out"); err != nil {
			return outputTarget{}, err
		}
	}
	if flags.Lookup("out-dir") != nil {
		if outDir, err = flags.GetString("out-dir"); err != nil {
			return outputTarget{}, err
		}
	}
	outPath, outDir = strings.TrimSpace(outPath), strings.TrimSpace(outDir)

	switch {
	case outPath != "" && outDir != "":
		return outputTarget{}, fmt.Errorf("--out and --out-dir are mutually exclusive")
	case outDir != "":
		target.Path = filepath.Join(outDir, sanitizeFilename(stem)+"."+output.Extension(format))
	case outPath != "-":
		target.Path = outPath
	}
	return target, nil
}

// write renders content followed by a newline. An empty Path writes to
// stdout; parent directories of a file target are created.
func (t outputTarget) write(stdout io.Writer, content string) (err error) {
	if t.Path == "" {
		_, err = fmt.Fprintln(stdout, content)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(t.Path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	_, err = fmt.Fprintln(file, content)
	return err
}
