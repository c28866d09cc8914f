package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vcdtrace/internal/script"
	"github.com/roach88/vcdtrace/internal/vcd"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Output string
}

// RenderResult is reported after a trace has been written to a file.
type RenderResult struct {
	Output string       `json:"output"`
	Stats  script.Stats `json:"stats"`
}

func (r RenderResult) String() string {
	return fmt.Sprintf("✓ Wrote %s (%d signals, %d steps, %d records, %d suppressed)",
		r.Output, r.Stats.Signals, r.Stats.Steps, r.Stats.Records, r.Stats.Suppressed)
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <script>",
		Short: "Render a trace script as a VCD file",
		Long: `Render a YAML or CUE trace script as a Value Change Dump.

Without --output the VCD stream is written to stdout and nothing else is
printed there; diagnostics go to stderr.

Example:
  vcdtrace render handshake.yaml -o handshake.vcd
  vcdtrace render handshake.cue > handshake.vcd`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	logger.Debug("loading script", "path", path)
	sc, err := script.Load(path)
	if err != nil {
		return reporter(formatter, opts.Output).Fail(ExitCommandError, loadErrorCode(err), err)
	}

	return writeTrace(formatter, logger, sc, opts.Output)
}

// writeTrace renders sc to output, or to the formatter's writer when output
// is empty. A file target gets a success report; stdout carries only VCD.
func writeTrace(formatter *OutputFormatter, logger *slog.Logger, sc *script.Script, output string) error {
	stats, err := renderTo(formatter.Writer, logger, sc, output)
	if err != nil {
		code := renderErrorCode(err)
		if code == ErrCodeWriteFailed {
			return reporter(formatter, output).Fail(ExitCommandError, code, err)
		}
		return reporter(formatter, output).Fail(ExitFailure, code, err)
	}

	logger.Debug("trace rendered",
		"name", sc.Name,
		"signals", stats.Signals,
		"steps", stats.Steps,
		"records", stats.Records,
		"suppressed", stats.Suppressed,
	)
	if output == "" {
		return nil
	}
	return formatter.Success(RenderResult{Output: output, Stats: stats})
}

// reporter is the formatter errors go to: stdout is reserved for the VCD
// stream when no output file is given.
func reporter(formatter *OutputFormatter, output string) *OutputFormatter {
	if output == "" {
		return formatter.Diagnostics()
	}
	return formatter
}

func renderTo(stdout io.Writer, logger *slog.Logger, sc *script.Script, output string) (script.Stats, error) {
	if output == "" {
		// Hide any Close method so the writer never closes stdout.
		return sc.Render(struct{ io.Writer }{stdout}, vcd.WithLogger(logger))
	}

	f, err := os.Create(output)
	if err != nil {
		return script.Stats{}, fmt.Errorf("create output: %w", err)
	}
	stats, err := sc.Render(struct{ io.Writer }{f}, vcd.WithLogger(logger))
	if cerr := f.Close(); err == nil && cerr != nil {
		return stats, fmt.Errorf("close output: %w", cerr)
	}
	return stats, err
}

func loadErrorCode(err error) string {
	if errors.Is(err, script.ErrInvalid) {
		return ErrCodeInvalid
	}
	return ErrCodeLoadFailed
}

func renderErrorCode(err error) string {
	switch {
	case vcd.IsTypeError(err):
		return ErrCodeRenderType
	case vcd.IsPhaseError(err):
		return ErrCodeRenderPhase
	default:
		return ErrCodeWriteFailed
	}
}
