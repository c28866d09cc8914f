package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vcdtrace/internal/script"
	"github.com/roach88/vcdtrace/internal/vcd"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Name  string       `json:"name"`
	Stats script.Stats `json:"stats"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ Script %q valid (%d signals, %d steps)", r.Name, r.Stats.Signals, r.Stats.Steps)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script>",
		Short: "Check a trace script without writing output",
		Long: `Validate a YAML or CUE trace script.

Checks the script's structure, then replays it against a writer whose
output is discarded so that bad values and out-of-order steps are caught
as well.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := formatter.Logger()

	sc, err := script.Load(path)
	if err != nil {
		code := loadErrorCode(err)
		if code == ErrCodeInvalid {
			return formatter.Fail(ExitFailure, code, err)
		}
		return formatter.Fail(ExitCommandError, code, err)
	}
	logger.Debug("script loaded", "path", path, "signals", len(sc.Signals), "steps", len(sc.Steps))

	stats, err := sc.Render(io.Discard, vcd.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitFailure, renderErrorCode(err), err)
	}

	return formatter.Success(ValidationResult{Valid: true, Name: sc.Name, Stats: stats})
}
