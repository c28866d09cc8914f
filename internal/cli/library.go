package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vcdtrace/internal/script"
	"github.com/roach88/vcdtrace/internal/store"
)

// LibraryOptions holds flags shared by the commands that use the trace
// database.
type LibraryOptions struct {
	*RootOptions
	Database string
}

// ImportResult is reported after a script has been stored.
type ImportResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("✓ Imported %q as %s", r.Name, r.ID)
}

// TraceList is the list command's payload.
type TraceList struct {
	Traces []store.TraceInfo `json:"traces"`
}

func (l TraceList) String() string {
	if len(l.Traces) == 0 {
		return "No traces stored"
	}
	var b strings.Builder
	for i, t := range l.Traces {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s  (%d signals, %d steps)", t.ID, t.Name, t.Signals, t.Steps)
		if t.Description != "" {
			fmt.Fprintf(&b, "  %s", t.Description)
		}
	}
	return b.String()
}

func addDatabaseFlag(cmd *cobra.Command, opts *LibraryOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LibraryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <script>",
		Short: "Store a trace script in the database",
		Long: `Load a YAML or CUE trace script, validate it and store it in the
trace database. The database is created if it doesn't exist.

Example:
  vcdtrace import --db ./traces.db handshake.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, args[0], cmd)
		},
	}
	addDatabaseFlag(cmd, opts)

	return cmd
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LibraryOptions{RootOptions: rootOpts}
	var traceID, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a stored trace as a VCD file",
		Long: `Render a trace from the database as a Value Change Dump.

Example:
  vcdtrace export --db ./traces.db --trace 0190... -o handshake.vcd`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, traceID, output, cmd)
		},
	}
	addDatabaseFlag(cmd, opts)
	cmd.Flags().StringVar(&traceID, "trace", "", "trace id (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LibraryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored traces",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts, cmd)
		},
	}
	addDatabaseFlag(cmd, opts)

	return cmd
}

// openStore opens the database and returns a close function that logs
// rather than fails.
func openStore(formatter *OutputFormatter, logger *slog.Logger, path string) (*store.Store, func(), error) {
	logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
	}
	return st, func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}, nil
}

func runImport(ctx context.Context, opts *LibraryOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	sc, err := script.Load(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), err)
	}

	st, closeStore, err := openStore(formatter, logger, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := st.SaveScript(ctx, sc)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
	}
	logger.Debug("script stored", "id", id, "name", sc.Name)

	return formatter.Success(ImportResult{ID: id, Name: sc.Name})
}

func runExport(ctx context.Context, opts *LibraryOptions, traceID, output string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()
	errs := reporter(formatter, output)

	st, closeStore, err := openStore(errs, logger, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	sc, err := st.LoadScript(ctx, traceID)
	if errors.Is(err, store.ErrTraceNotFound) {
		return errs.Fail(ExitCommandError, ErrCodeNotFound, err)
	}
	if err != nil {
		return errs.Fail(ExitCommandError, ErrCodeStoreFailed, err)
	}

	return writeTrace(formatter, logger, sc, output)
}

func runList(ctx context.Context, opts *LibraryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	st, closeStore, err := openStore(formatter, logger, opts.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	traces, err := st.ListTraces(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, err)
	}
	return formatter.Success(TraceList{Traces: traces})
}
