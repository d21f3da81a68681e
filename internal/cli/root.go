// Package cli implements the edgeadmin command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bulkedge/edgeadmin/internal/present"
)

// RootOptions holds global flags and the process streams for all commands.
type RootOptions struct {
	APIBase string
	Catalog string
	Format  string // "text" | "json"
	NoColor bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{string(present.FormatText), string(present.FormatJSON)}

// NewRootCommand creates the root command.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "edgeadmin",
		Short:         "Run bulk device-management operations against the edge backend",
		Long:          "edgeadmin submits bulk device operations (tags, profiles, thing definitions, onboarding)\nto the device-management backend and follows its live log feed.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return &ExitError{
					Code:    ExitCommandError,
					Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats),
				}
			}
			return nil
		},
	}
	cmd.SetIn(opts.Stdin)
	cmd.SetOut(opts.Stdout)
	cmd.SetErr(opts.Stderr)

	cmd.PersistentFlags().StringVar(&opts.APIBase, "api-base", "", "backend base URL (overrides EDGEADMIN_API_BASE)")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "", "operation catalog YAML (overrides EDGEADMIN_CATALOG)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewOperationsCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewLogsCommand(opts))
	cmd.AddCommand(NewConsoleCommand(opts))
	cmd.AddCommand(NewStubServerCommand(opts))
	cmd.AddCommand(NewMCPCommand(opts))

	return cmd
}

// Main runs the command line with args and returns the process exit code.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &RootOptions{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	code := ExitCode(err)
	if code == ExitCanceled {
		fmt.Fprintln(stderr, "canceled")
	} else {
		fmt.Fprintln(stderr, "edgeadmin:", err)
	}
	return code
}
