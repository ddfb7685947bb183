package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/refbind/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the runtime configuration loaded before any subcommand runs.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the refbind command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "refbind",
		Short: "refbind - entity reference selection bindings",
		Long: `Binds entity browser selection surfaces to entity reference fields.

Validates browser and field widget configuration, relays selection
messages between a host form and a selection surface, and replays
conformance scenarios against the binding engine.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(ValidFormats, cobra.ShellCompDirectiveNoFileComp))

	cmd.AddCommand(
		NewValidateCommand(opts),
		NewRunCommand(opts),
		NewTestCommand(opts),
		NewTraceCommand(opts),
	)
	return cmd
}

// setup loads the runtime config, settles the output format and installs
// the default logger. An explicit --format beats output.format.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if cfg.Output.Format != "" && !cmd.Flags().Changed("format") {
		o.Format = cfg.Output.Format
	}
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log config", err)
	}
	slog.SetDefault(logger)

	o.Config = cfg
	return nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
