package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/studiosync/internal/output"
	"github.com/agentstation/studiosync/pkg/logging"
)

// Execute runs the CLI with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.createRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// flags are the global flags, applied over the loaded configuration.
type flags struct {
	configFile string
	verbose    bool
	quiet      bool
	noColor    bool
	format     string
	logLevel   string
}

func (a *App) createRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:     "studiosync",
		Short:   "Reconcile local studios with stash-box registries",
		Version: a.version,
		Long: `studiosync matches the studios of a local Stash server against StashDB,
ThePornDB and any other configured stash-box, then fills in their cross
references, URLs, images and parent studios.

Registries are read from the server's stash-box settings and from the
config file. Only registries with an API key are searched.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupCommand(cmd, f)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "management", Title: "Management Commands:"},
	)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "config file (default is $HOME/.studiosync.yaml)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	pf.BoolVarP(&f.quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	pf.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	pf.StringVarP(&f.format, "format", "o", "", "output format: table, wide, json, yaml")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	root.SetVersionTemplate("studiosync {{.Version}}\n")
	a.registerCommands(root)
	return root
}

// setupCommand reloads the config file named by --config, applies the
// global flags and rebuilds the logger.
func (a *App) setupCommand(cmd *cobra.Command, f *flags) error {
	if cmd.Flags().Changed("config") {
		config, err := LoadConfig(f.configFile)
		if err != nil {
			return err
		}
		a.config = config
	}
	if _, err := output.ParseFormat(f.format); err != nil {
		return err
	}
	a.config.UpdateFromFlags(f.verbose, f.quiet, f.noColor, f.format, f.logLevel)

	logger := NewLogger(a.config)
	a.logger = &logger
	if ctx := cmd.Context(); ctx != nil {
		cmd.SetContext(logging.WithLogger(ctx, a.logger))
	}
	return nil
}

func (a *App) registerCommands(root *cobra.Command) {
	root.AddCommand(a.NewRunCommand())
	root.AddCommand(a.NewPluginCommand())
	root.AddCommand(a.NewRegistriesCommand())
	root.AddCommand(a.NewScoreCommand())
	root.AddCommand(a.NewConfigCommand())
	root.AddCommand(a.NewVersionCommand())
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
