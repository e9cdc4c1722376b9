package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/studiosync"
	"github.com/agentstation/studiosync/internal/output"
	"github.com/agentstation/studiosync/pkg/constants"
	"github.com/agentstation/studiosync/pkg/differ"
	"github.com/agentstation/studiosync/pkg/errors"
	"github.com/agentstation/studiosync/pkg/logging"
	"github.com/agentstation/studiosync/pkg/matcher"
	"github.com/agentstation/studiosync/pkg/registry"
)

// print writes data in the selected format. Tables use tab, the other
// formats marshal raw.
func (a *App) print(cmd *cobra.Command, tab output.Tabular, raw any) error {
	format := output.DetectFormat(a.config.Format)
	data := raw
	if format == output.FormatTable || format == output.FormatWide {
		data = tab
	}
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
}

// NewRunCommand creates the run command.
func (a *App) NewRunCommand() *cobra.Command {
	var (
		id, name    string
		all         bool
		dryRun      bool
		force       bool
		noFuzzy     bool
		threshold   float64
		limit       int
		concurrency int
		apply       string
	)
	cmd := &cobra.Command{
		Use:     "run (--id ID | --name NAME | --all)",
		GroupID: "core",
		Short:   "Match studios against the registries and update them",
		Long: `Run reconciles one studio (--id or --name) or every studio that still
lacks a StashDB ref, a ThePornDB ref or a parent (--all).

Populated fields are kept unless --force is given. With --dry-run nothing
is written and the planned changes are printed instead.`,
		Example: `  studiosync run --id 42
  studiosync run --name "Vixen" --dry-run -o yaml
  studiosync run --all --limit 100 --concurrency 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := &a.config.Matching
			if cmd.Flags().Changed("fuzzy-threshold") {
				if threshold < 0 || threshold > constants.MaxScore {
					return errors.NewValidationError("fuzzy-threshold", threshold, "must be between 0 and 100")
				}
				m.Threshold = threshold
			}
			if noFuzzy {
				m.Fuzzy = false
			}
			if cmd.Flags().Changed("concurrency") {
				a.config.Sync.Concurrency = concurrency
			}
			if cmd.Flags().Changed("apply") {
				a.config.Sync.Apply = apply
			}

			ctx := cmd.Context()
			syncer, runner, err := a.Syncer(ctx)
			if err != nil {
				return err
			}
			opts := []studiosync.SyncOption{
				studiosync.WithDryRun(dryRun),
				studiosync.WithForce(force),
				studiosync.WithLimit(limit),
			}

			switch {
			case all:
				release, err := runner.Lock()
				if err != nil {
					return err
				}
				a.hold(release)
				defer a.Shutdown(ctx)

				report, err := syncer.SyncAll(ctx, opts...)
				if report != nil {
					if perr := a.print(cmd, output.Report{Report: report}, report); perr != nil {
						return perr
					}
				}
				return err
			case id != "":
				opts = append(opts, studiosync.WithTimeout(constants.CommandTimeout))
				res, err := syncer.SyncStudio(ctx, id, opts...)
				return a.printResult(cmd, res, err)
			default:
				studio, err := syncer.FindStudioByName(ctx, name)
				if err != nil {
					return err
				}
				opts = append(opts, studiosync.WithTimeout(constants.CommandTimeout))
				res, err := syncer.ReconcileStudio(ctx, studio, opts...)
				return a.printResult(cmd, res, err)
			}
		},
	}

	f := cmd.Flags()
	f.StringVar(&id, "id", "", "reconcile the studio with this local id")
	f.StringVar(&name, "name", "", "reconcile the local studio with this name")
	f.BoolVar(&all, "all", false, "reconcile every studio that needs it")
	f.BoolVar(&dryRun, "dry-run", false, "print the planned changes without writing")
	f.BoolVar(&force, "force", false, "overwrite populated fields and reprocess complete studios")
	f.BoolVar(&noFuzzy, "no-fuzzy", false, "accept exact name matches only")
	f.Float64Var(&threshold, "fuzzy-threshold", constants.DefaultFuzzyThreshold, "minimum score for a fuzzy match (0-100)")
	f.IntVar(&limit, "limit", 0, "process at most N studios in --all mode (0 = no limit)")
	f.IntVar(&concurrency, "concurrency", constants.DefaultConcurrency, "studio names processed at once in --all mode")
	f.StringVar(&apply, "apply", string(differ.ApplyAll), "changes to write: all, additive (no removals) or additions-only (fill empty fields)")
	cmd.MarkFlagsMutuallyExclusive("id", "name", "all")
	cmd.MarkFlagsOneRequired("id", "name", "all")
	return cmd
}

func (a *App) printResult(cmd *cobra.Command, res *studiosync.Result, err error) error {
	if res == nil {
		return err
	}
	if perr := a.print(cmd, output.Result{Result: res}, res); perr != nil {
		return perr
	}
	return err
}

// NewPluginCommand creates the plugin command.
func (a *App) NewPluginCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "plugin",
		GroupID: "core",
		Short:   "Run one task requested by the host on stdin",
		Long: `Plugin reads {"server_connection": {...}, "args": {...}} from stdin,
connects to the host it names and writes {"output": ...} or {"error": ...}
to stdout. Logs go to stderr.

Args: mode (all, single, name), studio_id, name, dry_run, force, limit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.Runner().Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// NewRegistriesCommand creates the registries command.
func (a *App) NewRegistriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "registries",
		GroupID: "management",
		Short:   "List the registries a run would search",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			runner := a.Runner()
			var configs []registry.Config
			cat, err := runner.Catalog(a.config.Stash.Connection())
			if err == nil {
				configs, err = runner.Registries(ctx, cat)
			}
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("Reading host stash-boxes failed, listing configured registries only")
				configs = registry.Dedupe(ctx, a.config.RegistryConfigs())
			}
			regs := output.Registries(configs)
			return a.print(cmd, regs, regs.Views())
		},
	}
}

// NewScoreCommand creates the score command.
func (a *App) NewScoreCommand() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:     "score NAME CANDIDATE...",
		GroupID: "management",
		Short:   "Explain how candidate names score against a name",
		Example: `  studiosync score "Vixen" "Vixen Media Group" "Vixen.com"
  studiosync score Brazzers "Brazzers Network" -o wide`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.Matcher()
			if cmd.Flags().Changed("fuzzy-threshold") {
				m = matcher.New(matcher.WithThreshold(threshold))
			}
			scores := output.Scores{Threshold: m.Threshold()}
			for _, c := range args[1:] {
				scores.Breakdowns = append(scores.Breakdowns, m.Explain(args[0], c))
			}
			return a.print(cmd, scores, scores)
		},
	}
	cmd.Flags().Float64Var(&threshold, "fuzzy-threshold", constants.DefaultFuzzyThreshold, "threshold to judge acceptance against")
	return cmd
}

// NewConfigCommand creates the config command.
func (a *App) NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		GroupID: "management",
		Short:   "Manage the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var path string
	var overwrite bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				p, err := DefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := WriteFile(path, DefaultFile(), overwrite); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "file to write (default is $HOME/.studiosync.yaml)")
	initCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("studiosync %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
