package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/denismitr/kvtern/internal/cli"
	"github.com/denismitr/kvtern/migration"
	"github.com/dustin/go-humanize"
	"github.com/logrusorgru/aurora/v3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// registry holds the bodies of migrations compiled into this binary,
// manifests without a registered body are applied as schema only
var registry = migration.NewRegistry()

type flags struct {
	configPath  string
	databaseURL string
	folder      string
	dryRun      bool
	debug       bool
	timeout     time.Duration
	limit       int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Println(aurora.Red("kvtern: "), err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "kvtern",
		Short:         "Schema and data migrations for key-value stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", cli.DefaultConfigFile, "path to the configuration file")
	root.PersistentFlags().StringVar(&f.databaseURL, "db", "", "database url, overrides the configuration file")
	root.PersistentFlags().StringVar(&f.folder, "folder", "", "migrations folder, overrides the configuration file")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "print debug output")
	root.PersistentFlags().DurationVar(&f.timeout, "timeout", 120*time.Second, "time limit for the whole run")

	root.AddCommand(
		newInitCommand(&f),
		newCreateCommand(&f),
		newActionCommand(&f, "up [version]", "Apply outstanding migrations up to the version", "up", cobra.MaximumNArgs(1)),
		newActionCommand(&f, "down [version]", "Roll back applied migrations down to and including the version", "down", cobra.MaximumNArgs(1)),
		newActionCommand(&f, "repeat [version]", "Run the up procedure of an applied version again", "repeat", cobra.MaximumNArgs(1)),
		newActionCommand(&f, "reset", "Run the latest migration and rebuild the ledger", "reset", cobra.NoArgs),
		newRunCommand(&f),
		newStatusCommand(&f),
	)

	return root
}

func newInitCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file stub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.FileExists(f.configPath) {
				return errors.Errorf("configuration file [%s] already exists", f.configPath)
			}

			if err := cli.InitCfg(f.configPath); err != nil {
				return err
			}

			fmt.Println(aurora.Green("kvtern: "), "created", f.configPath)
			return nil
		},
	}
}

func newCreateCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "new <version|name> <description>",
		Short: "Create a migration manifest in the migrations folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(ctx context.Context, app *cli.App) error {
				m, err := app.CreateMigration(args[0], args[1])
				if err != nil {
					return err
				}

				fmt.Println(aurora.Green("kvtern: "), "created", m.Path)
				return nil
			})
		},
	}
}

func newActionCommand(f *flags, use, short, action string, args cobra.PositionalArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) > 0 {
				target = args[0]
			}

			return apply(f, cli.ActionConfig{Action: action, Target: target, DryRun: f.dryRun})
		},
	}

	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "run the bodies without writing the ledger or the schema")

	return cmd
}

func newRunCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a named migration once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apply(f, cli.ActionConfig{Action: args[0], Named: true, DryRun: f.dryRun})
		},
	}

	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "run the body without writing the ledger or the schema")

	return cmd
}

func newStatusCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current version, the ledger and outstanding migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(f, func(ctx context.Context, app *cli.App) error {
				st, err := app.Status(ctx, f.limit)
				if err != nil {
					return err
				}

				printStatus(st)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum number of outstanding migrations to list")

	return cmd
}

func apply(f *flags, cfg cli.ActionConfig) error {
	return withApp(f, func(ctx context.Context, app *cli.App) error {
		executed, err := app.Apply(ctx, cfg)
		if errors.Is(err, migration.ErrNoChangesRequired) {
			fmt.Println(aurora.Green("kvtern: "), "Nothing to migrate")
			return nil
		}

		if err != nil {
			return err
		}

		prefix := "kvtern: "
		if cfg.DryRun {
			prefix = "kvtern (dry run): "
		}

		for _, m := range executed {
			fmt.Println(aurora.Green(prefix), cfg.Action, m.Version, aurora.Faint(m.Description))
		}

		fmt.Println(aurora.Green(prefix), "all done")
		return nil
	})
}

func withApp(f *flags, fn func(ctx context.Context, app *cli.App) error) (err error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	app, closer, err := cli.New(cfg, registry, log.New(os.Stdout, "", 0))
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closer(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	return fn(ctx, app)
}

func loadConfig(f *flags) (cli.Config, error) {
	var cfg cli.Config

	if cli.FileExists(f.configPath) {
		fromFile, err := cli.ConfigFromYaml(f.configPath)
		if err != nil && (f.databaseURL == "" || f.folder == "") {
			return cfg, err
		}
		cfg = fromFile
	}

	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}

	if f.folder != "" {
		cfg.MigrationsFolder = f.folder
	}

	cfg.Debug = f.debug

	return cfg, cfg.Validate()
}

func printStatus(st cli.Status) {
	fmt.Println(aurora.Bold("Current version:"), aurora.Cyan(st.Current.Name))

	fmt.Println(aurora.Bold("Applied:"))
	for _, e := range st.Past {
		status := aurora.Green(e.Status)
		if !e.Succeeded() {
			status = aurora.Red(e.Status)
		}

		fmt.Printf("  %-16s %-12s %s  %s\n", e.Version, humanize.Time(e.MigratedAt), status, e.Description)
	}

	fmt.Println(aurora.Bold("Outstanding:"))
	for _, id := range st.Outstanding {
		fmt.Printf("  %s\n", id.Name)
	}

	if len(st.Named) > 0 {
		fmt.Println(aurora.Bold("Named:"))
		for _, id := range st.Named {
			fmt.Printf("  %s\n", id.Name)
		}
	}
}
