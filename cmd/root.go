package cmd

import (
	"context"
	"fmt"
	"strconv"

	"powerball/config"
	"powerball/database"
	"powerball/service"
	"powerball/source"

	"github.com/spf13/cobra"
)

// Execute runs the CLI
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "powerball",
		Short: "AU Powerball draw sync service",
		Long: `Keeps a local store of AU Powerball draws in step with the public results feed
and serves draws and number frequencies over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			return setupLogging(cfg.LogLevel, cfg.LogFormat)
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), config.Get(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before starting")
	return cmd
}

func syncCmd() *cobra.Command {
	var full bool
	var year int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and print a summary",
		Long: `Run one synchronisation against the results feed.

Without flags the recent window is synced. --full deletes every stored draw
and rebuilds from the configured start year. --year syncs one calendar year.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.sync.Sync(cmd.Context(), service.Options{Full: full, TargetYear: year})
			a.bus.Wait()
			if result != nil {
				printSyncResult(cmd.OutOrStdout(), result)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "delete all draws and resync every year")
	cmd.Flags().IntVar(&year, "year", 0, "sync only this calendar year")
	cmd.MarkFlagsMutuallyExclusive("full", "year")
	return cmd
}

func scrapeCmd() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch from the feed without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newSourceClient(config.Get())

			var result *source.FetchResult
			var err error
			if year > 0 {
				result, err = client.FetchYear(cmd.Context(), year)
			} else {
				result, err = client.FetchLatest(cmd.Context())
			}
			if err != nil {
				return err
			}
			printFetchResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "archive year to fetch (default: latest results)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return database.MigrateUp(config.Get().GetDatabaseURL())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid steps %q", args[0])
				}
				steps = n
			}
			return database.MigrateDown(config.Get().GetDatabaseURL(), steps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := database.MigrateStatus(config.Get().GetDatabaseURL())
			if err != nil {
				return err
			}
			printMigrationStatus(cmd.OutOrStdout(), status)
			return nil
		},
	})

	return cmd
}
