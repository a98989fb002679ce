package clipstatsctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipstats/clipstats/internal/config"
	"github.com/clipstats/clipstats/internal/migrations"
)

func newMigrateCommand(opts *Options, global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the detection table schema of the postgres backend",
		RunE:  subcommandRequired,
	}

	var steps int
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePostgres(opts); err != nil {
				return err
			}
			db, err := opts.openLocalDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			applied, err := migrations.NewRunner().Up(cmd.Context(), db, steps)
			if err != nil {
				return err
			}
			opts.Logger.Info("migrations applied", "count", applied)
			return printMigrationCount(cmd, global, "applied", applied)
		},
	}
	up.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (0 applies all)")

	var downSteps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the newest migrations",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePostgres(opts); err != nil {
				return err
			}
			db, err := opts.openLocalDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			rolledBack, err := migrations.NewRunner().Down(cmd.Context(), db, downSteps)
			if err != nil {
				return err
			}
			opts.Logger.Info("migrations rolled back", "count", rolledBack)
			return printMigrationCount(cmd, global, "rolled_back", rolledBack)
		},
	}
	down.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	pending := &cobra.Command{
		Use:   "pending",
		Short: "List migration versions not yet applied",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requirePostgres(opts); err != nil {
				return err
			}
			db, err := opts.openLocalDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			versions, err := migrations.NewRunner().Pending(cmd.Context(), db)
			if err != nil {
				return err
			}
			if global.output == "json" {
				if versions == nil {
					versions = []int64{}
				}
				return writeJSON(cmd.OutOrStdout(), versions)
			}
			for _, version := range versions {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
			}
			return nil
		},
	}

	cmd.AddCommand(up, down, pending)
	return cmd
}

func requirePostgres(opts *Options) error {
	if opts.Config.Query.Backend != config.BackendPostgres {
		return usagef("migrate requires --backend postgres, got %q", opts.Config.Query.Backend)
	}
	return nil
}

func printMigrationCount(cmd *cobra.Command, global *globalFlags, verb string, count int) error {
	if global.output == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]int{verb: count})
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %d migrations\n", verb, count)
	return err
}
