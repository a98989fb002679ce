package clipstatsctl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipstats/clipstats/internal/config"
	"github.com/clipstats/clipstats/internal/jobs"
	"github.com/clipstats/clipstats/internal/observability"
	"github.com/clipstats/clipstats/internal/query"
	"github.com/clipstats/clipstats/internal/storage"
)

// ObjectStore is the object store surface the CLI needs: objects in the
// configured bucket plus bucket administration.
type ObjectStore interface {
	storage.ObjectStore
	storage.BucketAdmin
}

type JobClient interface {
	ListJobs(ctx context.Context) ([]jobs.Job, error)
	StartJob(ctx context.Context, name string, args map[string]string) (string, error)
	JobRunState(ctx context.Context, name, runID string) (jobs.RunStatus, error)
}

type Options struct {
	Config config.Config
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
	Sleep  func(ctx context.Context, d time.Duration) error

	// NewQueryClient returns the engine client and a release func. store is
	// nil unless the command needs dataset registration.
	NewQueryClient func(ctx context.Context, cfg config.Config, logger *slog.Logger, store storage.ObjectStore) (query.Client, func() error, error)
	NewObjectStore func(ctx context.Context, cfg config.Config, logger *slog.Logger) (ObjectStore, error)
	NewJobClient   func(ctx context.Context, cfg config.Config, logger *slog.Logger) (JobClient, error)
	// OpenDB opens the duckdb or postgres database behind the local backends.
	OpenDB func(ctx context.Context, cfg config.Config) (*sql.DB, error)
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

type globalFlags struct {
	backend      string
	database     string
	output       string
	printMetrics bool
}

// Run executes one command and returns the process exit code: 0 on success,
// 1 on runtime failure, 2 on usage errors.
func Run(ctx context.Context, args []string, opts Options) int {
	opts.ensureDefaults()

	root := NewRootCommand(&opts)
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	err := root.ExecuteContext(ctx)
	code := exitCode(err)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "error: %v\n", err)
		if code == 2 {
			_, _ = fmt.Fprintf(opts.Stderr, "run %q for usage\n", "clipstatsctl --help")
		}
	}
	return code
}

func NewRootCommand(opts *Options) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "clipstatsctl",
		Short:         "Query clip detection statistics and manage the supporting cloud resources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.applyGlobalFlags(cmd, flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !flags.printMetrics {
				return nil
			}
			return observability.WriteMetrics(cmd.OutOrStdout())
		},
		RunE: func(*cobra.Command, []string) error {
			return usagef("a command is required")
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.PersistentFlags().StringVar(&flags.backend, "backend", string(opts.Config.Query.Backend), "query backend (athena|duckdb|postgres)")
	cmd.PersistentFlags().StringVar(&flags.database, "database", opts.Config.Query.Database, "database holding the queried tables")
	cmd.PersistentFlags().StringVar(&flags.output, "output", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVar(&flags.printMetrics, "print-metrics", false, "print collected metrics after the command")

	cmd.AddCommand(newQueryCommand(opts, flags))
	cmd.AddCommand(newSchemaCommand(opts, flags))
	cmd.AddCommand(newJobsCommand(opts, flags))
	cmd.AddCommand(newBucketsCommand(opts, flags))
	cmd.AddCommand(newUploadCommand(opts, flags))
	cmd.AddCommand(newDatasetCommand(opts, flags))
	cmd.AddCommand(newMigrateCommand(opts, flags))
	return cmd
}

func (o *Options) ensureDefaults() {
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	if o.Stderr == nil {
		o.Stderr = io.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(o.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if o.NewQueryClient == nil {
		o.NewQueryClient = defaultQueryClient
	}
	if o.NewObjectStore == nil {
		o.NewObjectStore = defaultObjectStore
	}
	if o.NewJobClient == nil {
		o.NewJobClient = defaultJobClient
	}
	if o.OpenDB == nil {
		o.OpenDB = defaultOpenDB
	}
}

func (o *Options) applyGlobalFlags(cmd *cobra.Command, flags *globalFlags) error {
	switch config.Backend(strings.ToLower(strings.TrimSpace(flags.backend))) {
	case config.BackendAthena, config.BackendDuckDB, config.BackendPostgres:
		o.Config.Query.Backend = config.Backend(strings.ToLower(strings.TrimSpace(flags.backend)))
	default:
		return usagef("invalid --backend %q: must be athena, duckdb, or postgres", flags.backend)
	}
	if o.Config.Query.Backend == config.BackendPostgres && o.Config.Query.DSN == "" {
		return usagef("postgres backend requires CLIPSTATS_QUERY_DSN")
	}
	if cmd.Flags().Changed("database") {
		o.Config.Query.Database = strings.TrimSpace(flags.database)
	}
	switch flags.output {
	case "text", "json":
	default:
		return usagef("invalid --output %q: must be text or json", flags.output)
	}
	return nil
}

func (o *Options) newRunner() *query.Runner {
	return &query.Runner{
		Backend:        string(o.Config.Query.Backend),
		Database:       o.Config.Query.Database,
		OutputLocation: o.Config.Query.OutputLocation,
		WorkGroup:      o.Config.Query.WorkGroup,
		RetryLimit:     o.Config.Query.RetryLimit,
		PollDelay:      o.Config.Query.PollDelay,
		Logger:         o.Logger,
		Sleep:          o.Sleep,
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var usage *usageError
	if errors.As(err, &usage) || errors.Is(err, query.ErrInvalidArgument) {
		return 2
	}
	// cobra reports unknown subcommands and bad positional args as plain errors.
	message := err.Error()
	if strings.HasPrefix(message, "unknown command") || strings.HasPrefix(message, "unknown flag") {
		return 2
	}
	return 1
}

// openLocalDB opens the database of a duckdb or postgres backend.
func (o *Options) openLocalDB(ctx context.Context) (*sql.DB, error) {
	switch o.Config.Query.Backend {
	case config.BackendDuckDB, config.BackendPostgres:
	default:
		return nil, usagef("command requires --backend duckdb or postgres, got %q", o.Config.Query.Backend)
	}
	return o.OpenDB(ctx, o.Config)
}

func subcommandRequired(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return usagef("%s requires a subcommand", cmd.CommandPath())
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
