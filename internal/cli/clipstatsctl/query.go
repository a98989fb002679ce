package clipstatsctl

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipstats/clipstats/internal/config"
	"github.com/clipstats/clipstats/internal/query"
	"github.com/clipstats/clipstats/internal/sqlgen"
	"github.com/clipstats/clipstats/internal/storage"
)

type datasetRegistrar interface {
	RegisterDataset(ctx context.Context, table, prefix string) (int, error)
}

type queryFlags struct {
	table      string
	limit      int
	categories []string
	clips      []string
	binWidth   int
	binCount   int
	specFile   string
	expect     []string
	renderOnly bool
	dataset    string
}

func newQueryCommand(opts *Options, global *globalFlags) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run the binned detection-rate query",
		Long: `Render the detection-rate query from flags or a YAML spec file, optionally
validate the table schema first, then run it and print the result rows.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := flags.querySpec(cmd)
			if err != nil {
				return err
			}
			expected, err := parseExpect(flags.expect)
			if err != nil {
				return err
			}
			if flags.renderOnly {
				sqlText, err := sqlgen.Build(spec)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), sqlText)
				return err
			}
			return runQuery(cmd, opts, global, flags, spec, expected)
		},
	}

	cmd.Flags().StringVar(&flags.table, "table", opts.Config.Query.Table, "table to query")
	cmd.Flags().IntVar(&flags.limit, "limit", 10, "maximum number of result rows")
	cmd.Flags().StringArrayVar(&flags.categories, "category", nil, "vehicle type to include (repeatable)")
	cmd.Flags().StringArrayVar(&flags.clips, "clip", nil, "clip name to include (repeatable)")
	cmd.Flags().IntVar(&flags.binWidth, "bin-width", sqlgen.DefaultBinWidth, "distance covered by each bin")
	cmd.Flags().IntVar(&flags.binCount, "bin-count", sqlgen.DefaultBinCount, "number of distance bins")
	cmd.Flags().StringVar(&flags.specFile, "spec", "", "YAML query spec file; replaces the query flags")
	cmd.Flags().StringArrayVar(&flags.expect, "expect", nil, "expected column type as column=type (repeatable)")
	cmd.Flags().BoolVar(&flags.renderOnly, "render-only", false, "print the SQL without running it")
	cmd.Flags().StringVar(&flags.dataset, "dataset", "", "object store prefix to expose as the table (duckdb only)")
	return cmd
}

func (f *queryFlags) querySpec(cmd *cobra.Command) (sqlgen.QuerySpec, error) {
	if f.specFile != "" {
		return sqlgen.LoadSpecFile(f.specFile)
	}
	spec := sqlgen.QuerySpec{
		TableName: f.table,
		LimitRows: f.limit,
		BinWidth:  f.binWidth,
		BinCount:  f.binCount,
	}
	if cmd.Flags().Changed("category") {
		spec.Categories = sqlgen.NewFilter(f.categories...)
	}
	if cmd.Flags().Changed("clip") {
		spec.ItemNames = sqlgen.NewFilter(f.clips...)
	}
	if err := spec.Validate(); err != nil {
		return sqlgen.QuerySpec{}, err
	}
	return spec, nil
}

func runQuery(cmd *cobra.Command, opts *Options, global *globalFlags, flags *queryFlags, spec sqlgen.QuerySpec, expected query.ExpectedSchema) error {
	ctx := cmd.Context()
	client, release, err := openQueryClient(ctx, opts, spec.TableName, flags.dataset)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	runner := opts.newRunner()
	runner.Client = client
	result, err := runner.Run(ctx, spec, expected)
	if result.Schema != nil && !result.Schema.Valid {
		_ = printSchemaReport(cmd.ErrOrStderr(), "text", *result.Schema)
	}
	if err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), global.output, result)
}

func newSchemaCommand(opts *Options, global *globalFlags) *cobra.Command {
	var (
		table   string
		expect  []string
		dataset string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Validate column types of a table",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			expected, err := parseExpect(expect)
			if err != nil {
				return err
			}
			if len(expected) == 0 {
				return usagef("at least one --expect column=type is required")
			}
			ctx := cmd.Context()
			client, release, err := openQueryClient(ctx, opts, table, dataset)
			if err != nil {
				return err
			}
			defer func() { _ = release() }()

			runner := opts.newRunner()
			runner.Client = client
			report, err := runner.ValidateSchema(ctx, table, expected)
			if err != nil {
				return err
			}
			if err := printSchemaReport(cmd.OutOrStdout(), global.output, report); err != nil {
				return err
			}
			return report.Err()
		},
	}
	cmd.Flags().StringVar(&table, "table", opts.Config.Query.Table, "table to validate")
	cmd.Flags().StringArrayVar(&expect, "expect", nil, "expected column type as column=type (repeatable)")
	cmd.Flags().StringVar(&dataset, "dataset", "", "object store prefix to expose as the table (duckdb only)")
	return cmd
}

// openQueryClient builds the engine client and, when prefix is set, exposes
// the staged dataset under prefix as table.
func openQueryClient(ctx context.Context, opts *Options, table, prefix string) (query.Client, func() error, error) {
	var store storage.ObjectStore
	if prefix != "" {
		if opts.Config.Query.Backend != config.BackendDuckDB {
			return nil, nil, usagef("--dataset requires the duckdb backend")
		}
		objectStore, err := opts.NewObjectStore(ctx, opts.Config, opts.Logger)
		if err != nil {
			return nil, nil, err
		}
		store = objectStore
	}

	client, release, err := opts.NewQueryClient(ctx, opts.Config, opts.Logger, store)
	if err != nil {
		return nil, nil, err
	}
	if release == nil {
		release = func() error { return nil }
	}
	if prefix == "" {
		return client, release, nil
	}

	registrar, ok := client.(datasetRegistrar)
	if !ok {
		_ = release()
		return nil, nil, fmt.Errorf("query backend %q cannot register datasets", opts.Config.Query.Backend)
	}
	if _, err := registrar.RegisterDataset(ctx, table, prefix); err != nil {
		_ = release()
		return nil, nil, err
	}
	return client, release, nil
}

func parseExpect(pairs []string) (query.ExpectedSchema, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	return query.ParseExpectedSchema(pairs)
}
