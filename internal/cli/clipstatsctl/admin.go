package clipstatsctl

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipstats/clipstats/internal/dataset"
	"github.com/clipstats/clipstats/internal/query/sqldb"
)

func newJobsCommand(opts *Options, global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List and start dataset build jobs",
		RunE:  subcommandRequired,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List job definitions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.NewJobClient(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			list, err := client.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if global.output == "json" {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "name\tglue_version\tlast_modified")
			for _, job := range list {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", job.Name, job.GlueVersion, formatTime(job.LastModifiedOn))
			}
			return tw.Flush()
		},
	})

	var jobArgs []string
	start := &cobra.Command{
		Use:   "start <job-name>",
		Short: "Start a job run",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments, err := parseKeyValues(jobArgs)
			if err != nil {
				return err
			}
			client, err := opts.NewJobClient(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			runID, err := client.StartJob(cmd.Context(), args[0], arguments)
			if err != nil {
				return err
			}
			if global.output == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"job": args[0], "run_id": runID})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), runID)
			return err
		},
	}
	start.Flags().StringArrayVar(&jobArgs, "arg", nil, "job argument as key=value (repeatable)")
	cmd.AddCommand(start)

	cmd.AddCommand(&cobra.Command{
		Use:   "status <job-name> <run-id>",
		Short: "Show the state of a job run",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.NewJobClient(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			status, err := client.JobRunState(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if global.output == "json" {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			line := status.State
			if status.ErrorMessage != "" {
				line += ": " + status.ErrorMessage
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	})
	return cmd
}

func newBucketsCommand(opts *Options, global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Manage object store buckets",
		RunE:  subcommandRequired,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bucket names",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.NewObjectStore(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			buckets, err := store.ListBuckets(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(buckets))
			for _, bucket := range buckets {
				names = append(names, bucket.Name)
			}
			if global.output == "json" {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			for _, name := range names {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <bucket>",
		Short: "Create a bucket unless it already exists",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(args[0]) == "" {
				return usagef("bucket name could not be empty")
			}
			store, err := opts.NewObjectStore(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			return store.CreateBucket(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <bucket>",
		Short: "Delete an empty bucket",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.NewObjectStore(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			return store.DeleteBucket(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newUploadCommand(opts *Options, global *globalFlags) *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a local file using its path as the object key",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.NewObjectStore(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			info, err := store.UploadFile(cmd.Context(), bucket, args[0])
			if err != nil {
				return err
			}
			if global.output == "json" {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", info.Key, info.Size)
			return err
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "target bucket (defaults to the configured bucket)")
	return cmd
}

func newDatasetCommand(opts *Options, global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Stage detection datasets in the object store or load them into a local table",
		RunE:  subcommandRequired,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stage <dataset> <detections.json>",
		Short: "Encode a JSON array of detections as parquet and upload it",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readDetections(args[1])
			if err != nil {
				return err
			}

			store, err := opts.NewObjectStore(cmd.Context(), opts.Config, opts.Logger)
			if err != nil {
				return err
			}
			stager := &dataset.Stager{Store: store, Prefix: opts.Config.Dataset.Prefix, Logger: opts.Logger}
			result, err := stager.Stage(cmd.Context(), args[0], rows)
			if err != nil {
				return err
			}
			if global.output == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "staged %d detections to %s\n", result.RecordCount, result.Key)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "load <table> <detections.json>",
		Short: "Insert a JSON array of detections into a duckdb or postgres table",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readDetections(args[1])
			if err != nil {
				return err
			}
			db, err := opts.openLocalDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			loaded, err := sqldb.LoadDetections(cmd.Context(), db, sqlDriver(opts.Config.Query.Backend), args[0], rows)
			if err != nil {
				return err
			}
			if global.output == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"table": args[0], "loaded": loaded})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "loaded %d detections into %s\n", loaded, args[0])
			return err
		},
	})
	return cmd
}

func readDetections(path string) ([]dataset.Detection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return dataset.DecodeDetections(file)
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usagef("expected key=value, got %q", pair)
		}
		values[key] = value
	}
	return values, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
