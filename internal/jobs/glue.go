// Package jobs lists and starts AWS Glue jobs that build the clip datasets.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/smithy-go"

	"github.com/clipstats/clipstats/internal/observability"
)

var ErrJobNotFound = errors.New("job not found")

type Config struct {
	Region   string
	Endpoint string
}

type Job struct {
	Name           string
	Description    string
	GlueVersion    string
	LastModifiedOn time.Time
}

type RunStatus struct {
	RunID        string
	State        string
	ErrorMessage string
}

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	switch types.JobRunState(s.State) {
	case types.JobRunStateSucceeded, types.JobRunStateFailed, types.JobRunStateStopped,
		types.JobRunStateTimeout, types.JobRunStateError:
		return true
	default:
		return false
	}
}

type api interface {
	GetJobs(ctx context.Context, params *glue.GetJobsInput, optFns ...func(*glue.Options)) (*glue.GetJobsOutput, error)
	StartJobRun(ctx context.Context, params *glue.StartJobRunInput, optFns ...func(*glue.Options)) (*glue.StartJobRunOutput, error)
	GetJobRun(ctx context.Context, params *glue.GetJobRunInput, optFns ...func(*glue.Options)) (*glue.GetJobRunOutput, error)
}

type Client struct {
	api    api
	logger *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(cfg.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := glue.NewFromConfig(awsCfg, func(o *glue.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewWithAPI(client, logger)
}

func NewWithAPI(a api, logger *slog.Logger) (*Client, error) {
	if a == nil {
		return nil, fmt.Errorf("glue api is required")
	}
	return &Client{api: a, logger: logger}, nil
}

// ListJobs returns every job definition across all result pages.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	paginator := glue.NewGetJobsPaginator(c.api, &glue.GetJobsInput{})
	var jobs []Job
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("get jobs: %w", err)
		}
		for _, job := range page.Jobs {
			jobs = append(jobs, Job{
				Name:           aws.ToString(job.Name),
				Description:    aws.ToString(job.Description),
				GlueVersion:    aws.ToString(job.GlueVersion),
				LastModifiedOn: aws.ToTime(job.LastModifiedOn),
			})
		}
	}
	return jobs, nil
}

func (c *Client) StartJob(ctx context.Context, name string, args map[string]string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("job name is required")
	}
	input := &glue.StartJobRunInput{JobName: aws.String(name)}
	if len(args) > 0 {
		input.Arguments = make(map[string]string, len(args))
		for key, value := range args {
			if !strings.HasPrefix(key, "--") {
				key = "--" + key
			}
			input.Arguments[key] = value
		}
	}

	out, err := c.api.StartJobRun(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start job %q: %w", name, mapAPIErr(err))
	}
	runID := aws.ToString(out.JobRunId)
	observability.IncrementJobRunsStarted(name)
	if c.logger != nil {
		c.logger.InfoContext(ctx, "job run started", slog.String("job", name), slog.String("run_id", runID))
	}
	return runID, nil
}

func (c *Client) JobRunState(ctx context.Context, name, runID string) (RunStatus, error) {
	out, err := c.api.GetJobRun(ctx, &glue.GetJobRunInput{
		JobName: aws.String(name),
		RunId:   aws.String(runID),
	})
	if err != nil {
		return RunStatus{}, fmt.Errorf("get job run %q/%q: %w", name, runID, mapAPIErr(err))
	}
	if out.JobRun == nil {
		return RunStatus{}, fmt.Errorf("get job run %q/%q: missing run", name, runID)
	}
	return RunStatus{
		RunID:        aws.ToString(out.JobRun.Id),
		State:        string(out.JobRun.JobRunState),
		ErrorMessage: aws.ToString(out.JobRun.ErrorMessage),
	}, nil
}

func mapAPIErr(err error) error {
	var notFound *types.EntityNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, aws.ToString(notFound.Message))
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}
