// Package athena runs detection queries on Amazon Athena.
package athena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/smithy-go"

	"github.com/clipstats/clipstats/internal/query"
)

var _ query.Client = (*Client)(nil)

type Config struct {
	Region   string
	Endpoint string
}

type api interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

type Client struct {
	api    api
	logger *slog.Logger
}

// New builds a client from the default AWS credential chain.
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
	client := athena.NewFromConfig(awsCfg, func(o *athena.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewWithAPI(client, logger)
}

func NewWithAPI(a api, logger *slog.Logger) (*Client, error) {
	if a == nil {
		return nil, fmt.Errorf("athena api is required")
	}
	return &Client{api: a, logger: logger}, nil
}

func (c *Client) Submit(ctx context.Context, request query.SubmitRequest) (query.Handle, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return "", fmt.Errorf("%w: sql is required", query.ErrInvalidArgument)
	}
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(request.SQL),
	}
	if request.Database != "" {
		input.QueryExecutionContext = &types.QueryExecutionContext{Database: aws.String(request.Database)}
	}
	if request.OutputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{OutputLocation: aws.String(request.OutputLocation)}
	}
	if request.WorkGroup != "" {
		input.WorkGroup = aws.String(request.WorkGroup)
	}

	out, err := c.api.StartQueryExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", describeAPIError(err))
	}
	id := aws.ToString(out.QueryExecutionId)
	if id == "" {
		return "", fmt.Errorf("start query execution: empty execution id")
	}
	if c.logger != nil {
		c.logger.DebugContext(ctx, "athena query started", slog.String("execution_id", id))
	}
	return query.Handle(id), nil
}

func (c *Client) PollStatus(ctx context.Context, handle query.Handle) (query.Status, error) {
	out, err := c.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(string(handle)),
	})
	if err != nil {
		return query.Status{}, fmt.Errorf("get query execution %s: %w", handle, describeAPIError(err))
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return query.Status{}, fmt.Errorf("get query execution %s: missing status", handle)
	}
	status := out.QueryExecution.Status
	state, err := mapState(status.State)
	if err != nil {
		return query.Status{}, fmt.Errorf("get query execution %s: %w", handle, err)
	}
	return query.Status{State: state, Reason: aws.ToString(status.StateChangeReason)}, nil
}

// FetchResults walks every result page. Row 0 is the header row Athena
// returns for SELECT statements.
func (c *Client) FetchResults(ctx context.Context, handle query.Handle) (query.ResultSet, error) {
	start := time.Now()
	paginator := athena.NewGetQueryResultsPaginator(c.api, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(string(handle)),
	})

	var result query.ResultSet
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return query.ResultSet{}, fmt.Errorf("get query results %s: %w", handle, describeAPIError(err))
		}
		if page.ResultSet == nil {
			continue
		}
		if result.Columns == nil && page.ResultSet.ResultSetMetadata != nil {
			for _, column := range page.ResultSet.ResultSetMetadata.ColumnInfo {
				result.Columns = append(result.Columns, aws.ToString(column.Name))
			}
		}
		for _, row := range page.ResultSet.Rows {
			values := make([]string, 0, len(row.Data))
			for _, datum := range row.Data {
				values = append(values, aws.ToString(datum.VarCharValue))
			}
			result.Rows = append(result.Rows, values)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

func mapState(state types.QueryExecutionState) (query.ExecutionState, error) {
	switch state {
	case types.QueryExecutionStateQueued, types.QueryExecutionStateRunning:
		return query.StateRunning, nil
	case types.QueryExecutionStateSucceeded:
		return query.StateSucceeded, nil
	case types.QueryExecutionStateFailed:
		return query.StateFailed, nil
	case types.QueryExecutionStateCancelled:
		return query.StateCancelled, nil
	default:
		return "", fmt.Errorf("unknown execution state %q", state)
	}
}

func describeAPIError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}
