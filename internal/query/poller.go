package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipstats/clipstats/internal/observability"
)

const (
	DefaultRetryLimit = 100
	DefaultPollDelay  = 2 * time.Second
)

type StatusPoller interface {
	PollStatus(ctx context.Context, handle Handle) (Status, error)
}

// Poller waits for a submitted query to reach a terminal state. It polls at
// most RetryLimit+1 times with a constant Delay between polls. A zero
// RetryLimit polls once and a zero Delay does not sleep; use NewPoller for
// the default budget.
type Poller struct {
	Client     StatusPoller
	RetryLimit int
	Delay      time.Duration
	Logger     *slog.Logger
	Clock      func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a Poller with DefaultRetryLimit and DefaultPollDelay.
func NewPoller(client StatusPoller) *Poller {
	return &Poller{
		Client:     client,
		RetryLimit: DefaultRetryLimit,
		Delay:      DefaultPollDelay,
	}
}

func (p *Poller) ensureDefaults() {
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
}

// Await returns the first terminal status observed for handle, or a
// StateTimeout status once the retry budget is spent.
func (p *Poller) Await(ctx context.Context, handle Handle) (Status, error) {
	p.ensureDefaults()
	if p.Client == nil {
		return Status{}, fmt.Errorf("status client is required")
	}
	if p.RetryLimit < 0 {
		return Status{}, fmt.Errorf("%w: retry limit must be >= 0, got %d", ErrInvalidArgument, p.RetryLimit)
	}
	if p.Delay < 0 {
		return Status{}, fmt.Errorf("%w: poll delay must be >= 0, got %s", ErrInvalidArgument, p.Delay)
	}

	start := p.Clock()
	for retries := 0; retries <= p.RetryLimit; retries++ {
		status, err := p.Client.PollStatus(ctx, handle)
		if err != nil {
			return Status{}, fmt.Errorf("poll status of %s: %w", handle, err)
		}
		observability.ObservePollAttempt()
		if status.State.Terminal() {
			observability.ObserveExecutionFinished(string(status.State), p.Clock().Sub(start))
			if p.Logger != nil {
				p.Logger.DebugContext(ctx, "query execution finished",
					slog.String("execution_id", string(handle)),
					slog.String("state", string(status.State)),
					slog.Int("polls", retries+1),
				)
			}
			return status, nil
		}
		if retries == p.RetryLimit {
			break
		}
		if err := p.Sleep(ctx, p.Delay); err != nil {
			return Status{}, err
		}
	}

	observability.ObserveExecutionFinished(string(StateTimeout), p.Clock().Sub(start))
	if p.Logger != nil {
		p.Logger.WarnContext(ctx, "query execution timed out",
			slog.String("execution_id", string(handle)),
			slog.Int("retry_limit", p.RetryLimit),
			slog.String("poll_delay", p.Delay.String()),
		)
	}
	return Status{State: StateTimeout, Reason: fmt.Sprintf("still running after %d polls", p.RetryLimit+1)}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
