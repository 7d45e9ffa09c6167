package imagejob

import (
	"context"
	"log/slog"
	"time"

	"github.com/psdglot/psdglot/internal/log"
)

const (
	// StatusSucceeded and StatusFailed are the only terminal output states.
	// Any other value, or an empty outputs list, counts as still pending.
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 10
)

// StatusFetcher queries a job's polling endpoint once.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, pollURL, op string) (*StatusResponse, error)
}

// Poller drives an asynchronous job to a terminal state with bounded
// attempts and a fixed inter-poll delay.
type Poller struct {
	fetcher  StatusFetcher
	interval time.Duration
	attempts int
	logger   *slog.Logger
}

// NewPoller creates a Poller. Non-positive interval or attempts fall back to
// the defaults.
func NewPoller(fetcher StatusFetcher, interval time.Duration, attempts int) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		attempts: attempts,
		logger:   log.WithComponent("poller"),
	}
}

// Await polls pollURL until the job succeeds, fails, or the attempt budget
// is spent. op labels the operation ("manifest", "edit") for error
// attribution. Exactly attempts queries are issued in the pending case; a
// transport failure aborts without consuming further attempts.
func (p *Poller) Await(ctx context.Context, pollURL, op string) (*StatusResponse, error) {
	start := time.Now()

	for attempt := 1; attempt <= p.attempts; attempt++ {
		status, err := p.fetcher.FetchStatus(ctx, pollURL, op)
		if err != nil {
			return nil, err
		}

		if len(status.Outputs) > 0 {
			out := status.Outputs[0]
			switch out.Status {
			case StatusSucceeded:
				p.logger.Debug("job succeeded", "op", op, "attempt", attempt)
				return status, nil
			case StatusFailed:
				return nil, &FailedError{Op: op, Errors: out.Errors}
			}
		}

		p.logger.Debug("job pending", "op", op, "attempt", attempt, "max_attempts", p.attempts)

		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}

	return nil, &TimeoutError{Op: op, Attempts: p.attempts, Elapsed: time.Since(start)}
}
