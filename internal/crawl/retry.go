package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetryCoordinator re-dispatches ambiguous dates in fresh sessions. A
// worker's stale session may be stuck in a corrupted DOM state, so every
// attempt here pays for a new one.
type RetryCoordinator struct {
	sessions    SessionFactory
	querier     Querier
	metrics     *Metrics
	concurrency int
	logger      *zap.Logger
}

// NewRetryCoordinator constructs a RetryCoordinator.
func NewRetryCoordinator(sessions SessionFactory, querier Querier, metrics *Metrics, concurrency int, logger *zap.Logger) *RetryCoordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryCoordinator{
		sessions:    sessions,
		querier:     querier,
		metrics:     metrics,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Resolve retries each ambiguous date up to maxAttempts times. Dates still
// ambiguous after the budget come back with an Ambiguous outcome; the runner
// persists them as Unknown rather than dropping them, so consumers can tell
// "checked and don't know" from "never checked".
func (c *RetryCoordinator) Resolve(ctx context.Context, cat Category, dates []Date, maxAttempts int) map[Date]Outcome {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	out := make(map[Date]Outcome, len(dates))
	if len(dates) == 0 {
		return out
	}

	queue := make(chan Date, len(dates))
	for _, d := range dates {
		queue <- d
	}
	close(queue)

	results := make(chan dateOutcome, len(dates))
	workers := c.concurrency
	if workers > len(dates) {
		workers = len(dates)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for date := range queue {
				results <- dateOutcome{date: date, outcome: c.resolveOne(ctx, cat, date, maxAttempts)}
			}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		out[r.date] = r.outcome
	}
	return out
}

func (c *RetryCoordinator) resolveOne(ctx context.Context, cat Category, date Date, maxAttempts int) Outcome {
	outcome := Ambiguous("retry budget exhausted")
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Ambiguous("run canceled")
		}
		c.metrics.IncRetry()
		outcome = c.attempt(ctx, cat, date)
		c.metrics.ObserveQuery(outcome)
		if outcome.Kind != OutcomeAmbiguous {
			return outcome
		}
		c.logger.Debug("retry still ambiguous",
			zap.String("date", date.String()),
			zap.Int("attempt", attempt),
			zap.String("reason", outcome.Reason),
		)
	}
	return outcome
}

func (c *RetryCoordinator) attempt(ctx context.Context, cat Category, date Date) (outcome Outcome) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveQueryDuration(time.Since(start))
		if r := recover(); r != nil {
			outcome = Ambiguous(fmt.Sprintf("panic: %v", r))
		}
	}()
	session, err := c.sessions.NewSession(ctx)
	if err != nil {
		return Ambiguous(fmt.Sprintf("session start: %v", err))
	}
	defer session.Close()
	return c.querier.Query(ctx, session, cat, date)
}
