package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool fans a planned date window out across a fixed set of workers. Each
// worker owns one long-lived session for its entire lifetime; session startup
// is the expensive part, so reusing it across dates is the core performance
// lever. Sessions are never shared between workers.
type Pool struct {
	sessions    SessionFactory
	querier     Querier
	metrics     *Metrics
	concurrency int
	logger      *zap.Logger
}

// NewPool constructs a Pool. Concurrency is clamped to at least one worker.
func NewPool(sessions SessionFactory, querier Querier, metrics *Metrics, concurrency int, logger *zap.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sessions:    sessions,
		querier:     querier,
		metrics:     metrics,
		concurrency: concurrency,
		logger:      logger,
	}
}

type dateOutcome struct {
	date    Date
	outcome Outcome
}

// Run queries every date once and returns the resolved outcomes plus the
// dates that came back ambiguous and need the retry coordinator. The primary
// queue is a closed channel; workers terminate when it drains. A failure
// inside one worker never aborts its siblings: the date surfaces as
// Ambiguous and flows to the retry queue.
func (p *Pool) Run(ctx context.Context, cat Category, dates []Date) (map[Date]Outcome, []Date) {
	queue := make(chan Date, len(dates))
	// Enqueue in round-robin striped order so a mid-run upstream
	// degradation spreads across the whole window.
	for _, part := range Stripe(dates, p.concurrency) {
		for _, d := range part {
			queue <- d
		}
	}
	close(queue)

	results := make(chan dateOutcome, len(dates))
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.runWorker(ctx, worker, cat, queue, results)
		}(i)
	}
	wg.Wait()
	close(results)

	resolved := make(map[Date]Outcome, len(dates))
	var ambiguous []Date
	for r := range results {
		if r.outcome.Kind == OutcomeAmbiguous {
			ambiguous = append(ambiguous, r.date)
			continue
		}
		resolved[r.date] = r.outcome
	}
	return resolved, ambiguous
}

func (p *Pool) runWorker(ctx context.Context, worker int, cat Category, queue <-chan Date, results chan<- dateOutcome) {
	logger := p.logger.With(zap.Int("worker", worker), zap.String("category", cat.Slug))

	session, err := p.sessions.NewSession(ctx)
	if err != nil {
		logger.Error("session start failed, draining queue as ambiguous", zap.Error(err))
		for date := range queue {
			results <- dateOutcome{date: date, outcome: Ambiguous(fmt.Sprintf("session start: %v", err))}
		}
		return
	}
	defer session.Close()

	for date := range queue {
		if ctx.Err() != nil {
			results <- dateOutcome{date: date, outcome: Ambiguous("run canceled")}
			continue
		}
		outcome := p.queryOne(ctx, session, cat, date)
		p.metrics.ObserveQuery(outcome)
		if outcome.Kind == OutcomeAmbiguous {
			logger.Debug("ambiguous outcome", zap.String("date", date.String()), zap.String("reason", outcome.Reason))
		}
		results <- dateOutcome{date: date, outcome: outcome}
	}
}

// queryOne isolates a single date query so a panicking automation driver
// costs one date, not the worker.
func (p *Pool) queryOne(ctx context.Context, session Session, cat Category, date Date) (outcome Outcome) {
	start := time.Now()
	defer func() {
		p.metrics.ObserveQueryDuration(time.Since(start))
		if r := recover(); r != nil {
			p.logger.Error("query panicked", zap.String("date", date.String()), zap.Any("panic", r))
			outcome = Ambiguous(fmt.Sprintf("panic: %v", r))
		}
	}()
	return p.querier.Query(ctx, session, cat, date)
}
