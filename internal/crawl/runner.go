package crawl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RunnerConfig controls crawl run behavior.
type RunnerConfig struct {
	StartOffsetDays int
	WindowDays      int
	Concurrency     int
	RetryAttempts   int
	RunTimeout      time.Duration
	Topic           string
	ArchiveUnknown  bool
	ArtifactPrefix  string
}

// Runner orchestrates one crawl per trigger: probe, purge, plan, fan out,
// retry, flush, track. It is the only writer of Run records.
type Runner struct {
	slots     SlotStore
	runs      RunStore
	sessions  SessionFactory
	querier   Querier
	prober    Prober
	publisher Publisher
	artifacts ArtifactStore
	clock     Clock
	idGen     IDGenerator
	metrics   *Metrics
	cfg       RunnerConfig
	logger    *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	slots SlotStore,
	runs RunStore,
	sessions SessionFactory,
	querier Querier,
	prober Prober,
	publisher Publisher,
	artifacts ArtifactStore,
	clock Clock,
	idGen IDGenerator,
	metrics *Metrics,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	return &Runner{
		slots:     slots,
		runs:      runs,
		sessions:  sessions,
		querier:   querier,
		prober:    prober,
		publisher: publisher,
		artifacts: artifacts,
		clock:     clock,
		idGen:     idGen,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// Trigger records a queued run and starts the crawl out-of-band. It returns
// the run ID immediately.
func (r *Runner) Trigger(ctx context.Context, cat Category) (string, error) {
	runID, err := r.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	run := Run{
		ID:        runID,
		Category:  cat.Slug,
		Status:    RunQueued,
		Message:   fmt.Sprintf("%s crawl queued", cat.Slug),
		StartedAt: r.clock.Now(),
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return "", fmt.Errorf("create run record: %w", err)
	}
	go r.execute(cat, runID)
	return runID, nil
}

// execute drives one run to a terminal status. A run is never left in
// running state: panics and timeouts both land on failed.
func (r *Runner) execute(cat Category, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.RunTimeout)
	defer cancel()

	logger := r.logger.With(zap.String("run_id", runID), zap.String("category", cat.Slug))
	started := r.clock.Now()

	summary, err := r.crawlSafely(ctx, cat, runID, logger)

	status := RunSuccess
	message := summary
	if err != nil {
		status = RunFailed
		message = err.Error()
		logger.Error("crawl run failed", zap.Error(err))
	} else {
		logger.Info("crawl run finished", zap.String("summary", summary))
	}
	r.metrics.ObserveRun(status)

	finishCtx, finishCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finishCancel()
	if err := r.runs.SetStatus(finishCtx, runID, status, message); err != nil {
		logger.Error("finish run record failed", zap.Error(err))
	}
	r.publishCompletion(finishCtx, cat, runID, status, message, r.clock.Now().Sub(started))
}

func (r *Runner) crawlSafely(ctx context.Context, cat Category, runID string, logger *zap.Logger) (summary string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("crawl panicked: %v", p)
		}
	}()
	return r.crawl(ctx, cat, runID, logger)
}

func (r *Runner) crawl(ctx context.Context, cat Category, runID string, logger *zap.Logger) (string, error) {
	if err := r.runs.SetStatus(ctx, runID, RunRunning, fmt.Sprintf("crawling %s slots", cat.Slug)); err != nil {
		return "", fmt.Errorf("mark run running: %w", err)
	}

	if r.prober != nil {
		if err := r.prober.Probe(ctx); err != nil {
			return "", fmt.Errorf("upstream unreachable: %w", err)
		}
	}

	today := r.clock.Now()
	if err := r.slots.PurgePast(ctx, cat.Slug, today); err != nil {
		return "", fmt.Errorf("purge past dates: %w", err)
	}

	dates := Plan(today, r.cfg.StartOffsetDays, r.cfg.WindowDays)
	logger.Info("window planned",
		zap.Int("dates", len(dates)),
		zap.String("first", first(dates)),
		zap.String("last", last(dates)),
	)

	pool := NewPool(r.sessions, r.querier, r.metrics, r.cfg.Concurrency, logger)
	resolved, ambiguous := pool.Run(ctx, cat, dates)

	if len(ambiguous) > 0 {
		logger.Info("retrying ambiguous dates", zap.Int("count", len(ambiguous)))
		retry := NewRetryCoordinator(r.sessions, r.querier, r.metrics, r.cfg.Concurrency, logger)
		for date, outcome := range retry.Resolve(ctx, cat, ambiguous, r.cfg.RetryAttempts) {
			resolved[date] = outcome
		}
	}

	flushed, counts, flushErr := r.flush(ctx, cat, runID, resolved, today)

	if n, err := r.slots.Count(ctx, cat.Slug); err == nil {
		r.metrics.SetSnapshotSize(cat.Slug, n)
	}

	if flushErr != nil {
		return "", fmt.Errorf("flush snapshot (%d written): %w", flushed, flushErr)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("run exceeded wall clock budget: %w", err)
	}

	return fmt.Sprintf("checked %d dates: %d available, %d sold out, %d unknown",
		len(dates), counts.available, counts.soldOut, counts.unknown), nil
}

type outcomeCounts struct {
	available int
	soldOut   int
	unknown   int
}

// flush writes all accumulated outcomes in one pass. It keeps going on
// per-date errors and reports the first one, so a partial flush still lands
// whatever it can.
func (r *Runner) flush(ctx context.Context, cat Category, runID string, resolved map[Date]Outcome, today time.Time) (int, outcomeCounts, error) {
	now := r.clock.Now()
	var counts outcomeCounts
	var firstErr error
	flushed := 0
	for date, outcome := range resolved {
		if date.Before(today) {
			continue
		}
		switch outcome.Kind {
		case OutcomeAvailable:
			counts.available++
		case OutcomeSoldOut:
			counts.soldOut++
		default:
			counts.unknown++
			r.archiveEvidence(ctx, cat, runID, date, outcome)
		}
		if err := r.slots.Upsert(ctx, cat.Slug, date, SlotValue(outcome), now); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("upsert %s: %w", date, err)
			}
			continue
		}
		flushed++
	}
	return flushed, counts, firstErr
}

// archiveEvidence stores the last captured DOM for a date that finalized as
// Unknown, when an artifact store is configured.
func (r *Runner) archiveEvidence(ctx context.Context, cat Category, runID string, date Date, outcome Outcome) {
	if !r.cfg.ArchiveUnknown || r.artifacts == nil || len(outcome.Evidence) == 0 {
		return
	}
	prefix := strings.Trim(r.cfg.ArtifactPrefix, "/")
	if prefix == "" {
		prefix = "unknown"
	}
	path := fmt.Sprintf("%s/%s/%s/%s.html", prefix, cat.Slug, runID, strings.ReplaceAll(date.String(), "/", "-"))
	if _, err := r.artifacts.Put(ctx, path, "text/html; charset=utf-8", outcome.Evidence); err != nil {
		r.logger.Warn("archive evidence failed", zap.String("date", date.String()), zap.Error(err))
	}
}

func (r *Runner) publishCompletion(ctx context.Context, cat Category, runID string, status RunStatus, message string, elapsed time.Duration) {
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"category":    cat.Slug,
		"run_id":      runID,
		"status":      string(status),
		"message":     message,
		"duration_ms": elapsed.Milliseconds(),
		"finished_at": r.clock.Now().Format(time.RFC3339),
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.Topic, payload); err != nil {
		r.logger.Warn("publish run completion failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func first(dates []Date) string {
	if len(dates) == 0 {
		return ""
	}
	return dates[0].String()
}

func last(dates []Date) string {
	if len(dates) == 0 {
		return ""
	}
	return dates[len(dates)-1].String()
}
