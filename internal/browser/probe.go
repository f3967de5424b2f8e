package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// ProbeConfig controls the upstream reachability check.
type ProbeConfig struct {
	FormURL   string
	UserAgent string
	Timeout   time.Duration
}

// Prober issues a plain HTTP GET of the booking form before any browser
// session is spent. A down or rate-limiting upstream fails the run fast
// instead of burning the whole window into Unknown.
type Prober struct {
	cfg           ProbeConfig
	baseCollector *colly.Collector
}

// NewProber builds a Prober.
func NewProber(cfg ProbeConfig) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	return &Prober{cfg: cfg, baseCollector: c}
}

// Probe fetches the form URL and reports an error unless the upstream
// answers with a 2xx document.
func (p *Prober) Probe(ctx context.Context) error {
	collector := p.baseCollector.Clone()
	// Bind the HTTP request to the caller's context so cancellation aborts
	// the in-flight fetch instead of letting it run out the request timeout.
	collector.Context = ctx
	collector.SetRequestTimeout(p.cfg.Timeout)

	var (
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(p.cfg.FormURL); err != nil && fetchErr == nil {
			fetchErr = err
		}
		collector.Wait()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("probe canceled: %w", ctx.Err())
	case <-done:
	}

	if fetchErr != nil {
		return fmt.Errorf("probe %s: %w", p.cfg.FormURL, fetchErr)
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return fmt.Errorf("probe %s: unexpected status %d", p.cfg.FormURL, status)
	}
	return nil
}
