package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/volcanotrek/slotwatch/internal/crawl"
)

// Element ids of the upstream JSF booking form. JSF ids carry colons, so all
// DOM access goes through getElementById / escaped query selectors.
const (
	siteSelectID    = "form:visitorAndCategoryDetails_site"
	productSelectID = "form:visitorAndCategoryDetails_product"
	dateInputID     = "form:visitorAndCategoryDetails_dateOfVisit"
	slotsInputID    = "form:visitorAndCategoryDetails_slots"
)

const bannerSelector = `#form\:messages ul li.alert.alert-danger`

// QuerierConfig controls the form interaction sequence.
type QuerierConfig struct {
	FormURL      string
	StepDelay    time.Duration
	QueryTimeout time.Duration
	PollInterval time.Duration
}

// Querier drives one availability query per call against a session's tab.
// It is stateless; all navigation state lives in the session.
type Querier struct {
	cfg QuerierConfig
}

// NewQuerier constructs a Querier.
func NewQuerier(cfg QuerierConfig) *Querier {
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = 300 * time.Millisecond
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Querier{cfg: cfg}
}

// Query performs the select-site, select-product, fill-date sequence and
// waits for one of the two mutually exclusive signals: a populated slots
// field or an error banner. Everything inconclusive, including timeouts and
// navigation failures, classifies as Ambiguous.
func (q *Querier) Query(ctx context.Context, s crawl.Session, cat crawl.Category, date crawl.Date) crawl.Outcome {
	session, ok := s.(*Session)
	if !ok {
		return crawl.Ambiguous("session is not a browser session")
	}

	queryCtx, cancel := context.WithTimeout(session.ctx, q.cfg.QueryTimeout)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var callerCancel context.CancelFunc
		queryCtx, callerCancel = context.WithDeadline(queryCtx, deadline)
		defer callerCancel()
	}

	if err := q.ensureForm(queryCtx); err != nil {
		return q.ambiguous(session, fmt.Sprintf("load form: %v", err))
	}
	if err := q.selectOption(queryCtx, siteSelectID, cat.Site); err != nil {
		return q.ambiguous(session, fmt.Sprintf("select site: %v", err))
	}
	if err := q.selectOption(queryCtx, productSelectID, cat.Product); err != nil {
		return q.ambiguous(session, fmt.Sprintf("select product: %v", err))
	}
	if err := q.commitDate(queryCtx, date); err != nil {
		return q.ambiguous(session, fmt.Sprintf("fill date: %v", err))
	}

	return q.awaitSignal(queryCtx, session)
}

// ensureForm re-navigates when the expected input controls are missing,
// e.g. on a fresh tab or after the upstream expired the view.
func (q *Querier) ensureForm(ctx context.Context) error {
	var present bool
	check := fmt.Sprintf(`document.getElementById(%q) !== null`, siteSelectID)
	if err := chromedp.Run(ctx, chromedp.Evaluate(check, &present)); err != nil {
		return fmt.Errorf("check form presence: %w", err)
	}
	if present {
		return nil
	}
	if err := chromedp.Run(ctx,
		chromedp.Navigate(q.cfg.FormURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate to form: %w", err)
	}
	deadline := time.Now().Add(q.cfg.QueryTimeout / 2)
	for time.Now().Before(deadline) {
		if err := chromedp.Run(ctx, chromedp.Evaluate(check, &present)); err != nil {
			return fmt.Errorf("check form presence: %w", err)
		}
		if present {
			return nil
		}
		if err := chromedp.Run(ctx, chromedp.Sleep(q.cfg.PollInterval)); err != nil {
			return err
		}
	}
	return fmt.Errorf("form controls did not appear")
}

// selectOption picks a select option by its visible label and fires the
// change event so the form's reactive validation runs.
func (q *Querier) selectOption(ctx context.Context, id, label string) error {
	js := fmt.Sprintf(`(function() {
	const el = document.getElementById(%q);
	if (!el) { return false; }
	for (const opt of el.options) {
		if (opt.text.trim() === %q) {
			el.value = opt.value;
			el.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}
	}
	return false;
})()`, id, label)
	var ok bool
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(js, &ok),
		chromedp.Sleep(q.cfg.StepDelay),
	); err != nil {
		return fmt.Errorf("evaluate select: %w", err)
	}
	if !ok {
		return fmt.Errorf("option %q not found in %q", label, id)
	}
	return nil
}

// commitDate fills the date field and fires change+blur, mirroring the
// field-blur/tab commit the form expects before it validates the date.
func (q *Querier) commitDate(ctx context.Context, date crawl.Date) error {
	js := fmt.Sprintf(`(function() {
	const el = document.getElementById(%q);
	if (!el) { return false; }
	el.value = %q;
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.dispatchEvent(new Event('blur', { bubbles: true }));
	return true;
})()`, dateInputID, date.String())
	var ok bool
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(js, &ok),
		chromedp.Sleep(q.cfg.StepDelay),
	); err != nil {
		return fmt.Errorf("evaluate date fill: %w", err)
	}
	if !ok {
		return fmt.Errorf("date input %q not found", dateInputID)
	}
	return nil
}

// awaitSignal polls the form until the slots field populates or an error
// banner appears, whichever comes first within the query budget.
func (q *Querier) awaitSignal(ctx context.Context, session *Session) crawl.Outcome {
	js := fmt.Sprintf(`(function() {
	const out = { slotsPresent: false, slots: "", error: "" };
	const slots = document.getElementById(%q);
	if (slots) {
		out.slotsPresent = true;
		out.slots = slots.value || "";
	}
	const banner = document.querySelector(%q);
	if (banner) { out.error = banner.textContent || ""; }
	return out;
})()`, slotsInputID, bannerSelector)

	var lastProbe formProbe
	for {
		var probe formProbe
		if err := chromedp.Run(ctx, chromedp.Evaluate(js, &probe)); err != nil {
			return q.ambiguous(session, fmt.Sprintf("read form state: %v", err))
		}
		lastProbe = probe
		if outcome, settled := classify(probe); settled {
			if outcome.Kind == crawl.OutcomeAmbiguous {
				return q.withEvidence(session, outcome)
			}
			return outcome
		}

		select {
		case <-ctx.Done():
			if lastProbe.SlotsPresent {
				return q.ambiguous(session, "slots field present but empty")
			}
			return q.ambiguous(session, "timed out waiting for slots or error banner")
		case <-time.After(q.cfg.PollInterval):
		}
	}
}

// ambiguous builds an Ambiguous outcome and attaches the current DOM as
// evidence when it can still be captured.
func (q *Querier) ambiguous(session *Session, reason string) crawl.Outcome {
	return q.withEvidence(session, crawl.Ambiguous(reason))
}

func (q *Querier) withEvidence(session *Session, outcome crawl.Outcome) crawl.Outcome {
	captureCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if html, err := session.HTML(captureCtx); err == nil {
		outcome.Evidence = []byte(html)
	}
	return outcome
}
