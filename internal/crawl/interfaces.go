package crawl

import (
	"context"
	"time"
)

// Session is one isolated automation context, equivalent to a single browser
// tab with its own navigation state. A session is owned by exactly one worker
// for its lifetime and must be released on every exit path.
type Session interface {
	// HTML returns the last captured document markup, if any. Used to
	// archive diagnostics for dates that finalize as Unknown.
	HTML(ctx context.Context) (string, error)
	Close()
}

// SessionFactory mints sessions from the shared automation engine.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// Querier drives the booking form for one date inside one session and
// classifies the result.
type Querier interface {
	Query(ctx context.Context, s Session, cat Category, date Date) Outcome
}

// SlotStore is the durable keyed-by-date availability snapshot.
type SlotStore interface {
	Upsert(ctx context.Context, category string, date Date, slots string, now time.Time) error
	// PurgePast removes records dated strictly before today.
	PurgePast(ctx context.Context, category string, today time.Time) error
	// List returns records ascending by date, excluding dates strictly
	// before tomorrow, optionally bounded by an inclusive [from, to] range
	// (zero Date means unbounded).
	List(ctx context.Context, category string, from, to Date, now time.Time) ([]SlotRecord, error)
	Count(ctx context.Context, category string) (int, error)
}

// RunStore is the crawl-run tracker. ErrNotFound is returned by Latest when
// no run exists for a category.
type RunStore interface {
	Create(ctx context.Context, run Run) error
	SetStatus(ctx context.Context, id string, status RunStatus, message string) error
	Latest(ctx context.Context, category string) (Run, error)
}

// Publisher pushes run-completion events for the booking API to consume.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ArtifactStore archives raw DOM snapshots for post-mortem diagnosis.
type ArtifactStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Prober checks upstream reachability before browser sessions are spent.
type Prober interface {
	Probe(ctx context.Context) error
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
