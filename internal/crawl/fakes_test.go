package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type fakeSession struct {
	id     int
	closed bool
	mu     sync.Mutex
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	return "<html>stub</html>", nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

type fakeSessionFactory struct {
	mu       sync.Mutex
	created  int
	err      error
	sessions []*fakeSession
}

func (f *fakeSessionFactory) NewSession(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	s := &fakeSession{id: f.created}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeSessionFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// fakeQuerier replays a scripted sequence of outcomes per date; the last
// entry repeats once the script is exhausted.
type fakeQuerier struct {
	mu       sync.Mutex
	script   map[Date][]Outcome
	calls    map[Date]int
	sessions map[Date][]Session
	delay    time.Duration
	panicOn  map[Date]bool
}

func newFakeQuerier(script map[Date][]Outcome) *fakeQuerier {
	return &fakeQuerier{
		script:   script,
		calls:    make(map[Date]int),
		sessions: make(map[Date][]Session),
	}
}

func (q *fakeQuerier) Query(_ context.Context, s Session, _ Category, date Date) Outcome {
	q.mu.Lock()
	attempt := q.calls[date]
	q.calls[date]++
	q.sessions[date] = append(q.sessions[date], s)
	seq := q.script[date]
	panics := q.panicOn != nil && q.panicOn[date]
	q.mu.Unlock()

	if q.delay > 0 {
		time.Sleep(q.delay)
	}
	if panics {
		panic(fmt.Sprintf("driver blew up on %s", date))
	}
	if len(seq) == 0 {
		return Ambiguous("no script for date")
	}
	if attempt >= len(seq) {
		attempt = len(seq) - 1
	}
	return seq[attempt]
}

func (q *fakeQuerier) attempts(date Date) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[date]
}

type upsertCall struct {
	category string
	date     Date
	slots    string
	at       time.Time
}

type fakeSlotStore struct {
	mu      sync.Mutex
	records map[Date]SlotRecord
	upserts []upsertCall
	purged  []time.Time
	err     error
}

func newFakeSlotStore() *fakeSlotStore {
	return &fakeSlotStore{records: make(map[Date]SlotRecord)}
}

func (s *fakeSlotStore) Upsert(_ context.Context, category string, date Date, slots string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[date] = SlotRecord{Date: date, Slots: slots, UpdatedAt: now}
	s.upserts = append(s.upserts, upsertCall{category: category, date: date, slots: slots, at: now})
	return nil
}

func (s *fakeSlotStore) PurgePast(_ context.Context, _ string, today time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = append(s.purged, today)
	for date := range s.records {
		if date.Before(today) {
			delete(s.records, date)
		}
	}
	return nil
}

func (s *fakeSlotStore) List(_ context.Context, _ string, _, _ Date, _ time.Time) ([]SlotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SlotRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeSlotStore) Count(_ context.Context, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *fakeSlotStore) record(date Date) (SlotRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[date]
	return rec, ok
}

func (s *fakeSlotStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeRunStore struct {
	mu     sync.Mutex
	runs   map[string]Run
	traces map[string][]RunStatus
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs:   make(map[string]Run),
		traces: make(map[string][]RunStatus),
	}
}

func (s *fakeRunStore) Create(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.traces[run.ID] = append(s.traces[run.ID], run.Status)
	return nil
}

func (s *fakeRunStore) SetStatus(_ context.Context, id string, status RunStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	run.Status = status
	run.Message = message
	s.runs[id] = run
	s.traces[id] = append(s.traces[id], status)
	return nil
}

func (s *fakeRunStore) Latest(_ context.Context, category string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.Category == category {
			return run, nil
		}
	}
	return Run{}, errors.New("run not found")
}

func (s *fakeRunStore) get(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

func (s *fakeRunStore) trace(id string) []RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunStatus, len(s.traces[id]))
	copy(out, s.traces[id])
	return out
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []any
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("msg-%d", len(p.topics)), nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

type fakeArtifacts struct {
	mu    sync.Mutex
	paths []string
}

func (a *fakeArtifacts) Put(_ context.Context, path string, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return "mem://" + path, nil
}

type fakeProber struct {
	err   error
	calls int
}

func (p *fakeProber) Probe(context.Context) error {
	p.calls++
	return p.err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeIDGen struct {
	next int
	err  error
}

func (g *fakeIDGen) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.next++
	return fmt.Sprintf("run-%d", g.next), nil
}
