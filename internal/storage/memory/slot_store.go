// Package memory provides in-memory store implementations for tests and
// local development. They mirror the Postgres semantics exactly.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/volcanotrek/slotwatch/internal/crawl"
)

type slotKey struct {
	category string
	date     crawl.Date
}

// SlotStore is a mutex-guarded snapshot store.
type SlotStore struct {
	mu      sync.RWMutex
	records map[slotKey]crawl.SlotRecord
}

// NewSlotStore constructs an empty SlotStore.
func NewSlotStore() *SlotStore {
	return &SlotStore{records: make(map[slotKey]crawl.SlotRecord)}
}

// Upsert writes the latest availability for one date.
func (s *SlotStore) Upsert(_ context.Context, category string, date crawl.Date, slots string, now time.Time) error {
	if _, err := date.Time(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[slotKey{category: category, date: date}] = crawl.SlotRecord{
		Date:      date,
		Slots:     slots,
		UpdatedAt: now,
	}
	return nil
}

// PurgePast removes records dated strictly before today.
func (s *SlotStore) PurgePast(_ context.Context, category string, today time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.records {
		if key.category == category && key.date.Before(today) {
			delete(s.records, key)
		}
	}
	return nil
}

// List returns records ascending by date, excluding dates strictly before
// tomorrow, optionally bounded by an inclusive [from, to] range.
func (s *SlotStore) List(_ context.Context, category string, from, to crawl.Date, now time.Time) ([]crawl.SlotRecord, error) {
	tomorrow := now.AddDate(0, 0, 1)

	var fromDay, toDay time.Time
	if from != "" {
		day, err := from.Time()
		if err != nil {
			return nil, err
		}
		fromDay = day
	}
	if to != "" {
		day, err := to.Time()
		if err != nil {
			return nil, err
		}
		toDay = day
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []crawl.SlotRecord
	for key, rec := range s.records {
		if key.category != category {
			continue
		}
		day, err := key.date.Time()
		if err != nil {
			continue
		}
		if key.date.Before(tomorrow) {
			continue
		}
		if !fromDay.IsZero() && day.Before(fromDay) {
			continue
		}
		if !toDay.IsZero() && day.After(toDay) {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		a, _ := records[i].Date.Time()
		b, _ := records[j].Date.Time()
		return a.Before(b)
	})
	return records, nil
}

// Count returns the number of records held for a category.
func (s *SlotStore) Count(_ context.Context, category string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.records {
		if key.category == category {
			n++
		}
	}
	return n, nil
}
