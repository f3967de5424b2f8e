package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/volcanotrek/slotwatch/internal/crawl"
)

func TestSlotStoreUpsertIsIdempotentOnKey(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	ctx := context.Background()
	first := time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(2 * time.Hour)

	require.NoError(t, store.Upsert(ctx, "gorilla", "10/09/2026", "5", first))
	require.NoError(t, store.Upsert(ctx, "gorilla", "10/09/2026", "Sold Out", second))

	n, err := store.Count(ctx, "gorilla")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	records, err := store.List(ctx, "gorilla", "", "", first)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Sold Out", records[0].Slots)
	require.Equal(t, second, records[0].UpdatedAt)
}

func TestSlotStoreUpsertRejectsMalformedDate(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	err := store.Upsert(context.Background(), "gorilla", "2026-09-10", "5", time.Now())
	require.Error(t, err)
}

func TestSlotStoreCategoriesAreIsolated(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	ctx := context.Background()
	now := time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, "gorilla", "10/09/2026", "5", now))
	require.NoError(t, store.Upsert(ctx, "golden-monkey", "10/09/2026", "30", now))

	records, err := store.List(ctx, "gorilla", "", "", now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "5", records[0].Slots)
}

func TestSlotStorePurgePast(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	ctx := context.Background()
	now := time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, "gorilla", "08/09/2026", "5", now))
	require.NoError(t, store.Upsert(ctx, "gorilla", "09/09/2026", "5", now))
	require.NoError(t, store.Upsert(ctx, "gorilla", "10/09/2026", "5", now))
	require.NoError(t, store.Upsert(ctx, "gorilla", "11/09/2026", "5", now))
	require.NoError(t, store.Upsert(ctx, "golden-monkey", "08/09/2026", "7", now))

	require.NoError(t, store.PurgePast(ctx, "gorilla", now))

	n, err := store.Count(ctx, "gorilla")
	require.NoError(t, err)
	require.Equal(t, 2, n, "today and tomorrow survive the purge")

	n, err = store.Count(ctx, "golden-monkey")
	require.NoError(t, err)
	require.Equal(t, 1, n, "purge is scoped to one category")
}

func TestSlotStoreListExcludesTodayAndEarlier(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	ctx := context.Background()
	now := time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, "gorilla", "09/09/2026", "1", now))
	require.NoError(t, store.Upsert(ctx, "gorilla", "10/09/2026", "2", now))
	require.NoError(t, store.Upsert(ctx, "gorilla", "11/09/2026", "3", now))

	records, err := store.List(ctx, "gorilla", "", "", now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, crawl.Date("11/09/2026"), records[0].Date)
}

func TestSlotStoreListSortsAcrossMonths(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	ctx := context.Background()
	now := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	// Lexicographic order on DD/MM/YYYY strings would put 01/10 first.
	require.NoError(t, store.Upsert(ctx, "gorilla", "01/10/2026", "1", now))
	require.NoError(t, store.Upsert(ctx, "gorilla", "25/09/2026", "2", now))
	require.NoError(t, store.Upsert(ctx, "gorilla", "03/09/2026", "3", now))

	records, err := store.List(ctx, "gorilla", "", "", now)
	require.NoError(t, err)
	require.Equal(t, []crawl.Date{"03/09/2026", "25/09/2026", "01/10/2026"},
		[]crawl.Date{records[0].Date, records[1].Date, records[2].Date})
}

func TestSlotStoreListInclusiveRange(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	ctx := context.Background()
	now := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	for _, d := range []crawl.Date{"10/09/2026", "11/09/2026", "12/09/2026", "13/09/2026"} {
		require.NoError(t, store.Upsert(ctx, "gorilla", d, "1", now))
	}

	records, err := store.List(ctx, "gorilla", "11/09/2026", "12/09/2026", now)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, crawl.Date("11/09/2026"), records[0].Date)
	require.Equal(t, crawl.Date("12/09/2026"), records[1].Date)
}

func TestSlotStoreListMalformedBound(t *testing.T) {
	t.Parallel()

	store := NewSlotStore()
	_, err := store.List(context.Background(), "gorilla", "nope", "", time.Now())
	require.Error(t, err)
}
