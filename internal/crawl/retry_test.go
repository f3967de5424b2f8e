package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryResolvesOnLaterAttempt(t *testing.T) {
	t.Parallel()

	querier := newFakeQuerier(map[Date][]Outcome{
		"10/08/2026": {Ambiguous("slots field present but empty"), Available("2")},
	})
	factory := &fakeSessionFactory{}
	coord := NewRetryCoordinator(factory, querier, NewMetrics(), 4, zap.NewNop())

	out := coord.Resolve(context.Background(), testCategory, []Date{"10/08/2026"}, 3)

	require.Equal(t, Available("2"), out["10/08/2026"])
	require.Equal(t, 2, querier.attempts("10/08/2026"))
	// Every attempt buys a fresh session and closes it.
	require.Equal(t, 2, factory.count())
	for _, s := range factory.sessions {
		require.True(t, s.closed)
	}
}

func TestRetryExhaustedBudgetStaysAmbiguous(t *testing.T) {
	t.Parallel()

	querier := newFakeQuerier(map[Date][]Outcome{
		"10/08/2026": {Ambiguous("timed out waiting for slots or error banner")},
	})
	coord := NewRetryCoordinator(&fakeSessionFactory{}, querier, NewMetrics(), 2, zap.NewNop())

	out := coord.Resolve(context.Background(), testCategory, []Date{"10/08/2026"}, 3)

	require.Equal(t, OutcomeAmbiguous, out["10/08/2026"].Kind)
	require.Equal(t, 3, querier.attempts("10/08/2026"))
}

func TestRetrySessionFailureConsumesAttempts(t *testing.T) {
	t.Parallel()

	factory := &fakeSessionFactory{err: errors.New("browser refused to launch")}
	coord := NewRetryCoordinator(factory, newFakeQuerier(nil), NewMetrics(), 1, zap.NewNop())

	out := coord.Resolve(context.Background(), testCategory, []Date{"10/08/2026"}, 2)

	require.Equal(t, OutcomeAmbiguous, out["10/08/2026"].Kind)
	require.Contains(t, out["10/08/2026"].Reason, "session start")
}

func TestRetryPanicIsContained(t *testing.T) {
	t.Parallel()

	querier := newFakeQuerier(map[Date][]Outcome{
		"10/08/2026": nil,
		"11/08/2026": {SoldOut()},
	})
	querier.panicOn = map[Date]bool{"10/08/2026": true}
	coord := NewRetryCoordinator(&fakeSessionFactory{}, querier, NewMetrics(), 1, zap.NewNop())

	out := coord.Resolve(context.Background(), testCategory, []Date{"10/08/2026", "11/08/2026"}, 2)

	require.Equal(t, OutcomeAmbiguous, out["10/08/2026"].Kind)
	require.Equal(t, SoldOut(), out["11/08/2026"])
}

func TestRetryEmptyInput(t *testing.T) {
	t.Parallel()

	coord := NewRetryCoordinator(&fakeSessionFactory{}, newFakeQuerier(nil), NewMetrics(), 4, zap.NewNop())
	out := coord.Resolve(context.Background(), testCategory, nil, 3)
	require.Empty(t, out)
}
