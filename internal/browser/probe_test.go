package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeHealthyUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "slotwatch-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>booking form</body></html>"))
	}))
	defer srv.Close()

	p := NewProber(ProbeConfig{FormURL: srv.URL, UserAgent: "slotwatch-test", Timeout: 5 * time.Second})
	require.NoError(t, p.Probe(context.Background()))
}

func TestProbeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewProber(ProbeConfig{FormURL: srv.URL, Timeout: 5 * time.Second})
	require.Error(t, p.Probe(context.Background()))
}

func TestProbeUnreachableUpstream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	p := NewProber(ProbeConfig{FormURL: srv.URL, Timeout: 2 * time.Second})
	require.Error(t, p.Probe(context.Background()))
}

func TestProbeCanceledContext(t *testing.T) {
	t.Parallel()

	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := NewProber(ProbeConfig{FormURL: srv.URL, Timeout: 10 * time.Second})
	require.Error(t, p.Probe(ctx))

	// Cancellation must abort the in-flight request, not just the wait.
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream request was not aborted on context cancellation")
	}
}
