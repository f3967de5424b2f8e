package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorePutAndGet(t *testing.T) {
	t.Parallel()

	s := New()

	uri, err := s.Put(context.Background(), "unknown/gorilla/run-1/02-09-2026.html", "text/html; charset=utf-8", []byte("<html/>"))
	require.NoError(t, err)
	require.Equal(t, "mem://unknown/gorilla/run-1/02-09-2026.html", uri)

	data, ok := s.Get("unknown/gorilla/run-1/02-09-2026.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html/>"), data)
	require.Equal(t, 1, s.Len())

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestStoreCopiesData(t *testing.T) {
	t.Parallel()

	s := New()
	buf := []byte("original")
	_, err := s.Put(context.Background(), "a", "text/plain", buf)
	require.NoError(t, err)

	buf[0] = 'X'
	data, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("original"), data)
}
