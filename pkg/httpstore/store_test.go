package httpstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions() FetchOptions {
	return FetchOptions{Timeout: time.Second, Retries: 2, RetryDelay: time.Millisecond}
}

func TestFetch_CachesContent(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("<a xmlns=\"urn:x\"/>"))
	}))
	defer server.Close()

	store := New(testLogger())
	data, err := store.Fetch(context.Background(), server.URL, fastOptions(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "<a xmlns=\"urn:x\"/>", string(data))

	data, err = store.Fetch(context.Background(), server.URL, fastOptions(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "<a xmlns=\"urn:x\"/>", string(data))
	assert.Equal(t, int32(1), requests.Load())

	entry, ok := store.Get(server.URL)
	require.True(t, ok)
	assert.Equal(t, Checksum(data), entry.Checksum)
}

func TestFetch_ValidationFailureIsNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not a tree"))
	}))
	defer server.Close()

	store := New(testLogger())
	_, err := store.Fetch(context.Background(), server.URL, fastOptions(), nil, func([]byte) error {
		return errors.New("parse error")
	})
	assert.ErrorContains(t, err, "parse error")
	assert.Equal(t, 0, store.Len())
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	data, err := New(testLogger()).Fetch(context.Background(), server.URL, fastOptions(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), requests.Load())
}

func TestFetch_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, "401"},
		{http.StatusForbidden, "403"},
		{http.StatusNotFound, "404"},
		{http.StatusInternalServerError, "server error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := New(testLogger()).Fetch(context.Background(), server.URL,
				FetchOptions{Timeout: time.Second, Retries: -1}, nil, nil)
			assert.ErrorContains(t, err, tt.want)
			assert.ErrorContains(t, err, "all 1 attempts failed")
		})
	}
}

func TestFetch_AuthHeaders(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization") + "|" + r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	store := New(testLogger())
	_, err := store.Fetch(context.Background(), server.URL, fastOptions(),
		&AuthConfig{Type: "bearer", Token: "secret", Headers: map[string]string{"X-Api-Key": "k"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret|k", got.Load())
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://cfg.example/running.xml"))
	assert.True(t, IsURL("http://localhost:8080/a.yaml"))
	assert.False(t, IsURL("running.xml"))
	assert.False(t, IsURL("/etc/transapi/running.xml"))
}

func TestFetchOptions_WithDefaults(t *testing.T) {
	opts := FetchOptions{}.WithDefaults()
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, DefaultRetries, opts.Retries)
	assert.Equal(t, DefaultRetryDelay, opts.RetryDelay)

	assert.Equal(t, 0, FetchOptions{Retries: -1}.WithDefaults().Retries)
}
