package introspection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	r := NewRegistry()
	r.Publish("modules", Func(func() (any, error) {
		return map[string]any{"system": map[string]any{"config_modified": true}}, nil
	}))
	r.Publish("broken", Func(func() (any, error) { return nil, errors.New("boom") }))
	return NewServer("127.0.0.1:0", r)
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServer_Index(t *testing.T) {
	rec, body := get(t, newTestServer(), "/debug/vars")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, []any{"broken", "modules"}, body["paths"])
}

func TestServer_Var(t *testing.T) {
	s := newTestServer()

	rec, body := get(t, s, "/debug/vars/modules")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"config_modified": true}, body["system"])

	rec, body = get(t, s, "/debug/vars/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "variable not found")

	rec, _ = get(t, s, "/debug/vars/broken")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, _ = get(t, s, "/debug/vars/all")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/vars/modules", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-s.Listening():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening")
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
