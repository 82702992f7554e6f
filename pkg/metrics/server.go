// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a registry on /metrics and answers /healthz.
type Server struct {
	addr   string
	server *http.Server
	logger *slog.Logger

	mu       sync.Mutex
	boundTo  net.Addr
	listened chan struct{}
}

// NewServer creates a metrics server for registry. addr may use port 0, the
// bound address is available from Addr once Start is listening.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	server := metrics.NewServer(":9090", registry)
//	g.Go(func() error { return server.Start(ctx) })
func NewServer(addr string, registry prometheus.Gatherer) *Server {
	s := &Server{
		addr:     addr,
		logger:   slog.New(slog.DiscardHandler).With("component", "metrics-server"),
		listened: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// WithLogger sets a custom logger for the server.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger.With("component", "metrics-server")
	return s
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully within 10 seconds.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.boundTo = ln.Addr()
	s.mu.Unlock()
	close(s.listened)

	s.logger.Info("Starting metrics server", "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Metrics server shutting down", "reason", ctx.Err())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil

	case err, ok := <-serveErr:
		if !ok {
			return nil
		}
		s.logger.Error("Metrics server error", "error", err)
		return fmt.Errorf("metrics server: %w", err)
	}
}

// Listening returns a channel closed once Start has bound its listener.
func (s *Server) Listening() <-chan struct{} {
	return s.listened
}

// Addr returns the bound address after Start is listening, and the
// configured address before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundTo != nil {
		return s.boundTo.String()
	}
	return s.addr
}
