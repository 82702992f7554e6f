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

package httpstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HTTPStore fetches documents and caches the validated ones. It is safe for
// concurrent use.
type HTTPStore struct {
	mu         sync.RWMutex
	cache      map[string]*Entry
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new HTTPStore with the given logger.
func New(logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &HTTPStore{
		cache: make(map[string]*Entry),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "httpstore"),
	}
}

// Fetch returns the content at url. A cached document is returned without a
// request; otherwise the document is fetched, checked with validate (may be
// nil) and cached.
//
// Example:
//
//	store := httpstore.New(logger)
//	data, err := store.Fetch(ctx, "https://cfg.example/running.xml", httpstore.FetchOptions{}, nil,
//	    func(b []byte) error { _, err := configtree.Parse(bytes.NewReader(b)); return err })
func (s *HTTPStore) Fetch(ctx context.Context, url string, opts FetchOptions, auth *AuthConfig, validate ValidateFunc) ([]byte, error) {
	if entry, ok := s.Get(url); ok {
		s.logger.Debug("Returning cached content",
			"url", url,
			"size", len(entry.Content),
			"age", time.Since(entry.FetchedAt).String())
		return entry.Content, nil
	}

	opts = opts.WithDefaults()
	s.logger.Info("Fetching document",
		"url", url,
		"timeout", opts.Timeout.String(),
		"retries", opts.Retries)

	result, err := s.fetchWithRetry(ctx, url, opts, auth)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if err := s.accept(url, result, validate); err != nil {
		return nil, err
	}
	return result.content, nil
}

func (s *HTTPStore) accept(url string, result *fetchResult, validate ValidateFunc) error {
	if validate != nil {
		if err := validate(result.content); err != nil {
			return fmt.Errorf("validate %s: %w", url, err)
		}
	}

	entry := &Entry{
		URL:       url,
		Content:   result.content,
		Checksum:  Checksum(result.content),
		FetchedAt: time.Now(),
	}

	s.mu.Lock()
	s.cache[url] = entry
	s.mu.Unlock()

	s.logger.Info("Cached document",
		"url", url,
		"size", len(entry.Content),
		"checksum", entry.Checksum[:16]+"...")
	return nil
}

// Get returns the cached entry for url.
func (s *HTTPStore) Get(url string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[url]
	return entry, ok
}

// Len returns the number of cached documents.
func (s *HTTPStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
