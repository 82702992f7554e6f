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
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"
)

// fetchResult is the outcome of a single successful request.
type fetchResult struct {
	content []byte
}

// fetchWithRetry performs a GET with exponential backoff between attempts.
func (s *HTTPStore) fetchWithRetry(ctx context.Context, url string, opts FetchOptions, auth *AuthConfig) (*fetchResult, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			// Cap the exponent to prevent overflow (max 32x).
			exp := min(attempt-1, 5)
			delay := opts.RetryDelay * time.Duration(1<<exp)
			s.logger.Debug("Retrying HTTP fetch",
				"url", url,
				"attempt", attempt+1,
				"delay", delay.String())

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := s.doFetch(ctx, url, opts, auth)
		if err == nil {
			return result, nil
		}

		lastErr = err
		s.logger.Debug("HTTP fetch attempt failed",
			"url", url,
			"attempt", attempt+1,
			"error", err)
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", opts.Retries+1, lastErr)
}

func (s *HTTPStore) doFetch(ctx context.Context, url string, opts FetchOptions, auth *AuthConfig) (*fetchResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if auth != nil {
		addAuthHeaders(req, auth)
	}
	req.Header.Set("User-Agent", "transapictl/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if len(body) > MaxContentSize {
			return nil, fmt.Errorf("response body exceeds maximum size of %d bytes", MaxContentSize)
		}
		return &fetchResult{content: body}, nil

	case http.StatusUnauthorized:
		return nil, fmt.Errorf("authentication failed (401 Unauthorized)")

	case http.StatusForbidden:
		return nil, fmt.Errorf("access denied (403 Forbidden)")

	case http.StatusNotFound:
		return nil, fmt.Errorf("resource not found (404 Not Found)")

	default:
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("server error: %s", resp.Status)
		}
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
}

func addAuthHeaders(req *http.Request, auth *AuthConfig) {
	switch auth.Type {
	case "basic":
		if auth.Username != "" || auth.Password != "" {
			credentials := base64.StdEncoding.EncodeToString(
				[]byte(auth.Username + ":" + auth.Password))
			req.Header.Set("Authorization", "Basic "+credentials)
		}
	case "bearer":
		if auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+auth.Token)
		}
	}

	for key, value := range auth.Headers {
		req.Header.Set(key, value)
	}
}
