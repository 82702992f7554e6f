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

// Package httpstore fetches configuration documents (schemas and
// configuration trees) from HTTP(S) URLs and caches them.
//
// Content is only cached after it passed the caller's validation, so a
// refresh that yields an unparsable document keeps serving the last good
// version.
package httpstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// DefaultRetryDelay is the default delay between retry attempts.
const DefaultRetryDelay = time.Second

// MaxContentSize is the maximum allowed content size (10MB).
const MaxContentSize = 10 * 1024 * 1024

// FetchOptions configures HTTP fetching behavior.
type FetchOptions struct {
	// Timeout is the HTTP request timeout.
	// Default: 30s
	Timeout time.Duration

	// Retries is the number of retry attempts on failure. Negative disables
	// retries.
	// Default: 3
	Retries int

	// RetryDelay is the wait time before the first retry. It doubles with
	// every further attempt.
	// Default: 1s
	RetryDelay time.Duration
}

// WithDefaults returns a copy of the options with default values applied.
func (o FetchOptions) WithDefaults() FetchOptions {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retries == 0 {
		o.Retries = DefaultRetries
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// AuthConfig configures HTTP authentication.
type AuthConfig struct {
	// Type is the authentication type: "basic", "bearer", or "header".
	Type string

	Username string
	Password string
	Token    string

	// Headers are added to every request.
	Headers map[string]string
}

// ValidateFunc checks fetched content before it is cached.
type ValidateFunc func(content []byte) error

// Entry is a cached document.
type Entry struct {
	URL       string
	Content   []byte
	Checksum  string
	FetchedAt time.Time
}

// Checksum computes the SHA256 checksum of content.
func Checksum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// IsURL reports whether location is an HTTP(S) URL rather than a file path.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
