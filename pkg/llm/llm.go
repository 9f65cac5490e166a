// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm defines the provider abstraction for text-completion
// endpoints. Each provider carries a primary and a fallback model; the
// SQL generator owns retry and failover policy, so providers report
// errors raw and never retry internally.
package llm

import (
	"context"
	"strings"
)

// Request is a single completion request.
type Request struct {
	// System is the system prompt (schema, dialect, output contract).
	System string
	// Prompt is the user turn.
	Prompt string
	// Model overrides the provider's primary model when non-empty.
	Model string
	// MaxTokens bounds the response length; zero uses the provider default.
	MaxTokens int
	// Temperature of sampling; zero uses the provider default.
	Temperature float64
}

// Response is the model's reply.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Provider is a configured remote completion endpoint.
type Provider interface {
	// Name identifies the provider ("anthropic", "bedrock", "openai").
	Name() string
	// Model is the primary model identifier.
	Model() string
	// FallbackModel is tried on retry attempts after the primary fails.
	FallbackModel() string
	// Complete sends one completion request.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Close releases underlying clients.
	Close() error
}

var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"rate_limit",
	"ratelimit",
	"quota",
	"throttl",
	"too many requests",
}

// IsRateLimited reports whether err indicates a rate-limit or quota
// rejection. The generator abandons a provider on these instead of
// burning its remaining attempts.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
