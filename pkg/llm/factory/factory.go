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

// Package factory builds the ordered provider chain used for SQL
// generation failover.
package factory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/teradata-labs/weft/internal/log"
	"github.com/teradata-labs/weft/pkg/llm"
	"github.com/teradata-labs/weft/pkg/llm/anthropic"
	"github.com/teradata-labs/weft/pkg/llm/bedrock"
	"github.com/teradata-labs/weft/pkg/llm/openai"
)

// Config holds configuration for the provider chain. Providers is the
// failover order; empty entries fall back to whatever credentials are
// present in the environment.
type Config struct {
	// Providers lists provider names in failover order,
	// e.g. ["anthropic", "bedrock", "openai"].
	Providers []string

	// Anthropic configuration.
	AnthropicAPIKey string
	AnthropicModel  string

	// Bedrock configuration.
	BedrockRegion          string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string
	BedrockProfile         string
	BedrockModelID         string

	// OpenAI configuration.
	OpenAIAPIKey string
	OpenAIModel  string
}

// FromEnvironment fills credentials from standard environment variables.
func FromEnvironment() Config {
	cfg := Config{
		AnthropicAPIKey:        os.Getenv("ANTHROPIC_API_KEY"),
		BedrockRegion:          os.Getenv("AWS_DEFAULT_REGION"),
		BedrockAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		BedrockSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		BedrockSessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		BedrockProfile:         os.Getenv("AWS_PROFILE"),
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
	}
	if order := os.Getenv("WEFT_LLM_PROVIDERS"); order != "" {
		for _, name := range strings.Split(order, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Providers = append(cfg.Providers, name)
			}
		}
	}
	return cfg
}

// BuildChain creates providers in failover order. Providers whose
// credentials are missing are skipped with a warning; an empty chain
// is an error.
func BuildChain(ctx context.Context, cfg Config) ([]llm.Provider, error) {
	names := cfg.Providers
	if len(names) == 0 {
		names = defaultOrder(cfg)
	}

	var chain []llm.Provider
	for _, name := range names {
		provider, err := build(ctx, name, cfg)
		if err != nil {
			log.Warn(fmt.Sprintf("skipping provider %s: %v", name, err))
			continue
		}
		chain = append(chain, provider)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable LLM provider: configure at least one of anthropic, bedrock, openai")
	}
	return chain, nil
}

// defaultOrder infers failover order from available credentials.
func defaultOrder(cfg Config) []string {
	var names []string
	if cfg.AnthropicAPIKey != "" {
		names = append(names, "anthropic")
	}
	if cfg.BedrockAccessKeyID != "" || cfg.BedrockProfile != "" || cfg.BedrockRegion != "" {
		names = append(names, "bedrock")
	}
	if cfg.OpenAIAPIKey != "" {
		names = append(names, "openai")
	}
	return names
}

func build(ctx context.Context, name string, cfg Config) (llm.Provider, error) {
	switch strings.ToLower(name) {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		}), nil
	case "bedrock":
		return bedrock.NewClient(ctx, bedrock.Config{
			Region:          cfg.BedrockRegion,
			AccessKeyID:     cfg.BedrockAccessKeyID,
			SecretAccessKey: cfg.BedrockSecretAccessKey,
			SessionToken:    cfg.BedrockSessionToken,
			Profile:         cfg.BedrockProfile,
			ModelID:         cfg.BedrockModelID,
		})
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return openai.NewClient(openai.Config{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
