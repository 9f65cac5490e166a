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

// Package bedrock provides an llm.Provider backed by AWS Bedrock's
// InvokeModel API for Anthropic Claude models.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/teradata-labs/weft/pkg/llm"
)

const (
	// DefaultModelID is the default Bedrock model.
	DefaultModelID = "anthropic.claude-sonnet-4-5-20250929-v1:0"
	// DefaultFallbackModelID is used on retry attempts.
	DefaultFallbackModelID = "anthropic.claude-haiku-4-5-20251001-v1:0"
	// DefaultRegion is the default AWS region.
	DefaultRegion = "us-east-1"
	// DefaultMaxTokens is the default maximum tokens per request.
	DefaultMaxTokens = 4096
	// DefaultTemperature keeps SQL generation near-deterministic.
	DefaultTemperature = 0.2

	// anthropicVersion is required by Bedrock for all Claude models.
	anthropicVersion = "bedrock-2023-05-31"
)

// Config holds configuration for the Bedrock client.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
	ModelID         string
	FallbackModelID string
	MaxTokens       int
	Temperature     float64
}

// Client implements llm.Provider using the AWS Bedrock runtime.
type Client struct {
	client          *bedrockruntime.Client
	modelID         string
	fallbackModelID string
	maxTokens       int
	temperature     float64
}

// NewClient creates a Bedrock client. Credentials resolve in order:
// explicit keys, named profile, then the AWS default chain.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		if envModel := os.Getenv("AWS_BEDROCK_MODEL_ID"); envModel != "" {
			cfg.ModelID = envModel
		} else {
			cfg.ModelID = DefaultModelID
		}
	}
	if cfg.FallbackModelID == "" {
		cfg.FallbackModelID = DefaultFallbackModelID
	}
	if cfg.Region == "" {
		if envRegion := os.Getenv("AWS_DEFAULT_REGION"); envRegion != "" {
			cfg.Region = envRegion
		} else {
			cfg.Region = DefaultRegion
		}
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}

	var awsCfg aws.Config
	var err error
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	case cfg.Profile != "":
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithSharedConfigProfile(cfg.Profile),
		)
	default:
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		client:          bedrockruntime.NewFromConfig(awsCfg),
		modelID:         cfg.ModelID,
		fallbackModelID: cfg.FallbackModelID,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return "bedrock" }

// Model returns the primary model identifier.
func (c *Client) Model() string { return c.modelID }

// FallbackModel returns the fallback model identifier.
func (c *Client) FallbackModel() string { return c.fallbackModelID }

type invokeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []invokeMessage `json:"messages"`
	Temperature      float64         `json:"temperature,omitempty"`
}

type invokeMessage struct {
	Role    string        `json:"role"`
	Content []invokeBlock `json:"content"`
}

type invokeBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type invokeResponse struct {
	Content []invokeBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends one completion request through InvokeModel.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	model := req.Model
	if model == "" {
		model = c.modelID
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	body, err := json.Marshal(&invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		System:           req.System,
		Temperature:      temperature,
		Messages: []invokeMessage{
			{Role: "user", Content: []invokeBlock{{Type: "text", Text: req.Prompt}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	out := &llm.Response{
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.Content += block.Text
		}
	}
	return out, nil
}

// Close releases client resources.
func (c *Client) Close() error { return nil }

// Ensure Client implements the Provider interface.
var _ llm.Provider = (*Client)(nil)
