// Copyright 2025 Poiesic Systems
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

package bedrock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/poiesic/vecbatch/ai"
)

// Provider implements ai.Provider using Amazon Bedrock models.
type Provider struct {
	embedder *Embedder
	reranker *Reranker
	logger   *slog.Logger
}

// NewProvider loads AWS configuration for config.Region and config.Profile
// and creates the Bedrock services. The SDK retryer is disabled; retries are
// the bounded client's job.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if config.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(config.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return newProvider(bedrockruntime.NewFromConfig(awsCfg), config)
}

func newProvider(client modelInvoker, config *ai.Config) (*Provider, error) {
	embedder, err := newEmbedder(client, config)
	if err != nil {
		return nil, err
	}
	p := &Provider{
		embedder: embedder,
		logger:   slog.Default().With("component", "bedrock-provider"),
	}
	if config.RerankModel != "" {
		p.reranker = newReranker(client, config.RerankModel)
	}
	return p, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Reranker returns the rerank service, or nil when no rerank model is configured.
func (p *Provider) Reranker() ai.Reranker {
	if p.reranker == nil {
		return nil
	}
	return p.reranker
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing Bedrock provider")
	return nil
}
