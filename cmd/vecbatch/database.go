package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/vecbatch"
	"github.com/poiesic/vecbatch/ai"
	"github.com/poiesic/vecbatch/client"
	"github.com/poiesic/vecbatch/retry"
	"github.com/poiesic/vecbatch/storage/opensearch"
	"github.com/urfave/cli/v2"
)

const (
	storeBadger     = "badger"
	storeOpenSearch = "opensearch"
)

// connectionFlags select the vector store and the AI provider. They are
// global so every command shares them.
func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "Vector store: badger or opensearch",
			Value:   storeBadger,
			EnvVars: []string{"VECBATCH_STORE"},
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory (documents for badger, checkpoints for opensearch)",
			EnvVars: []string{"VECBATCH_DB"},
		},
		&cli.StringFlag{
			Name:    "opensearch-endpoint",
			Usage:   "OpenSearch endpoint URL",
			EnvVars: []string{"OPENSEARCH_ENDPOINT"},
		},
		&cli.StringFlag{
			Name:    "opensearch-service",
			Usage:   "SigV4 signing service: es, aoss, none, or empty to detect from the endpoint",
			EnvVars: []string{"OPENSEARCH_SERVICE"},
		},
		&cli.StringFlag{
			Name:    "opensearch-user",
			Usage:   "Basic auth user for OpenSearch",
			EnvVars: []string{"OPENSEARCH_USER"},
		},
		&cli.StringFlag{
			Name:    "opensearch-password",
			Usage:   "Basic auth password for OpenSearch",
			EnvVars: []string{"OPENSEARCH_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:    "compress",
			Usage:   "Gzip OpenSearch request bodies",
			EnvVars: []string{"OPENSEARCH_COMPRESS"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region",
			Value:   "us-east-1",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Usage:   "AWS profile to use",
			EnvVars: []string{"AWS_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "provider",
			Usage:   "AI provider: openai or bedrock",
			Value:   ai.ProviderOpenAI,
			EnvVars: []string{"VECBATCH_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   "http://localhost:11434/v1",
			EnvVars: []string{"EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name (provider default when empty)",
			EnvVars: []string{"EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "rerank-host",
			Usage:   "Rerank service host URL (defaults to embedding-host)",
			EnvVars: []string{"RERANK_HOST"},
		},
		&cli.StringFlag{
			Name:    "rerank-model",
			Usage:   "Rerank model name",
			EnvVars: []string{"RERANK_MODEL"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for OpenAI-compatible services",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
		&cli.IntFlag{
			Name:    "dimension",
			Usage:   "Requested embedding dimension (model default when 0)",
			EnvVars: []string{"EMBEDDING_DIMENSION"},
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Maximum model requests in flight",
			Value: client.DefaultConcurrency,
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "Maximum model requests per second (0 for unlimited)",
		},
		&cli.DurationFlag{
			Name:  "request-timeout",
			Usage: "Timeout for a single model request",
			Value: client.DefaultRequestTimeout,
		},
		&cli.IntFlag{
			Name:  "request-batch-size",
			Usage: "Texts sent per embedding request",
			Value: client.DefaultRequestBatchSize,
		},
		&cli.IntFlag{
			Name:  "request-attempts",
			Usage: "Attempts per model request before the batch retry takes over",
			Value: client.DefaultMaxAttempts,
		},
		&cli.StringFlag{
			Name:    "retry-strategy",
			Usage:   "Backoff between attempts: none, immediate, fixed, exponential or jittered",
			Value:   string(retry.StrategyExponential),
			EnvVars: []string{"VECBATCH_RETRY_STRATEGY"},
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay between model request attempts (fixed and exponential strategies)",
			Value: time.Second,
		},
		&cli.BoolFlag{
			Name:  "no-adaptive",
			Usage: "Keep model request concurrency fixed when the provider throttles",
		},
	}
}

func retryStrategy(c *cli.Context) (retry.Strategy, error) {
	return retry.ParseStrategy(c.String("retry-strategy"))
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	var cfg *ai.Config
	switch strings.ToLower(c.String("provider")) {
	case ai.ProviderBedrock:
		cfg = ai.DefaultBedrockConfig()
		cfg.Region = c.String("region")
		cfg.Profile = c.String("profile")
	default:
		cfg = ai.DefaultConfig()
		cfg.Provider = c.String("provider")
		cfg.EmbeddingHost = c.String("embedding-host")
		cfg.RerankHost = c.String("rerank-host")
		cfg.RerankModel = c.String("rerank-model")
		if key := c.String("api-key"); key != "" {
			cfg.APIKey = key
		}
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.EmbeddingModel = model
	}
	if model := c.String("rerank-model"); model != "" {
		cfg.RerankModel = model
	}
	cfg.Dimension = c.Int("dimension")
	return cfg
}

func openSearchConfigFromFlags(c *cli.Context) (opensearch.Config, error) {
	endpoint := c.String("opensearch-endpoint")
	if endpoint == "" {
		return opensearch.Config{}, fmt.Errorf("--opensearch-endpoint is required for the opensearch store")
	}
	service := strings.ToLower(c.String("opensearch-service"))
	switch service {
	case "":
		service = opensearch.SigningServiceFor(endpoint)
	case "none":
		service = ""
	}
	return opensearch.Config{
		Endpoint:       endpoint,
		SigningService: service,
		Region:         c.String("region"),
		Profile:        c.String("profile"),
		Username:       c.String("opensearch-user"),
		Password:       c.String("opensearch-password"),
		Compress:       c.Bool("compress"),
		Timeout:        opensearch.DefaultTimeout,
	}, nil
}

// openDatabase builds the store and client selected by the global flags.
func openDatabase(c *cli.Context) (*vecbatch.Database, error) {
	strategy, err := retryStrategy(c)
	if err != nil {
		return nil, err
	}
	policy := retry.NewPolicy(strategy, c.Int("request-attempts"), c.Duration("retry-delay"))
	opts := []vecbatch.DatabaseOption{
		vecbatch.WithAIConfig(aiConfigFromFlags(c)),
		vecbatch.WithDatabaseLogger(slog.Default()),
		vecbatch.WithClientOptions(
			client.WithConcurrency(c.Int("concurrency")),
			client.WithRateLimit(c.Float64("rate-limit")),
			client.WithRequestTimeout(c.Duration("request-timeout")),
			client.WithMaxAttempts(policy.MaxAttempts),
			client.WithBackoff(policy.Backoff),
			client.WithAdaptive(!c.Bool("no-adaptive")),
			client.WithRequestBatchSize(c.Int("request-batch-size")),
		),
	}

	switch store := strings.ToLower(c.String("store")); store {
	case storeBadger:
		if c.String("db") == "" {
			return nil, fmt.Errorf("--db is required for the badger store")
		}
	case storeOpenSearch:
		cfg, err := openSearchConfigFromFlags(c)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vecbatch.WithOpenSearch(cfg))
	default:
		return nil, fmt.Errorf("unknown store %q: must be badger or opensearch", store)
	}

	db, err := vecbatch.NewDatabase(c.Context, c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// splitList splits comma separated flag values and drops empty entries.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func seconds(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
