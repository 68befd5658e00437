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

package vecbatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/vecbatch/ai"
	"github.com/poiesic/vecbatch/ai/bedrock"
	"github.com/poiesic/vecbatch/ai/openai"
	"github.com/poiesic/vecbatch/client"
	"github.com/poiesic/vecbatch/evaluate"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/search"
	"github.com/poiesic/vecbatch/source"
	"github.com/poiesic/vecbatch/storage"
	"github.com/poiesic/vecbatch/storage/badger"
	"github.com/poiesic/vecbatch/storage/opensearch"
)

// Database bundles a vector store, an optional checkpoint repository and the
// bounded API client in front of the AI provider.
type Database struct {
	backend        *badger.Backend
	store          storage.VectorStore
	checkpointRepo storage.CheckpointRepository
	client         *client.Client
	base           *slog.Logger
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig      *ai.Config
	provider      ai.Provider
	opensearch    *opensearch.Config
	inMemory      bool
	clientOptions []client.Option
	logger        *slog.Logger
}

// WithAIConfig selects and configures the AI provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses an already constructed provider instead of building one
// from the AI config.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithOpenSearch stores documents in an OpenSearch cluster. The database path
// then only holds checkpoints and may be empty.
func WithOpenSearch(config opensearch.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.opensearch = &config
	}
}

// WithInMemory keeps the badger database in memory.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithClientOptions tunes the API client.
func WithClientOptions(opts ...client.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.clientOptions = append(o.clientOptions, opts...)
	}
}

// WithDatabaseLogger sets the logger handed to every component.
func WithDatabaseLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the configured store and AI client.
//
// With the default badger store filePath is the database directory. With
// WithOpenSearch it is an optional directory for checkpoints.
func NewDatabase(ctx context.Context, filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	db := &Database{base: options.logger, logger: options.logger.With("component", "database")}

	// Open backend
	if filePath != "" || options.inMemory {
		backend, err := badger.OpenBackend(filePath, options.inMemory)
		if err != nil {
			return nil, err
		}
		db.backend = backend
		db.checkpointRepo = badger.NewCheckpointRepository(backend)
	}

	// Create vector store
	if options.opensearch != nil {
		store, err := opensearch.New(ctx, *options.opensearch)
		if err != nil {
			db.Close()
			return nil, err
		}
		db.store = store
	} else {
		if db.backend == nil {
			return nil, errors.New("database path is required for the badger store")
		}
		db.store = badger.NewStore(db.backend)
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		var err error
		provider, err = NewProvider(ctx, options.aiConfig)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	clientOpts := append([]client.Option{client.WithLogger(options.logger)}, options.clientOptions...)
	c, err := client.New(provider, clientOpts...)
	if err != nil {
		provider.Close()
		db.Close()
		return nil, err
	}
	db.client = c
	return db, nil
}

// NewProvider builds the provider named by config.Provider.
func NewProvider(ctx context.Context, config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	switch config.Provider {
	case ai.ProviderBedrock:
		return bedrock.NewProvider(ctx, config)
	default:
		return openai.NewProvider(config)
	}
}

func (db *Database) Close() error {
	var errs []error
	// Close AI client first
	if db.client != nil {
		if err := db.client.Close(); err != nil {
			db.logger.Error("error closing AI client", "err", err)
			errs = append(errs, err)
		}
	}
	if db.store != nil {
		if err := db.store.Close(); err != nil {
			db.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}

	// Close backend
	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (db *Database) Store() storage.VectorStore {
	return db.store
}

// CheckpointRepository returns nil when no database path was given.
func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpointRepo
}

func (db *Database) Client() *client.Client {
	return db.client
}

// EmbeddingDimension embeds a sample text and returns the vector length the
// configured model produces.
func (db *Database) EmbeddingDimension(ctx context.Context) (int, error) {
	vec, err := db.client.EmbedText(ctx, "dimension check")
	if err != nil {
		return 0, fmt.Errorf("detecting embedding dimension: %w", err)
	}
	return len(vec), nil
}

func (db *Database) NewIngestionPipeline(src source.Source, config *ingestion.Config, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.base)}, opts...)
	return ingestion.NewPipeline(db.store, db.client, src, config, opts...)
}

// NewExporter creates an exporter that vectorizes src with the database's
// client without touching the store.
func (db *Database) NewExporter(src source.Source, config *ingestion.Config, opts ...ingestion.Option) (*ingestion.Exporter, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.base)}, opts...)
	return ingestion.NewExporter(db.client, src, config, opts...)
}

func (db *Database) NewSearcher(config *search.Config, opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(db.base)}, opts...)
	return search.NewSearcher(db.store, db.client, config, opts...)
}

// NewEvaluator creates an evaluation engine over a searcher built from searchConfig.
// The searcher's Size is raised to the evaluation window when it is smaller;
// searchConfig itself is left unchanged.
func (db *Database) NewEvaluator(searchConfig *search.Config, config *evaluate.Config, opts ...evaluate.Option) (*evaluate.Engine, error) {
	if searchConfig == nil || config == nil {
		return nil, fmt.Errorf("%w: search and evaluation configs are required", evaluate.ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	sc := *searchConfig
	if sc.Size < config.Limit {
		sc.Size = config.Limit
		if sc.K != 0 && sc.K < sc.Size {
			sc.K = sc.Size
		}
	}
	searcher, err := db.NewSearcher(&sc)
	if err != nil {
		return nil, err
	}
	opts = append([]evaluate.Option{evaluate.WithLogger(db.base)}, opts...)
	return evaluate.NewEngine(searcher, config, opts...)
}
