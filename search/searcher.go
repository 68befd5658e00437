package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/vecbatch/ai"
	"github.com/poiesic/vecbatch/core"
	"github.com/poiesic/vecbatch/storage"
)

// QueryClient embeds queries and reranks candidates.
// *client.Client satisfies it.
type QueryClient interface {
	EmbedText(ctx context.Context, text string) (core.Vector, error)
	Rerank(ctx context.Context, query string, docs []ai.RerankDocument) ([]ai.RerankScore, error)
	HasReranker() bool
}

// Result is the outcome of one search.
type Result struct {
	Query string
	Hits  []core.RerankedResult

	// Candidates is the number of hits the store returned before truncation
	Candidates int

	Reranked  bool
	Fallback  bool
	RerankErr error
}

// Searcher runs k-NN search with optional reranking.
type Searcher struct {
	store  storage.VectorStore
	client QueryClient
	config *Config
	logger *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "search")
		return nil
	}
}

// NewSearcher creates a new searcher. The config is validated once here.
func NewSearcher(store storage.VectorStore, client QueryClient, config *Config, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Rerank && !client.HasReranker() {
		return nil, ErrRerankerRequired
	}

	s := &Searcher{
		store:  store,
		client: client,
		config: config,
		logger: slog.Default().With("component", "search"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Config returns the validated configuration.
func (s *Searcher) Config() Config {
	return *s.config
}

// Search returns up to limit hits for query. A non-positive limit returns
// Config.Size hits.
func (s *Searcher) Search(ctx context.Context, query string, limit int) (*Result, error) {
	return s.SearchWithMonitor(ctx, query, limit, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, limit int, monitor SearchMonitor) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.config.Size
	}

	monitor.Start(query)

	vector, err := s.client.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	monitor.AfterEmbedding(vector)

	hits, err := s.store.KnnSearch(ctx, storage.KnnQuery{
		Index:    s.config.Index,
		Field:    s.config.VectorField,
		Vector:   vector,
		K:        s.config.K,
		Size:     s.config.Size,
		Filter:   s.config.Filter,
		Excludes: []string{"*" + s.config.EmbeddingSuffix},
	})
	if err != nil {
		s.logger.Error("error querying for similar documents", "index", s.config.Index, "err", err)
		return nil, fmt.Errorf("knn search: %w", err)
	}
	monitor.AfterKnn(hits)
	s.logger.Debug("knn search returned", "query", query, "hits", len(hits))

	result := &Result{Query: query, Candidates: len(hits), Hits: storeOrder(hits)}
	if s.config.Rerank && len(hits) > 0 {
		reranked, err := s.rerank(ctx, query, result.Hits)
		if err != nil {
			s.logger.Warn("rerank failed, keeping knn order", "query", query, "err", err)
			result.Fallback = true
			result.RerankErr = err
			monitor.RerankFailed(err)
		} else {
			result.Hits = reranked
			result.Reranked = true
			monitor.AfterRerank(reranked)
		}
	}

	if len(result.Hits) > limit {
		result.Hits = result.Hits[:limit]
	}
	monitor.Finish(result)
	return result, nil
}

func storeOrder(hits []core.SearchResult) []core.RerankedResult {
	out := make([]core.RerankedResult, len(hits))
	for i, hit := range hits {
		if hit.Rank == 0 {
			hit.Rank = i + 1
		}
		out[i] = core.RerankedResult{SearchResult: hit, OriginalRank: i + 1}
	}
	return out
}

// rerank rescores the head of hits and returns it followed by the untouched tail.
func (s *Searcher) rerank(ctx context.Context, query string, hits []core.RerankedResult) ([]core.RerankedResult, error) {
	n := min(s.config.RerankTopK, len(hits))
	docs := make([]ai.RerankDocument, n)
	for i := range n {
		docs[i] = ai.RerankDocument{ID: strconv.Itoa(i), Text: s.candidateText(hits[i].Fields)}
	}

	scores, err := s.client.Rerank(ctx, fmt.Sprintf(s.config.RerankTemplate, query), docs)
	if err != nil {
		return nil, err
	}

	head := slices.Clone(hits[:n])
	for _, score := range scores {
		i, err := strconv.Atoi(score.ID)
		if err != nil || i < 0 || i >= n {
			return nil, fmt.Errorf("unexpected rerank id %q", score.ID)
		}
		head[i].RerankScore = score.Score
		head[i].Reranked = true
	}
	slices.SortStableFunc(head, func(a, b core.RerankedResult) int {
		return cmp.Compare(b.RerankScore, a.RerankScore)
	})
	for i := range head {
		head[i].Rank = i + 1
	}

	out := append(head, hits[n:]...)
	for i := n; i < len(out); i++ {
		out[i].Rank = i + 1
	}
	return out, nil
}

// candidateText renders a document as "key: value" lines with embedding
// fields left out. Keys are sorted so equal documents give equal text.
func (s *Searcher) candidateText(fields map[string]any) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if strings.HasSuffix(k, s.config.EmbeddingSuffix) {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(core.Stringify(fields[k]))
	}
	return b.String()
}
