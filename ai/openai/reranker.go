package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/poiesic/vecbatch/ai"
)

// Reranker implements ai.Reranker against a /rerank endpoint in the
// request shape shared by Jina, Cohere-compatible and TEI-style servers.
type Reranker struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func newReranker(config *ai.Config, client *http.Client) *Reranker {
	if client == nil {
		client = &http.Client{}
	}
	return &Reranker{
		endpoint: strings.TrimRight(config.RerankHost, "/") + "/rerank",
		model:    config.RerankModel,
		apiKey:   config.APIKey,
		client:   client,
		logger:   slog.Default().With("component", "openai-reranker"),
	}
}

// NewReranker creates a reranker for the configured RerankHost.
func NewReranker(config *ai.Config) (ai.Reranker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RerankHost == "" {
		return nil, ai.ErrNoReranker
	}
	return newReranker(config, nil), nil
}

// Rerank scores every document against query.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []ai.RerankDocument) ([]ai.RerankScore, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	req := rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: make([]string, len(docs)),
		TopN:      len(docs),
	}
	for i, d := range docs {
		req.Documents[i] = d.Text
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" && r.apiKey != "none" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		// Transport failures are retryable
		return nil, fmt.Errorf("%w: %w", ai.ErrTransient, err)
	}
	defer resp.Body.Close()

	if class := ai.ClassifyStatus(resp.StatusCode); class != nil {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", class, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ai.ErrTransient, err)
	}
	if len(decoded.Results) == 0 {
		return nil, ai.ErrEmptyResponse
	}

	scores := make([]ai.RerankScore, 0, len(decoded.Results))
	for _, res := range decoded.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			return nil, fmt.Errorf("%w: result index %d out of range", ai.ErrPermanent, res.Index)
		}
		scores = append(scores, ai.RerankScore{ID: docs[res.Index].ID, Score: res.RelevanceScore})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	r.logger.Debug("reranked documents", "count", len(scores))
	return scores, nil
}
