package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/poiesic/vecbatch/ai"
)

// Reranker implements ai.Reranker with a Cohere rerank model on Bedrock.
type Reranker struct {
	client  modelInvoker
	modelID string
	logger  *slog.Logger
}

type rerankRequest struct {
	Query      string   `json:"query"`
	Documents  []string `json:"documents"`
	TopN       int      `json:"top_n"`
	APIVersion int      `json:"api_version"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func newReranker(client modelInvoker, modelID string) *Reranker {
	return &Reranker{
		client:  client,
		modelID: modelID,
		logger:  slog.Default().With("component", "bedrock-reranker", "model", modelID),
	}
}

// Rerank scores every document against query.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []ai.RerankDocument) ([]ai.RerankScore, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	req := rerankRequest{
		Query:      query,
		Documents:  make([]string, len(docs)),
		TopN:       len(docs),
		APIVersion: 2,
	}
	for i, d := range docs {
		req.Documents[i] = d.Text
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	out, err := r.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(r.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classifyError(err)
	}

	var resp rerankResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("%w: rerank response: %w", ai.ErrEmptyResponse, err)
	}
	if len(resp.Results) == 0 {
		return nil, ai.ErrEmptyResponse
	}

	scores := make([]ai.RerankScore, 0, len(resp.Results))
	for _, res := range resp.Results {
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
