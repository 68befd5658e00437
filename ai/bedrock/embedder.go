package bedrock

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/poiesic/vecbatch/ai"
)

// modelInvoker is the subset of the Bedrock runtime client used here.
type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Embedder implements ai.Embedder with Bedrock embedding models.
// Requests for one call run sequentially; the caller owns concurrency.
type Embedder struct {
	client    modelInvoker
	modelID   string
	adapter   ModelAdapter
	dimension int
	inputType InputType
	tokens    atomic.Int64
	logger    *slog.Logger
}

func newEmbedder(client modelInvoker, config *ai.Config) (*Embedder, error) {
	adapter, err := AdapterFor(config.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	dim := config.Dimension
	if dim == 0 {
		dim = 1024
	}
	if err := ValidateDimension(adapter, dim); err != nil {
		return nil, err
	}
	return &Embedder{
		client:    client,
		modelID:   config.EmbeddingModel,
		adapter:   adapter,
		dimension: dim,
		inputType: InputSearchDocument,
		logger:    slog.Default().With("component", "bedrock-embedder", "model", config.EmbeddingModel),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	bodies, err := e.adapter.FormatInput(texts, e.inputType, e.dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: formatting input: %w", ai.ErrPermanent, err)
	}

	vectors := make([][]float32, 0, len(texts))
	for _, body := range bodies {
		out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(e.modelID),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			err = classifyError(err)
			e.logger.Debug("invoke model failed", "err", err)
			return nil, err
		}
		batch, tokens, err := e.adapter.ParseOutput(out.Body)
		if err != nil {
			return nil, err
		}
		e.tokens.Add(tokens)
		vectors = append(vectors, batch...)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ai.ErrEmptyResponse, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("%w: text %d has %d values, want %d", ai.ErrDimensionMismatch, i, len(v), e.dimension)
		}
	}
	return vectors, nil
}

// TokensUsed returns the input tokens reported by the model so far.
func (e *Embedder) TokensUsed() int64 {
	return e.tokens.Load()
}
