package bedrock

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/vecbatch/ai"
)

// InputType tells Cohere models how the embedded text will be used.
type InputType string

const (
	InputSearchDocument InputType = "search_document"
	InputSearchQuery    InputType = "search_query"
)

// ModelAdapter translates between texts and a model's InvokeModel payloads.
// Some models accept many texts per request; others take exactly one.
type ModelAdapter interface {
	// SupportedDimensions lists the output sizes the model can produce.
	SupportedDimensions() []int

	// FormatInput returns one request body per InvokeModel call.
	FormatInput(texts []string, inputType InputType, dimension int) ([][]byte, error)

	// ParseOutput decodes one response body into vectors and the input token count
	// the model reported (zero when it does not report one).
	ParseOutput(body []byte) ([][]float32, int64, error)
}

// ValidateDimension checks that a model adapter can produce vectors of size dim.
func ValidateDimension(adapter ModelAdapter, dim int) error {
	if !slices.Contains(adapter.SupportedDimensions(), dim) {
		return fmt.Errorf("%w: %d (supported: %v)", ai.ErrUnsupportedDimension, dim, adapter.SupportedDimensions())
	}
	return nil
}

// AdapterFor selects the adapter for a Bedrock embedding model id.
func AdapterFor(modelID string) (ModelAdapter, error) {
	switch {
	case strings.Contains(modelID, "titan-embed"):
		return TitanAdapter{}, nil
	case strings.Contains(modelID, "cohere.embed"):
		return CohereAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding model %q", ai.ErrPermanent, modelID)
	}
}

// TitanAdapter handles Amazon Titan text embedding models.
// Titan embeds a single text per request.
type TitanAdapter struct{}

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int64     `json:"inputTextTokenCount"`
}

func (TitanAdapter) SupportedDimensions() []int { return []int{1024} }

func (TitanAdapter) FormatInput(texts []string, _ InputType, _ int) ([][]byte, error) {
	bodies := make([][]byte, len(texts))
	for i, text := range texts {
		b, err := json.Marshal(titanRequest{InputText: text})
		if err != nil {
			return nil, err
		}
		bodies[i] = b
	}
	return bodies, nil
}

func (TitanAdapter) ParseOutput(body []byte) ([][]float32, int64, error) {
	var resp titanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("%w: titan response: %w", ai.ErrEmptyResponse, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, 0, fmt.Errorf("%w: titan response has no embedding", ai.ErrEmptyResponse)
	}
	return [][]float32{resp.Embedding}, resp.InputTextTokenCount, nil
}

// CohereAdapter handles Cohere embedding models, which accept a batch of texts.
type CohereAdapter struct{}

type cohereRequest struct {
	InputType       InputType `json:"input_type"`
	Texts           []string  `json:"texts"`
	EmbeddingTypes  []string  `json:"embedding_types"`
	OutputDimension int       `json:"output_dimension"`
	Truncate        string    `json:"truncate"`
}

type cohereResponse struct {
	Embeddings json.RawMessage `json:"embeddings"`
}

func (CohereAdapter) SupportedDimensions() []int { return []int{256, 512, 1024, 1536} }

func (CohereAdapter) FormatInput(texts []string, inputType InputType, dimension int) ([][]byte, error) {
	b, err := json.Marshal(cohereRequest{
		InputType:       inputType,
		Texts:           texts,
		EmbeddingTypes:  []string{"float"},
		OutputDimension: dimension,
		Truncate:        "NONE",
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{b}, nil
}

// ParseOutput accepts both {"embeddings": [[...]]} and {"embeddings": {"float": [[...]]}}.
func (CohereAdapter) ParseOutput(body []byte) ([][]float32, int64, error) {
	var resp cohereResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("%w: cohere response: %w", ai.ErrEmptyResponse, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, 0, fmt.Errorf("%w: cohere response has no embeddings", ai.ErrEmptyResponse)
	}

	var vectors [][]float32
	if resp.Embeddings[0] == '{' {
		var typed map[string][][]float32
		if err := json.Unmarshal(resp.Embeddings, &typed); err != nil {
			return nil, 0, fmt.Errorf("%w: cohere embeddings: %w", ai.ErrEmptyResponse, err)
		}
		vectors = typed["float"]
	} else if err := json.Unmarshal(resp.Embeddings, &vectors); err != nil {
		return nil, 0, fmt.Errorf("%w: cohere embeddings: %w", ai.ErrEmptyResponse, err)
	}
	if len(vectors) == 0 {
		return nil, 0, fmt.Errorf("%w: cohere response has no float embeddings", ai.ErrEmptyResponse)
	}
	return vectors, 0, nil
}
