package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const openAIDefaultModel = "text-embedding-3-small"

// OpenAI calls the embeddings endpoint of OpenAI or of any server that
// speaks the same API, such as a local bge-m3 deployment.
type OpenAI struct {
	client     openai.Client
	httpClient *http.Client
	model      string
	dimensions int
}

func NewOpenAI(opts Options) *OpenAI {
	if opts.Model == "" {
		opts.Model = openAIDefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: opts.Timeout}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(httpClient),
		// Retries are layered on by WithRetry.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAI{
		client:     openai.NewClient(reqOpts...),
		httpClient: httpClient,
		model:      opts.Model,
		dimensions: opts.Dimensions,
	}
}

func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.model),
	}
	if o.dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return fmt.Errorf("openai embeddings status %d: %s", apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("openai embeddings: %w", err)
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
