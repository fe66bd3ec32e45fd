package embedding

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"golang.org/x/time/rate"
)

const (
	// DefaultOpenAIModel is the hosted model used when none is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimensions keeps hosted vectors as small as all-minilm's.
	DefaultOpenAIDimensions = 384

	// DefaultOpenAIRate is the default request rate (requests per second).
	DefaultOpenAIRate = 20.0
)

// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
var ErrNoEmbeddingInResponse = errors.New("embedding: no embedding in response")

// OpenAIProvider generates embeddings with the OpenAI embeddings API.
// Requests are throttled by a token-bucket limiter and never retried.
type OpenAIProvider struct {
	sdk        openaisdk.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
	reqOpts    []option.RequestOption
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIModel sets the embedding model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOpenAIDimensions sets the requested vector dimensions.
func WithOpenAIDimensions(dims int) OpenAIOption {
	return func(p *OpenAIProvider) {
		if dims > 0 {
			p.dimensions = dims
		}
	}
}

// WithRateLimit caps requests per second. Non-positive values keep the default.
func WithRateLimit(perSecond float64) OpenAIOption {
	return func(p *OpenAIProvider) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithOpenAIBaseURL points the client at a different endpoint (for testing).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.reqOpts = append(p.reqOpts, option.WithBaseURL(url))
	}
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		model:      DefaultOpenAIModel,
		dimensions: DefaultOpenAIDimensions,
		limiter:    rate.NewLimiter(rate.Limit(DefaultOpenAIRate), 1),
	}
	for _, opt := range opts {
		opt(p)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, p.reqOpts...)
	p.sdk = openaisdk.NewClient(reqOpts...)

	return p
}

// Embed generates an embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	input, err := prepareInput(text)
	if err != nil {
		return Embedding{}, err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return Embedding{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := p.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:      openaisdk.EmbeddingModel(p.model),
		Dimensions: param.NewOpt(int64(p.dimensions)),
	})
	if err != nil {
		return Embedding{}, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return Embedding{}, ErrNoEmbeddingInResponse
	}

	raw := resp.Data[0].Embedding
	if len(raw) != p.dimensions {
		return Embedding{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(raw), p.dimensions)
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}

	return Embedding{Vector: vec}, nil
}

// ModelName returns the name of the embedding model.
func (p *OpenAIProvider) ModelName() string {
	return p.model
}

// Dimensions returns the requested vector dimensions.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}
