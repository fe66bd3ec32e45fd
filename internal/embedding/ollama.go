package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the Ollama build of sentence-transformers all-MiniLM-L6-v2.
	DefaultModel = "all-minilm:l6-v2"

	// DefaultDimensions is the output size of all-MiniLM-L6-v2.
	DefaultDimensions = 384

	// DefaultTimeout bounds a single HTTP request, including a whole batch.
	DefaultTimeout = 60 * time.Second

	apiPathTags  = "/api/tags"
	apiPathEmbed = "/api/embed"

	// maxErrorBody caps how much of an error response is quoted back.
	maxErrorBody = 4096
)

// OllamaProvider embeds text with a local Ollama server through /api/embed,
// sending several texts per request when asked for a batch.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		p.model = model
	}
}

// WithDimensions sets the expected vector dimensions.
func WithDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) {
		p.dimensions = dims
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		p.client.Timeout = timeout
	}
}

// NewOllamaProvider creates an Ollama provider.
// Empty or zero option values keep the defaults.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{client: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(p)
	}
	if p.baseURL == "" {
		p.baseURL = DefaultOllamaURL
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.dimensions <= 0 {
		p.dimensions = DefaultDimensions
	}
	return p
}

// Embed generates an embedding for one text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	embs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return embs[0], nil
}

// EmbedBatch embeds texts in a single request, returning vectors in input order.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	inputs, err := prepareInputs(texts)
	if err != nil {
		return nil, err
	}

	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: p.model, Input: inputs, Truncate: true}
	if err := p.call(ctx, http.MethodPost, apiPathEmbed, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(inputs))
	}

	embs := make([]Embedding, len(resp.Embeddings))
	for i, vec := range resp.Embeddings {
		if len(vec) != p.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), p.dimensions)
		}
		embs[i] = Embedding{Vector: vec}
	}
	return embs, nil
}

// ModelName returns the name of the embedding model.
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// Dimensions returns the expected vector dimensions.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable checks if Ollama is running and accessible.
func (p *OllamaProvider) IsAvailable(ctx context.Context) error {
	var tags ollamaTagsResponse
	if err := p.call(ctx, http.MethodGet, apiPathTags, nil, &tags); err != nil {
		return fmt.Errorf("ollama is not running: %w", err)
	}
	return nil
}

// HasModel checks if the configured model has been pulled.
// A model configured without a tag matches its ":latest" build.
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	var tags ollamaTagsResponse
	if err := p.call(ctx, http.MethodGet, apiPathTags, nil, &tags); err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == p.model || m.Name == p.model+":latest" {
			return true, nil
		}
	}
	return false, nil
}

// Check verifies that Ollama is running and the configured model is pulled.
func (p *OllamaProvider) Check(ctx context.Context) error {
	if err := p.IsAvailable(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	ok, err := p.HasModel(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, p.model)
	}
	return nil
}

// call sends a JSON request (nil for none) and decodes a 200 response into out.
// Other statuses become errors quoting the response body.
func (p *OllamaProvider) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, formatErrorBody(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// formatErrorBody reads and formats the response body for error messages.
func formatErrorBody(body io.Reader) string {
	respBody, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return strings.TrimSpace(string(respBody))
}

type ollamaEmbedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name string `json:"name"`
}
