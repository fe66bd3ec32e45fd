package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewOllamaProvider_Defaults(t *testing.T) {
	provider := NewOllamaProvider()

	if provider.baseURL != DefaultOllamaURL {
		t.Errorf("baseURL = %s, want %s", provider.baseURL, DefaultOllamaURL)
	}
	if provider.model != DefaultModel {
		t.Errorf("model = %s, want %s", provider.model, DefaultModel)
	}
	if provider.dimensions != DefaultDimensions {
		t.Errorf("dimensions = %d, want %d", provider.dimensions, DefaultDimensions)
	}
	if provider.client == nil {
		t.Error("client should not be nil")
	}
}

func TestNewOllamaProvider_WithOptions(t *testing.T) {
	provider := NewOllamaProvider(
		WithBaseURL("http://custom:8080/"),
		WithModel("nomic-embed-text"),
		WithDimensions(768),
		WithTimeout(60*time.Second),
	)

	if provider.baseURL != "http://custom:8080" {
		t.Errorf("baseURL = %s, want trailing slash trimmed", provider.baseURL)
	}
	if provider.ModelName() != "nomic-embed-text" {
		t.Errorf("ModelName() = %s", provider.ModelName())
	}
	if provider.Dimensions() != 768 {
		t.Errorf("Dimensions() = %d", provider.Dimensions())
	}
	if provider.client.Timeout != 60*time.Second {
		t.Errorf("timeout = %v", provider.client.Timeout)
	}
}

func TestNewOllamaProvider_ZeroOptionsKeepDefaults(t *testing.T) {
	provider := NewOllamaProvider(WithBaseURL(""), WithModel(""), WithDimensions(0))

	if provider.baseURL != DefaultOllamaURL || provider.model != DefaultModel || provider.dimensions != DefaultDimensions {
		t.Errorf("zero options should keep defaults, got %s %s %d", provider.baseURL, provider.model, provider.dimensions)
	}
}

// ollamaFake records the batches sent to /api/embed.
type ollamaFake struct {
	mu      sync.Mutex
	batches [][]string
}

func (f *ollamaFake) record(batch []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
}

func (f *ollamaFake) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *ollamaFake) inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []string
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

// newOllamaServer fakes the two Ollama endpoints the provider uses.
// Each vector is derived from its input's length so order can be checked.
func newOllamaServer(t *testing.T, dims int, models ...string) (*httptest.Server, *ollamaFake) {
	t.Helper()
	fake := &ollamaFake{}

	mux := http.NewServeMux()
	mux.HandleFunc(apiPathEmbed, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model == "missing" {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		if !req.Truncate {
			t.Error("requests should ask Ollama to truncate long input")
		}
		fake.record(req.Input)

		resp := ollamaEmbedResponse{Model: req.Model}
		for _, in := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(len(in))
			resp.Embeddings = append(resp.Embeddings, vec)
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(apiPathTags, func(w http.ResponseWriter, r *http.Request) {
		var resp ollamaTagsResponse
		for _, m := range models {
			resp.Models = append(resp.Models, ollamaModel{Name: m})
		}
		json.NewEncoder(w).Encode(resp)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, fake
}

func TestOllamaProvider_Embed(t *testing.T) {
	server, fake := newOllamaServer(t, 4)
	provider := NewOllamaProvider(WithBaseURL(server.URL), WithDimensions(4))

	emb, err := provider.Embed(context.Background(), "  good battery life  ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if emb.Dimensions() != 4 {
		t.Errorf("Dimensions() = %d, want 4", emb.Dimensions())
	}
	if got := fake.inputs(); len(got) != 1 || got[0] != "good battery life" {
		t.Errorf("input should be trimmed, got %q", got)
	}
}

func TestOllamaProvider_EmbedBatch(t *testing.T) {
	server, fake := newOllamaServer(t, 4)
	provider := NewOllamaProvider(WithBaseURL(server.URL), WithDimensions(4))

	texts := []string{"a", "bbb", "cc"}
	embs, err := provider.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if fake.requests() != 1 {
		t.Errorf("expected one request, got %d", fake.requests())
	}
	if len(embs) != len(texts) {
		t.Fatalf("got %d embeddings, want %d", len(embs), len(texts))
	}
	for i, text := range texts {
		if embs[i].Vector[0] != float32(len(text)) {
			t.Errorf("embedding %d out of order: %v", i, embs[i].Vector)
		}
	}
}

func TestOllamaProvider_Embed_Errors(t *testing.T) {
	server, fake := newOllamaServer(t, 4)

	t.Run("empty input makes no request", func(t *testing.T) {
		provider := NewOllamaProvider(WithBaseURL(server.URL), WithDimensions(4))
		if _, err := provider.Embed(context.Background(), "   "); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput, got %v", err)
		}
		if _, err := provider.EmbedBatch(context.Background(), []string{"ok", ""}); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput, got %v", err)
		}
		if fake.requests() != 0 {
			t.Errorf("expected no requests, got %d", fake.requests())
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		provider := NewOllamaProvider(WithBaseURL(server.URL), WithDimensions(384))
		if _, err := provider.Embed(context.Background(), "some text"); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("error status includes body", func(t *testing.T) {
		provider := NewOllamaProvider(WithBaseURL(server.URL), WithModel("missing"), WithDimensions(4))
		_, err := provider.Embed(context.Background(), "some text")
		if err == nil || !strings.Contains(err.Error(), "model not found") {
			t.Errorf("expected error with body, got %v", err)
		}
	})
}

func TestOllamaProvider_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	t.Cleanup(server.Close)

	provider := NewOllamaProvider(WithBaseURL(server.URL), WithDimensions(2))
	if _, err := provider.EmbedBatch(context.Background(), []string{"one", "two"}); err == nil {
		t.Error("expected error when fewer embeddings than inputs come back")
	}
}

func TestOllamaProvider_HasModel(t *testing.T) {
	server, _ := newOllamaServer(t, 4, "all-minilm:l6-v2", "nomic-embed-text:latest")

	tests := []struct {
		model string
		want  bool
	}{
		{"all-minilm:l6-v2", true},
		{"nomic-embed-text", true},
		{"mxbai-embed-large", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			provider := NewOllamaProvider(WithBaseURL(server.URL), WithModel(tt.model))
			got, err := provider.HasModel(context.Background())
			if err != nil {
				t.Fatalf("HasModel failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasModel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server, _ := newOllamaServer(t, 4)
	if err := NewOllamaProvider(WithBaseURL(server.URL)).IsAvailable(context.Background()); err != nil {
		t.Errorf("IsAvailable() error = %v", err)
	}

	server.Close()
	if err := NewOllamaProvider(WithBaseURL(server.URL)).IsAvailable(context.Background()); err == nil {
		t.Error("IsAvailable() should fail when server is down")
	}
}

func TestOllamaProvider_Check(t *testing.T) {
	server, fake := newOllamaServer(t, 4, "all-minilm:l6-v2")

	if err := NewOllamaProvider(WithBaseURL(server.URL)).Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v", err)
	}

	err := NewOllamaProvider(WithBaseURL(server.URL), WithModel("mxbai-embed-large")).Check(context.Background())
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}

	server.Close()
	err = NewOllamaProvider(WithBaseURL(server.URL)).Check(context.Background())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	if fake.requests() != 0 {
		t.Errorf("Check should not embed anything, got %d embed requests", fake.requests())
	}
}

func TestFormatErrorBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple error message",
			input:    "error occurred",
			expected: "error occurred",
		},
		{
			name:     "empty body",
			input:    "",
			expected: "",
		},
		{
			name:     "json error with newline",
			input:    "{\"error\": \"not found\"}\n",
			expected: `{"error": "not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatErrorBody(strings.NewReader(tt.input))
			if result != tt.expected {
				t.Errorf("formatErrorBody() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestOllamaProvider_ImplementsProvider(t *testing.T) {
	var _ Provider = (*OllamaProvider)(nil)
	var _ Checker = (*OllamaProvider)(nil)
}
