package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// newOpenAIServer fakes POST /embeddings, returning dims values per request.
func newOpenAIServer(t *testing.T, dims int, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var body struct {
			Input      string `json:"input"`
			Model      string `json:"model"`
			Dimensions int    `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
			return
		}

		vec := make([]float64, dims)
		for i := range vec {
			vec[i] = float64(i) / 10
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vec},
			},
			"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestNewOpenAIProvider_Defaults(t *testing.T) {
	p := NewOpenAIProvider("sk-test")

	if p.ModelName() != DefaultOpenAIModel {
		t.Errorf("ModelName() = %s, want %s", p.ModelName(), DefaultOpenAIModel)
	}
	if p.Dimensions() != DefaultOpenAIDimensions {
		t.Errorf("Dimensions() = %d, want %d", p.Dimensions(), DefaultOpenAIDimensions)
	}
	if p.limiter == nil {
		t.Error("limiter should be set")
	}
}

func TestNewOpenAIProvider_WithOptions(t *testing.T) {
	p := NewOpenAIProvider("sk-test",
		WithOpenAIModel("text-embedding-3-large"),
		WithOpenAIDimensions(1024),
		WithRateLimit(2),
	)

	if p.ModelName() != "text-embedding-3-large" {
		t.Errorf("ModelName() = %s", p.ModelName())
	}
	if p.Dimensions() != 1024 {
		t.Errorf("Dimensions() = %d", p.Dimensions())
	}
	if p.limiter.Limit() != 2 {
		t.Errorf("limit = %v, want 2", p.limiter.Limit())
	}
}

func TestOpenAIProvider_Embed(t *testing.T) {
	server, calls := newOpenAIServer(t, 8, http.StatusOK)
	p := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL+"/v1/"), WithOpenAIDimensions(8))

	emb, err := p.Embed(context.Background(), "fits well but the strap broke")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if emb.Dimensions() != 8 {
		t.Errorf("Dimensions() = %d, want 8", emb.Dimensions())
	}
	if emb.Vector[5] != float32(0.5) {
		t.Errorf("Vector[5] = %v, want 0.5", emb.Vector[5])
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestOpenAIProvider_Embed_Errors(t *testing.T) {
	t.Run("empty input makes no request", func(t *testing.T) {
		server, calls := newOpenAIServer(t, 8, http.StatusOK)
		p := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL+"/v1/"), WithOpenAIDimensions(8))

		if _, err := p.Embed(context.Background(), " "); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("expected ErrEmptyInput, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("calls = %d, want 0", calls.Load())
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		server, _ := newOpenAIServer(t, 4, http.StatusOK)
		p := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL+"/v1/"), WithOpenAIDimensions(8))

		if _, err := p.Embed(context.Background(), "some review text"); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("api error is not retried", func(t *testing.T) {
		server, calls := newOpenAIServer(t, 8, http.StatusUnauthorized)
		p := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL+"/v1/"), WithOpenAIDimensions(8))

		if _, err := p.Embed(context.Background(), "some review text"); err == nil {
			t.Error("expected error for 401")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		server, _ := newOpenAIServer(t, 8, http.StatusOK)
		p := NewOpenAIProvider("sk-test", WithOpenAIBaseURL(server.URL+"/v1/"), WithOpenAIDimensions(8))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := p.Embed(ctx, "some review text"); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestOpenAIProvider_ImplementsProvider(t *testing.T) {
	var _ Provider = (*OpenAIProvider)(nil)
}
