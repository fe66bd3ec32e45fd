package embedding

import "context"

// Provider turns text into vectors of a fixed size.
// Ingestion and search must use providers reporting the same ModelName.
type Provider interface {
	Embed(ctx context.Context, text string) (Embedding, error)
	ModelName() string
	Dimensions() int
}

// BatchProvider is a Provider that can embed several texts per request.
// EmbedBatch returns one embedding per input, in input order.
type BatchProvider interface {
	Provider
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
}

// Checker is implemented by providers that can confirm their model is
// reachable without embedding anything.
type Checker interface {
	Check(ctx context.Context) error
}
