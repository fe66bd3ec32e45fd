// Package embedding turns review and query text into vectors.
package embedding

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Errors shared by all providers.
var (
	// ErrEmptyInput is returned when Embed is called with blank text.
	ErrEmptyInput = errors.New("embedding: input text is empty")
	// ErrDimensionMismatch is returned when a model returns a vector of unexpected length.
	ErrDimensionMismatch = errors.New("embedding: dimension mismatch")
	// ErrProviderUnavailable is returned by Check when the model server cannot be reached.
	ErrProviderUnavailable = errors.New("embedding: provider unavailable")
	// ErrModelNotFound is returned by Check when the configured model is not installed.
	ErrModelNotFound = errors.New("embedding: model not found")
)

// MaxInputLength is the maximum text length (in characters) sent to a model.
// all-minilm truncates at 256 word pieces anyway; this only bounds request size.
const MaxInputLength = 8000

// Embedding represents a vector embedding of text.
type Embedding struct {
	Vector []float32 // The embedding vector (e.g., 384 dimensions for all-minilm)
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// prepareInput trims text and caps it at MaxInputLength characters.
func prepareInput(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	if utf8.RuneCountInString(text) > MaxInputLength {
		text = string([]rune(text)[:MaxInputLength])
	}
	return text, nil
}

// prepareInputs applies prepareInput to every text. An empty text fails the
// whole batch.
func prepareInputs(texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	inputs := make([]string, len(texts))
	for i, text := range texts {
		input, err := prepareInput(text)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs[i] = input
	}
	return inputs, nil
}
