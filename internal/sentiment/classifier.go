// Package sentiment classifies news text into positive/negative/neutral
// labels and reduces label batches into a directional mood signal.
package sentiment

import (
	"context"
	"errors"

	"marketmood/internal/domain"
)

// ErrEmptyText is returned when Classify is called with blank input.
// Callers are expected to exclude empty summaries before classification.
var ErrEmptyText = errors.New("sentiment: empty text")

// Result is a single classification outcome. Confidence is the model's
// own score in [0,1], passed through without further calibration.
type Result struct {
	Label      domain.SentimentLabel
	Confidence float64
}

// Classifier assigns a sentiment label to one non-empty text.
type Classifier interface {
	// Name identifies the classifier for logging.
	Name() string
	// Classify labels a single text. Empty input is a precondition
	// violation and returns ErrEmptyText.
	Classify(ctx context.Context, text string) (Result, error)
}
