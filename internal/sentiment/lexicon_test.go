package sentiment

import (
	"context"
	"errors"
	"testing"

	"marketmood/internal/domain"
)

func TestLexiconClassify(t *testing.T) {
	c := NewLexiconClassifier()
	tests := []struct {
		name string
		text string
		want domain.SentimentLabel
	}{
		{"strong positive", "Shares surge after record earnings beat", domain.SentimentPositive},
		{"strong negative", "Stock plunges as regulator opens probe", domain.SentimentNegative},
		{"no signal words", "The company held its annual meeting on Tuesday", domain.SentimentNeutral},
		{"balanced", "Profits rise but lawsuit risk weighs", domain.SentimentNeutral},
		{"punctuation stripped", "Analysts cheer: \"upgrade!\" for the stock.", domain.SentimentPositive},
		{"case insensitive", "BEARISH outlook, DOWNGRADE expected", domain.SentimentNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Classify() error: %v", err)
			}
			if res.Label != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, res.Label, tt.want)
			}
			if res.Confidence < 0 || res.Confidence > 1 {
				t.Errorf("confidence %v out of [0,1]", res.Confidence)
			}
		})
	}
}

func TestLexiconEmptyText(t *testing.T) {
	c := NewLexiconClassifier()
	if _, err := c.Classify(context.Background(), "  \t "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("error = %v, want ErrEmptyText", err)
	}
}

func TestLexiconNoMatchesIsConfidentNeutral(t *testing.T) {
	c := NewLexiconClassifier()
	res, err := c.Classify(context.Background(), "quarterly report filed with the commission")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if res.Label != domain.SentimentNeutral {
		t.Errorf("label = %v, want neutral", res.Label)
	}
	if res.Confidence != 1 {
		t.Errorf("confidence = %v, want 1 when no weighted words match", res.Confidence)
	}
}
