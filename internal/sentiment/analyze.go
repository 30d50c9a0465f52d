package sentiment

import (
	"context"
	"log/slog"

	"marketmood/internal/domain"
)

// ProgressFunc is called after each article with how many have been
// processed out of the total. It may be nil.
type ProgressFunc func(done, total int)

// Analyzer runs a classifier over a batch of news items and reduces the
// labels into a single mood.
type Analyzer struct {
	classifier Classifier
	log        *slog.Logger
}

// NewAnalyzer wires a classifier to the batch loop.
func NewAnalyzer(c Classifier, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{classifier: c, log: log}
}

// Run classifies the items in order. Items without a usable summary are
// skipped before classification, and a classifier failure drops only the
// failing item; both still advance the progress callback. Cancelling the
// context stops the loop and returns whatever was classified so far.
func (a *Analyzer) Run(ctx context.Context, items []domain.NewsItem, progress ProgressFunc) []domain.SentimentResult {
	results := make([]domain.SentimentResult, 0, len(items))
	total := len(items)
	for i, item := range items {
		if ctx.Err() != nil {
			a.log.Warn("classification interrupted", "done", i, "total", total)
			break
		}
		if !item.HasSummary() {
			if progress != nil {
				progress(i+1, total)
			}
			continue
		}
		res, err := a.classifier.Classify(ctx, item.Summary)
		if err != nil {
			a.log.Warn("classify failed, dropping article",
				"classifier", a.classifier.Name(), "title", item.Title, "err", err)
			if progress != nil {
				progress(i+1, total)
			}
			continue
		}
		results = append(results, domain.SentimentResult{
			Title:      item.Title,
			Summary:    item.Summary,
			Label:      res.Label,
			Confidence: res.Confidence,
		})
		if progress != nil {
			progress(i+1, total)
		}
	}
	return results
}

// Count tallies labels across a batch of results.
func Count(results []domain.SentimentResult) domain.MoodCounts {
	var counts domain.MoodCounts
	for _, r := range results {
		switch r.Label {
		case domain.SentimentPositive:
			counts.Positive++
		case domain.SentimentNegative:
			counts.Negative++
		default:
			counts.Neutral++
		}
	}
	return counts
}

// Aggregate reduces a batch to a mood by plurality of positive versus
// negative labels. Ties, including the empty batch, come out neutral, and
// the answer does not depend on article order.
func Aggregate(results []domain.SentimentResult) domain.Mood {
	return Count(results).Mood()
}
