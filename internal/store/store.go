// Package store persists dashboard state and fetched market data: favorites
// and analysis history in SQLite, bar and news archives in Parquet files.
package store

import (
	"context"
	"time"

	"marketmood/internal/domain"
)

// FavoriteStore persists the user's favorite tickers.
type FavoriteStore interface {
	// AddFavorite marks a symbol as favorite. Adding twice is a no-op.
	AddFavorite(ctx context.Context, symbol string) error

	// RemoveFavorite unmarks a symbol. Removing an absent one is a no-op.
	RemoveFavorite(ctx context.Context, symbol string) error

	// ListFavorites returns all favorites in alphabetical order.
	ListFavorites(ctx context.Context) ([]string, error)
}

// AnalysisRecord is the stored summary of one analysis run.
type AnalysisRecord struct {
	ID       int64             `json:"id"`
	Symbol   string            `json:"symbol"`
	Window   domain.Window     `json:"window"`
	RanAt    time.Time         `json:"ranAt"`
	Mood     domain.Mood       `json:"mood"`
	Counts   domain.MoodCounts `json:"counts"`
	Articles int               `json:"articles"`
	Tier     domain.Tier       `json:"tier"`
}

// DailyMood is the aggregated mood for one calendar day, built from every
// analysis run recorded that day.
type DailyMood struct {
	Date   time.Time         `json:"date"`
	Counts domain.MoodCounts `json:"counts"`
	Mood   domain.Mood       `json:"mood"`
}

// AnalysisStore records completed analysis runs.
type AnalysisStore interface {
	// SaveAnalysis appends the summary of a finished run.
	SaveAnalysis(ctx context.Context, a *domain.Analysis) error

	// ListAnalyses returns the most recent runs for a symbol, newest
	// first, up to limit.
	ListAnalyses(ctx context.Context, symbol string, limit int) ([]AnalysisRecord, error)

	// MoodHistory aggregates per-day moods for a symbol over the last
	// days calendar days.
	MoodHistory(ctx context.Context, symbol string, days int) ([]DailyMood, error)
}
