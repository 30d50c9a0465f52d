package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"marketmood/internal/domain"
)

func TestParquetStorePaths(t *testing.T) {
	ps := NewParquetStore("/data")

	bp := ps.barPath("AAPL", 2025)
	wantBarPath := filepath.Join("/data", "bars", "AAPL", "2025.parquet")
	if bp != wantBarPath {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, wantBarPath)
	}

	np := ps.newsPath("TSLA", "2025-06-16")
	wantNewsPath := filepath.Join("/data", "news", "TSLA", "2025-06-16.parquet")
	if np != wantNewsPath {
		t.Errorf("newsPath mismatch:\n  got  %s\n  want %s", np, wantNewsPath)
	}
}

func TestParquetStoreBarsRoundTrip(t *testing.T) {
	ps := NewParquetStore(t.TempDir())

	bars := domain.PriceSeries{
		{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Open: 185.0, High: 186.5, Low: 184.0, Close: 185.5},
		{Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), Open: 185.5, High: 187.0, Low: 185.0, Close: 186.0},
	}
	if err := ps.SaveBars("aapl", bars); err != nil {
		t.Fatalf("SaveBars: %v", err)
	}

	got, err := ps.LoadBars("AAPL")
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 || got[1].Close != 186.0 {
		t.Errorf("closes = %v/%v, want 185.5/186.0", got[0].Close, got[1].Close)
	}
	if !got[0].Date.Before(got[1].Date) {
		t.Error("bars should come back oldest first")
	}
}

func TestParquetStoreBarsMerge(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	day1 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)

	if err := ps.SaveBars("MSFT", domain.PriceSeries{{Date: day1, Close: 403.0}}); err != nil {
		t.Fatalf("SaveBars (first): %v", err)
	}
	// Second write merges: one overlapping day with a corrected close plus
	// one new day.
	if err := ps.SaveBars("MSFT", domain.PriceSeries{
		{Date: day1, Close: 404.0},
		{Date: day2, Close: 408.0},
	}); err != nil {
		t.Fatalf("SaveBars (second): %v", err)
	}

	got, err := ps.LoadBars("MSFT")
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404.0 {
		t.Errorf("merged close = %v, want the incoming 404.0", got[0].Close)
	}
}

func TestParquetStoreLoadBarsMissingSymbol(t *testing.T) {
	ps := NewParquetStore(t.TempDir())

	got, err := ps.LoadBars("NOPE")
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if !got.Empty() {
		t.Errorf("got %d bars for unknown symbol, want none", len(got))
	}
}

func TestParquetStoreNewsRoundTrip(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	asOf := time.Date(2025, 6, 16, 15, 0, 0, 0, time.UTC)

	items := []domain.NewsItem{
		{Title: "first", Summary: "body one", Source: "Reuters", PublishedAt: asOf.Add(-2 * time.Hour)},
		{Title: "second", Summary: "body two", Source: "Yahoo Finance", PublishedAt: asOf.Add(-time.Hour)},
		{Title: "undated", Summary: "body three"},
	}
	results := []domain.SentimentResult{
		{Title: "first", Summary: "body one", Label: domain.SentimentPositive, Confidence: 0.91},
		{Title: "second", Summary: "body two", Label: domain.SentimentNegative, Confidence: 0.74},
	}
	if err := ps.SaveNews("aapl", asOf, items, results); err != nil {
		t.Fatalf("SaveNews: %v", err)
	}

	dates, err := ps.ListNewsDates("AAPL")
	if err != nil {
		t.Fatalf("ListNewsDates: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2025-06-16" {
		t.Fatalf("dates = %v, want [2025-06-16]", dates)
	}

	got, err := ps.LoadNews("AAPL", "2025-06-16")
	if err != nil {
		t.Fatalf("LoadNews: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("LoadNews returned %d rows, want 3", len(got))
	}
	if got[0].Title != "first" || got[0].Source != "Reuters" {
		t.Errorf("first row = %+v", got[0])
	}
	if got[0].Label != string(domain.SentimentPositive) || got[0].Confidence != 0.91 {
		t.Errorf("first row label = %q conf %v, want positive 0.91", got[0].Label, got[0].Confidence)
	}
	if got[2].Label != "" {
		t.Errorf("unclassified row label = %q, want empty", got[2].Label)
	}
	if item := got[1].Item(); item.Title != "second" || !item.PublishedAt.Equal(asOf.Add(-time.Hour)) {
		t.Errorf("Item() = %+v", item)
	}
}

func TestParquetStoreNewsMergeDeduplicates(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	asOf := time.Date(2025, 6, 16, 15, 0, 0, 0, time.UTC)
	item := domain.NewsItem{Title: "same story", Summary: "body", PublishedAt: asOf}

	if err := ps.SaveNews("AAPL", asOf, []domain.NewsItem{item}, nil); err != nil {
		t.Fatalf("SaveNews (first): %v", err)
	}
	relabel := []domain.SentimentResult{{Title: "same story", Label: domain.SentimentNeutral, Confidence: 0.6}}
	if err := ps.SaveNews("AAPL", asOf, []domain.NewsItem{item}, relabel); err != nil {
		t.Fatalf("SaveNews (second): %v", err)
	}

	got, err := ps.LoadNews("AAPL", "2025-06-16")
	if err != nil {
		t.Fatalf("LoadNews: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("LoadNews returned %d rows after duplicate save, want 1", len(got))
	}
	if got[0].Label != string(domain.SentimentNeutral) {
		t.Errorf("merged label = %q, want the incoming neutral", got[0].Label)
	}
}

func TestParquetStoreLoadNewsMissingDate(t *testing.T) {
	ps := NewParquetStore(t.TempDir())

	got, err := ps.LoadNews("AAPL", "2025-01-01")
	if err != nil {
		t.Fatalf("LoadNews: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d items for missing date, want 0", len(got))
	}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestSQLiteStoreOpen(t *testing.T) {
	s := newTestSQLite(t)
	if err := s.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func TestSQLiteFavorites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, sym := range []string{"msft", "AAPL", "AAPL"} {
		if err := s.AddFavorite(ctx, sym); err != nil {
			t.Fatalf("AddFavorite(%q): %v", sym, err)
		}
	}

	favs, err := s.ListFavorites(ctx)
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 2 || favs[0] != "AAPL" || favs[1] != "MSFT" {
		t.Fatalf("favorites = %v, want [AAPL MSFT]", favs)
	}

	if err := s.RemoveFavorite(ctx, "AAPL"); err != nil {
		t.Fatalf("RemoveFavorite: %v", err)
	}
	if err := s.RemoveFavorite(ctx, "NEVER"); err != nil {
		t.Fatalf("RemoveFavorite (absent): %v", err)
	}

	favs, err = s.ListFavorites(ctx)
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 1 || favs[0] != "MSFT" {
		t.Errorf("favorites = %v, want [MSFT]", favs)
	}
}

func TestSQLiteAnalyses(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	runs := []*domain.Analysis{
		{
			Symbol: "AAPL", Window: domain.Window1M, RanAt: base,
			Mood:         domain.MoodBullish,
			Counts:       domain.MoodCounts{Positive: 5, Negative: 2, Neutral: 1},
			Results:      make([]domain.SentimentResult, 8),
			Fundamentals: domain.Fundamentals{Tier: domain.TierFull},
		},
		{
			Symbol: "AAPL", Window: domain.Window1M, RanAt: base.Add(2 * time.Hour),
			Mood:         domain.MoodBearish,
			Counts:       domain.MoodCounts{Positive: 1, Negative: 4, Neutral: 0},
			Results:      make([]domain.SentimentResult, 5),
			Fundamentals: domain.Fundamentals{Tier: domain.TierReduced},
		},
		{
			Symbol: "MSFT", Window: domain.Window6M, RanAt: base,
			Mood:   domain.MoodNeutral,
			Counts: domain.MoodCounts{Positive: 2, Negative: 2, Neutral: 2},
		},
	}
	for _, a := range runs {
		if err := s.SaveAnalysis(ctx, a); err != nil {
			t.Fatalf("SaveAnalysis: %v", err)
		}
	}

	records, err := s.ListAnalyses(ctx, "AAPL", 10)
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListAnalyses returned %d records, want 2", len(records))
	}
	if records[0].Mood != domain.MoodBearish {
		t.Errorf("newest record mood = %v, want bearish first", records[0].Mood)
	}
	if records[0].Articles != 5 || records[0].Tier != domain.TierReduced {
		t.Errorf("record = %+v", records[0])
	}
	if records[1].Counts.Positive != 5 {
		t.Errorf("older record counts = %+v", records[1].Counts)
	}
}

func TestSQLiteMoodHistoryAggregatesByDay(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// Pin runs to mid-day so adding an hour never crosses a date boundary.
	midday := time.Now().UTC().Truncate(24 * time.Hour).Add(10 * time.Hour)
	day1 := midday.AddDate(0, 0, -2)
	day2 := midday.AddDate(0, 0, -1)
	runs := []*domain.Analysis{
		{Symbol: "AAPL", Window: domain.Window1M, RanAt: day1,
			Mood: domain.MoodBullish, Counts: domain.MoodCounts{Positive: 3, Negative: 1}},
		{Symbol: "AAPL", Window: domain.Window1M, RanAt: day1.Add(time.Hour),
			Mood: domain.MoodBearish, Counts: domain.MoodCounts{Positive: 0, Negative: 4}},
		{Symbol: "AAPL", Window: domain.Window1M, RanAt: day2,
			Mood: domain.MoodBullish, Counts: domain.MoodCounts{Positive: 2, Negative: 0}},
	}
	for _, a := range runs {
		if err := s.SaveAnalysis(ctx, a); err != nil {
			t.Fatalf("SaveAnalysis: %v", err)
		}
	}

	history, err := s.MoodHistory(ctx, "AAPL", 7)
	if err != nil {
		t.Fatalf("MoodHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("MoodHistory returned %d days, want 2", len(history))
	}
	// Day one sums to 3 positive vs 5 negative.
	if history[0].Mood != domain.MoodBearish {
		t.Errorf("day one mood = %v, want bearish", history[0].Mood)
	}
	if history[0].Counts.Negative != 5 {
		t.Errorf("day one negatives = %d, want 5", history[0].Counts.Negative)
	}
	if history[1].Mood != domain.MoodBullish {
		t.Errorf("day two mood = %v, want bullish", history[1].Mood)
	}
}
