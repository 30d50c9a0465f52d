package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketmood/internal/domain"
	"marketmood/internal/sentiment"
)

// ErrAnalysisRunning is returned when a run is already in flight.
var ErrAnalysisRunning = errors.New("session: analysis already running")

// ErrNoTicker is returned when RunAnalysis is called with no ticker
// selected.
var ErrNoTicker = errors.New("session: no ticker selected")

// RunAnalysis performs one end-to-end run for the current ticker: price
// series, quote, news with per-article classification, then fundamentals.
// Each category is fetched exactly once and contained on failure: the run
// carries a warning for the category and continues. The finished analysis
// becomes the session's last analysis and is persisted best-effort to the
// analysis log and news archive.
//
// Only one run may be in flight at a time; concurrent calls get
// ErrAnalysisRunning.
func (s *State) RunAnalysis(ctx context.Context) (*domain.Analysis, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAnalysisRunning
	}
	if s.ticker == "" {
		s.mu.Unlock()
		return nil, ErrNoTicker
	}
	s.running = true
	symbol := s.ticker
	window := s.window
	limit := s.articles
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.publish(Event{Kind: EventAnalysisStarted, Symbol: symbol, Total: limit})
	started := time.Now()

	a, items := s.analyze(ctx, symbol, window, limit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = a
	s.mu.Unlock()

	s.persist(ctx, a, items)
	s.log.Info("analysis finished",
		"symbol", symbol,
		"mood", a.Mood,
		"articles", len(a.Results),
		"warnings", len(a.Warnings),
		"took", time.Since(started).Round(time.Millisecond))
	s.publish(Event{Kind: EventAnalysisFinished, Symbol: symbol, Mood: a.Mood, Warnings: a.Warnings})
	return a, nil
}

// analyze runs the four fetch categories in order. It never returns an
// error: failures degrade the respective panel and add a warning.
func (s *State) analyze(ctx context.Context, symbol string, window domain.Window, limit int) (*domain.Analysis, []domain.NewsItem) {
	a := &domain.Analysis{
		Symbol: symbol,
		Window: window,
		RanAt:  time.Now().UTC(),
	}

	series, err := s.market.PriceSeries(ctx, symbol, window)
	if err != nil {
		s.log.Warn("price series failed", "symbol", symbol, "err", err)
		a.Warnings = append(a.Warnings, fmt.Sprintf("price history unavailable: %v", err))
	}
	a.Series = series

	quote, err := s.market.Quote(ctx, symbol)
	if err != nil {
		s.log.Warn("quote failed", "symbol", symbol, "err", err)
		a.Warnings = append(a.Warnings, fmt.Sprintf("quote unavailable: %v", err))
		quote = domain.Quote{Symbol: symbol, Source: domain.QuoteSourceUnavailable}
	}
	a.Quote = quote

	items, err := s.market.News(ctx, symbol, limit)
	if err != nil {
		s.log.Warn("news failed", "symbol", symbol, "err", err)
		a.Warnings = append(a.Warnings, fmt.Sprintf("news unavailable: %v", err))
		items = nil
	}

	a.Results = s.analyzer.Run(ctx, items, func(done, total int) {
		s.publish(Event{Kind: EventArticleClassified, Symbol: symbol, Done: done, Total: total})
	})
	a.Counts = sentiment.Count(a.Results)
	a.Mood = a.Counts.Mood()
	if dropped := len(items) - len(a.Results); dropped > 0 {
		a.Warnings = append(a.Warnings, fmt.Sprintf("classified %d of %d articles", len(a.Results), len(items)))
	}

	funds, err := s.market.Fundamentals(ctx, symbol)
	if err != nil {
		s.log.Warn("fundamentals failed", "symbol", symbol, "tier", funds.Tier, "err", err)
		a.Warnings = append(a.Warnings, fmt.Sprintf("fundamentals unavailable: %v", err))
	}
	a.Fundamentals = funds

	return a, items
}

// persist writes the finished run to the analysis log and news archive.
// Both are best-effort: failures are logged, never surfaced.
func (s *State) persist(ctx context.Context, a *domain.Analysis, items []domain.NewsItem) {
	if s.stores.Analyses != nil {
		if err := s.stores.Analyses.SaveAnalysis(ctx, a); err != nil {
			s.log.Warn("saving analysis failed", "symbol", a.Symbol, "err", err)
		}
	}
	if s.stores.Archive != nil && len(items) > 0 {
		if err := s.stores.Archive.SaveNews(a.Symbol, a.RanAt, items, a.Results); err != nil {
			s.log.Warn("archiving news failed", "symbol", a.Symbol, "err", err)
		}
	}
}
