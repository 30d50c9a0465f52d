// Package httpapi provides an HTTP REST API for the marketmood dashboard,
// serving the same data as the TUI client in JSON format.
package httpapi

import (
	"marketmood/internal/domain"
	"marketmood/internal/session"
	"marketmood/internal/store"
)

// DashboardResponse is the top-level JSON response for the dashboard
// endpoint: the current session snapshot plus the selectable tickers.
type DashboardResponse struct {
	session.Snapshot
	Tickers []string `json:"tickers"`
}

// TickersResponse lists selectable symbols.
type TickersResponse struct {
	Tickers   []string `json:"tickers"`
	Favorites []string `json:"favorites"`
}

// FavoritesResponse lists favorite symbols.
type FavoritesResponse struct {
	Favorites []string `json:"favorites"`
}

// QuoteResponse holds the latest quote for a symbol. Warning is set when
// no quote could be fetched; the price fields are then absent.
type QuoteResponse struct {
	domain.Quote
	Warning string `json:"warning,omitempty"`
}

// HistoryResponse holds the price series for a symbol over one window,
// with the change across the window derived from the series.
type HistoryResponse struct {
	Symbol    string             `json:"symbol"`
	Window    domain.Window      `json:"window"`
	Series    domain.PriceSeries `json:"series"`
	Change    domain.Float       `json:"change"`
	ChangePct domain.Float       `json:"changePct"`
	NoData    bool               `json:"noData,omitempty"`
	Warning   string             `json:"warning,omitempty"`
}

// NewsResponse holds recent articles for a symbol.
type NewsResponse struct {
	Symbol   string            `json:"symbol"`
	Articles []domain.NewsItem `json:"articles"`
	Warning  string            `json:"warning,omitempty"`
}

// FundamentalsResponse holds fundamentals for a symbol. The embedded tier
// tells the client how complete the data is; Note spells it out.
type FundamentalsResponse struct {
	domain.Fundamentals
	Note    string `json:"note,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// AnalysesResponse lists recent analysis runs for a symbol, newest first.
type AnalysesResponse struct {
	Symbol string                 `json:"symbol"`
	Runs   []store.AnalysisRecord `json:"runs"`
}

// MoodHistoryResponse holds the per-day mood trend for a symbol, built
// from the news archive.
type MoodHistoryResponse struct {
	Symbol string            `json:"symbol"`
	Days   []store.DailyMood `json:"days"`
}

// historyFromSeries builds a HistoryResponse, deriving the change across
// the window from the first and last bars. An empty series is flagged
// rather than errored.
func historyFromSeries(symbol string, window domain.Window, series domain.PriceSeries) HistoryResponse {
	if series == nil {
		series = domain.PriceSeries{}
	}
	resp := HistoryResponse{
		Symbol: symbol,
		Window: window,
		Series: series,
		NoData: series.Empty(),
	}
	if len(series) >= 2 {
		first := domain.FloatFrom(series[0].Close)
		last := series.LastClose()
		resp.Change = domain.FloatFrom(last.Value - first.Value)
		resp.ChangePct = domain.PctChange(last, first)
	}
	return resp
}
