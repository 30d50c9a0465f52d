// Package market fetches price series, quotes, news, and fundamentals from
// upstream data providers and layers caching and degradation on top.
package market

import (
	"context"
	"errors"

	"marketmood/internal/domain"
)

// ErrUnsupported is returned when the active provider cannot serve an
// operation, such as fundamentals on a bars-only data feed.
var ErrUnsupported = errors.New("market: operation not supported by provider")

// Provider serves the core per-symbol market data operations.
type Provider interface {
	// Name identifies the provider for logging and config.
	Name() string
	// Bars returns daily bars for the window, oldest first. An empty
	// series with a nil error means the symbol has no data.
	Bars(ctx context.Context, symbol string, window domain.Window) (domain.PriceSeries, error)
	// Quote returns the current snapshot for a symbol.
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
	// News returns up to limit recent articles for a symbol.
	News(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error)
}

// FundamentalsProvider is implemented by providers that can serve company
// fundamentals. Fundamentals is the full detail call; FundamentalsLight is
// the cheaper reduced call used when the full one fails or comes back
// sparse.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, symbol string) (domain.Fundamentals, error)
	FundamentalsLight(ctx context.Context, symbol string) (domain.Fundamentals, error)
}

// BarCache persists daily bars so a series survives provider outages.
type BarCache interface {
	SaveBars(symbol string, bars domain.PriceSeries) error
	LoadBars(symbol string) (domain.PriceSeries, error)
}
