package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"marketmood/internal/domain"
)

// seriesTTL is how long a fetched price series is served from memory
// before the provider is asked again.
const seriesTTL = 5 * time.Minute

// Pipeline layers caching and degradation over a Provider. Each data
// category fails independently: a dead quote endpoint does not take down
// bars or news.
type Pipeline struct {
	provider Provider
	barCache BarCache // optional, survives provider outages
	minFull  int      // populated-field threshold for the full tier
	log      *slog.Logger

	series sync.Map // symbol|window -> cachedSeries
}

type cachedSeries struct {
	series    domain.PriceSeries
	fetchedAt time.Time
}

// NewPipeline wires a provider to the cache layers. cache may be nil.
func NewPipeline(provider Provider, cache BarCache, minFullFields int, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if minFullFields < 1 {
		minFullFields = 1
	}
	return &Pipeline{
		provider: provider,
		barCache: cache,
		minFull:  minFullFields,
		log:      log,
	}
}

func seriesKey(symbol string, window domain.Window) string {
	return symbol + "|" + string(window)
}

// PriceSeries returns daily bars for the window, oldest first. An empty
// series with a nil error is the no-data state for unknown or delisted
// symbols. When the provider fails, a previously fetched series for the
// same symbol and window is served instead, then the on-disk bar cache.
func (p *Pipeline) PriceSeries(ctx context.Context, symbol string, window domain.Window) (domain.PriceSeries, error) {
	symbol = domain.NormalizeSymbol(symbol)
	key := seriesKey(symbol, window)

	if v, ok := p.series.Load(key); ok {
		c := v.(cachedSeries)
		if time.Since(c.fetchedAt) < seriesTTL {
			return c.series, nil
		}
	}

	series, err := p.provider.Bars(ctx, symbol, window)
	if err != nil {
		if v, ok := p.series.Load(key); ok {
			p.log.Warn("bars fetch failed, serving cached series",
				"symbol", symbol, "window", window, "err", err)
			return v.(cachedSeries).series, nil
		}
		if p.barCache != nil {
			stored, cerr := p.barCache.LoadBars(symbol)
			if cerr == nil && !stored.Empty() {
				p.log.Warn("bars fetch failed, serving stored bars",
					"symbol", symbol, "window", window, "err", err)
				return trimToWindow(stored, window, time.Now().UTC()), nil
			}
		}
		return nil, fmt.Errorf("price series %s: %w", symbol, err)
	}

	p.series.Store(key, cachedSeries{series: series, fetchedAt: time.Now()})
	if p.barCache != nil && !series.Empty() {
		if cerr := p.barCache.SaveBars(symbol, series); cerr != nil {
			p.log.Warn("bar cache write failed", "symbol", symbol, "err", cerr)
		}
	}
	return series, nil
}

// trimToWindow drops bars older than the window start.
func trimToWindow(series domain.PriceSeries, window domain.Window, now time.Time) domain.PriceSeries {
	start := window.Start(now)
	if start.IsZero() {
		return series
	}
	out := make(domain.PriceSeries, 0, len(series))
	for _, b := range series {
		if !b.Date.Before(start) {
			out = append(out, b)
		}
	}
	return out
}

// Quote returns the current snapshot. When the whole quote call fails, it
// degrades to a quote derived from the last two bars of the most recently
// fetched series for the symbol, marked with Source "bars".
func (p *Pipeline) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)

	q, err := p.provider.Quote(ctx, symbol)
	if err == nil {
		return q, nil
	}
	if series, ok := p.lastSeries(symbol); ok {
		p.log.Warn("quote fetch failed, deriving from bars", "symbol", symbol, "err", err)
		return domain.QuoteFromBars(symbol, series), nil
	}
	return domain.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
}

// lastSeries finds the most recently fetched non-empty series for a symbol
// across all windows.
func (p *Pipeline) lastSeries(symbol string) (domain.PriceSeries, bool) {
	prefix := symbol + "|"
	var best cachedSeries
	found := false
	p.series.Range(func(k, v any) bool {
		if !strings.HasPrefix(k.(string), prefix) {
			return true
		}
		c := v.(cachedSeries)
		if !c.series.Empty() && (!found || c.fetchedAt.After(best.fetchedAt)) {
			best = c
			found = true
		}
		return true
	})
	if !found {
		return nil, false
	}
	return best.series, true
}

// News returns up to limit articles that carry a usable summary. Items
// without one are dropped here so downstream consumers never see them.
// Any non-negative limit is accepted; zero means no articles.
func (p *Pipeline) News(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	if limit < 0 {
		return nil, fmt.Errorf("news limit must be non-negative, got %d", limit)
	}
	symbol = domain.NormalizeSymbol(symbol)
	if limit == 0 {
		return []domain.NewsItem{}, nil
	}

	items, err := p.provider.News(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("news %s: %w", symbol, err)
	}
	filtered := make([]domain.NewsItem, 0, len(items))
	for _, item := range items {
		if item.HasSummary() {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// Fundamentals fetches company fundamentals and stamps the fidelity tier.
// The full call is tried first; a failed or sparse result falls through to
// the light call for the reduced tier. Both failing, or a provider without
// fundamentals at all, yields the unavailable tier alongside the error.
func (p *Pipeline) Fundamentals(ctx context.Context, symbol string) (domain.Fundamentals, error) {
	symbol = domain.NormalizeSymbol(symbol)
	unavailable := domain.Fundamentals{Symbol: symbol, Tier: domain.TierUnavailable}

	fp, ok := p.provider.(FundamentalsProvider)
	if !ok {
		return unavailable, fmt.Errorf("fundamentals %s: provider %s: %w", symbol, p.provider.Name(), ErrUnsupported)
	}

	full, err := fp.Fundamentals(ctx, symbol)
	if err == nil {
		if full.PopulatedFields() >= p.minFull {
			full.Symbol = symbol
			full.Tier = domain.TierFull
			return full, nil
		}
		p.log.Warn("full fundamentals sparse, trying light call",
			"symbol", symbol, "fields", full.PopulatedFields(), "want", p.minFull)
	} else {
		p.log.Warn("full fundamentals failed, trying light call", "symbol", symbol, "err", err)
	}

	light, lerr := fp.FundamentalsLight(ctx, symbol)
	if lerr != nil {
		return unavailable, fmt.Errorf("fundamentals %s: %w", symbol, lerr)
	}
	light.Symbol = symbol
	light.Tier = domain.TierReduced
	return light, nil
}
