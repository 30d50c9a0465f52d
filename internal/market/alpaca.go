package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"marketmood/internal/config"
	"marketmood/internal/domain"
)

var _ Provider = (*AlpacaProvider)(nil)

// AlpacaProvider serves bars and news from the Alpaca market-data API. The
// feed has no snapshot or fundamentals endpoints on the basic plan, so
// quotes are derived from the most recent daily bars and fundamentals are
// left to the pipeline's unavailable handling.
type AlpacaProvider struct {
	client *marketdata.Client
	feed   string
	log    *slog.Logger
}

// NewAlpacaProvider builds a provider from Alpaca credentials.
func NewAlpacaProvider(cfg config.Alpaca, log *slog.Logger) *AlpacaProvider {
	if log == nil {
		log = slog.Default()
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	return &AlpacaProvider{
		client: marketdata.NewClient(opts),
		feed:   cfg.Feed,
		log:    log.With("provider", "alpaca"),
	}
}

// Name implements Provider.
func (a *AlpacaProvider) Name() string { return "alpaca" }

// Bars implements Provider.
func (a *AlpacaProvider) Bars(ctx context.Context, symbol string, window domain.Window) (domain.PriceSeries, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req := marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     window.Start(time.Now().UTC()),
		Feed:      marketdata.Feed(a.feed),
	}
	bars, err := a.client.GetBars(symbol, req)
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}

	series := make(domain.PriceSeries, 0, len(bars))
	for _, b := range bars {
		series = append(series, domain.Bar{
			Date:  b.Timestamp,
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		})
	}
	return series, nil
}

// Quote implements Provider by deriving the snapshot from the last two
// daily bars.
func (a *AlpacaProvider) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	series, err := a.Bars(ctx, symbol, domain.Window5D)
	if err != nil {
		return domain.Quote{}, err
	}
	if series.Empty() {
		return domain.Quote{}, fmt.Errorf("alpaca quote %s: no recent bars", symbol)
	}
	return domain.QuoteFromBars(symbol, series), nil
}

// News implements Provider.
func (a *AlpacaProvider) News(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	news, err := a.client.GetNews(marketdata.GetNewsRequest{
		Symbols:            []string{symbol},
		TotalLimit:         limit,
		IncludeContent:     true,
		ExcludeContentless: true,
		Sort:               marketdata.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca news %s: %w", symbol, err)
	}

	items := make([]domain.NewsItem, 0, len(news))
	for _, n := range news {
		summary := strings.TrimSpace(n.Summary)
		if summary == "" && n.Content != "" {
			summary = StripHTML(n.Content)
		}
		items = append(items, domain.NewsItem{
			Title:       n.Headline,
			Summary:     summary,
			Source:      "alpaca",
			PublishedAt: n.CreatedAt,
		})
	}
	return items, nil
}
