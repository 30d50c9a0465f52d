package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"marketmood/internal/config"
	"marketmood/internal/domain"
	"marketmood/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ Provider = (*YahooClient)(nil)
var _ FundamentalsProvider = (*YahooClient)(nil)

// YahooClient fetches market data from the Yahoo Finance public JSON API:
// v8 chart for bars, v7 quote for snapshots and light fundamentals, v10
// quoteSummary for full fundamentals, and the RSS feed for headlines.
type YahooClient struct {
	baseURL   string
	newsURL   string
	userAgent string
	client    *http.Client
	limiter   *util.RateLimiter
	log       *slog.Logger
}

// NewYahooClient builds a client from provider config.
func NewYahooClient(cfg config.Provider, log *slog.Logger) *YahooClient {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YahooClient{
		baseURL:   cfg.BaseURL,
		newsURL:   cfg.NewsURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   util.NewRateLimiter(cfg.RatePerMin),
		log:       log.With("provider", "yahoo"),
	}
}

// Name implements Provider.
func (y *YahooClient) Name() string { return "yahoo" }

// statusError carries a non-200 HTTP response so callers can map specific
// statuses, such as 404 for unknown symbols.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func (y *YahooClient) getJSON(ctx context.Context, u string, dst any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", y.userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{status: resp.StatusCode, body: truncate(string(body), 200)}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// notFound reports whether err is a 404 from the API, which Yahoo uses for
// unknown symbols.
func notFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// ---------------------------------------------------------------------------
// Bars (v8 chart)
// ---------------------------------------------------------------------------

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

// Bars implements Provider. Unknown symbols and symbols with no history in
// the window come back as an empty series, not an error.
func (y *YahooClient) Bars(ctx context.Context, symbol string, window domain.Window) (domain.PriceSeries, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		y.baseURL, url.PathEscape(symbol), window)

	var chart chartResponse
	if err := y.getJSON(ctx, u, &chart); err != nil {
		if notFound(err) {
			return domain.PriceSeries{}, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return domain.PriceSeries{}, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return domain.PriceSeries{}, nil
	}
	quote := result.Indicators.Quote[0]

	series := make(domain.PriceSeries, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Null entries are non-trading days; skip them.
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := domain.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		series = append(series, bar)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// ---------------------------------------------------------------------------
// Quote (v7) and the ordered field resolver
// ---------------------------------------------------------------------------

// fieldBag is one result object from a quote-style endpoint, kept loose so
// missing keys resolve through fallback chains instead of zero values.
type fieldBag map[string]any

// firstOf walks keys in order and returns the first present numeric value.
// Order is the precedence: a later key never shadows an earlier one.
func (b fieldBag) firstOf(keys ...string) domain.Float {
	for _, k := range keys {
		if v, ok := b[k]; ok {
			if f, ok := asFloat(v); ok {
				return domain.FloatFrom(f)
			}
		}
	}
	return domain.Float{}
}

func (b fieldBag) str(key string) string {
	if v, ok := b[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// asFloat accepts plain JSON numbers and Yahoo's {"raw": n, "fmt": "..."}
// wrapping used by the quoteSummary endpoint.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case map[string]any:
		if raw, ok := n["raw"]; ok {
			return asFloat(raw)
		}
	}
	return 0, false
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []fieldBag  `json:"result"`
		Error  *yahooError `json:"error"`
	} `json:"quoteResponse"`
}

func (y *YahooClient) fetchQuoteBag(ctx context.Context, symbol string) (fieldBag, error) {
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", y.baseURL, url.QueryEscape(symbol))

	var qr quoteResponse
	if err := y.getJSON(ctx, u, &qr); err != nil {
		return nil, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if qr.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("yahoo quote %s: %s", symbol, qr.QuoteResponse.Error.Description)
	}
	if len(qr.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("yahoo quote %s: no result", symbol)
	}
	return qr.QuoteResponse.Result[0], nil
}

// Quote implements Provider. Each field resolves through its ordered key
// chain; fields with no key present stay absent rather than zero.
func (y *YahooClient) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	bag, err := y.fetchQuoteBag(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	q := domain.Quote{
		Symbol:   symbol,
		Source:   y.Name(),
		AsOf:     time.Now().UTC(),
		Current:  bag.firstOf("currentPrice", "regularMarketPrice", "previousClose"),
		Previous: bag.firstOf("previousClose", "regularMarketPreviousClose"),
		Open:     bag.firstOf("open", "regularMarketOpen"),
		DayHigh:  bag.firstOf("dayHigh", "regularMarketDayHigh"),
		DayLow:   bag.firstOf("dayLow", "regularMarketDayLow"),
	}
	q.ComputeChange()
	return q, nil
}

// ---------------------------------------------------------------------------
// Fundamentals (v10 quoteSummary full, v7 quote light)
// ---------------------------------------------------------------------------

var summaryModules = []string{"summaryDetail", "defaultKeyStatistics", "assetProfile", "financialData"}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]fieldBag `json:"result"`
		Error  *yahooError           `json:"error"`
	} `json:"quoteSummary"`
}

// Fundamentals implements FundamentalsProvider with the full quoteSummary
// call.
func (y *YahooClient) Fundamentals(ctx context.Context, symbol string) (domain.Fundamentals, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=summaryDetail,defaultKeyStatistics,assetProfile,financialData",
		y.baseURL, url.PathEscape(symbol))

	var qs quoteSummaryResponse
	if err := y.getJSON(ctx, u, &qs); err != nil {
		return domain.Fundamentals{}, fmt.Errorf("yahoo quoteSummary %s: %w", symbol, err)
	}
	if qs.QuoteSummary.Error != nil {
		return domain.Fundamentals{}, fmt.Errorf("yahoo quoteSummary %s: %s", symbol, qs.QuoteSummary.Error.Description)
	}
	if len(qs.QuoteSummary.Result) == 0 {
		return domain.Fundamentals{}, fmt.Errorf("yahoo quoteSummary %s: no result", symbol)
	}

	// Merge the modules into one bag; the first module holding a key wins.
	merged := fieldBag{}
	modules := qs.QuoteSummary.Result[0]
	for _, name := range summaryModules {
		for k, v := range modules[name] {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return fundamentalsFromBag(symbol, merged), nil
}

// FundamentalsLight implements FundamentalsProvider with the cheaper v7
// quote call. It carries fewer fields, so results usually land in the
// reduced tier.
func (y *YahooClient) FundamentalsLight(ctx context.Context, symbol string) (domain.Fundamentals, error) {
	bag, err := y.fetchQuoteBag(ctx, symbol)
	if err != nil {
		return domain.Fundamentals{}, err
	}
	return fundamentalsFromBag(symbol, bag), nil
}

func fundamentalsFromBag(symbol string, bag fieldBag) domain.Fundamentals {
	return domain.Fundamentals{
		Symbol:         symbol,
		MarketCap:      bag.firstOf("marketCap"),
		PE:             bag.firstOf("trailingPE", "forwardPE"),
		DividendYield:  bag.firstOf("dividendYield", "trailingAnnualDividendYield"),
		AvgVolume:      bag.firstOf("averageVolume", "averageDailyVolume3Month"),
		High52Week:     bag.firstOf("fiftyTwoWeekHigh"),
		Low52Week:      bag.firstOf("fiftyTwoWeekLow"),
		InsiderPct:     bag.firstOf("heldPercentInsiders"),
		InstitutionPct: bag.firstOf("heldPercentInstitutions"),
		Sector:         bag.str("sector"),
		Industry:       bag.str("industry"),
	}
}
