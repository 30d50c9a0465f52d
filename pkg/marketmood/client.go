// Package marketmood provides a Go SDK for the marketmood-server API.
//
// The client mirrors the server's wire types rather than importing them,
// so it can be consumed from outside this module. Optional numbers are
// pointers: nil means the server reported the field as absent.
package marketmood

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Bar is one daily OHLC row.
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Quote is a best-effort quote snapshot. Source is "bars" when the server
// derived it from the price series after the live call failed.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Current   *float64  `json:"current"`
	Previous  *float64  `json:"previous"`
	Open      *float64  `json:"open"`
	DayHigh   *float64  `json:"dayHigh"`
	DayLow    *float64  `json:"dayLow"`
	Change    *float64  `json:"change"`
	ChangePct *float64  `json:"changePct"`
	Source    string    `json:"source,omitempty"`
	AsOf      time.Time `json:"asOf"`
	Warning   string    `json:"warning,omitempty"`
}

// History is a price series with the change across its window.
type History struct {
	Symbol    string   `json:"symbol"`
	Window    string   `json:"window"`
	Series    []Bar    `json:"series"`
	Change    *float64 `json:"change"`
	ChangePct *float64 `json:"changePct"`
	NoData    bool     `json:"noData,omitempty"`
	Warning   string   `json:"warning,omitempty"`
}

// NewsItem is one article headline with its summary.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// News holds recent articles for a symbol.
type News struct {
	Symbol   string     `json:"symbol"`
	Articles []NewsItem `json:"articles"`
	Warning  string     `json:"warning,omitempty"`
}

// Fundamentals holds company metrics. Tier is "full", "reduced",
// "unavailable", or "not_fetched".
type Fundamentals struct {
	Symbol         string   `json:"symbol"`
	MarketCap      *float64 `json:"marketCap"`
	PE             *float64 `json:"pe"`
	DividendYield  *float64 `json:"dividendYield"`
	AvgVolume      *float64 `json:"avgVolume"`
	High52Week     *float64 `json:"high52w"`
	Low52Week      *float64 `json:"low52w"`
	InsiderPct     *float64 `json:"insiderPct"`
	InstitutionPct *float64 `json:"institutionPct"`
	Sector         string   `json:"sector,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	Tier           string   `json:"tier"`
	Note           string   `json:"note,omitempty"`
	Warning        string   `json:"warning,omitempty"`
}

// SentimentResult is one classified article.
type SentimentResult struct {
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// MoodCounts tallies article labels.
type MoodCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Analysis is the result of one end-to-end run. Mood is "bullish",
// "bearish", or "neutral".
type Analysis struct {
	Symbol       string            `json:"symbol"`
	Window       string            `json:"window"`
	RanAt        time.Time         `json:"ranAt"`
	Series       []Bar             `json:"series"`
	Quote        Quote             `json:"quote"`
	Results      []SentimentResult `json:"results"`
	Counts       MoodCounts        `json:"counts"`
	Mood         string            `json:"mood"`
	Fundamentals Fundamentals      `json:"fundamentals"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// Dashboard is the session snapshot plus the selectable tickers.
type Dashboard struct {
	Ticker       string    `json:"ticker"`
	Window       string    `json:"window"`
	ArticleCount int       `json:"articleCount"`
	Favorites    []string  `json:"favorites"`
	Running      bool      `json:"running"`
	LastAnalysis *Analysis `json:"lastAnalysis,omitempty"`
	Tickers      []string  `json:"tickers"`
}

// Tickers lists selectable symbols and the favorites among them.
type Tickers struct {
	Tickers   []string `json:"tickers"`
	Favorites []string `json:"favorites"`
}

// AnalysisRun is the stored summary of one past run.
type AnalysisRun struct {
	ID       int64      `json:"id"`
	Symbol   string     `json:"symbol"`
	Window   string     `json:"window"`
	RanAt    time.Time  `json:"ranAt"`
	Mood     string     `json:"mood"`
	Counts   MoodCounts `json:"counts"`
	Articles int        `json:"articles"`
	Tier     string     `json:"tier"`
}

// DailyMood is the aggregated mood for one calendar day.
type DailyMood struct {
	Date   time.Time  `json:"date"`
	Counts MoodCounts `json:"counts"`
	Mood   string     `json:"mood"`
}

// MoodHistory is the per-day mood trend for a symbol.
type MoodHistory struct {
	Symbol string      `json:"symbol"`
	Days   []DailyMood `json:"days"`
}

// HeatmapTile is one symbol cell of the sector heatmap.
type HeatmapTile struct {
	Symbol    string   `json:"symbol"`
	Sector    string   `json:"sector"`
	Price     *float64 `json:"price"`
	ChangePct *float64 `json:"changePct"`
	MarketCap *float64 `json:"marketCap"`
}

// HeatmapSector groups tiles with their average change.
type HeatmapSector struct {
	Name         string        `json:"name"`
	AvgChangePct *float64      `json:"avgChangePct"`
	Tiles        []HeatmapTile `json:"tiles"`
}

// Heatmap is the assembled sector view.
type Heatmap struct {
	AsOf    time.Time       `json:"asOf"`
	Sectors []HeatmapSector `json:"sectors"`
	Skipped []string        `json:"skipped,omitempty"`
}

// Event is one session event pushed over the event stream. Kind is one of
// ticker_selected, favorites_changed, analysis_started,
// article_classified, analysis_finished.
type Event struct {
	Kind      string   `json:"kind"`
	Symbol    string   `json:"symbol,omitempty"`
	Favorites []string `json:"favorites,omitempty"`
	Done      int      `json:"done,omitempty"`
	Total     int      `json:"total,omitempty"`
	Mood      string   `json:"mood,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client provides a Go SDK for the marketmood-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new marketmood API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do issues a request and decodes the JSON response into dst, which may
// be nil for endpoints that answer 204.
func (c *Client) do(ctx context.Context, method, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// errorMessage extracts the server's {"error": ...} message, falling back
// to a body snippet.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// Dashboard retrieves the session snapshot and ticker list.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/dashboard", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Tickers retrieves the selectable symbols.
func (c *Client) Tickers(ctx context.Context) (*Tickers, error) {
	var t Tickers
	if err := c.do(ctx, http.MethodGet, "/api/tickers", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Favorites retrieves the favorite symbols.
func (c *Client) Favorites(ctx context.Context) ([]string, error) {
	var resp struct {
		Favorites []string `json:"favorites"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/favorites", &resp); err != nil {
		return nil, err
	}
	return resp.Favorites, nil
}

// AddFavorite marks a symbol as favorite.
func (c *Client) AddFavorite(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodPut, "/api/favorites/"+url.PathEscape(symbol), nil)
}

// RemoveFavorite unmarks a favorite symbol.
func (c *Client) RemoveFavorite(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodDelete, "/api/favorites/"+url.PathEscape(symbol), nil)
}

// SelectTicker switches the server session to the given symbol.
func (c *Client) SelectTicker(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodPut, "/api/ticker/"+url.PathEscape(symbol), nil)
}

// AnalyzeOptions tune an analysis run. Zero values keep the server's
// current session settings.
type AnalyzeOptions struct {
	Window   string
	Articles int
}

// Analyze selects the symbol and runs a full analysis, blocking until it
// finishes. A run already in flight surfaces as an APIError with status
// 409.
func (c *Client) Analyze(ctx context.Context, symbol string, opts AnalyzeOptions) (*Analysis, error) {
	q := url.Values{}
	if opts.Window != "" {
		q.Set("window", opts.Window)
	}
	if opts.Articles > 0 {
		q.Set("articles", strconv.Itoa(opts.Articles))
	}
	path := "/api/analyze/" + url.PathEscape(symbol)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var a Analysis
	if err := c.do(ctx, http.MethodPost, path, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Quote retrieves the latest quote for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var q Quote
	if err := c.do(ctx, http.MethodGet, "/api/quote/"+url.PathEscape(symbol), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// History retrieves the price series for a symbol. An empty window keeps
// the server default.
func (c *Client) History(ctx context.Context, symbol, window string) (*History, error) {
	path := "/api/history/" + url.PathEscape(symbol)
	if window != "" {
		path += "?window=" + url.QueryEscape(window)
	}
	var h History
	if err := c.do(ctx, http.MethodGet, path, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// News retrieves recent articles for a symbol. Limit 0 keeps the server
// default.
func (c *Client) News(ctx context.Context, symbol string, limit int) (*News, error) {
	path := "/api/news/" + url.PathEscape(symbol)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var n News
	if err := c.do(ctx, http.MethodGet, path, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Fundamentals retrieves company metrics for a symbol.
func (c *Client) Fundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	var f Fundamentals
	if err := c.do(ctx, http.MethodGet, "/api/fundamentals/"+url.PathEscape(symbol), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Analyses retrieves recent analysis runs for a symbol, newest first.
// Limit 0 keeps the server default.
func (c *Client) Analyses(ctx context.Context, symbol string, limit int) ([]AnalysisRun, error) {
	path := "/api/analyses/" + url.PathEscape(symbol)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Runs []AnalysisRun `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// MoodHistory retrieves the per-day mood trend for a symbol. Days 0 keeps
// the server default.
func (c *Client) MoodHistory(ctx context.Context, symbol string, days int) (*MoodHistory, error) {
	path := "/api/mood-history/" + url.PathEscape(symbol)
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var m MoodHistory
	if err := c.do(ctx, http.MethodGet, path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Heatmap retrieves the sector heatmap.
func (c *Client) Heatmap(ctx context.Context) (*Heatmap, error) {
	var h Heatmap
	if err := c.do(ctx, http.MethodGet, "/api/heatmap", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// EventStream is an open WebSocket subscription to session events.
type EventStream struct {
	conn *websocket.Conn
}

// Events opens the event stream. The caller must Close it.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	u := c.baseURL + "/api/events"
	if strings.HasPrefix(u, "http") {
		u = "ws" + strings.TrimPrefix(u, "http")
	}
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	return &EventStream{conn: conn}, nil
}

// Next blocks until the next event arrives or ctx is done.
func (s *EventStream) Next(ctx context.Context) (Event, error) {
	var evt Event
	if err := wsjson.Read(ctx, s.conn, &evt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// Close ends the subscription.
func (s *EventStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
