package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"marketmood/internal/config"
	"marketmood/internal/domain"
	"marketmood/internal/heatmap"
	"marketmood/internal/sentiment"
	"marketmood/internal/session"
	"marketmood/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMarket serves canned per-symbol data and counts calls. seriesGate,
// when set, blocks PriceSeries until the channel is closed.
type fakeMarket struct {
	mu         sync.Mutex
	series     map[string]domain.PriceSeries
	quotes     map[string]domain.Quote
	news       map[string][]domain.NewsItem
	funds      map[string]domain.Fundamentals
	seriesErr  error
	quoteErr   error
	newsErr    error
	seriesGate chan struct{}
	quoteCalls int
	newsLimit  int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		series: make(map[string]domain.PriceSeries),
		quotes: make(map[string]domain.Quote),
		news:   make(map[string][]domain.NewsItem),
		funds:  make(map[string]domain.Fundamentals),
	}
}

func (m *fakeMarket) PriceSeries(_ context.Context, symbol string, _ domain.Window) (domain.PriceSeries, error) {
	if m.seriesGate != nil {
		<-m.seriesGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seriesErr != nil {
		return nil, m.seriesErr
	}
	return m.series[symbol], nil
}

func (m *fakeMarket) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteCalls++
	if m.quoteErr != nil {
		return domain.Quote{}, m.quoteErr
	}
	q, ok := m.quotes[symbol]
	if !ok {
		return domain.Quote{}, errors.New("no quote")
	}
	return q, nil
}

func (m *fakeMarket) News(_ context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsLimit = limit
	if m.newsErr != nil {
		return nil, m.newsErr
	}
	items := m.news[symbol]
	if limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (m *fakeMarket) Fundamentals(_ context.Context, symbol string) (domain.Fundamentals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.funds[symbol]
	if !ok {
		return domain.Fundamentals{Symbol: symbol, Tier: domain.TierUnavailable}, errors.New("no fundamentals")
	}
	return f, nil
}

func (m *fakeMarket) countQuoteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quoteCalls
}

type fakeAnalyses struct {
	runs  []store.AnalysisRecord
	moods []store.DailyMood
	err   error
}

func (f *fakeAnalyses) SaveAnalysis(context.Context, *domain.Analysis) error { return nil }

func (f *fakeAnalyses) ListAnalyses(_ context.Context, _ string, limit int) ([]store.AnalysisRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeAnalyses) MoodHistory(context.Context, string, int) ([]store.DailyMood, error) {
	return f.moods, f.err
}

type testServer struct {
	srv     *DashboardServer
	sess    *session.State
	market  *fakeMarket
	archive *store.ParquetStore
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := newFakeMarket()
	cfg := config.Default()
	cfg.Tickers = []string{"AAPL", "MSFT"}
	analyzer := sentiment.NewAnalyzer(sentiment.NewLexiconClassifier(), quietLogger())
	sess := session.New(cfg, m, analyzer, session.Stores{}, quietLogger())
	archive := store.NewParquetStore(t.TempDir())
	builder := heatmap.NewBuilder(m, m, 2, quietLogger())
	srv := NewDashboardServer(cfg, sess, m, builder, archive, &fakeAnalyses{}, quietLogger())
	return &testServer{srv: srv, sess: sess, market: m, archive: archive, handler: srv.Handler()}
}

func (ts *testServer) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func testSeries(closes ...float64) domain.PriceSeries {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var s domain.PriceSeries
	for i, c := range closes {
		s = append(s, domain.Bar{Date: base.AddDate(0, 0, i), Open: c - 1, High: c + 1, Low: c - 2, Close: c})
	}
	return s
}

// testNews summaries are phrased for deterministic lexicon labels.
func testNews() []domain.NewsItem {
	return []domain.NewsItem{
		{Title: "earnings", Summary: "Shares surge after earnings beat", Source: "Reuters"},
		{Title: "forecast", Summary: "Quarterly results exceed forecasts", Source: "Yahoo Finance"},
		{Title: "guidance", Summary: "Stock plunges on weak guidance", Source: "Reuters"},
	}
}

func fullFunds(symbol, sector string, cap float64) domain.Fundamentals {
	return domain.Fundamentals{
		Symbol:     symbol,
		MarketCap:  domain.FloatFrom(cap),
		PE:         domain.FloatFrom(31.2),
		AvgVolume:  domain.FloatFrom(58e6),
		High52Week: domain.FloatFrom(237.2),
		Low52Week:  domain.FloatFrom(164.1),
		Sector:     sector,
		Tier:       domain.TierFull,
	}
}

func waitEvent(t *testing.T, ch <-chan session.Event, kind session.EventKind) session.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[DashboardResponse](t, rec)
	if resp.Ticker != "AAPL" {
		t.Errorf("ticker = %q, want AAPL", resp.Ticker)
	}
	if len(resp.Tickers) != 2 || resp.Tickers[0] != "AAPL" || resp.Tickers[1] != "MSFT" {
		t.Errorf("tickers = %v, want [AAPL MSFT]", resp.Tickers)
	}
	if resp.Running {
		t.Error("fresh session reports running")
	}
	if resp.LastAnalysis != nil {
		t.Error("fresh session has a last analysis")
	}
}

func TestTickersIncludeFavorites(t *testing.T) {
	ts := newTestServer(t)
	ts.sess.SetFavorite(context.Background(), "NVDA", true)

	rec := ts.do("GET", "/api/tickers")
	resp := decodeBody[TickersResponse](t, rec)
	want := []string{"AAPL", "MSFT", "NVDA"}
	if len(resp.Tickers) != len(want) {
		t.Fatalf("tickers = %v, want %v", resp.Tickers, want)
	}
	for i := range want {
		if resp.Tickers[i] != want[i] {
			t.Fatalf("tickers = %v, want %v", resp.Tickers, want)
		}
	}
	if len(resp.Favorites) != 1 || resp.Favorites[0] != "NVDA" {
		t.Errorf("favorites = %v, want [NVDA]", resp.Favorites)
	}
}

func TestFavoritesLifecycle(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do("PUT", "/api/favorites/nvda"); rec.Code != http.StatusNoContent {
		t.Fatalf("add status = %d, want 204", rec.Code)
	}
	resp := decodeBody[FavoritesResponse](t, ts.do("GET", "/api/favorites"))
	if len(resp.Favorites) != 1 || resp.Favorites[0] != "NVDA" {
		t.Fatalf("favorites = %v, want [NVDA]", resp.Favorites)
	}

	if rec := ts.do("DELETE", "/api/favorites/NVDA"); rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d, want 204", rec.Code)
	}
	rec := ts.do("GET", "/api/favorites")
	if !strings.Contains(rec.Body.String(), `"favorites":[]`) {
		t.Errorf("empty favorites not encoded as []: %s", rec.Body.String())
	}
}

func TestFavoriteSymbolRequired(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do("PUT", "/api/favorites/%20"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSelectTicker(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do("PUT", "/api/ticker/msft"); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := ts.sess.Ticker(); got != "MSFT" {
		t.Errorf("session ticker = %q, want MSFT", got)
	}
}

func TestAnalyze(t *testing.T) {
	ts := newTestServer(t)
	ts.market.series["AAPL"] = testSeries(100, 101, 102)
	ts.market.quotes["AAPL"] = domain.Quote{Symbol: "AAPL", Current: domain.FloatFrom(102), AsOf: time.Now()}
	ts.market.news["AAPL"] = testNews()
	ts.market.funds["AAPL"] = fullFunds("AAPL", "Technology", 3.0e12)

	rec := ts.do("POST", "/api/analyze/AAPL?window=5d&articles=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	a := decodeBody[domain.Analysis](t, rec)
	if a.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", a.Symbol)
	}
	if a.Window != domain.Window5D {
		t.Errorf("window = %q, want 5d", a.Window)
	}
	if a.Mood != domain.MoodBullish {
		t.Errorf("mood = %q, want %q", a.Mood, domain.MoodBullish)
	}
	if a.Counts.Positive != 2 || a.Counts.Negative != 1 {
		t.Errorf("counts = %+v, want 2 positive 1 negative", a.Counts)
	}
	if a.Fundamentals.Tier != domain.TierFull {
		t.Errorf("tier = %q, want %q", a.Fundamentals.Tier, domain.TierFull)
	}

	snap := ts.sess.Snapshot()
	if snap.Window != domain.Window5D || snap.ArticleCount != 10 {
		t.Errorf("session snapshot = %+v, want window 5d and 10 articles", snap)
	}
	if snap.LastAnalysis == nil {
		t.Error("last analysis not stored in session")
	}
}

func TestAnalyzeInvalidWindow(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do("POST", "/api/analyze/AAPL?window=2w"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeInvalidArticles(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do("POST", "/api/analyze/AAPL?articles=ten"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.market.seriesGate = make(chan struct{})

	id, events := ts.sess.Subscribe(8)
	defer ts.sess.Unsubscribe(id)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- ts.do("POST", "/api/analyze/AAPL")
	}()
	waitEvent(t, events, session.EventAnalysisStarted)

	if rec := ts.do("POST", "/api/analyze/AAPL"); rec.Code != http.StatusConflict {
		t.Errorf("concurrent status = %d, want 409", rec.Code)
	}

	close(ts.market.seriesGate)
	if rec := <-done; rec.Code != http.StatusOK {
		t.Errorf("first run status = %d, want 200", rec.Code)
	}
}

func TestQuote(t *testing.T) {
	ts := newTestServer(t)
	ts.market.quotes["AAPL"] = domain.Quote{
		Symbol:    "AAPL",
		Current:   domain.FloatFrom(210.45),
		Change:    domain.FloatFrom(2.15),
		ChangePct: domain.FloatFrom(1.03),
		AsOf:      time.Now(),
	}

	rec := ts.do("GET", "/api/quote/aapl")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[QuoteResponse](t, rec)
	if resp.Symbol != "AAPL" || !resp.Current.Valid || resp.Current.Value != 210.45 {
		t.Errorf("quote = %+v, want AAPL at 210.45", resp.Quote)
	}
	if resp.Warning != "" {
		t.Errorf("unexpected warning %q", resp.Warning)
	}
}

func TestQuoteUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.market.quoteErr = errors.New("feed down")

	rec := ts.do("GET", "/api/quote/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with warning", rec.Code)
	}
	resp := decodeBody[QuoteResponse](t, rec)
	if resp.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", resp.Symbol)
	}
	if resp.Current.Valid {
		t.Error("failed quote still carries a price")
	}
	if resp.Source != domain.QuoteSourceUnavailable {
		t.Errorf("source = %q, want %q", resp.Source, domain.QuoteSourceUnavailable)
	}
	if !strings.Contains(resp.Warning, "quote unavailable") {
		t.Errorf("warning = %q, want quote unavailable", resp.Warning)
	}
}

func TestHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.market.series["AAPL"] = testSeries(100, 104, 102)

	rec := ts.do("GET", "/api/history/AAPL?window=5d")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[HistoryResponse](t, rec)
	if resp.Window != domain.Window5D {
		t.Errorf("window = %q, want 5d", resp.Window)
	}
	if len(resp.Series) != 3 {
		t.Fatalf("series length = %d, want 3", len(resp.Series))
	}
	if !resp.Change.Valid || resp.Change.Value != 2 {
		t.Errorf("change = %+v, want 2 across the window", resp.Change)
	}
	if !resp.ChangePct.Valid || resp.ChangePct.Value != 2 {
		t.Errorf("changePct = %+v, want 2", resp.ChangePct)
	}
	if resp.NoData {
		t.Error("noData set on a populated series")
	}
}

func TestHistoryNoData(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/history/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"series":[]`) {
		t.Errorf("empty series not encoded as []: %s", rec.Body.String())
	}
	resp := decodeBody[HistoryResponse](t, rec)
	if !resp.NoData {
		t.Error("noData not set on an empty series")
	}
	if resp.Window != domain.DefaultWindow {
		t.Errorf("window = %q, want default %q", resp.Window, domain.DefaultWindow)
	}
}

func TestHistoryFetchFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.market.seriesErr = errors.New("rate limited")

	rec := ts.do("GET", "/api/history/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with warning", rec.Code)
	}
	resp := decodeBody[HistoryResponse](t, rec)
	if !resp.NoData {
		t.Error("noData not set after fetch failure")
	}
	if !strings.Contains(resp.Warning, "price history unavailable") {
		t.Errorf("warning = %q, want price history unavailable", resp.Warning)
	}
}

func TestHistoryInvalidWindow(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do("GET", "/api/history/AAPL?window=2w"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestNewsClampsLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.market.news["AAPL"] = testNews()

	rec := ts.do("GET", "/api/news/AAPL?limit=500")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := ts.market.newsLimit; got != 50 {
		t.Errorf("fetch limit = %d, want clamped to 50", got)
	}

	if rec := ts.do("GET", "/api/news/AAPL?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestNewsUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.market.newsErr = errors.New("feed down")

	rec := ts.do("GET", "/api/news/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with warning", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"articles":[]`) {
		t.Errorf("failed news not encoded as []: %s", rec.Body.String())
	}
}

func TestFundamentals(t *testing.T) {
	ts := newTestServer(t)
	ts.market.funds["AAPL"] = fullFunds("AAPL", "Technology", 3.0e12)

	rec := ts.do("GET", "/api/fundamentals/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[FundamentalsResponse](t, rec)
	if resp.Tier != domain.TierFull {
		t.Errorf("tier = %q, want %q", resp.Tier, domain.TierFull)
	}
	if resp.Note != "full data" {
		t.Errorf("note = %q, want full data", resp.Note)
	}
}

func TestFundamentalsUnavailable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/fundamentals/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with tier marker", rec.Code)
	}
	resp := decodeBody[FundamentalsResponse](t, rec)
	if resp.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", resp.Symbol)
	}
	if resp.Tier != domain.TierUnavailable {
		t.Errorf("tier = %q, want %q", resp.Tier, domain.TierUnavailable)
	}
	if !strings.Contains(resp.Warning, "fundamentals unavailable") {
		t.Errorf("warning = %q, want fundamentals unavailable", resp.Warning)
	}
}

func TestAnalysesEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.analyses = &fakeAnalyses{runs: []store.AnalysisRecord{
		{ID: 2, Symbol: "AAPL", Mood: domain.MoodBullish, Articles: 12},
		{ID: 1, Symbol: "AAPL", Mood: domain.MoodNeutral, Articles: 8},
	}}

	rec := ts.do("GET", "/api/analyses/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[AnalysesResponse](t, rec)
	if len(resp.Runs) != 2 || resp.Runs[0].ID != 2 {
		t.Errorf("runs = %+v, want 2 newest first", resp.Runs)
	}
}

func TestAnalysesNotConfigured(t *testing.T) {
	ts := newTestServer(t)
	srv := NewDashboardServer(ts.srv.cfg, ts.sess, ts.market, nil, nil, nil, quietLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/analyses/AAPL", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestMoodHistory(t *testing.T) {
	ts := newTestServer(t)
	day1 := time.Date(2025, 6, 16, 21, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	neg := []domain.NewsItem{
		{Title: "miss", Summary: "Earnings miss estimates", PublishedAt: day1},
		{Title: "cut", Summary: "Guidance cut sharply", PublishedAt: day1},
	}
	pos := []domain.NewsItem{
		{Title: "beat", Summary: "Earnings beat estimates", PublishedAt: day2},
	}
	if err := ts.archive.SaveNews("AAPL", day1, neg, []domain.SentimentResult{
		{Title: "miss", Label: domain.SentimentNegative, Confidence: 0.9},
		{Title: "cut", Label: domain.SentimentNegative, Confidence: 0.8},
	}); err != nil {
		t.Fatalf("seeding day1: %v", err)
	}
	if err := ts.archive.SaveNews("AAPL", day2, pos, []domain.SentimentResult{
		{Title: "beat", Label: domain.SentimentPositive, Confidence: 0.95},
	}); err != nil {
		t.Fatalf("seeding day2: %v", err)
	}

	rec := ts.do("GET", "/api/mood-history/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[MoodHistoryResponse](t, rec)
	if len(resp.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(resp.Days))
	}
	if resp.Days[0].Mood != domain.MoodBearish || resp.Days[1].Mood != domain.MoodBullish {
		t.Errorf("moods = %q then %q, want bearish then bullish", resp.Days[0].Mood, resp.Days[1].Mood)
	}
}

func TestMoodHistoryEmpty(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/mood-history/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"days":[]`) {
		t.Errorf("empty trend not encoded as []: %s", rec.Body.String())
	}
}

func TestMoodHistoryFromAnalysisLog(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.analyses = &fakeAnalyses{moods: []store.DailyMood{
		{Date: time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), Mood: domain.MoodBearish},
		{Date: time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC), Mood: domain.MoodBullish},
	}}

	// Nothing archived for the symbol: the trend comes from the runs.
	rec := ts.do("GET", "/api/mood-history/AAPL")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[MoodHistoryResponse](t, rec)
	if len(resp.Days) != 2 || resp.Days[1].Mood != domain.MoodBullish {
		t.Errorf("days = %+v, want the two recorded runs", resp.Days)
	}
}

func TestHeatmap(t *testing.T) {
	ts := newTestServer(t)
	ts.market.quotes["AAPL"] = domain.Quote{Symbol: "AAPL", ChangePct: domain.FloatFrom(1.2)}
	ts.market.quotes["MSFT"] = domain.Quote{Symbol: "MSFT", ChangePct: domain.FloatFrom(-0.4)}
	ts.market.funds["AAPL"] = fullFunds("AAPL", "Technology", 3.0e12)
	ts.market.funds["MSFT"] = fullFunds("MSFT", "Technology", 3.2e12)

	rec := ts.do("GET", "/api/heatmap")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	hm := decodeBody[heatmap.Heatmap](t, rec)
	if len(hm.Sectors) != 1 || hm.Sectors[0].Name != "Technology" {
		t.Fatalf("sectors = %+v, want one Technology sector", hm.Sectors)
	}
	if len(hm.Sectors[0].Tiles) != 2 {
		t.Errorf("tiles = %d, want 2", len(hm.Sectors[0].Tiles))
	}
}

func TestHeatmapCached(t *testing.T) {
	ts := newTestServer(t)
	ts.market.quotes["AAPL"] = domain.Quote{Symbol: "AAPL", ChangePct: domain.FloatFrom(1.2)}
	ts.market.quotes["MSFT"] = domain.Quote{Symbol: "MSFT", ChangePct: domain.FloatFrom(-0.4)}
	ts.market.funds["AAPL"] = fullFunds("AAPL", "Technology", 3.0e12)
	ts.market.funds["MSFT"] = fullFunds("MSFT", "Technology", 3.2e12)

	ts.do("GET", "/api/heatmap")
	after := ts.market.countQuoteCalls()
	ts.do("GET", "/api/heatmap")
	if got := ts.market.countQuoteCalls(); got != after {
		t.Errorf("quote calls = %d after cached request, want %d", got, after)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("OPTIONS", "/api/dashboard")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want *", got)
	}
}

func TestEventsWebSocket(t *testing.T) {
	ts := newTestServer(t)
	live := httptest.NewServer(ts.handler)
	defer live.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(live.URL, "http") + "/api/events"
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	got := make(chan session.Event, 1)
	go func() {
		var evt session.Event
		if err := wsjson.Read(ctx, c, &evt); err == nil {
			got <- evt
		}
	}()

	// The subscription races the dial; keep changing the ticker until a
	// frame comes through.
	symbols := []string{"MSFT", "AAPL"}
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case evt := <-got:
			if evt.Kind != session.EventTickerSelected {
				t.Fatalf("event kind = %q, want %q", evt.Kind, session.EventTickerSelected)
			}
			if evt.Symbol != "MSFT" && evt.Symbol != "AAPL" {
				t.Fatalf("event symbol = %q, want MSFT or AAPL", evt.Symbol)
			}
			return
		case <-tick.C:
			ts.sess.SelectTicker(symbols[i%2])
		case <-ctx.Done():
			t.Fatal("timed out waiting for websocket event")
		}
	}
}
