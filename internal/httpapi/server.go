package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketmood/internal/config"
	"marketmood/internal/display"
	"marketmood/internal/domain"
	"marketmood/internal/heatmap"
	"marketmood/internal/session"
	"marketmood/internal/store"
)

// heatmapTTL bounds how long a built heatmap is served before quotes are
// fetched again.
const heatmapTTL = 2 * time.Minute

// defaultTrendDays is the mood-history span when the client does not ask
// for one.
const defaultTrendDays = 30

// defaultRunListLimit caps the analyses endpoint when no limit is given.
const defaultRunListLimit = 20

// DashboardServer serves the dashboard HTTP API.
type DashboardServer struct {
	cfg      *config.Config
	session  *session.State
	market   session.Market
	heatmap  *heatmap.Builder
	archive  display.Archive
	analyses store.AnalysisStore
	log      *slog.Logger

	// Cache for built heatmaps. Key: comma-joined symbol list.
	heatmapCache sync.Map
}

type heatmapEntry struct {
	built time.Time
	hm    *heatmap.Heatmap
}

// NewDashboardServer creates a new dashboard HTTP server. The heatmap
// builder, archive, and analysis store may be nil; their endpoints then
// answer with service unavailable.
func NewDashboardServer(
	cfg *config.Config,
	sess *session.State,
	market session.Market,
	builder *heatmap.Builder,
	archive display.Archive,
	analyses store.AnalysisStore,
	log *slog.Logger,
) *DashboardServer {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	return &DashboardServer{
		cfg:      cfg,
		session:  sess,
		market:   market,
		heatmap:  builder,
		archive:  archive,
		analyses: analyses,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/tickers", s.handleTickers)
	mux.HandleFunc("GET /api/favorites", s.handleFavorites)
	mux.HandleFunc("PUT /api/favorites/{symbol}", s.handleAddFavorite)
	mux.HandleFunc("DELETE /api/favorites/{symbol}", s.handleRemoveFavorite)
	mux.HandleFunc("PUT /api/ticker/{symbol}", s.handleSelectTicker)
	mux.HandleFunc("POST /api/analyze/{symbol}", s.handleAnalyze)
	mux.HandleFunc("GET /api/quote/{symbol}", s.handleQuote)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /api/news/{symbol}", s.handleNews)
	mux.HandleFunc("GET /api/fundamentals/{symbol}", s.handleFundamentals)
	mux.HandleFunc("GET /api/analyses/{symbol}", s.handleAnalyses)
	mux.HandleFunc("GET /api/mood-history/{symbol}", s.handleMoodHistory)
	mux.HandleFunc("GET /api/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/events", s.handleEvents)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// pathSymbol extracts and normalizes the {symbol} path segment.
func pathSymbol(r *http.Request) string {
	return domain.NormalizeSymbol(r.PathValue("symbol"))
}

// queryInt parses a non-negative integer query param, returning def when
// absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return n, nil
}

// tickerList merges the configured tickers with the session's favorites,
// deduplicated and sorted.
func (s *DashboardServer) tickerList() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(s.cfg.Tickers))
	for _, sym := range s.cfg.Tickers {
		sym = domain.NormalizeSymbol(sym)
		if sym != "" && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	for _, sym := range s.session.Favorites() {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

func (s *DashboardServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	if snap.Favorites == nil {
		snap.Favorites = []string{}
	}
	writeJSON(w, DashboardResponse{Snapshot: snap, Tickers: s.tickerList()})
}

func (s *DashboardServer) handleTickers(w http.ResponseWriter, r *http.Request) {
	favs := s.session.Favorites()
	if favs == nil {
		favs = []string{}
	}
	writeJSON(w, TickersResponse{Tickers: s.tickerList(), Favorites: favs})
}

func (s *DashboardServer) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favs := s.session.Favorites()
	if favs == nil {
		favs = []string{}
	}
	writeJSON(w, FavoritesResponse{Favorites: favs})
}

func (s *DashboardServer) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	s.session.SetFavorite(r.Context(), symbol, true)
	w.WriteHeader(http.StatusNoContent)
}

func (s *DashboardServer) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	s.session.SetFavorite(r.Context(), symbol, false)
	w.WriteHeader(http.StatusNoContent)
}

func (s *DashboardServer) handleSelectTicker(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	s.session.SelectTicker(symbol)
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyze selects the symbol, applies optional window and article
// overrides, and runs a full analysis. A run already in flight answers
// with conflict rather than queueing.
func (s *DashboardServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err := domain.ParseWindow(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.session.SetWindow(window)
	}
	if raw := r.URL.Query().Get("articles"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid articles parameter")
			return
		}
		s.session.SetArticleCount(n)
	}
	s.session.SelectTicker(symbol)

	a, err := s.session.RunAnalysis(r.Context())
	if errors.Is(err, session.ErrAnalysisRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, a)
}

func (s *DashboardServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	q, err := s.market.Quote(r.Context(), symbol)
	if err != nil {
		s.log.Warn("quote fetch failed", "symbol", symbol, "error", err)
		writeJSON(w, QuoteResponse{
			Quote:   domain.Quote{Symbol: symbol, Source: domain.QuoteSourceUnavailable},
			Warning: fmt.Sprintf("quote unavailable: %v", err),
		})
		return
	}
	writeJSON(w, QuoteResponse{Quote: q})
}

func (s *DashboardServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	window, err := domain.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	series, err := s.market.PriceSeries(r.Context(), symbol, window)
	if err != nil {
		s.log.Warn("price history fetch failed", "symbol", symbol, "window", window, "error", err)
		resp := historyFromSeries(symbol, window, nil)
		resp.Warning = fmt.Sprintf("price history unavailable: %v", err)
		writeJSON(w, resp)
		return
	}
	writeJSON(w, historyFromSeries(symbol, window, series))
}

func (s *DashboardServer) handleNews(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	limit, err := queryInt(r, "limit", s.cfg.News.DefaultArticles)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit = s.cfg.ClampArticles(limit)

	items, err := s.market.News(r.Context(), symbol, limit)
	if err != nil {
		s.log.Warn("news fetch failed", "symbol", symbol, "error", err)
		writeJSON(w, NewsResponse{
			Symbol:   symbol,
			Articles: []domain.NewsItem{},
			Warning:  fmt.Sprintf("news unavailable: %v", err),
		})
		return
	}
	if items == nil {
		items = []domain.NewsItem{}
	}
	writeJSON(w, NewsResponse{Symbol: symbol, Articles: items})
}

func (s *DashboardServer) handleFundamentals(w http.ResponseWriter, r *http.Request) {
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	f, err := s.market.Fundamentals(r.Context(), symbol)
	resp := FundamentalsResponse{Fundamentals: f, Note: display.TierNote(f.Tier)}
	if resp.Symbol == "" {
		resp.Symbol = symbol
	}
	if err != nil {
		s.log.Warn("fundamentals fetch failed", "symbol", symbol, "tier", f.Tier, "error", err)
		resp.Warning = fmt.Sprintf("fundamentals unavailable: %v", err)
	}
	writeJSON(w, resp)
}

func (s *DashboardServer) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis store not configured")
		return
	}
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	limit, err := queryInt(r, "limit", defaultRunListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.analyses.ListAnalyses(r.Context(), symbol, limit)
	if err != nil {
		s.log.Error("listing analyses", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if runs == nil {
		runs = []store.AnalysisRecord{}
	}
	writeJSON(w, AnalysesResponse{Symbol: symbol, Runs: runs})
}

func (s *DashboardServer) handleMoodHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil && s.analyses == nil {
		writeError(w, http.StatusServiceUnavailable, "mood history not configured")
		return
	}
	symbol := pathSymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	days, err := queryInt(r, "days", defaultTrendDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var trend []store.DailyMood
	if s.archive != nil {
		trend, err = display.MoodTrend(s.archive, symbol, days)
		if err != nil {
			s.log.Error("reading news archive", "symbol", symbol, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read news archive")
			return
		}
	}
	// The archive only covers days the backfill ran; an empty trend falls
	// back to the recorded analysis runs.
	if len(trend) == 0 && s.analyses != nil {
		trend, err = s.analyses.MoodHistory(r.Context(), symbol, days)
		if err != nil {
			s.log.Error("aggregating analysis moods", "symbol", symbol, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read mood history")
			return
		}
	}
	if trend == nil {
		trend = []store.DailyMood{}
	}
	writeJSON(w, MoodHistoryResponse{Symbol: symbol, Days: trend})
}

func (s *DashboardServer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	if s.heatmap == nil {
		writeError(w, http.StatusServiceUnavailable, "heatmap not configured")
		return
	}
	symbols := s.tickerList()
	key := strings.Join(symbols, ",")
	if v, ok := s.heatmapCache.Load(key); ok {
		entry := v.(heatmapEntry)
		if time.Since(entry.built) < heatmapTTL {
			writeJSON(w, entry.hm)
			return
		}
	}
	hm, err := s.heatmap.Build(r.Context(), symbols)
	if err != nil {
		s.log.Error("building heatmap", "symbols", len(symbols), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build heatmap")
		return
	}
	s.heatmapCache.Store(key, heatmapEntry{built: time.Now(), hm: hm})
	writeJSON(w, hm)
}
