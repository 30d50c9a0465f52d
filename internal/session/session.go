// Package session holds the shared application state for the dashboard:
// the selected ticker, window, article count, favorites, and the last
// analysis, with named transitions and pub/sub events consumed by the
// HTTP API, WebSocket stream, and TUI.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"marketmood/internal/config"
	"marketmood/internal/domain"
	"marketmood/internal/sentiment"
	"marketmood/internal/store"
)

// Market is the slice of the fetch pipeline a session drives.
type Market interface {
	PriceSeries(ctx context.Context, symbol string, window domain.Window) (domain.PriceSeries, error)
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
	News(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error)
	Fundamentals(ctx context.Context, symbol string) (domain.Fundamentals, error)
}

// NewsArchive persists fetched articles together with their
// classification outcome.
type NewsArchive interface {
	SaveNews(symbol string, asOf time.Time, items []domain.NewsItem, results []domain.SentimentResult) error
}

// Stores groups the optional persistence backends. Any field may be nil;
// the session then keeps that concern in memory only.
type Stores struct {
	Favorites store.FavoriteStore
	Analyses  store.AnalysisStore
	Archive   NewsArchive
}

// State is the application state shared by every frontend. All mutations
// go through the named transition methods, which publish events to
// subscribers.
type State struct {
	cfg      *config.Config
	market   Market
	analyzer *sentiment.Analyzer
	stores   Stores
	log      *slog.Logger

	mu        sync.RWMutex
	ticker    string
	window    domain.Window
	articles  int
	favorites []string
	last      *domain.Analysis
	running   bool

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// New creates a session. The ticker defaults to the first configured
// symbol and the article count to the configured default. Favorites are
// loaded separately via LoadFavorites.
func New(cfg *config.Config, m Market, a *sentiment.Analyzer, st Stores, log *slog.Logger) *State {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	s := &State{
		cfg:      cfg,
		market:   m,
		analyzer: a,
		stores:   st,
		log:      log,
		window:   domain.DefaultWindow,
		articles: cfg.News.DefaultArticles,
		subs:     make(map[int]chan Event),
	}
	if len(cfg.Tickers) > 0 {
		s.ticker = domain.NormalizeSymbol(cfg.Tickers[0])
	}
	return s
}

// LoadFavorites fills the in-memory favorites set from the store. Call
// once at startup; a nil favorites store is a no-op.
func (s *State) LoadFavorites(ctx context.Context) error {
	if s.stores.Favorites == nil {
		return nil
	}
	favs, err := s.stores.Favorites.ListFavorites(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.favorites = favs
	s.mu.Unlock()
	return nil
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Ticker       string           `json:"ticker"`
	Window       domain.Window    `json:"window"`
	ArticleCount int              `json:"articleCount"`
	Favorites    []string         `json:"favorites"`
	Running      bool             `json:"running"`
	LastAnalysis *domain.Analysis `json:"lastAnalysis,omitempty"`
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Ticker:       s.ticker,
		Window:       s.window,
		ArticleCount: s.articles,
		Favorites:    append([]string(nil), s.favorites...),
		Running:      s.running,
		LastAnalysis: s.last,
	}
}

// Ticker returns the currently selected symbol.
func (s *State) Ticker() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticker
}

// Favorites returns a copy of the favorites set, alphabetical.
func (s *State) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.favorites...)
}

// IsFavorite reports whether symbol is in the favorites set.
func (s *State) IsFavorite(symbol string) bool {
	symbol = domain.NormalizeSymbol(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.favorites, symbol)
}

// SelectTicker makes symbol the active ticker. The symbol is normalized;
// an empty symbol is a no-op.
func (s *State) SelectTicker(symbol string) string {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return s.Ticker()
	}
	s.mu.Lock()
	changed := s.ticker != symbol
	s.ticker = symbol
	s.mu.Unlock()
	if changed {
		s.publish(Event{Kind: EventTickerSelected, Symbol: symbol})
	}
	return symbol
}

// SetWindow sets the price-history window for subsequent runs.
func (s *State) SetWindow(w domain.Window) {
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
}

// SetArticleCount sets how many articles the next run fetches, clamped
// to the configured bounds. Returns the applied value.
func (s *State) SetArticleCount(n int) int {
	n = s.cfg.ClampArticles(n)
	s.mu.Lock()
	s.articles = n
	s.mu.Unlock()
	return n
}

// ToggleFavorite flips symbol's membership in the favorites set and
// reports whether it is now a favorite. The store write is best-effort:
// a failure is logged and the in-memory set still changes.
func (s *State) ToggleFavorite(ctx context.Context, symbol string) bool {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return false
	}
	s.mu.Lock()
	fav := !contains(s.favorites, symbol)
	s.applyFavorite(symbol, fav)
	list := append([]string(nil), s.favorites...)
	s.mu.Unlock()

	s.persistFavorite(ctx, symbol, fav)
	s.publish(Event{Kind: EventFavoritesChanged, Symbol: symbol, Favorites: list})
	return fav
}

// SetFavorite adds or removes symbol idempotently. No event is published
// when the set is already in the requested state.
func (s *State) SetFavorite(ctx context.Context, symbol string, fav bool) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return
	}
	s.mu.Lock()
	if contains(s.favorites, symbol) == fav {
		s.mu.Unlock()
		return
	}
	s.applyFavorite(symbol, fav)
	list := append([]string(nil), s.favorites...)
	s.mu.Unlock()

	s.persistFavorite(ctx, symbol, fav)
	s.publish(Event{Kind: EventFavoritesChanged, Symbol: symbol, Favorites: list})
}

// applyFavorite mutates the favorites slice. Callers must hold mu.
func (s *State) applyFavorite(symbol string, fav bool) {
	if fav {
		s.favorites = append(s.favorites, symbol)
		sort.Strings(s.favorites)
		return
	}
	kept := s.favorites[:0]
	for _, f := range s.favorites {
		if f != symbol {
			kept = append(kept, f)
		}
	}
	s.favorites = kept
}

func (s *State) persistFavorite(ctx context.Context, symbol string, fav bool) {
	if s.stores.Favorites == nil {
		return
	}
	var err error
	if fav {
		err = s.stores.Favorites.AddFavorite(ctx, symbol)
	} else {
		err = s.stores.Favorites.RemoveFavorite(ctx, symbol)
	}
	if err != nil {
		s.log.Warn("persisting favorite failed", "symbol", symbol, "favorite", fav, "err", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
