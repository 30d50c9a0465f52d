// One-shot tool: build the per-day news archive that feeds mood history.
//
// For each symbol, fetches recent news from the configured provider and
// classifies every article; the labelled rows merge into the per-day
// parquet archive. Re-running is safe: rows merge by title. Run daily
// (cron) to accumulate the trend the mood-history endpoint serves.
//
// Usage:
//
//	go build -o bin/mood-backfill ./cmd/mood-backfill/
//	bin/mood-backfill [-n 5] [-articles 30] [-bars] [-force] [SYMBOL ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"marketmood/internal/config"
	"marketmood/internal/domain"
	"marketmood/internal/market"
	"marketmood/internal/sentiment"
	"marketmood/internal/store"
	"marketmood/internal/util"
)

func main() {
	n := flag.Int("n", 0, "max number of symbols to process (0 = all)")
	articles := flag.Int("articles", 0, "articles to fetch per symbol (0 = config max)")
	bars := flag.Bool("bars", false, "also archive the full daily bar history")
	force := flag.Bool("force", false, "reprocess symbols already archived today")
	flag.Parse()

	cfgPath := "config/marketmood.yaml"
	explicit := os.Getenv("MARKETMOOD_CONFIG")
	if explicit != "" {
		cfgPath = explicit
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) && explicit == "" {
			cfg = config.Default()
		} else {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	logger := util.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := newProvider(cfg, logger)
	analyzer := sentiment.NewAnalyzer(newClassifier(cfg.Classifier), logger)
	archive := store.NewParquetStore(cfg.Storage.DataDir)

	symbols := symbolList(ctx, cfg, flag.Args(), logger)
	if len(symbols) == 0 {
		slog.Info("no symbols to process")
		return
	}

	// Filter out symbols already archived today (unless -force).
	today := time.Now().UTC().Format("2006-01-02")
	var todo []string
	for _, sym := range symbols {
		if !*force {
			dates, err := archive.ListNewsDates(sym)
			if err == nil && len(dates) > 0 && dates[len(dates)-1] == today {
				continue // already done
			}
		}
		todo = append(todo, sym)
	}
	if *n > 0 && len(todo) > *n {
		todo = todo[:*n]
	}

	limit := *articles
	if limit <= 0 {
		limit = cfg.News.MaxArticles
	}
	limit = cfg.ClampArticles(limit)

	slog.Info("mood backfill", "symbols", len(symbols), "todo", len(todo),
		"articles_per_symbol", limit, "bars", *bars, "force", *force)
	if len(todo) == 0 {
		slog.Info("all symbols already archived today")
		return
	}

	// Process concurrently, a few symbols at a time.
	var mu sync.Mutex
	var archived, failed, totalArticles int
	sem := make(chan struct{}, 4)
	var wg sync.WaitGroup

	for _, sym := range todo {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			count, err := processSymbol(ctx, provider, analyzer, archive, sym, limit, *bars)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				slog.Error("symbol failed", "symbol", sym, "error", err)
				return
			}
			archived++
			totalArticles += count
			slog.Info("archived", "symbol", sym, "articles", count)
		}(sym)
	}
	wg.Wait()

	slog.Info("backfill complete", "archived", archived, "failed", failed, "articles", totalArticles)
	if failed > 0 {
		os.Exit(1)
	}
}

// symbolList returns the symbols to process: the positional arguments when
// given, otherwise the configured tickers plus any stored favorites.
func symbolList(ctx context.Context, cfg *config.Config, args []string, logger *slog.Logger) []string {
	seen := make(map[string]bool)
	var symbols []string
	add := func(s string) {
		s = domain.NormalizeSymbol(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		symbols = append(symbols, s)
	}

	if len(args) > 0 {
		for _, a := range args {
			add(a)
		}
		return symbols
	}

	for _, t := range cfg.Tickers {
		add(t)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Warn("favorites unavailable, using configured tickers only", "err", err)
	} else {
		defer db.Close()
		if favs, err := db.ListFavorites(ctx); err == nil {
			for _, f := range favs {
				add(f)
			}
		}
	}
	sort.Strings(symbols)
	return symbols
}

// processSymbol runs one symbol end to end and returns the number of
// articles archived.
func processSymbol(ctx context.Context, provider market.Provider, analyzer *sentiment.Analyzer,
	archive *store.ParquetStore, sym string, limit int, bars bool) (int, error) {

	var items []domain.NewsItem
	err := util.Retry(ctx, 3, 2*time.Second, func() error {
		var ferr error
		items, ferr = provider.News(ctx, sym, limit)
		return ferr
	})
	if err != nil {
		return 0, fmt.Errorf("fetching news: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	results := analyzer.Run(ctx, items, nil)
	if err := archive.SaveNews(sym, time.Now(), items, results); err != nil {
		return 0, fmt.Errorf("saving news: %w", err)
	}

	if bars {
		series, err := provider.Bars(ctx, sym, domain.WindowMax)
		if err != nil {
			slog.Warn("bar history unavailable", "symbol", sym, "err", err)
		} else if err := archive.SaveBars(sym, series); err != nil {
			return len(items), fmt.Errorf("saving bars: %w", err)
		}
	}

	return len(items), nil
}

// newProvider builds the market data provider named in the config.
func newProvider(cfg *config.Config, logger *slog.Logger) market.Provider {
	switch cfg.Provider.Name {
	case "alpaca":
		return market.NewAlpacaProvider(cfg.Alpaca, logger)
	default:
		return market.NewYahooClient(cfg.Provider, logger)
	}
}

// newClassifier builds the sentiment classifier named in the config.
func newClassifier(cfg config.Classifier) sentiment.Classifier {
	if cfg.Kind == "lexicon" {
		return sentiment.NewLexiconClassifier()
	}
	var opts []sentiment.ServerOption
	if cfg.BaseURL != "" {
		opts = append(opts, sentiment.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, sentiment.WithModel(cfg.Model))
	}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, sentiment.WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second))
	}
	return sentiment.NewServerClassifier(opts...)
}
