package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketmood/internal/config"
	"marketmood/internal/heatmap"
	"marketmood/internal/httpapi"
	"marketmood/internal/market"
	"marketmood/internal/sentiment"
	"marketmood/internal/session"
	"marketmood/internal/store"
	"marketmood/internal/util"
)

func main() {
	// Load config.
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
			log.Fatalf("loading config: %v", err)
		}
	}

	// Setup logging.
	logFileName := fmt.Sprintf("/tmp/marketmood-server-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := util.NewLogger(w, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// Stores.
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sqlite store: %v", err)
	}
	defer db.Close()
	ps := store.NewParquetStore(cfg.Storage.DataDir)

	// Market pipeline, classifier, session.
	pipeline := market.NewPipeline(newProvider(cfg, logger), ps, cfg.Fundamentals.MinFullFields, logger)
	analyzer := sentiment.NewAnalyzer(newClassifier(cfg.Classifier), logger)
	sess := session.New(cfg, pipeline, analyzer, session.Stores{
		Favorites: db,
		Analyses:  db,
		Archive:   ps,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sess.LoadFavorites(ctx); err != nil {
		logger.Warn("loading favorites", "error", err)
	}

	builder := heatmap.NewBuilder(pipeline, pipeline, 0, logger)
	srv := httpapi.NewDashboardServer(cfg, sess, pipeline, builder, ps, db, logger)

	// Start HTTP server.
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("marketmood server listening", "addr", httpServer.Addr, "provider", cfg.Provider.Name)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down marketmood server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newProvider picks the market-data source from config.
func newProvider(cfg *config.Config, logger *slog.Logger) market.Provider {
	switch cfg.Provider.Name {
	case "alpaca":
		return market.NewAlpacaProvider(cfg.Alpaca, logger)
	default:
		return market.NewYahooClient(cfg.Provider, logger)
	}
}

// newClassifier picks the sentiment classifier from config.
func newClassifier(cfg config.Classifier) sentiment.Classifier {
	if cfg.Kind == "lexicon" {
		return sentiment.NewLexiconClassifier()
	}
	return sentiment.NewServerClassifier(
		sentiment.WithBaseURL(cfg.BaseURL),
		sentiment.WithModel(cfg.Model),
		sentiment.WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second),
	)
}
