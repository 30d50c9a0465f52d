package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"marketmood/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ FavoriteStore = (*SQLiteStore)(nil)
var _ AnalysisStore = (*SQLiteStore)(nil)

// SQLiteStore implements FavoriteStore and AnalysisStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS favorites (
		symbol   TEXT PRIMARY KEY,
		added_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS analyses (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol   TEXT NOT NULL,
		window   TEXT NOT NULL,
		ran_at   INTEGER NOT NULL,
		mood     TEXT NOT NULL,
		positive INTEGER NOT NULL,
		negative INTEGER NOT NULL,
		neutral  INTEGER NOT NULL,
		articles INTEGER NOT NULL,
		tier     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_symbol_ran ON analyses(symbol, ran_at)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables
// WAL mode, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the HTTP server read while an analysis run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// FavoriteStore implementation
// ---------------------------------------------------------------------------

// AddFavorite marks a symbol as favorite.
func (s *SQLiteStore) AddFavorite(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (symbol, added_at) VALUES (?, ?)`,
		symbol, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("add favorite %s: %w", symbol, err)
	}
	return nil
}

// RemoveFavorite unmarks a symbol.
func (s *SQLiteStore) RemoveFavorite(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)
	_, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("remove favorite %s: %w", symbol, err)
	}
	return nil
}

// ListFavorites returns all favorites in alphabetical order.
func (s *SQLiteStore) ListFavorites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM favorites ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ---------------------------------------------------------------------------
// AnalysisStore implementation
// ---------------------------------------------------------------------------

// SaveAnalysis appends the summary of a finished run.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *domain.Analysis) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (symbol, window, ran_at, mood, positive, negative, neutral, articles, tier)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Symbol, string(a.Window), a.RanAt.Unix(), string(a.Mood),
		a.Counts.Positive, a.Counts.Negative, a.Counts.Neutral,
		len(a.Results), string(a.Fundamentals.Tier),
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", a.Symbol, err)
	}
	return nil
}

// ListAnalyses returns the most recent runs for a symbol, newest first.
func (s *SQLiteStore) ListAnalyses(ctx context.Context, symbol string, limit int) ([]AnalysisRecord, error) {
	symbol = domain.NormalizeSymbol(symbol)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, window, ran_at, mood, positive, negative, neutral, articles, tier
		 FROM analyses WHERE symbol = ? ORDER BY ran_at DESC LIMIT ?`,
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses %s: %w", symbol, err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var (
			r     AnalysisRecord
			ranAt int64
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Window, &ranAt, &r.Mood,
			&r.Counts.Positive, &r.Counts.Negative, &r.Counts.Neutral,
			&r.Articles, &r.Tier); err != nil {
			return nil, err
		}
		r.RanAt = time.Unix(ranAt, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// MoodHistory aggregates per-day label counts for a symbol and reduces each
// day to its mood.
func (s *SQLiteStore) MoodHistory(ctx context.Context, symbol string, days int) ([]DailyMood, error) {
	symbol = domain.NormalizeSymbol(symbol)
	since := time.Now().AddDate(0, 0, -days).Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT date(ran_at, 'unixepoch'), SUM(positive), SUM(negative), SUM(neutral)
		 FROM analyses WHERE symbol = ? AND ran_at >= ?
		 GROUP BY date(ran_at, 'unixepoch') ORDER BY date(ran_at, 'unixepoch')`,
		symbol, since)
	if err != nil {
		return nil, fmt.Errorf("mood history %s: %w", symbol, err)
	}
	defer rows.Close()

	var history []DailyMood
	for rows.Next() {
		var (
			day    string
			counts domain.MoodCounts
		)
		if err := rows.Scan(&day, &counts.Positive, &counts.Negative, &counts.Neutral); err != nil {
			return nil, err
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("mood history %s: bad day %q: %w", symbol, day, err)
		}
		history = append(history, DailyMood{Date: date, Counts: counts, Mood: counts.Mood()})
	}
	return history, rows.Err()
}
