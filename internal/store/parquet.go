package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"marketmood/internal/domain"
	"marketmood/internal/market"
)

// Compile-time interface check: the Parquet store backs the pipeline's
// on-disk bar cache.
var _ market.BarCache = (*ParquetStore)(nil)

// ParquetStore archives daily bars and fetched news as Parquet files.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol string  `parquet:"symbol"`
	Time   int64   `parquet:"time,timestamp(millisecond)"` // Unix ms
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
}

// NewsRecord is one archived article row. Label and Confidence hold the
// classification outcome; an empty Label means the article was never
// classified (skipped or failed).
type NewsRecord struct {
	Symbol     string  `parquet:"symbol"`
	Source     string  `parquet:"source"`
	Time       int64   `parquet:"time,timestamp(millisecond)"` // Unix ms
	Title      string  `parquet:"title"`
	Summary    string  `parquet:"summary"`
	Label      string  `parquet:"label"`
	Confidence float64 `parquet:"confidence"`
}

// Item converts an archived row back to a NewsItem.
func (r NewsRecord) Item() domain.NewsItem {
	return domain.NewsItem{
		Title:       r.Title,
		Summary:     r.Summary,
		Source:      r.Source,
		PublishedAt: time.UnixMilli(r.Time).UTC(),
	}
}

// ---------------------------------------------------------------------------
// Bar cache
// ---------------------------------------------------------------------------

// SaveBars merges bars into per-year files at
// <DataDir>/bars/<SYMBOL>/<YYYY>.parquet. Existing rows for the same day
// are replaced by incoming ones.
func (s *ParquetStore) SaveBars(symbol string, bars domain.PriceSeries) error {
	if bars.Empty() {
		return nil
	}
	symbol = domain.NormalizeSymbol(symbol)

	byYear := make(map[int][]BarRecord)
	for _, b := range bars {
		byYear[b.Date.Year()] = append(byYear[b.Date.Year()], BarRecord{
			Symbol: symbol,
			Time:   b.Date.UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
		})
	}

	for year, records := range byYear {
		path := s.barPath(symbol, year)
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// LoadBars reads every archived bar for a symbol, oldest first.
func (s *ParquetStore) LoadBars(symbol string) (domain.PriceSeries, error) {
	symbol = domain.NormalizeSymbol(symbol)
	dir := filepath.Join(s.DataDir, "bars", symbol)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.PriceSeries{}, nil
		}
		return nil, err
	}

	var series domain.PriceSeries
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		records, err := readParquetFile[BarRecord](filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		for _, r := range records {
			series = append(series, domain.Bar{
				Date:  time.UnixMilli(r.Time).UTC(),
				Open:  r.Open,
				High:  r.High,
				Low:   r.Low,
				Close: r.Close,
			})
		}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series, nil
}

// ---------------------------------------------------------------------------
// News archive
// ---------------------------------------------------------------------------

// SaveNews merges articles into per-day files at
// <DataDir>/news/<SYMBOL>/<YYYY-MM-DD>.parquet. Articles without a
// published time are dated by asOf. Classification results are joined
// back to their articles by title; articles without a result are stored
// with an empty label.
func (s *ParquetStore) SaveNews(symbol string, asOf time.Time, items []domain.NewsItem, results []domain.SentimentResult) error {
	if len(items) == 0 {
		return nil
	}
	symbol = domain.NormalizeSymbol(symbol)

	byTitle := make(map[string]domain.SentimentResult, len(results))
	for _, r := range results {
		byTitle[r.Title] = r
	}

	byDate := make(map[string][]NewsRecord)
	for _, item := range items {
		published := item.PublishedAt
		if published.IsZero() {
			published = asOf
		}
		date := published.UTC().Format("2006-01-02")
		res := byTitle[item.Title]
		byDate[date] = append(byDate[date], NewsRecord{
			Symbol:     symbol,
			Source:     item.Source,
			Time:       published.UnixMilli(),
			Title:      item.Title,
			Summary:    item.Summary,
			Label:      string(res.Label),
			Confidence: res.Confidence,
		})
	}

	for date, records := range byDate {
		path := s.newsPath(symbol, date)
		existing, _ := readParquetFile[NewsRecord](path)
		merged := mergeNewsRecords(existing, records)
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing news for %s/%s: %w", symbol, date, err)
		}
	}
	return nil
}

// LoadNews reads the archived rows for a symbol on one date (YYYY-MM-DD),
// oldest first.
func (s *ParquetStore) LoadNews(symbol, date string) ([]NewsRecord, error) {
	symbol = domain.NormalizeSymbol(symbol)
	records, err := readParquetFile[NewsRecord](s.newsPath(symbol, date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading news for %s/%s: %w", symbol, date, err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Time < records[j].Time })
	return records, nil
}

// ListNewsDates returns the archive dates available for a symbol, oldest
// first.
func (s *ParquetStore) ListNewsDates(symbol string) ([]string, error) {
	symbol = domain.NormalizeSymbol(symbol)
	dir := filepath.Join(s.DataDir, "news", symbol)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(name, ".parquet"))
	}
	sort.Strings(dates)
	return dates, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/bars/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "bars", symbol, fmt.Sprintf("%d.parquet", year))
}

// newsPath returns the filesystem path for a news Parquet file.
// Layout: <dataDir>/news/<SYMBOL>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) newsPath(symbol, date string) string {
	return filepath.Join(s.DataDir, "news", symbol, date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates bars by timestamp, preferring incoming rows,
// and sorts by time.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Time] = r
	}
	for _, r := range incoming {
		seen[r.Time] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time < merged[j].Time })
	return merged
}

// mergeNewsRecords deduplicates articles by title and time, preferring
// incoming rows, and sorts by time.
func mergeNewsRecords(existing, incoming []NewsRecord) []NewsRecord {
	type key struct {
		title string
		ts    int64
	}
	seen := make(map[key]NewsRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Title, r.Time}] = r
	}
	for _, r := range incoming {
		seen[key{r.Title, r.Time}] = r
	}

	merged := make([]NewsRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time < merged[j].Time })
	return merged
}
