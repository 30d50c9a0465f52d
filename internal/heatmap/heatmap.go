// Package heatmap assembles the sector performance view: quotes and
// sector metadata for a symbol set, fetched concurrently, grouped by
// sector with the average daily move per group.
package heatmap

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"marketmood/internal/domain"
)

// QuoteSource serves live quote snapshots.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

// FundamentalsSource serves company fundamentals, used here for the
// sector and market cap of each tile.
type FundamentalsSource interface {
	Fundamentals(ctx context.Context, symbol string) (domain.Fundamentals, error)
}

// UnknownSector groups tiles whose sector could not be resolved.
const UnknownSector = "Unknown"

const defaultConcurrency = 8

// Tile is one symbol cell of the heatmap.
type Tile struct {
	Symbol    string       `json:"symbol"`
	Sector    string       `json:"sector"`
	Price     domain.Float `json:"price"`
	ChangePct domain.Float `json:"changePct"`
	MarketCap domain.Float `json:"marketCap"`
}

// Sector groups tiles with the average change percent across those of
// its tiles that have one.
type Sector struct {
	Name         string       `json:"name"`
	AvgChangePct domain.Float `json:"avgChangePct"`
	Tiles        []Tile       `json:"tiles"`
}

// Heatmap is the assembled view. Skipped lists symbols whose quote could
// not be fetched; they are absent from every sector.
type Heatmap struct {
	AsOf    time.Time `json:"asOf"`
	Sectors []Sector  `json:"sectors"`
	Skipped []string  `json:"skipped,omitempty"`
}

// Builder fetches heatmap inputs with bounded concurrency.
type Builder struct {
	quotes QuoteSource
	funds  FundamentalsSource
	limit  int
	log    *slog.Logger
}

// NewBuilder creates a Builder. concurrency bounds the in-flight fetches;
// values below 1 fall back to the default.
func NewBuilder(quotes QuoteSource, funds FundamentalsSource, concurrency int, log *slog.Logger) *Builder {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Builder{quotes: quotes, funds: funds, limit: concurrency, log: log}
}

// Build fetches every symbol and groups the results by sector. A symbol
// whose quote fails is skipped; a symbol whose fundamentals fail still
// gets a tile under the Unknown sector.
func (b *Builder) Build(ctx context.Context, symbols []string) (*Heatmap, error) {
	symbols = dedupe(symbols)

	type result struct {
		tile Tile
		ok   bool
	}

	results := make([]result, len(symbols))
	sem := make(chan struct{}, b.limit)

	g, gctx := errgroup.WithContext(ctx)

	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			q, err := b.quotes.Quote(gctx, sym)
			if err != nil {
				b.log.Warn("heatmap quote failed", "symbol", sym, "err", err)
				return nil // skip the symbol
			}

			tile := Tile{
				Symbol:    sym,
				Sector:    UnknownSector,
				Price:     q.Current,
				ChangePct: q.ChangePct,
			}
			f, err := b.funds.Fundamentals(gctx, sym)
			if err != nil {
				b.log.Warn("heatmap fundamentals failed", "symbol", sym, "err", err)
			} else if f.Sector != "" {
				tile.Sector = f.Sector
			}
			tile.MarketCap = f.MarketCap

			results[i] = result{tile: tile, ok: true}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hm := &Heatmap{AsOf: time.Now().UTC()}
	bySector := make(map[string][]Tile)
	for i, r := range results {
		if !r.ok {
			hm.Skipped = append(hm.Skipped, symbols[i])
			continue
		}
		bySector[r.tile.Sector] = append(bySector[r.tile.Sector], r.tile)
	}
	sort.Strings(hm.Skipped)

	for name, tiles := range bySector {
		sort.Slice(tiles, func(i, j int) bool {
			ci, cj := tiles[i].MarketCap, tiles[j].MarketCap
			if ci.Valid != cj.Valid {
				return ci.Valid
			}
			if ci.Valid && ci.Value != cj.Value {
				return ci.Value > cj.Value
			}
			return tiles[i].Symbol < tiles[j].Symbol
		})
		hm.Sectors = append(hm.Sectors, Sector{
			Name:         name,
			AvgChangePct: avgChangePct(tiles),
			Tiles:        tiles,
		})
	}

	// Best performing sectors first; sectors without a move sort last.
	sort.Slice(hm.Sectors, func(i, j int) bool {
		ai, aj := hm.Sectors[i].AvgChangePct, hm.Sectors[j].AvgChangePct
		if ai.Valid != aj.Valid {
			return ai.Valid
		}
		if ai.Valid && ai.Value != aj.Value {
			return ai.Value > aj.Value
		}
		return hm.Sectors[i].Name < hm.Sectors[j].Name
	})

	return hm, nil
}

// avgChangePct averages the change percent over tiles that have one,
// absent when none do.
func avgChangePct(tiles []Tile) domain.Float {
	var sum float64
	var n int
	for _, t := range tiles {
		if t.ChangePct.Valid {
			sum += t.ChangePct.Value
			n++
		}
	}
	if n == 0 {
		return domain.Float{}
	}
	return domain.FloatFrom(sum / float64(n))
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	var out []string
	for _, s := range symbols {
		s = domain.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
