// Package domain defines the shared types for marketmood: daily bars and
// price series, best-effort quote snapshots, news items, per-article
// sentiment results, the aggregate mood signal, and fundamentals with their
// fidelity tier.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Optional numeric fields
// ---------------------------------------------------------------------------

// Float is a float64 that may be absent. It follows the sql.NullFloat64
// shape so that a missing field is never conflated with a genuine zero.
// The zero value is "absent".
type Float struct {
	Value float64
	Valid bool
}

// FloatFrom returns a present Float holding v.
func FloatFrom(v float64) Float {
	return Float{Value: v, Valid: true}
}

// Or returns the value when present, otherwise def.
func (f Float) Or(def float64) float64 {
	if f.Valid {
		return f.Value
	}
	return def
}

// MarshalJSON encodes an absent Float as null.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON decodes null as absent and any number as present.
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FloatFrom(v)
	return nil
}

// Ratio divides num by den. The result is absent when either operand is
// absent or the denominator is zero, never Inf or NaN.
func Ratio(num, den Float) Float {
	if !num.Valid || !den.Valid || den.Value == 0 {
		return Float{}
	}
	return FloatFrom(num.Value / den.Value)
}

// PctChange returns (current-previous)/previous*100, absent unless both
// operands are present and previous is non-zero.
func PctChange(current, previous Float) Float {
	r := Ratio(Float{Value: current.Value - previous.Value, Valid: current.Valid && previous.Valid}, previous)
	if !r.Valid {
		return Float{}
	}
	return FloatFrom(r.Value * 100)
}

// ---------------------------------------------------------------------------
// Price data
// ---------------------------------------------------------------------------

// Bar is one daily OHLC bar.
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// PriceSeries is a chronologically ascending sequence of daily bars. An
// empty series is the "no data" state: no price-derived metric may be
// computed from it, and callers branch on Empty rather than on an error.
type PriceSeries []Bar

// Empty reports whether the series has no bars.
func (s PriceSeries) Empty() bool { return len(s) == 0 }

// Latest returns the most recent bar.
func (s PriceSeries) Latest() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Previous returns the second most recent bar.
func (s PriceSeries) Previous() (Bar, bool) {
	if len(s) < 2 {
		return Bar{}, false
	}
	return s[len(s)-2], true
}

// LastClose returns the latest close, absent on an empty series.
func (s PriceSeries) LastClose() Float {
	b, ok := s.Latest()
	if !ok {
		return Float{}
	}
	return FloatFrom(b.Close)
}

// PrevClose returns the second-to-latest close, absent with fewer than
// two bars.
func (s PriceSeries) PrevClose() Float {
	b, ok := s.Previous()
	if !ok {
		return Float{}
	}
	return FloatFrom(b.Close)
}

// Change returns latest close minus previous close, absent with fewer
// than two bars.
func (s PriceSeries) Change() Float {
	cur, prev := s.LastClose(), s.PrevClose()
	if !cur.Valid || !prev.Valid {
		return Float{}
	}
	return FloatFrom(cur.Value - prev.Value)
}

// ChangePct returns the day-over-day percent change of the close.
func (s PriceSeries) ChangePct() Float {
	return PctChange(s.LastClose(), s.PrevClose())
}

// Closes returns the close column, oldest first.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// ---------------------------------------------------------------------------
// Quote snapshot
// ---------------------------------------------------------------------------

// QuoteSourceBars marks a quote derived from the last two bars of a price
// series after the live quote call failed. QuoteSourceUnavailable marks the
// empty snapshot returned when the bar fallback had nothing either.
const (
	QuoteSourceBars        = "bars"
	QuoteSourceUnavailable = "unavailable"
)

// Quote is a best-effort bag of live price fields. Every field is
// independently optional; the absence of one never blocks the others.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Current   Float     `json:"current"`
	Previous  Float     `json:"previous"`
	Open      Float     `json:"open"`
	DayHigh   Float     `json:"dayHigh"`
	DayLow    Float     `json:"dayLow"`
	Change    Float     `json:"change"`
	ChangePct Float     `json:"changePct"`
	Source    string    `json:"source,omitempty"`
	AsOf      time.Time `json:"asOf"`
}

// ComputeChange fills Change and ChangePct from Current and Previous.
// Both stay absent unless the two operands are present.
func (q *Quote) ComputeChange() {
	q.Change = Float{}
	q.ChangePct = Float{}
	if q.Current.Valid && q.Previous.Valid {
		q.Change = FloatFrom(q.Current.Value - q.Previous.Value)
		q.ChangePct = PctChange(q.Current, q.Previous)
	}
}

// QuoteFromBars derives a snapshot from the last two bars of a series, with
// Source marked so callers can tell it apart from a live quote. An empty
// series yields a quote with every price field absent.
func QuoteFromBars(symbol string, series PriceSeries) Quote {
	q := Quote{Symbol: symbol, Source: QuoteSourceBars}
	latest, ok := series.Latest()
	if !ok {
		return q
	}
	q.AsOf = latest.Date
	q.Current = FloatFrom(latest.Close)
	q.Open = FloatFrom(latest.Open)
	q.DayHigh = FloatFrom(latest.High)
	q.DayLow = FloatFrom(latest.Low)
	if prev, ok := series.Previous(); ok {
		q.Previous = FloatFrom(prev.Close)
	}
	q.ComputeChange()
	return q
}

// ---------------------------------------------------------------------------
// News and sentiment
// ---------------------------------------------------------------------------

// NewsItem is one fetched article.
type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// HasSummary reports whether the item carries a usable summary. Blank
// summaries and the provider's literal placeholder both count as unusable.
func (n NewsItem) HasSummary() bool {
	s := strings.TrimSpace(n.Summary)
	if s == "" {
		return false
	}
	return !strings.EqualFold(s, "No Summary Available")
}

// SentimentLabel is a classifier output label.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// SentimentResult is the classification of one article summary.
// Confidence is the model's own score in [0,1], reported per item for
// transparency; it plays no role in aggregation.
type SentimentResult struct {
	Title      string         `json:"title"`
	Summary    string         `json:"summary"`
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"`
}

// Mood is the aggregate directional signal for a batch of articles.
type Mood string

const (
	MoodBullish Mood = "bullish"
	MoodBearish Mood = "bearish"
	MoodNeutral Mood = "neutral"
)

// MoodCounts tallies sentiment labels within one batch.
type MoodCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Total returns the number of classified articles.
func (c MoodCounts) Total() int {
	return c.Positive + c.Negative + c.Neutral
}

// Mood reduces the counts by plurality vote on positive vs negative.
// Ties are neutral, including the all-zero case of an empty batch.
func (c MoodCounts) Mood() Mood {
	switch {
	case c.Positive > c.Negative:
		return MoodBullish
	case c.Negative > c.Positive:
		return MoodBearish
	default:
		return MoodNeutral
	}
}

// ---------------------------------------------------------------------------
// Fundamentals
// ---------------------------------------------------------------------------

// Tier is the declared fidelity of a best-effort data category.
type Tier string

const (
	TierNotFetched  Tier = "not_fetched"
	TierFull        Tier = "full"
	TierReduced     Tier = "reduced"
	TierUnavailable Tier = "unavailable"
)

// Fundamentals is a best-effort bag of scalar company fields with the
// tier the fetch resolved to. Ownership percentages are only populated by
// the full-fidelity call.
type Fundamentals struct {
	Symbol         string `json:"symbol"`
	MarketCap      Float  `json:"marketCap"`
	PE             Float  `json:"pe"`
	DividendYield  Float  `json:"dividendYield"`
	AvgVolume      Float  `json:"avgVolume"`
	High52Week     Float  `json:"high52w"`
	Low52Week      Float  `json:"low52w"`
	InsiderPct     Float  `json:"insiderPct"`
	InstitutionPct Float  `json:"institutionPct"`
	Sector         string `json:"sector,omitempty"`
	Industry       string `json:"industry,omitempty"`
	Tier           Tier   `json:"tier"`
}

// PopulatedFields counts the numeric fields that resolved to a value,
// used to decide whether a full-call result is too sparse to keep.
func (f Fundamentals) PopulatedFields() int {
	n := 0
	for _, v := range []Float{
		f.MarketCap, f.PE, f.DividendYield, f.AvgVolume,
		f.High52Week, f.Low52Week, f.InsiderPct, f.InstitutionPct,
	} {
		if v.Valid {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Windows and symbols
// ---------------------------------------------------------------------------

// Window is a trailing time range for a price-history request.
type Window string

const (
	Window1D  Window = "1d"
	Window5D  Window = "5d"
	Window1M  Window = "1mo"
	Window3M  Window = "3mo"
	Window6M  Window = "6mo"
	Window1Y  Window = "1y"
	Window2Y  Window = "2y"
	Window5Y  Window = "5y"
	WindowMax Window = "max"
)

// DefaultWindow is the chart window used when none is requested.
const DefaultWindow = Window1M

var validWindows = map[Window]bool{
	Window1D: true, Window5D: true, Window1M: true, Window3M: true,
	Window6M: true, Window1Y: true, Window2Y: true, Window5Y: true,
	WindowMax: true,
}

// ParseWindow validates a window string. Empty input means DefaultWindow.
func ParseWindow(s string) (Window, error) {
	if s == "" {
		return DefaultWindow, nil
	}
	w := Window(strings.ToLower(s))
	if !validWindows[w] {
		return "", fmt.Errorf("invalid window %q", s)
	}
	return w, nil
}

// Start returns the inclusive start of the trailing window ending at now.
// WindowMax returns the zero time (no lower bound).
func (w Window) Start(now time.Time) time.Time {
	switch w {
	case Window1D:
		return now.AddDate(0, 0, -1)
	case Window5D:
		return now.AddDate(0, 0, -7)
	case Window1M:
		return now.AddDate(0, -1, 0)
	case Window3M:
		return now.AddDate(0, -3, 0)
	case Window6M:
		return now.AddDate(0, -6, 0)
	case Window1Y:
		return now.AddDate(-1, 0, 0)
	case Window2Y:
		return now.AddDate(-2, 0, 0)
	case Window5Y:
		return now.AddDate(-5, 0, 0)
	default:
		return time.Time{}
	}
}

// NormalizeSymbol trims whitespace and uppercases a ticker. Exchange
// suffix conventions (".NS", ".L", ...) pass through untouched.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ---------------------------------------------------------------------------
// Analysis
// ---------------------------------------------------------------------------

// Analysis is the result of one end-to-end run for a ticker. Each panel
// degrades independently: an empty Series, an absent Quote field, an
// unavailable fundamentals tier, or an empty Results slice all coexist
// with the rest of the run. Warnings carry the per-category notes.
type Analysis struct {
	Symbol       string            `json:"symbol"`
	Window       Window            `json:"window"`
	RanAt        time.Time         `json:"ranAt"`
	Series       PriceSeries       `json:"series"`
	Quote        Quote             `json:"quote"`
	Results      []SentimentResult `json:"results"`
	Counts       MoodCounts        `json:"counts"`
	Mood         Mood              `json:"mood"`
	Fundamentals Fundamentals      `json:"fundamentals"`
	Warnings     []string          `json:"warnings,omitempty"`
}
