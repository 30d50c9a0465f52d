package display

import (
	"time"

	"marketmood/internal/domain"
	"marketmood/internal/store"
)

// Archive is the slice of the news archive the history views read.
type Archive interface {
	ListNewsDates(symbol string) ([]string, error)
	LoadNews(symbol, date string) ([]store.NewsRecord, error)
}

// Day is one archived day: its rows plus the reduced mood.
type Day struct {
	Date   string             `json:"date"`
	Rows   []store.NewsRecord `json:"rows"`
	Counts domain.MoodCounts  `json:"counts"`
	Mood   domain.Mood        `json:"mood"`
}

// LoadDay reads one archive date and reduces it. Rows without a label
// are listed but not counted.
func LoadDay(a Archive, symbol, date string) (Day, error) {
	rows, err := a.LoadNews(symbol, date)
	if err != nil {
		return Day{}, err
	}
	counts := countLabels(rows)
	return Day{Date: date, Rows: rows, Counts: counts, Mood: counts.Mood()}, nil
}

// MoodTrend reduces the newest archive days for a symbol to a per-day
// mood series, oldest first. days <= 0 means every archived day.
func MoodTrend(a Archive, symbol string, days int) ([]store.DailyMood, error) {
	dates, err := a.ListNewsDates(symbol)
	if err != nil {
		return nil, err
	}
	if days > 0 && len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	var trend []store.DailyMood
	for _, date := range dates {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		rows, err := a.LoadNews(symbol, date)
		if err != nil {
			return nil, err
		}
		counts := countLabels(rows)
		trend = append(trend, store.DailyMood{Date: day, Counts: counts, Mood: counts.Mood()})
	}
	return trend, nil
}

func countLabels(rows []store.NewsRecord) domain.MoodCounts {
	var counts domain.MoodCounts
	for _, r := range rows {
		switch domain.SentimentLabel(r.Label) {
		case domain.SentimentPositive:
			counts.Positive++
		case domain.SentimentNegative:
			counts.Negative++
		case domain.SentimentNeutral:
			counts.Neutral++
		}
	}
	return counts
}
