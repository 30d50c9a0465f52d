package sentiment

import (
	"context"
	"math"
	"strings"

	"marketmood/internal/domain"
)

// Word weights are graded by strength so that a single "plunge" outweighs
// a couple of mild words like "steady".
var positiveWeights = map[string]float64{
	"surge": 1.0, "soar": 1.0, "soars": 1.0, "breakthrough": 1.0,
	"bullish": 0.95, "rally": 0.95, "rallies": 0.95, "skyrocket": 0.95,
	"outperform": 0.9, "record": 0.9, "breakout": 0.9,

	"beat": 0.85, "beats": 0.85, "exceed": 0.85, "exceeds": 0.85,
	"upgrade": 0.85, "upgraded": 0.85, "optimistic": 0.85,
	"profit": 0.8, "profits": 0.8, "growth": 0.8, "gain": 0.8,
	"gains": 0.8, "jump": 0.8, "jumps": 0.8, "strong": 0.8,
	"boost": 0.8, "boosts": 0.8, "win": 0.8, "wins": 0.8,
	"climb": 0.75, "climbs": 0.75, "momentum": 0.75, "expansion": 0.75,
	"rebound": 0.7, "recover": 0.7, "recovery": 0.7, "strength": 0.7,

	"positive": 0.65, "rise": 0.65, "rises": 0.65, "rose": 0.65,
	"higher": 0.65, "better": 0.65, "solid": 0.65, "confident": 0.65,
	"promising": 0.6, "opportunity": 0.6, "resilient": 0.6,
	"healthy": 0.55, "progress": 0.55, "leader": 0.55,
	"robust": 0.5, "stable": 0.5, "steady": 0.5,
}

var negativeWeights = map[string]float64{
	"crash": 1.0, "plunge": 1.0, "plunges": 1.0, "collapse": 1.0,
	"crisis": 0.95, "bankruptcy": 0.95, "plummet": 0.95, "tumble": 0.95,
	"tumbles": 0.95, "rout": 0.95, "panic": 0.9, "fraud": 0.9,

	"bearish": 0.85, "downgrade": 0.85, "downgraded": 0.85,
	"warning": 0.85, "lawsuit": 0.85, "lawsuits": 0.85, "probe": 0.85,
	"investigation": 0.8, "miss": 0.8, "misses": 0.8, "missed": 0.8,
	"loss": 0.8, "losses": 0.8, "slump": 0.8, "slumps": 0.8,
	"decline": 0.8, "declines": 0.8, "declined": 0.8, "underperform": 0.8,
	"weak": 0.75, "weakness": 0.75, "drop": 0.75, "drops": 0.75,
	"dropped": 0.75, "fall": 0.75, "falls": 0.75, "fell": 0.75,
	"layoff": 0.75, "layoffs": 0.75, "recall": 0.7, "concern": 0.7,
	"concerns": 0.7, "worry": 0.7, "worries": 0.7, "disappoint": 0.7,
	"disappoints": 0.7, "disappointing": 0.7,

	"risk": 0.65, "risks": 0.65, "volatile": 0.65, "uncertainty": 0.65,
	"doubt": 0.65, "pressure": 0.6, "lower": 0.6, "poor": 0.6,
	"slowdown": 0.6, "negative": 0.6, "dip": 0.55, "slip": 0.55,
	"slips": 0.55, "retreat": 0.55, "caution": 0.55, "cautious": 0.55,
	"correction": 0.5, "pullback": 0.5, "cut": 0.5, "cuts": 0.5,
	"headwind": 0.5, "headwinds": 0.5,
}

// LexiconClassifier scores text against finance-tilted word weights. It is
// the offline fallback when no inference server is reachable; accuracy is
// well below a pretrained model but it never needs the network.
type LexiconClassifier struct{}

// NewLexiconClassifier builds the offline word-weight classifier.
func NewLexiconClassifier() *LexiconClassifier { return &LexiconClassifier{} }

// Name implements Classifier.
func (l *LexiconClassifier) Name() string { return "lexicon" }

// Classify implements Classifier. The score is the average weight of the
// matched words, so it stays within [-1, 1]; anything inside the ±0.1 band
// counts as neutral.
func (l *LexiconClassifier) Classify(_ context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyText
	}

	var score float64
	var matches int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?\"'()[]{}:;")
		if w, ok := positiveWeights[word]; ok {
			score += w
			matches++
		} else if w, ok := negativeWeights[word]; ok {
			score -= w
			matches++
		}
	}
	if matches > 0 {
		score /= float64(matches)
	}

	switch {
	case score > 0.1:
		return Result{Label: domain.SentimentPositive, Confidence: clamp01(math.Abs(score))}, nil
	case score < -0.1:
		return Result{Label: domain.SentimentNegative, Confidence: clamp01(math.Abs(score))}, nil
	default:
		// Close to the band edge means a weak neutral call.
		return Result{Label: domain.SentimentNeutral, Confidence: clamp01(1 - math.Abs(score)*5)}, nil
	}
}
