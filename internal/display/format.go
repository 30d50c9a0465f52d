// Package display renders domain values as plain text for the TUI and
// CLI frontends, and reduces the news archive to per-day mood trends.
package display

import (
	"fmt"
	"strings"

	"marketmood/internal/domain"
)

// NotApplicable is shown wherever an optional value is absent.
const NotApplicable = "n/a"

// FormatPrice formats a dollar price as $X.XX.
func FormatPrice(f domain.Float) string {
	if !f.Valid {
		return NotApplicable
	}
	return fmt.Sprintf("$%.2f", f.Value)
}

// FormatChange formats a signed dollar change.
func FormatChange(f domain.Float) string {
	if !f.Valid {
		return NotApplicable
	}
	return fmt.Sprintf("%+.2f", f.Value)
}

// FormatPct formats a value already in percent units, signed.
func FormatPct(f domain.Float) string {
	if !f.Valid {
		return NotApplicable
	}
	return fmt.Sprintf("%+.2f%%", f.Value)
}

// FormatFraction formats a fraction (0.021) as a percentage (2.10%).
func FormatFraction(f domain.Float) string {
	if !f.Valid {
		return NotApplicable
	}
	return fmt.Sprintf("%.2f%%", f.Value*100)
}

// FormatCompact formats a large value with T/B/M/K suffixes.
func FormatCompact(f domain.Float) string {
	if !f.Valid {
		return NotApplicable
	}
	v := f.Value
	switch {
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) > 3 {
		var b strings.Builder
		start := len(s) % 3
		if start > 0 {
			b.WriteString(s[:start])
		}
		for i := start; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// MoodBadge returns a plain-text marker for an aggregate mood.
func MoodBadge(m domain.Mood) string {
	switch m {
	case domain.MoodBullish:
		return "▲ Bullish"
	case domain.MoodBearish:
		return "▼ Bearish"
	default:
		return "● Neutral"
	}
}

// LabelDot returns a one-character marker for a sentiment label.
func LabelDot(l domain.SentimentLabel) string {
	switch l {
	case domain.SentimentPositive:
		return "▲"
	case domain.SentimentNegative:
		return "▼"
	default:
		return "●"
	}
}

// TierNote describes a fundamentals tier for the UI footer.
func TierNote(t domain.Tier) string {
	switch t {
	case domain.TierFull:
		return "full data"
	case domain.TierReduced:
		return "reduced data (summary endpoint unavailable)"
	case domain.TierUnavailable:
		return "fundamentals unavailable"
	default:
		return "not fetched"
	}
}
