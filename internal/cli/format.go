package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"optionlab/internal/models"
)

// FormatCurrency formats a number as US dollars with thousands separators.
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	// Format with 2 decimal places
	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative && str != "0.00" {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats P&L with sign.
func FormatPnL(pnl float64) string {
	formatted := FormatCurrency(pnl)
	if pnl > 0 && formatted != "$0.00" {
		return "+" + formatted
	}
	return formatted
}

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if math.Abs(price) >= 10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.4f", price)
}

// FormatNull formats an optional price, NA when missing.
func FormatNull(v models.NullFloat) string {
	if !v.Valid {
		return "NA"
	}
	return FormatPrice(v.Float64)
}

// FormatDate formats a date.
func FormatDate(t time.Time) string {
	return t.Format(models.DateLayout)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatGreeks formats option Greeks.
func FormatGreeks(g models.Greeks) string {
	return fmt.Sprintf("Δ: %.4f  Γ: %.4f  Θ: %.4f  ν: %.4f", g.Delta, g.Gamma, g.Theta, g.Vega)
}

// FormatIV formats implied volatility.
func FormatIV(iv models.NullFloat) string {
	if !iv.Valid {
		return "NA"
	}
	return fmt.Sprintf("%.2f%%", iv.Float64*100)
}

// FormatBidAsk formats bid/ask spread.
func FormatBidAsk(bid, ask models.NullFloat) string {
	return fmt.Sprintf("%s / %s", FormatNull(bid), FormatNull(ask))
}
