package pnl

import (
	"time"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

// Summary describes a reconciled PnL series.
type Summary struct {
	Days        int              `json:"days"`
	First       time.Time        `json:"first"`
	Last        time.Time        `json:"last"`
	LastPnL     float64          `json:"last_pnl"`
	LastPct     models.NullFloat `json:"last_pct"`
	Best        float64          `json:"best"`
	BestDate    time.Time        `json:"best_date"`
	Worst       float64          `json:"worst"`
	WorstDate   time.Time        `json:"worst_date"`
	MaxDrawdown float64          `json:"max_drawdown"`
}

// Summarize computes the summary of records, which must be in date order.
// Drawdown is measured from the running peak of the PnL series, with the
// flat entry value 0 as the initial peak.
func Summarize(records []models.TradeRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, apperrors.Wrap(apperrors.ErrInsufficientData, "no trade records to summarize")
	}

	first, last := records[0], records[len(records)-1]
	s := Summary{
		Days:      len(records),
		First:     first.TradeDate,
		Last:      last.TradeDate,
		LastPnL:   last.DailyPnL,
		LastPct:   last.PctChange,
		Best:      first.DailyPnL,
		BestDate:  first.TradeDate,
		Worst:     first.DailyPnL,
		WorstDate: first.TradeDate,
	}

	peak := 0.0
	for _, r := range records {
		if r.DailyPnL > s.Best {
			s.Best, s.BestDate = r.DailyPnL, r.TradeDate
		}
		if r.DailyPnL < s.Worst {
			s.Worst, s.WorstDate = r.DailyPnL, r.TradeDate
		}
		if r.DailyPnL > peak {
			peak = r.DailyPnL
		}
		if dd := peak - r.DailyPnL; dd > s.MaxDrawdown {
			s.MaxDrawdown = round2(dd)
		}
	}
	return s, nil
}
