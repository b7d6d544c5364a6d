package pnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

func TestSummarize(t *testing.T) {
	series := []float64{-30, 50, 120, 40, 90, -10}
	records := make([]models.TradeRecord, len(series))
	for i, v := range series {
		records[i] = models.TradeRecord{
			TradeDate: day(2025, 1, 2).AddDate(0, 0, i),
			DailyPnL:  v,
			PctChange: models.Some(v / 10),
		}
	}

	s, err := Summarize(records)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Days)
	assert.Equal(t, -10.0, s.LastPnL)
	assert.Equal(t, models.Some(-1), s.LastPct)
	assert.Equal(t, 120.0, s.Best)
	assert.Equal(t, day(2025, 1, 4), s.BestDate)
	assert.Equal(t, -30.0, s.Worst)
	assert.Equal(t, day(2025, 1, 2), s.WorstDate)
	assert.Equal(t, 130.0, s.MaxDrawdown)
}

func TestSummarizeDrawdownFromEntry(t *testing.T) {
	records := []models.TradeRecord{
		{TradeDate: day(2025, 1, 2), DailyPnL: -20},
		{TradeDate: day(2025, 1, 3), DailyPnL: -45},
	}
	s, err := Summarize(records)
	require.NoError(t, err)
	assert.Equal(t, 45.0, s.MaxDrawdown)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))
}
