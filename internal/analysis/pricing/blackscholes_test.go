package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

func TestPriceKnownValues(t *testing.T) {
	// Hull, Options Futures and Other Derivatives, example 15.6.
	c, err := Price(models.Call, 42, 40, 0.5, 0.1, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 4.76, c, 0.01)

	p, err := Price(models.Put, 42, 40, 0.5, 0.1, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.81, p, 0.01)
}

func TestDelta(t *testing.T) {
	dc, err := Delta(models.Call, 100, 100, 1, 0.05, 0.2)
	require.NoError(t, err)
	dp, err := Delta(models.Put, 100, 100, 1, 0.05, 0.2)
	require.NoError(t, err)

	assert.InDelta(t, 0.6368, dc, 1e-4)
	assert.InDelta(t, dc-1, dp, 1e-12)
}

func TestExpiredOption(t *testing.T) {
	tests := []struct {
		kind  models.OptionKind
		s     float64
		price float64
		delta float64
	}{
		{models.Call, 110, 10, 1},
		{models.Call, 90, 0, 0},
		{models.Call, 100, 0, 0},
		{models.Put, 90, 10, -1},
		{models.Put, 110, 0, 0},
	}
	for _, tt := range tests {
		p, err := Price(tt.kind, tt.s, 100, 0, 0.05, 0.2)
		require.NoError(t, err)
		assert.Equal(t, tt.price, p)

		d, err := Delta(tt.kind, tt.s, 100, -0.1, 0.05, 0.2)
		require.NoError(t, err)
		assert.Equal(t, tt.delta, d)
	}

	iv, err := ImpliedVolatility(models.Call, 110, 100, 0, 0.05, 10, DefaultSolverConfig())
	assert.True(t, math.IsNaN(iv))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConverged))
}

func TestInvalidInputs(t *testing.T) {
	tests := []struct {
		name                string
		s, x, tm, r, sigma float64
	}{
		{"zero spot", 0, 100, 1, 0.05, 0.2},
		{"negative strike", 100, -1, 1, 0.05, 0.2},
		{"zero sigma", 100, 100, 1, 0.05, 0},
		{"negative sigma", 100, 100, 1, 0.05, -0.2},
		{"nan rate", 100, 100, 1, math.NaN(), 0.2},
		{"inf time", 100, 100, math.Inf(1), 0.05, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Price(models.Call, tt.s, tt.x, tt.tm, tt.r, tt.sigma)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))

			var verr *apperrors.ValidationError
			assert.True(t, apperrors.As(err, &verr))
		})
	}
}

func TestImpliedVolatilityOutsideBounds(t *testing.T) {
	cfg := DefaultSolverConfig()

	// A call can never be worth more than the stock.
	iv, err := ImpliedVolatility(models.Call, 100, 100, 1, 0.05, 101, cfg)
	assert.True(t, math.IsNaN(iv))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConverged))

	// Nor less than its discounted intrinsic value.
	iv, err = ImpliedVolatility(models.Call, 150, 100, 1, 0.05, 40, cfg)
	assert.True(t, math.IsNaN(iv))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConverged))

	_, err = ImpliedVolatility(models.Call, 100, 100, 1, 0.05, -1, cfg)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestImpliedVolatilityIterationBudget(t *testing.T) {
	cfg := SolverConfig{Guess: 9.9, Tolerance: 1e-12, MaxIterations: 1}
	iv, err := ImpliedVolatility(models.Call, 100, 100, 1, 0.05, 10.45, cfg)
	assert.True(t, math.IsNaN(iv))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotConverged))
}

func TestImpliedVolatilityBadGuess(t *testing.T) {
	p, err := Price(models.Put, 100, 120, 0.25, 0.03, 0.35)
	require.NoError(t, err)

	for _, guess := range []float64{0, 1e-9, 0.01, 5, 50} {
		cfg := DefaultSolverConfig()
		cfg.Guess = guess
		iv, err := ImpliedVolatility(models.Put, 100, 120, 0.25, 0.03, p, cfg)
		require.NoError(t, err, "guess %g", guess)
		assert.InDelta(t, 0.35, iv, 1e-4)
	}
}

func TestGreeks(t *testing.T) {
	g, err := Greeks(models.Call, 100, 100, 1, 0.05, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.6368, g.Delta, 1e-4)
	assert.InDelta(t, 0.01876, g.Gamma, 1e-4)
	assert.InDelta(t, 37.52, g.Vega, 0.01)
	assert.Less(t, g.Theta, 0.0)

	gp, err := Greeks(models.Put, 100, 100, 1, 0.05, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, g.Gamma, gp.Gamma, 1e-12)
	assert.InDelta(t, g.Vega, gp.Vega, 1e-12)
}

func TestYearsToMaturity(t *testing.T) {
	today := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)
	assert.InDelta(t, 1.0, YearsToMaturity(today, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)), 1e-12)
	assert.InDelta(t, 30.0/365, YearsToMaturity(today, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)), 1e-12)
	assert.Equal(t, 0.0, YearsToMaturity(today, today))
	assert.Less(t, YearsToMaturity(today, today.AddDate(0, 0, -3)), 0.0)
}
