// Package pricing implements closed-form European option pricing under
// Black-Scholes with zero dividend yield and continuous compounding.
package pricing

import (
	"math"
	"time"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

// Implied volatility search bracket.
const (
	MinVolatility = 1e-6
	MaxVolatility = 10.0
)

// DaysPerYear is the Actual/365 day count basis.
const DaysPerYear = 365.0

// SolverConfig controls the implied volatility search.
type SolverConfig struct {
	Guess         float64
	Tolerance     float64
	MaxIterations int
}

// DefaultSolverConfig returns the default solver settings.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Guess:         0.2,
		Tolerance:     1e-6,
		MaxIterations: 100,
	}
}

// Solution is the result of an implied volatility search.
type Solution struct {
	Volatility float64
	Iterations int
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func d1d2(s, x, t, r, sigma float64) (float64, float64) {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/x) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validate(kind models.OptionKind, s, x, t, r float64) error {
	if kind != models.Call && kind != models.Put {
		return apperrors.NewValidationError("kind", kind, "must be call or put")
	}
	if !finite(s, x, t, r) {
		return apperrors.NewValidationError("inputs", []float64{s, x, t, r}, "must be finite")
	}
	if s <= 0 {
		return apperrors.NewValidationError("spot", s, "must be positive")
	}
	if x <= 0 {
		return apperrors.NewValidationError("strike", x, "must be positive")
	}
	return nil
}

func validateSigma(sigma float64) error {
	if !finite(sigma) || sigma <= 0 {
		return apperrors.NewValidationError("volatility", sigma, "must be positive")
	}
	return nil
}

func intrinsic(kind models.OptionKind, s, x float64) float64 {
	if kind == models.Call {
		return math.Max(s-x, 0)
	}
	return math.Max(x-s, 0)
}

// Price returns the option value. At or past expiry it is the intrinsic value.
func Price(kind models.OptionKind, s, x, t, r, sigma float64) (float64, error) {
	if err := validate(kind, s, x, t, r); err != nil {
		return math.NaN(), err
	}
	if err := validateSigma(sigma); err != nil {
		return math.NaN(), err
	}
	return price(kind, s, x, t, r, sigma), nil
}

func price(kind models.OptionKind, s, x, t, r, sigma float64) float64 {
	if t <= 0 {
		return intrinsic(kind, s, x)
	}
	d1, d2 := d1d2(s, x, t, r, sigma)
	df := math.Exp(-r * t)
	if kind == models.Call {
		return s*normCDF(d1) - x*df*normCDF(d2)
	}
	return x*df*normCDF(-d2) - s*normCDF(-d1)
}

// Delta returns N(d1) for calls and N(d1)-1 for puts. At or past expiry it
// is 1 for an in-the-money call, -1 for an in-the-money put, else 0.
func Delta(kind models.OptionKind, s, x, t, r, sigma float64) (float64, error) {
	if err := validate(kind, s, x, t, r); err != nil {
		return math.NaN(), err
	}
	if err := validateSigma(sigma); err != nil {
		return math.NaN(), err
	}
	return delta(kind, s, x, t, r, sigma), nil
}

func delta(kind models.OptionKind, s, x, t, r, sigma float64) float64 {
	if t <= 0 {
		switch {
		case kind == models.Call && s > x:
			return 1
		case kind == models.Put && s < x:
			return -1
		}
		return 0
	}
	d1, _ := d1d2(s, x, t, r, sigma)
	if kind == models.Call {
		return normCDF(d1)
	}
	return normCDF(d1) - 1
}

func vega(s, x, t, r, sigma float64) float64 {
	if t <= 0 {
		return 0
	}
	d1, _ := d1d2(s, x, t, r, sigma)
	return s * normPDF(d1) * math.Sqrt(t)
}

// Greeks returns delta, gamma, vega (per unit volatility) and theta (per
// year). Past expiry only delta is non-zero.
func Greeks(kind models.OptionKind, s, x, t, r, sigma float64) (models.Greeks, error) {
	if err := validate(kind, s, x, t, r); err != nil {
		return models.Greeks{}, err
	}
	if err := validateSigma(sigma); err != nil {
		return models.Greeks{}, err
	}

	g := models.Greeks{Delta: delta(kind, s, x, t, r, sigma)}
	if t <= 0 {
		return g, nil
	}

	d1, d2 := d1d2(s, x, t, r, sigma)
	sqrtT := math.Sqrt(t)
	pdf := normPDF(d1)
	df := math.Exp(-r * t)

	g.Gamma = pdf / (s * sigma * sqrtT)
	g.Vega = s * pdf * sqrtT
	decay := -s * pdf * sigma / (2 * sqrtT)
	if kind == models.Call {
		g.Theta = decay - r*x*df*normCDF(d2)
	} else {
		g.Theta = decay + r*x*df*normCDF(-d2)
	}
	return g, nil
}

// Bounds returns the no-arbitrage price range of the option.
func Bounds(kind models.OptionKind, s, x, t, r float64) (lower, upper float64) {
	pvStrike := x * math.Exp(-r*math.Max(t, 0))
	if kind == models.Call {
		return math.Max(0, s-pvStrike), s
	}
	return math.Max(0, pvStrike-s), pvStrike
}

// ImpliedVolatility returns the volatility at which the model reproduces
// marketPrice. It returns NaN with ErrNotConverged when no solution is found.
func ImpliedVolatility(kind models.OptionKind, s, x, t, r, marketPrice float64, cfg SolverConfig) (float64, error) {
	sol, err := SolveImpliedVolatility(kind, s, x, t, r, marketPrice, cfg)
	return sol.Volatility, err
}

// SolveImpliedVolatility is ImpliedVolatility reporting the iteration count.
// It runs Newton-Raphson on vega from cfg.Guess and falls back to bisection
// whenever a Newton step leaves the current bracket or vega vanishes.
func SolveImpliedVolatility(kind models.OptionKind, s, x, t, r, marketPrice float64, cfg SolverConfig) (Solution, error) {
	fail := Solution{Volatility: math.NaN()}

	if err := validate(kind, s, x, t, r); err != nil {
		return fail, err
	}
	if !finite(marketPrice) || marketPrice < 0 {
		return fail, apperrors.NewValidationError("market_price", marketPrice, "must be a non-negative number")
	}
	if cfg.Tolerance <= 0 || cfg.MaxIterations < 1 {
		return fail, apperrors.NewValidationError("solver", cfg, "tolerance and iterations must be positive")
	}
	if t <= 0 {
		return fail, apperrors.Wrap(apperrors.ErrNotConverged, "option has expired")
	}

	lower, upper := Bounds(kind, s, x, t, r)
	if marketPrice < lower-cfg.Tolerance || marketPrice > upper+cfg.Tolerance {
		return fail, apperrors.Wrapf(apperrors.ErrNotConverged,
			"price %.6f outside no-arbitrage bounds [%.6f, %.6f]", marketPrice, lower, upper)
	}

	lo, hi := MinVolatility, MaxVolatility
	sigma := cfg.Guess
	if sigma <= lo || sigma >= hi || !finite(sigma) {
		sigma = 0.5 * (lo + hi)
	}

	for i := 1; i <= cfg.MaxIterations; i++ {
		diff := price(kind, s, x, t, r, sigma) - marketPrice
		if math.Abs(diff) < cfg.Tolerance {
			return Solution{Volatility: sigma, Iterations: i}, nil
		}

		// Price is increasing in sigma.
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		next := math.NaN()
		if v := vega(s, x, t, r, sigma); v > 1e-12 {
			next = sigma - diff/v
		}
		if !(next > lo && next < hi) {
			next = 0.5 * (lo + hi)
		}
		sigma = next
	}

	return fail, apperrors.Wrapf(apperrors.ErrNotConverged, "no solution after %d iterations", cfg.MaxIterations)
}

// YearsToMaturity returns the Actual/365 year fraction between the calendar
// dates of today and expiration. It is negative once expiration has passed.
func YearsToMaturity(today, expiration time.Time) float64 {
	days := models.Day(expiration).Sub(models.Day(today)).Hours() / 24
	return math.Round(days) / DaysPerYear
}
