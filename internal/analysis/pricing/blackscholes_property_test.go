package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"optionlab/internal/models"
)

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	return gopter.NewProperties(parameters)
}

// Property: C - P = S - X*exp(-rT) for any valid inputs.
func TestProperty_PutCallParity(t *testing.T) {
	properties := newProperties()

	properties.Property("put-call parity holds", prop.ForAll(
		func(s, x, tm, r, sigma float64) bool {
			c, err := Price(models.Call, s, x, tm, r, sigma)
			if err != nil {
				return false
			}
			p, err := Price(models.Put, s, x, tm, r, sigma)
			if err != nil {
				return false
			}
			want := s - x*math.Exp(-r*tm)
			return math.Abs((c-p)-want) < 1e-8*math.Max(1, s)
		},
		gen.Float64Range(10, 500),
		gen.Float64Range(10, 500),
		gen.Float64Range(0.01, 3),
		gen.Float64Range(0, 0.1),
		gen.Float64Range(0.05, 1.5),
	))

	properties.TestingRun(t)
}

// Property: prices stay within no-arbitrage bounds and delta within its range.
func TestProperty_PriceBounds(t *testing.T) {
	properties := newProperties()

	properties.Property("price within bounds, delta within range", prop.ForAll(
		func(isCall bool, s, x, tm, r, sigma float64) bool {
			kind := models.Put
			if isCall {
				kind = models.Call
			}
			p, err := Price(kind, s, x, tm, r, sigma)
			if err != nil {
				return false
			}
			d, err := Delta(kind, s, x, tm, r, sigma)
			if err != nil {
				return false
			}
			lo, hi := Bounds(kind, s, x, tm, r)
			if p < lo-1e-9 || p > hi+1e-9 {
				return false
			}
			if isCall {
				return d >= 0 && d <= 1
			}
			return d >= -1 && d <= 0
		},
		gen.Bool(),
		gen.Float64Range(10, 500),
		gen.Float64Range(10, 500),
		gen.Float64Range(0.01, 3),
		gen.Float64Range(0, 0.1),
		gen.Float64Range(0.05, 1.5),
	))

	properties.TestingRun(t)
}

// Property: IV(price(sigma)) recovers sigma, and price(IV(p)) recovers p.
// Strikes stay within 15% of spot so that vega is material.
func TestProperty_ImpliedVolatilityRoundTrip(t *testing.T) {
	properties := newProperties()
	cfg := SolverConfig{Guess: 0.2, Tolerance: 1e-8, MaxIterations: 100}

	properties.Property("implied vol round trip", prop.ForAll(
		func(isCall bool, s, moneyness, tm, r, sigma float64) bool {
			kind := models.Put
			if isCall {
				kind = models.Call
			}
			x := s * moneyness
			p, err := Price(kind, s, x, tm, r, sigma)
			if err != nil {
				return false
			}
			iv, err := ImpliedVolatility(kind, s, x, tm, r, p, cfg)
			if err != nil {
				t.Logf("solver failed for %s s=%g x=%g t=%g r=%g sigma=%g p=%g: %v", kind, s, x, tm, r, sigma, p, err)
				return false
			}
			back, err := Price(kind, s, x, tm, r, iv)
			if err != nil {
				return false
			}
			return math.Abs(iv-sigma) < 1e-4 && math.Abs(back-p) < 1e-6
		},
		gen.Bool(),
		gen.Float64Range(20, 400),
		gen.Float64Range(0.85, 1.15),
		gen.Float64Range(0.25, 2),
		gen.Float64Range(0, 0.08),
		gen.Float64Range(0.15, 1.0),
	))

	properties.TestingRun(t)
}
