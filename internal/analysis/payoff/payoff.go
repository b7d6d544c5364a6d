// Package payoff evaluates multi-leg option strategies at maturity: the
// payoff curve over a price grid, the stock hedge implied by the leg deltas
// and the range of underlying prices for which the position is profitable.
package payoff

import (
	"math"
	"strconv"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

// MaxGridPoints bounds the size of a price grid.
const MaxGridPoints = 1_000_000

// Result is one evaluated strategy.
type Result struct {
	Grid           models.PriceGrid   `json:"grid"`
	Curve          models.PayoffCurve `json:"curve"`
	EffectiveDelta float64            `json:"effective_delta"`
	Region         models.Region      `json:"region"`
}

// Combined is two strategies evaluated on one grid and their sum.
type Combined struct {
	First  Result `json:"first"`
	Second Result `json:"second"`
	Total  Result `json:"total"`
}

// NewGrid builds the grid floor(S0*(1-f)) .. ceil(S0*(1+f)) every step.
func NewGrid(spot, rangeFraction, step float64) models.PriceGrid {
	return models.PriceGrid{
		Min:  math.Floor(spot * (1 - rangeFraction)),
		Max:  math.Ceil(spot * (1 + rangeFraction)),
		Step: step,
	}
}

// Compute evaluates strategy around spot.
func Compute(strategy models.Strategy, spot models.NullFloat, rangeFraction, step float64) (Result, error) {
	s0, grid, err := prepare(spot, rangeFraction, step)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateStrategy(strategy); err != nil {
		return Result{}, err
	}
	return evaluate(strategy, s0, grid), nil
}

// Combine evaluates two strategies on the same grid. Payoffs and effective
// deltas add.
func Combine(a, b models.Strategy, spot models.NullFloat, rangeFraction, step float64) (Combined, error) {
	s0, grid, err := prepare(spot, rangeFraction, step)
	if err != nil {
		return Combined{}, err
	}
	if err := ValidateStrategy(a); err != nil {
		return Combined{}, err
	}
	if err := ValidateStrategy(b); err != nil {
		return Combined{}, err
	}

	first := evaluate(a, s0, grid)
	second := evaluate(b, s0, grid)

	y := make([]float64, len(first.Curve.Y))
	for i := range y {
		y[i] = first.Curve.Y[i] + second.Curve.Y[i]
	}
	curve := models.PayoffCurve{S: first.Curve.S, Y: y}

	return Combined{
		First:  first,
		Second: second,
		Total: Result{
			Grid:           grid,
			Curve:          curve,
			EffectiveDelta: first.EffectiveDelta + second.EffectiveDelta,
			Region:         ProfitableRegion(curve),
		},
	}, nil
}

// Butterfly evaluates a long butterfly on kind: buy X1, sell two X2, buy X3,
// each times quantity, hedged by the three per-strike deltas.
func Butterfly(kind models.OptionKind, strikes [3]float64, premiums [3]models.NullFloat, deltas [3]float64,
	quantity int, spot models.NullFloat, rangeFraction, step float64) (Result, error) {
	if !(strikes[0] < strikes[1] && strikes[1] < strikes[2]) {
		return Result{}, apperrors.NewValidationError("strikes", strikes, "must be strictly increasing")
	}
	if quantity < 1 {
		return Result{}, apperrors.NewValidationError("quantity", quantity, "must be at least 1")
	}

	weights := [3]struct {
		action models.Action
		qty    int
	}{
		{models.Buy, quantity},
		{models.Sell, 2 * quantity},
		{models.Buy, quantity},
	}
	strategy := models.Strategy{Name: string(kind) + " butterfly"}
	for i, w := range weights {
		strategy.Legs = append(strategy.Legs, models.OptionLeg{
			Kind:     kind,
			Action:   w.action,
			Quantity: w.qty,
			Strike:   strikes[i],
			Premium:  premiums[i],
			Delta:    deltas[i],
		})
	}
	return Compute(strategy, spot, rangeFraction, step)
}

// EffectiveDelta is the net stock hedge of the legs in shares per contract
// unit: each leg contributes its hedge sign times quantity times delta.
func EffectiveDelta(legs []models.OptionLeg) float64 {
	var total float64
	for _, leg := range legs {
		signs, _ := models.SignsFor(leg.Action)
		total += signs.Hedge * float64(leg.Quantity) * leg.HedgeDelta()
	}
	return total
}

// LegPnL returns the leg's option profit per share at maturity price s,
// excluding the hedge.
func LegPnL(leg models.OptionLeg, s float64) float64 {
	signs, _ := models.SignsFor(leg.Action)
	return signs.Option * float64(leg.Quantity) * (leg.Intrinsic(s) - leg.Premium.Float64)
}

func evaluate(strategy models.Strategy, s0 float64, grid models.PriceGrid) Result {
	eff := EffectiveDelta(strategy.Legs)

	curve := models.PayoffCurve{S: grid.Points()}
	curve.Y = make([]float64, len(curve.S))
	for i, s := range curve.S {
		var pnl float64
		for _, leg := range strategy.Legs {
			pnl += LegPnL(leg, s)
		}
		pnl += eff * (s - s0)
		curve.Y[i] = pnl * models.ContractMultiplier
	}

	return Result{
		Grid:           grid,
		Curve:          curve,
		EffectiveDelta: eff,
		Region:         ProfitableRegion(curve),
	}
}

func prepare(spot models.NullFloat, rangeFraction, step float64) (float64, models.PriceGrid, error) {
	s0, ok := spot.Get()
	if !ok {
		return 0, models.PriceGrid{}, apperrors.NewDataError("spot", "", "spot price unavailable", apperrors.ErrInsufficientData)
	}
	if !isFinite(s0) || s0 <= 0 {
		return 0, models.PriceGrid{}, apperrors.NewValidationError("spot", s0, "must be positive")
	}
	if !isFinite(rangeFraction) || rangeFraction <= 0 || rangeFraction >= 1 {
		return 0, models.PriceGrid{}, apperrors.NewValidationError("range_fraction", rangeFraction, "must be in (0, 1)")
	}
	if !isFinite(step) || step <= 0 {
		return 0, models.PriceGrid{}, apperrors.NewValidationError("step", step, "must be positive")
	}
	grid := NewGrid(s0, rangeFraction, step)
	if grid.Len() > MaxGridPoints {
		return 0, models.PriceGrid{}, apperrors.NewValidationError("step", step, "grid too fine for range")
	}
	return s0, grid, nil
}

// ValidateStrategy checks leg count and every leg's fields. Missing premiums
// report ErrInsufficientData; out-of-domain values a ValidationError.
func ValidateStrategy(strategy models.Strategy) error {
	if n := len(strategy.Legs); n < 1 || n > models.MaxStrategyLegs {
		return apperrors.NewValidationError("legs", n, "strategy needs one to three legs")
	}
	for i, leg := range strategy.Legs {
		if err := validateLeg(i, leg); err != nil {
			return err
		}
	}
	return nil
}

func validateLeg(i int, leg models.OptionLeg) error {
	field := func(name string) string {
		return "legs[" + strconv.Itoa(i) + "]." + name
	}
	if leg.Kind != models.Call && leg.Kind != models.Put {
		return apperrors.NewValidationError(field("kind"), leg.Kind, "must be call or put")
	}
	if !leg.Action.Valid() {
		return apperrors.NewValidationError(field("action"), leg.Action, "must be buy or sell")
	}
	if leg.Quantity < 0 {
		return apperrors.NewValidationError(field("quantity"), leg.Quantity, "must not be negative")
	}
	if !isFinite(leg.Strike) || leg.Strike <= 0 {
		return apperrors.NewValidationError(field("strike"), leg.Strike, "must be positive")
	}
	premium, ok := leg.Premium.Get()
	if !ok {
		return apperrors.NewDataError("premium", field("premium"), "premium unavailable", apperrors.ErrInsufficientData)
	}
	if !isFinite(premium) || premium < 0 {
		return apperrors.NewValidationError(field("premium"), premium, "must not be negative")
	}
	if !isFinite(leg.Delta) || math.Abs(leg.Delta) > 1 {
		return apperrors.NewValidationError(field("delta"), leg.Delta, "must be within [-1, 1]")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
