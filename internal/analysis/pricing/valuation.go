package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

// ValuationInput carries one strike's market quotes and model parameters.
type ValuationInput struct {
	Symbol       string
	Date         time.Time
	Expiration   time.Time
	Strike       float64
	Spot         float64
	Volatility   float64
	RiskFreeRate float64
	Call         models.OptionQuote
	Put          models.OptionQuote
	Solver       SolverConfig
}

// Valuate prices both sides of a strike at the given volatility, backs out
// implied volatilities from the last traded premiums and classifies each
// model price against the quoted spread.
func Valuate(in ValuationInput) (models.Valuation, error) {
	if in.Symbol == "" {
		return models.Valuation{}, apperrors.NewValidationError("symbol", in.Symbol, "must not be empty")
	}
	t := YearsToMaturity(in.Date, in.Expiration)

	call, err := valueLeg(models.Call, in, t, in.Call)
	if err != nil {
		return models.Valuation{}, err
	}
	put, err := valueLeg(models.Put, in, t, in.Put)
	if err != nil {
		return models.Valuation{}, err
	}

	return models.Valuation{
		Symbol:     in.Symbol,
		Date:       models.Day(in.Date),
		Expiration: models.Day(in.Expiration),
		Strike:     in.Strike,
		StockPrice: in.Spot,
		Volatility: in.Volatility,
		Call:       call,
		Put:        put,
	}, nil
}

func valueLeg(kind models.OptionKind, in ValuationInput, t float64, q models.OptionQuote) (models.LegValue, error) {
	model, err := Price(kind, in.Spot, in.Strike, t, in.RiskFreeRate, in.Volatility)
	if err != nil {
		return models.LegValue{}, err
	}
	d, err := Delta(kind, in.Spot, in.Strike, t, in.RiskFreeRate, in.Volatility)
	if err != nil {
		return models.LegValue{}, err
	}

	lv := models.LegValue{
		Premium:    q.Last,
		Bid:        q.Bid,
		Ask:        q.Ask,
		ModelPrice: round(model, 4),
		Delta:      round(d, 4),
		ImpliedVol: models.NA,
	}
	if premium, ok := q.Last.Get(); ok {
		// Non-convergence leaves the implied vol missing; the snapshot is
		// still useful without it.
		if iv, err := ImpliedVolatility(kind, in.Spot, in.Strike, t, in.RiskFreeRate, premium, in.Solver); err == nil {
			lv.ImpliedVol = models.Some(round(iv, 4))
		} else if !apperrors.Is(err, apperrors.ErrNotConverged) {
			return models.LegValue{}, err
		}
	}
	lv.Verdict = Classify(model, q.Bid, q.Ask)
	return lv, nil
}

// Classify compares a model price with the quoted bid/ask.
func Classify(model float64, bid, ask models.NullFloat) models.Verdict {
	if math.IsNaN(model) || (!bid.Valid && !ask.Valid) {
		return models.VerdictUnknown
	}
	if a, ok := ask.Get(); ok && model > a {
		return models.VerdictRich
	}
	if b, ok := bid.Get(); ok && model < b {
		return models.VerdictCheap
	}
	return models.VerdictFair
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
