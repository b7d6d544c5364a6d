package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"optionlab/internal/analysis/pricing"
	apperrors "optionlab/internal/errors"
	"optionlab/internal/logging"
	"optionlab/internal/marketdata"
	"optionlab/internal/metrics"
	"optionlab/internal/models"
	"optionlab/internal/store"
)

func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newValueCmd(app))
}

func newPriceCmd(app *App) *cobra.Command {
	var (
		kind   string
		spot   float64
		strike float64
		days   int
		expiry string
		rate   float64
		vol    float64
		market float64
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Black-Scholes price, Greeks and implied volatility",
		Long: `Price a European option under Black-Scholes with no dividends.

With --market the implied volatility of the quoted premium is solved for as well.`,
		Example: `  optionlab price --kind call --spot 100 --strike 100 --days 30 --vol 0.2
  optionlab price --kind put --spot 100 --strike 95 --expiry 2025-06-20 --market 1.85`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			engine := app.Config.Engine
			if !cmd.Flags().Changed("rate") {
				rate = engine.RiskFreeRate
			}
			if !cmd.Flags().Changed("vol") {
				vol = engine.VolatilityGuess
			}

			k, err := models.ParseOptionKind(kind)
			if err != nil {
				return err
			}

			t := float64(days) / pricing.DaysPerYear
			if expiry != "" {
				exp, err := models.ParseDay(expiry)
				if err != nil {
					return apperrors.NewValidationError("expiry", expiry, "must be YYYY-MM-DD")
				}
				t = pricing.YearsToMaturity(app.Calendar.Today(time.Now()), exp)
			}

			price, err := pricing.Price(k, spot, strike, t, rate, vol)
			if err != nil {
				return err
			}
			greeks, err := pricing.Greeks(k, spot, strike, t, rate, vol)
			if err != nil {
				return err
			}
			lower, upper := pricing.Bounds(k, spot, strike, t, rate)

			iv := models.NA
			iterations := 0
			if cmd.Flags().Changed("market") {
				solver := pricing.SolverConfig{
					Guess:         engine.VolatilityGuess,
					Tolerance:     engine.SolverTolerance,
					MaxIterations: engine.SolverMaxIterations,
				}
				sol, err := pricing.SolveImpliedVolatility(k, spot, strike, t, rate, market, solver)
				contract := fmt.Sprintf("%s %g", k, strike)
				logging.LogSolver(app.Logger, contract, sol.Volatility, sol.Iterations, err)
				metrics.RecordSolve(sol.Iterations, err)
				switch {
				case err == nil:
					iv = models.Some(sol.Volatility)
					iterations = sol.Iterations
				case apperrors.Is(err, apperrors.ErrNotConverged):
					output.Warning("Implied volatility not found: %v", err)
				default:
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"kind":        k,
					"spot":        spot,
					"strike":      strike,
					"years":       t,
					"rate":        rate,
					"volatility":  vol,
					"price":       price,
					"greeks":      greeks,
					"lower_bound": lower,
					"upper_bound": upper,
					"implied_vol": iv,
					"iterations":  iterations,
				})
			}

			output.Bold("%s %s @ %s", string(k), FormatPrice(strike), FormatPrice(spot))
			output.Printf("  Time to expiry:  %.4f years\n", t)
			output.Printf("  Volatility:      %.2f%%\n", vol*100)
			output.Printf("  Risk-free rate:  %.2f%%\n", rate*100)
			output.Println()
			output.Printf("  Price:           %.4f\n", price)
			output.Printf("  Greeks:          %s\n", FormatGreeks(greeks))
			output.Printf("  No-arb bounds:   [%.4f, %.4f]\n", lower, upper)
			if cmd.Flags().Changed("market") {
				output.Println()
				output.Printf("  Market premium:  %.4f\n", market)
				output.Printf("  Implied vol:     %s", FormatIV(iv))
				if iv.Valid {
					output.Printf(" (%d iterations)", iterations)
				}
				output.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "call", "option kind (call or put)")
	cmd.Flags().Float64Var(&spot, "spot", 0, "underlying price")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike price")
	cmd.Flags().IntVar(&days, "days", 30, "calendar days to expiry")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiration date YYYY-MM-DD (overrides --days)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "risk-free rate (default from config)")
	cmd.Flags().Float64Var(&vol, "vol", 0, "volatility (default from config)")
	cmd.Flags().Float64Var(&market, "market", 0, "market premium to solve implied volatility for")
	cmd.MarkFlagRequired("spot")
	cmd.MarkFlagRequired("strike")

	return cmd
}

func newValueCmd(app *App) *cobra.Command {
	var (
		expiry  string
		strike  float64
		vol     float64
		save    bool
		history bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "value SYMBOL",
		Short: "Compare model prices with live quotes for one strike",
		Long: `Value the call and put of one strike at the given volatility, back out
implied volatilities from the last traded premiums and flag each side as
rich, cheap or fair against the quoted spread.`,
		Example: `  optionlab value AAPL --expiry 2025-06-20 --strike 200 --vol 0.25 --save
  optionlab value AAPL --history`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			symbol := args[0]

			if history {
				st, err := app.OpenStore()
				if err != nil {
					return err
				}
				vals, err := st.GetValuations(ctx, store.ValuationFilter{Symbol: symbol, Limit: limit})
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(vals)
				}
				displayValuationHistory(output, symbol, vals)
				return nil
			}

			if expiry == "" || strike <= 0 {
				return apperrors.NewValidationError("expiry", expiry, "--expiry and --strike are required")
			}
			exp, err := models.ParseDay(expiry)
			if err != nil {
				return apperrors.NewValidationError("expiry", expiry, "must be YYYY-MM-DD")
			}
			if !cmd.Flags().Changed("vol") {
				vol = app.Config.Engine.VolatilityGuess
			}

			md := app.MarketData()
			quote, err := md.Quote(ctx, symbol)
			if err != nil {
				return err
			}
			spot, ok := quote.Price.Get()
			if !ok {
				return apperrors.MissingData("quote", symbol, "no underlying price")
			}
			callQ, err := md.OptionQuote(ctx, marketdata.ContractID(symbol, exp, models.Call, strike))
			if err != nil {
				return err
			}
			putQ, err := md.OptionQuote(ctx, marketdata.ContractID(symbol, exp, models.Put, strike))
			if err != nil {
				return err
			}

			engine := app.Config.Engine
			val, err := pricing.Valuate(pricing.ValuationInput{
				Symbol:       symbol,
				Date:         app.Calendar.Today(time.Now()),
				Expiration:   exp,
				Strike:       strike,
				Spot:         spot,
				Volatility:   vol,
				RiskFreeRate: engine.RiskFreeRate,
				Call:         callQ,
				Put:          putQ,
				Solver: pricing.SolverConfig{
					Guess:         engine.VolatilityGuess,
					Tolerance:     engine.SolverTolerance,
					MaxIterations: engine.SolverMaxIterations,
				},
			})
			if err != nil {
				return err
			}

			if save {
				st, err := app.OpenStore()
				if err != nil {
					return err
				}
				if err := st.SaveValuation(ctx, val); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(val)
			}
			displayValuation(output, val)
			if save {
				output.Println()
				output.Success("✓ Valuation saved")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&expiry, "expiry", "", "expiration date YYYY-MM-DD")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike price")
	cmd.Flags().Float64Var(&vol, "vol", 0, "model volatility (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "store the valuation")
	cmd.Flags().BoolVar(&history, "history", false, "list stored valuations instead")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show with --history")

	return cmd
}

func displayValuation(output *Output, v models.Valuation) {
	output.Bold("%s %s %s", v.Symbol, FormatDate(v.Expiration), FormatPrice(v.Strike))
	output.Printf("  Spot:        %s\n", FormatPrice(v.StockPrice))
	output.Printf("  Model vol:   %.2f%%\n", v.Volatility*100)
	output.Println()

	table := NewTable(output, "Side", "Premium", "Bid/Ask", "Model", "Delta", "IV", "Verdict")
	for _, side := range []struct {
		name string
		leg  models.LegValue
	}{{"call", v.Call}, {"put", v.Put}} {
		table.AddRow(
			side.name,
			FormatNull(side.leg.Premium),
			FormatBidAsk(side.leg.Bid, side.leg.Ask),
			fmt.Sprintf("%.4f", side.leg.ModelPrice),
			fmt.Sprintf("%.4f", side.leg.Delta),
			FormatIV(side.leg.ImpliedVol),
			output.Verdict(side.leg.Verdict),
		)
	}
	table.Render()
}

func displayValuationHistory(output *Output, symbol string, vals []models.Valuation) {
	if len(vals) == 0 {
		output.Info("No stored valuations for %s.", symbol)
		return
	}
	output.Bold("Valuations for %s", symbol)
	table := NewTable(output, "Date", "Expiry", "Strike", "Spot", "Call IV", "Call", "Put IV", "Put")
	for _, v := range vals {
		table.AddRow(
			FormatDate(v.Date),
			FormatDate(v.Expiration),
			FormatPrice(v.Strike),
			FormatPrice(v.StockPrice),
			FormatIV(v.Call.ImpliedVol),
			output.Verdict(v.Call.Verdict),
			FormatIV(v.Put.ImpliedVol),
			output.Verdict(v.Put.Verdict),
		)
	}
	table.Render()
}
