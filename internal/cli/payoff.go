package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"optionlab/internal/analysis/payoff"
	"optionlab/internal/analysis/pricing"
	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

func addPayoffCommands(rootCmd *cobra.Command, app *App) {
	cmd := newPayoffCmd(app)
	cmd.AddCommand(newButterflyCmd(app))
	rootCmd.AddCommand(cmd)
}

func newPayoffCmd(app *App) *cobra.Command {
	var (
		spot      string
		legs      []string
		withLegs  []string
		rangeFrac float64
		step      float64
		autoDelta bool
		days      int
		vol       float64
		rate      float64
		curve     bool
	)

	cmd := &cobra.Command{
		Use:   "payoff",
		Short: "Evaluate a strategy's payoff at maturity",
		Long: `Evaluate a one to three leg option strategy at maturity.

Legs are given as kind:action:qty:strike:premium[:delta], for example
  --leg call:buy:1:100:5.2:0.55 --leg put:buy:1:100:4.8:-0.45
A premium of NA marks an unquoted leg. A strategy with an unknown spot or an
unquoted leg is reported with status insufficient_data and no region.

With --with-leg a second strategy is evaluated on the same grid and the
combined payoff is reported as well.`,
		Example: `  optionlab payoff --spot 100 --leg call:buy:1:100:5:0.5 --leg put:buy:1:100:5:-0.5
  optionlab payoff --spot 100 --leg call:sell:1:110:2 --auto-delta --days 30 --vol 0.25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			engine := app.Config.Engine
			if !cmd.Flags().Changed("range") {
				rangeFrac = engine.RangeFraction
			}
			if !cmd.Flags().Changed("step") {
				step = engine.Step
			}
			if !cmd.Flags().Changed("rate") {
				rate = engine.RiskFreeRate
			}
			if !cmd.Flags().Changed("vol") {
				vol = engine.VolatilityGuess
			}

			s0, err := models.ParseNullFloat(spot)
			if err != nil {
				return apperrors.NewValidationError("spot", spot, "must be a number or NA")
			}

			first, err := parseStrategy("strategy", legs)
			if err != nil {
				return err
			}
			var second *models.Strategy
			if len(withLegs) > 0 {
				s, err := parseStrategy("hedge", withLegs)
				if err != nil {
					return err
				}
				second = &s
			}

			if autoDelta {
				price, ok := s0.Get()
				if !ok {
					return apperrors.NewValidationError("spot", spot, "--auto-delta needs a spot price")
				}
				t := float64(days) / pricing.DaysPerYear
				if err := fillDeltas(&first, price, t, rate, vol); err != nil {
					return err
				}
				if second != nil {
					if err := fillDeltas(second, price, t, rate, vol); err != nil {
						return err
					}
				}
			}

			if second == nil {
				res, err := payoff.Compute(first, s0, rangeFrac, step)
				if apperrors.Is(err, apperrors.ErrInsufficientData) {
					return displayInsufficient(output, first, err)
				}
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(payoffView(res, curve))
				}
				displayPayoff(output, first, res, curve)
				return nil
			}

			combined, err := payoff.Combine(first, *second, s0, rangeFrac, step)
			if apperrors.Is(err, apperrors.ErrInsufficientData) {
				return displayInsufficient(output, models.Strategy{Name: "combined"}, err)
			}
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"first":  payoffView(combined.First, curve),
					"second": payoffView(combined.Second, curve),
					"total":  payoffView(combined.Total, curve),
				})
			}
			displayPayoff(output, first, combined.First, false)
			output.Println()
			displayPayoff(output, *second, combined.Second, false)
			output.Println()
			displayPayoff(output, models.Strategy{Name: "combined"}, combined.Total, curve)
			return nil
		},
	}

	cmd.Flags().StringVar(&spot, "spot", "", "underlying price (NA when unknown)")
	cmd.Flags().StringArrayVar(&legs, "leg", nil, "option leg kind:action:qty:strike:premium[:delta] (repeatable)")
	cmd.Flags().StringArrayVar(&withLegs, "with-leg", nil, "leg of a second strategy combined on the same grid")
	cmd.Flags().Float64Var(&rangeFrac, "range", 0, "grid half-width as a fraction of spot (default from config)")
	cmd.Flags().Float64Var(&step, "step", 0, "grid step (default from config)")
	cmd.Flags().BoolVar(&autoDelta, "auto-delta", false, "compute leg deltas with Black-Scholes")
	cmd.Flags().IntVar(&days, "days", 30, "days to expiry for --auto-delta")
	cmd.Flags().Float64Var(&vol, "vol", 0, "volatility for --auto-delta (default from config)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "risk-free rate for --auto-delta (default from config)")
	cmd.Flags().BoolVar(&curve, "curve", false, "print the sampled payoff curve")
	cmd.MarkFlagRequired("spot")
	cmd.MarkFlagRequired("leg")

	return cmd
}

func newButterflyCmd(app *App) *cobra.Command {
	var (
		kind      string
		strikes   []float64
		premiums  []string
		deltas    []float64
		qty       int
		spot      string
		rangeFrac float64
		step      float64
		curve     bool
	)

	cmd := &cobra.Command{
		Use:   "butterfly",
		Short: "Evaluate a long butterfly",
		Long:  "Buy the low strike, sell two of the middle strike and buy the high strike.",
		Example: `  optionlab payoff butterfly --kind call --strikes 95,100,105 --premiums 7,4,2 --spot 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !cmd.Flags().Changed("range") {
				rangeFrac = app.Config.Engine.RangeFraction
			}
			if !cmd.Flags().Changed("step") {
				step = app.Config.Engine.Step
			}

			k, err := models.ParseOptionKind(kind)
			if err != nil {
				return err
			}
			s0, err := models.ParseNullFloat(spot)
			if err != nil {
				return apperrors.NewValidationError("spot", spot, "must be a number or NA")
			}
			if len(strikes) != 3 {
				return apperrors.NewValidationError("strikes", strikes, "exactly three strikes are required")
			}
			if len(premiums) != 3 {
				return apperrors.NewValidationError("premiums", premiums, "exactly three premiums are required")
			}
			if len(deltas) == 0 {
				deltas = []float64{0, 0, 0}
			}
			if len(deltas) != 3 {
				return apperrors.NewValidationError("deltas", deltas, "exactly three deltas are required")
			}

			var ks [3]float64
			var ps [3]models.NullFloat
			var ds [3]float64
			for i := 0; i < 3; i++ {
				ks[i] = strikes[i]
				ds[i] = deltas[i]
				if ps[i], err = models.ParseNullFloat(premiums[i]); err != nil {
					return apperrors.NewValidationError("premiums", premiums[i], "must be a number or NA")
				}
			}

			strategy := models.Strategy{Name: string(k) + " butterfly"}
			for i, w := range []int{qty, 2 * qty, qty} {
				action := models.Buy
				if i == 1 {
					action = models.Sell
				}
				strategy.Legs = append(strategy.Legs, models.OptionLeg{
					Kind: k, Action: action, Quantity: w, Strike: ks[i], Premium: ps[i], Delta: ds[i],
				})
			}

			res, err := payoff.Butterfly(k, ks, ps, ds, qty, s0, rangeFrac, step)
			if apperrors.Is(err, apperrors.ErrInsufficientData) {
				return displayInsufficient(output, strategy, err)
			}
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(payoffView(res, curve))
			}
			displayPayoff(output, strategy, res, curve)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "call", "option kind (call or put)")
	cmd.Flags().Float64SliceVar(&strikes, "strikes", nil, "three increasing strikes")
	cmd.Flags().StringSliceVar(&premiums, "premiums", nil, "three premiums (NA when unquoted)")
	cmd.Flags().Float64SliceVar(&deltas, "deltas", nil, "three deltas (default 0)")
	cmd.Flags().IntVar(&qty, "qty", 1, "contracts per wing")
	cmd.Flags().StringVar(&spot, "spot", "", "underlying price (NA when unknown)")
	cmd.Flags().Float64Var(&rangeFrac, "range", 0, "grid half-width as a fraction of spot (default from config)")
	cmd.Flags().Float64Var(&step, "step", 0, "grid step (default from config)")
	cmd.Flags().BoolVar(&curve, "curve", false, "print the sampled payoff curve")
	cmd.MarkFlagRequired("strikes")
	cmd.MarkFlagRequired("premiums")
	cmd.MarkFlagRequired("spot")

	return cmd
}

const (
	statusOK               = "ok"
	statusInsufficientData = "insufficient_data"
)

// displayInsufficient reports a strategy that cannot be evaluated because
// the spot or a premium is unknown. It carries no grid or region, so it is
// never mistaken for a strategy that was evaluated and found unprofitable.
func displayInsufficient(output *Output, strategy models.Strategy, err error) error {
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{
			"status": statusInsufficientData,
			"error":  err.Error(),
		})
	}
	output.Bold("%s", strings.ToUpper(strategy.Name))
	output.Printf("  Status:          %s\n", output.Yellow("insufficient data"))
	output.Printf("  Error:           %v\n", err)
	return nil
}

// parseStrategy parses the --leg values of one strategy.
func parseStrategy(name string, specs []string) (models.Strategy, error) {
	strategy := models.Strategy{Name: name}
	for _, s := range specs {
		leg, err := ParseLeg(s)
		if err != nil {
			return models.Strategy{}, err
		}
		strategy.Legs = append(strategy.Legs, leg)
	}
	return strategy, nil
}

// ParseLeg parses kind:action:qty:strike:premium[:delta].
func ParseLeg(s string) (models.OptionLeg, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 5 && len(parts) != 6 {
		return models.OptionLeg{}, apperrors.NewValidationError("leg", s, "expected kind:action:qty:strike:premium[:delta]")
	}

	kind, err := models.ParseOptionKind(parts[0])
	if err != nil {
		return models.OptionLeg{}, err
	}
	action, err := models.ParseAction(parts[1])
	if err != nil {
		return models.OptionLeg{}, err
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return models.OptionLeg{}, apperrors.NewValidationError("leg", s, "quantity must be an integer")
	}
	strike, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return models.OptionLeg{}, apperrors.NewValidationError("leg", s, "strike must be a number")
	}
	premium, err := models.ParseNullFloat(parts[4])
	if err != nil {
		return models.OptionLeg{}, apperrors.NewValidationError("leg", s, "premium must be a number or NA")
	}

	leg := models.OptionLeg{
		Kind:     kind,
		Action:   action,
		Quantity: qty,
		Strike:   strike,
		Premium:  premium,
	}
	if len(parts) == 6 {
		if leg.Delta, err = strconv.ParseFloat(strings.TrimSpace(parts[5]), 64); err != nil {
			return models.OptionLeg{}, apperrors.NewValidationError("leg", s, "delta must be a number")
		}
	}
	return leg, nil
}

// fillDeltas replaces every leg delta with its Black-Scholes delta.
func fillDeltas(strategy *models.Strategy, spot, t, rate, vol float64) error {
	for i := range strategy.Legs {
		leg := &strategy.Legs[i]
		d, err := pricing.Delta(leg.Kind, spot, leg.Strike, t, rate, vol)
		if err != nil {
			return fmt.Errorf("leg %d delta: %w", i+1, err)
		}
		leg.Delta = d
	}
	return nil
}

type curvePoint struct {
	S float64 `json:"s"`
	Y float64 `json:"y"`
}

// payoffView is the JSON shape of a result; the full curve is only
// included on request.
func payoffView(res payoff.Result, withCurve bool) map[string]interface{} {
	view := map[string]interface{}{
		"status":          statusOK,
		"grid":            res.Grid,
		"effective_delta": res.EffectiveDelta,
		"region":          res.Region,
		"profitable":      res.Region.String(),
	}
	if withCurve {
		points := make([]curvePoint, len(res.Curve.S))
		for i := range points {
			points[i] = curvePoint{S: res.Curve.S[i], Y: res.Curve.Y[i]}
		}
		view["curve"] = points
	}
	return view
}

func displayPayoff(output *Output, strategy models.Strategy, res payoff.Result, withCurve bool) {
	output.Bold("%s", strings.ToUpper(strategy.Name))
	if len(strategy.Legs) > 0 {
		table := NewTable(output, "Kind", "Action", "Qty", "Strike", "Premium", "Delta")
		for _, leg := range strategy.Legs {
			table.AddRow(
				string(leg.Kind),
				string(leg.Action),
				strconv.Itoa(leg.Quantity),
				FormatPrice(leg.Strike),
				FormatNull(leg.Premium),
				fmt.Sprintf("%.4f", leg.Delta),
			)
		}
		table.Render()
	}

	output.Printf("  Grid:            %s .. %s step %g (%d points)\n",
		FormatPrice(res.Grid.Min), FormatPrice(res.Grid.Max), res.Grid.Step, res.Grid.Len())
	output.Printf("  Effective delta: %.4f\n", res.EffectiveDelta)
	if res.Region.Never || len(res.Region.Intervals) == 0 {
		output.Printf("  Profitable:      %s\n", output.Red(res.Region.String()))
	} else {
		output.Printf("  Profitable:      %s\n", output.Green(res.Region.String()))
	}

	if !withCurve || len(res.Curve.S) == 0 {
		return
	}
	output.Println()
	table := NewTable(output, "Price", "Payoff")
	for _, i := range sampleIndexes(len(res.Curve.S), 21) {
		table.AddRow(FormatPrice(res.Curve.S[i]), output.FormatPnL(res.Curve.Y[i]))
	}
	table.Render()
}

// sampleIndexes picks at most k evenly spaced indexes of n, always
// including both ends.
func sampleIndexes(n, k int) []int {
	if n <= k {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, k)
	for j := 0; j < k; j++ {
		out = append(out, j*(n-1)/(k-1))
	}
	return out
}
