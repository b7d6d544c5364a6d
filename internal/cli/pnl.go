package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/logging"
	"optionlab/internal/models"
	"optionlab/internal/pnl"
)

// addPnLCommands adds position tracking commands.
func addPnLCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "pnl",
		Aliases: []string{"position", "positions"},
		Short:   "Track delta-hedged straddle positions",
		Long:    "Record straddle positions and reconcile their daily mark-to-market PnL.",
	}

	cmd.AddCommand(newPnLAddCmd(app))
	cmd.AddCommand(newPnLListCmd(app))
	cmd.AddCommand(newPnLShowCmd(app))
	cmd.AddCommand(newPnLRefreshCmd(app))
	cmd.AddCommand(newPnLWatchCmd(app))
	cmd.AddCommand(newPnLRemoveCmd(app))

	rootCmd.AddCommand(cmd)
}

func newPnLAddCmd(app *App) *cobra.Command {
	var (
		tradeDate  string
		expiry     string
		strike     float64
		stockPrice float64
		delta      float64
		callPrice  float64
		callAction string
		callQty    int
		putPrice   float64
		putAction  string
		putQty     int
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "add SYMBOL",
		Short: "Record a straddle position",
		Example: `  optionlab pnl add AAPL --date 2025-01-02 --expiry 2025-02-21 --strike 240 \
    --stock 243.85 --delta 0.12 --call 8.1 --put 6.9 --call-action buy --put-action buy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			entry, err := models.ParseDay(tradeDate)
			if err != nil {
				return apperrors.NewValidationError("date", tradeDate, "must be YYYY-MM-DD")
			}
			exp, err := models.ParseDay(expiry)
			if err != nil {
				return apperrors.NewValidationError("expiry", expiry, "must be YYYY-MM-DD")
			}
			ca, err := models.ParseAction(callAction)
			if err != nil {
				return err
			}
			pa, err := models.ParseAction(putAction)
			if err != nil {
				return err
			}

			pos := models.Position{
				TradeDate:       entry,
				Symbol:          args[0],
				Strike:          strike,
				Expiration:      exp,
				StockTradePrice: stockPrice,
				EffectiveDelta:  delta,
				CallTradePrice:  callPrice,
				CallAction:      ca,
				CallQty:         callQty,
				PutTradePrice:   putPrice,
				PutAction:       pa,
				PutQty:          putQty,
			}

			tracker, err := app.Tracker()
			if err != nil {
				return err
			}
			if err := tracker.AddTrade(ctx, &pos); err != nil {
				return err
			}

			var res *pnl.Result
			if refresh {
				r, err := tracker.Refresh(ctx, pos)
				if err != nil {
					output.Warning("Position saved but refresh failed: %v", err)
				} else {
					res = &r
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"position": pos,
					"refresh":  res,
				})
			}
			output.Success("✓ Position %d saved: %s", pos.ID, pnl.PositionLabel(pos))
			output.Printf("  Investment: %s\n", FormatCurrency(pos.Investment()))
			if res != nil {
				if last, ok := res.Last(); ok {
					output.Printf("  Latest PnL: %s (%s) on %s\n",
						output.FormatPnL(last.DailyPnL), output.FormatPercent(last.PctChange), FormatDate(last.TradeDate))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tradeDate, "date", "", "entry date YYYY-MM-DD")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiration date YYYY-MM-DD")
	cmd.Flags().Float64Var(&strike, "strike", 0, "strike of both legs")
	cmd.Flags().Float64Var(&stockPrice, "stock", 0, "underlying price at entry")
	cmd.Flags().Float64Var(&delta, "delta", 0, "effective delta of the stock hedge")
	cmd.Flags().Float64Var(&callPrice, "call", 0, "call entry premium")
	cmd.Flags().StringVar(&callAction, "call-action", "buy", "call opening action (buy or sell)")
	cmd.Flags().IntVar(&callQty, "call-qty", 1, "call contracts")
	cmd.Flags().Float64Var(&putPrice, "put", 0, "put entry premium")
	cmd.Flags().StringVar(&putAction, "put-action", "buy", "put opening action (buy or sell)")
	cmd.Flags().IntVar(&putQty, "put-qty", 1, "put contracts")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reconcile the new position immediately")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("expiry")
	cmd.MarkFlagRequired("strike")
	cmd.MarkFlagRequired("stock")

	return cmd
}

func newPnLListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			tracker, err := app.Tracker()
			if err != nil {
				return err
			}
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			positions, err := st.ListPositions(ctx)
			if err != nil {
				return err
			}

			type row struct {
				Position    models.Position     `json:"position"`
				LastRefresh *time.Time          `json:"last_refresh"`
				Latest      *models.TradeRecord `json:"latest"`
			}
			rows := make([]row, 0, len(positions))
			for _, pos := range positions {
				r := row{Position: pos}
				if t := tracker.LastRefresh(pos); !t.IsZero() {
					r.LastRefresh = &t
				}
				history, err := tracker.History(ctx, pos, time.Time{})
				if err != nil {
					return err
				}
				if len(history) > 0 {
					r.Latest = &history[len(history)-1]
				}
				rows = append(rows, r)
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Info("No positions tracked.")
				output.Dim("Add one with 'optionlab pnl add'.")
				return nil
			}

			table := NewTable(output, "ID", "Position", "Entry", "Investment", "Latest", "PnL", "%", "Refreshed")
			for _, r := range rows {
				latest, pnlCell, pctCell := "-", "-", "-"
				if r.Latest != nil {
					latest = FormatDate(r.Latest.TradeDate)
					pnlCell = output.FormatPnL(r.Latest.DailyPnL)
					pctCell = output.FormatPercent(r.Latest.PctChange)
				}
				refreshed := "never"
				if r.LastRefresh != nil {
					refreshed = FormatDuration(time.Since(*r.LastRefresh)) + " ago"
				}
				table.AddRow(
					strconv.FormatInt(r.Position.ID, 10),
					pnl.PositionLabel(r.Position),
					FormatDate(r.Position.TradeDate),
					FormatCurrency(r.Position.Investment()),
					latest,
					pnlCell,
					pctCell,
					refreshed,
				)
			}
			table.Render()
			return nil
		},
	}
}

func newPnLShowCmd(app *App) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a position's daily PnL history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			pos, err := loadPosition(ctx, app, args[0])
			if err != nil {
				return err
			}
			var since time.Time
			if from != "" {
				if since, err = models.ParseDay(from); err != nil {
					return apperrors.NewValidationError("from", from, "must be YYYY-MM-DD")
				}
			}

			tracker, err := app.Tracker()
			if err != nil {
				return err
			}
			records, err := tracker.History(ctx, pos, since)
			if err != nil {
				return err
			}
			summary, sumErr := pnl.Summarize(records)

			if output.IsJSON() {
				view := map[string]interface{}{
					"position": pos,
					"records":  records,
				}
				if sumErr == nil {
					view["summary"] = summary
				}
				return output.JSON(view)
			}

			output.Bold("Position %d: %s", pos.ID, pnl.PositionLabel(pos))
			output.Printf("  Entry %s  stock %s  call %s x%d  put %s x%d  delta %.4f\n",
				FormatDate(pos.TradeDate), FormatPrice(pos.StockTradePrice),
				FormatPrice(pos.CallTradePrice), pos.CallQty,
				FormatPrice(pos.PutTradePrice), pos.PutQty, pos.EffectiveDelta)
			output.Println()

			if len(records) == 0 {
				output.Info("No PnL history yet. Run 'optionlab pnl refresh %d'.", pos.ID)
				return nil
			}
			displayRecords(output, records)

			if sumErr == nil {
				output.Println()
				output.Box("Summary", []string{
					fmt.Sprintf("Days:         %d (%s to %s)", summary.Days, FormatDate(summary.First), FormatDate(summary.Last)),
					fmt.Sprintf("Latest:       %s (%s)", output.FormatPnL(summary.LastPnL), output.FormatPercent(summary.LastPct)),
					fmt.Sprintf("Best:         %s on %s", output.FormatPnL(summary.Best), FormatDate(summary.BestDate)),
					fmt.Sprintf("Worst:        %s on %s", output.FormatPnL(summary.Worst), FormatDate(summary.WorstDate)),
					fmt.Sprintf("Max drawdown: %s", FormatCurrency(summary.MaxDrawdown)),
				})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "only show rows on or after YYYY-MM-DD")
	return cmd
}

func newPnLRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [ID]",
		Short: "Reconcile positions with the latest market data",
		Long:  "Reconcile one position, or every tracked position when no ID is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			tracker, err := app.Tracker()
			if err != nil {
				return err
			}

			var results []pnl.Result
			var refreshErr error
			if len(args) == 1 {
				pos, err := loadPosition(ctx, app, args[0])
				if err != nil {
					return err
				}
				res, err := tracker.Refresh(ctx, pos)
				if err != nil {
					return err
				}
				results = []pnl.Result{res}
			} else {
				results, refreshErr = tracker.RefreshAll(ctx)
			}

			if output.IsJSON() {
				if err := output.JSON(results); err != nil {
					return err
				}
				return refreshErr
			}

			table := NewTable(output, "ID", "Position", "Rows", "New", "Updated", "Latest", "PnL", "%")
			for _, res := range results {
				latest, pnlCell, pctCell := "-", "-", "-"
				if last, ok := res.Last(); ok {
					latest = FormatDate(last.TradeDate)
					if res.Live {
						latest += " (live)"
					}
					pnlCell = output.FormatPnL(last.DailyPnL)
					pctCell = output.FormatPercent(last.PctChange)
				}
				table.AddRow(
					strconv.FormatInt(res.Position.ID, 10),
					pnl.PositionLabel(res.Position),
					strconv.Itoa(len(res.Records)),
					strconv.Itoa(res.Upserts.Inserted),
					strconv.Itoa(res.Upserts.Replaced),
					latest,
					pnlCell,
					pctCell,
				)
			}
			if len(results) > 0 {
				table.Render()
			}
			if refreshErr != nil {
				output.Error("Some positions failed to refresh: %v", refreshErr)
				return refreshErr
			}
			if len(results) == 0 {
				output.Info("No positions tracked.")
			}
			return nil
		},
	}
}

func newPnLWatchCmd(app *App) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Refresh a position on an interval until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !cmd.Flags().Changed("interval") {
				interval = app.Config.MarketData.RefreshInterval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pos, err := loadPosition(ctx, app, args[0])
			if err != nil {
				return err
			}
			tracker, err := app.Tracker()
			if err != nil {
				return err
			}

			if !output.IsJSON() {
				output.Bold("Watching %s every %s (Ctrl+C to stop)", pnl.PositionLabel(pos), interval)
			}
			logger := logging.FromContext(ctx).With().Int64("position_id", pos.ID).Logger()
			err = tracker.Watch(ctx, pos, interval, func(res pnl.Result, err error) {
				if err != nil {
					logger.Warn().Err(err).Msg("Watch refresh failed")
				}
				if output.IsJSON() {
					if err == nil {
						output.JSON(res)
					}
					return
				}
				stamp := time.Now().Format("15:04:05")
				if err != nil {
					output.Error("[%s] refresh failed: %v", stamp, err)
					return
				}
				last, ok := res.Last()
				if !ok {
					output.Dim("[%s] no rows yet", stamp)
					return
				}
				source := "close"
				if res.Live {
					source = "live"
				}
				output.Printf("[%s] %s %-5s PnL %s (%s)\n", stamp, FormatDate(last.TradeDate), source,
					output.FormatPnL(last.DailyPnL), output.FormatPercent(last.PctChange))
			})
			if apperrors.Is(err, context.Canceled) {
				logger.Info().Msg("Watch stopped")
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "refresh interval (default from config)")
	return cmd
}

func newPnLRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Stop tracking a position",
		Long:    "Remove a position. Its stored PnL rows are kept.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			if err := st.DeletePosition(cmd.Context(), id); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"removed": id})
			}
			output.Success("✓ Position %d removed", id)
			return nil
		},
	}
}

func loadPosition(ctx context.Context, app *App, arg string) (models.Position, error) {
	id, err := parseID(arg)
	if err != nil {
		return models.Position{}, err
	}
	st, err := app.OpenStore()
	if err != nil {
		return models.Position{}, err
	}
	return st.GetPosition(ctx, id)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.NewValidationError("id", s, "must be a positive position ID")
	}
	return id, nil
}

func displayRecords(output *Output, records []models.TradeRecord) {
	table := NewTable(output, "Date", "Stock", "Call", "Put", "PnL", "%")
	for _, r := range records {
		table.AddRow(
			FormatDate(r.TradeDate),
			FormatPrice(r.StockClosePrice),
			FormatPrice(r.CallClosePrice),
			FormatPrice(r.PutClosePrice),
			output.FormatPnL(r.DailyPnL),
			output.FormatPercent(r.PctChange),
		)
	}
	table.Render()
}
