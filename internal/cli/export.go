package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	apperrors "optionlab/internal/errors"
	"optionlab/internal/marketdata"
	"optionlab/internal/models"
)

func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newImportCmd(app))
}

// recordRow is the CSV shape of a trade record.
type recordRow struct {
	TradeDate       string           `csv:"trade_date"`
	Symbol          string           `csv:"symbol"`
	Strike          float64          `csv:"strike"`
	Expiration      string           `csv:"expiration"`
	StockTradePrice float64          `csv:"stock_trade_price"`
	EffectiveDelta  float64          `csv:"effective_delta"`
	CallTradePrice  float64          `csv:"call_trade_price"`
	CallAction      string           `csv:"call_action"`
	CallQty         int              `csv:"call_qty"`
	PutTradePrice   float64          `csv:"put_trade_price"`
	PutAction       string           `csv:"put_action"`
	PutQty          int              `csv:"put_qty"`
	StockClosePrice float64          `csv:"stock_close_price"`
	CallClosePrice  float64          `csv:"call_close_price"`
	PutClosePrice   float64          `csv:"put_close_price"`
	DailyPnL        float64          `csv:"daily_pnl"`
	PctChange       models.NullFloat `csv:"pct_change"`
}

func toRecordRow(r models.TradeRecord) recordRow {
	return recordRow{
		TradeDate:       r.TradeDate.Format(models.DateLayout),
		Symbol:          r.Symbol,
		Strike:          r.Strike,
		Expiration:      r.Expiration.Format(models.DateLayout),
		StockTradePrice: r.StockTradePrice,
		EffectiveDelta:  r.EffectiveDelta,
		CallTradePrice:  r.CallTradePrice,
		CallAction:      string(r.CallAction),
		CallQty:         r.CallQty,
		PutTradePrice:   r.PutTradePrice,
		PutAction:       string(r.PutAction),
		PutQty:          r.PutQty,
		StockClosePrice: r.StockClosePrice,
		CallClosePrice:  r.CallClosePrice,
		PutClosePrice:   r.PutClosePrice,
		DailyPnL:        r.DailyPnL,
		PctChange:       r.PctChange,
	}
}

func newExportCmd(app *App) *cobra.Command {
	var (
		format  string
		outFile string
		from    string
	)

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a position's PnL history",
		Long:  "Write the stored daily PnL rows of a position as CSV or JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			format = strings.ToLower(format)
			if format != "csv" && format != "json" {
				return apperrors.NewValidationError("format", format, "must be csv or json")
			}

			pos, err := loadPosition(ctx, app, args[0])
			if err != nil {
				return err
			}
			tracker, err := app.Tracker()
			if err != nil {
				return err
			}
			var since time.Time
			if from != "" {
				if since, err = models.ParseDay(from); err != nil {
					return apperrors.NewValidationError("from", from, "must be YYYY-MM-DD")
				}
			}
			records, err := tracker.History(ctx, pos, since)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("creating %s: %w", outFile, err)
				}
				defer f.Close()
				w = f
			}

			if format == "json" {
				out := &Output{writer: w, jsonMode: true}
				if err := out.JSON(records); err != nil {
					return err
				}
			} else {
				rows := make([]recordRow, len(records))
				for i, r := range records {
					rows[i] = toRecordRow(r)
				}
				if err := gocsv.Marshal(&rows, w); err != nil {
					return fmt.Errorf("writing csv: %w", err)
				}
			}

			if outFile != "" {
				output.Success("✓ Exported %d rows to %s", len(records), outFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv, json)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&from, "from", "", "only export rows on or after YYYY-MM-DD")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import ID FILE",
		Short: "Import a close history into the market data directory",
		Long: `Copy a date,close CSV into the market data directory as the history of
ID, an OCC contract symbol or an underlying ticker.`,
		Example: `  optionlab import AAPL250221C00240000 call.csv
  optionlab import AAPL aapl.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id := strings.ToUpper(args[0])

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			var rows []struct {
				Date  string           `csv:"date"`
				Close models.NullFloat `csv:"close"`
			}
			if err := gocsv.Unmarshal(f, &rows); err != nil {
				return apperrors.NewDataError("history", id, "parsing csv", err)
			}
			closes := make([]models.Close, 0, len(rows))
			for _, r := range rows {
				d, err := models.ParseDay(strings.TrimSpace(r.Date))
				if err != nil {
					return apperrors.NewDataError("history", id, fmt.Sprintf("bad date %q", r.Date), err)
				}
				if v, ok := r.Close.Get(); ok {
					closes = append(closes, models.Close{Date: d, Close: v})
				}
			}

			provider := marketdata.NewCSVProvider(app.Config.MarketData.DataDir)
			if err := provider.WriteHistory(id, closes); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"id": id, "closes": len(closes)})
			}
			output.Success("✓ Imported %d closes for %s", len(closes), id)
			return nil
		},
	}
}
