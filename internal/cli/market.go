package cli

import (
	"time"

	"github.com/spf13/cobra"

	"optionlab/internal/calendar"
	apperrors "optionlab/internal/errors"
	"optionlab/internal/models"
)

func addMarketCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Exchange session and holiday calendar",
	}
	cmd.AddCommand(newMarketStatusCmd(app))
	cmd.AddCommand(newMarketHolidaysCmd(app))
	rootCmd.AddCommand(cmd)
}

func newMarketStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the market is open",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			now := time.Now()
			cal := app.Calendar
			status := cal.Status(now)
			today := cal.Today(now)
			holiday, _ := calendar.HolidayName(today)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"status":    status,
					"today":     FormatDate(today),
					"holiday":   holiday,
					"next_open": cal.NextOpen(now),
					"close":     cal.Close(now),
				})
			}

			output.Printf("Market:     %s\n", output.MarketStatus(status))
			output.Printf("Local time: %s\n", now.In(cal.Location()).Format("2006-01-02 15:04 MST"))
			if holiday != "" {
				output.Printf("Holiday:    %s\n", holiday)
			}
			if cal.IsOpen(now) {
				output.Printf("Closes at:  %s\n", cal.Close(now).Format("15:04 MST"))
			} else {
				next := cal.NextOpen(now)
				output.Printf("Next open:  %s (in %s)\n", next.Format("Mon 2006-01-02 15:04 MST"), FormatDuration(next.Sub(now)))
			}
			return nil
		},
	}
}

func newMarketHolidaysCmd(app *App) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "List weekday market closures for a year",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if year < 1900 || year > 2200 {
				return apperrors.NewValidationError("year", year, "out of range")
			}

			type closure struct {
				Date string `json:"date"`
				Name string `json:"name"`
			}
			var closures []closure
			start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			for d := start; d.Year() == year; d = d.AddDate(0, 0, 1) {
				if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
					continue
				}
				if !app.Calendar.IsHoliday(d) {
					continue
				}
				name, ok := calendar.HolidayName(d)
				if !ok {
					name = "Configured closure"
				}
				closures = append(closures, closure{Date: FormatDate(d), Name: name})
			}
			tradingDays := len(app.Calendar.TradingDays(start, time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)))

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"year":         year,
					"closures":     closures,
					"trading_days": tradingDays,
				})
			}

			output.Bold("Market holidays %d", year)
			table := NewTable(output, "Date", "Day", "Holiday")
			for _, c := range closures {
				d, _ := models.ParseDay(c.Date)
				table.AddRow(c.Date, d.Weekday().String()[:3], c.Name)
			}
			table.Render()
			output.Println()
			output.Dim("%d trading days", tradingDays)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "calendar year")
	return cmd
}
