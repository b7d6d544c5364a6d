package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "Evaluate a Strategy",
					commands: []string{
						"optionlab payoff --spot 100 --leg call:buy:1:100:5:0.5 --leg put:buy:1:100:5:-0.5",
						"optionlab payoff --spot 100 --leg call:sell:1:110:2 --auto-delta --vol 0.25  # Black-Scholes deltas",
						"optionlab payoff butterfly --strikes 95,100,105 --premiums 7,4,2 --spot 100",
					},
				},
				{
					title: "Price an Option",
					commands: []string{
						"optionlab price --kind call --spot 100 --strike 105 --days 30 --vol 0.2",
						"optionlab price --kind put --spot 100 --strike 95 --market 1.85  # Solve implied vol",
						"optionlab value AAPL --expiry 2025-06-20 --strike 200 --save",
					},
				},
				{
					title: "Track a Straddle",
					commands: []string{
						"optionlab import AAPL250221C00240000 call.csv  # Load close history",
						"optionlab pnl add AAPL --date 2025-01-02 --expiry 2025-02-21 --strike 240 --stock 243.85 --call 8.1 --put 6.9",
						"optionlab pnl refresh                           # Reconcile every position",
						"optionlab pnl show 1 --from 2025-01-15",
						"optionlab pnl watch 1 --interval 30s",
						"optionlab export 1 --format csv -o aapl.csv",
					},
				},
				{
					title: "Market Calendar",
					commands: []string{
						"optionlab market status",
						"optionlab market holidays --year 2025",
					},
				},
			}

			for _, ex := range examples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}

			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "New user guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("optionlab - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{
					title: "Review Configuration",
					desc:  "A config.toml with defaults is created on first run.",
					cmd:   "optionlab config show",
				},
				{
					title: "Provide Market Data",
					desc:  "Place quotes.csv, options.csv and history/<ID>.csv under the market data directory, or import closes.",
					cmd:   "optionlab import AAPL aapl.csv",
				},
				{
					title: "Explore a Payoff",
					desc:  "Evaluate legs at maturity and see where the position makes money.",
					cmd:   "optionlab payoff --spot 100 --leg call:buy:1:100:5 --curve",
				},
				{
					title: "Track a Position",
					desc:  "Record a straddle and reconcile its daily PnL.",
					cmd:   "optionlab pnl add AAPL --date 2025-01-02 --expiry 2025-02-21 --strike 240 --stock 243.85 --refresh",
				},
			}

			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("→"), i+1, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Getting Help")
			output.Println()
			output.Printf("  %s - Common workflows\n", output.Cyan("optionlab examples"))
			output.Printf("  %s - Help for any command\n", output.Cyan("optionlab help <command>"))
			return nil
		},
	}
}
