// Package cli provides the command-line interface for optionlab.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"optionlab/internal/calendar"
	"optionlab/internal/config"
	"optionlab/internal/logging"
	"optionlab/internal/marketdata"
	"optionlab/internal/metrics"
	"optionlab/internal/pnl"
	"optionlab/internal/resilience"
	"optionlab/internal/store"
	"optionlab/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-01-01"
)

// App holds the application dependencies. The store and provider are opened
// on first use so that pure analytics commands never touch the disk.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Provider marketdata.Provider
	Calendar *calendar.Session

	metricsServer *http.Server
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "optionlab",
		Short: "Option strategy payoff, pricing and PnL tracking",
		Long: `optionlab analyses listed equity option strategies.

It evaluates multi-leg payoffs at maturity and their profitable price ranges,
prices options under Black-Scholes and backs out implied volatility, and
tracks delta-hedged straddle positions with a daily mark-to-market PnL
history stored in SQLite.

Use 'optionlab <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/optionlab)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	addCoreCommands(rootCmd, app)
	addPayoffCommands(rootCmd, app)
	addPricingCommands(rootCmd, app)
	addPnLCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addHelpCommands(rootCmd)

	return rootCmd
}

// setup applies global flags: an explicit config directory, debug logging
// and the metrics endpoint.
func (app *App) setup(cmd *cobra.Command) error {
	if dir, _ := cmd.Flags().GetString("config"); dir != "" {
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}
		app.Config = cfg
		app.Logger = logging.NewLoggerWithConfig(logConfig(cfg))
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}

	cmd.SetContext(logging.WithLogger(cmd.Context(), app.Logger))

	cal, err := calendar.New(app.Config.Calendar)
	if err != nil {
		return err
	}
	app.Calendar = cal

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		addr = app.Config.Metrics.Addr
	}
	if addr != "" {
		app.serveMetrics(addr)
	}
	return nil
}

func (app *App) serveMetrics(addr string) {
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	app.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	app.Logger.Info().Str("addr", addr).Msg("Serving metrics")
}

// Close releases the store and stops the metrics endpoint.
func (app *App) Close() {
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to close store")
		}
		app.Store = nil
	}
	if app.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		app.metricsServer.Shutdown(ctx)
		app.metricsServer = nil
	}
}

// OpenStore opens the SQLite store on first use.
func (app *App) OpenStore() (store.DataStore, error) {
	if app.Store != nil {
		return app.Store, nil
	}
	path := app.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	app.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	app.Store = st
	return st, nil
}

// MarketData returns the rate-limited, circuit-broken quote provider.
func (app *App) MarketData() marketdata.Provider {
	if app.Provider == nil {
		md := app.Config.MarketData
		throttled := marketdata.NewThrottled(marketdata.NewCSVProvider(md.DataDir), "csv", md.RequestsPerSecond, md.Burst)
		app.Provider = marketdata.NewGuarded(throttled, "csv", resilience.Config{
			FailureThreshold: md.BreakerThreshold,
			SuccessThreshold: 1,
			Cooldown:         md.BreakerCooldown,
		})
	}
	return app.Provider
}

// Tracker builds a PnL tracker over the store and provider.
func (app *App) Tracker() (*pnl.Tracker, error) {
	st, err := app.OpenStore()
	if err != nil {
		return nil, err
	}
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = app.Config.MarketData.RetryAttempts
	return pnl.NewTracker(app.MarketData(), st, app.Calendar, app.Logger, pnl.TrackerConfig{
		Concurrency: app.Config.MarketData.Concurrency,
		Retry:       retry,
	}), nil
}

// logConfig maps the file configuration onto the logger's.
func logConfig(cfg *config.Config) logging.LogConfig {
	lc := logging.DefaultLogConfig()
	lc.Level = cfg.Log.Level
	lc.Console = cfg.Log.Console
	lc.File = cfg.Log.File
	return lc
}

// NewLogger builds the application logger for cfg.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return logging.NewLoggerWithConfig(logConfig(cfg))
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("optionlab v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Engine")
	output.Printf("  Range:           ±%.0f%%\n", cfg.Engine.RangeFraction*100)
	output.Printf("  Step:            %g\n", cfg.Engine.Step)
	output.Printf("  Risk-free rate:  %.2f%%\n", cfg.Engine.RiskFreeRate*100)
	output.Printf("  Vol guess:       %.2f%%\n", cfg.Engine.VolatilityGuess*100)
	output.Printf("  Solver:          tol %g, max %d iterations\n", cfg.Engine.SolverTolerance, cfg.Engine.SolverMaxIterations)
	output.Println()

	output.Bold("Calendar")
	output.Printf("  Timezone:        %s\n", cfg.Calendar.Timezone)
	output.Printf("  Session:         %s - %s\n", cfg.Calendar.Open, cfg.Calendar.Close)
	output.Printf("  Extra holidays:  %d\n", len(cfg.Calendar.ExtraHolidays))
	output.Println()

	output.Bold("Data")
	output.Printf("  Store:           %s\n", cfg.Store.Path)
	output.Printf("  Market data:     %s\n", cfg.MarketData.DataDir)
	output.Printf("  Rate limit:      %g req/s (burst %d)\n", cfg.MarketData.RequestsPerSecond, cfg.MarketData.Burst)
	output.Printf("  Retry attempts:  %d\n", cfg.MarketData.RetryAttempts)
	output.Printf("  Breaker:         %d failures, %s cooldown\n", cfg.MarketData.BreakerThreshold, cfg.MarketData.BreakerCooldown)
	output.Printf("  Refresh every:   %s\n", cfg.MarketData.RefreshInterval)
	output.Println()

	output.Bold("Observability")
	output.Printf("  Log level:       %s\n", cfg.Log.Level)
	metricsAddr := cfg.Metrics.Addr
	if metricsAddr == "" {
		metricsAddr = "disabled"
	}
	output.Printf("  Metrics:         %s\n", metricsAddr)
}
