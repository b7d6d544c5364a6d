package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# optionlab configuration

[engine]
# Payoff grid half-width as a fraction of spot
range_fraction = 0.25
# Payoff grid spacing in underlying currency
step = 0.1
# Continuously compounded risk-free rate
risk_free_rate = 0.05
# Starting point and default volatility for pricing
volatility_guess = 0.2
solver_tolerance = 1e-6
solver_max_iterations = 100

[calendar]
timezone = "America/New_York"
# Additional closures on top of the NYSE rules (YYYY-MM-DD)
extra_holidays = []
open = "09:30"
close = "16:00"

[store]
# SQLite database file; defaults to ~/.config/optionlab/data/optionlab.db
# path = ""

[marketdata]
# Directory of CSV quote and close files
# data_dir = ""
requests_per_second = 1.0
burst = 1
retry_attempts = 3
refresh_interval = "1m"
concurrency = 4
# Consecutive provider failures before calls fail fast, and for how long
breaker_threshold = 5
breaker_cooldown = "30s"

[log]
level = "info"
console = true
file = true

[metrics]
# Prometheus listen address, e.g. ":9108"; empty disables
addr = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
