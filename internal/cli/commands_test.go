package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionlab/internal/calendar"
	"optionlab/internal/config"
	"optionlab/internal/marketdata"
	"optionlab/internal/models"
)

func runCommand(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(cfg, zerolog.Nop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Log.Console = false
	cfg.Log.File = false
	return cfg
}

func TestParseLeg(t *testing.T) {
	leg, err := ParseLeg("call:buy:2:105:3.5:0.4")
	require.NoError(t, err)
	assert.Equal(t, models.Call, leg.Kind)
	assert.Equal(t, models.Buy, leg.Action)
	assert.Equal(t, 2, leg.Quantity)
	assert.Equal(t, 105.0, leg.Strike)
	assert.Equal(t, models.Some(3.5), leg.Premium)
	assert.Equal(t, 0.4, leg.Delta)

	leg, err = ParseLeg("p:sell:1:95:NA")
	require.NoError(t, err)
	assert.Equal(t, models.Put, leg.Kind)
	assert.Equal(t, models.Sell, leg.Action)
	assert.False(t, leg.Premium.Valid)
	assert.Zero(t, leg.Delta)

	for _, bad := range []string{
		"call:buy:1:100",
		"straddle:buy:1:100:5",
		"call:hold:1:100:5",
		"call:buy:one:100:5",
		"call:buy:1:abc:5",
		"call:buy:1:100:x",
		"call:buy:1:100:5:d",
	} {
		_, err := ParseLeg(bad)
		assert.Error(t, err, bad)
	}
}

func TestSampleIndexes(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, sampleIndexes(3, 21))
	idx := sampleIndexes(501, 21)
	require.Len(t, idx, 21)
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, 500, idx[20])
}

func TestPayoffCommand_JSON(t *testing.T) {
	out, err := runCommand(t, testConfig(t), "payoff", "--json", "--spot", "100",
		"--leg", "call:buy:1:100:5:0.5", "--leg", "put:buy:1:100:5:-0.5")
	require.NoError(t, err)

	var view struct {
		EffectiveDelta float64       `json:"effective_delta"`
		Region         models.Region `json:"region"`
		Curve          []curvePoint  `json:"curve"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.InDelta(t, 0, view.EffectiveDelta, 1e-12)
	require.Len(t, view.Region.Intervals, 2)
	assert.Nil(t, view.Region.Intervals[0].Lower)
	assert.Nil(t, view.Region.Intervals[1].Upper)
	assert.Empty(t, view.Curve)
}

func TestPayoffCommand_InsufficientData(t *testing.T) {
	cases := map[string][]string{
		"unknown spot":       {"payoff", "--spot", "NA", "--leg", "call:buy:1:100:5"},
		"unquoted leg":       {"payoff", "--spot", "100", "--leg", "call:buy:1:100:NA"},
		"unquoted hedge":     {"payoff", "--spot", "100", "--leg", "call:buy:1:100:5", "--with-leg", "put:buy:1:100:NA"},
		"unquoted butterfly": {"payoff", "butterfly", "--strikes", "95,100,105", "--premiums", "7,NA,2", "--spot", "100"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := runCommand(t, testConfig(t), append(args, "--json")...)
			require.NoError(t, err)

			var view map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(out), &view))
			assert.Equal(t, "insufficient_data", view["status"])
			assert.NotEmpty(t, view["error"])
			assert.NotContains(t, view, "region")
			assert.NotContains(t, view, "total")

			out, err = runCommand(t, testConfig(t), args...)
			require.NoError(t, err)
			assert.Contains(t, out, "insufficient data")
			assert.NotContains(t, out, "never")
		})
	}
}

func TestPayoffCommand_StatusOK(t *testing.T) {
	out, err := runCommand(t, testConfig(t), "payoff", "--json", "--spot", "100",
		"--leg", "call:buy:1:100:5")
	require.NoError(t, err)

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "ok", view["status"])
	assert.Contains(t, view, "region")
}

func TestPayoffCommand_BadLeg(t *testing.T) {
	_, err := runCommand(t, testConfig(t), "payoff", "--spot", "100", "--leg", "call:buy:1")
	assert.Error(t, err)
}

func TestButterflyCommand(t *testing.T) {
	out, err := runCommand(t, testConfig(t), "payoff", "butterfly", "--json",
		"--kind", "call", "--strikes", "95,100,105", "--premiums", "7,4,2", "--spot", "100")
	require.NoError(t, err)

	var view struct {
		Region models.Region `json:"region"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	// Net debit of 1 per share: profitable strictly between 96 and 104.
	require.Len(t, view.Region.Intervals, 1)
	require.NotNil(t, view.Region.Intervals[0].Lower)
	require.NotNil(t, view.Region.Intervals[0].Upper)
	assert.InDelta(t, 96, *view.Region.Intervals[0].Lower, 1)
	assert.InDelta(t, 104, *view.Region.Intervals[0].Upper, 1)
}

func TestPriceCommand_ImpliedVolRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	out, err := runCommand(t, cfg, "price", "--json", "--kind", "call",
		"--spot", "100", "--strike", "100", "--days", "30", "--vol", "0.3", "--rate", "0.05")
	require.NoError(t, err)

	var priced struct {
		Price float64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &priced))
	require.Greater(t, priced.Price, 0.0)

	out, err = runCommand(t, cfg, "price", "--json", "--kind", "call",
		"--spot", "100", "--strike", "100", "--days", "30", "--rate", "0.05",
		"--market", jsonNumber(priced.Price))
	require.NoError(t, err)

	var solved struct {
		ImpliedVol models.NullFloat `json:"implied_vol"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &solved))
	require.True(t, solved.ImpliedVol.Valid)
	assert.InDelta(t, 0.3, solved.ImpliedVol.Float64, 1e-4)
}

func TestPnLCommands_AddListRemove(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCommand(t, cfg, "pnl", "add", "AAPL", "--json",
		"--date", "2025-01-02", "--expiry", "2025-02-21", "--strike", "240",
		"--stock", "243.85", "--delta", "0.12", "--call", "8.1", "--put", "6.9")
	require.NoError(t, err)

	var added struct {
		Position models.Position `json:"position"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	require.NotZero(t, added.Position.ID)

	out, err = runCommand(t, cfg, "pnl", "list", "--json")
	require.NoError(t, err)
	var rows []struct {
		Position models.Position `json:"position"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "AAPL", rows[0].Position.Symbol)
	assert.Equal(t, models.Buy, rows[0].Position.CallAction)

	_, err = runCommand(t, cfg, "pnl", "remove", "1")
	require.NoError(t, err)
	_, err = runCommand(t, cfg, "pnl", "show", "1")
	assert.Error(t, err)
}

func TestPnLAdd_RejectsInvalidPosition(t *testing.T) {
	_, err := runCommand(t, testConfig(t), "pnl", "add", "AAPL",
		"--date", "2025-01-02", "--expiry", "2025-02-21", "--strike", "-1", "--stock", "243.85")
	assert.Error(t, err)
}

func TestMarketHolidays(t *testing.T) {
	out, err := runCommand(t, testConfig(t), "market", "holidays", "--year", "2025", "--json")
	require.NoError(t, err)

	var view struct {
		Closures []struct {
			Date string `json:"date"`
			Name string `json:"name"`
		} `json:"closures"`
		TradingDays int `json:"trading_days"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Closures, 10)
	assert.Equal(t, "2025-01-01", view.Closures[0].Date)
	assert.Equal(t, "2025-12-25", view.Closures[9].Date)
	assert.Equal(t, 251, view.TradingDays)
}

func TestPnLRefreshAndExport(t *testing.T) {
	cfg := testConfig(t)
	cfg.MarketData.RequestsPerSecond = 1000
	cfg.MarketData.Burst = 10

	cal := calendar.NewUS()
	today := cal.Today(time.Now())
	entry := today.AddDate(0, 0, -10)
	expiry := today.AddDate(0, 0, 60)
	days := cal.TradingDays(entry, today.AddDate(0, 0, -1))
	require.NotEmpty(t, days)

	provider := marketdata.NewCSVProvider(cfg.MarketData.DataDir)
	series := func(base, step float64) []models.Close {
		out := make([]models.Close, len(days))
		for i, d := range days {
			out[i] = models.Close{Date: d, Close: base + float64(i)*step}
		}
		return out
	}
	require.NoError(t, provider.WriteHistory(marketdata.ContractID("XYZ", expiry, models.Call, 50), series(3, 0.1)))
	require.NoError(t, provider.WriteHistory(marketdata.ContractID("XYZ", expiry, models.Put, 50), series(2, -0.05)))
	require.NoError(t, provider.WriteHistory("XYZ", series(50, 0.25)))

	out, err := runCommand(t, cfg, "pnl", "add", "XYZ", "--json", "--refresh",
		"--date", entry.Format(models.DateLayout), "--expiry", expiry.Format(models.DateLayout),
		"--strike", "50", "--stock", "50", "--delta", "0", "--call", "3", "--put", "2")
	require.NoError(t, err)

	var added struct {
		Refresh struct {
			Records []models.TradeRecord `json:"records"`
			Live    bool                 `json:"live"`
		} `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	// No quotes file, so no live row for today.
	assert.False(t, added.Refresh.Live)
	require.Len(t, added.Refresh.Records, len(days))
	assert.True(t, days[0].Equal(added.Refresh.Records[0].TradeDate))

	out, err = runCommand(t, cfg, "export", "1", "--format", "csv")
	require.NoError(t, err)
	lines, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, len(days)+1)
	assert.Equal(t, "trade_date", lines[0][0])
	assert.Equal(t, days[0].Format(models.DateLayout), lines[1][0])
}

func jsonNumber(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
