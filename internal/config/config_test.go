package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Rounds)
	assert.Len(t, cfg.Agents, 3)
	assert.Equal(t, float64(100000), cfg.InitialCash)
	assert.NotEmpty(t, cfg.Stocks)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Greater(t, cfg.Market.Volatility, 0.0)
	assert.Greater(t, cfg.Regulation.Insider.ProfitThreshold, 0.0)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rounds: 7
agents: [x, y]
initial_cash: 5000
stocks:
  - symbol: ZZZ
    initial_price: 12.5
market:
  seed: 77
  volatility: 0.1
regulation:
  insider:
    profit_threshold: 250
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Rounds)
	assert.Equal(t, []string{"x", "y"}, cfg.Agents)
	assert.Equal(t, float64(5000), cfg.InitialCash)
	require.Len(t, cfg.Stocks, 1)
	assert.Equal(t, "ZZZ", cfg.Stocks[0].Symbol)
	assert.Equal(t, int64(77), cfg.Market.Seed)
	assert.Equal(t, 0.1, cfg.Market.Volatility)
	assert.Equal(t, 250.0, cfg.Regulation.Insider.ProfitThreshold)

	// Values the file does not set keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Greater(t, cfg.Regulation.Wash.WindowRounds, 0)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"zero rounds":            "rounds: 0\n",
		"no agents":              "agents: []\n",
		"negative cash":          "initial_cash: -5\n",
		"bad volatility":         "market:\n  volatility: 7\n",
		"zero insider threshold": "regulation:\n  insider:\n    profit_threshold: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateCrossFieldRules(t *testing.T) {
	cfg := Default()
	cfg.Regulation.Insider.CriticalMultiple = 1.5
	cfg.Regulation.Insider.HighMultiple = 2 // critical below high makes no sense
	assert.Error(t, Validate(cfg))
}
