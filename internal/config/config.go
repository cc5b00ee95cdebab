// Package config loads and validates the run configuration from YAML files
// and MARKETSIM_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/agentforum/marketsim/internal/market"
	"github.com/agentforum/marketsim/internal/regulation"
)

// StockConfig seeds one stock.
type StockConfig struct {
	Symbol       string  `mapstructure:"symbol" yaml:"symbol" json:"symbol" validate:"required"`
	InitialPrice float64 `mapstructure:"initial_price" yaml:"initial_price" json:"initial_price" validate:"gt=0"`
}

// Config is the full run configuration.
type Config struct {
	// Rounds is the number of rounds to simulate.
	Rounds int `mapstructure:"rounds" yaml:"rounds" json:"rounds" validate:"gt=0"`

	// Agents lists the participant ids, in acting order.
	Agents []string `mapstructure:"agents" yaml:"agents" json:"agents" validate:"min=1,unique"`

	// InitialCash is each agent's starting balance.
	InitialCash float64 `mapstructure:"initial_cash" yaml:"initial_cash" json:"initial_cash" validate:"gt=0"`

	// Stocks seeds the market.
	Stocks []StockConfig `mapstructure:"stocks" yaml:"stocks" json:"stocks" validate:"min=1,dive"`

	Market     market.Config     `mapstructure:"market" yaml:"market" json:"market"`
	Regulation regulation.Config `mapstructure:"regulation" yaml:"regulation" json:"regulation"`

	// ScanEveryRounds runs an incremental detection pass every N rounds.
	// Zero scans once, at run end.
	ScanEveryRounds int `mapstructure:"scan_every_rounds" yaml:"scan_every_rounds" json:"scan_every_rounds" validate:"gte=0"`

	// Output file locations.
	EventLogPath         string `mapstructure:"event_log_path" yaml:"event_log_path" json:"event_log_path" validate:"required"`
	ComplianceReportPath string `mapstructure:"compliance_report_path" yaml:"compliance_report_path" json:"compliance_report_path" validate:"required"`
	MonitoringReportPath string `mapstructure:"monitoring_report_path" yaml:"monitoring_report_path" json:"monitoring_report_path" validate:"required"`

	// TraceEndpoint is an optional ws:// endpoint for live traces. Empty
	// disables emission.
	TraceEndpoint string `mapstructure:"trace_endpoint" yaml:"trace_endpoint" json:"trace_endpoint"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level" validate:"required"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Rounds:      20,
		Agents:      []string{"agent-1", "agent-2", "agent-3"},
		InitialCash: 100000,
		Stocks: []StockConfig{
			{Symbol: "ACME", InitialPrice: 100},
			{Symbol: "GLOB", InitialPrice: 50},
			{Symbol: "INIT", InitialPrice: 25},
		},
		Market:               market.DefaultConfig(),
		Regulation:           regulation.DefaultConfig(),
		ScanEveryRounds:      0,
		EventLogPath:         "events.jsonl",
		ComplianceReportPath: "compliance_report.json",
		MonitoringReportPath: "monitoring_report.json",
		LogLevel:             "info",
	}
}

// Load reads the configuration from path (optional; empty loads defaults
// plus environment only), overlays MARKETSIM_* environment variables and
// validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the regulation cross-field rules.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := cfg.Regulation.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("rounds", def.Rounds)
	v.SetDefault("agents", def.Agents)
	v.SetDefault("initial_cash", def.InitialCash)
	v.SetDefault("scan_every_rounds", def.ScanEveryRounds)
	v.SetDefault("event_log_path", def.EventLogPath)
	v.SetDefault("compliance_report_path", def.ComplianceReportPath)
	v.SetDefault("monitoring_report_path", def.MonitoringReportPath)
	v.SetDefault("trace_endpoint", def.TraceEndpoint)
	v.SetDefault("log_level", def.LogLevel)

	// Stocks come from defaults only when the file omits them entirely;
	// viper cannot merge per-element defaults into a list.
	v.SetDefault("stocks", stocksAsMaps(def.Stocks))

	v.SetDefault("market.seed", def.Market.Seed)
	v.SetDefault("market.volatility", def.Market.Volatility)
	v.SetDefault("market.drift", def.Market.Drift)
	v.SetDefault("market.min_price", def.Market.MinPrice)
	v.SetDefault("market.slippage_factor", def.Market.SlippageFactor)
	v.SetDefault("market.impact_factor", def.Market.ImpactFactor)
	v.SetDefault("market.max_trade_impact", def.Market.MaxTradeImpact)
	v.SetDefault("market.public_opportunity_prob", def.Market.PublicOpportunityProb)
	v.SetDefault("market.insider_opportunity_prob", def.Market.InsiderOpportunityProb)
	v.SetDefault("market.public_impact_min", def.Market.PublicImpactMin)
	v.SetDefault("market.public_impact_max", def.Market.PublicImpactMax)
	v.SetDefault("market.insider_impact_min", def.Market.InsiderImpactMin)
	v.SetDefault("market.insider_impact_max", def.Market.InsiderImpactMax)
	v.SetDefault("market.insider_negative_prob", def.Market.InsiderNegativeProb)
	v.SetDefault("market.opportunity_lifetime", def.Market.OpportunityLifetime)
	v.SetDefault("market.insider_visibility_max", def.Market.InsiderVisibilityMax)
	v.SetDefault("market.realize_impact", def.Market.RealizeImpact)

	v.SetDefault("regulation.insider.profit_threshold", def.Regulation.Insider.ProfitThreshold)
	v.SetDefault("regulation.insider.profit_horizon_rounds", def.Regulation.Insider.ProfitHorizonRounds)
	v.SetDefault("regulation.insider.high_multiple", def.Regulation.Insider.HighMultiple)
	v.SetDefault("regulation.insider.critical_multiple", def.Regulation.Insider.CriticalMultiple)
	v.SetDefault("regulation.wash.window_rounds", def.Regulation.Wash.WindowRounds)
	v.SetDefault("regulation.wash.round_trip_threshold", def.Regulation.Wash.RoundTripThreshold)
	v.SetDefault("regulation.wash.quantity_tolerance", def.Regulation.Wash.QuantityTolerance)
	v.SetDefault("regulation.wash.max_round_gap", def.Regulation.Wash.MaxRoundGap)
	v.SetDefault("regulation.wash.net_position_tolerance", def.Regulation.Wash.NetPositionTolerance)
	v.SetDefault("regulation.manipulation.window_rounds", def.Regulation.Manipulation.WindowRounds)
	v.SetDefault("regulation.manipulation.volume_fraction", def.Regulation.Manipulation.VolumeFraction)
	v.SetDefault("regulation.manipulation.price_move_threshold", def.Regulation.Manipulation.PriceMoveThreshold)
	v.SetDefault("regulation.manipulation.min_agent_volume", def.Regulation.Manipulation.MinAgentVolume)
	v.SetDefault("regulation.collusion.lag_rounds", def.Regulation.Collusion.LagRounds)
	v.SetDefault("regulation.collusion.min_occurrences", def.Regulation.Collusion.MinOccurrences)
}

func stocksAsMaps(stocks []StockConfig) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, map[string]interface{}{
			"symbol":        s.Symbol,
			"initial_price": s.InitialPrice,
		})
	}
	return out
}
