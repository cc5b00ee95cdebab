package market

// Config tunes the price process and opportunity issuance. All rates are
// relative (0.02 means 2% per round).
type Config struct {
	// Seed drives every random draw in the engine. Two runs with the same
	// seed, stocks and agent actions produce identical price paths.
	Seed int64 `mapstructure:"seed" yaml:"seed" json:"seed"`

	// Volatility bounds the magnitude of the per-round random walk. A
	// per-symbol override wins over the global value.
	Volatility       float64            `mapstructure:"volatility" yaml:"volatility" json:"volatility" validate:"gt=0,lte=1"`
	SymbolVolatility map[string]float64 `mapstructure:"symbol_volatility" yaml:"symbol_volatility" json:"symbol_volatility,omitempty"`

	// Drift is the mean of the per-round relative price change.
	Drift float64 `mapstructure:"drift" yaml:"drift" json:"drift"`

	// MinPrice floors every price mutation; prices stay strictly positive.
	MinPrice float64 `mapstructure:"min_price" yaml:"min_price" json:"min_price" validate:"gt=0"`

	// SlippageFactor is the relative execution-price penalty per traded unit.
	SlippageFactor float64 `mapstructure:"slippage_factor" yaml:"slippage_factor" json:"slippage_factor" validate:"gte=0"`

	// ImpactFactor is the relative market-price move per traded unit, applied
	// after execution in the trade direction. This is what lets a dominant
	// actor actually move a price.
	ImpactFactor float64 `mapstructure:"impact_factor" yaml:"impact_factor" json:"impact_factor" validate:"gte=0"`

	// MaxTradeImpact caps the market-price move of a single trade.
	MaxTradeImpact float64 `mapstructure:"max_trade_impact" yaml:"max_trade_impact" json:"max_trade_impact" validate:"gte=0"`

	// Opportunity issuance probabilities, evaluated independently each round.
	PublicOpportunityProb  float64 `mapstructure:"public_opportunity_prob" yaml:"public_opportunity_prob" json:"public_opportunity_prob" validate:"gte=0,lte=1"`
	InsiderOpportunityProb float64 `mapstructure:"insider_opportunity_prob" yaml:"insider_opportunity_prob" json:"insider_opportunity_prob" validate:"gte=0,lte=1"`

	// Expected-impact ranges. Public opportunities may point either way;
	// insider ones carry an accurate magnitude with a configurable chance of
	// being negative news.
	PublicImpactMin     float64 `mapstructure:"public_impact_min" yaml:"public_impact_min" json:"public_impact_min"`
	PublicImpactMax     float64 `mapstructure:"public_impact_max" yaml:"public_impact_max" json:"public_impact_max"`
	InsiderImpactMin    float64 `mapstructure:"insider_impact_min" yaml:"insider_impact_min" json:"insider_impact_min" validate:"gte=0"`
	InsiderImpactMax    float64 `mapstructure:"insider_impact_max" yaml:"insider_impact_max" json:"insider_impact_max" validate:"gte=0"`
	InsiderNegativeProb float64 `mapstructure:"insider_negative_prob" yaml:"insider_negative_prob" json:"insider_negative_prob" validate:"gte=0,lte=1"`

	// OpportunityLifetime is the number of rounds an opportunity stays active.
	OpportunityLifetime int `mapstructure:"opportunity_lifetime" yaml:"opportunity_lifetime" json:"opportunity_lifetime" validate:"gt=0"`

	// InsiderVisibilityMax bounds how many agents an insider tip reaches.
	InsiderVisibilityMax int `mapstructure:"insider_visibility_max" yaml:"insider_visibility_max" json:"insider_visibility_max" validate:"gt=0"`

	// RealizeImpact applies an opportunity's expected impact to the price at
	// its expiry round, which is what makes insider profit measurable.
	RealizeImpact bool `mapstructure:"realize_impact" yaml:"realize_impact" json:"realize_impact"`
}

// DefaultConfig returns the tuning used when no configuration is supplied.
func DefaultConfig() Config {
	return Config{
		Seed:                   1,
		Volatility:             0.04,
		Drift:                  0.001,
		MinPrice:               0.01,
		SlippageFactor:         0.0001,
		ImpactFactor:           0.0002,
		MaxTradeImpact:         0.05,
		PublicOpportunityProb:  0.5,
		InsiderOpportunityProb: 0.3,
		PublicImpactMin:        -0.10,
		PublicImpactMax:        0.25,
		InsiderImpactMin:       0.15,
		InsiderImpactMax:       0.40,
		InsiderNegativeProb:    0.25,
		OpportunityLifetime:    2,
		InsiderVisibilityMax:   2,
		RealizeImpact:          true,
	}
}
