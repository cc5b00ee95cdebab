package regulation

import "fmt"

// Config carries every detection threshold and window width. Rules never
// embed constants: a missing or nonsensical value here is a startup failure,
// not a runtime one.
type Config struct {
	Insider      InsiderConfig      `mapstructure:"insider" yaml:"insider" json:"insider"`
	Wash         WashConfig         `mapstructure:"wash" yaml:"wash" json:"wash"`
	Manipulation ManipulationConfig `mapstructure:"manipulation" yaml:"manipulation" json:"manipulation"`
	Collusion    CollusionConfig    `mapstructure:"collusion" yaml:"collusion" json:"collusion"`
}

// InsiderConfig tunes the insider trading rule.
type InsiderConfig struct {
	// ProfitThreshold is the realized profit above which a direction-matched
	// trade on an insider opportunity is flagged.
	ProfitThreshold float64 `mapstructure:"profit_threshold" yaml:"profit_threshold" json:"profit_threshold" validate:"gt=0"`

	// ProfitHorizonRounds is how many rounds after the trade the realized
	// profit is measured. A trade is only evaluated once the horizon round
	// is present in the history, so incremental and batch passes agree.
	ProfitHorizonRounds int `mapstructure:"profit_horizon_rounds" yaml:"profit_horizon_rounds" json:"profit_horizon_rounds" validate:"gt=0"`

	// HighMultiple and CriticalMultiple scale severity with profit:
	// profit >= threshold*HighMultiple is high, >= threshold*CriticalMultiple
	// is critical. An explicit reference to the insider opportunity bumps the
	// severity one step.
	HighMultiple     float64 `mapstructure:"high_multiple" yaml:"high_multiple" json:"high_multiple" validate:"gt=1"`
	CriticalMultiple float64 `mapstructure:"critical_multiple" yaml:"critical_multiple" json:"critical_multiple" validate:"gt=1"`
}

// WashConfig tunes the wash trading rule.
type WashConfig struct {
	// WindowRounds is the sliding window width.
	WindowRounds int `mapstructure:"window_rounds" yaml:"window_rounds" json:"window_rounds" validate:"gt=0"`

	// RoundTripThreshold is the round-trip count a window must exceed.
	RoundTripThreshold int `mapstructure:"round_trip_threshold" yaml:"round_trip_threshold" json:"round_trip_threshold" validate:"gt=0"`

	// QuantityTolerance is the allowed relative quantity mismatch between the
	// two legs of a round-trip.
	QuantityTolerance float64 `mapstructure:"quantity_tolerance" yaml:"quantity_tolerance" json:"quantity_tolerance" validate:"gte=0,lt=1"`

	// MaxRoundGap is the largest round gap between the two legs.
	MaxRoundGap int `mapstructure:"max_round_gap" yaml:"max_round_gap" json:"max_round_gap" validate:"gt=0"`

	// NetPositionTolerance bounds the net position change of a flagged
	// window relative to its gross traded quantity.
	NetPositionTolerance float64 `mapstructure:"net_position_tolerance" yaml:"net_position_tolerance" json:"net_position_tolerance" validate:"gte=0,lte=1"`
}

// ManipulationConfig tunes the market manipulation rule.
type ManipulationConfig struct {
	// WindowRounds is the sliding window width.
	WindowRounds int `mapstructure:"window_rounds" yaml:"window_rounds" json:"window_rounds" validate:"gt=0"`

	// VolumeFraction is the share of a stock's total window volume a single
	// agent must exceed.
	VolumeFraction float64 `mapstructure:"volume_fraction" yaml:"volume_fraction" json:"volume_fraction" validate:"gt=0,lt=1"`

	// PriceMoveThreshold is the relative price move over the window that
	// must accompany the volume dominance, in the agent's direction.
	PriceMoveThreshold float64 `mapstructure:"price_move_threshold" yaml:"price_move_threshold" json:"price_move_threshold" validate:"gt=0"`

	// MinAgentVolume skips windows with trivial absolute volume.
	MinAgentVolume int64 `mapstructure:"min_agent_volume" yaml:"min_agent_volume" json:"min_agent_volume" validate:"gte=0"`
}

// CollusionConfig tunes the collusion rule.
type CollusionConfig struct {
	// LagRounds is how many rounds after a private message correlated trades
	// still count as preceded by it.
	LagRounds int `mapstructure:"lag_rounds" yaml:"lag_rounds" json:"lag_rounds" validate:"gt=0"`

	// MinOccurrences is the message-then-correlated-trading co-occurrence
	// count, per agent pair, stock and direction, at which the pattern
	// exceeds what independent decisions would produce.
	MinOccurrences int `mapstructure:"min_occurrences" yaml:"min_occurrences" json:"min_occurrences" validate:"gt=0"`
}

// DefaultConfig returns the thresholds used when no configuration is given.
func DefaultConfig() Config {
	return Config{
		Insider: InsiderConfig{
			ProfitThreshold:     500,
			ProfitHorizonRounds: 2,
			HighMultiple:        2,
			CriticalMultiple:    5,
		},
		Wash: WashConfig{
			WindowRounds:         6,
			RoundTripThreshold:   3,
			QuantityTolerance:    0.1,
			MaxRoundGap:          2,
			NetPositionTolerance: 0.2,
		},
		Manipulation: ManipulationConfig{
			WindowRounds:       4,
			VolumeFraction:     0.6,
			PriceMoveThreshold: 0.05,
			MinAgentVolume:     100,
		},
		Collusion: CollusionConfig{
			LagRounds:      2,
			MinOccurrences: 2,
		},
	}
}

// Validate rejects configurations the detectors cannot run with. The tag
// checks run again at config load; this also covers the cross-field rules
// the tags cannot express.
func (c Config) Validate() error {
	if c.Insider.ProfitThreshold <= 0 {
		return fmt.Errorf("insider: profit_threshold must be positive, got %v", c.Insider.ProfitThreshold)
	}
	if c.Insider.ProfitHorizonRounds <= 0 {
		return fmt.Errorf("insider: profit_horizon_rounds must be positive, got %d", c.Insider.ProfitHorizonRounds)
	}
	if c.Wash.WindowRounds <= 0 || c.Wash.RoundTripThreshold <= 0 {
		return fmt.Errorf("wash: window_rounds and round_trip_threshold must be positive")
	}
	if c.Manipulation.WindowRounds <= 0 || c.Manipulation.VolumeFraction <= 0 || c.Manipulation.PriceMoveThreshold <= 0 {
		return fmt.Errorf("manipulation: window, volume fraction and price move threshold must be positive")
	}
	if c.Collusion.LagRounds <= 0 || c.Collusion.MinOccurrences <= 0 {
		return fmt.Errorf("collusion: lag_rounds and min_occurrences must be positive")
	}
	if c.Insider.CriticalMultiple < c.Insider.HighMultiple {
		return fmt.Errorf("insider: critical_multiple %v below high_multiple %v",
			c.Insider.CriticalMultiple, c.Insider.HighMultiple)
	}
	if c.Wash.MaxRoundGap > c.Wash.WindowRounds {
		return fmt.Errorf("wash: max_round_gap %d exceeds window_rounds %d",
			c.Wash.MaxRoundGap, c.Wash.WindowRounds)
	}
	return nil
}
