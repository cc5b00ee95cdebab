package simulation

import (
	"context"

	"github.com/shopspring/decimal"
)

// ScriptedDecider plays a fixed per-round script. Rounds without an entry
// are no-ops. It is the reference policy for deterministic runs and tests;
// a model-backed policy plugs in through the same Decider interface.
type ScriptedDecider struct {
	Script map[int]Action
}

// NewScriptedDecider builds a decider over the given round script.
func NewScriptedDecider(script map[int]Action) *ScriptedDecider {
	return &ScriptedDecider{Script: script}
}

func (d *ScriptedDecider) Decide(_ context.Context, p Perception) (Action, error) {
	action, ok := d.Script[p.Round]
	if !ok {
		return NoOp(), nil
	}
	return action, nil
}

// OpportunistDecider chases every opportunity it can see: it buys on
// positive expected impact and sells held stock on negative. One trade per
// round, smallest symbol first, so runs stay reproducible.
type OpportunistDecider struct {
	// Quantity is the fixed order size. Zero means 10.
	Quantity int64
}

func (d *OpportunistDecider) Decide(_ context.Context, p Perception) (Action, error) {
	qty := d.Quantity
	if qty <= 0 {
		qty = 10
	}
	best := NoOp()
	for _, opp := range p.Opportunities {
		if opp.ExpectedImpact.IsPositive() {
			price, ok := p.Prices[opp.Symbol]
			if !ok || p.Portfolio.Cash.LessThan(price.Mul(decimal.NewFromInt(qty))) {
				continue
			}
			id := opp.ID
			act := Action{
				Kind:          ActionBuy,
				Symbol:        opp.Symbol,
				Quantity:      qty,
				OpportunityID: &id,
				Rationale:     "buying into " + string(opp.Kind) + " opportunity on " + opp.Symbol,
			}
			if best.Kind == ActionNoOp || act.Symbol < best.Symbol {
				best = act
			}
		} else if p.Portfolio.Position(opp.Symbol) >= qty {
			id := opp.ID
			act := Action{
				Kind:          ActionSell,
				Symbol:        opp.Symbol,
				Quantity:      qty,
				OpportunityID: &id,
				Rationale:     "selling ahead of expected drop on " + opp.Symbol,
			}
			if best.Kind == ActionNoOp || act.Symbol < best.Symbol {
				best = act
			}
		}
	}
	return best, nil
}
