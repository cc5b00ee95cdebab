package simulation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// Ledger owns every agent's portfolio. Solvency is enforced here, at the
// boundary, before a trade reaches the market engine; the engine itself is
// stateless with respect to balances.
type Ledger struct {
	portfolios map[string]*models.Portfolio
}

// NewLedger creates portfolios for every agent with the same starting cash.
func NewLedger(agents []string, initialCash decimal.Decimal) *Ledger {
	l := &Ledger{portfolios: make(map[string]*models.Portfolio, len(agents))}
	for _, id := range agents {
		p := models.NewPortfolio(initialCash)
		l.portfolios[id] = &p
	}
	return l
}

// Portfolio returns a copy of the agent's portfolio.
func (l *Ledger) Portfolio(agentID string) (models.Portfolio, error) {
	p, ok := l.portfolios[agentID]
	if !ok {
		return models.Portfolio{}, fmt.Errorf("%w: %s", models.ErrUnknownAgent, agentID)
	}
	return p.Clone(), nil
}

// CheckSolvency rejects an order the portfolio cannot cover at the quoted
// execution price. Nothing is mutated.
func (l *Ledger) CheckSolvency(agentID, symbol, side string, quantity int64, quote decimal.Decimal) error {
	p, ok := l.portfolios[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownAgent, agentID)
	}
	switch side {
	case models.SideBuy:
		cost := quote.Mul(decimal.NewFromInt(quantity))
		if p.Cash.LessThan(cost) {
			return fmt.Errorf("%w: need %s, have %s",
				models.ErrInsufficientFunds, cost.StringFixed(2), p.Cash.StringFixed(2))
		}
	case models.SideSell:
		// Shorting is not part of this market: a sell must be covered.
		if p.Position(symbol) < quantity {
			return fmt.Errorf("%w: hold %d of %s, selling %d",
				models.ErrInsufficientHoldings, p.Position(symbol), symbol, quantity)
		}
	}
	return nil
}

// Apply mutates the agent's portfolio with an executed transaction.
func (l *Ledger) Apply(txn models.Transaction) error {
	p, ok := l.portfolios[txn.AgentID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownAgent, txn.AgentID)
	}
	p.Apply(txn)
	return nil
}

// Portfolios returns copies of every portfolio, keyed by agent id.
func (l *Ledger) Portfolios() map[string]models.Portfolio {
	out := make(map[string]models.Portfolio, len(l.portfolios))
	for id, p := range l.portfolios {
		out[id] = p.Clone()
	}
	return out
}

// ReplayLedger rebuilds a ledger purely from TransactionExecuted events.
// Holdings after replay equal the live ledger's: every trade changes a
// position by exactly its signed quantity.
func ReplayLedger(events []models.Event, agents []string, initialCash decimal.Decimal) *Ledger {
	l := NewLedger(agents, initialCash)
	for _, ev := range events {
		if p, ok := ev.Payload.(*models.TransactionExecutedPayload); ok {
			if holder, known := l.portfolios[p.Transaction.AgentID]; known {
				holder.Apply(p.Transaction)
			}
		}
	}
	return l
}
