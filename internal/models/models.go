// Package models defines the domain records shared by the market engine,
// message bus, event log and regulation engine.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Broadcast is the recipient marker for messages addressed to every agent.
const Broadcast = "broadcast"

// OpportunityKind distinguishes public opportunities from insider-only ones.
type OpportunityKind string

const (
	OpportunityPublic  OpportunityKind = "public"
	OpportunityInsider OpportunityKind = "insider"
)

// PricePoint is one entry of a stock's price history.
type PricePoint struct {
	Round int             `json:"round"`
	Price decimal.Decimal `json:"price"`
}

// Stock is a tradable instrument. Mutated only by the market engine.
type Stock struct {
	Symbol  string          `json:"symbol"`
	Price   decimal.Decimal `json:"price"`
	Volume  int64           `json:"volume"`
	History []PricePoint    `json:"history,omitempty"`
}

// PriceAt returns the recorded price for the given round, falling back to the
// closest earlier entry. ok is false when the history starts after the round.
func (s *Stock) PriceAt(round int) (decimal.Decimal, bool) {
	best := decimal.Zero
	found := false
	for _, p := range s.History {
		if p.Round > round {
			break
		}
		best = p.Price
		found = true
	}
	return best, found
}

// Opportunity is a market event offering a trading edge. Insider opportunities
// are visible only to the agents in their visibility set; the set is immutable
// once assigned.
type Opportunity struct {
	ID             uuid.UUID       `json:"id"`
	Symbol         string          `json:"symbol"`
	Kind           OpportunityKind `json:"kind"`
	ExpectedImpact decimal.Decimal `json:"expected_impact"`
	Visibility     []string        `json:"visibility"`
	CreatedRound   int             `json:"created_round"`
	ExpiryRound    int             `json:"expiry_round"`
}

// VisibleTo reports whether the agent may perceive this opportunity.
func (o *Opportunity) VisibleTo(agentID string) bool {
	for _, id := range o.Visibility {
		if id == agentID {
			return true
		}
	}
	return false
}

// ActiveAt reports whether the opportunity covers the round, i.e. the round
// falls in [created, expiry).
func (o *Opportunity) ActiveAt(round int) bool {
	return round >= o.CreatedRound && round < o.ExpiryRound
}

// Transaction is an executed trade. Created exactly once, never edited.
// OpportunityID is informational only: detection rules never trust it as the
// sole signal, since real-world trades do not announce their motivation.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	AgentID       string          `json:"agent_id"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Round         int             `json:"round"`
	OpportunityID *uuid.UUID      `json:"opportunity_id,omitempty"`
}

// Notional is the traded value at execution price.
func (t *Transaction) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// SignedQuantity is +qty for buys and -qty for sells.
func (t *Transaction) SignedQuantity() int64 {
	if t.Side == SideSell {
		return -t.Quantity
	}
	return t.Quantity
}

// Message is a routed inter-agent message. Seq establishes the total send
// order across the whole run, independent of round numbers.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Seq       uint64    `json:"seq"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"timestamp"`
}

// IsBroadcast reports whether the message is addressed to every agent.
func (m *Message) IsBroadcast() bool { return m.Recipient == Broadcast }

// Portfolio is the caller-owned solvency state for one agent. The market
// engine is stateless with respect to balances; the ledger enforces solvency
// before any trade reaches the engine.
type Portfolio struct {
	Cash     decimal.Decimal  `json:"cash"`
	Holdings map[string]int64 `json:"holdings"`
}

// NewPortfolio returns a portfolio with the given starting cash.
func NewPortfolio(cash decimal.Decimal) Portfolio {
	return Portfolio{Cash: cash, Holdings: make(map[string]int64)}
}

// Position returns the held quantity for a symbol.
func (p *Portfolio) Position(symbol string) int64 { return p.Holdings[symbol] }

// Apply mutates the portfolio with an executed transaction.
func (p *Portfolio) Apply(t Transaction) {
	if p.Holdings == nil {
		p.Holdings = make(map[string]int64)
	}
	notional := t.Notional()
	if t.Side == SideBuy {
		p.Cash = p.Cash.Sub(notional)
	} else {
		p.Cash = p.Cash.Add(notional)
	}
	p.Holdings[t.Symbol] += t.SignedQuantity()
	if p.Holdings[t.Symbol] == 0 {
		delete(p.Holdings, t.Symbol)
	}
}

// Clone returns a deep copy safe to hand to an agent's decision step.
func (p *Portfolio) Clone() Portfolio {
	out := Portfolio{Cash: p.Cash, Holdings: make(map[string]int64, len(p.Holdings))}
	for k, v := range p.Holdings {
		out.Holdings[k] = v
	}
	return out
}
