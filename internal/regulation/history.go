package regulation

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// History is the read view a detection pass works on. It is assembled purely
// from an event log snapshot, so everything a rule consults is provable from
// the log, and a frozen snapshot always yields the same History.
type History struct {
	Events        []models.Event
	Transactions  []models.Transaction
	Messages      []models.Message
	Opportunities []models.Opportunity
	Prices        map[string][]models.PricePoint
	LastRound     int

	txnSeq map[uuid.UUID]uint64
	msgSeq map[uuid.UUID]uint64
	oppSeq map[uuid.UUID]uint64
}

// BuildHistory derives the materialized collections from a log snapshot.
func BuildHistory(events []models.Event) *History {
	h := &History{
		Events: events,
		Prices: make(map[string][]models.PricePoint),
		txnSeq: make(map[uuid.UUID]uint64),
		msgSeq: make(map[uuid.UUID]uint64),
		oppSeq: make(map[uuid.UUID]uint64),
	}
	for _, ev := range events {
		if ev.Round > h.LastRound {
			h.LastRound = ev.Round
		}
		switch p := ev.Payload.(type) {
		case *models.PriceUpdatePayload:
			// The opening price is never evented on its own; the first
			// update carries it as PrevPrice, which anchors windows that
			// start at round one.
			if len(h.Prices[p.Symbol]) == 0 && p.PrevPrice.IsPositive() {
				h.Prices[p.Symbol] = append(h.Prices[p.Symbol], models.PricePoint{
					Round: ev.Round - 1,
					Price: p.PrevPrice,
				})
			}
			h.Prices[p.Symbol] = append(h.Prices[p.Symbol], models.PricePoint{
				Round: ev.Round,
				Price: p.Price,
			})
		case *models.TransactionExecutedPayload:
			h.Transactions = append(h.Transactions, p.Transaction)
			h.txnSeq[p.Transaction.ID] = ev.Sequence
		case *models.MessageSentPayload:
			h.Messages = append(h.Messages, p.Message)
			h.msgSeq[p.Message.ID] = ev.Sequence
		case *models.OpportunityIssuedPayload:
			h.Opportunities = append(h.Opportunities, p.Opportunity)
			h.oppSeq[p.Opportunity.ID] = ev.Sequence
		}
	}
	return h
}

// PriceAt returns the recorded price for the symbol at the given round,
// falling back to the closest earlier round. ok is false when no price up to
// that round exists.
func (h *History) PriceAt(symbol string, round int) (decimal.Decimal, bool) {
	points := h.Prices[symbol]
	best := decimal.Zero
	ok := false
	for _, p := range points {
		if p.Round > round {
			break
		}
		best = p.Price
		ok = true
	}
	return best, ok
}

// TransactionsBy returns the agent's transactions on a symbol, in log order.
// An empty symbol matches every stock.
func (h *History) TransactionsBy(agentID, symbol string) []models.Transaction {
	var out []models.Transaction
	for _, t := range h.Transactions {
		if t.AgentID != agentID {
			continue
		}
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Symbols returns every symbol seen in the history, sorted, so detector
// iteration order is deterministic.
func (h *History) Symbols() []string {
	set := make(map[string]bool)
	for sym := range h.Prices {
		set[sym] = true
	}
	for _, t := range h.Transactions {
		set[t.Symbol] = true
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Agents returns every agent id seen in transactions or messages, sorted.
func (h *History) Agents() []string {
	set := make(map[string]bool)
	for _, t := range h.Transactions {
		set[t.AgentID] = true
	}
	for _, m := range h.Messages {
		set[m.Sender] = true
		if !m.IsBroadcast() {
			set[m.Recipient] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SeqOfTransaction returns the log sequence that recorded the transaction.
func (h *History) SeqOfTransaction(id uuid.UUID) uint64 { return h.txnSeq[id] }

// SeqOfMessage returns the log sequence that recorded the message.
func (h *History) SeqOfMessage(id uuid.UUID) uint64 { return h.msgSeq[id] }

// SeqOfOpportunity returns the log sequence that recorded the opportunity.
func (h *History) SeqOfOpportunity(id uuid.UUID) uint64 { return h.oppSeq[id] }
