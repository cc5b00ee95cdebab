// Package market implements the stock-price and opportunity simulator. The
// engine owns stock state; it is stateless with respect to agent balances and
// relies on the caller to enforce solvency before a trade reaches it.
package market

import (
	"fmt"
	"iter"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentforum/marketsim/internal/eventlog"
	"github.com/agentforum/marketsim/internal/models"
	"github.com/agentforum/marketsim/pkg/metrics"
)

// StockInit seeds one stock at market construction.
type StockInit struct {
	Symbol       string
	InitialPrice decimal.Decimal
}

// Engine owns stock prices and opportunity issuance. All mutating calls are
// made from the single round loop; the engine appends an event for every
// state change in the same logical step.
type Engine struct {
	cfg    Config
	logger *zap.SugaredLogger
	rng    *rand.Rand
	log    *eventlog.Log

	stocks  map[string]*models.Stock
	symbols []string // sorted, for deterministic iteration
	agents  map[string]bool
	roster  []string // registration order

	opportunities []*models.Opportunity
}

// NewEngine builds a market with the given stocks and registered agents.
// Stocks are created once here and persist for the run.
func NewEngine(cfg Config, stocks []StockInit, agents []string, log *eventlog.Log, logger *zap.Logger) (*Engine, error) {
	if len(stocks) == 0 {
		return nil, fmt.Errorf("market requires at least one stock")
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger.Sugar(),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		log:    log,
		stocks: make(map[string]*models.Stock, len(stocks)),
		agents: make(map[string]bool, len(agents)),
	}
	for _, s := range stocks {
		if !s.InitialPrice.IsPositive() {
			return nil, fmt.Errorf("stock %s: initial price must be positive", s.Symbol)
		}
		if _, dup := e.stocks[s.Symbol]; dup {
			return nil, fmt.Errorf("stock %s: duplicate symbol", s.Symbol)
		}
		e.stocks[s.Symbol] = &models.Stock{
			Symbol:  s.Symbol,
			Price:   s.InitialPrice,
			History: []models.PricePoint{{Round: 0, Price: s.InitialPrice}},
		}
		e.symbols = append(e.symbols, s.Symbol)
	}
	sort.Strings(e.symbols)
	for _, id := range agents {
		e.agents[id] = true
		e.roster = append(e.roster, id)
	}
	return e, nil
}

// Price returns the current price for a symbol.
func (e *Engine) Price(symbol string) (decimal.Decimal, error) {
	s, ok := e.stocks[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown stock %s", models.ErrInvalidOrder, symbol)
	}
	return s.Price, nil
}

// Prices returns a snapshot of every current price.
func (e *Engine) Prices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(e.symbols))
	for _, sym := range e.symbols {
		out[sym] = e.stocks[sym].Price
	}
	return out
}

// Stocks returns deep copies of every stock, history included.
func (e *Engine) Stocks() []models.Stock {
	out := make([]models.Stock, 0, len(e.symbols))
	for _, sym := range e.symbols {
		s := e.stocks[sym]
		cp := *s
		cp.History = append([]models.PricePoint(nil), s.History...)
		out = append(out, cp)
	}
	return out
}

// AdvanceRound applies the bounded random walk to every stock, realizes
// expiring opportunity impacts, and probabilistically issues new
// opportunities. One PriceUpdate event is appended per stock.
func (e *Engine) AdvanceRound(round int) error {
	for _, sym := range e.symbols {
		stock := e.stocks[sym]
		prev := stock.Price

		vol := e.cfg.Volatility
		if v, ok := e.cfg.SymbolVolatility[sym]; ok {
			vol = v
		}
		change := e.cfg.Drift + e.rng.NormFloat64()*vol/2
		change = clamp(change, -vol, vol)

		// Expiring opportunities realize their expected impact here, on top
		// of the walk. This is the price shock insider tips anticipate.
		if e.cfg.RealizeImpact {
			for _, opp := range e.opportunities {
				if opp.Symbol == sym && opp.ExpiryRound == round {
					impact, _ := opp.ExpectedImpact.Float64()
					change += impact
				}
			}
		}

		stock.Price = e.applyMove(stock.Price, change)
		stock.History = append(stock.History, models.PricePoint{Round: round, Price: stock.Price})

		if _, err := e.log.Append(round, &models.PriceUpdatePayload{
			Symbol:    sym,
			Price:     stock.Price,
			PrevPrice: prev,
		}); err != nil {
			return fmt.Errorf("append price update for %s: %w", sym, err)
		}
	}

	if err := e.issueOpportunities(round); err != nil {
		return err
	}
	return nil
}

// ExecuteTrade validates and executes a trade at the current market price
// with a quantity-scaled slippage, appends a TransactionExecuted event, and
// then moves the market price by the trade's impact. All-or-nothing: a
// rejected order appends nothing and mutates nothing.
func (e *Engine) ExecuteTrade(agentID, symbol, side string, quantity int64, round int, opportunityID *uuid.UUID) (models.Transaction, error) {
	if !e.agents[agentID] {
		metrics.ActionsRejected.WithLabelValues("unknown_agent").Inc()
		return models.Transaction{}, fmt.Errorf("%w: %s", models.ErrUnknownAgent, agentID)
	}
	stock, ok := e.stocks[symbol]
	if !ok {
		metrics.ActionsRejected.WithLabelValues("unknown_stock").Inc()
		return models.Transaction{}, fmt.Errorf("%w: unknown stock %s", models.ErrInvalidOrder, symbol)
	}
	if quantity <= 0 {
		metrics.ActionsRejected.WithLabelValues("non_positive_quantity").Inc()
		return models.Transaction{}, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidOrder, quantity)
	}
	if side != models.SideBuy && side != models.SideSell {
		metrics.ActionsRejected.WithLabelValues("bad_side").Inc()
		return models.Transaction{}, fmt.Errorf("%w: unknown side %q", models.ErrInvalidOrder, side)
	}

	slip := e.cfg.SlippageFactor * float64(quantity)
	execPrice := stock.Price
	if side == models.SideBuy {
		execPrice = e.applyMove(execPrice, slip)
	} else {
		execPrice = e.applyMove(execPrice, -slip)
	}

	txn := models.Transaction{
		ID:            uuid.New(),
		AgentID:       agentID,
		Symbol:        symbol,
		Side:          side,
		Quantity:      quantity,
		Price:         execPrice,
		Round:         round,
		OpportunityID: opportunityID,
	}

	// Append before mutating so a malformed event cannot leave half a trade.
	if _, err := e.log.Append(round, &models.TransactionExecutedPayload{Transaction: txn}); err != nil {
		return models.Transaction{}, err
	}

	if side == models.SideBuy {
		stock.Volume += quantity
	} else {
		stock.Volume -= quantity
	}
	impact := clamp(e.cfg.ImpactFactor*float64(quantity), 0, e.cfg.MaxTradeImpact)
	if side == models.SideSell {
		impact = -impact
	}
	stock.Price = e.applyMove(stock.Price, impact)

	metrics.TradesExecuted.WithLabelValues(side).Inc()
	e.logger.Debugw("trade executed",
		"agent", agentID, "symbol", symbol, "side", side,
		"quantity", quantity, "price", execPrice.String(), "round", round)
	return txn, nil
}

// Quote returns the execution price a trade of this size would get right
// now, slippage included, without executing anything. The ledger uses it to
// enforce solvency before the trade reaches the engine.
func (e *Engine) Quote(symbol, side string, quantity int64) (decimal.Decimal, error) {
	stock, ok := e.stocks[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown stock %s", models.ErrInvalidOrder, symbol)
	}
	if quantity <= 0 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidOrder, quantity)
	}
	slip := e.cfg.SlippageFactor * float64(quantity)
	if side == models.SideSell {
		slip = -slip
	}
	return e.applyMove(stock.Price, slip), nil
}

// OpportunitiesVisibleTo returns the lazy, restartable sequence of
// opportunities the agent may perceive at the given round.
func (e *Engine) OpportunitiesVisibleTo(agentID string, round int) iter.Seq[models.Opportunity] {
	snapshot := append([]*models.Opportunity(nil), e.opportunities...)
	return func(yield func(models.Opportunity) bool) {
		for _, opp := range snapshot {
			if !opp.ActiveAt(round) || !opp.VisibleTo(agentID) {
				continue
			}
			if !yield(*opp) {
				return
			}
		}
	}
}

// Opportunities returns every opportunity issued so far, active or not.
func (e *Engine) Opportunities() []models.Opportunity {
	out := make([]models.Opportunity, 0, len(e.opportunities))
	for _, opp := range e.opportunities {
		out = append(out, *opp)
	}
	return out
}

func (e *Engine) applyMove(price decimal.Decimal, change float64) decimal.Decimal {
	next := price.Mul(decimal.NewFromFloat(1 + change)).Round(4)
	floor := decimal.NewFromFloat(e.cfg.MinPrice)
	if next.LessThan(floor) {
		return floor
	}
	return next
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
