package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/agentforum/marketsim/internal/eventlog"
	"github.com/agentforum/marketsim/internal/models"
)

func testEngine(t *testing.T, cfg Config) (*Engine, *eventlog.Log) {
	t.Helper()
	log := eventlog.New(zaptest.NewLogger(t))
	e, err := NewEngine(cfg,
		[]StockInit{
			{Symbol: "ACME", InitialPrice: decimal.NewFromInt(100)},
			{Symbol: "GLOB", InitialPrice: decimal.NewFromInt(50)},
		},
		[]string{"a1", "a2", "a3"},
		log, zaptest.NewLogger(t))
	require.NoError(t, err)
	return e, log
}

func TestNewEngineRejectsBadStocks(t *testing.T) {
	log := eventlog.New(zaptest.NewLogger(t))

	_, err := NewEngine(DefaultConfig(), nil, []string{"a1"}, log, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewEngine(DefaultConfig(),
		[]StockInit{{Symbol: "ACME", InitialPrice: decimal.Zero}},
		[]string{"a1"}, log, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewEngine(DefaultConfig(),
		[]StockInit{
			{Symbol: "ACME", InitialPrice: decimal.NewFromInt(100)},
			{Symbol: "ACME", InitialPrice: decimal.NewFromInt(90)},
		},
		[]string{"a1"}, log, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestSameSeedSamePricePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 99

	run := func() []string {
		e, _ := testEngine(t, cfg)
		var path []string
		for round := 1; round <= 20; round++ {
			require.NoError(t, e.AdvanceRound(round))
			path = append(path, e.Prices()["ACME"].String(), e.Prices()["GLOB"].String())
		}
		return path
	}

	assert.Equal(t, run(), run(), "identical seeds must produce identical price paths")
}

func TestAdvanceRoundEmitsOnePriceUpdatePerStock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PublicOpportunityProb = 0
	cfg.InsiderOpportunityProb = 0
	e, log := testEngine(t, cfg)

	for round := 1; round <= 5; round++ {
		require.NoError(t, e.AdvanceRound(round))
	}

	count := 0
	for ev := range log.Query(eventlog.Filter{Kinds: []models.EventKind{models.EventPriceUpdate}, ToRound: -1}) {
		assert.Greater(t, ev.Round, 0)
		count++
	}
	assert.Equal(t, 10, count)
}

func TestPricesStayAboveFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Volatility = 0.9
	cfg.Drift = -0.5
	cfg.MinPrice = 0.01
	cfg.PublicOpportunityProb = 0
	cfg.InsiderOpportunityProb = 0
	e, _ := testEngine(t, cfg)

	for round := 1; round <= 200; round++ {
		require.NoError(t, e.AdvanceRound(round))
		for sym, price := range e.Prices() {
			assert.True(t, price.GreaterThanOrEqual(decimal.NewFromFloat(cfg.MinPrice)),
				"round %d: %s fell below the floor: %s", round, sym, price)
		}
	}
}

func TestExecuteTradeRejections(t *testing.T) {
	e, log := testEngine(t, DefaultConfig())

	_, err := e.ExecuteTrade("stranger", "ACME", models.SideBuy, 10, 1, nil)
	assert.ErrorIs(t, err, models.ErrUnknownAgent)

	_, err = e.ExecuteTrade("a1", "NOPE", models.SideBuy, 10, 1, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOrder)

	_, err = e.ExecuteTrade("a1", "ACME", models.SideBuy, 0, 1, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOrder)

	_, err = e.ExecuteTrade("a1", "ACME", "HOLD", 10, 1, nil)
	assert.ErrorIs(t, err, models.ErrInvalidOrder)

	// A rejected order must not touch the log or the price.
	assert.Zero(t, log.Len())
	assert.True(t, e.Prices()["ACME"].Equal(decimal.NewFromInt(100)))
}

func TestExecuteTradeAppliesSlippageAndImpact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlippageFactor = 0.001
	cfg.ImpactFactor = 0.001
	cfg.MaxTradeImpact = 0.5
	e, log := testEngine(t, cfg)

	txn, err := e.ExecuteTrade("a1", "ACME", models.SideBuy, 100, 1, nil)
	require.NoError(t, err)

	// Buy slippage: 100 * (1 + 0.001*100) = 110.
	assert.True(t, txn.Price.Equal(decimal.NewFromInt(110)), "exec price %s", txn.Price)
	// Impact moves the market after execution: 100 * 1.1 = 110.
	assert.True(t, e.Prices()["ACME"].Equal(decimal.NewFromInt(110)))

	require.Equal(t, 1, log.Len())
	ev := log.Snapshot()[0]
	require.Equal(t, models.EventTransactionExecuted, ev.Kind)
	payload := ev.Payload.(*models.TransactionExecutedPayload)
	assert.Equal(t, txn.ID, payload.Transaction.ID)

	// Sells quote below market.
	quote, err := e.Quote("ACME", models.SideSell, 100)
	require.NoError(t, err)
	assert.True(t, quote.LessThan(e.Prices()["ACME"]))
}

func TestQuoteMatchesExecutionPrice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlippageFactor = 0.0005
	e, _ := testEngine(t, cfg)

	quote, err := e.Quote("ACME", models.SideBuy, 40)
	require.NoError(t, err)
	txn, err := e.ExecuteTrade("a1", "ACME", models.SideBuy, 40, 1, nil)
	require.NoError(t, err)
	assert.True(t, quote.Equal(txn.Price), "quote %s, executed %s", quote, txn.Price)
}

func TestInsiderOpportunityVisibility(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PublicOpportunityProb = 0
	cfg.InsiderOpportunityProb = 1
	cfg.InsiderVisibilityMax = 1
	e, _ := testEngine(t, cfg)

	require.NoError(t, e.AdvanceRound(1))
	opps := e.Opportunities()
	require.NotEmpty(t, opps)

	opp := opps[0]
	assert.Equal(t, models.OpportunityInsider, opp.Kind)
	require.Len(t, opp.Visibility, 1)

	insider := opp.Visibility[0]
	visible := 0
	for range e.OpportunitiesVisibleTo(insider, 1) {
		visible++
	}
	assert.Equal(t, 1, visible)

	for _, agent := range []string{"a1", "a2", "a3"} {
		if agent == insider {
			continue
		}
		for range e.OpportunitiesVisibleTo(agent, 1) {
			t.Fatalf("agent %s must not see the insider tip", agent)
		}
	}
}

func TestPublicOpportunityVisibleToAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PublicOpportunityProb = 1
	cfg.InsiderOpportunityProb = 0
	e, _ := testEngine(t, cfg)

	require.NoError(t, e.AdvanceRound(1))
	for _, agent := range []string{"a1", "a2", "a3"} {
		seen := 0
		for range e.OpportunitiesVisibleTo(agent, 1) {
			seen++
		}
		assert.GreaterOrEqual(t, seen, 1, "agent %s sees the public opportunity", agent)
	}
}

func TestOpportunityExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PublicOpportunityProb = 1
	cfg.InsiderOpportunityProb = 0
	cfg.OpportunityLifetime = 2
	e, _ := testEngine(t, cfg)

	require.NoError(t, e.AdvanceRound(1))
	opp := e.Opportunities()[0]
	assert.Equal(t, 1, opp.CreatedRound)
	assert.Equal(t, 3, opp.ExpiryRound)

	assert.True(t, opp.ActiveAt(1))
	assert.True(t, opp.ActiveAt(2))
	assert.False(t, opp.ActiveAt(3), "expiry round is exclusive")
}
