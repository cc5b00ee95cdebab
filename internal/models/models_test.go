package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONRoundTrip(t *testing.T) {
	oppID := uuid.New()
	ev := Event{
		Sequence:  17,
		Round:     3,
		Timestamp: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Kind:      EventTransactionExecuted,
		Payload: &TransactionExecutedPayload{Transaction: Transaction{
			ID:            uuid.New(),
			AgentID:       "a1",
			Symbol:        "ACME",
			Side:          SideBuy,
			Quantity:      25,
			Price:         decimal.NewFromFloat(101.25),
			Round:         3,
			OpportunityID: &oppID,
		}},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ev.Sequence, got.Sequence)
	assert.Equal(t, ev.Kind, got.Kind)

	txn := got.Payload.(*TransactionExecutedPayload).Transaction
	orig := ev.Payload.(*TransactionExecutedPayload).Transaction
	assert.Equal(t, orig.ID, txn.ID)
	assert.True(t, orig.Price.Equal(txn.Price))
	require.NotNil(t, txn.OpportunityID)
	assert.Equal(t, oppID, *txn.OpportunityID)
}

func TestEventUnmarshalRejectsUnknownKind(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"sequence":1,"round":1,"kind":"mystery","payload":{}}`), &ev)
	assert.Error(t, err)
}

func TestEventAgentID(t *testing.T) {
	price := Event{Payload: &PriceUpdatePayload{Symbol: "ACME", Price: decimal.NewFromInt(1)}}
	assert.Empty(t, price.AgentID())

	decision := Event{Payload: &DecisionMadePayload{AgentID: "a1", Action: "buy"}}
	assert.Equal(t, "a1", decision.AgentID())

	msg := Event{Payload: &MessageSentPayload{Message: Message{Sender: "a2"}}}
	assert.Equal(t, "a2", msg.AgentID())
}

func TestTransactionSignedQuantityAndNotional(t *testing.T) {
	buy := Transaction{Side: SideBuy, Quantity: 10, Price: decimal.NewFromInt(5)}
	assert.Equal(t, int64(10), buy.SignedQuantity())
	assert.True(t, buy.Notional().Equal(decimal.NewFromInt(50)))

	sell := Transaction{Side: SideSell, Quantity: 10, Price: decimal.NewFromInt(5)}
	assert.Equal(t, int64(-10), sell.SignedQuantity())
}

func TestPortfolioApply(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(1000))

	p.Apply(Transaction{Side: SideBuy, Symbol: "ACME", Quantity: 4, Price: decimal.NewFromInt(100)})
	assert.Equal(t, int64(4), p.Position("ACME"))
	assert.True(t, p.Cash.Equal(decimal.NewFromInt(600)))

	p.Apply(Transaction{Side: SideSell, Symbol: "ACME", Quantity: 4, Price: decimal.NewFromInt(110)})
	assert.Zero(t, p.Position("ACME"))
	assert.True(t, p.Cash.Equal(decimal.NewFromInt(1040)))
	assert.NotContains(t, p.Holdings, "ACME", "a flat position is dropped from holdings")
}

func TestPortfolioCloneIsIndependent(t *testing.T) {
	p := NewPortfolio(decimal.NewFromInt(100))
	p.Apply(Transaction{Side: SideBuy, Symbol: "ACME", Quantity: 1, Price: decimal.NewFromInt(10)})

	clone := p.Clone()
	clone.Holdings["ACME"] = 99
	assert.Equal(t, int64(1), p.Position("ACME"))
}

func TestOpportunityVisibilityAndLifetime(t *testing.T) {
	opp := Opportunity{
		Symbol:       "ACME",
		Kind:         OpportunityInsider,
		Visibility:   []string{"a1"},
		CreatedRound: 5,
		ExpiryRound:  7,
	}
	assert.True(t, opp.VisibleTo("a1"))
	assert.False(t, opp.VisibleTo("a2"))

	assert.False(t, opp.ActiveAt(4))
	assert.True(t, opp.ActiveAt(5))
	assert.True(t, opp.ActiveAt(6))
	assert.False(t, opp.ActiveAt(7))
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
	assert.Equal(t, -1, Severity("nonsense").Rank())
}

func TestPayloadValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload EventPayload
		wantErr bool
	}{
		{"valid price", &PriceUpdatePayload{Symbol: "ACME", Price: decimal.NewFromInt(10)}, false},
		{"zero price", &PriceUpdatePayload{Symbol: "ACME", Price: decimal.Zero}, true},
		{"missing symbol", &PriceUpdatePayload{Price: decimal.NewFromInt(10)}, true},
		{"message without body", &MessageSentPayload{Message: Message{ID: uuid.New(), Sender: "a1", Recipient: "a2"}}, true},
		{"transaction bad side", &TransactionExecutedPayload{Transaction: Transaction{ID: uuid.New(), AgentID: "a1", Symbol: "ACME", Side: "HOLD", Quantity: 1}}, true},
		{"memory without content", &MemoryRecordedPayload{AgentID: "a1"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedEvent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
