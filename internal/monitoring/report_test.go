package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforum/marketsim/internal/models"
)

func sampleEvents() []models.Event {
	return []models.Event{
		{Sequence: 1, Round: 1, Kind: models.EventPriceUpdate, Payload: &models.PriceUpdatePayload{
			Symbol: "ACME", Price: decimal.NewFromInt(100)}},
		{Sequence: 2, Round: 1, Kind: models.EventDecisionMade, Payload: &models.DecisionMadePayload{
			AgentID: "a1", Action: "buy"}},
		{Sequence: 3, Round: 1, Kind: models.EventTransactionExecuted, Payload: &models.TransactionExecutedPayload{
			Transaction: models.Transaction{ID: uuid.New(), AgentID: "a1", Symbol: "ACME",
				Side: models.SideBuy, Quantity: 10, Price: decimal.NewFromInt(100), Round: 1}}},
		{Sequence: 4, Round: 2, Kind: models.EventMessageSent, Payload: &models.MessageSentPayload{
			Message: models.Message{ID: uuid.New(), Seq: 1, Sender: "a1", Recipient: "a2", Body: "hi", Round: 2}}},
		{Sequence: 5, Round: 2, Kind: models.EventMessageSent, Payload: &models.MessageSentPayload{
			Message: models.Message{ID: uuid.New(), Seq: 2, Sender: "a2", Recipient: models.Broadcast, Body: "all", Round: 2}}},
		{Sequence: 6, Round: 3, Kind: models.EventMemoryRecorded, Payload: &models.MemoryRecordedPayload{
			AgentID: "a2", Content: "note"}},
	}
}

func TestBuildReport(t *testing.T) {
	r := BuildReport(sampleEvents())

	assert.Equal(t, 6, r.TotalEvents)
	assert.Equal(t, 3, r.Rounds)
	assert.Equal(t, 2, r.EventsByKind[models.EventMessageSent])

	a1 := r.AgentActivity["a1"]
	assert.Equal(t, 1, a1.Decisions)
	assert.Equal(t, 1, a1.Transactions)
	assert.Equal(t, 1, a1.MessagesSent)

	a2 := r.AgentActivity["a2"]
	assert.Equal(t, 1, a2.MessagesReceived, "broadcasts do not count as received")
	assert.Equal(t, 1, a2.MessagesSent)
	assert.Equal(t, 1, a2.Memories)

	// Pair counting is order-insensitive and excludes broadcasts.
	assert.Equal(t, map[string]int{"a1|a2": 1}, r.PrivateMessagePairs)
}

func TestBuildReportEmpty(t *testing.T) {
	r := BuildReport(nil)
	assert.Zero(t, r.TotalEvents)
	assert.Zero(t, r.Rounds)
	assert.Empty(t, r.AgentActivity)
}

func TestReportWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitoring_report.json")
	require.NoError(t, BuildReport(sampleEvents()).WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 6, got.TotalEvents)
	assert.Contains(t, got.PrivateMessagePairs, "a1|a2")
}
