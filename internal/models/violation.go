package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ViolationKind enumerates the detection rules.
type ViolationKind string

const (
	ViolationInsiderTrading     ViolationKind = "insider_trading"
	ViolationWashTrading        ViolationKind = "wash_trading"
	ViolationMarketManipulation ViolationKind = "market_manipulation"
	ViolationCollusion          ViolationKind = "collusion"
)

// Severity is the ordered classification of how serious a violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for triage; higher is more serious.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Evidence references the exact records a detection consulted, enabling
// independent re-verification against the event log.
type Evidence struct {
	EventSeqs      []uint64    `json:"event_seqs,omitempty"`
	TransactionIDs []uuid.UUID `json:"transaction_ids,omitempty"`
	MessageIDs     []uuid.UUID `json:"message_ids,omitempty"`
	OpportunityIDs []uuid.UUID `json:"opportunity_ids,omitempty"`
}

// Violation is one detected rule breach. Immutable once recorded.
type Violation struct {
	ID            uuid.UUID       `json:"id"`
	Kind          ViolationKind   `json:"kind"`
	Severity      Severity        `json:"severity"`
	AgentIDs      []string        `json:"agent_ids"`
	Description   string          `json:"description"`
	Confidence    decimal.Decimal `json:"confidence"`
	Evidence      Evidence        `json:"evidence"`
	RoundDetected int             `json:"round_detected"`
}
