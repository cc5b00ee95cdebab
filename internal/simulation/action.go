// Package simulation drives the round loop: it owns the world state, invokes
// each agent's opaque decision policy in registration order, and executes the
// resulting actions against the market engine and message bus.
package simulation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// ActionKind enumerates what an agent may do with its turn.
type ActionKind string

const (
	ActionBuy          ActionKind = "buy"
	ActionSell         ActionKind = "sell"
	ActionSendMessage  ActionKind = "send_message"
	ActionRecordMemory ActionKind = "record_memory"
	ActionNoOp         ActionKind = "no_op"
)

// Action is the small action set an agent's decision resolves to.
type Action struct {
	Kind ActionKind

	// Trading fields.
	Symbol   string
	Quantity int64
	// OpportunityID optionally names the opportunity that motivated the
	// trade. Informational only; detection never trusts it.
	OpportunityID *uuid.UUID

	// Messaging fields. Recipient may be models.Broadcast.
	Recipient string
	Body      string

	// Memory field.
	Memo string

	// Rationale is free text recorded with the DecisionMade event.
	Rationale string
}

// NoOp is the action of doing nothing this turn.
func NoOp() Action { return Action{Kind: ActionNoOp} }

// Perception is the read view handed to an agent before it decides. All of
// it is copied; an agent cannot mutate world state through it.
type Perception struct {
	AgentID       string
	Round         int
	Prices        map[string]decimal.Decimal
	Opportunities []models.Opportunity
	Inbox         []models.Message
	Portfolio     models.Portfolio
}

// Decider is the opaque decision policy. The core does not prescribe how the
// decision is produced; an implementation may call out to a language model,
// which is why the context is threaded through.
type Decider interface {
	Decide(ctx context.Context, p Perception) (Action, error)
}

// Agent binds an id to its decision policy.
type Agent struct {
	ID      string
	Decider Decider
}
