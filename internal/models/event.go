package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind identifies the payload variant carried by an Event.
type EventKind string

const (
	EventPriceUpdate         EventKind = "price_update"
	EventOpportunityIssued   EventKind = "opportunity_issued"
	EventDecisionMade        EventKind = "decision_made"
	EventToolCallExecuted    EventKind = "tool_call_executed"
	EventMessageSent         EventKind = "message_sent"
	EventTransactionExecuted EventKind = "transaction_executed"
	EventMemoryRecorded      EventKind = "memory_recorded"
)

// EventPayload is the tagged-union contract for event payloads. Validate is
// called before an event is admitted to the log; a failing payload is a
// malformed event and must not reach the log.
type EventPayload interface {
	Kind() EventKind
	Validate() error
}

// Event is one entry of the append-only log. Sequence numbers are assigned by
// the log, strictly increasing, and never reused.
type Event struct {
	Sequence  uint64
	Round     int
	Timestamp time.Time
	Kind      EventKind
	Payload   EventPayload
}

// AgentID returns the acting agent for payloads attributed to an agent, or ""
// for market-level events.
func (e *Event) AgentID() string {
	switch p := e.Payload.(type) {
	case *DecisionMadePayload:
		return p.AgentID
	case *ToolCallExecutedPayload:
		return p.AgentID
	case *MessageSentPayload:
		return p.Message.Sender
	case *TransactionExecutedPayload:
		return p.Transaction.AgentID
	case *MemoryRecordedPayload:
		return p.AgentID
	}
	return ""
}

// PriceUpdatePayload records one stock's price move for a round.
type PriceUpdatePayload struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	PrevPrice decimal.Decimal `json:"prev_price"`
}

func (p *PriceUpdatePayload) Kind() EventKind { return EventPriceUpdate }

func (p *PriceUpdatePayload) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: price update missing symbol", ErrMalformedEvent)
	}
	if !p.Price.IsPositive() {
		return fmt.Errorf("%w: price update for %s must be positive", ErrMalformedEvent, p.Symbol)
	}
	return nil
}

// OpportunityIssuedPayload records a newly issued opportunity.
type OpportunityIssuedPayload struct {
	Opportunity Opportunity `json:"opportunity"`
}

func (p *OpportunityIssuedPayload) Kind() EventKind { return EventOpportunityIssued }

func (p *OpportunityIssuedPayload) Validate() error {
	o := p.Opportunity
	if o.ID == uuid.Nil || o.Symbol == "" {
		return fmt.Errorf("%w: opportunity missing id or symbol", ErrMalformedEvent)
	}
	if o.Kind != OpportunityPublic && o.Kind != OpportunityInsider {
		return fmt.Errorf("%w: unknown opportunity kind %q", ErrMalformedEvent, o.Kind)
	}
	if o.ExpiryRound <= o.CreatedRound {
		return fmt.Errorf("%w: opportunity expires at or before creation", ErrMalformedEvent)
	}
	return nil
}

// DecisionMadePayload records the outcome of one agent decision step. The
// decision policy itself is opaque to the core.
type DecisionMadePayload struct {
	AgentID   string `json:"agent_id"`
	Action    string `json:"action"`
	Rationale string `json:"rationale,omitempty"`
}

func (p *DecisionMadePayload) Kind() EventKind { return EventDecisionMade }

func (p *DecisionMadePayload) Validate() error {
	if p.AgentID == "" || p.Action == "" {
		return fmt.Errorf("%w: decision missing agent or action", ErrMalformedEvent)
	}
	return nil
}

// ToolCallExecutedPayload records one executed tool call, including rejected
// ones (Error carries the rejection reason).
type ToolCallExecutedPayload struct {
	AgentID   string            `json:"agent_id"`
	Tool      string            `json:"tool"`
	Arguments map[string]string `json:"arguments,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (p *ToolCallExecutedPayload) Kind() EventKind { return EventToolCallExecuted }

func (p *ToolCallExecutedPayload) Validate() error {
	if p.AgentID == "" || p.Tool == "" {
		return fmt.Errorf("%w: tool call missing agent or tool name", ErrMalformedEvent)
	}
	return nil
}

// MessageSentPayload records a routed message.
type MessageSentPayload struct {
	Message Message `json:"message"`
}

func (p *MessageSentPayload) Kind() EventKind { return EventMessageSent }

func (p *MessageSentPayload) Validate() error {
	m := p.Message
	if m.ID == uuid.Nil || m.Sender == "" || m.Recipient == "" {
		return fmt.Errorf("%w: message missing id, sender or recipient", ErrMalformedEvent)
	}
	if m.Body == "" {
		return fmt.Errorf("%w: message body is empty", ErrMalformedEvent)
	}
	return nil
}

// TransactionExecutedPayload records an executed trade.
type TransactionExecutedPayload struct {
	Transaction Transaction `json:"transaction"`
}

func (p *TransactionExecutedPayload) Kind() EventKind { return EventTransactionExecuted }

func (p *TransactionExecutedPayload) Validate() error {
	t := p.Transaction
	if t.ID == uuid.Nil || t.AgentID == "" || t.Symbol == "" {
		return fmt.Errorf("%w: transaction missing id, agent or symbol", ErrMalformedEvent)
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("%w: unknown transaction side %q", ErrMalformedEvent, t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("%w: transaction quantity must be positive", ErrMalformedEvent)
	}
	return nil
}

// MemoryRecordedPayload records a free-text note an agent chose to remember.
type MemoryRecordedPayload struct {
	AgentID string `json:"agent_id"`
	Content string `json:"content"`
}

func (p *MemoryRecordedPayload) Kind() EventKind { return EventMemoryRecorded }

func (p *MemoryRecordedPayload) Validate() error {
	if p.AgentID == "" || p.Content == "" {
		return fmt.Errorf("%w: memory missing agent or content", ErrMalformedEvent)
	}
	return nil
}

type eventEnvelope struct {
	Sequence  uint64          `json:"sequence"`
	Round     int             `json:"round"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      EventKind       `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON renders the event as a {sequence, round, timestamp, kind,
// payload} envelope, the line format of the persisted event log.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}
	return json.Marshal(eventEnvelope{
		Sequence:  e.Sequence,
		Round:     e.Round,
		Timestamp: e.Timestamp,
		Kind:      e.Kind,
		Payload:   payload,
	})
}

// UnmarshalJSON decodes an envelope back into a typed payload.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	payload, err := newPayload(env.Kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
	}
	e.Sequence = env.Sequence
	e.Round = env.Round
	e.Timestamp = env.Timestamp
	e.Kind = env.Kind
	e.Payload = payload
	return nil
}

func newPayload(kind EventKind) (EventPayload, error) {
	switch kind {
	case EventPriceUpdate:
		return &PriceUpdatePayload{}, nil
	case EventOpportunityIssued:
		return &OpportunityIssuedPayload{}, nil
	case EventDecisionMade:
		return &DecisionMadePayload{}, nil
	case EventToolCallExecuted:
		return &ToolCallExecutedPayload{}, nil
	case EventMessageSent:
		return &MessageSentPayload{}, nil
	case EventTransactionExecuted:
		return &TransactionExecutedPayload{}, nil
	case EventMemoryRecorded:
		return &MemoryRecordedPayload{}, nil
	}
	return nil, fmt.Errorf("%w: unknown event kind %q", ErrMalformedEvent, kind)
}
