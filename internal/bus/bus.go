// Package bus routes private and broadcast messages between agents and keeps
// the queryable message history the regulation engine analyzes.
package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentforum/marketsim/internal/eventlog"
	"github.com/agentforum/marketsim/internal/models"
	"github.com/agentforum/marketsim/pkg/metrics"
)

// ErrEmptyMessage rejects a message with no body. Body content is otherwise
// opaque to the bus.
var ErrEmptyMessage = errors.New("empty message body")

// Bus is the inter-agent message router. Messages carry a strictly
// increasing sequence number independent of round numbers, so send order is
// a total order across the whole run.
type Bus struct {
	log    *eventlog.Log
	logger *zap.SugaredLogger
	now    func() time.Time

	agents  map[string]bool
	history []models.Message
	inbox   map[string][]models.Message
	nextSeq uint64
}

// New creates a bus for the given registered agents.
func New(agents []string, log *eventlog.Log, logger *zap.Logger) *Bus {
	b := &Bus{
		log:     log,
		logger:  logger.Sugar(),
		now:     time.Now,
		agents:  make(map[string]bool, len(agents)),
		inbox:   make(map[string][]models.Message, len(agents)),
		nextSeq: 1,
	}
	for _, id := range agents {
		b.agents[id] = true
	}
	return b
}

// Send routes a message to a specific agent or, with models.Broadcast, to
// every other agent. The MessageSent event and the materialized record are
// created in the same logical step; a rejected send leaves both untouched.
func (b *Bus) Send(sender, recipient, body string, round int) (models.Message, error) {
	if !b.agents[sender] {
		metrics.ActionsRejected.WithLabelValues("unknown_sender").Inc()
		return models.Message{}, fmt.Errorf("%w: sender %s", models.ErrUnknownAgent, sender)
	}
	if recipient != models.Broadcast && !b.agents[recipient] {
		metrics.ActionsRejected.WithLabelValues("unknown_recipient").Inc()
		return models.Message{}, fmt.Errorf("%w: recipient %s", models.ErrUnknownAgent, recipient)
	}
	if body == "" {
		metrics.ActionsRejected.WithLabelValues("empty_message").Inc()
		return models.Message{}, ErrEmptyMessage
	}

	msg := models.Message{
		ID:        uuid.New(),
		Seq:       b.nextSeq,
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		Round:     round,
		Timestamp: b.now(),
	}

	if _, err := b.log.Append(round, &models.MessageSentPayload{Message: msg}); err != nil {
		return models.Message{}, err
	}
	b.nextSeq++
	b.history = append(b.history, msg)
	b.deliver(msg)

	scope := "private"
	if msg.IsBroadcast() {
		scope = "broadcast"
	}
	metrics.MessagesRouted.WithLabelValues(scope).Inc()
	b.logger.Debugw("message routed",
		"seq", msg.Seq, "sender", sender, "recipient", recipient, "round", round)
	return msg, nil
}

func (b *Bus) deliver(msg models.Message) {
	if msg.IsBroadcast() {
		for id := range b.agents {
			if id != msg.Sender {
				b.inbox[id] = append(b.inbox[id], msg)
			}
		}
		return
	}
	b.inbox[msg.Recipient] = append(b.inbox[msg.Recipient], msg)
}

// HistoryFor returns every message the agent sent, received directly, or
// could see as a broadcast, in send order.
func (b *Bus) HistoryFor(agentID string) []models.Message {
	var out []models.Message
	for _, m := range b.history {
		if m.Sender == agentID || m.Recipient == agentID || m.IsBroadcast() {
			out = append(out, m)
		}
	}
	return out
}

// History returns the full message history in send order.
func (b *Bus) History() []models.Message {
	return append([]models.Message(nil), b.history...)
}

// Drain returns the agent's undelivered messages and clears the inbox. The
// full history is unaffected; this only models "unread" state for the
// perception step.
func (b *Bus) Drain(agentID string) []models.Message {
	msgs := b.inbox[agentID]
	b.inbox[agentID] = nil
	return msgs
}
