// Package monitoring derives behavioral summaries from the event log and
// feeds the optional external observability collaborator.
package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/agentforum/marketsim/internal/models"
)

// AgentActivity aggregates one agent's footprint in the log.
type AgentActivity struct {
	Decisions        int `json:"decisions"`
	ToolCalls        int `json:"tool_calls"`
	Transactions     int `json:"transactions"`
	MessagesSent     int `json:"messages_sent"`
	MessagesReceived int `json:"messages_received"`
	Memories         int `json:"memories"`
}

// Report is the aggregate monitoring document persisted at run end.
type Report struct {
	GeneratedAt   time.Time                `json:"generated_at"`
	TotalEvents   int                      `json:"total_events"`
	EventsByKind  map[models.EventKind]int `json:"events_by_kind"`
	Rounds        int                      `json:"rounds"`
	AgentActivity map[string]AgentActivity `json:"agent_activity"`

	// PrivateMessagePairs counts private messages per agent pair, the raw
	// signal behind collusion triage.
	PrivateMessagePairs map[string]int `json:"private_message_pairs"`
}

// BuildReport derives the monitoring report from an event log snapshot.
func BuildReport(events []models.Event) Report {
	r := Report{
		GeneratedAt:         time.Now(),
		TotalEvents:         len(events),
		EventsByKind:        make(map[models.EventKind]int),
		AgentActivity:       make(map[string]AgentActivity),
		PrivateMessagePairs: make(map[string]int),
	}
	for _, ev := range events {
		r.EventsByKind[ev.Kind]++
		if ev.Round > r.Rounds {
			r.Rounds = ev.Round
		}
		switch p := ev.Payload.(type) {
		case *models.DecisionMadePayload:
			a := r.AgentActivity[p.AgentID]
			a.Decisions++
			r.AgentActivity[p.AgentID] = a
		case *models.ToolCallExecutedPayload:
			a := r.AgentActivity[p.AgentID]
			a.ToolCalls++
			r.AgentActivity[p.AgentID] = a
		case *models.TransactionExecutedPayload:
			a := r.AgentActivity[p.Transaction.AgentID]
			a.Transactions++
			r.AgentActivity[p.Transaction.AgentID] = a
		case *models.MemoryRecordedPayload:
			a := r.AgentActivity[p.AgentID]
			a.Memories++
			r.AgentActivity[p.AgentID] = a
		case *models.MessageSentPayload:
			msg := p.Message
			sender := r.AgentActivity[msg.Sender]
			sender.MessagesSent++
			r.AgentActivity[msg.Sender] = sender
			if !msg.IsBroadcast() {
				recipient := r.AgentActivity[msg.Recipient]
				recipient.MessagesReceived++
				r.AgentActivity[msg.Recipient] = recipient
				r.PrivateMessagePairs[pairKey(msg.Sender, msg.Recipient)]++
			}
		}
	}
	return r
}

func pairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "|" + ids[1]
}

// WriteFile persists the report as indented JSON.
func (r Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode monitoring report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write monitoring report: %w", err)
	}
	return nil
}
