package simulation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/agentforum/marketsim/internal/bus"
	"github.com/agentforum/marketsim/internal/eventlog"
	"github.com/agentforum/marketsim/internal/market"
	"github.com/agentforum/marketsim/internal/models"
	"github.com/agentforum/marketsim/internal/monitoring"
	"github.com/agentforum/marketsim/internal/regulation"
)

// World bundles the collaborating subsystems of one run. Everything mutating
// in it is driven from the runner's single goroutine.
type World struct {
	Log    *eventlog.Log
	Market *market.Engine
	Bus    *bus.Bus
	Ledger *Ledger
}

// Runner executes the round loop. Agents act strictly in registration order
// within a round, so a run with the same seed and the same deciders replays
// identically.
type Runner struct {
	world     *World
	agents    []Agent
	regulator *regulation.Engine
	emitter   monitoring.Emitter
	logger    *zap.SugaredLogger

	// scanEvery triggers an incremental detection pass every N rounds.
	// Zero means detection runs only once, after the final round.
	scanEvery int
}

// RunnerOption configures optional runner behavior.
type RunnerOption func(*Runner)

// WithRegulator attaches a detection engine, scanning every scanEvery rounds
// (0 scans only at run end).
func WithRegulator(reg *regulation.Engine, scanEvery int) RunnerOption {
	return func(r *Runner) {
		r.regulator = reg
		r.scanEvery = scanEvery
	}
}

// WithEmitter attaches a trace emitter for external observability.
func WithEmitter(em monitoring.Emitter) RunnerOption {
	return func(r *Runner) { r.emitter = em }
}

// NewRunner wires a runner over an assembled world.
func NewRunner(world *World, agents []Agent, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		world:   world,
		agents:  agents,
		emitter: monitoring.NoopEmitter{},
		logger:  logger.Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run advances the world through rounds 1..rounds. A failing agent decision
// or a rejected action never aborts the run; both are recorded and the loop
// moves on. Market or log failures are fatal, they mean the world itself is
// broken.
func (r *Runner) Run(ctx context.Context, rounds int) error {
	if rounds <= 0 {
		return fmt.Errorf("rounds must be positive, got %d", rounds)
	}
	for round := 1; round <= rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.world.Market.AdvanceRound(round); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		for _, agent := range r.agents {
			if err := r.step(ctx, agent, round); err != nil {
				return fmt.Errorf("round %d agent %s: %w", round, agent.ID, err)
			}
		}
		if r.regulator != nil && r.scanEvery > 0 && round%r.scanEvery == 0 {
			if err := r.world.Log.Flush(); err != nil {
				r.logger.Warnw("event log flush failed", "round", round, "error", err)
			}
			r.regulator.Scan(r.world.Log.Snapshot())
		}
	}
	if err := r.world.Log.Flush(); err != nil {
		r.logger.Warnw("event log flush failed", "error", err)
	}
	if r.regulator != nil {
		r.regulator.Scan(r.world.Log.Snapshot())
	}
	return nil
}

// step runs one agent's perceive / decide / act cycle.
func (r *Runner) step(ctx context.Context, agent Agent, round int) error {
	p, err := r.perceive(agent.ID, round)
	if err != nil {
		return err
	}

	action, err := agent.Decider.Decide(ctx, p)
	if err != nil {
		// A broken decision policy forfeits the turn.
		r.logger.Warnw("decision failed, agent skips turn",
			"agent", agent.ID, "round", round, "error", err)
		action = NoOp()
	}

	if _, err := r.world.Log.Append(round, &models.DecisionMadePayload{
		AgentID:   agent.ID,
		Action:    string(action.Kind),
		Rationale: action.Rationale,
	}); err != nil {
		return err
	}
	r.emitter.Emit(monitoring.Trace{
		Kind:      "decision",
		AgentID:   agent.ID,
		Round:     round,
		Timestamp: time.Now(),
		Detail:    map[string]string{"action": string(action.Kind)},
	})

	return r.execute(agent.ID, round, action)
}

// perceive assembles the read view for one agent. The inbox is drained, so
// every message is perceived exactly once.
func (r *Runner) perceive(agentID string, round int) (Perception, error) {
	portfolio, err := r.world.Ledger.Portfolio(agentID)
	if err != nil {
		return Perception{}, err
	}
	var opps []models.Opportunity
	for opp := range r.world.Market.OpportunitiesVisibleTo(agentID, round) {
		opps = append(opps, opp)
	}
	return Perception{
		AgentID:       agentID,
		Round:         round,
		Prices:        r.world.Market.Prices(),
		Opportunities: opps,
		Inbox:         r.world.Bus.Drain(agentID),
		Portfolio:     portfolio,
	}, nil
}

// execute applies one action to the world. Rule rejections land in the tool
// call record's error field; only infrastructure failures propagate.
func (r *Runner) execute(agentID string, round int, action Action) error {
	switch action.Kind {
	case ActionNoOp:
		return nil

	case ActionBuy, ActionSell:
		side := models.SideBuy
		if action.Kind == ActionSell {
			side = models.SideSell
		}
		execErr := r.trade(agentID, side, round, action)
		return r.recordToolCall(agentID, round, string(action.Kind), map[string]string{
			"symbol":   action.Symbol,
			"quantity": strconv.FormatInt(action.Quantity, 10),
		}, execErr)

	case ActionSendMessage:
		_, execErr := r.world.Bus.Send(agentID, action.Recipient, action.Body, round)
		return r.recordToolCall(agentID, round, string(action.Kind), map[string]string{
			"recipient": action.Recipient,
		}, execErr)

	case ActionRecordMemory:
		_, err := r.world.Log.Append(round, &models.MemoryRecordedPayload{
			AgentID: agentID,
			Content: action.Memo,
		})
		return err

	default:
		return r.recordToolCall(agentID, round, string(action.Kind), nil,
			fmt.Errorf("%w: unknown action %q", models.ErrInvalidOrder, action.Kind))
	}
}

// trade checks solvency against the quoted execution price, then executes
// and settles. The order is all or nothing: a rejection leaves the log, the
// market and the ledger untouched.
func (r *Runner) trade(agentID, side string, round int, action Action) error {
	quote, err := r.world.Market.Quote(action.Symbol, side, action.Quantity)
	if err != nil {
		return err
	}
	if err := r.world.Ledger.CheckSolvency(agentID, action.Symbol, side, action.Quantity, quote); err != nil {
		return err
	}
	txn, err := r.world.Market.ExecuteTrade(agentID, action.Symbol, side, action.Quantity, round, action.OpportunityID)
	if err != nil {
		return err
	}
	return r.world.Ledger.Apply(txn)
}

// recordToolCall appends the execution record for an attempted action. A
// rejected action is still a recorded action; execErr lands in the payload,
// not in the return value.
func (r *Runner) recordToolCall(agentID string, round int, tool string, args map[string]string, execErr error) error {
	payload := &models.ToolCallExecutedPayload{
		AgentID:   agentID,
		Tool:      tool,
		Arguments: args,
	}
	if execErr != nil {
		payload.Error = execErr.Error()
		r.logger.Infow("action rejected",
			"agent", agentID, "round", round, "tool", tool, "error", execErr)
	}
	if _, err := r.world.Log.Append(round, payload); err != nil {
		return err
	}
	r.emitter.Emit(monitoring.Trace{
		Kind:      "tool_call",
		AgentID:   agentID,
		Round:     round,
		Timestamp: time.Now(),
		Detail:    map[string]string{"tool": tool, "ok": strconv.FormatBool(execErr == nil)},
	})
	return nil
}
