package regulation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// manipulationDetector flags a single agent whose trade volume dominates a
// stock inside a sliding window while the price moves in that agent's
// direction by more than the configured magnitude.
type manipulationDetector struct {
	cfg ManipulationConfig
}

func (d manipulationDetector) detect(h *History) []models.Violation {
	var out []models.Violation
	for _, symbol := range h.Symbols() {
		out = append(out, d.detectSymbol(h, symbol)...)
	}
	return out
}

func (d manipulationDetector) detectSymbol(h *History, symbol string) []models.Violation {
	var all []models.Transaction
	for _, t := range h.Transactions {
		if t.Symbol == symbol {
			all = append(all, t)
		}
	}
	if len(all) == 0 {
		return nil
	}

	var out []models.Violation
	for end := d.cfg.WindowRounds; end <= h.LastRound; end++ {
		start := end - d.cfg.WindowRounds + 1

		totalVolume := int64(0)
		agentVolume := make(map[string]int64)
		agentNet := make(map[string]int64)
		agentTxns := make(map[string][]models.Transaction)
		for _, t := range all {
			if t.Round < start || t.Round > end {
				continue
			}
			totalVolume += t.Quantity
			agentVolume[t.AgentID] += t.Quantity
			agentNet[t.AgentID] += t.SignedQuantity()
			agentTxns[t.AgentID] = append(agentTxns[t.AgentID], t)
		}
		if totalVolume == 0 {
			continue
		}

		startPrice, ok := h.PriceAt(symbol, start-1)
		if !ok || startPrice.IsZero() {
			continue
		}
		endPrice, ok := h.PriceAt(symbol, end)
		if !ok {
			continue
		}
		move := endPrice.Sub(startPrice).Div(startPrice)
		if move.Abs().LessThan(decimal.NewFromFloat(d.cfg.PriceMoveThreshold)) {
			continue
		}

		for _, agentID := range h.Agents() {
			vol := agentVolume[agentID]
			if vol < d.cfg.MinAgentVolume {
				continue
			}
			share := decimal.NewFromInt(vol).Div(decimal.NewFromInt(totalVolume))
			if share.LessThanOrEqual(decimal.NewFromFloat(d.cfg.VolumeFraction)) {
				continue
			}
			// The move must point the way the agent was pushing.
			net := agentNet[agentID]
			if net == 0 || (net > 0) != move.IsPositive() {
				continue
			}

			var txnIDs []uuid.UUID
			var seqs []uint64
			for _, t := range agentTxns[agentID] {
				txnIDs = append(txnIDs, t.ID)
				seqs = append(seqs, h.SeqOfTransaction(t.ID))
			}
			ratio := move.Abs().Div(decimal.NewFromFloat(d.cfg.PriceMoveThreshold))
			out = append(out, models.Violation{
				Kind:     models.ViolationMarketManipulation,
				Severity: severityFromRatio(ratio, 1.5, 3),
				AgentIDs: []string{agentID},
				Description: fmt.Sprintf(
					"%s drove %s%% of %s volume over rounds %d-%d while the price moved %s%%",
					agentID, share.Mul(decimal.NewFromInt(100)).StringFixed(1),
					symbol, start, end,
					move.Mul(decimal.NewFromInt(100)).StringFixed(1)),
				Confidence: confidenceFromRatio(ratio, 3),
				Evidence: models.Evidence{
					EventSeqs:      seqs,
					TransactionIDs: txnIDs,
				},
				RoundDetected: end,
			})
		}
	}
	return out
}
