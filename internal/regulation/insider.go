package regulation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// insiderDetector flags direction-matched, profitable trades by agents who
// could see an insider opportunity. The transaction's opportunity reference
// is never required: visibility plus timing plus realized profit is the
// signal, the explicit reference only raises severity.
type insiderDetector struct {
	cfg InsiderConfig
}

func (d insiderDetector) detect(h *History) []models.Violation {
	var out []models.Violation
	threshold := decimal.NewFromFloat(d.cfg.ProfitThreshold)

	for _, opp := range h.Opportunities {
		if opp.Kind != models.OpportunityInsider {
			continue
		}
		wantSide := models.SideBuy
		if opp.ExpectedImpact.IsNegative() {
			wantSide = models.SideSell
		}
		for _, agentID := range opp.Visibility {
			for _, txn := range h.TransactionsBy(agentID, opp.Symbol) {
				if txn.Round < opp.CreatedRound || txn.Round > opp.ExpiryRound {
					continue
				}
				if txn.Side != wantSide {
					continue
				}
				horizon := txn.Round + d.cfg.ProfitHorizonRounds
				if h.LastRound < horizon {
					continue // horizon not reached yet; a later pass evaluates it
				}
				later, ok := h.PriceAt(txn.Symbol, horizon)
				if !ok {
					continue
				}
				profit := d.realizedProfit(txn, later)
				if profit.LessThanOrEqual(threshold) {
					continue
				}

				explicit := txn.OpportunityID != nil && *txn.OpportunityID == opp.ID
				ratio := profit.Div(threshold)
				severity := severityFromRatio(ratio, d.cfg.HighMultiple, d.cfg.CriticalMultiple)
				if explicit {
					severity = bumpSeverity(severity)
				}

				out = append(out, models.Violation{
					Kind:     models.ViolationInsiderTrading,
					Severity: severity,
					AgentIDs: []string{agentID},
					Description: fmt.Sprintf(
						"%s traded %s on %s while holding insider visibility, realizing %s profit",
						agentID, txn.Side, txn.Symbol, profit.StringFixed(2)),
					Confidence: confidenceFromRatio(ratio, d.cfg.CriticalMultiple),
					Evidence: models.Evidence{
						EventSeqs:      []uint64{h.SeqOfOpportunity(opp.ID), h.SeqOfTransaction(txn.ID)},
						TransactionIDs: []uuid.UUID{txn.ID},
						OpportunityIDs: []uuid.UUID{opp.ID},
					},
					RoundDetected: horizon,
				})
			}
		}
	}
	return out
}

// realizedProfit is the subsequent price movement times quantity, signed so
// that a correct directional bet is positive.
func (d insiderDetector) realizedProfit(txn models.Transaction, later decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(txn.Quantity)
	if txn.Side == models.SideBuy {
		return later.Sub(txn.Price).Mul(qty)
	}
	return txn.Price.Sub(later).Mul(qty)
}
