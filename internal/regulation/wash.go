package regulation

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// washDetector flags repeated offsetting round-trips: buy-then-sell (or the
// reverse) of near-matching quantity within a small round gap, with
// negligible net position change, exceeding a count threshold inside a
// sliding window.
type washDetector struct {
	cfg WashConfig
}

// roundTrip is one matched pair of offsetting legs.
type roundTrip struct {
	open, close models.Transaction
}

func (r roundTrip) startRound() int { return r.open.Round }

func (d washDetector) detect(h *History) []models.Violation {
	var out []models.Violation
	for _, agentID := range h.Agents() {
		for _, symbol := range h.Symbols() {
			txns := h.TransactionsBy(agentID, symbol)
			if len(txns) < 2 {
				continue
			}
			trips := d.pairRoundTrips(txns)
			if len(trips) == 0 {
				continue
			}
			out = append(out, d.scanWindows(h, agentID, symbol, trips)...)
		}
	}
	return out
}

// pairRoundTrips greedily matches each leg with the next opposite-side leg
// of near-matching quantity. Legs are consumed once matched.
func (d washDetector) pairRoundTrips(txns []models.Transaction) []roundTrip {
	used := make([]bool, len(txns))
	var trips []roundTrip
	for i, open := range txns {
		if used[i] {
			continue
		}
		for j := i + 1; j < len(txns); j++ {
			if used[j] {
				continue
			}
			next := txns[j]
			if next.Side == open.Side {
				continue
			}
			if next.Round-open.Round > d.cfg.MaxRoundGap {
				break // txns are in log order; later legs are only further away
			}
			if !d.quantitiesMatch(open.Quantity, next.Quantity) {
				continue
			}
			used[i], used[j] = true, true
			trips = append(trips, roundTrip{open: open, close: next})
			break
		}
	}
	return trips
}

func (d washDetector) quantitiesMatch(a, b int64) bool {
	larger := a
	if b > larger {
		larger = b
	}
	diff := math.Abs(float64(a - b))
	return diff <= d.cfg.QuantityTolerance*float64(larger)
}

// scanWindows emits one violation per sliding window whose round-trip count
// exceeds the threshold. Only fully elapsed windows are judged, so a window
// is evaluated against its complete trip set exactly once and incremental
// passes agree with a single batch pass. Overlapping windows over the same
// trip set collapse to one violation via the engine's evidence dedupe.
func (d washDetector) scanWindows(h *History, agentID, symbol string, trips []roundTrip) []models.Violation {
	var out []models.Violation
	for _, anchor := range trips {
		start := anchor.startRound()
		end := start + d.cfg.WindowRounds - 1
		if end > h.LastRound {
			continue // window still open; a later pass judges it
		}

		var inWindow []roundTrip
		for _, t := range trips {
			if t.startRound() >= start && t.close.Round <= end {
				inWindow = append(inWindow, t)
			}
		}
		if len(inWindow) <= d.cfg.RoundTripThreshold {
			continue
		}
		if !d.netPositionNegligible(inWindow) {
			continue
		}

		var txnIDs []uuid.UUID
		var seqs []uint64
		lastRound := 0
		for _, t := range inWindow {
			txnIDs = append(txnIDs, t.open.ID, t.close.ID)
			seqs = append(seqs, h.SeqOfTransaction(t.open.ID), h.SeqOfTransaction(t.close.ID))
			if t.close.Round > lastRound {
				lastRound = t.close.Round
			}
		}

		ratio := decimal.NewFromInt(int64(len(inWindow))).
			Div(decimal.NewFromInt(int64(d.cfg.RoundTripThreshold)))
		out = append(out, models.Violation{
			Kind:     models.ViolationWashTrading,
			Severity: severityFromRatio(ratio, 1.5, 3),
			AgentIDs: []string{agentID},
			Description: fmt.Sprintf(
				"%s completed %d offsetting round-trips on %s within %d rounds with no real position change",
				agentID, len(inWindow), symbol, d.cfg.WindowRounds),
			Confidence: confidenceFromRatio(ratio, 3),
			Evidence: models.Evidence{
				EventSeqs:      seqs,
				TransactionIDs: txnIDs,
			},
			RoundDetected: lastRound,
		})
	}
	return out
}

// netPositionNegligible checks that the window's signed quantity is small
// relative to its gross traded quantity.
func (d washDetector) netPositionNegligible(trips []roundTrip) bool {
	var net, gross int64
	for _, t := range trips {
		net += t.open.SignedQuantity() + t.close.SignedQuantity()
		gross += t.open.Quantity + t.close.Quantity
	}
	if gross == 0 {
		return false
	}
	return math.Abs(float64(net)) <= d.cfg.NetPositionTolerance*float64(gross)
}
