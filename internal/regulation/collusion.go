package regulation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// collusionDetector flags agent pairs whose private messages precede
// correlated trading: both parties trade the same stock in the same
// direction within the lag window after a message between them, more often
// than the configured baseline.
type collusionDetector struct {
	cfg CollusionConfig
}

// coOccurrence is one private message followed by same-direction trades from
// both parties.
type coOccurrence struct {
	message models.Message
	trades  []models.Transaction
}

func (d collusionDetector) detect(h *History) []models.Violation {
	// Group co-occurrences per (pair, symbol, side) so repetition is what
	// distinguishes coordination from coincidence.
	groups := make(map[string][]coOccurrence)

	for _, msg := range h.Messages {
		if msg.IsBroadcast() || msg.Sender == msg.Recipient {
			continue
		}
		if msg.Round+d.cfg.LagRounds > h.LastRound {
			continue // lag window still open; a later pass judges it
		}
		a, b := msg.Sender, msg.Recipient
		for _, symbol := range h.Symbols() {
			for _, side := range []string{models.SideBuy, models.SideSell} {
				ta := d.tradesAfter(h, a, symbol, side, msg)
				tb := d.tradesAfter(h, b, symbol, side, msg)
				if len(ta) == 0 || len(tb) == 0 {
					continue
				}
				key := groupKey(a, b, symbol, side)
				groups[key] = append(groups[key], coOccurrence{
					message: msg,
					trades:  append(ta[:1:1], tb[0]),
				})
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.Violation
	for _, key := range keys {
		occ := groups[key]
		if len(occ) < d.cfg.MinOccurrences {
			continue
		}
		// Evidence is pinned to the first occurrences that crossed the
		// baseline, so an incremental pass and a final batch pass agree.
		occ = occ[:d.cfg.MinOccurrences]

		pair, symbol, side := splitGroupKey(key)
		var msgIDs []uuid.UUID
		var txnIDs []uuid.UUID
		var seqs []uint64
		lastRound := 0
		for _, o := range occ {
			msgIDs = append(msgIDs, o.message.ID)
			seqs = append(seqs, h.SeqOfMessage(o.message.ID))
			for _, t := range o.trades {
				txnIDs = append(txnIDs, t.ID)
				seqs = append(seqs, h.SeqOfTransaction(t.ID))
				if t.Round > lastRound {
					lastRound = t.Round
				}
			}
		}

		severity := models.SeverityHigh
		out = append(out, models.Violation{
			Kind:     models.ViolationCollusion,
			Severity: severity,
			AgentIDs: pair,
			Description: fmt.Sprintf(
				"%s and %s exchanged private messages followed by correlated %s trading on %s in %d separate instances",
				pair[0], pair[1], side, symbol, d.cfg.MinOccurrences),
			Confidence: decimal.NewFromInt(80),
			Evidence: models.Evidence{
				EventSeqs:      seqs,
				TransactionIDs: txnIDs,
				MessageIDs:     msgIDs,
			},
			RoundDetected: lastRound,
		})
	}
	return out
}

// tradesAfter returns the agent's trades on symbol/side that follow the
// message in log order within the lag window.
func (d collusionDetector) tradesAfter(h *History, agentID, symbol, side string, msg models.Message) []models.Transaction {
	msgSeq := h.SeqOfMessage(msg.ID)
	var out []models.Transaction
	for _, t := range h.TransactionsBy(agentID, symbol) {
		if t.Side != side {
			continue
		}
		if t.Round < msg.Round || t.Round > msg.Round+d.cfg.LagRounds {
			continue
		}
		if h.SeqOfTransaction(t.ID) <= msgSeq {
			continue
		}
		out = append(out, t)
	}
	return out
}

func groupKey(a, b, symbol, side string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b, symbol, side}, "|")
}

func splitGroupKey(key string) (pair []string, symbol, side string) {
	parts := strings.Split(key, "|")
	return parts[:2], parts[2], parts[3]
}
