package market

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentforum/marketsim/internal/models"
)

// issueOpportunities draws the round's public and insider opportunities.
// Issuance probabilities are independent; a round may produce zero, one or
// both kinds. Visibility sets are immutable once assigned.
func (e *Engine) issueOpportunities(round int) error {
	if e.rng.Float64() < e.cfg.PublicOpportunityProb {
		if err := e.issue(round, models.OpportunityPublic); err != nil {
			return err
		}
	}
	if e.rng.Float64() < e.cfg.InsiderOpportunityProb {
		if err := e.issue(round, models.OpportunityInsider); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) issue(round int, kind models.OpportunityKind) error {
	symbol := e.symbols[e.rng.Intn(len(e.symbols))]

	var impact float64
	var visibility []string
	switch kind {
	case models.OpportunityInsider:
		impact = e.cfg.InsiderImpactMin + e.rng.Float64()*(e.cfg.InsiderImpactMax-e.cfg.InsiderImpactMin)
		if e.rng.Float64() < e.cfg.InsiderNegativeProb {
			impact = -impact
		}
		visibility = e.insiderSubset()
	default:
		impact = e.cfg.PublicImpactMin + e.rng.Float64()*(e.cfg.PublicImpactMax-e.cfg.PublicImpactMin)
		visibility = append([]string(nil), e.roster...)
	}
	if len(visibility) == 0 {
		return nil // no registered agents to tip off
	}

	opp := &models.Opportunity{
		ID:             uuid.New(),
		Symbol:         symbol,
		Kind:           kind,
		ExpectedImpact: decimal.NewFromFloat(impact).Round(4),
		Visibility:     visibility,
		CreatedRound:   round,
		ExpiryRound:    round + e.cfg.OpportunityLifetime,
	}
	if _, err := e.log.Append(round, &models.OpportunityIssuedPayload{Opportunity: *opp}); err != nil {
		return fmt.Errorf("append opportunity: %w", err)
	}
	e.opportunities = append(e.opportunities, opp)

	e.logger.Infow("opportunity issued",
		"kind", kind, "symbol", symbol,
		"expected_impact", opp.ExpectedImpact.String(),
		"visibility", len(visibility), "round", round)
	return nil
}

// insiderSubset picks 1..InsiderVisibilityMax agents, in registration order.
func (e *Engine) insiderSubset() []string {
	if len(e.roster) == 0 {
		return nil
	}
	n := 1
	if e.cfg.InsiderVisibilityMax > 1 {
		n += e.rng.Intn(e.cfg.InsiderVisibilityMax)
	}
	if n > len(e.roster) {
		n = len(e.roster)
	}
	perm := e.rng.Perm(len(e.roster))[:n]
	out := make([]string, 0, n)
	for _, i := range perm {
		out = append(out, e.roster[i])
	}
	return out
}
