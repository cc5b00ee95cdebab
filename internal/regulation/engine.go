// Package regulation mines the event log for insider trading, wash trading,
// market manipulation and collusion. Detection is deterministic given the
// same event history and configuration: the engine reads log snapshots and
// introduces no randomness of its own.
package regulation

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/agentforum/marketsim/internal/models"
	"github.com/agentforum/marketsim/pkg/metrics"
)

// Engine evaluates the detection rules over event log snapshots. Scan may be
// called once at run end or after every round; the accumulated violation set
// is identical either way, because each rule only evaluates evidence whose
// window is fully contained in the snapshot, and duplicates (same kind, same
// evidence) are collapsed.
type Engine struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu         sync.Mutex
	seen       map[string]bool
	violations []models.Violation
}

// NewEngine validates the configuration and builds an engine. Threshold
// problems surface here, at startup, never during a detection pass.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("regulation config: %w", err)
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.Sugar(),
		seen:   make(map[string]bool),
	}, nil
}

// Scan runs every rule over the snapshot and records the violations not
// already seen. It returns only the newly detected ones.
func (e *Engine) Scan(events []models.Event) []models.Violation {
	start := time.Now()
	found := Detect(e.cfg, events)
	metrics.DetectionLatency.Observe(time.Since(start).Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()
	var fresh []models.Violation
	for _, v := range found {
		key := dedupeKey(v)
		if e.seen[key] {
			continue
		}
		e.seen[key] = true
		e.violations = append(e.violations, v)
		fresh = append(fresh, v)
		metrics.ViolationsDetected.WithLabelValues(string(v.Kind), string(v.Severity)).Inc()
		e.logger.Infow("violation detected",
			"kind", v.Kind, "severity", v.Severity,
			"agents", v.AgentIDs, "round", v.RoundDetected)
	}
	return fresh
}

// Violations returns everything recorded so far, in detection order.
func (e *Engine) Violations() []models.Violation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Violation(nil), e.violations...)
}

// Detect is the pure batch pass: it evaluates every rule over the snapshot
// and returns the deduplicated violations in a deterministic order.
func Detect(cfg Config, events []models.Event) []models.Violation {
	h := BuildHistory(events)

	var all []models.Violation
	all = append(all, insiderDetector{cfg: cfg.Insider}.detect(h)...)
	all = append(all, washDetector{cfg: cfg.Wash}.detect(h)...)
	all = append(all, manipulationDetector{cfg: cfg.Manipulation}.detect(h)...)
	all = append(all, collusionDetector{cfg: cfg.Collusion}.detect(h)...)

	seen := make(map[string]bool, len(all))
	out := make([]models.Violation, 0, len(all))
	for _, v := range all {
		key := dedupeKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		v.ID = violationID(key)
		out = append(out, v)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoundDetected != out[j].RoundDetected {
			return out[i].RoundDetected < out[j].RoundDetected
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// dedupeKey identifies a violation by kind and exact evidence set. The same
// evidence may back violations of different kinds, but never two of the same
// kind.
func dedupeKey(v models.Violation) string {
	ids := make([]string, 0, len(v.Evidence.TransactionIDs)+len(v.Evidence.MessageIDs)+len(v.Evidence.OpportunityIDs))
	for _, id := range v.Evidence.TransactionIDs {
		ids = append(ids, "t:"+id.String())
	}
	for _, id := range v.Evidence.MessageIDs {
		ids = append(ids, "m:"+id.String())
	}
	for _, id := range v.Evidence.OpportunityIDs {
		ids = append(ids, "o:"+id.String())
	}
	sort.Strings(ids)
	return string(v.Kind) + "|" + strings.Join(ids, ",")
}

// violationID derives a stable id from the dedupe key, so re-running
// detection over the same history yields identical records.
func violationID(key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("marketsim/violation/"+key))
}

// severityFromRatio maps how far past its threshold a signal landed onto the
// ordered severity scale.
func severityFromRatio(ratio decimal.Decimal, highMultiple, criticalMultiple float64) models.Severity {
	switch {
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(criticalMultiple)):
		return models.SeverityCritical
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(highMultiple)):
		return models.SeverityHigh
	case ratio.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// bumpSeverity raises severity one step, capped at critical.
func bumpSeverity(s models.Severity) models.Severity {
	switch s {
	case models.SeverityLow:
		return models.SeverityMedium
	case models.SeverityMedium:
		return models.SeverityHigh
	default:
		return models.SeverityCritical
	}
}

// confidenceFromRatio maps a threshold ratio to a 0-100 confidence score.
func confidenceFromRatio(ratio decimal.Decimal, criticalMultiple float64) decimal.Decimal {
	base := decimal.NewFromInt(50)
	span := decimal.NewFromInt(50)
	scaled := ratio.Div(decimal.NewFromFloat(criticalMultiple)).Mul(span)
	confidence := base.Add(scaled)
	if confidence.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return confidence.Round(1)
}
