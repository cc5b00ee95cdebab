package regulation

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/agentforum/marketsim/internal/models"
)

// ComplianceReport is the structured document listing every detected
// violation, persisted at run end.
type ComplianceReport struct {
	GeneratedAt     time.Time                    `json:"generated_at"`
	TotalViolations int                          `json:"total_violations"`
	BySeverity      map[models.Severity]int      `json:"by_severity"`
	ByKind          map[models.ViolationKind]int `json:"by_kind"`
	Violations      []models.Violation           `json:"violations"`
}

// BuildReport summarizes a violation set.
func BuildReport(violations []models.Violation) ComplianceReport {
	report := ComplianceReport{
		GeneratedAt:     time.Now(),
		TotalViolations: len(violations),
		BySeverity: map[models.Severity]int{
			models.SeverityLow:      0,
			models.SeverityMedium:   0,
			models.SeverityHigh:     0,
			models.SeverityCritical: 0,
		},
		ByKind:     make(map[models.ViolationKind]int),
		Violations: violations,
	}
	if report.Violations == nil {
		report.Violations = []models.Violation{}
	}
	for _, v := range violations {
		report.BySeverity[v.Severity]++
		report.ByKind[v.Kind]++
	}
	return report
}

// WriteFile persists the report as indented JSON.
func (r ComplianceReport) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode compliance report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write compliance report: %w", err)
	}
	return nil
}
