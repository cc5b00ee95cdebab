package regulation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforum/marketsim/internal/models"
)

func TestBuildReportCountsBySeverityAndKind(t *testing.T) {
	violations := []models.Violation{
		{ID: uuid.New(), Kind: models.ViolationInsiderTrading, Severity: models.SeverityHigh,
			AgentIDs: []string{"alice"}, Confidence: decimal.NewFromInt(90)},
		{ID: uuid.New(), Kind: models.ViolationWashTrading, Severity: models.SeverityHigh,
			AgentIDs: []string{"bob"}, Confidence: decimal.NewFromInt(70)},
		{ID: uuid.New(), Kind: models.ViolationInsiderTrading, Severity: models.SeverityCritical,
			AgentIDs: []string{"alice"}, Confidence: decimal.NewFromInt(100)},
	}

	r := BuildReport(violations)
	assert.Equal(t, 3, r.TotalViolations)
	assert.Equal(t, 2, r.ByKind[models.ViolationInsiderTrading])
	assert.Equal(t, 1, r.ByKind[models.ViolationWashTrading])
	assert.Equal(t, 2, r.BySeverity[models.SeverityHigh])
	assert.Equal(t, 1, r.BySeverity[models.SeverityCritical])
	assert.Zero(t, r.BySeverity[models.SeverityLow])
}

func TestBuildReportEmptyIsWellFormed(t *testing.T) {
	r := BuildReport(nil)
	assert.Zero(t, r.TotalViolations)
	assert.NotNil(t, r.Violations, "an empty report still serializes violations as []")
}

func TestReportWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compliance_report.json")
	violations := []models.Violation{
		{ID: uuid.New(), Kind: models.ViolationCollusion, Severity: models.SeverityHigh,
			AgentIDs: []string{"dave", "erin"}, Description: "correlated trading",
			Confidence: decimal.NewFromInt(80), RoundDetected: 5},
	}
	require.NoError(t, BuildReport(violations).WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got ComplianceReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 1, got.TotalViolations)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, models.ViolationCollusion, got.Violations[0].Kind)
	assert.Equal(t, []string{"dave", "erin"}, got.Violations[0].AgentIDs)
}
