package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/models"
)

func warningResults(n int) []models.RiskCheckResult {
	names := []string{
		CheckCreditLimit, CheckTradingLimit, CheckPriceDeviation,
		CheckCounterpartyRisk, CheckMarketRisk, CheckRegulatoryCompliance,
	}
	results := make([]models.RiskCheckResult, 0, len(names))
	for i, name := range names {
		status := models.CheckPassed
		if i < n {
			status = models.CheckWarning
		}
		results = append(results, models.RiskCheckResult{CheckName: name, Status: status})
	}
	return results
}

func blockedResults() []models.RiskCheckResult {
	results := warningResults(0)
	results[0].Status = models.CheckBlocked
	return results
}

func valuedTrade(totalValue int64) *models.Trade {
	return &models.Trade{Type: models.TradeTypeSpot, TotalValue: decimal.NewFromInt(totalValue)}
}

func TestFloorLevelThresholds(t *testing.T) {
	c := NewClassifier(config.Default().Workflow)

	tests := []struct {
		value int64
		want  models.RiskLevel
	}{
		{1, models.RiskLevelLow},
		{100000, models.RiskLevelLow},
		{100001, models.RiskLevelMedium},
		{500000, models.RiskLevelMedium},
		{500001, models.RiskLevelHigh},
		{2000000, models.RiskLevelHigh},
		{2000001, models.RiskLevelCritical},
		{50000000, models.RiskLevelCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.FloorLevel(decimal.NewFromInt(tt.value)), "value %d", tt.value)
	}
}

func TestClassifyCleanAssessmentKeepsFloor(t *testing.T) {
	c := NewClassifier(config.Default().Workflow)

	clean := models.NewRiskAssessment(warningResults(0))
	got := c.Classify(valuedTrade(50000), clean)

	assert.Equal(t, models.RiskLevelLow, got.Level)
	assert.Equal(t, []models.Role{models.RoleTrader}, got.Approvers)
}

func TestClassifyBlockerForcesCritical(t *testing.T) {
	c := NewClassifier(config.Default().Workflow)

	got := c.Classify(valuedTrade(50000), models.NewRiskAssessment(blockedResults()))

	assert.Equal(t, models.RiskLevelCritical, got.Level)
	assert.Equal(t, []models.Role{
		models.RoleTrader, models.RoleSupervisor, models.RoleRiskManager, models.RoleDirector,
	}, got.Approvers)
}

func TestClassifyThreeWarningsForceAtLeastHigh(t *testing.T) {
	c := NewClassifier(config.Default().Workflow)
	assessment := models.NewRiskAssessment(warningResults(3))

	low := c.Classify(valuedTrade(50000), assessment)
	assert.Equal(t, models.RiskLevelHigh, low.Level)

	// a critical floor is not lowered by the warning rule
	critical := c.Classify(valuedTrade(3000000), assessment)
	assert.Equal(t, models.RiskLevelCritical, critical.Level)
}

func TestClassifySingleWarningEscalatesOneStep(t *testing.T) {
	c := NewClassifier(config.Default().Workflow)
	assessment := models.NewRiskAssessment(warningResults(1))

	tests := []struct {
		value int64
		want  models.RiskLevel
	}{
		{50000, models.RiskLevelMedium},
		{300000, models.RiskLevelHigh},
		{1000000, models.RiskLevelCritical},
		{3000000, models.RiskLevelCritical}, // already critical, stays critical
	}

	for _, tt := range tests {
		got := c.Classify(valuedTrade(tt.value), assessment)
		assert.Equal(t, tt.want, got.Level, "value %d", tt.value)
	}
}

func TestClassifyNeverBelowFloor(t *testing.T) {
	c := NewClassifier(config.Default().Workflow)

	for warnings := 0; warnings <= 6; warnings++ {
		assessment := models.NewRiskAssessment(warningResults(warnings))
		for _, value := range []int64{1, 100000, 100001, 500000, 500001, 2000000, 2000001} {
			floor := c.FloorLevel(decimal.NewFromInt(value))
			got := c.Classify(valuedTrade(value), assessment)
			assert.GreaterOrEqual(t, got.Level, floor, "warnings=%d value=%d", warnings, value)
		}
	}
}

func TestClassifyApproverChainMatchesLevel(t *testing.T) {
	workflow := config.Default().Workflow
	c := NewClassifier(workflow)

	// a 600,000 yuan trade with two warnings lands on critical (high floor plus one step)
	got := c.Classify(valuedTrade(600000), models.NewRiskAssessment(warningResults(2)))

	assert.Equal(t, models.RiskLevelCritical, got.Level)
	assert.Equal(t, workflow.ApproversFor(models.RiskLevelCritical), got.Approvers)
}
