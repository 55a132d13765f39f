package risk

import (
	"github.com/shopspring/decimal"

	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/metrics"
	"github.com/voltex/riskflow/pkg/models"
)

// Classification is the outcome of classifying one assessed trade: the
// final risk level and the ordered approver chain it requires.
type Classification struct {
	Level     models.RiskLevel `json:"level"`
	Approvers []models.Role    `json:"approvers"`
}

// Classifier maps a trade's notional value and its risk assessment to a
// risk level. It is pure and deterministic: identical inputs always
// yield the identical classification.
type Classifier struct {
	workflow config.WorkflowConfig
}

// NewClassifier builds a classifier over an immutable workflow config.
func NewClassifier(workflow config.WorkflowConfig) *Classifier {
	return &Classifier{workflow: workflow}
}

// FloorLevel computes the level implied by notional value alone: the
// lowest level whose threshold admits the value. The floor is never
// lowered by assessment results, only raised.
func (c *Classifier) FloorLevel(totalValue decimal.Decimal) models.RiskLevel {
	for _, level := range []models.RiskLevel{models.RiskLevelLow, models.RiskLevelMedium, models.RiskLevelHigh} {
		policy, ok := c.workflow.Levels[level.String()]
		if !ok {
			continue
		}
		if totalValue.LessThanOrEqual(decimal.NewFromInt(policy.Threshold)) {
			return level
		}
	}
	return models.RiskLevelCritical
}

// Classify applies the escalation rules, in order:
//  1. floor level from the threshold table;
//  2. any blocker forces critical;
//  3. three or more warnings force at least high;
//  4. a single warning escalates the floor by exactly one step;
//  5. otherwise the floor stands.
//
// The result is never below the floor.
func (c *Classifier) Classify(trade *models.Trade, assessment *models.RiskAssessment) Classification {
	floor := c.FloorLevel(trade.TotalValue)
	level := floor

	switch {
	case assessment.Blocked():
		level = models.RiskLevelCritical
	case len(assessment.Warnings()) >= 3:
		if level < models.RiskLevelHigh {
			level = models.RiskLevelHigh
		}
	case len(assessment.Warnings()) >= 1:
		level = floor.Next()
	}

	metrics.ClassificationsTotal.WithLabelValues(level.String()).Inc()

	return Classification{
		Level:     level,
		Approvers: c.workflow.ApproversFor(level),
	}
}
