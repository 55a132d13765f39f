package approval

import (
	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/models"
)

// Step is one position in a resolved approval chain: the role, its
// 1-based level and the checks that role re-confirms before approving.
type Step struct {
	Role           models.Role `json:"role"`
	Level          int         `json:"level"`
	RequiredChecks []string    `json:"required_checks"`
}

// Builder resolves approver chains into concrete workflow steps from an
// immutable workflow configuration.
type Builder struct {
	workflow config.WorkflowConfig
}

// NewBuilder builds a workflow builder.
func NewBuilder(workflow config.WorkflowConfig) *Builder {
	return &Builder{workflow: workflow}
}

// StepsFor maps an ordered approver chain to its workflow steps.
func (b *Builder) StepsFor(approvers []models.Role) []Step {
	steps := make([]Step, 0, len(approvers))
	for i, role := range approvers {
		steps = append(steps, Step{
			Role:           role,
			Level:          i + 1,
			RequiredChecks: b.workflow.ChecksFor(role),
		})
	}
	return steps
}

// ChainFor returns the approver chain configured for a risk level.
func (b *Builder) ChainFor(level models.RiskLevel) []models.Role {
	return b.workflow.ApproversFor(level)
}
