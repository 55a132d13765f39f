// Package engine wires the risk assessor, classifier and approval
// workflow into the single surface the transport layer exposes.
package engine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voltex/riskflow/internal/approval"
	"github.com/voltex/riskflow/internal/approval/events"
	"github.com/voltex/riskflow/internal/booking"
	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/internal/risk"
	"github.com/voltex/riskflow/pkg/models"
)

// Engine is the trade risk evaluation and approval workflow engine.
type Engine struct {
	assessor   *risk.Assessor
	classifier *risk.Classifier
	manager    *approval.Manager
	log        *zap.Logger
}

// Options customises engine construction beyond configuration.
type Options struct {
	// Publisher receives workflow events; nil disables notifications.
	Publisher events.Publisher
	// Store persists tasks; nil disables persistence.
	Store approval.Store
	// Booker executes approved trades; defaults to the simulator.
	Booker booking.Booker
	// Checks replace registered check implementations by name, for
	// plugging external counterparty/market/regulatory services.
	Checks []risk.Check
}

// New builds an engine from an immutable configuration value.
func New(cfg *config.Config, log *zap.Logger, opts Options) *Engine {
	profiles := models.DefaultProfiles()

	regOpts := make([]risk.Option, 0, len(opts.Checks))
	for _, c := range opts.Checks {
		regOpts = append(regOpts, risk.WithCheck(c))
	}
	registry := risk.NewRegistry(cfg.Risk, profiles, regOpts...)

	booker := opts.Booker
	if booker == nil {
		booker = booking.NewSimBooker()
	}

	builder := approval.NewBuilder(cfg.Workflow)

	return &Engine{
		assessor:   risk.NewAssessor(registry, cfg.Risk, profiles, log),
		classifier: risk.NewClassifier(cfg.Workflow),
		manager:    approval.NewManager(builder, opts.Publisher, opts.Store, booker, log),
		log:        log,
	}
}

// AssessTrade runs every registered risk check against the trade.
func (e *Engine) AssessTrade(ctx context.Context, trade *models.Trade, ref risk.CheckContext) (*models.RiskAssessment, error) {
	return e.assessor.Assess(ctx, trade, ref)
}

// ClassifyRisk maps a trade and its assessment to a risk level and the
// approver chain that level requires. Pure and deterministic.
func (e *Engine) ClassifyRisk(trade *models.Trade, assessment *models.RiskAssessment) risk.Classification {
	return e.classifier.Classify(trade, assessment)
}

// CreateApprovalTask starts the approval workflow for an assessed
// trade. Fails with BlockedAssessment when any check blocked the trade.
func (e *Engine) CreateApprovalTask(ctx context.Context, trade *models.Trade, assessment *models.RiskAssessment, level models.RiskLevel, approvers []models.Role) (approval.Snapshot, error) {
	return e.manager.Create(ctx, trade, assessment, level, approvers)
}

// SubmitTrade is the composed flow: assess, classify, create the task.
func (e *Engine) SubmitTrade(ctx context.Context, trade *models.Trade, ref risk.CheckContext) (approval.Snapshot, *models.RiskAssessment, risk.Classification, error) {
	assessment, err := e.assessor.Assess(ctx, trade, ref)
	if err != nil {
		return approval.Snapshot{}, nil, risk.Classification{}, err
	}

	classification := e.classifier.Classify(trade, assessment)

	snap, err := e.manager.Create(ctx, trade, assessment, classification.Level, classification.Approvers)
	if err != nil {
		return approval.Snapshot{}, assessment, classification, err
	}
	return snap, assessment, classification, nil
}

// RecordDecision applies one approver's verdict to a task.
func (e *Engine) RecordDecision(ctx context.Context, taskID uuid.UUID, role models.Role, decision models.Decision, comment string) (approval.Snapshot, error) {
	return e.manager.Decide(ctx, taskID, role, decision, comment)
}

// Execute books an approved task's trade with the execution venue.
func (e *Engine) Execute(ctx context.Context, taskID uuid.UUID) (*booking.Receipt, approval.Snapshot, error) {
	return e.manager.Execute(ctx, taskID)
}

// Cancel aborts a pending or approved task, triggering rollback
// notification for any provisional side effects.
func (e *Engine) Cancel(ctx context.Context, taskID uuid.UUID, reason string) (approval.Snapshot, error) {
	return e.manager.Cancel(ctx, taskID, reason)
}

// GetTask returns one task's current state.
func (e *Engine) GetTask(taskID uuid.UUID) (approval.Snapshot, error) {
	return e.manager.Get(taskID)
}

// ListTasks returns live tasks, optionally filtered by status.
func (e *Engine) ListTasks(status models.TaskStatus) []approval.Snapshot {
	return e.manager.List(status)
}

// Steps resolves the workflow steps for a task snapshot.
func (e *Engine) Steps(snap approval.Snapshot) []approval.Step {
	return e.manager.Steps(snap)
}

// Restore re-registers open tasks loaded from persistence.
func (e *Engine) Restore(snaps []approval.Snapshot) {
	e.manager.Restore(snaps)
}
