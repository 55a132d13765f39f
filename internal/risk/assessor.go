package risk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/errors"
	"github.com/voltex/riskflow/pkg/metrics"
	"github.com/voltex/riskflow/pkg/models"
)

// Assessor runs every registered check against a trade and aggregates
// the verdicts. Checks run concurrently; Assess joins on all of them
// before returning, so an assessment is never partial.
type Assessor struct {
	registry *Registry
	profiles map[models.TradeType]models.TradeProfile
	timeout  time.Duration
	log      *zap.Logger
}

// NewAssessor builds an assessor over the given registry.
func NewAssessor(registry *Registry, cfg config.RiskConfig, profiles map[models.TradeType]models.TradeProfile, log *zap.Logger) *Assessor {
	return &Assessor{
		registry: registry,
		profiles: profiles,
		timeout:  cfg.CheckTimeout,
		log:      log,
	}
}

// Assess validates the trade, then evaluates all checks concurrently.
// A check that times out or panics is recorded as blocked with a
// diagnostic message (fail-closed); check failures never propagate as
// errors past the assessor. The only error return is a Validation
// error for malformed input, surfaced before any check runs.
func (a *Assessor) Assess(ctx context.Context, trade *models.Trade, ref CheckContext) (*models.RiskAssessment, error) {
	if err := a.validate(trade); err != nil {
		return nil, err
	}

	start := time.Now()
	checks := a.registry.Checks()
	results := make([]models.RiskCheckResult, len(checks))

	type indexed struct {
		i      int
		result models.RiskCheckResult
	}
	resultCh := make(chan indexed, len(checks))

	for i, check := range checks {
		go func(i int, check Check) {
			resultCh <- indexed{i, a.runCheck(ctx, check, trade, ref)}
		}(i, check)
	}

	for range checks {
		r := <-resultCh
		results[r.i] = r.result
	}

	assessment := models.NewRiskAssessment(results)

	for _, r := range results {
		metrics.CheckResults.WithLabelValues(r.CheckName, string(r.Status)).Inc()
	}
	metrics.AssessmentLatency.Observe(time.Since(start).Seconds())
	metrics.AssessmentsTotal.WithLabelValues(assessmentOutcome(assessment)).Inc()

	a.log.Info("trade risk assessment complete",
		zap.String("trade_id", trade.ID.String()),
		zap.String("trade_type", string(trade.Type)),
		zap.String("total_value", trade.TotalValue.String()),
		zap.Int("warnings", len(assessment.Warnings())),
		zap.Int("blockers", len(assessment.Blockers())),
		zap.Duration("elapsed", time.Since(start)),
	)

	return assessment, nil
}

// runCheck evaluates one check with a bounded timeout. Timeouts and
// panics become blocked results: this gates financial risk decisions,
// so an unavailable check fails closed, never open.
func (a *Assessor) runCheck(ctx context.Context, check Check, trade *models.Trade, ref CheckContext) models.RiskCheckResult {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan models.RiskCheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.Error("risk check panicked",
					zap.String("check", check.Name()),
					zap.Any("panic", r),
				)
				done <- models.RiskCheckResult{
					CheckName: check.Name(),
					Status:    models.CheckBlocked,
					Message:   fmt.Sprintf("check %s failed: internal error", check.Name()),
				}
			}
		}()
		done <- check.Evaluate(ctx, trade, ref)
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		a.log.Warn("risk check timed out",
			zap.String("check", check.Name()),
			zap.String("trade_id", trade.ID.String()),
			zap.Duration("timeout", a.timeout),
		)
		return models.RiskCheckResult{
			CheckName: check.Name(),
			Status:    models.CheckBlocked,
			Message:   fmt.Sprintf("check %s did not complete within %s", check.Name(), a.timeout),
		}
	}
}

func (a *Assessor) validate(trade *models.Trade) error {
	if err := trade.Validate(); err != nil {
		return err
	}
	profile, ok := a.profiles[trade.Type]
	if !ok {
		return errors.Validation(errors.NewFieldError("type", "unknown trade type"))
	}
	if fields := profile.CheckTrade(trade); len(fields) > 0 {
		return errors.Validation(fields...)
	}
	return nil
}

func assessmentOutcome(a *models.RiskAssessment) string {
	switch {
	case a.Blocked():
		return "blocked"
	case len(a.Warnings()) > 0:
		return "warned"
	}
	return "clean"
}
