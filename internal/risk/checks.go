// Package risk implements the trade risk engine: the fixed registry of
// pre-trade risk checks, the concurrent assessor that runs them, and
// the classifier that maps assessments to risk levels and approver
// chains.
package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/voltex/riskflow/internal/config"
	"github.com/voltex/riskflow/pkg/models"
)

// Registered check names.
const (
	CheckCreditLimit          = "credit_limit"
	CheckTradingLimit         = "trading_limit"
	CheckPriceDeviation       = "price_deviation"
	CheckCounterpartyRisk     = "counterparty_risk"
	CheckMarketRisk           = "market_risk"
	CheckRegulatoryCompliance = "regulatory_compliance"
)

// CheckContext carries the read-only reference data a check may consult:
// credit standing from the ledger service and current market conditions
// from the market-data provider. Checks never mutate shared state.
type CheckContext struct {
	UsedCredit  decimal.Decimal `json:"used_credit"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	MarketPrice decimal.Decimal `json:"market_price"`
	Volatility  decimal.Decimal `json:"volatility"`
}

// Check is one named, side-effect-free risk predicate over a trade.
type Check interface {
	Name() string
	Evaluate(ctx context.Context, trade *models.Trade, ref CheckContext) models.RiskCheckResult
}

// CheckFunc adapts a function to the Check interface.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context, trade *models.Trade, ref CheckContext) models.RiskCheckResult
}

func (c CheckFunc) Name() string { return c.CheckName }

func (c CheckFunc) Evaluate(ctx context.Context, trade *models.Trade, ref CheckContext) models.RiskCheckResult {
	return c.Fn(ctx, trade, ref)
}

// Registry is the fixed, ordered collection of risk checks. It is
// closed once constructed; swapping a check implementation is a
// configuration-time operation via Option, not a runtime one.
type Registry struct {
	checks []Check
}

// Option customises registry construction.
type Option func(*Registry)

// WithCheck replaces the registered check with the same name. Used to
// plug external counterparty / regulatory / market risk services in
// place of the default stubs.
func WithCheck(c Check) Option {
	return func(r *Registry) {
		for i, existing := range r.checks {
			if existing.Name() == c.Name() {
				r.checks[i] = c
				return
			}
		}
	}
}

// NewRegistry builds the standard six-check registry with the given
// risk parameters and per-type trading profiles.
func NewRegistry(cfg config.RiskConfig, profiles map[models.TradeType]models.TradeProfile, opts ...Option) *Registry {
	r := &Registry{
		checks: []Check{
			creditLimitCheck{warnRatio: decimal.NewFromFloat(cfg.CreditWarnRatio)},
			tradingLimitCheck{profiles: profiles, warnRatio: decimal.NewFromFloat(cfg.VolumeWarnRatio)},
			priceDeviationCheck{
				maxDeviation:  decimal.NewFromFloat(cfg.MaxPriceDeviation),
				warnDeviation: decimal.NewFromFloat(cfg.WarnPriceDeviation),
			},
			passingCheck{name: CheckCounterpartyRisk, message: "counterparty risk assessment passed"},
			marketRiskCheck{warnLevel: decimal.NewFromFloat(cfg.VolatilityWarnLevel)},
			passingCheck{name: CheckRegulatoryCompliance, message: "regulatory compliance check passed"},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Checks returns the registered checks in evaluation order.
func (r *Registry) Checks() []Check {
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// Names returns the registered check names in evaluation order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.checks))
	for i, c := range r.checks {
		names[i] = c.Name()
	}
	return names
}

// creditLimitCheck blocks trades that would exceed the counterparty's
// credit limit and warns above the configured utilisation ratio.
type creditLimitCheck struct {
	warnRatio decimal.Decimal
}

func (c creditLimitCheck) Name() string { return CheckCreditLimit }

func (c creditLimitCheck) Evaluate(_ context.Context, trade *models.Trade, ref CheckContext) models.RiskCheckResult {
	exposure := trade.TotalValue.Add(ref.UsedCredit)

	if exposure.GreaterThan(ref.CreditLimit) {
		available := ref.CreditLimit.Sub(ref.UsedCredit)
		return models.RiskCheckResult{
			CheckName: CheckCreditLimit,
			Status:    models.CheckBlocked,
			Message:   fmt.Sprintf("trade value exceeds available credit (available: %s)", available.StringFixed(2)),
		}
	}

	if exposure.GreaterThan(ref.CreditLimit.Mul(c.warnRatio)) {
		return models.RiskCheckResult{
			CheckName: CheckCreditLimit,
			Status:    models.CheckWarning,
			Message:   fmt.Sprintf("credit utilisation would exceed %s%% after this trade", c.warnRatio.Mul(decimal.NewFromInt(100)).StringFixed(0)),
		}
	}

	return models.RiskCheckResult{
		CheckName: CheckCreditLimit,
		Status:    models.CheckPassed,
		Message:   "credit limit check passed",
	}
}

// tradingLimitCheck enforces the per-type volume ceiling from the
// trading profile and warns when a trade approaches it.
type tradingLimitCheck struct {
	profiles  map[models.TradeType]models.TradeProfile
	warnRatio decimal.Decimal
}

func (c tradingLimitCheck) Name() string { return CheckTradingLimit }

func (c tradingLimitCheck) Evaluate(_ context.Context, trade *models.Trade, _ CheckContext) models.RiskCheckResult {
	profile, ok := c.profiles[trade.Type]
	if !ok {
		return models.RiskCheckResult{
			CheckName: CheckTradingLimit,
			Status:    models.CheckBlocked,
			Message:   fmt.Sprintf("no trading profile for trade type %q", trade.Type),
		}
	}

	if trade.Volume.GreaterThan(profile.MaxVolume) {
		return models.RiskCheckResult{
			CheckName: CheckTradingLimit,
			Status:    models.CheckBlocked,
			Message:   fmt.Sprintf("volume exceeds the %s MWh limit for %s trades", profile.MaxVolume, trade.Type),
		}
	}

	if trade.Volume.GreaterThan(profile.MaxVolume.Mul(c.warnRatio)) {
		return models.RiskCheckResult{
			CheckName: CheckTradingLimit,
			Status:    models.CheckWarning,
			Message:   fmt.Sprintf("volume is close to the %s MWh limit for %s trades", profile.MaxVolume, trade.Type),
		}
	}

	return models.RiskCheckResult{
		CheckName: CheckTradingLimit,
		Status:    models.CheckPassed,
		Message:   "trading limit check passed",
	}
}

// priceDeviationCheck compares the trade price against the current
// market price; deviation is fail-closed when no market price is known.
type priceDeviationCheck struct {
	maxDeviation  decimal.Decimal
	warnDeviation decimal.Decimal
}

func (c priceDeviationCheck) Name() string { return CheckPriceDeviation }

func (c priceDeviationCheck) Evaluate(_ context.Context, trade *models.Trade, ref CheckContext) models.RiskCheckResult {
	if !ref.MarketPrice.IsPositive() {
		return models.RiskCheckResult{
			CheckName: CheckPriceDeviation,
			Status:    models.CheckBlocked,
			Message:   "current market price unavailable, cannot verify price deviation",
		}
	}

	deviation := trade.Price.Sub(ref.MarketPrice).Abs().Div(ref.MarketPrice)

	if deviation.GreaterThan(c.maxDeviation) {
		return models.RiskCheckResult{
			CheckName: CheckPriceDeviation,
			Status:    models.CheckBlocked,
			Message: fmt.Sprintf("price deviates %s%% from market price %s",
				deviation.Mul(decimal.NewFromInt(100)).StringFixed(1), ref.MarketPrice.StringFixed(2)),
		}
	}

	if deviation.GreaterThan(c.warnDeviation) {
		return models.RiskCheckResult{
			CheckName: CheckPriceDeviation,
			Status:    models.CheckWarning,
			Message: fmt.Sprintf("price deviates %s%% from market price, please confirm",
				deviation.Mul(decimal.NewFromInt(100)).StringFixed(1)),
		}
	}

	return models.RiskCheckResult{
		CheckName: CheckPriceDeviation,
		Status:    models.CheckPassed,
		Message:   "price deviation within acceptable range",
	}
}

// marketRiskCheck warns when supplied market volatility exceeds the
// configured level. Full market risk scoring is delegated to an
// external risk service via WithCheck.
type marketRiskCheck struct {
	warnLevel decimal.Decimal
}

func (c marketRiskCheck) Name() string { return CheckMarketRisk }

func (c marketRiskCheck) Evaluate(_ context.Context, _ *models.Trade, ref CheckContext) models.RiskCheckResult {
	if ref.Volatility.GreaterThan(c.warnLevel) {
		return models.RiskCheckResult{
			CheckName: CheckMarketRisk,
			Status:    models.CheckWarning,
			Message:   "market volatility is elevated, trade with caution",
		}
	}
	return models.RiskCheckResult{
		CheckName: CheckMarketRisk,
		Status:    models.CheckPassed,
		Message:   "market risk within acceptable range",
	}
}

// passingCheck is the default stub for checks backed by external
// services not wired in this deployment.
type passingCheck struct {
	name    string
	message string
}

func (c passingCheck) Name() string { return c.name }

func (c passingCheck) Evaluate(context.Context, *models.Trade, CheckContext) models.RiskCheckResult {
	return models.RiskCheckResult{CheckName: c.name, Status: models.CheckPassed, Message: c.message}
}
