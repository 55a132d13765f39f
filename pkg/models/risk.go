package models

import "encoding/json"

// CheckStatus is the outcome of a single risk check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckBlocked CheckStatus = "blocked"
)

// RiskCheckResult is the output of one named risk check. Status is
// derived purely from the trade and the static limits in effect at
// evaluation time.
type RiskCheckResult struct {
	CheckName string      `json:"check_name"`
	Status    CheckStatus `json:"status"`
	Message   string      `json:"message"`
}

// RiskAssessment aggregates the results of every registered check for
// one trade. Warnings and Blockers are derived views over Results in
// registry order; they are never mutated independently.
type RiskAssessment struct {
	Results map[string]RiskCheckResult `json:"results"`

	// order preserves registry evaluation order for the derived views.
	order []string
}

// NewRiskAssessment builds an assessment from ordered check results.
// One result per registered check; the assessor never omits a check.
func NewRiskAssessment(results []RiskCheckResult) *RiskAssessment {
	a := &RiskAssessment{
		Results: make(map[string]RiskCheckResult, len(results)),
		order:   make([]string, 0, len(results)),
	}
	for _, r := range results {
		a.Results[r.CheckName] = r
		a.order = append(a.order, r.CheckName)
	}
	return a
}

func (a *RiskAssessment) withStatus(status CheckStatus) []RiskCheckResult {
	var out []RiskCheckResult
	for _, name := range a.order {
		if r := a.Results[name]; r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Warnings returns the results with warning status, in registry order.
func (a *RiskAssessment) Warnings() []RiskCheckResult {
	return a.withStatus(CheckWarning)
}

// Blockers returns the results with blocked status, in registry order.
func (a *RiskAssessment) Blockers() []RiskCheckResult {
	return a.withStatus(CheckBlocked)
}

// Blocked reports whether any check blocked the trade.
func (a *RiskAssessment) Blocked() bool {
	return len(a.Blockers()) > 0
}

type assessmentJSON struct {
	Results  []RiskCheckResult `json:"results"`
	Warnings []RiskCheckResult `json:"warnings,omitempty"`
	Blockers []RiskCheckResult `json:"blockers,omitempty"`
}

// MarshalJSON encodes results in registry order, with the derived
// warning/blocker views included for consumers that only render.
func (a *RiskAssessment) MarshalJSON() ([]byte, error) {
	ordered := make([]RiskCheckResult, 0, len(a.order))
	for _, name := range a.order {
		ordered = append(ordered, a.Results[name])
	}
	return json.Marshal(assessmentJSON{
		Results:  ordered,
		Warnings: a.Warnings(),
		Blockers: a.Blockers(),
	})
}

// UnmarshalJSON rebuilds the assessment from the ordered results; the
// warning and blocker views are re-derived, never trusted from input.
func (a *RiskAssessment) UnmarshalJSON(data []byte) error {
	var p assessmentJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = *NewRiskAssessment(p.Results)
	return nil
}

// RiskLevel is the ordinal risk classification of a trade.
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLevelLow:
		return "low"
	case RiskLevelMedium:
		return "medium"
	case RiskLevelHigh:
		return "high"
	case RiskLevelCritical:
		return "critical"
	}
	return "unknown"
}

// Next returns the level one ordinal step up, capped at critical.
func (r RiskLevel) Next() RiskLevel {
	if r >= RiskLevelCritical {
		return RiskLevelCritical
	}
	return r + 1
}

// ParseRiskLevel maps a level name back to its ordinal value.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch s {
	case "low":
		return RiskLevelLow, true
	case "medium":
		return RiskLevelMedium, true
	case "high":
		return RiskLevelHigh, true
	case "critical":
		return RiskLevelCritical, true
	}
	return RiskLevelLow, false
}

// MarshalJSON encodes the level as its name.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}
