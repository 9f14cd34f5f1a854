// Package allocation stores allocation rules and evaluates portfolio
// compliance against them.
package allocation

import (
	"fmt"
	"time"

	"github.com/avramidis/optsentry/internal/domain"
)

// Rule is a declared allocation target for one (axis, category) pair.
// Percentages are expressed as 0-100.
type Rule struct {
	ID           int64       `json:"id"`
	Axis         domain.Axis `json:"axis"`
	Category     string      `json:"category"`
	TargetPct    float64     `json:"target_pct"`
	MinPct       float64     `json:"min_pct"`
	MaxPct       float64     `json:"max_pct"`
	TolerancePct float64     `json:"tolerance_pct"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Validate checks rule fields before persistence
func (r *Rule) Validate() error {
	if !domain.ValidAxis(string(r.Axis)) {
		return fmt.Errorf("unknown axis %q", r.Axis)
	}
	if r.Category == "" {
		return fmt.Errorf("category is required")
	}
	if r.TargetPct < 0 || r.TargetPct > 100 {
		return fmt.Errorf("target_pct %.2f outside [0,100]", r.TargetPct)
	}
	if r.MinPct > r.TargetPct {
		return fmt.Errorf("min_pct %.2f above target_pct %.2f", r.MinPct, r.TargetPct)
	}
	if r.MaxPct < r.TargetPct {
		return fmt.Errorf("max_pct %.2f below target_pct %.2f", r.MaxPct, r.TargetPct)
	}
	if r.TolerancePct < 0 {
		return fmt.Errorf("tolerance_pct must not be negative")
	}
	return nil
}

// ComplianceStatus is the tri-state outcome of a rule evaluation
type ComplianceStatus string

const (
	StatusCompliant ComplianceStatus = "compliant"
	StatusWarning   ComplianceStatus = "warning"
	StatusViolation ComplianceStatus = "violation"
)

// ComplianceCheck pairs a rule with the observed allocation percentage
type ComplianceCheck struct {
	Rule       Rule             `json:"rule"`
	CurrentPct float64          `json:"current_pct"`
	Deviation  float64          `json:"deviation"` // current - target, signed
	Status     ComplianceStatus `json:"status"`
}

// Gap is a prioritized allocation shortfall or excess derived from a
// non-compliant check. Priority 1 is most urgent.
type Gap struct {
	Axis            domain.Axis `json:"axis"`
	Category        string      `json:"category"`
	CurrentPct      float64     `json:"current_pct"`
	TargetPct       float64     `json:"target_pct"`
	GapPct          float64     `json:"gap_pct"` // target - current, signed
	RequiredDollars float64     `json:"required_dollars"`
	Priority        int         `json:"priority"`
}

// DefaultRules is the rule set seeded once into an empty store
func DefaultRules() []Rule {
	return []Rule{
		{Axis: domain.AxisAssetClass, Category: "equity", TargetPct: 30, MinPct: 20, MaxPct: 40, TolerancePct: 5},
		{Axis: domain.AxisAssetClass, Category: "options", TargetPct: 50, MinPct: 40, MaxPct: 60, TolerancePct: 5},
		{Axis: domain.AxisAssetClass, Category: "cash", TargetPct: 20, MinPct: 10, MaxPct: 30, TolerancePct: 5},
		{Axis: domain.AxisDuration, Category: "short_term", TargetPct: 40, MinPct: 30, MaxPct: 50, TolerancePct: 5},
		{Axis: domain.AxisDuration, Category: "medium_term", TargetPct: 40, MinPct: 30, MaxPct: 50, TolerancePct: 5},
		{Axis: domain.AxisDuration, Category: "long_term", TargetPct: 20, MinPct: 10, MaxPct: 30, TolerancePct: 5},
		{Axis: domain.AxisStrategy, Category: "bullish", TargetPct: 40, MinPct: 25, MaxPct: 50, TolerancePct: 5},
		{Axis: domain.AxisStrategy, Category: "bearish", TargetPct: 20, MinPct: 10, MaxPct: 30, TolerancePct: 5},
		{Axis: domain.AxisStrategy, Category: "neutral", TargetPct: 40, MinPct: 25, MaxPct: 55, TolerancePct: 5},
	}
}
