package allocation

import (
	"math"
	"sort"
)

// CurrentAllocations maps axis -> category -> observed percentage (0-100)
type CurrentAllocations map[string]map[string]float64

// Get returns the observed percentage for a rule's axis/category, zero when
// the category was not observed at all.
func (c CurrentAllocations) Get(axis, category string) float64 {
	if byCategory, ok := c[axis]; ok {
		return byCategory[category]
	}
	return 0
}

// Evaluate classifies every rule against the observed allocations.
//
// Per rule with current c, target t, bounds [lo, hi] and tolerance tol:
// outside [lo, hi] is a violation; otherwise |c-t| > tol is a warning;
// otherwise compliant. When the evaluable portfolio value is zero there is
// nothing to violate and every rule is trivially compliant.
func Evaluate(rules []Rule, current CurrentAllocations, totalValue float64) []ComplianceCheck {
	checks := make([]ComplianceCheck, 0, len(rules))

	for _, rule := range rules {
		currentPct := current.Get(string(rule.Axis), rule.Category)
		check := ComplianceCheck{
			Rule:       rule,
			CurrentPct: currentPct,
			Deviation:  currentPct - rule.TargetPct,
		}

		switch {
		case totalValue == 0:
			check.Status = StatusCompliant
		case currentPct < rule.MinPct || currentPct > rule.MaxPct:
			check.Status = StatusViolation
		case math.Abs(currentPct-rule.TargetPct) > rule.TolerancePct:
			check.Status = StatusWarning
		default:
			check.Status = StatusCompliant
		}

		checks = append(checks, check)
	}

	return checks
}

// gapNoiseFloorPct discards sub-half-point gaps as rounding noise
const gapNoiseFloorPct = 0.5

// DeriveGaps converts warning and violation checks into prioritized gaps.
//
// For underallocation the dollar requirement is capped at available capital.
// For overallocation it is the uncapped excess to remove - the closing path
// works from its own compliance pass, so the excess is reported as-is.
func DeriveGaps(checks []ComplianceCheck, totalValue, availableCapital float64) []Gap {
	var gaps []Gap

	for _, check := range checks {
		if check.Status == StatusCompliant {
			continue
		}

		gapPct := check.Rule.TargetPct - check.CurrentPct
		if math.Abs(gapPct) <= gapNoiseFloorPct {
			continue
		}

		var dollars float64
		if gapPct > 0 {
			dollars = gapPct / 100 * totalValue
			if dollars > availableCapital {
				dollars = availableCapital
			}
		} else {
			dollars = math.Abs(gapPct) / 100 * totalValue
		}

		gaps = append(gaps, Gap{
			Axis:            check.Rule.Axis,
			Category:        check.Rule.Category,
			CurrentPct:      check.CurrentPct,
			TargetPct:       check.Rule.TargetPct,
			GapPct:          gapPct,
			RequiredDollars: dollars,
			Priority:        gapPriority(check.Status, gapPct),
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Priority < gaps[j].Priority
	})

	return gaps
}

// gapPriority ranks a gap: violations always outrank magnitude-based tiers
func gapPriority(status ComplianceStatus, gapPct float64) int {
	if status == StatusViolation {
		return 1
	}
	abs := math.Abs(gapPct)
	switch {
	case abs > 5:
		return 2
	case abs > 3:
		return 3
	default:
		return 4
	}
}
