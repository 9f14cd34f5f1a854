package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/optsentry/internal/domain"
)

func equityRule() Rule {
	return Rule{
		Axis:         domain.AxisAssetClass,
		Category:     "equity",
		TargetPct:    60,
		MinPct:       55,
		MaxPct:       65,
		TolerancePct: 2,
	}
}

func allocations(axis domain.Axis, category string, pct float64) CurrentAllocations {
	return CurrentAllocations{string(axis): {category: pct}}
}

func TestEvaluate_TriState(t *testing.T) {
	tests := []struct {
		name       string
		currentPct float64
		want       ComplianceStatus
	}{
		{"inside tolerance", 58, StatusCompliant},
		{"inside bounds but past tolerance", 63, StatusWarning},
		{"above max", 67, StatusViolation},
		{"below min", 52, StatusViolation},
		{"exactly at target", 60, StatusCompliant},
		{"exactly at max", 65, StatusWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := Evaluate(
				[]Rule{equityRule()},
				allocations(domain.AxisAssetClass, "equity", tt.currentPct),
				100000,
			)
			require.Len(t, checks, 1)
			assert.Equal(t, tt.want, checks[0].Status)
			assert.InDelta(t, tt.currentPct-60, checks[0].Deviation, 0.0001)
		})
	}
}

func TestEvaluate_ZeroPortfolioValueIsTriviallyCompliant(t *testing.T) {
	checks := Evaluate(
		[]Rule{equityRule()},
		allocations(domain.AxisAssetClass, "equity", 99),
		0,
	)
	require.Len(t, checks, 1)
	assert.Equal(t, StatusCompliant, checks[0].Status)
}

func TestEvaluate_UnobservedCategoryReadsZero(t *testing.T) {
	checks := Evaluate([]Rule{equityRule()}, CurrentAllocations{}, 100000)
	require.Len(t, checks, 1)
	assert.Equal(t, StatusViolation, checks[0].Status)
	assert.InDelta(t, 0.0, checks[0].CurrentPct, 0.0001)
}

func TestDeriveGaps_ViolationOutranksMagnitude(t *testing.T) {
	rule := equityRule()
	// +6pp gap on a violation: must be priority 1, not the magnitude tier 2.
	checks := []ComplianceCheck{
		{Rule: rule, CurrentPct: 54, Deviation: -6, Status: StatusViolation},
	}

	gaps := DeriveGaps(checks, 100000, 50000)
	require.Len(t, gaps, 1)
	assert.Equal(t, 1, gaps[0].Priority)
	assert.InDelta(t, 6.0, gaps[0].GapPct, 0.0001)
}

func TestDeriveGaps_MagnitudeTiers(t *testing.T) {
	rule := equityRule()
	tests := []struct {
		name       string
		currentPct float64
		want       int
	}{
		{"gap over 5pp", 54.5, 2},
		{"gap over 3pp", 56, 3},
		{"small gap", 58, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := []ComplianceCheck{
				{Rule: rule, CurrentPct: tt.currentPct, Deviation: tt.currentPct - 60, Status: StatusWarning},
			}
			gaps := DeriveGaps(checks, 100000, 1e9)
			require.Len(t, gaps, 1)
			assert.Equal(t, tt.want, gaps[0].Priority)
		})
	}
}

func TestDeriveGaps_NoiseFloor(t *testing.T) {
	rule := equityRule()
	checks := []ComplianceCheck{
		{Rule: rule, CurrentPct: 59.6, Deviation: -0.4, Status: StatusWarning},
	}
	gaps := DeriveGaps(checks, 100000, 50000)
	assert.Empty(t, gaps)
}

func TestDeriveGaps_CompliantChecksProduceNothing(t *testing.T) {
	checks := []ComplianceCheck{
		{Rule: equityRule(), CurrentPct: 40, Deviation: -20, Status: StatusCompliant},
	}
	assert.Empty(t, DeriveGaps(checks, 100000, 50000))
}

func TestDeriveGaps_DollarCapAsymmetry(t *testing.T) {
	rule := equityRule()

	t.Run("underallocation capped at available capital", func(t *testing.T) {
		checks := []ComplianceCheck{
			{Rule: rule, CurrentPct: 50, Deviation: -10, Status: StatusViolation},
		}
		// 10% of 100k = 10k required, but only 4k available.
		gaps := DeriveGaps(checks, 100000, 4000)
		require.Len(t, gaps, 1)
		assert.InDelta(t, 4000.0, gaps[0].RequiredDollars, 0.0001)
	})

	t.Run("overallocation uncapped", func(t *testing.T) {
		checks := []ComplianceCheck{
			{Rule: rule, CurrentPct: 70, Deviation: 10, Status: StatusViolation},
		}
		gaps := DeriveGaps(checks, 100000, 4000)
		require.Len(t, gaps, 1)
		assert.InDelta(t, 10000.0, gaps[0].RequiredDollars, 0.0001)
		assert.InDelta(t, -10.0, gaps[0].GapPct, 0.0001)
	})
}

func TestDeriveGaps_SortedByPriority(t *testing.T) {
	rule := equityRule()
	bearish := Rule{Axis: domain.AxisStrategy, Category: "bearish", TargetPct: 20, MinPct: 10, MaxPct: 30, TolerancePct: 2}

	checks := []ComplianceCheck{
		{Rule: bearish, CurrentPct: 16, Deviation: -4, Status: StatusWarning},     // priority 3
		{Rule: rule, CurrentPct: 50, Deviation: -10, Status: StatusViolation},     // priority 1
		{Rule: bearish, CurrentPct: 18.5, Deviation: -1.5, Status: StatusWarning}, // priority 4
	}

	gaps := DeriveGaps(checks, 100000, 1e9)
	require.Len(t, gaps, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{gaps[0].Priority, gaps[1].Priority, gaps[2].Priority})
}
