package rebalancing

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/optsentry/internal/domain"
	"github.com/avramidis/optsentry/internal/modules/allocation"
)

var rebalNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return rebalNow }

func testGenerator() *generator {
	return newGenerator(DefaultConfig(), zerolog.Nop())
}

func TestClosingStage_OverMaxPlusToleranceEmitsCriticalClose(t *testing.T) {
	gen := testGenerator()
	snapshot := &domain.Snapshot{
		TotalValue: 100000,
		Legs: []domain.Leg{
			{ID: "U100:SPY", Symbol: "SPY", Underlying: "SPY", Class: domain.InstrumentEquity, Quantity: 100, Notional: 45000},
			{ID: "U100:QQQ", Symbol: "QQQ", Underlying: "QQQ", Class: domain.InstrumentEquity, Quantity: 50, Notional: 25000},
		},
	}
	checks := []allocation.ComplianceCheck{
		{
			Rule:       allocation.Rule{Axis: domain.AxisAssetClass, Category: "equity", TargetPct: 30, MinPct: 20, MaxPct: 40, TolerancePct: 5},
			CurrentPct: 70,
			Status:     allocation.StatusViolation,
		},
	}

	result := gen.closingStage(snapshot, checks)
	require.Len(t, result.Recommendations, 1)

	rec := result.Recommendations[0]
	assert.Equal(t, RecommendationClose, rec.Type)
	assert.Equal(t, PriorityCritical, rec.Priority)
	assert.Equal(t, "SPY", rec.Symbol, "largest notional trimmed first")
	assert.Zero(t, rec.LimitPrice, "close at market")
}

func TestClosingStage_WithinToleranceEmitsNothing(t *testing.T) {
	gen := testGenerator()
	snapshot := &domain.Snapshot{
		TotalValue: 100000,
		Legs:       []domain.Leg{{ID: "U100:SPY", Symbol: "SPY", Class: domain.InstrumentEquity, Quantity: 100, Notional: 44000}},
	}
	checks := []allocation.ComplianceCheck{
		{
			Rule:       allocation.Rule{Axis: domain.AxisAssetClass, Category: "equity", TargetPct: 30, MaxPct: 40, TolerancePct: 5},
			CurrentPct: 44,
			Status:     allocation.StatusWarning,
		},
	}

	result := gen.closingStage(snapshot, checks)
	assert.Empty(t, result.Recommendations)
}

func TestOpeningStage_SizesFromGapDollars(t *testing.T) {
	gen := testGenerator()
	gaps := []allocation.Gap{
		{Axis: domain.AxisAssetClass, Category: "equity", GapPct: 10, RequiredDollars: 10000, Priority: 2},
	}
	candidates := []domain.Candidate{
		{Symbol: "MSFT", LastPrice: 100, CanAdd: true, Sector: "Technology", Score: 0.9},
		{Symbol: "JNJ", LastPrice: 50, CanAdd: true, Sector: "Healthcare", Score: 0.8},
		{Symbol: "NOPE", LastPrice: 10, CanAdd: false, Sector: "Energy", Score: 0.99},
	}

	result := gen.openingStage(gaps, candidates, nil)
	// idealSize = min(5000, 5000), count = 10000/5000 = 2
	require.Len(t, result.Recommendations, 2)

	first := result.Recommendations[0]
	assert.Equal(t, "MSFT", first.Symbol, "highest score first")
	assert.InDelta(t, 102.0, first.LimitPrice, 0.0001, "last price padded for slippage")
	// qty = 10000/3/102 = 32
	assert.Equal(t, 32, first.Quantity)
	assert.InDelta(t, 0.9, first.Confidence, 0.0001)

	for _, rec := range result.Recommendations {
		assert.NotEqual(t, "NOPE", rec.Symbol, "can_add=false excluded")
	}
}

func TestOpeningStage_SkipsSmallAndNegativeGaps(t *testing.T) {
	gen := testGenerator()
	gaps := []allocation.Gap{
		{Axis: domain.AxisAssetClass, Category: "equity", GapPct: -8, RequiredDollars: 8000, Priority: 1},
		{Axis: domain.AxisAssetClass, Category: "options", GapPct: 0.8, RequiredDollars: 400, Priority: 4},
	}
	candidates := []domain.Candidate{
		{Symbol: "MSFT", LastPrice: 100, CanAdd: true, Sector: "Technology", Score: 0.9},
	}

	result := gen.openingStage(gaps, candidates, nil)
	assert.Empty(t, result.Recommendations, "overallocated and sub-minimum gaps never open")
}

func TestOpeningStage_SectorRankingsSteersAssetClassGaps(t *testing.T) {
	gen := testGenerator()
	gaps := []allocation.Gap{
		{Axis: domain.AxisAssetClass, Category: "equity", GapPct: 6, RequiredDollars: 5000, Priority: 2},
	}
	candidates := []domain.Candidate{
		{Symbol: "HOT_SCORE", LastPrice: 100, CanAdd: true, Sector: "Utilities", Score: 0.95},
		{Symbol: "HOT_SECTOR", LastPrice: 100, CanAdd: true, Sector: "Technology", Score: 0.6},
	}
	sectorRank := map[string]int{"Technology": 1, "Utilities": 4}

	// idealSize = min(5000, 2500) = 2500, count = 5000/2500 = 2
	result := gen.openingStage(gaps, candidates, sectorRank)
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "HOT_SECTOR", result.Recommendations[0].Symbol, "sector momentum outranks raw score")
	assert.Equal(t, "HOT_SCORE", result.Recommendations[1].Symbol)
}

func TestOpeningStage_DurationAxisFiltersByIVRank(t *testing.T) {
	gen := testGenerator()
	gaps := []allocation.Gap{
		{Axis: domain.AxisDuration, Category: "short_term", GapPct: 10, RequiredDollars: 10000, Priority: 2},
	}
	candidates := []domain.Candidate{
		{Symbol: "HIGH_IV", LastPrice: 100, IVRank: 65, CanAdd: true, Score: 0.7},
		{Symbol: "LOW_IV", LastPrice: 100, IVRank: 12, CanAdd: true, Score: 0.9},
	}

	result := gen.openingStage(gaps, candidates, nil)
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "HIGH_IV", result.Recommendations[0].Symbol)
}

func TestOpeningStage_StrategyAxisNeutralWantsElevatedIV(t *testing.T) {
	gen := testGenerator()
	gaps := []allocation.Gap{
		{Axis: domain.AxisStrategy, Category: "neutral", GapPct: 6, RequiredDollars: 6000, Priority: 2},
		{Axis: domain.AxisStrategy, Category: "bullish", GapPct: 6, RequiredDollars: 6000, Priority: 2},
	}
	candidates := []domain.Candidate{
		{Symbol: "CALM", LastPrice: 100, IVRank: 15, CanAdd: true, Score: 0.8},
	}

	result := gen.openingStage(gaps, candidates, nil)
	require.Len(t, result.Recommendations, 1, "low-IV candidate qualifies for the directional gap only")
	assert.Equal(t, "bullish", result.Recommendations[0].Strategy)
}

func TestRollingStage_FlagsExpiringOptionsWithValue(t *testing.T) {
	gen := testGenerator()
	snapshot := &domain.Snapshot{
		Legs: []domain.Leg{
			{ID: "U100:NEAR", Symbol: "AAPL  241105C00230000", Underlying: "AAPL", Class: domain.InstrumentOption,
				Quantity: 2, Notional: 300, Expiration: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)},
			{ID: "U100:FAR", Symbol: "AAPL  241220C00230000", Underlying: "AAPL", Class: domain.InstrumentOption,
				Quantity: 1, Notional: 500, Expiration: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)},
			{ID: "U100:DEAD", Symbol: "AAPL  241105P00230000", Underlying: "AAPL", Class: domain.InstrumentOption,
				Quantity: 1, Notional: 0, Expiration: time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)},
		},
	}

	result := gen.rollingStage(snapshot, fixedNow)
	require.Len(t, result.Recommendations, 1)

	rec := result.Recommendations[0]
	assert.Equal(t, RecommendationRoll, rec.Type)
	assert.Equal(t, PriorityMedium, rec.Priority)
	assert.Equal(t, 30, rec.TargetDTE)
	assert.Equal(t, 2, rec.Quantity)
}

func TestAdjustmentStage_FlagsLargeWinners(t *testing.T) {
	gen := testGenerator()
	snapshot := &domain.Snapshot{
		Legs: []domain.Leg{
			{ID: "U100:WIN", Symbol: "NVDA", Underlying: "NVDA", Class: domain.InstrumentEquity, Quantity: 10, Notional: 4000, CostBasis: 1000},
			{ID: "U100:FLAT", Symbol: "KO", Underlying: "KO", Class: domain.InstrumentEquity, Quantity: 10, Notional: 1000, CostBasis: 900},
		},
	}

	result := gen.adjustmentStage(snapshot)
	require.Len(t, result.Recommendations, 1)

	rec := result.Recommendations[0]
	assert.Equal(t, RecommendationAdjust, rec.Type)
	assert.Equal(t, PriorityLow, rec.Priority)
	assert.Equal(t, "NVDA", rec.Symbol)
	assert.InDelta(t, 3000.0, rec.ExpectedReturn, 0.0001)
}

func TestFilterAndPrioritize_DropsLowConfidenceAndOrders(t *testing.T) {
	gen := testGenerator()
	recs := []TradeRecommendation{
		{ID: "a", Priority: PriorityLow, Confidence: 0.9, CapitalRequired: 100},
		{ID: "b", Priority: PriorityCritical, Confidence: 0.5, CapitalRequired: 100},
		{ID: "c", Priority: PriorityCritical, Confidence: 0.8, CapitalRequired: 100},
		{ID: "d", Priority: PriorityHigh, Confidence: 0.1, CapitalRequired: 100},
	}

	final := gen.filterAndPrioritize(recs, 10000)
	require.Len(t, final, 3, "sub-threshold confidence dropped")
	assert.Equal(t, "c", final[0].ID, "critical tier, higher confidence first")
	assert.Equal(t, "b", final[1].ID)
	assert.Equal(t, "a", final[2].ID)
}

func TestFilterAndPrioritize_NeverExceedsCapitalBudget(t *testing.T) {
	gen := testGenerator()
	recs := []TradeRecommendation{
		{ID: "a", Priority: PriorityCritical, Confidence: 1, CapitalRequired: 3000},
		{ID: "b", Priority: PriorityHigh, Confidence: 1, CapitalRequired: 1500},
		{ID: "c", Priority: PriorityMedium, Confidence: 1, CapitalRequired: 800},
		{ID: "d", Priority: PriorityLow, Confidence: 1, CapitalRequired: 400},
	}
	buyingPower := 10000.0
	budget := buyingPower * gen.cfg.MaxAllocationPct / 100 // 5000

	final := gen.filterAndPrioritize(recs, buyingPower)

	var committed float64
	for _, rec := range final {
		committed += rec.CapitalRequired
	}
	assert.LessOrEqual(t, committed, budget)
	// a (3000) + b (1500) fit, c (800) would overflow, d (400) still fits
	require.Len(t, final, 3)
	assert.Equal(t, "a", final[0].ID)
	assert.Equal(t, "b", final[1].ID)
	assert.Equal(t, "d", final[2].ID)
}

func TestSummarize_CountsAndTotals(t *testing.T) {
	recs := []TradeRecommendation{
		{Type: RecommendationOpen, CapitalRequired: 2000, ExpectedReturn: 150},
		{Type: RecommendationOpen, CapitalRequired: 1000, ExpectedReturn: 90},
		{Type: RecommendationClose, ExpectedReturn: 0},
		{Type: RecommendationAdjust, ExpectedReturn: 500},
	}

	s := summarize(recs)
	assert.InDelta(t, 3000.0, s.TotalCapitalRequired, 0.0001)
	assert.InDelta(t, 740.0, s.ExpectedReturn, 0.0001)
	assert.Equal(t, 2, s.OpeningCount)
	assert.Equal(t, 2, s.ClosingCount)
}
