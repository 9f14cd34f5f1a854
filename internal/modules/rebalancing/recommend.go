package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
	"github.com/avramidis/optsentry/internal/modules/allocation"
)

// generator runs the recommendation sub-pipeline. Each stage returns a
// StageResult so a degraded stage is visible in the event rather than
// silently swallowed.
type generator struct {
	cfg Config
	log zerolog.Logger
}

func newGenerator(cfg Config, logger zerolog.Logger) *generator {
	return &generator{
		cfg: cfg,
		log: logger.With().Str("component", "recommend").Logger(),
	}
}

// stageFaults carries upstream failures the pass survived, so the affected
// stage result records the cause instead of presenting an unexplained
// empty list
type stageFaults struct {
	UniverseErr error
	RankingsErr error
}

// Generate runs all stages in order and returns the per-stage results
// plus the final filtered recommendation set. sectorRank maps sector name
// to its momentum rank (1 = strongest) and steers asset-class openings.
func (g *generator) Generate(
	snapshot *domain.Snapshot,
	checks []allocation.ComplianceCheck,
	gaps []allocation.Gap,
	candidates []domain.Candidate,
	sectorRank map[string]int,
	faults stageFaults,
	now nowFunc,
) ([]StageResult, []TradeRecommendation) {
	opening := g.openingStage(gaps, candidates, sectorRank)
	switch {
	case faults.UniverseErr != nil:
		opening.Degraded = true
		opening.Cause = fmt.Sprintf("universe fetch failed: %v", faults.UniverseErr)
	case faults.RankingsErr != nil:
		opening.Degraded = true
		opening.Cause = fmt.Sprintf("sector ranking refresh failed, using stale rankings: %v", faults.RankingsErr)
	}

	stages := []StageResult{
		g.closingStage(snapshot, checks),
		opening,
		g.rollingStage(snapshot, now),
		g.adjustmentStage(snapshot),
	}

	var all []TradeRecommendation
	for _, st := range stages {
		all = append(all, st.Recommendations...)
	}

	final := g.filterAndPrioritize(all, snapshot.BuyingPower)
	stages = append(stages, StageResult{Stage: "filter", Recommendations: final})
	return stages, final
}

// closingStage emits critical close recommendations for every check whose
// current percentage exceeds the rule max by more than tolerance. Zero
// limit price means market-on-close.
func (g *generator) closingStage(snapshot *domain.Snapshot, checks []allocation.ComplianceCheck) StageResult {
	var recs []TradeRecommendation
	for _, check := range checks {
		if check.CurrentPct <= check.Rule.MaxPct+check.Rule.TolerancePct {
			continue
		}
		excessPct := check.CurrentPct - check.Rule.MaxPct
		excessDollars := excessPct / 100 * snapshot.TotalValue
		for _, leg := range legsForCategory(snapshot.Legs, check.Rule) {
			recs = append(recs, TradeRecommendation{
				ID:              uuid.New().String(),
				Type:            RecommendationClose,
				Priority:        PriorityCritical,
				Symbol:          leg.Symbol,
				Underlying:      leg.Underlying,
				Strategy:        check.Rule.Category,
				Action:          "sell_to_close",
				LimitPrice:      0,
				Quantity:        int(math.Abs(float64(leg.Quantity))),
				CapitalRequired: 0,
				ExpectedReturn:  0,
				ExpectedRisk:    0,
				Confidence:      1,
				Rationale: fmt.Sprintf("%s/%s at %.1f%% exceeds max %.1f%% by %.1f points, trim %s",
					check.Rule.Axis, check.Rule.Category, check.CurrentPct, check.Rule.MaxPct, excessPct, formatDollars(excessDollars)),
			})
			// one close per over-allocated category
			break
		}
	}
	g.log.Debug().Int("count", len(recs)).Msg("closing stage complete")
	return StageResult{Stage: "closing", Recommendations: recs}
}

// legsForCategory picks candidate legs to trim for an over-allocated rule,
// largest notional first. The selection policy is intentionally simple.
func legsForCategory(legs []domain.Leg, rule allocation.Rule) []domain.Leg {
	var out []domain.Leg
	for _, leg := range legs {
		if !leg.IsLong() {
			continue
		}
		switch rule.Axis {
		case domain.AxisAssetClass:
			if rule.Category == "equity" && leg.Class == domain.InstrumentEquity {
				out = append(out, leg)
			}
			if rule.Category == "options" && leg.Class == domain.InstrumentOption {
				out = append(out, leg)
			}
		default:
			out = append(out, leg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Notional) > math.Abs(out[j].Notional)
	})
	return out
}

// openingStage converts positive gaps into open recommendations drawn from
// the ranked universe. Overallocated gaps are logged and skipped here, the
// closing stage owns trimming.
func (g *generator) openingStage(gaps []allocation.Gap, candidates []domain.Candidate, sectorRank map[string]int) StageResult {
	var recs []TradeRecommendation
	for _, gap := range gaps {
		if gap.GapPct <= 0 {
			g.log.Debug().
				Str("axis", string(gap.Axis)).
				Str("category", gap.Category).
				Float64("excess_dollars", gap.RequiredDollars).
				Msg("overallocated gap, deferring to closing stage")
			continue
		}
		if gap.RequiredDollars < g.cfg.MinPositionSize {
			continue
		}

		idealSize := math.Min(g.cfg.MaxSingleTrade, gap.RequiredDollars/2)
		count := int(gap.RequiredDollars / idealSize)
		if count < 1 {
			count = 1
		}
		if count > g.cfg.MaxPerGap {
			count = g.cfg.MaxPerGap
		}

		selected := g.selectCandidates(gap, candidates, count, sectorRank)
		for _, cand := range selected {
			entry := cand.LastPrice * g.cfg.SlippageFactor
			if entry <= 0 {
				continue
			}
			qty := int(gap.RequiredDollars / 3 / entry)
			if qty < 1 {
				qty = 1
			}
			capital := float64(qty) * entry
			recs = append(recs, TradeRecommendation{
				ID:              uuid.New().String(),
				Type:            RecommendationOpen,
				Priority:        openPriority(gap),
				Symbol:          cand.Symbol,
				Underlying:      cand.Symbol,
				Strategy:        gap.Category,
				Action:          "buy_to_open",
				LimitPrice:      entry,
				Quantity:        qty,
				CapitalRequired: capital,
				ExpectedReturn:  capital * cand.Score / 10,
				ExpectedRisk:    capital,
				Confidence:      cand.Score,
				Rationale: fmt.Sprintf("%s/%s underallocated by %.1f points, needs %s",
					gap.Axis, gap.Category, gap.GapPct, formatDollars(gap.RequiredDollars)),
			})
		}
	}
	g.log.Debug().Int("count", len(recs)).Msg("opening stage complete")
	return StageResult{Stage: "opening", Recommendations: recs}
}

// openPriority maps a gap's priority tier onto the recommendation tiers
func openPriority(gap allocation.Gap) int {
	if gap.Priority < PriorityCritical || gap.Priority > PriorityLow {
		return PriorityLow
	}
	return gap.Priority
}

// candidateSelector filters and orders universe candidates for one axis
type candidateSelector func(gap allocation.Gap, candidates []domain.Candidate) []domain.Candidate

// axisSelectors is the closed dispatch table routing gaps to their
// axis-specific selection policy.
var axisSelectors = map[domain.Axis]candidateSelector{
	domain.AxisAssetClass: selectByAssetClass,
	domain.AxisDuration:   selectByIVRank,
	domain.AxisStrategy:   selectByStrategyBias,
}

func (g *generator) selectCandidates(gap allocation.Gap, candidates []domain.Candidate, count int, sectorRank map[string]int) []domain.Candidate {
	selector, ok := axisSelectors[gap.Axis]
	if !ok {
		g.log.Warn().Str("axis", string(gap.Axis)).Msg("no selector for axis")
		return nil
	}
	out := selector(gap, candidates)

	// Asset-class openings follow sector momentum when rankings exist,
	// other axes rank purely by screening score.
	if gap.Axis == domain.AxisAssetClass && len(sectorRank) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := rankOf(sectorRank, out[i].Sector), rankOf(sectorRank, out[j].Sector)
			if ri != rj {
				return ri < rj
			}
			return out[i].Score > out[j].Score
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	}

	if len(out) > count {
		out = out[:count]
	}
	return out
}

func rankOf(sectorRank map[string]int, sector string) int {
	if rank, ok := sectorRank[sector]; ok {
		return rank
	}
	return len(sectorRank) + 1
}

// selectByAssetClass keeps addable candidates with a known sector, the
// plain equity filter for asset-class gaps.
func selectByAssetClass(_ allocation.Gap, candidates []domain.Candidate) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range candidates {
		if c.CanAdd && c.Sector != "" && c.LastPrice > 0 {
			out = append(out, c)
		}
	}
	return out
}

// selectByIVRank keeps addable candidates whose IV rank suits the duration
// bucket: elevated IV favors shorter premium-selling horizons, low IV
// favors longer holds.
func selectByIVRank(gap allocation.Gap, candidates []domain.Candidate) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range candidates {
		if !c.CanAdd || c.LastPrice <= 0 {
			continue
		}
		switch gap.Category {
		case "short_term", "medium_term":
			if c.IVRank >= 30 {
				out = append(out, c)
			}
		default:
			if c.IVRank < 50 {
				out = append(out, c)
			}
		}
	}
	return out
}

// selectByStrategyBias keeps addable candidates whose IV rank supports the
// requested directional bias. Neutral gaps want elevated IV for premium
// selling, directional gaps accept any.
func selectByStrategyBias(gap allocation.Gap, candidates []domain.Candidate) []domain.Candidate {
	var out []domain.Candidate
	for _, c := range candidates {
		if !c.CanAdd || c.LastPrice <= 0 {
			continue
		}
		if gap.Category == "neutral" && c.IVRank < 40 {
			continue
		}
		out = append(out, c)
	}
	return out
}

// rollingStage flags expiring options with positive market value for a roll
func (g *generator) rollingStage(snapshot *domain.Snapshot, now nowFunc) StageResult {
	var recs []TradeRecommendation
	current := now()
	for _, leg := range snapshot.Legs {
		if !leg.IsOption() || leg.Notional <= 0 {
			continue
		}
		dte := leg.DTE(current)
		if dte > g.cfg.RollDTEThreshold {
			continue
		}
		recs = append(recs, TradeRecommendation{
			ID:              uuid.New().String(),
			Type:            RecommendationRoll,
			Priority:        PriorityMedium,
			Symbol:          leg.Symbol,
			Underlying:      leg.Underlying,
			Strategy:        "roll",
			Action:          "roll_out",
			Quantity:        int(math.Abs(float64(leg.Quantity))),
			TargetDTE:       g.cfg.RollTargetDTE,
			CapitalRequired: 0,
			Confidence:      1,
			Rationale:       fmt.Sprintf("%s expires in %d days, roll to %d DTE", leg.Symbol, dte, g.cfg.RollTargetDTE),
		})
	}
	g.log.Debug().Int("count", len(recs)).Msg("rolling stage complete")
	return StageResult{Stage: "rolling", Recommendations: recs}
}

// adjustmentStage flags large unrealized winners for profit taking
func (g *generator) adjustmentStage(snapshot *domain.Snapshot) StageResult {
	var recs []TradeRecommendation
	for _, leg := range snapshot.Legs {
		value := math.Abs(leg.Notional)
		if value == 0 {
			continue
		}
		gain := leg.UnrealizedGain()
		if gain <= g.cfg.ProfitTakePct*value {
			continue
		}
		recs = append(recs, TradeRecommendation{
			ID:             uuid.New().String(),
			Type:           RecommendationAdjust,
			Priority:       PriorityLow,
			Symbol:         leg.Symbol,
			Underlying:     leg.Underlying,
			Strategy:       "profit_take",
			Action:         "sell_to_close",
			Quantity:       int(math.Abs(float64(leg.Quantity))),
			ExpectedReturn: gain,
			Confidence:     1,
			Rationale:      fmt.Sprintf("%s up %s, take profits", leg.Symbol, formatDollars(gain)),
		})
	}
	g.log.Debug().Int("count", len(recs)).Msg("adjustment stage complete")
	return StageResult{Stage: "adjustment", Recommendations: recs}
}

// filterAndPrioritize drops low-confidence recommendations, orders the rest
// by priority then confidence, and greedily accepts while the running
// capital total stays within the allocation budget. First fit, not
// globally optimal.
func (g *generator) filterAndPrioritize(recs []TradeRecommendation, buyingPower float64) []TradeRecommendation {
	var kept []TradeRecommendation
	for _, rec := range recs {
		if rec.Confidence < g.cfg.MinConfidence {
			g.log.Debug().Str("symbol", rec.Symbol).Float64("confidence", rec.Confidence).Msg("dropped below confidence threshold")
			continue
		}
		kept = append(kept, rec)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Priority != kept[j].Priority {
			return kept[i].Priority < kept[j].Priority
		}
		return kept[i].Confidence > kept[j].Confidence
	})

	budget := buyingPower * g.cfg.MaxAllocationPct / 100
	var accepted []TradeRecommendation
	var committed float64
	for _, rec := range kept {
		if committed+rec.CapitalRequired > budget {
			g.log.Debug().Str("symbol", rec.Symbol).Float64("capital", rec.CapitalRequired).Msg("skipped, over capital budget")
			continue
		}
		committed += rec.CapitalRequired
		accepted = append(accepted, rec)
	}
	return accepted
}

func formatDollars(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
