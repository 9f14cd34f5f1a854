package chains

import (
	"math"
	"time"

	"github.com/avramidis/optsentry/internal/domain"
)

// contractMultiplier is the share count of one standard option contract
const contractMultiplier = 100.0

// matchVerticals pairs unclaimed legs sharing expiration and right. A pair
// qualifies if the quantities are exact opposites, or if the magnitudes match
// with opposite signs and the cost-effect tags are complementary.
func (d *Detector) matchVerticals(underlying string, window []*domain.Leg, claimed map[string]bool, now time.Time) []Chain {
	var chains []Chain

	for i := 0; i < len(window); i++ {
		a := window[i]
		if claimed[a.ID] {
			continue
		}
		for j := i + 1; j < len(window); j++ {
			b := window[j]
			if claimed[b.ID] {
				continue
			}
			if a.Right != b.Right || !a.Expiration.Equal(b.Expiration) {
				continue
			}
			if !verticalPairQualifies(a, b) {
				continue
			}

			long, short := a, b
			if b.Quantity > 0 {
				long, short = b, a
			}

			structure := classifyVertical(long, short)
			legs := []*domain.Leg{long, short}
			chains = append(chains, Chain{
				ID:         chainID(underlying, structure, legs),
				Underlying: underlying,
				Structure:  structure,
				LegIDs:     []string{long.ID, short.ID},
				Metrics:    verticalMetrics(long, short, structure, now),
				DetectedAt: now,
			})
			claimed[a.ID] = true
			claimed[b.ID] = true

			d.log.Debug().
				Str("underlying", underlying).
				Str("structure", string(structure)).
				Float64("long_strike", long.Strike).
				Float64("short_strike", short.Strike).
				Msg("Matched vertical spread")
			break
		}
	}

	return chains
}

func verticalPairQualifies(a, b *domain.Leg) bool {
	if a.Quantity == 0 || b.Quantity == 0 {
		return false
	}
	// Exact opposites: one long, one short, equal magnitude.
	if a.Quantity == -b.Quantity {
		return true
	}
	// Equal magnitude, opposite signs, complementary cost-effect tags.
	if math.Abs(a.Quantity) == math.Abs(b.Quantity) && a.Quantity*b.Quantity < 0 {
		return (a.CostEffect == domain.CostEffectCredit && b.CostEffect == domain.CostEffectDebit) ||
			(a.CostEffect == domain.CostEffectDebit && b.CostEffect == domain.CostEffectCredit)
	}
	return false
}

// classifyVertical applies strike ordering: for calls a lower long strike is
// a debit spread; for puts a higher long strike is a debit spread.
func classifyVertical(long, short *domain.Leg) StructureType {
	if long.Right == domain.RightCall {
		if long.Strike < short.Strike {
			return StructureCallDebitSpread
		}
		return StructureCallCreditSpread
	}
	if long.Strike > short.Strike {
		return StructurePutDebitSpread
	}
	return StructurePutCreditSpread
}

func verticalMetrics(long, short *domain.Leg, structure StructureType, now time.Time) Metrics {
	qty := math.Abs(long.Quantity)
	width := math.Abs(long.Strike - short.Strike)
	netPremium := (long.Mark*long.Quantity + short.Mark*short.Quantity) * contractMultiplier

	m := Metrics{
		SpreadWidth: width,
		NetPremium:  netPremium,
		NetDelta:    long.Delta*long.Quantity + short.Delta*short.Quantity,
		DTE:         long.DTE(now),
	}

	if structure.IsCredit() {
		m.MaxProfit = math.Abs(netPremium)
		m.MaxLoss = width*contractMultiplier*qty - m.MaxProfit
	} else {
		m.MaxLoss = math.Abs(netPremium)
		m.MaxProfit = width*contractMultiplier*qty - m.MaxLoss
	}

	return m
}

// matchCalendars pairs unclaimed legs at the same strike and right across
// different expirations with opposite-signed quantities. No width or credit
// distinction beyond near/far labeling.
func (d *Detector) matchCalendars(underlying string, window []*domain.Leg, claimed map[string]bool, now time.Time) []Chain {
	var chains []Chain

	for i := 0; i < len(window); i++ {
		a := window[i]
		if claimed[a.ID] {
			continue
		}
		for j := i + 1; j < len(window); j++ {
			b := window[j]
			if claimed[b.ID] {
				continue
			}
			if a.Right != b.Right || a.Strike != b.Strike {
				continue
			}
			if a.Expiration.Equal(b.Expiration) {
				continue
			}
			if a.Quantity != -b.Quantity || a.Quantity == 0 {
				continue
			}

			near, far := a, b
			if b.Expiration.Before(a.Expiration) {
				near, far = b, a
			}

			structure := StructureCallCalendar
			if a.Right == domain.RightPut {
				structure = StructurePutCalendar
			}

			netPremium := (a.Mark*a.Quantity + b.Mark*b.Quantity) * contractMultiplier
			m := Metrics{
				NetPremium: netPremium,
				NetDelta:   a.Delta*a.Quantity + b.Delta*b.Quantity,
				DTE:        near.DTE(now),
			}
			if netPremium > 0 {
				m.MaxLoss = netPremium
			} else {
				m.MaxProfit = -netPremium
			}

			legs := []*domain.Leg{near, far}
			chains = append(chains, Chain{
				ID:         chainID(underlying, structure, legs),
				Underlying: underlying,
				Structure:  structure,
				LegIDs:     []string{near.ID, far.ID},
				Metrics:    m,
				DetectedAt: now,
			})
			claimed[a.ID] = true
			claimed[b.ID] = true

			d.log.Debug().
				Str("underlying", underlying).
				Str("structure", string(structure)).
				Float64("strike", a.Strike).
				Msg("Matched calendar spread")
			break
		}
	}

	return chains
}

// assembleCondors pairs a call credit spread with a put credit spread sharing
// the same expiration into one iron condor. The condor consumes all four legs
// and supersedes the two vertical-spread chains. Expirations are compared on
// the legs themselves; the DTE metric truncates and clamps at zero, so spreads
// straddling an expiry boundary can share a DTE without sharing an expiration.
func (d *Detector) assembleCondors(underlying string, verticals []Chain, window []*domain.Leg, now time.Time) []Chain {
	expByLeg := make(map[string]time.Time, len(window))
	for _, leg := range window {
		expByLeg[leg.ID] = leg.Expiration
	}

	usedIdx := make(map[int]bool)
	var condors []Chain

	for i, call := range verticals {
		if usedIdx[i] || call.Structure != StructureCallCreditSpread {
			continue
		}
		for j, put := range verticals {
			if usedIdx[j] || put.Structure != StructurePutCreditSpread {
				continue
			}
			if !expByLeg[call.LegIDs[0]].Equal(expByLeg[put.LegIDs[0]]) {
				continue
			}

			width := math.Max(call.Metrics.SpreadWidth, put.Metrics.SpreadWidth)
			netPremium := call.Metrics.NetPremium + put.Metrics.NetPremium
			maxProfit := math.Abs(netPremium)

			// Quantity recovered from the call wing's loss arithmetic.
			qty := 1.0
			if call.Metrics.SpreadWidth > 0 {
				qty = math.Round((call.Metrics.MaxLoss + call.Metrics.MaxProfit) / (call.Metrics.SpreadWidth * contractMultiplier))
			}
			if qty < 1 {
				qty = 1
			}

			legIDs := append(append([]string{}, call.LegIDs...), put.LegIDs...)
			condors = append(condors, Chain{
				ID:         underlying + "-" + string(StructureIronCondor) + "-" + trimChainPrefix(call.ID, underlying, call.Structure) + "-" + trimChainPrefix(put.ID, underlying, put.Structure),
				Underlying: underlying,
				Structure:  StructureIronCondor,
				LegIDs:     legIDs,
				Metrics: Metrics{
					SpreadWidth: width,
					NetPremium:  netPremium,
					MaxProfit:   maxProfit,
					MaxLoss:     width*contractMultiplier*qty - maxProfit,
					NetDelta:    call.Metrics.NetDelta + put.Metrics.NetDelta,
					DTE:         call.Metrics.DTE,
				},
				DetectedAt: now,
			})
			usedIdx[i] = true
			usedIdx[j] = true

			d.log.Debug().
				Str("underlying", underlying).
				Int("dte", call.Metrics.DTE).
				Msg("Assembled iron condor from credit spreads")
			break
		}
	}

	var remaining []Chain
	for i, c := range verticals {
		if !usedIdx[i] {
			remaining = append(remaining, c)
		}
	}
	return append(remaining, condors...)
}

// matchStraddlesStrangles pairs one call and one put at the same expiration
// with equal signed quantities. Same strike makes a straddle, different
// strikes a strangle; direction follows the shared quantity sign.
func (d *Detector) matchStraddlesStrangles(underlying string, window []*domain.Leg, claimed map[string]bool, now time.Time) []Chain {
	var chains []Chain

	for i := 0; i < len(window); i++ {
		a := window[i]
		if claimed[a.ID] {
			continue
		}
		for j := i + 1; j < len(window); j++ {
			b := window[j]
			if claimed[b.ID] {
				continue
			}
			if a.Right == b.Right || !a.Expiration.Equal(b.Expiration) {
				continue
			}
			if a.Quantity != b.Quantity || a.Quantity == 0 {
				continue
			}

			long := a.Quantity > 0
			sameStrike := a.Strike == b.Strike

			var structure StructureType
			switch {
			case sameStrike && long:
				structure = StructureLongStraddle
			case sameStrike:
				structure = StructureShortStraddle
			case long:
				structure = StructureLongStrangle
			default:
				structure = StructureShortStrangle
			}

			netPremium := (a.Mark*a.Quantity + b.Mark*b.Quantity) * contractMultiplier
			m := Metrics{
				NetPremium: netPremium,
				NetDelta:   a.Delta*a.Quantity + b.Delta*b.Quantity,
				DTE:        a.DTE(now),
			}
			if !sameStrike {
				m.SpreadWidth = math.Abs(a.Strike - b.Strike)
			}
			if long {
				m.MaxLoss = math.Abs(netPremium)
			} else {
				m.MaxProfit = math.Abs(netPremium)
			}

			legs := []*domain.Leg{a, b}
			chains = append(chains, Chain{
				ID:         chainID(underlying, structure, legs),
				Underlying: underlying,
				Structure:  structure,
				LegIDs:     []string{a.ID, b.ID},
				Metrics:    m,
				DetectedAt: now,
			})
			claimed[a.ID] = true
			claimed[b.ID] = true

			d.log.Debug().
				Str("underlying", underlying).
				Str("structure", string(structure)).
				Msg("Matched straddle/strangle")
			break
		}
	}

	return chains
}

// singleLegChain classifies one unclaimed leg on its own
func (d *Detector) singleLegChain(underlying string, leg *domain.Leg, now time.Time) Chain {
	var structure StructureType
	switch {
	case !leg.IsOption() && leg.IsLong():
		structure = StructureLongStock
	case !leg.IsOption():
		structure = StructureShortStock
	case leg.Right == domain.RightCall && leg.IsLong():
		structure = StructureLongCall
	case leg.Right == domain.RightCall:
		structure = StructureShortCall
	case leg.IsLong():
		structure = StructureLongPut
	default:
		structure = StructureShortPut
	}

	m := Metrics{
		NetDelta: leg.Delta * leg.Quantity,
		DTE:      leg.DTE(now),
	}
	if leg.IsOption() {
		m.NetPremium = leg.Mark * leg.Quantity * contractMultiplier
		if leg.IsLong() {
			m.MaxLoss = math.Abs(m.NetPremium)
		} else {
			m.MaxProfit = math.Abs(m.NetPremium)
		}
	}

	return Chain{
		ID:         chainID(underlying, structure, []*domain.Leg{leg}),
		Underlying: underlying,
		Structure:  structure,
		LegIDs:     []string{leg.ID},
		Metrics:    m,
		DetectedAt: now,
	}
}

// trimChainPrefix strips "<underlying>-<structure>-" from a constituent chain
// ID so condor IDs stay readable.
func trimChainPrefix(id, underlying string, structure StructureType) string {
	prefix := underlying + "-" + string(structure) + "-"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		return id[len(prefix):]
	}
	return id
}
