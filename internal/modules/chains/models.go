// Package chains groups raw position legs into recognized multi-leg option
// structures and computes their risk metrics.
package chains

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avramidis/optsentry/internal/domain"
)

// StructureType identifies a recognized multi-leg option structure
type StructureType string

const (
	StructureCallCreditSpread StructureType = "call_credit_spread"
	StructureCallDebitSpread  StructureType = "call_debit_spread"
	StructurePutCreditSpread  StructureType = "put_credit_spread"
	StructurePutDebitSpread   StructureType = "put_debit_spread"
	StructureCallCalendar     StructureType = "call_calendar"
	StructurePutCalendar      StructureType = "put_calendar"
	StructureIronCondor       StructureType = "iron_condor"
	StructureLongStraddle     StructureType = "long_straddle"
	StructureShortStraddle    StructureType = "short_straddle"
	StructureLongStrangle     StructureType = "long_strangle"
	StructureShortStrangle    StructureType = "short_strangle"
	StructureLongCall         StructureType = "long_call"
	StructureShortCall        StructureType = "short_call"
	StructureLongPut          StructureType = "long_put"
	StructureShortPut         StructureType = "short_put"
	StructureLongStock        StructureType = "long_stock"
	StructureShortStock       StructureType = "short_stock"
)

// IsCredit reports whether the structure collects premium at open
func (s StructureType) IsCredit() bool {
	switch s {
	case StructureCallCreditSpread, StructurePutCreditSpread, StructureIronCondor,
		StructureShortStraddle, StructureShortStrangle, StructureShortCall, StructureShortPut:
		return true
	}
	return false
}

// IsBullish reports directional bias. Neutral structures return false for
// both IsBullish and IsBearish.
func (s StructureType) IsBullish() bool {
	switch s {
	case StructurePutCreditSpread, StructureCallDebitSpread, StructureLongCall,
		StructureShortPut, StructureLongStock:
		return true
	}
	return false
}

// IsBearish reports bearish directional bias
func (s StructureType) IsBearish() bool {
	switch s {
	case StructureCallCreditSpread, StructurePutDebitSpread, StructureLongPut,
		StructureShortCall, StructureShortStock:
		return true
	}
	return false
}

// Metrics is the computed risk profile of a detected chain
type Metrics struct {
	SpreadWidth float64 `json:"spread_width"`
	NetPremium  float64 `json:"net_premium"` // signed, negative = credit received
	MaxProfit   float64 `json:"max_profit"`
	MaxLoss     float64 `json:"max_loss"`
	NetDelta    float64 `json:"net_delta"`
	DTE         int     `json:"dte"` // days to nearest expiration
}

// Chain is a detected multi-leg structure. Legs are referenced by ID, never
// copied - a leg belongs to at most one chain per detection pass.
type Chain struct {
	ID         string        `json:"id"`
	Underlying string        `json:"underlying"`
	Structure  StructureType `json:"structure"`
	LegIDs     []string      `json:"leg_ids"`
	Metrics    Metrics       `json:"metrics"`
	DetectedAt time.Time     `json:"detected_at"`
}

// chainID derives a stable identifier from underlying, structure and the
// chain's key strikes and expirations. Identical structures detected on
// consecutive passes get identical IDs.
func chainID(underlying string, structure StructureType, legs []*domain.Leg) string {
	expirations := make(map[string]bool)
	strikes := make([]float64, 0, len(legs))
	for _, leg := range legs {
		if !leg.Expiration.IsZero() {
			expirations[leg.Expiration.Format("060102")] = true
		}
		if leg.Strike > 0 {
			strikes = append(strikes, leg.Strike)
		}
	}

	expList := make([]string, 0, len(expirations))
	for e := range expirations {
		expList = append(expList, e)
	}
	sort.Strings(expList)
	sort.Float64s(strikes)

	strikeList := make([]string, 0, len(strikes))
	for _, s := range strikes {
		strikeList = append(strikeList, fmt.Sprintf("%g", s))
	}

	parts := []string{underlying, string(structure)}
	if len(expList) > 0 {
		parts = append(parts, strings.Join(expList, "_"))
	}
	if len(strikeList) > 0 {
		parts = append(parts, strings.Join(strikeList, "/"))
	}
	return strings.Join(parts, "-")
}
