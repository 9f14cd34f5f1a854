// Package domain provides core domain models and types.
package domain

import "time"

// InstrumentClass represents the class of a tradable instrument
type InstrumentClass string

const (
	// InstrumentEquity represents shares of the underlying itself
	InstrumentEquity InstrumentClass = "EQUITY"
	// InstrumentOption represents a listed option contract
	InstrumentOption InstrumentClass = "OPTION"
)

// Right represents the option right
type Right string

const (
	RightCall Right = "CALL"
	RightPut  Right = "PUT"
)

// CostEffect tags how a leg affected the account when it was opened
type CostEffect string

const (
	CostEffectCredit  CostEffect = "CREDIT"
	CostEffectDebit   CostEffect = "DEBIT"
	CostEffectUnknown CostEffect = ""
)

// Axis is one of the three allocation dimensions
type Axis string

const (
	AxisAssetClass Axis = "asset_class"
	AxisDuration   Axis = "duration"
	AxisStrategy   Axis = "strategy"
)

// ValidAxis reports whether a string names a known allocation axis
func ValidAxis(s string) bool {
	switch Axis(s) {
	case AxisAssetClass, AxisDuration, AxisStrategy:
		return true
	}
	return false
}

// Leg represents one tradable position line within an analysis snapshot.
// Legs are immutable once built - the analysis pass that produced them owns them.
type Leg struct {
	ID         string          `json:"id"` // account + symbol, unique per snapshot
	Account    string          `json:"account"`
	Symbol     string          `json:"symbol"`
	Underlying string          `json:"underlying"`
	Class      InstrumentClass `json:"class"`
	Quantity   float64         `json:"quantity"` // signed, positive = long
	Strike     float64         `json:"strike"`
	Expiration time.Time       `json:"expiration"`
	Right      Right           `json:"right"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	CostEffect CostEffect      `json:"cost_effect,omitempty"`
	Mark       float64         `json:"mark"`
	Notional   float64         `json:"notional"` // net liquidation value
	Delta      float64         `json:"delta"`
	CostBasis  float64         `json:"cost_basis"`
}

// UnrealizedGain returns the leg's open profit: market value minus cost basis
func (l *Leg) UnrealizedGain() float64 {
	return l.Notional - l.CostBasis
}

// IsOption reports whether the leg is an option contract
func (l *Leg) IsOption() bool {
	return l.Class == InstrumentOption
}

// IsLong reports whether the leg is held long
func (l *Leg) IsLong() bool {
	return l.Quantity > 0
}

// DTE returns calendar days until the leg's expiration, measured from now.
// Returns 0 for equity legs and expired contracts.
func (l *Leg) DTE(now time.Time) int {
	if !l.IsOption() || l.Expiration.IsZero() {
		return 0
	}
	days := int(l.Expiration.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Snapshot is the portfolio state one analysis cycle operates on
type Snapshot struct {
	TakenAt        time.Time `json:"taken_at"`
	Legs           []Leg     `json:"legs"`
	TotalValue     float64   `json:"total_value"`
	BuyingPower    float64   `json:"buying_power"`
	PendingFillIDs []string  `json:"pending_fill_ids,omitempty"`
}

// Candidate is one entry of the externally supplied ranked universe
type Candidate struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"last_price"`
	IVRank    float64 `json:"iv_rank"` // 0-100
	CanAdd    bool    `json:"can_add"`
	Sector    string  `json:"sector"`
	Industry  string  `json:"industry"`
	Score     float64 `json:"score"` // aggregate screening score, 0-1
}
