// Package universe manages the ranked universe of tradable underlyings and
// the sector rankings derived from it.
package universe

import "time"

// Security is one screened underlying in the tradable universe
type Security struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	LastPrice   float64   `json:"last_price"`
	IVRank      float64   `json:"iv_rank"` // 0-100
	CanAdd      bool      `json:"can_add"` // room for more exposure
	Sector      string    `json:"sector"`
	Industry    string    `json:"industry"`
	Score       float64   `json:"score"` // aggregate screening score, 0-1
	LastUpdated time.Time `json:"last_updated"`
}

// SectorRanking scores one sector by recent momentum and realized volatility
// of its member symbols
type SectorRanking struct {
	Sector      string  `json:"sector"`
	Momentum    float64 `json:"momentum"`     // mean RSI(14) across members, 0-100
	MomentumPct float64 `json:"momentum_pct"` // momentum percentile among ranked sectors
	Trend       float64 `json:"trend"`        // mean last-close to SMA(20) ratio, >1 = uptrend
	Volatility  float64 `json:"volatility"`   // mean annualized volatility across members
	Score       float64 `json:"score"`        // composite, higher is better
	Rank        int     `json:"rank"`         // 1 = strongest
}
