package domain

// PositionSource supplies raw broker positions for one analysis cycle.
// Live market-data ingestion sits behind this interface - the engine only
// ever sees a point-in-time snapshot.
type PositionSource interface {
	// Positions returns every open position keyed uniquely per account+symbol
	Positions() ([]RawPosition, error)
	// AccountValues returns total portfolio value and available buying power
	AccountValues() (totalValue, buyingPower float64, err error)
}

// RawPosition is a broker position line before symbol parsing and enrichment
type RawPosition struct {
	Account    string
	Symbol     string
	Class      InstrumentClass
	Quantity   float64
	Mark       float64
	Notional   float64
	Delta      float64
	CostBasis  float64
	CostEffect CostEffect
	OpenedAt   *int64 // unix seconds, nil when the broker did not report it
}

// FillSource reports order fills so the polling loop can trigger rebalancing
type FillSource interface {
	// RecentFillIDs returns identifiers of recently filled orders
	RecentFillIDs() ([]string, error)
}

// UniverseProvider supplies the ranked tradable universe
type UniverseProvider interface {
	Candidates() ([]Candidate, error)
}
