package rebalancing

// Config holds the sizing and filtering knobs for recommendation
// generation. Zero values are never used directly, load via DefaultConfig
// and override from the environment.
type Config struct {
	// MinPositionSize is the smallest dollar gap worth acting on
	MinPositionSize float64
	// MaxSingleTrade caps the capital committed to one recommendation
	MaxSingleTrade float64
	// MaxPerGap caps how many recommendations one gap can spawn
	MaxPerGap int
	// MinConfidence filters out low-conviction candidates, 0-1
	MinConfidence float64
	// MaxAllocationPct limits total new capital per cycle as a
	// percentage of buying power
	MaxAllocationPct float64
	// SlippageFactor pads entry limit prices above last trade
	SlippageFactor float64
	// RollDTEThreshold triggers roll recommendations at or below this DTE
	RollDTEThreshold int
	// RollTargetDTE is the expiration horizon rolls aim for
	RollTargetDTE int
	// ProfitTakePct triggers profit-taking closes above this unrealized
	// gain fraction of cost basis
	ProfitTakePct float64
}

// DefaultConfig returns the standard production knobs
func DefaultConfig() Config {
	return Config{
		MinPositionSize:  500,
		MaxSingleTrade:   5000,
		MaxPerGap:        3,
		MinConfidence:    0.3,
		MaxAllocationPct: 50,
		SlippageFactor:   1.02,
		RollDTEThreshold: 7,
		RollTargetDTE:    30,
		ProfitTakePct:    0.5,
	}
}
