package portfolio

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/optsentry/internal/domain"
	"github.com/avramidis/optsentry/internal/modules/chains"
)

var snapNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	positions   []domain.RawPosition
	totalValue  float64
	buyingPower float64
	err         error
}

func (s *stubSource) Positions() ([]domain.RawPosition, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.positions, nil
}

func (s *stubSource) AccountValues() (float64, float64, error) {
	return s.totalValue, s.buyingPower, nil
}

func TestBuild_ParsesOptionsAndExcludesMalformed(t *testing.T) {
	opened := snapNow.Add(-48 * time.Hour).Unix()
	source := &stubSource{
		positions: []domain.RawPosition{
			{Account: "U100", Symbol: "AAPL", Class: domain.InstrumentEquity, Quantity: 100, Mark: 230, Notional: 23000},
			{Account: "U100", Symbol: "AAPL  241220C00150000", Class: domain.InstrumentOption, Quantity: 1, Mark: 3.0, Notional: 300, OpenedAt: &opened},
			{Account: "U100", Symbol: "GARBAGE!!", Class: domain.InstrumentOption, Quantity: 1, Mark: 1.0, Notional: 100},
		},
		totalValue:  50000,
		buyingPower: 20000,
	}

	svc := NewSnapshotService(source, chains.NewDetector(zerolog.Nop()), zerolog.Nop())
	snapshot, detected, err := svc.Build(snapNow)
	require.NoError(t, err)

	require.Len(t, snapshot.Legs, 2, "malformed option must be excluded")
	assert.Equal(t, 50000.0, snapshot.TotalValue)

	var option *domain.Leg
	for i := range snapshot.Legs {
		if snapshot.Legs[i].IsOption() {
			option = &snapshot.Legs[i]
		}
	}
	require.NotNil(t, option)
	assert.Equal(t, "AAPL", option.Underlying)
	assert.InDelta(t, 150.0, option.Strike, 0.0001)
	assert.Equal(t, domain.RightCall, option.Right)
	require.NotNil(t, option.CreatedAt)

	// Two legs, different underlyings resolve, so two single-leg chains.
	assert.Len(t, detected, 2)
}

func TestComputeAllocations_AssetAxisIncludesCashRemainder(t *testing.T) {
	snapshot := &domain.Snapshot{
		TakenAt:    snapNow,
		TotalValue: 100000,
		Legs: []domain.Leg{
			{ID: "U100:AAPL", Symbol: "AAPL", Underlying: "AAPL", Class: domain.InstrumentEquity, Quantity: 100, Notional: 30000},
			{ID: "U100:OPT", Symbol: "OPT", Underlying: "SPY", Class: domain.InstrumentOption, Quantity: 1, Notional: 50000,
				Strike: 500, Right: domain.RightCall, Expiration: snapNow.Add(20 * 24 * time.Hour)},
		},
	}
	detected := chains.NewDetector(zerolog.Nop()).Detect(snapshot.Legs, snapNow)

	current := ComputeAllocations(snapshot, detected, snapNow)

	assert.InDelta(t, 30.0, current.Get("asset_class", "equity"), 0.0001)
	assert.InDelta(t, 50.0, current.Get("asset_class", "options"), 0.0001)
	assert.InDelta(t, 20.0, current.Get("asset_class", "cash"), 0.0001)
}

func TestComputeAllocations_DurationAndStrategyUseDeployedValue(t *testing.T) {
	farExp := snapNow.Add(120 * 24 * time.Hour)
	nearExp := snapNow.Add(10 * 24 * time.Hour)

	snapshot := &domain.Snapshot{
		TakenAt:    snapNow,
		TotalValue: 200000,
		Legs: []domain.Leg{
			// Long call expiring soon: short_term, bullish.
			{ID: "U100:C1", Symbol: "C1", Underlying: "AAPL", Class: domain.InstrumentOption, Quantity: 1,
				Notional: 10000, Strike: 150, Right: domain.RightCall, Expiration: nearExp},
			// Long put expiring far out: long_term, bearish.
			{ID: "U100:P1", Symbol: "P1", Underlying: "SPY", Class: domain.InstrumentOption, Quantity: 1,
				Notional: 30000, Strike: 500, Right: domain.RightPut, Expiration: farExp},
		},
	}
	detected := chains.NewDetector(zerolog.Nop()).Detect(snapshot.Legs, snapNow)

	current := ComputeAllocations(snapshot, detected, snapNow)

	assert.InDelta(t, 25.0, current.Get("duration", "short_term"), 0.0001)
	assert.InDelta(t, 75.0, current.Get("duration", "long_term"), 0.0001)
	assert.InDelta(t, 25.0, current.Get("strategy", "bullish"), 0.0001)
	assert.InDelta(t, 75.0, current.Get("strategy", "bearish"), 0.0001)
}

func TestComputeAllocations_EmptyPortfolio(t *testing.T) {
	snapshot := &domain.Snapshot{TakenAt: snapNow, TotalValue: 0}
	current := ComputeAllocations(snapshot, nil, snapNow)

	assert.Zero(t, current.Get("asset_class", "equity"))
	assert.Zero(t, current.Get("duration", "short_term"))
}
