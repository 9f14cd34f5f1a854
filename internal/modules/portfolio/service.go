// Package portfolio builds analysis snapshots from raw broker positions and
// computes per-axis allocation percentages from detected chains.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
	"github.com/avramidis/optsentry/internal/modules/allocation"
	"github.com/avramidis/optsentry/internal/modules/chains"
	"github.com/avramidis/optsentry/internal/modules/options"
)

// Duration bucket boundaries in days to expiration
const (
	shortTermMaxDTE  = 30
	mediumTermMaxDTE = 90
)

// SnapshotService turns raw positions into enriched legs plus detected chains
type SnapshotService struct {
	source   domain.PositionSource
	detector *chains.Detector
	log      zerolog.Logger
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(source domain.PositionSource, detector *chains.Detector, log zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		source:   source,
		detector: detector,
		log:      log.With().Str("service", "portfolio").Logger(),
	}
}

// Build fetches positions and account values and runs one chain detection
// pass. Malformed option identifiers are logged and excluded - they never
// reach the detector, so they cannot be silently miscounted.
func (s *SnapshotService) Build(now time.Time) (*domain.Snapshot, []chains.Chain, error) {
	raws, err := s.source.Positions()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	totalValue, buyingPower, err := s.source.AccountValues()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch account values: %w", err)
	}

	legs := make([]domain.Leg, 0, len(raws))
	for _, raw := range raws {
		leg, ok := s.buildLeg(raw)
		if !ok {
			continue
		}
		legs = append(legs, leg)
	}

	snapshot := &domain.Snapshot{
		TakenAt:     now,
		Legs:        legs,
		TotalValue:  totalValue,
		BuyingPower: buyingPower,
	}

	detected := s.detector.Detect(legs, now)

	s.log.Debug().
		Int("positions", len(raws)).
		Int("legs", len(legs)).
		Int("chains", len(detected)).
		Float64("total_value", totalValue).
		Msg("Snapshot built")

	return snapshot, detected, nil
}

// buildLeg enriches one raw position. Returns false when the position must
// be excluded from the analysis pass.
func (s *SnapshotService) buildLeg(raw domain.RawPosition) (domain.Leg, bool) {
	leg := domain.Leg{
		ID:         raw.Account + ":" + raw.Symbol,
		Account:    raw.Account,
		Symbol:     raw.Symbol,
		Class:      raw.Class,
		Quantity:   raw.Quantity,
		Mark:       raw.Mark,
		Notional:   raw.Notional,
		Delta:      raw.Delta,
		CostBasis:  raw.CostBasis,
		CostEffect: raw.CostEffect,
	}
	if raw.OpenedAt != nil {
		opened := time.Unix(*raw.OpenedAt, 0).UTC()
		leg.CreatedAt = &opened
	}

	switch raw.Class {
	case domain.InstrumentEquity:
		leg.Underlying = raw.Symbol
		return leg, true
	case domain.InstrumentOption:
		parsed, err := options.Parse(raw.Symbol)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("account", raw.Account).
				Str("symbol", raw.Symbol).
				Msg("Malformed option identifier, excluding leg from analysis")
			return domain.Leg{}, false
		}
		leg.Underlying = parsed.Underlying
		leg.Strike = parsed.Strike
		leg.Expiration = parsed.Expiration
		leg.Right = parsed.Right
		return leg, true
	default:
		s.log.Warn().
			Str("symbol", raw.Symbol).
			Str("class", string(raw.Class)).
			Msg("Unknown instrument class, excluding leg from analysis")
		return domain.Leg{}, false
	}
}

// ComputeAllocations derives the observed percentage per axis and category.
//
// The asset-class axis measures against total portfolio value with the
// remainder counted as cash. The duration and strategy axes measure only
// deployed (non-cash) value, so their categories describe how the invested
// part of the book is positioned.
func ComputeAllocations(snapshot *domain.Snapshot, detected []chains.Chain, now time.Time) allocation.CurrentAllocations {
	legsByID := make(map[string]*domain.Leg, len(snapshot.Legs))
	for i := range snapshot.Legs {
		legsByID[snapshot.Legs[i].ID] = &snapshot.Legs[i]
	}

	var equityValue, optionsValue float64
	for i := range snapshot.Legs {
		leg := &snapshot.Legs[i]
		if leg.IsOption() {
			optionsValue += math.Abs(leg.Notional)
		} else {
			equityValue += math.Abs(leg.Notional)
		}
	}
	deployed := equityValue + optionsValue

	durationValues := map[string]float64{}
	strategyValues := map[string]float64{}
	for _, chain := range detected {
		var chainValue float64
		hasOption := false
		for _, legID := range chain.LegIDs {
			leg, ok := legsByID[legID]
			if !ok {
				continue
			}
			chainValue += math.Abs(leg.Notional)
			if leg.IsOption() {
				hasOption = true
			}
		}

		durationValues[durationBucket(chain, hasOption)] += chainValue
		strategyValues[strategyBucket(chain)] += chainValue
	}

	current := allocation.CurrentAllocations{}

	assetPcts := map[string]float64{}
	if snapshot.TotalValue > 0 {
		assetPcts["equity"] = equityValue / snapshot.TotalValue * 100
		assetPcts["options"] = optionsValue / snapshot.TotalValue * 100
		cash := snapshot.TotalValue - deployed
		if cash < 0 {
			cash = 0
		}
		assetPcts["cash"] = cash / snapshot.TotalValue * 100
	}
	current[string(domain.AxisAssetClass)] = assetPcts

	current[string(domain.AxisDuration)] = toPercentages(durationValues, deployed)
	current[string(domain.AxisStrategy)] = toPercentages(strategyValues, deployed)

	return current
}

func toPercentages(values map[string]float64, total float64) map[string]float64 {
	pcts := make(map[string]float64, len(values))
	if total <= 0 {
		return pcts
	}
	for category, value := range values {
		pcts[category] = value / total * 100
	}
	return pcts
}

// durationBucket classifies a chain by its days to nearest expiration.
// Pure equity chains have no expiration and count as long term.
func durationBucket(chain chains.Chain, hasOption bool) string {
	if !hasOption {
		return "long_term"
	}
	switch {
	case chain.Metrics.DTE < shortTermMaxDTE:
		return "short_term"
	case chain.Metrics.DTE <= mediumTermMaxDTE:
		return "medium_term"
	default:
		return "long_term"
	}
}

// strategyBucket maps a chain's structure to its directional bias. Structures
// with no inherent bias fall back to the sign of the net delta.
func strategyBucket(chain chains.Chain) string {
	switch {
	case chain.Structure.IsBullish():
		return "bullish"
	case chain.Structure.IsBearish():
		return "bearish"
	}
	const deltaBiasThreshold = 5.0
	switch {
	case chain.Metrics.NetDelta > deltaBiasThreshold:
		return "bullish"
	case chain.Metrics.NetDelta < -deltaBiasThreshold:
		return "bearish"
	default:
		return "neutral"
	}
}
