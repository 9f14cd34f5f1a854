package chains

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
)

// windowGap is the maximum gap between consecutive creation timestamps for
// two legs to land in the same detection window. Legs opened as one combo
// order fill within seconds of each other.
const windowGap = 60 * time.Second

// Detector scans snapshot legs and produces chains
type Detector struct {
	log zerolog.Logger
}

// NewDetector creates a new chain detector
func NewDetector(log zerolog.Logger) *Detector {
	return &Detector{
		log: log.With().Str("service", "chain_detector").Logger(),
	}
}

// Detect groups legs per underlying into time-windows and applies the
// structural matchers in priority order: vertical spread, calendar spread,
// iron condor, straddle, strangle, single leg. A leg ID appears in at most
// one chain per pass - the claims set is shared across the whole
// per-underlying scan, not reset between windows.
func (d *Detector) Detect(legs []domain.Leg, now time.Time) []Chain {
	byUnderlying := make(map[string][]*domain.Leg)
	for i := range legs {
		leg := &legs[i]
		key := leg.Underlying
		if key == "" {
			key = leg.Symbol
		}
		byUnderlying[key] = append(byUnderlying[key], leg)
	}

	underlyings := make([]string, 0, len(byUnderlying))
	for u := range byUnderlying {
		underlyings = append(underlyings, u)
	}
	sort.Strings(underlyings)

	var chains []Chain
	for _, underlying := range underlyings {
		chains = append(chains, d.detectForUnderlying(underlying, byUnderlying[underlying], now)...)
	}

	d.log.Debug().
		Int("legs", len(legs)).
		Int("chains", len(chains)).
		Msg("Chain detection pass complete")

	return chains
}

// detectForUnderlying runs one full scan for a single underlying
func (d *Detector) detectForUnderlying(underlying string, legs []*domain.Leg, now time.Time) []Chain {
	var optionLegs []*domain.Leg
	for _, leg := range legs {
		if leg.IsOption() {
			optionLegs = append(optionLegs, leg)
		}
	}

	windows := partitionWindows(optionLegs)
	claimed := make(map[string]bool)

	var chains []Chain
	for _, window := range windows {
		// A window with fewer than two legs skips straight to single-leg
		// classification at the end of the scan.
		if len(window) < 2 {
			continue
		}

		verticals := d.matchVerticals(underlying, window, claimed, now)
		calendars := d.matchCalendars(underlying, window, claimed, now)
		verticals = d.assembleCondors(underlying, verticals, window, now)
		pairs := d.matchStraddlesStrangles(underlying, window, claimed, now)

		chains = append(chains, verticals...)
		chains = append(chains, calendars...)
		chains = append(chains, pairs...)
	}

	// Everything still unclaimed, equity legs included, becomes its own chain.
	for _, leg := range legs {
		if claimed[leg.ID] {
			continue
		}
		chains = append(chains, d.singleLegChain(underlying, leg, now))
	}

	return chains
}

// partitionWindows splits legs into detection windows by creation timestamp.
// Sorted ascending, a gap above windowGap starts a new window. Legs without
// a timestamp each form their own singleton window.
func partitionWindows(legs []*domain.Leg) [][]*domain.Leg {
	var timed []*domain.Leg
	var windows [][]*domain.Leg

	for _, leg := range legs {
		if leg.CreatedAt == nil {
			windows = append(windows, []*domain.Leg{leg})
			continue
		}
		timed = append(timed, leg)
	}

	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].CreatedAt.Before(*timed[j].CreatedAt)
	})

	var current []*domain.Leg
	for _, leg := range timed {
		if len(current) > 0 {
			prev := current[len(current)-1]
			if leg.CreatedAt.Sub(*prev.CreatedAt) > windowGap {
				windows = append(windows, current)
				current = nil
			}
		}
		current = append(current, leg)
	}
	if len(current) > 0 {
		windows = append(windows, current)
	}

	return windows
}
