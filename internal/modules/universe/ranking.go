package universe

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/pkg/formulas"
)

// rsiPeriod is the lookback for the momentum reading
const rsiPeriod = 14

// smaPeriod is the lookback for the trend reading
const smaPeriod = 20

// closeLookback caps how much history one refresh loads per symbol
const closeLookback = 60

// RankingService recomputes sector rankings from stored close history.
// The orchestrator refreshes rankings at the start of each rebalancing pass;
// a refresh failure is non-fatal there and falls back to empty rankings.
type RankingService struct {
	repo *Repository
	log  zerolog.Logger
}

// NewRankingService creates a new sector ranking service
func NewRankingService(repo *Repository, log zerolog.Logger) *RankingService {
	return &RankingService{
		repo: repo,
		log:  log.With().Str("service", "sector_ranking").Logger(),
	}
}

// Refresh recomputes the ranking for every sector in the universe.
// Sectors whose members have no usable history are skipped.
func (s *RankingService) Refresh() ([]SectorRanking, error) {
	sectors, err := s.repo.Sectors()
	if err != nil {
		return nil, fmt.Errorf("failed to list sectors: %w", err)
	}

	var rankings []SectorRanking
	for _, sector := range sectors {
		ranking, ok, err := s.rankSector(sector)
		if err != nil {
			return nil, err
		}
		if ok {
			rankings = append(rankings, ranking)
		}
	}

	// Each sector's momentum placed inside the whole ranked set.
	momentums := make([]float64, 0, len(rankings))
	for _, r := range rankings {
		momentums = append(momentums, r.Momentum)
	}
	for i := range rankings {
		rankings[i].MomentumPct = formulas.Percentile(momentums, rankings[i].Momentum)
	}

	// Strongest sector first; rank assigned from the sorted order.
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	s.log.Debug().Int("sectors", len(rankings)).Msg("Sector rankings refreshed")
	return rankings, nil
}

// rankSector aggregates RSI momentum and realized volatility across the
// sector's members
func (s *RankingService) rankSector(sector string) (SectorRanking, bool, error) {
	symbols, err := s.repo.SymbolsBySector(sector)
	if err != nil {
		return SectorRanking{}, false, fmt.Errorf("failed to load members of %s: %w", sector, err)
	}

	var momentums, volatilities, trends []float64
	for _, symbol := range symbols {
		closes, err := s.repo.Closes(symbol, closeLookback)
		if err != nil {
			return SectorRanking{}, false, err
		}

		rsi := formulas.RSI(closes, rsiPeriod)
		if rsi == nil {
			continue
		}
		momentums = append(momentums, *rsi)
		volatilities = append(volatilities, formulas.AnnualizedVolatility(formulas.Returns(closes)))
		if sma := formulas.SMA(closes, smaPeriod); sma != nil && *sma > 0 {
			trends = append(trends, closes[len(closes)-1] / *sma)
		}
	}

	if len(momentums) == 0 {
		return SectorRanking{}, false, nil
	}

	momentum := formulas.Mean(momentums)
	volatility := formulas.Mean(volatilities)

	return SectorRanking{
		Sector:     sector,
		Momentum:   momentum,
		Trend:      formulas.Mean(trends),
		Volatility: volatility,
		// Momentum normalized to 0-1, discounted by realized volatility.
		Score: (momentum / 100) / (1 + volatility),
	}, true, nil
}
