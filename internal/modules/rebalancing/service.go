package rebalancing

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
	"github.com/avramidis/optsentry/internal/modules/allocation"
	"github.com/avramidis/optsentry/internal/modules/chains"
	"github.com/avramidis/optsentry/internal/modules/portfolio"
	"github.com/avramidis/optsentry/internal/modules/universe"
)

type nowFunc func() time.Time

// RuleSource supplies the persisted allocation rule set
type RuleSource interface {
	GetAll() ([]allocation.Rule, error)
}

// RankingRefresher recomputes sector rankings ahead of the opening stage.
// A refresh failure is non-fatal, the cycle continues with empty rankings.
type RankingRefresher interface {
	Refresh() ([]universe.SectorRanking, error)
}

// Archiver persists completed events. Archive failures never fail a pass.
type Archiver interface {
	Store(event *Event) error
}

// Service owns the current rebalancing event behind a single-flight lock.
// A full pass runs inside one critical section so at most one pass is in
// flight, concurrent triggers block and then run their own fresh pass.
type Service struct {
	mu        sync.Mutex
	snapshots *portfolio.SnapshotService
	rules     RuleSource
	universe  domain.UniverseProvider
	rankings  RankingRefresher
	archive   Archiver
	gen       *generator
	log       zerolog.Logger
	now       nowFunc

	current      *Event
	lastRankings []universe.SectorRanking
}

func NewService(
	snapshots *portfolio.SnapshotService,
	rules RuleSource,
	provider domain.UniverseProvider,
	rankings RankingRefresher,
	archive Archiver,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	serviceLog := logger.With().Str("service", "rebalancing").Logger()
	return &Service{
		snapshots: snapshots,
		rules:     rules,
		universe:  provider,
		rankings:  rankings,
		archive:   archive,
		gen:       newGenerator(cfg, serviceLog),
		log:       serviceLog,
		now:       time.Now,
	}
}

// Trigger runs one full rebalancing pass and publishes a new current
// event. Snapshot or compliance failures propagate and leave the previous
// event in place.
func (s *Service) Trigger(reason string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	s.log.Info().Str("reason", reason).Msg("rebalancing pass started")

	snapshot, detected, err := s.snapshots.Build(start)
	if err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}

	var faults stageFaults
	if s.rankings != nil {
		ranked, err := s.rankings.Refresh()
		if err != nil {
			faults.RankingsErr = err
			s.log.Warn().Err(err).Msg("sector ranking refresh failed, continuing with stale rankings")
		} else {
			s.lastRankings = ranked
		}
	}

	rules, err := s.rules.GetAll()
	if err != nil {
		return nil, fmt.Errorf("loading allocation rules: %w", err)
	}

	current := portfolio.ComputeAllocations(snapshot, detected, start)
	checks := allocation.Evaluate(rules, current, snapshot.TotalValue)
	gaps := allocation.DeriveGaps(checks, snapshot.TotalValue, snapshot.BuyingPower)

	var candidates []domain.Candidate
	if s.universe != nil {
		candidates, err = s.universe.Candidates()
		if err != nil {
			faults.UniverseErr = err
			s.log.Warn().Err(err).Msg("universe fetch failed, opening stage will be empty")
			candidates = nil
		}
	}

	sectorRank := make(map[string]int, len(s.lastRankings))
	for _, ranking := range s.lastRankings {
		sectorRank[ranking.Sector] = ranking.Rank
	}

	stages, final := s.gen.Generate(snapshot, checks, gaps, candidates, sectorRank, faults, s.now)

	event := &Event{
		ID:              uuid.New().String(),
		TriggerReason:   reason,
		CreatedAt:       start,
		Status:          EventPending,
		Snapshot:        *snapshot,
		Chains:          detected,
		Checks:          checks,
		Gaps:            gaps,
		Stages:          stages,
		Recommendations: final,
		Summary:         summarize(final),
	}

	if s.archive != nil {
		if err := s.archive.Store(event); err != nil {
			s.log.Warn().Err(err).Str("event_id", event.ID).Msg("event archive failed")
		}
	}

	s.current = event
	s.log.Info().
		Str("event_id", event.ID).
		Int("recommendations", len(final)).
		Int("checks", len(checks)).
		Int("gaps", len(gaps)).
		Dur("elapsed", s.now().Sub(start)).
		Msg("rebalancing pass complete")

	return copyEvent(event), nil
}

// ErrNoEvent is returned by status queries before the first pass completes
var ErrNoEvent = fmt.Errorf("no recommendations yet")

// Current returns an immutable copy of the latest event
func (s *Service) Current() (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoEvent
	}
	return copyEvent(s.current), nil
}

// Approve marks the current pending event approved
func (s *Service) Approve(eventID string) (*Event, error) {
	return s.transition(eventID, EventApproved)
}

// Reject marks the current pending event rejected
func (s *Service) Reject(eventID string) (*Event, error) {
	return s.transition(eventID, EventRejected)
}

// MarkExecuted records that the approved event's trades were placed
func (s *Service) MarkExecuted(eventID string) (*Event, error) {
	return s.transition(eventID, EventExecuted)
}

func (s *Service) transition(eventID string, target EventStatus) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoEvent
	}
	if s.current.ID != eventID {
		return nil, fmt.Errorf("event %s is not current", eventID)
	}
	if !validTransition(s.current.Status, target) {
		return nil, fmt.Errorf("cannot move event from %s to %s", s.current.Status, target)
	}
	s.current.Status = target
	if s.archive != nil {
		if err := s.archive.Store(s.current); err != nil {
			s.log.Warn().Err(err).Str("event_id", eventID).Msg("archiving status change failed")
		}
	}
	s.log.Info().Str("event_id", eventID).Str("status", string(target)).Msg("event status changed")
	return copyEvent(s.current), nil
}

func validTransition(from, to EventStatus) bool {
	switch from {
	case EventPending:
		return to == EventApproved || to == EventRejected
	case EventApproved:
		return to == EventExecuted
	default:
		return false
	}
}

// Compliance evaluates the current portfolio against the rule set without
// running a full pass or touching the current event.
func (s *Service) Compliance() ([]allocation.ComplianceCheck, error) {
	now := s.now()
	snapshot, detected, err := s.snapshots.Build(now)
	if err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}
	rules, err := s.rules.GetAll()
	if err != nil {
		return nil, fmt.Errorf("loading allocation rules: %w", err)
	}
	current := portfolio.ComputeAllocations(snapshot, detected, now)
	return allocation.Evaluate(rules, current, snapshot.TotalValue), nil
}

// copyEvent returns a copy whose slices, nested slices included, are
// detached from the original so callers never observe in-place mutation.
func copyEvent(e *Event) *Event {
	out := *e
	out.Snapshot.Legs = append([]domain.Leg(nil), e.Snapshot.Legs...)
	for i := range out.Snapshot.Legs {
		if t := out.Snapshot.Legs[i].CreatedAt; t != nil {
			created := *t
			out.Snapshot.Legs[i].CreatedAt = &created
		}
	}
	out.Snapshot.PendingFillIDs = append([]string(nil), e.Snapshot.PendingFillIDs...)
	out.Chains = append([]chains.Chain(nil), e.Chains...)
	for i := range out.Chains {
		out.Chains[i].LegIDs = append([]string(nil), e.Chains[i].LegIDs...)
	}
	out.Checks = append([]allocation.ComplianceCheck(nil), e.Checks...)
	out.Gaps = append([]allocation.Gap(nil), e.Gaps...)
	out.Stages = append([]StageResult(nil), e.Stages...)
	for i := range out.Stages {
		out.Stages[i].Recommendations = append([]TradeRecommendation(nil), e.Stages[i].Recommendations...)
	}
	out.Recommendations = append([]TradeRecommendation(nil), e.Recommendations...)
	return &out
}
