package scheduler

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
)

// RebalanceTrigger starts one full rebalancing pass
type RebalanceTrigger interface {
	Trigger(reason string) error
}

// FillPollJob polls the broker for recent order fills. A fill ID not seen
// before means portfolio state changed, which triggers a rebalancing pass.
// Run serializes itself on a mutex: overlapping invocations are possible
// when a triggered pass outlasts the poll interval.
type FillPollJob struct {
	mu      sync.Mutex
	fills   domain.FillSource
	trigger RebalanceTrigger
	known   map[string]bool
	primed  bool
	log     zerolog.Logger
}

// NewFillPollJob creates the fill polling job
func NewFillPollJob(fills domain.FillSource, trigger RebalanceTrigger, log zerolog.Logger) *FillPollJob {
	return &FillPollJob{
		fills:   fills,
		trigger: trigger,
		known:   make(map[string]bool),
		log:     log.With().Str("job", "fill_poll").Logger(),
	}
}

// Name returns the job name
func (j *FillPollJob) Name() string {
	return "fill_poll"
}

// Run fetches recent fill IDs and triggers a rebalancing pass when a new
// one appears. The first poll only primes the known set so a restart does
// not replay old fills.
func (j *FillPollJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ids, err := j.fills.RecentFillIDs()
	if err != nil {
		return fmt.Errorf("polling fills: %w", err)
	}

	var fresh []string
	for _, id := range ids {
		if !j.known[id] {
			j.known[id] = true
			fresh = append(fresh, id)
		}
	}

	if !j.primed {
		j.primed = true
		if len(fresh) > 0 {
			j.log.Info().Int("count", len(fresh)).Msg("Primed known fills on first poll")
		}
		return nil
	}

	if len(fresh) == 0 {
		return nil
	}

	j.log.Info().Strs("fill_ids", fresh).Msg("New fills detected, triggering rebalancing")
	if err := j.trigger.Trigger("fill_detected"); err != nil {
		return fmt.Errorf("triggering rebalancing after fill: %w", err)
	}
	return nil
}
