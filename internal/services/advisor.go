package services

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/routing-advisor/node-advisor/internal/db/model"
	"github.com/routing-advisor/node-advisor/internal/engine"
	"github.com/routing-advisor/node-advisor/internal/observability/metrics"
	"github.com/routing-advisor/node-advisor/internal/observability/tracing"
	"github.com/routing-advisor/node-advisor/internal/stats"
	"github.com/routing-advisor/node-advisor/internal/types"
)

// Advice is the ranked outcome of one advisory run.
type Advice struct {
	RunID             string
	EvaluatedAt       time.Time
	ChannelCount      int
	LocalBalanceRatio float64
	Actions           []types.Action
}

// Advise evaluates snapshot as of the time it was taken and ranks the
// resulting actions by priority.
func (s *Service) Advise(ctx context.Context, snapshot types.Snapshot) (*Advice, error) {
	runID, ok := tracing.RunID(ctx)
	if !ok {
		runID = uuid.NewString()
	}

	node := stats.Aggregate(snapshot)
	actions, err := s.engine.Load().EvaluateAt(node, snapshot.TakenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate snapshot: %w", err)
	}

	return &Advice{
		RunID:             runID,
		EvaluatedAt:       snapshot.TakenAt,
		ChannelCount:      node.Len(),
		LocalBalanceRatio: localBalanceRatio(snapshot),
		Actions:           engine.Ranked(actions),
	}, nil
}

// StartAdvisor re-runs the advice every time the cached snapshot changes.
// Bursts of changes within the debounce interval result in a single run.
func (s *Service) StartAdvisor(ctx context.Context) {
	updates, unsubscribe := s.cache.Subscribe()
	debounce := s.cfg.Poller.Debounce

	go func() {
		defer unsubscribe()

		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("advisor stopped due to context cancellation")
				return
			case <-updates:
				if debounce == 0 {
					s.runAdvisory(ctx)
					continue
				}
				fire = s.clock.TickAfter(debounce)
			case <-fire:
				fire = nil
				s.runAdvisory(ctx)
			}
		}
	}()
}

func (s *Service) runAdvisory(ctx context.Context) {
	ctx = tracing.InjectRunID(ctx)
	log := log.Ctx(ctx)

	snapshot, ok := s.cache.Get()
	if !ok {
		log.Debug().Msg("no snapshot yet, skipping advisory run")
		return
	}

	advice, err := s.Advise(ctx, snapshot)
	metrics.IncAdvisoryRuns(err != nil)
	if err != nil {
		log.Error().Err(err).Msg("advisory run failed")
		return
	}

	for _, a := range advice.Actions {
		log.Info().
			Str("entity", a.Entity.String()).
			Uint64("chan_id", a.ChanID).
			Str("alias", a.Alias).
			Str("variable", a.Variable.String()).
			Float64("priority", a.Priority).
			Int64("actual", a.Actual).
			Int64("target", a.Target).
			Int64("max", a.Max).
			Msg(a.Reason)
	}
	log.Info().
		Int("channel_count", advice.ChannelCount).
		Int("action_count", len(advice.Actions)).
		Msg("advisory run completed")

	metrics.RecordChannelCount(advice.ChannelCount)
	metrics.RecordLocalBalanceRatio(advice.LocalBalanceRatio)
	metrics.RecordRecommendedActions(advice.Actions)

	if s.db == nil {
		return
	}
	doc := model.NewRecommendationRunDocument(
		advice.RunID, advice.EvaluatedAt, advice.ChannelCount, advice.Actions,
	)
	if err := s.db.SaveRecommendationRun(ctx, doc); err != nil {
		log.Error().Err(err).Msg("failed to record advisory run")
	}
}

func localBalanceRatio(snapshot types.Snapshot) float64 {
	var local, capacity btcutil.Amount
	for _, ch := range snapshot.Channels {
		local += ch.LocalBalance
		capacity += ch.Capacity
	}
	if capacity == 0 {
		return 0
	}
	return float64(local) / float64(capacity)
}
