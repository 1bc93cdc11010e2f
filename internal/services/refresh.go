package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/routing-advisor/node-advisor/internal/observability/metrics"
	"github.com/routing-advisor/node-advisor/internal/types"
	"github.com/routing-advisor/node-advisor/internal/utils/poller"
)

// StartRefreshPoller stores a first snapshot right away and then keeps the
// cache fresh in the background. Only the first refresh error is returned;
// later ones are logged by the poller.
func (s *Service) StartRefreshPoller(ctx context.Context) error {
	refresh := metrics.RecordPollerDuration("refresh", s.refresh)
	if err := refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh failed: %w", err)
	}

	refreshPoller := poller.New("refresh", s.cfg.Poller.RefreshInterval, s.clock, refresh)
	go refreshPoller.Run(ctx)
	return nil
}

func (s *Service) refresh(ctx context.Context) error {
	snapshot, err := s.FetchSnapshot(ctx)
	if err != nil {
		return err
	}

	changed := s.cache.Store(snapshot)
	log.Ctx(ctx).Debug().
		Int("channel_count", len(snapshot.Channels)).
		Int("forward_count", len(snapshot.Forwards)).
		Int("payment_count", len(snapshot.Payments)).
		Bool("changed", changed).
		Msg("snapshot refreshed")
	return nil
}

// FetchSnapshot assembles a snapshot of the open channels and of the
// forwards and payments within the observation window ending now.
func (s *Service) FetchSnapshot(ctx context.Context) (types.Snapshot, error) {
	now := s.clock.Now()
	start := now.Add(-s.window())

	var (
		channels []types.Channel
		forwards []types.Forward
		payments []types.Payment
	)
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		var err error
		channels, err = s.lnd.ListChannels(ctx)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		forwards, err = s.lnd.ForwardingHistory(ctx, start, now)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		payments, err = s.lnd.ListPayments(ctx, start, now)
		return err
	})
	if err := p.Wait(); err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	byID := make(map[uint64]types.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ChanID] = ch
	}

	return types.Snapshot{
		TakenAt:     now,
		WindowStart: start,
		Channels:    byID,
		Forwards:    forwards,
		Payments:    payments,
	}, nil
}
