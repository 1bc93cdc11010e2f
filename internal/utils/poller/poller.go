package poller

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"
)

// Poller calls a poll function on a fixed delay until its context ends.
type Poller struct {
	name     string
	interval time.Duration
	clock    clock.Clock
	poll     func(ctx context.Context) error
}

func New(name string, interval time.Duration, clk clock.Clock, poll func(ctx context.Context) error) *Poller {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Poller{
		name:     name,
		interval: interval,
		clock:    clk,
		poll:     poll,
	}
}

// Run blocks until ctx is done. The delay is measured from the end of the
// previous poll, so a slow poll never overlaps the next one. Poll errors are
// logged and do not stop the loop.
func (p *Poller) Run(ctx context.Context) {
	logger := log.Ctx(ctx).With().
		Str("poller", p.name).
		Dur("interval", p.interval).
		Logger()
	logger.Info().Msg("poller started")

	failures := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("poller stopped")
			return
		case <-p.clock.TickAfter(p.interval):
		}

		if err := p.poll(ctx); err != nil {
			failures++
			logger.Error().Err(err).Int("consecutive_failures", failures).Msg("poll failed")
			continue
		}
		if failures > 0 {
			logger.Info().Int("failures", failures).Msg("poll recovered")
		}
		failures = 0
	}
}
