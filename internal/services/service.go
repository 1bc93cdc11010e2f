package services

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/routing-advisor/node-advisor/internal/clients/lndclient"
	"github.com/routing-advisor/node-advisor/internal/config"
	"github.com/routing-advisor/node-advisor/internal/db"
	"github.com/routing-advisor/node-advisor/internal/engine"
)

type Service struct {
	cfg    *config.Config
	lnd    lndclient.LndInterface
	db     db.DbInterface
	engine atomic.Pointer[engine.Engine]
	cache  *SnapshotCache
	clock  clock.Clock
}

// NewService wires the refresh layer, the engine and the recorder. db is
// optional: without it advisory runs are only logged. A nil clock defaults
// to the wall clock.
func NewService(
	cfg *config.Config,
	lnd lndclient.LndInterface,
	db db.DbInterface,
	clk clock.Clock,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if lnd == nil {
		return nil, errors.New("lnd client is required")
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	s := &Service{
		cfg:   cfg,
		lnd:   lnd,
		db:    db,
		cache: NewSnapshotCache(),
		clock: clk,
	}
	if err := s.UpdateEngineConfig(&cfg.Engine); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateEngineConfig swaps the active engine for one built from cfg and
// schedules a new advisory run. The previous engine stays active when cfg is
// invalid.
func (s *Service) UpdateEngineConfig(cfg *config.EngineConfig) error {
	e, err := engine.New(cfg, s.clock)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	if prev := s.engine.Swap(e); prev != nil {
		log.Info().
			Float64("days", cfg.Days).
			Int64("max_fee_rate", cfg.MaxFeeRate).
			Msg("engine config updated")
		s.cache.Notify()
	}
	return nil
}

func (s *Service) Cache() *SnapshotCache {
	return s.cache
}

// window is the observation window of the active engine.
func (s *Service) window() time.Duration {
	days := s.engine.Load().Config().Days
	return time.Duration(days * float64(24*time.Hour))
}
