package engine

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/routing-advisor/node-advisor/internal/config"
	"github.com/routing-advisor/node-advisor/internal/stats"
	"github.com/routing-advisor/node-advisor/internal/types"
)

// ErrInvalidTarget is returned when a computed target balance does not lie
// strictly inside the channel, which only happens for degenerate channels or
// configurations.
var ErrInvalidTarget = errors.New("target balance outside of channel")

// Engine turns node statistics into prioritized recommendations. It holds no
// state between evaluations and may be shared between goroutines.
type Engine struct {
	cfg   config.EngineConfig
	clock clock.Clock
}

// New validates the configuration and returns an engine. A nil clock
// defaults to the wall clock.
func New(cfg *config.EngineConfig, clk clock.Clock) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &Engine{cfg: *cfg, clock: clk}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// Evaluate runs EvaluateAt with the current time of the engine clock.
func (e *Engine) Evaluate(node *stats.NodeStatistics) (iter.Seq[types.Action], error) {
	return e.EvaluateAt(node, e.clock.Now())
}

// EvaluateAt computes the balance targets of all channels and returns the
// sequence of recommended actions as of now. Balance targets are checked
// before the sequence is returned; the per-channel fee analysis runs lazily
// while the sequence is consumed.
//
// The sequence yields the node balance action first, then for each channel
// in ascending id order its balance action followed by its fee action.
func (e *Engine) EvaluateAt(node *stats.NodeStatistics, now time.Time) (iter.Seq[types.Action], error) {
	channels := node.Channels()
	targets := make([]balanceTarget, len(channels))
	for i, ch := range channels {
		bt := e.channelBalanceTarget(ch)
		if bt.target <= 0 || bt.target >= bt.max {
			return nil, fmt.Errorf("channel %d: target %d, capacity %d: %w", ch.ChanID(), bt.target, bt.max, ErrInvalidTarget)
		}
		targets[i] = bt
	}

	views := make(map[uint64]*channelView, len(channels))
	order := make([]uint64, len(channels))
	for i, ch := range channels {
		views[ch.ChanID()] = newChannelView(ch, targets[i])
		order[i] = ch.ChanID()
	}

	return func(yield func(types.Action) bool) {
		if len(channels) > 0 {
			if action, ok := e.nodeBalanceAction(nodeBalance(targets)); ok && !yield(action) {
				return
			}
		}

		for i, ch := range channels {
			if action, ok := e.channelBalanceAction(ch, targets[i]); ok && !yield(action) {
				return
			}

			analysis := &feeAnalysis{
				e:     e,
				view:  views[ch.ChanID()],
				views: views,
				order: order,
				now:   now,
			}
			if action, ok := analysis.run(); ok && !yield(action) {
				return
			}
		}
	}, nil
}

// Ranked collects the sequence ordered by descending priority. Actions with
// equal priority keep their sequence order.
func Ranked(actions iter.Seq[types.Action]) []types.Action {
	ranked := slices.Collect(actions)
	slices.SortStableFunc(ranked, func(a, b types.Action) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return ranked
}
