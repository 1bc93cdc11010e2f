package engine

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/routing-advisor/node-advisor/internal/stats"
	"github.com/routing-advisor/node-advisor/internal/types"
)

// balanceTarget is the outcome of the balance analysis of one channel.
type balanceTarget struct {
	actual   btcutil.Amount
	target   btcutil.Amount
	max      btcutil.Amount
	distance float64
	reason   string
}

func (e *Engine) channelBalanceTarget(ch *stats.ChannelStatistics) balanceTarget {
	capacity := ch.Properties.Capacity
	target, reason := e.targetBalance(ch)
	result := balanceTarget{
		actual: ch.Properties.LocalBalance,
		target: target,
		max:    capacity,
		reason: reason,
	}
	if target > 0 && target < capacity {
		result.distance = Distance(result.actual, target, capacity)
	}
	return result
}

func (e *Engine) targetBalance(ch *stats.ChannelStatistics) (btcutil.Amount, string) {
	capacity := ch.Properties.Capacity
	in, out := ch.Incoming, ch.Outgoing
	half := roundAmount(float64(capacity) / 2)

	flow := in.TotalTokens + out.TotalTokens
	forwards := in.Count + out.Count
	if flow == 0 || forwards < e.cfg.MinChannelForwards {
		return half, fmt.Sprintf(
			"not enough history to predict flow (%d forwards, %d required), targeting half of capacity %d",
			forwards, e.cfg.MinChannelForwards, capacity,
		)
	}

	optimal := roundAmount(float64(out.TotalTokens) / float64(flow) * float64(capacity))
	margin := 1 + e.cfg.LargestForwardMarginFraction
	minLargest := roundAmount(float64(out.MaxTokens) * margin)
	maxLargest := roundAmount(float64(capacity) - float64(in.MaxTokens)*margin)
	if minLargest > maxLargest {
		return half, fmt.Sprintf(
			"largest forwards + margin exceed capacity (out %d, in %d, margin %.2f, capacity %d), targeting half of capacity",
			out.MaxTokens, in.MaxTokens, e.cfg.LargestForwardMarginFraction, capacity,
		)
	}

	minFraction := roundAmount(e.cfg.MinChannelBalanceFraction * float64(capacity))
	maxFraction := capacity - minFraction
	flowText := fmt.Sprintf("out %d / in %d", out.TotalTokens, in.TotalTokens)

	switch {
	case optimal < minFraction:
		return minFraction, fmt.Sprintf(
			"optimal balance %d (%s) is below the minimum channel balance %d (%.0f%% of capacity)",
			optimal, flowText, minFraction, e.cfg.MinChannelBalanceFraction*100,
		)
	case optimal > maxFraction:
		return maxFraction, fmt.Sprintf(
			"optimal balance %d (%s) is above the maximum channel balance %d (%.0f%% of capacity)",
			optimal, flowText, maxFraction, (1-e.cfg.MinChannelBalanceFraction)*100,
		)
	case optimal < minLargest:
		return minLargest, fmt.Sprintf(
			"optimal balance %d (%s) is too low to route the largest outgoing forward %d plus margin",
			optimal, flowText, out.MaxTokens,
		)
	case optimal > maxLargest:
		return maxLargest, fmt.Sprintf(
			"optimal balance %d (%s) is too high to route the largest incoming forward %d plus margin",
			optimal, flowText, in.MaxTokens,
		)
	default:
		return optimal, fmt.Sprintf("optimal balance according to flow (%s)", flowText)
	}
}

func (e *Engine) channelBalanceAction(ch *stats.ChannelStatistics, bt balanceTarget) (types.Action, bool) {
	priority := Priority(channelPriorityBase, bt.distance, e.cfg.MinRebalanceDistance)
	if priority <= 1 {
		return types.Action{}, false
	}

	return types.Action{
		Entity:   types.EntityChannel,
		ChanID:   ch.ChanID(),
		Alias:    ch.Properties.Alias,
		Priority: priority,
		Variable: types.VariableBalance,
		Actual:   int64(bt.actual),
		Target:   int64(bt.target),
		Max:      int64(bt.max),
		Reason: fmt.Sprintf(
			"%s; balance %d is at distance %.2f from target %d", bt.reason, bt.actual, bt.distance, bt.target,
		),
	}, true
}

// nodeBalance sums the per-channel figures into the node aggregate.
func nodeBalance(targets []balanceTarget) balanceTarget {
	var total balanceTarget
	for _, bt := range targets {
		total.actual += bt.actual
		total.target += bt.target
		total.max += bt.max
	}
	if total.target > 0 && total.target < total.max {
		total.distance = Distance(total.actual, total.target, total.max)
	}
	total.reason = fmt.Sprintf("sum of %d channel targets", len(targets))
	return total
}

func (e *Engine) nodeBalanceAction(bt balanceTarget) (types.Action, bool) {
	priority := Priority(nodePriorityBase, bt.distance, e.cfg.MinRebalanceDistance)
	if priority <= 1 {
		return types.Action{}, false
	}

	return types.Action{
		Entity:   types.EntityNode,
		Priority: priority,
		Variable: types.VariableBalance,
		Actual:   int64(bt.actual),
		Target:   int64(bt.target),
		Max:      int64(bt.max),
		Reason: fmt.Sprintf(
			"%s; total local balance %d is at distance %.2f from total target %d of capacity %d",
			bt.reason, bt.actual, bt.distance, bt.target, bt.max,
		),
	}, true
}
