package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/lightningnetwork/lnd/lnwire"

	"github.com/routing-advisor/node-advisor/internal/stats"
	"github.com/routing-advisor/node-advisor/internal/types"
)

const (
	// minIncreasedFeeRate is the lowest rate proposed once an increase is due.
	minIncreasedFeeRate = 30
	feePriority         = 1
)

// scoredChange is a history entry together with its distance from the
// channel target at that time.
type scoredChange struct {
	stats.BalanceChange
	distance float64
}

// channelView is the per-channel state the fee analysis works on.
type channelView struct {
	channel *stats.ChannelStatistics
	balance balanceTarget
	history []scoredChange
}

func newChannelView(ch *stats.ChannelStatistics, bt balanceTarget) *channelView {
	history := ch.History()
	scored := make([]scoredChange, len(history))
	for i, change := range history {
		scored[i] = scoredChange{
			BalanceChange: change,
			distance:      Distance(change.Balance, bt.target, bt.max),
		}
	}
	return &channelView{channel: ch, balance: bt, history: scored}
}

func (v *channelView) chanID() uint64 {
	return v.channel.ChanID()
}

// lastOutgoingForward returns the index of the newest outgoing forward.
func (v *channelView) lastOutgoingForward() (int, bool) {
	for i, change := range v.history {
		switch change.Kind {
		case stats.KindOutgoingForward:
			return i, true
		case stats.KindIncomingForward, stats.KindPayment:
		default:
			panic(unknownKind(change.Kind))
		}
	}
	return 0, false
}

// increaseEstimate is the strongest fee increase signal of a below bounds
// period.
type increaseEstimate struct {
	rate      int64
	estimated int64
	fraction  float64
	emergency bool
	at        time.Time
}

// feeAnalysis evaluates the fee rate of one channel against its balance
// history.
type feeAnalysis struct {
	e     *Engine
	view  *channelView
	views map[uint64]*channelView
	order []uint64
	now   time.Time
}

func (a *feeAnalysis) belowBounds(distance float64) bool {
	return distance <= -a.e.cfg.MinFeeIncreaseDistance
}

func (a *feeAnalysis) run() (types.Action, bool) {
	props := a.view.channel.Properties
	distance := a.view.balance.distance
	below := a.belowBounds(distance)

	lastIdx, ok := a.view.lastOutgoingForward()
	if !ok {
		return a.withoutForwards(below)
	}

	if below {
		estimate, ok := a.maxIncrease(0, distance, a.now)
		if !ok || estimate.rate <= props.FeeRatePpm {
			return types.Action{}, false
		}
		return a.action(estimate.rate, fmt.Sprintf(
			"balance %d is at distance %.2f, below the fee increase bound -%.2f; forward at %s paid ~%d ppm, "+
				"increasing by %.1f%% (%s)",
			props.LocalBalance, distance, a.e.cfg.MinFeeIncreaseDistance, estimate.at.Format(time.RFC3339),
			estimate.estimated, estimate.fraction*100, increaseKind(estimate.emergency),
		))
	}

	last := a.view.history[lastIdx]
	exitIdx, belowIdx, exited := a.lastExit()
	if exited && lastIdx > exitIdx {
		exit := a.view.history[exitIdx]
		lastBelow := a.view.history[belowIdx]
		estimate, ok := a.maxIncrease(belowIdx, lastBelow.distance, exit.Time)
		base := estimate.rate
		evidence := fmt.Sprintf("estimated rate %d ppm when leaving the below bounds state at %s",
			base, exit.Time.Format(time.RFC3339))
		if !ok {
			base = estimateFeeRate(last.BalanceChange, props.BaseFeeMsat)
			evidence = fmt.Sprintf("last outgoing forward paid ~%d ppm before leaving the below bounds state at %s",
				base, exit.Time.Format(time.RFC3339))
		}
		return a.decrease(base, exit.Time, evidence)
	}

	lastRate := estimateFeeRate(last.BalanceChange, props.BaseFeeMsat)
	if action, ok := a.decrease(lastRate, last.Time, fmt.Sprintf(
		"last outgoing forward at %s paid ~%d ppm", last.Time.Format(time.RFC3339), lastRate,
	)); ok {
		return action, true
	}

	if distance > -a.e.cfg.MinRebalanceDistance {
		return types.Action{}, false
	}
	return a.upstreamIncrease(lastRate)
}

func (a *feeAnalysis) withoutForwards(below bool) (types.Action, bool) {
	props := a.view.channel.Properties
	if below {
		if props.FeeRatePpm == a.e.cfg.MaxFeeRate {
			return types.Action{}, false
		}
		return a.action(a.e.cfg.MaxFeeRate, fmt.Sprintf(
			"no outgoing forward in the last %g days and balance %d is at distance %.2f, "+
				"below the fee increase bound -%.2f; using max fee rate to curb outflow",
			a.e.cfg.Days, props.LocalBalance, a.view.balance.distance, a.e.cfg.MinFeeIncreaseDistance,
		))
	}
	if props.FeeRatePpm == 0 {
		return types.Action{}, false
	}
	return a.action(0, fmt.Sprintf(
		"no outgoing forward in the last %g days with balance %d at distance %.2f; "+
			"dropping fee rate %d ppm to 0 to attract flow",
		a.e.cfg.Days, props.LocalBalance, a.view.balance.distance, props.FeeRatePpm,
	))
}

// maxIncrease walks the history from start towards older entries for as long
// as the balance stayed below bounds and returns the highest rate proposed
// by any outgoing forward in that stretch.
func (a *feeAnalysis) maxIncrease(start int, distance float64, now time.Time) (increaseEstimate, bool) {
	baseFee := a.view.channel.Properties.BaseFeeMsat
	raw := math.Abs(distance) - a.e.cfg.MinFeeIncreaseDistance

	var (
		best  increaseEstimate
		found bool
	)
	for _, change := range a.view.history[start:] {
		if !a.belowBounds(change.distance) {
			break
		}
		switch change.Kind {
		case stats.KindOutgoingForward:
		case stats.KindIncomingForward, stats.KindPayment:
			continue
		default:
			panic(unknownKind(change.Kind))
		}

		estimated := estimateFeeRate(change.BalanceChange, baseFee)
		elapsed := now.Sub(change.Time)
		emergency := elapsed <= a.e.cfg.FeeIncreaseEmergencyWindow
		fraction := raw
		if !emergency {
			fraction = raw * (days(elapsed) * a.e.cfg.FeeIncreaseMultiplier) / a.e.cfg.Days
		}
		rate := max(int64(math.Round(float64(estimated)*(1+fraction))), minIncreasedFeeRate)

		if !found || rate > best.rate {
			best = increaseEstimate{
				rate:      rate,
				estimated: estimated,
				fraction:  fraction,
				emergency: emergency,
				at:        change.Time,
			}
			found = true
		}
	}
	return best, found
}

// lastExit finds the most recent moment the channel left the below bounds
// state. exitIdx is the event that moved the balance out, belowIdx the
// newest entry that was still below bounds.
func (a *feeAnalysis) lastExit() (exitIdx, belowIdx int, ok bool) {
	for i, change := range a.view.history {
		if !a.belowBounds(change.distance) {
			continue
		}
		if i == 0 {
			return 0, 0, false
		}
		return i - 1, i, true
	}
	return 0, 0, false
}

func (a *feeAnalysis) decrease(base int64, since time.Time, evidence string) (types.Action, bool) {
	props := a.view.channel.Properties
	wait := a.e.cfg.FeeDecreaseWaitDays
	elapsed := days(a.now.Sub(since)) - wait
	if elapsed <= 0 {
		return types.Action{}, false
	}

	fraction := elapsed / (a.e.cfg.Days - wait)
	rate := max(int64(math.Round(float64(base)*(1-fraction))), 0)
	if rate >= props.FeeRatePpm {
		return types.Action{}, false
	}

	return a.action(rate, fmt.Sprintf(
		"%s; balance %d at distance %.2f is not below bounds, %.1f days past the %g day wait, decreasing by %.1f%%",
		evidence, props.LocalBalance, a.view.balance.distance, elapsed, wait, fraction*100,
	))
}

// upstreamIncrease raises the fee when most of the outflow of this channel
// is fed by channels that are themselves above bounds.
func (a *feeAnalysis) upstreamIncrease(estimated int64) (types.Action, bool) {
	props := a.view.channel.Properties
	ratio, contributors, ok := a.upstreamRatio()
	if !ok || ratio <= a.e.cfg.MinFeeIncreaseDistance {
		return types.Action{}, false
	}

	distance := a.view.balance.distance
	factor := 1 + (ratio-a.e.cfg.MinFeeIncreaseDistance)*math.Abs(distance)
	rate := min(int64(math.Round(float64(estimated)*factor)), a.e.cfg.MaxFeeRate)
	if rate <= props.FeeRatePpm {
		return types.Action{}, false
	}

	return a.action(rate, fmt.Sprintf(
		"balance %d at distance %.2f needs rebalancing; %d channels above bounds feed outflow with weighted ratio %.2f "+
			"(> %.2f); last forward paid ~%d ppm",
		props.LocalBalance, distance, contributors, ratio, a.e.cfg.MinFeeIncreaseDistance, estimated,
	))
}

// upstreamRatio sums the incoming volume that continued into this channel
// from channels above bounds, weighted by their distance, and relates it to
// the outgoing volume of this channel since the earliest such inflow.
func (a *feeAnalysis) upstreamRatio() (float64, int, bool) {
	id := a.view.chanID()

	var (
		weighted     float64
		earliest     time.Time
		contributors int
	)
	for _, upID := range a.order {
		if upID == id {
			continue
		}
		up := a.mustView(upID)
		if up.balance.distance < a.e.cfg.MinFeeIncreaseDistance {
			continue
		}

		contributed := false
		for _, change := range up.history {
			switch change.Kind {
			case stats.KindIncomingForward:
				if change.OutgoingChanID != id {
					continue
				}
				weighted += float64(change.Amount) * up.balance.distance
				if earliest.IsZero() || change.Time.Before(earliest) {
					earliest = change.Time
				}
				contributed = true
			case stats.KindOutgoingForward, stats.KindPayment:
			default:
				panic(unknownKind(change.Kind))
			}
		}
		if contributed {
			contributors++
		}
	}
	if contributors == 0 {
		return 0, 0, false
	}

	var outflow float64
	for _, change := range a.view.history {
		switch change.Kind {
		case stats.KindOutgoingForward:
			if !change.Time.Before(earliest) {
				outflow -= float64(change.Amount)
			}
		case stats.KindIncomingForward, stats.KindPayment:
		default:
			panic(unknownKind(change.Kind))
		}
	}
	if outflow <= 0 {
		return 0, contributors, false
	}

	return weighted / outflow, contributors, true
}

func (a *feeAnalysis) mustView(id uint64) *channelView {
	view, ok := a.views[id]
	if !ok {
		panic(fmt.Sprintf("engine: no balance analysis for channel %d", id))
	}
	return view
}

func (a *feeAnalysis) action(rate int64, reason string) (types.Action, bool) {
	props := a.view.channel.Properties
	return types.Action{
		Entity:   types.EntityChannel,
		ChanID:   props.ChanID,
		Alias:    props.Alias,
		Priority: feePriority,
		Variable: types.VariableFeeRate,
		Actual:   props.FeeRatePpm,
		Target:   rate,
		Max:      a.e.cfg.MaxFeeRate,
		Reason:   reason,
	}, true
}

// estimateFeeRate derives the proportional fee rate in ppm a forward paid,
// assuming the current base fee applied.
func estimateFeeRate(change stats.BalanceChange, baseFee lnwire.MilliSatoshi) int64 {
	if change.AmountMsat == 0 {
		return 0
	}
	proportional := float64(change.FeeMsat) - float64(baseFee)
	return int64(math.Round(proportional / float64(change.AmountMsat) * 1_000_000))
}

func days(d time.Duration) float64 {
	return d.Hours() / 24
}

func increaseKind(emergency bool) string {
	if emergency {
		return "recent forward, full increase"
	}
	return "scaled by time since forward"
}

func unknownKind(kind stats.ChangeKind) string {
	return fmt.Sprintf("engine: unknown balance change kind %s", kind)
}
