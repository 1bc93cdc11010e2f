package stats

import (
	"cmp"
	"slices"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/routing-advisor/node-advisor/internal/types"
)

// ForwardAggregate holds running totals of forwards in one direction.
type ForwardAggregate struct {
	Count       int
	MaxTokens   btcutil.Amount
	TotalTokens btcutil.Amount
}

func (a *ForwardAggregate) add(tokens, total btcutil.Amount) {
	a.Count++
	a.MaxTokens = max(a.MaxTokens, tokens)
	a.TotalTokens += total
}

// ChannelStatistics summarizes the flow history of a single open channel.
type ChannelStatistics struct {
	Properties types.Channel
	Incoming   ForwardAggregate
	Outgoing   ForwardAggregate

	history   []BalanceChange
	finalized bool
}

func newChannelStatistics(props types.Channel) *ChannelStatistics {
	return &ChannelStatistics{Properties: props}
}

func (c *ChannelStatistics) addIncomingForward(f types.Forward) {
	if c.finalized {
		panic("stats: incoming forward added to finalized channel statistics")
	}
	arrived := f.Tokens() + f.Fee()
	c.Incoming.add(f.Tokens(), arrived)
	c.history = append(c.history, newIncomingForward(
		f.Timestamp, arrived, f.AmtOutMsat+f.FeeMsat, f.FeeMsat, f.ChanIDOut,
	))
}

func (c *ChannelStatistics) addOutgoingForward(f types.Forward) {
	if c.finalized {
		panic("stats: outgoing forward added to finalized channel statistics")
	}
	c.Outgoing.add(f.Tokens(), f.Tokens())
	c.history = append(c.history, newOutgoingForward(
		f.Timestamp, -f.Tokens(), f.AmtOutMsat, f.FeeMsat,
	))
}

func (c *ChannelStatistics) addPayment(p types.Payment, delta btcutil.Amount) {
	if c.finalized {
		panic("stats: payment added to finalized channel statistics")
	}
	amountMsat := p.TotalAmtMsat
	if delta > 0 {
		amountMsat = p.Hops[len(p.Hops)-1].AmtToForwardMsat
	}
	c.history = append(c.history, newPayment(p.SettledAt, delta, amountMsat))
}

// finalize orders the history newest-first and fills in the balance after
// each event by walking back from the current local balance.
func (c *ChannelStatistics) finalize() {
	slices.SortStableFunc(c.history, compareNewestFirst)

	balance := c.Properties.LocalBalance
	for i := range c.history {
		c.history[i].Balance = balance
		balance -= c.history[i].Amount
	}
	c.finalized = true
}

// compareNewestFirst orders by descending time. Ties are broken on the
// remaining fields so that the order does not depend on insertion order.
func compareNewestFirst(a, b BalanceChange) int {
	if c := b.Time.Compare(a.Time); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Amount, b.Amount); c != 0 {
		return c
	}
	if c := cmp.Compare(a.FeeMsat, b.FeeMsat); c != 0 {
		return c
	}
	return cmp.Compare(a.OutgoingChanID, b.OutgoingChanID)
}

// ChanID returns the channel id.
func (c *ChannelStatistics) ChanID() uint64 {
	return c.Properties.ChanID
}

// History returns the balance changes ordered newest to oldest. The returned
// slice is a copy.
func (c *ChannelStatistics) History() []BalanceChange {
	if !c.finalized {
		c.finalize()
	}
	return slices.Clone(c.history)
}

// LastOutgoingForward returns the most recent outgoing forward, if any.
func (c *ChannelStatistics) LastOutgoingForward() (BalanceChange, bool) {
	if !c.finalized {
		c.finalize()
	}
	for _, change := range c.history {
		if change.Kind == KindOutgoingForward {
			return change, true
		}
	}
	return BalanceChange{}, false
}
