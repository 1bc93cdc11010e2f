package stats

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

// ChangeKind tags the variant of a BalanceChange.
type ChangeKind uint8

const (
	KindPayment ChangeKind = iota + 1
	KindIncomingForward
	KindOutgoingForward
)

func (k ChangeKind) String() string {
	switch k {
	case KindPayment:
		return "payment"
	case KindIncomingForward:
		return "incoming_forward"
	case KindOutgoingForward:
		return "outgoing_forward"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// BalanceChange is a single event that moved the local balance of a channel.
//
// Amount is the signed delta applied to the local balance. AmountMsat is the
// absolute amount in millisatoshis: the forwarded amount for outgoing
// forwards, the arrived amount for incoming forwards and payments. FeeMsat
// and OutgoingChanID are only set for forwards.
//
// Balance is the local balance right after the event. It is filled in once,
// when the owning ChannelStatistics is finalized, and never changes after.
type BalanceChange struct {
	Kind           ChangeKind
	Time           time.Time
	Amount         btcutil.Amount
	AmountMsat     lnwire.MilliSatoshi
	FeeMsat        lnwire.MilliSatoshi
	OutgoingChanID uint64
	Balance        btcutil.Amount
}

func newPayment(t time.Time, amount btcutil.Amount, amountMsat lnwire.MilliSatoshi) BalanceChange {
	return BalanceChange{
		Kind:       KindPayment,
		Time:       t,
		Amount:     amount,
		AmountMsat: amountMsat,
	}
}

func newIncomingForward(
	t time.Time, amount btcutil.Amount, amountMsat, feeMsat lnwire.MilliSatoshi, outgoingChanID uint64,
) BalanceChange {
	return BalanceChange{
		Kind:           KindIncomingForward,
		Time:           t,
		Amount:         amount,
		AmountMsat:     amountMsat,
		FeeMsat:        feeMsat,
		OutgoingChanID: outgoingChanID,
	}
}

func newOutgoingForward(
	t time.Time, amount btcutil.Amount, amountMsat, feeMsat lnwire.MilliSatoshi,
) BalanceChange {
	return BalanceChange{
		Kind:       KindOutgoingForward,
		Time:       t,
		Amount:     amount,
		AmountMsat: amountMsat,
		FeeMsat:    feeMsat,
	}
}

// Fee returns the fee earned by a forward in satoshis.
func (c BalanceChange) Fee() btcutil.Amount {
	return c.FeeMsat.ToSatoshis()
}

// BalanceBefore returns the local balance right before the event.
func (c BalanceChange) BalanceBefore() btcutil.Amount {
	return c.Balance - c.Amount
}
