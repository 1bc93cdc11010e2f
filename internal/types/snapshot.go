package types

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
)

// DefaultWindowDays is the look-back window used when none is configured.
const DefaultWindowDays = 14

// Channel holds the properties of a currently open channel.
type Channel struct {
	ChanID       uint64
	RemotePubkey string
	Alias        string
	Capacity     btcutil.Amount
	LocalBalance btcutil.Amount
	BaseFeeMsat  lnwire.MilliSatoshi
	FeeRatePpm   int64
}

// Forward is a settled forwarding event routed through two of our channels.
type Forward struct {
	Timestamp  time.Time
	ChanIDIn   uint64
	ChanIDOut  uint64
	AmtInMsat  lnwire.MilliSatoshi
	AmtOutMsat lnwire.MilliSatoshi
	FeeMsat    lnwire.MilliSatoshi
}

// Tokens returns the forwarded amount in satoshis.
func (f Forward) Tokens() btcutil.Amount {
	return f.AmtOutMsat.ToSatoshis()
}

// Fee returns the earned fee in satoshis.
func (f Forward) Fee() btcutil.Amount {
	return f.FeeMsat.ToSatoshis()
}

// PaymentHop is a single hop of a payment route.
type PaymentHop struct {
	ChanID           uint64
	AmtToForwardMsat lnwire.MilliSatoshi
	FeeMsat          lnwire.MilliSatoshi
}

// Payment is a confirmed payment attempt resolved to a route.
type Payment struct {
	PaymentHash  string
	AttemptID    uint64
	SettledAt    time.Time
	TotalAmtMsat lnwire.MilliSatoshi
	Hops         []PaymentHop
}

// Snapshot is a complete, internally consistent view of the node used for
// one advisory pass.
type Snapshot struct {
	TakenAt     time.Time
	WindowStart time.Time
	Channels    map[uint64]Channel
	Forwards    []Forward
	Payments    []Payment
}
