package stats

import (
	"fmt"
	"maps"
	"slices"

	"github.com/routing-advisor/node-advisor/internal/types"
)

// NodeStatistics maps each currently open channel to its statistics. It is
// immutable once returned by Aggregate.
type NodeStatistics struct {
	channels map[uint64]*ChannelStatistics
	ids      []uint64
}

// Aggregate folds all forwards and confirmed payments of the snapshot into
// per-channel ledgers. Records that reference a channel which is not open
// anymore are dropped.
func Aggregate(snapshot types.Snapshot) *NodeStatistics {
	channels := make(map[uint64]*ChannelStatistics, len(snapshot.Channels))
	for id, props := range snapshot.Channels {
		props.ChanID = id
		channels[id] = newChannelStatistics(props)
	}

	for _, fwd := range snapshot.Forwards {
		if in, ok := channels[fwd.ChanIDIn]; ok {
			in.addIncomingForward(fwd)
		}
		if out, ok := channels[fwd.ChanIDOut]; ok {
			out.addOutgoingForward(fwd)
		}
	}

	for _, pay := range snapshot.Payments {
		if len(pay.Hops) == 0 {
			continue
		}
		if exit, ok := channels[pay.Hops[0].ChanID]; ok {
			exit.addPayment(pay, -pay.TotalAmtMsat.ToSatoshis())
		}
		// A route that ends in one of our channels is a circular payment
		// that returned through that channel.
		if len(pay.Hops) > 1 {
			last := pay.Hops[len(pay.Hops)-1]
			if ret, ok := channels[last.ChanID]; ok {
				ret.addPayment(pay, last.AmtToForwardMsat.ToSatoshis())
			}
		}
	}

	for _, ch := range channels {
		ch.finalize()
	}

	return &NodeStatistics{
		channels: channels,
		ids:      slices.Sorted(maps.Keys(channels)),
	}
}

// Len returns the number of channels.
func (n *NodeStatistics) Len() int {
	return len(n.ids)
}

// IDs returns the channel ids in ascending order.
func (n *NodeStatistics) IDs() []uint64 {
	return slices.Clone(n.ids)
}

// Channel returns the statistics of a channel.
func (n *NodeStatistics) Channel(id uint64) (*ChannelStatistics, bool) {
	ch, ok := n.channels[id]
	return ch, ok
}

// MustChannel returns the statistics of a channel the caller knows to exist.
func (n *NodeStatistics) MustChannel(id uint64) *ChannelStatistics {
	ch, ok := n.channels[id]
	if !ok {
		panic(fmt.Sprintf("stats: channel %d is not part of the node statistics", id))
	}
	return ch
}

// Channels returns all channel statistics ordered by channel id.
func (n *NodeStatistics) Channels() []*ChannelStatistics {
	result := make([]*ChannelStatistics, 0, len(n.ids))
	for _, id := range n.ids {
		result = append(result, n.channels[id])
	}
	return result
}
