package lndclient

import (
	"context"
	"time"

	"github.com/routing-advisor/node-advisor/internal/types"
)

// LndInterface is the read-only subset of lnd the advisor depends on.
type LndInterface interface {
	GetInfo(ctx context.Context) (*NodeInfo, error)
	// ListChannels returns all open channels together with the local
	// forwarding policy.
	ListChannels(ctx context.Context) ([]types.Channel, error)
	// ForwardingHistory returns the settled forwards in [start, end].
	ForwardingHistory(ctx context.Context, start, end time.Time) ([]types.Forward, error)
	// ListPayments returns the succeeded attempts of payments created in
	// [start, end], one entry per attempt.
	ListPayments(ctx context.Context, start, end time.Time) ([]types.Payment, error)
}

type NodeInfo struct {
	Pubkey        string
	Alias         string
	BlockHeight   uint32
	SyncedToChain bool
}
