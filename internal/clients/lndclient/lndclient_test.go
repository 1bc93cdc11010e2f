package lndclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/routing-advisor/node-advisor/internal/config"
)

const (
	ourPubkey  = "02aaaa"
	peerPubkey = "03bbbb"
)

// fakeLightning serves canned lnd responses. Methods that are not overridden
// panic through the nil embedded interface.
type fakeLightning struct {
	lnrpc.LightningClient

	mu       sync.Mutex
	channels []*lnrpc.Channel
	edges    map[uint64]*lnrpc.ChannelEdge
	forwards []*lnrpc.ForwardingEvent
	payments []*lnrpc.Payment
	// overlap makes every page repeat the last event of the previous one.
	overlap bool
	// failures is the number of calls that fail with err before succeeding.
	failures int
	err      error
	calls    int
}

func (f *fakeLightning) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return f.err
	}
	return nil
}

func (f *fakeLightning) GetInfo(ctx context.Context, in *lnrpc.GetInfoRequest, opts ...grpc.CallOption) (*lnrpc.GetInfoResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &lnrpc.GetInfoResponse{IdentityPubkey: ourPubkey, Alias: "advisor", BlockHeight: 900_000, SyncedToChain: true}, nil
}

func (f *fakeLightning) ListChannels(ctx context.Context, in *lnrpc.ListChannelsRequest, opts ...grpc.CallOption) (*lnrpc.ListChannelsResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &lnrpc.ListChannelsResponse{Channels: f.channels}, nil
}

func (f *fakeLightning) GetChanInfo(ctx context.Context, in *lnrpc.ChanInfoRequest, opts ...grpc.CallOption) (*lnrpc.ChannelEdge, error) {
	edge, ok := f.edges[in.ChanId]
	if !ok {
		return nil, status.Error(codes.NotFound, "edge not found")
	}
	return edge, nil
}

func (f *fakeLightning) ForwardingHistory(ctx context.Context, in *lnrpc.ForwardingHistoryRequest, opts ...grpc.CallOption) (*lnrpc.ForwardingHistoryResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	start := min(int(in.IndexOffset), len(f.forwards))
	end := min(start+int(in.NumMaxEvents), len(f.forwards))
	last := uint32(end)
	if f.overlap && end-start > 1 {
		last--
	}
	return &lnrpc.ForwardingHistoryResponse{ForwardingEvents: f.forwards[start:end], LastOffsetIndex: last}, nil
}

func (f *fakeLightning) ListPayments(ctx context.Context, in *lnrpc.ListPaymentsRequest, opts ...grpc.CallOption) (*lnrpc.ListPaymentsResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	start := min(int(in.IndexOffset), len(f.payments))
	end := min(start+int(in.MaxPayments), len(f.payments))
	last := uint64(end)
	if f.overlap && end-start > 1 {
		last--
	}
	return &lnrpc.ListPaymentsResponse{Payments: f.payments[start:end], LastIndexOffset: last}, nil
}

func testConfig(pageSize uint32) *config.LndConfig {
	cfg := config.DefaultLndConfig()
	cfg.TLSCertPath = "unused"
	cfg.MacaroonPath = "unused"
	cfg.RetryInterval = time.Millisecond
	cfg.PageSize = pageSize
	return cfg
}

func forwardEvent(i int) *lnrpc.ForwardingEvent {
	ts := time.Date(2026, 3, 1, 0, i, 0, 0, time.UTC)
	return &lnrpc.ForwardingEvent{
		TimestampNs: uint64(ts.UnixNano()),
		ChanIdIn:    1,
		ChanIdOut:   2,
		AmtInMsat:   uint64(1_001_000 + i),
		AmtOutMsat:  uint64(1_000_000 + i),
		FeeMsat:     1_000,
	}
}

func TestListChannels(t *testing.T) {
	fake := &fakeLightning{
		channels: []*lnrpc.Channel{
			{ChanId: 1, RemotePubkey: peerPubkey, PeerAlias: "peer", Capacity: 1_000_000, LocalBalance: 400_000},
			{ChanId: 2, RemotePubkey: "03cccc", PeerAlias: "other", Capacity: 500_000, LocalBalance: 0},
		},
		edges: map[uint64]*lnrpc.ChannelEdge{
			1: {
				Node1Pub:    peerPubkey,
				Node2Pub:    ourPubkey,
				Node1Policy: &lnrpc.RoutingPolicy{FeeBaseMsat: 5, FeeRateMilliMsat: 5},
				Node2Policy: &lnrpc.RoutingPolicy{FeeBaseMsat: 1000, FeeRateMilliMsat: 250},
			},
			2: {
				Node1Pub:    ourPubkey,
				Node2Pub:    "03cccc",
				Node1Policy: &lnrpc.RoutingPolicy{FeeBaseMsat: 0, FeeRateMilliMsat: 100},
			},
		},
	}
	client := newLndClient(fake, testConfig(10))

	channels, err := client.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)

	assert.Equal(t, uint64(1), channels[0].ChanID)
	assert.Equal(t, "peer", channels[0].Alias)
	assert.Equal(t, btcutil.Amount(1_000_000), channels[0].Capacity)
	assert.Equal(t, btcutil.Amount(400_000), channels[0].LocalBalance)
	assert.Equal(t, lnwire.MilliSatoshi(1000), channels[0].BaseFeeMsat)
	assert.Equal(t, int64(250), channels[0].FeeRatePpm)

	assert.Equal(t, lnwire.MilliSatoshi(0), channels[1].BaseFeeMsat)
	assert.Equal(t, int64(100), channels[1].FeeRatePpm)

	fake.channels = append(fake.channels, &lnrpc.Channel{ChanId: 3, RemotePubkey: "03dddd"})
	_, err = client.ListChannels(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestForwardingHistory(t *testing.T) {
	events := make([]*lnrpc.ForwardingEvent, 0, 5)
	for i := range 5 {
		events = append(events, forwardEvent(i))
	}

	t.Run("paginates", func(t *testing.T) {
		fake := &fakeLightning{forwards: events}
		forwards, err := newLndClient(fake, testConfig(2)).ForwardingHistory(context.Background(), time.Time{}, time.Now())
		require.NoError(t, err)
		require.Len(t, forwards, 5)
		assert.Equal(t, 3, fake.calls)

		assert.Equal(t, time.Date(2026, 3, 1, 0, 4, 0, 0, time.UTC), forwards[4].Timestamp)
		assert.Equal(t, lnwire.MilliSatoshi(1_000_004), forwards[4].AmtOutMsat)
		assert.Equal(t, lnwire.MilliSatoshi(1_000), forwards[4].FeeMsat)
	})

	t.Run("drops duplicates of overlapping pages", func(t *testing.T) {
		fake := &fakeLightning{forwards: events, overlap: true}
		forwards, err := newLndClient(fake, testConfig(2)).ForwardingHistory(context.Background(), time.Time{}, time.Now())
		require.NoError(t, err)
		require.Len(t, forwards, 5)
		for i, fwd := range forwards {
			assert.Equal(t, lnwire.MilliSatoshi(1_000_000+i), fwd.AmtOutMsat)
		}
	})

	t.Run("falls back to second timestamps", func(t *testing.T) {
		fake := &fakeLightning{forwards: []*lnrpc.ForwardingEvent{{Timestamp: 1_700_000_000, ChanIdIn: 1, ChanIdOut: 2}}}
		forwards, err := newLndClient(fake, testConfig(2)).ForwardingHistory(context.Background(), time.Time{}, time.Now())
		require.NoError(t, err)
		require.Len(t, forwards, 1)
		assert.Equal(t, int64(1_700_000_000), forwards[0].Timestamp.Unix())
	})

	t.Run("retries transient failures", func(t *testing.T) {
		fake := &fakeLightning{forwards: events, failures: 2, err: status.Error(codes.Unavailable, "lnd starting")}
		forwards, err := newLndClient(fake, testConfig(10)).ForwardingHistory(context.Background(), time.Time{}, time.Now())
		require.NoError(t, err)
		assert.Len(t, forwards, 5)
		assert.Equal(t, 3, fake.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		fake := &fakeLightning{forwards: events, failures: 10, err: status.Error(codes.Unavailable, "lnd down")}
		_, err := newLndClient(fake, testConfig(10)).ForwardingHistory(context.Background(), time.Time{}, time.Now())
		require.Error(t, err)
		assert.Equal(t, 3, fake.calls)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		fake := &fakeLightning{forwards: events, failures: 1, err: status.Error(codes.PermissionDenied, "bad macaroon")}
		_, err := newLndClient(fake, testConfig(10)).ForwardingHistory(context.Background(), time.Time{}, time.Now())
		require.Error(t, err)
		assert.Equal(t, 1, fake.calls)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestListPayments(t *testing.T) {
	resolved := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	route := &lnrpc.Route{
		TotalAmtMsat: 50_010_000,
		Hops: []*lnrpc.Hop{
			{ChanId: 1, AmtToForwardMsat: 50_000_000, FeeMsat: 10_000},
			{ChanId: 9, AmtToForwardMsat: 50_000_000},
		},
	}
	fake := &fakeLightning{
		overlap: true,
		payments: []*lnrpc.Payment{
			{
				PaymentHash: "aa",
				Status:      lnrpc.Payment_SUCCEEDED,
				Htlcs: []*lnrpc.HTLCAttempt{
					{AttemptId: 1, Status: lnrpc.HTLCAttempt_FAILED, Route: route},
					{AttemptId: 2, Status: lnrpc.HTLCAttempt_SUCCEEDED, Route: route, ResolveTimeNs: resolved.UnixNano()},
					{AttemptId: 3, Status: lnrpc.HTLCAttempt_SUCCEEDED, Route: route, ResolveTimeNs: resolved.UnixNano()},
				},
			},
			{
				PaymentHash: "bb",
				Status:      lnrpc.Payment_FAILED,
				Htlcs:       []*lnrpc.HTLCAttempt{{AttemptId: 4, Status: lnrpc.HTLCAttempt_FAILED, Route: route}},
			},
			{
				PaymentHash: "cc",
				Status:      lnrpc.Payment_SUCCEEDED,
				Htlcs:       []*lnrpc.HTLCAttempt{{AttemptId: 5, Status: lnrpc.HTLCAttempt_SUCCEEDED, Route: route}},
			},
		},
	}

	payments, err := newLndClient(fake, testConfig(2)).ListPayments(context.Background(), time.Time{}, time.Now())
	require.NoError(t, err)
	require.Len(t, payments, 3)

	assert.Equal(t, "aa", payments[0].PaymentHash)
	assert.Equal(t, uint64(2), payments[0].AttemptID)
	assert.Equal(t, resolved, payments[0].SettledAt)
	assert.Equal(t, lnwire.MilliSatoshi(50_010_000), payments[0].TotalAmtMsat)
	require.Len(t, payments[0].Hops, 2)
	assert.Equal(t, uint64(9), payments[0].Hops[1].ChanID)
	assert.Equal(t, uint64(3), payments[1].AttemptID)
	assert.Equal(t, "cc", payments[2].PaymentHash)
}

func TestGetInfo(t *testing.T) {
	info, err := newLndClient(&fakeLightning{}, testConfig(10)).GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ourPubkey, info.Pubkey)
	assert.True(t, info.SyncedToChain)
}

func TestLocalPolicy(t *testing.T) {
	local := &lnrpc.RoutingPolicy{FeeRateMilliMsat: 1}
	remote := &lnrpc.RoutingPolicy{FeeRateMilliMsat: 2}

	assert.Same(t, local, localPolicy(&lnrpc.ChannelEdge{Node1Pub: peerPubkey, Node1Policy: remote, Node2Policy: local}, peerPubkey))
	assert.Same(t, local, localPolicy(&lnrpc.ChannelEdge{Node2Pub: peerPubkey, Node1Policy: local, Node2Policy: remote}, peerPubkey))
	assert.Nil(t, localPolicy(nil, peerPubkey))
}
