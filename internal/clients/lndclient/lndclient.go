package lndclient

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/routing-advisor/node-advisor/internal/config"
	"github.com/routing-advisor/node-advisor/internal/types"
)

const maxGRPCMsgSize = 32 * 1024 * 1024

type macaroonCredential struct {
	macaroon string
}

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.macaroon}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

type LndClient struct {
	conn   *grpc.ClientConn
	client lnrpc.LightningClient
	cfg    *config.LndConfig
}

// NewLndClient sets up a gRPC connection to lnd authenticated with the
// configured TLS certificate and macaroon. The connection is established
// lazily on the first call.
func NewLndClient(cfg *config.LndConfig) (*LndClient, error) {
	tlsCert, err := os.ReadFile(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lnd tls cert: %w", err)
	}
	certPool := x509.NewCertPool()
	if ok := certPool.AppendCertsFromPEM(tlsCert); !ok {
		return nil, errors.New("failed to parse lnd tls cert")
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lnd macaroon: %w", err)
	}

	conn, err := grpc.NewClient(cfg.GRPCHost,
		grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(certPool, "")),
		grpc.WithPerRPCCredentials(macaroonCredential{hex.EncodeToString(macBytes)}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxGRPCMsgSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lnd grpc client: %w", err)
	}

	c := newLndClient(lnrpc.NewLightningClient(conn), cfg)
	c.conn = conn
	return c, nil
}

func newLndClient(client lnrpc.LightningClient, cfg *config.LndConfig) *LndClient {
	return &LndClient{client: client, cfg: cfg}
}

func (c *LndClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *LndClient) GetInfo(ctx context.Context) (*NodeInfo, error) {
	resp, err := clientCallWithRetry(ctx, c.cfg, func(ctx context.Context) (*lnrpc.GetInfoResponse, error) {
		return c.client.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get node info: %w", err)
	}

	return &NodeInfo{
		Pubkey:        resp.IdentityPubkey,
		Alias:         resp.Alias,
		BlockHeight:   resp.BlockHeight,
		SyncedToChain: resp.SyncedToChain,
	}, nil
}

func (c *LndClient) ListChannels(ctx context.Context) ([]types.Channel, error) {
	resp, err := clientCallWithRetry(ctx, c.cfg, func(ctx context.Context) (*lnrpc.ListChannelsResponse, error) {
		return c.client.ListChannels(ctx, &lnrpc.ListChannelsRequest{PeerAliasLookup: true})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	channels := make([]types.Channel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		if ch == nil {
			continue
		}

		edge, err := clientCallWithRetry(ctx, c.cfg, func(ctx context.Context) (*lnrpc.ChannelEdge, error) {
			return c.client.GetChanInfo(ctx, &lnrpc.ChanInfoRequest{ChanId: ch.ChanId})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of channel %d: %w", ch.ChanId, err)
		}

		channel := types.Channel{
			ChanID:       ch.ChanId,
			RemotePubkey: ch.RemotePubkey,
			Alias:        ch.PeerAlias,
			Capacity:     btcutil.Amount(ch.Capacity),
			LocalBalance: btcutil.Amount(ch.LocalBalance),
		}
		if policy := localPolicy(edge, ch.RemotePubkey); policy != nil {
			channel.BaseFeeMsat = lnwire.MilliSatoshi(policy.FeeBaseMsat)
			channel.FeeRatePpm = policy.FeeRateMilliMsat
		} else {
			log.Ctx(ctx).Warn().Uint64("chan_id", ch.ChanId).Msg("channel has no local policy yet")
		}
		channels = append(channels, channel)
	}

	return channels, nil
}

// localPolicy picks our side of the channel edge, the one not announced by
// the remote peer.
func localPolicy(edge *lnrpc.ChannelEdge, remotePubkey string) *lnrpc.RoutingPolicy {
	if edge == nil {
		return nil
	}
	if edge.Node1Pub == remotePubkey {
		return edge.Node2Policy
	}
	return edge.Node1Policy
}

type forwardKey struct {
	timestampNs int64
	chanIn      uint64
	chanOut     uint64
	amtInMsat   uint64
	amtOutMsat  uint64
}

func (c *LndClient) ForwardingHistory(ctx context.Context, start, end time.Time) ([]types.Forward, error) {
	var (
		forwards []types.Forward
		seen     = make(map[forwardKey]struct{})
		offset   uint32
	)

	for {
		req := &lnrpc.ForwardingHistoryRequest{
			StartTime:    unixSeconds(start),
			EndTime:      unixSeconds(end),
			IndexOffset:  offset,
			NumMaxEvents: c.cfg.PageSize,
		}
		resp, err := clientCallWithRetry(ctx, c.cfg, func(ctx context.Context) (*lnrpc.ForwardingHistoryResponse, error) {
			return c.client.ForwardingHistory(ctx, req)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get forwarding history at offset %d: %w", offset, err)
		}
		if len(resp.ForwardingEvents) == 0 {
			break
		}

		for _, evt := range resp.ForwardingEvents {
			if evt == nil {
				continue
			}
			fwd := toForward(evt)
			key := forwardKey{
				timestampNs: fwd.Timestamp.UnixNano(),
				chanIn:      evt.ChanIdIn,
				chanOut:     evt.ChanIdOut,
				amtInMsat:   evt.AmtInMsat,
				amtOutMsat:  evt.AmtOutMsat,
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			forwards = append(forwards, fwd)
		}

		if resp.LastOffsetIndex <= offset || len(resp.ForwardingEvents) < int(c.cfg.PageSize) {
			break
		}
		offset = resp.LastOffsetIndex
	}

	log.Ctx(ctx).Debug().Int("forward_count", len(forwards)).Msg("fetched forwarding history")
	return forwards, nil
}

func toForward(evt *lnrpc.ForwardingEvent) types.Forward {
	ts := time.Unix(int64(evt.Timestamp), 0)
	if evt.TimestampNs != 0 {
		ts = time.Unix(0, int64(evt.TimestampNs))
	}
	return types.Forward{
		Timestamp:  ts.UTC(),
		ChanIDIn:   evt.ChanIdIn,
		ChanIDOut:  evt.ChanIdOut,
		AmtInMsat:  lnwire.MilliSatoshi(evt.AmtInMsat),
		AmtOutMsat: lnwire.MilliSatoshi(evt.AmtOutMsat),
		FeeMsat:    lnwire.MilliSatoshi(evt.FeeMsat),
	}
}

type attemptKey struct {
	paymentHash string
	attemptID   uint64
}

func (c *LndClient) ListPayments(ctx context.Context, start, end time.Time) ([]types.Payment, error) {
	var (
		payments []types.Payment
		seen     = make(map[attemptKey]struct{})
		offset   uint64
	)

	for {
		req := &lnrpc.ListPaymentsRequest{
			IncludeIncomplete: false,
			IndexOffset:       offset,
			MaxPayments:       uint64(c.cfg.PageSize),
			CreationDateStart: unixSeconds(start),
			CreationDateEnd:   unixSeconds(end),
		}
		resp, err := clientCallWithRetry(ctx, c.cfg, func(ctx context.Context) (*lnrpc.ListPaymentsResponse, error) {
			return c.client.ListPayments(ctx, req)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list payments at offset %d: %w", offset, err)
		}
		if len(resp.Payments) == 0 {
			break
		}

		for _, pay := range resp.Payments {
			if pay == nil || pay.Status != lnrpc.Payment_SUCCEEDED {
				continue
			}
			for _, htlc := range pay.Htlcs {
				if htlc == nil || htlc.Status != lnrpc.HTLCAttempt_SUCCEEDED || htlc.Route == nil {
					continue
				}
				key := attemptKey{paymentHash: pay.PaymentHash, attemptID: htlc.AttemptId}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				payments = append(payments, toPayment(pay.PaymentHash, htlc))
			}
		}

		if resp.LastIndexOffset <= offset || len(resp.Payments) < int(c.cfg.PageSize) {
			break
		}
		offset = resp.LastIndexOffset
	}

	log.Ctx(ctx).Debug().Int("attempt_count", len(payments)).Msg("fetched payments")
	return payments, nil
}

func toPayment(hash string, htlc *lnrpc.HTLCAttempt) types.Payment {
	hops := make([]types.PaymentHop, 0, len(htlc.Route.Hops))
	for _, hop := range htlc.Route.Hops {
		if hop == nil {
			continue
		}
		hops = append(hops, types.PaymentHop{
			ChanID:           hop.ChanId,
			AmtToForwardMsat: lnwire.MilliSatoshi(hop.AmtToForwardMsat),
			FeeMsat:          lnwire.MilliSatoshi(hop.FeeMsat),
		})
	}
	return types.Payment{
		PaymentHash:  hash,
		AttemptID:    htlc.AttemptId,
		SettledAt:    time.Unix(0, htlc.ResolveTimeNs).UTC(),
		TotalAmtMsat: lnwire.MilliSatoshi(htlc.Route.TotalAmtMsat),
		Hops:         hops,
	}
}

// clientCallWithRetry runs call with a per attempt timeout and retries it
// while lnd reports a transient failure.
func clientCallWithRetry[T any](
	ctx context.Context, cfg *config.LndConfig, call func(ctx context.Context) (*T, error),
) (*T, error) {
	return retry.DoWithData(
		func() (*T, error) {
			callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
			return call(callCtx)
		},
		retry.Context(ctx),
		retry.Attempts(cfg.MaxRetryTimes),
		retry.Delay(cfg.RetryInterval),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", cfg.MaxRetryTimes).
				Err(err).
				Msg("failed to call lnd")
		}),
	)
}

func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func unixSeconds(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
