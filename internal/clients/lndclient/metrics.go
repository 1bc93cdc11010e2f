package lndclient

import (
	"context"
	"time"

	"github.com/routing-advisor/node-advisor/internal/observability/metrics"
	"github.com/routing-advisor/node-advisor/internal/types"
)

type lndClientWithMetrics struct {
	lnd LndInterface
}

func NewLndClientWithMetrics(lnd LndInterface) LndInterface {
	return &lndClientWithMetrics{lnd: lnd}
}

func (l *lndClientWithMetrics) GetInfo(ctx context.Context) (*NodeInfo, error) {
	return runLndClientMethodWithMetrics("GetInfo", func() (*NodeInfo, error) {
		return l.lnd.GetInfo(ctx)
	})
}

func (l *lndClientWithMetrics) ListChannels(ctx context.Context) ([]types.Channel, error) {
	return runLndClientMethodWithMetrics("ListChannels", func() ([]types.Channel, error) {
		return l.lnd.ListChannels(ctx)
	})
}

func (l *lndClientWithMetrics) ForwardingHistory(ctx context.Context, start, end time.Time) ([]types.Forward, error) {
	return runLndClientMethodWithMetrics("ForwardingHistory", func() ([]types.Forward, error) {
		return l.lnd.ForwardingHistory(ctx, start, end)
	})
}

func (l *lndClientWithMetrics) ListPayments(ctx context.Context, start, end time.Time) ([]types.Payment, error) {
	return runLndClientMethodWithMetrics("ListPayments", func() ([]types.Payment, error) {
		return l.lnd.ListPayments(ctx, start, end)
	})
}

func runLndClientMethodWithMetrics[T any](method string, f func() (T, error)) (T, error) {
	startTime := time.Now()
	v, err := f()
	duration := time.Since(startTime)

	metrics.RecordLndClientLatency(duration, method, err != nil)
	return v, err
}
