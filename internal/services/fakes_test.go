package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/routing-advisor/node-advisor/internal/clients/lndclient"
	"github.com/routing-advisor/node-advisor/internal/db/model"
	"github.com/routing-advisor/node-advisor/internal/types"
)

type fetchWindow struct {
	start, end time.Time
}

type fakeLnd struct {
	mu       sync.Mutex
	channels []types.Channel
	forwards []types.Forward
	payments []types.Payment
	err      error
	windows  []fetchWindow
}

var _ lndclient.LndInterface = (*fakeLnd)(nil)

func (f *fakeLnd) GetInfo(context.Context) (*lndclient.NodeInfo, error) {
	return &lndclient.NodeInfo{Alias: "fake", SyncedToChain: true}, nil
}

func (f *fakeLnd) ListChannels(context.Context) ([]types.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.channels), nil
}

func (f *fakeLnd) ForwardingHistory(_ context.Context, start, end time.Time) ([]types.Forward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, fetchWindow{start, end})
	return slices.Clone(f.forwards), nil
}

func (f *fakeLnd) ListPayments(context.Context, time.Time, time.Time) ([]types.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.payments), nil
}

func (f *fakeLnd) setLocalBalance(chanID uint64, local btcutil.Amount) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		if f.channels[i].ChanID == chanID {
			f.channels[i].LocalBalance = local
		}
	}
}

type fakeDb struct {
	mu      sync.Mutex
	runs    []*model.RecommendationRunDocument
	saveErr error
}

func (d *fakeDb) Ping(context.Context) error {
	return nil
}

func (d *fakeDb) SaveRecommendationRun(_ context.Context, run *model.RecommendationRunDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveErr != nil {
		return d.saveErr
	}
	d.runs = append(d.runs, run)
	return nil
}

func (d *fakeDb) GetLatestRecommendationRun(context.Context) (*model.RecommendationRunDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.runs) == 0 {
		return nil, fmt.Errorf("no runs")
	}
	return d.runs[len(d.runs)-1], nil
}

func (d *fakeDb) FindRecommendationRuns(_ context.Context, limit int64) ([]*model.RecommendationRunDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	runs := slices.Clone(d.runs)
	slices.Reverse(runs)
	if int64(len(runs)) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (d *fakeDb) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.runs)
}

func (d *fakeDb) last() *model.RecommendationRunDocument {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.runs) == 0 {
		return nil
	}
	return d.runs[len(d.runs)-1]
}
