package db

import (
	"context"
	"time"

	"github.com/routing-advisor/node-advisor/internal/db/model"
	"github.com/routing-advisor/node-advisor/internal/observability/metrics"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) SaveRecommendationRun(ctx context.Context, run *model.RecommendationRunDocument) error {
	return d.run("SaveRecommendationRun", func() error {
		return d.db.SaveRecommendationRun(ctx, run)
	})
}

func (d *DbWithMetrics) GetLatestRecommendationRun(ctx context.Context) (result *model.RecommendationRunDocument, err error) {
	//nolint:errcheck
	d.run("GetLatestRecommendationRun", func() error {
		result, err = d.db.GetLatestRecommendationRun(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) FindRecommendationRuns(ctx context.Context, limit int64) (result []*model.RecommendationRunDocument, err error) {
	//nolint:errcheck
	d.run("FindRecommendationRuns", func() error {
		result, err = d.db.FindRecommendationRuns(ctx, limit)
		return err
	})
	return
}

// run records the latency and outcome of f under method and returns its error.
func (d *DbWithMetrics) run(method string, f func() error) error {
	startTime := time.Now()
	err := f()
	duration := time.Since(startTime)

	metrics.RecordDbLatency(duration, method, err != nil)
	return err
}
