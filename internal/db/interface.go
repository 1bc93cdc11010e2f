package db

import (
	"context"

	"github.com/routing-advisor/node-advisor/internal/db/model"
)

type DbInterface interface {
	Ping(ctx context.Context) error
	// SaveRecommendationRun returns a DuplicateKeyError if a run with the
	// same id is already stored.
	SaveRecommendationRun(ctx context.Context, run *model.RecommendationRunDocument) error
	// GetLatestRecommendationRun returns a NotFoundError if nothing was
	// recorded yet.
	GetLatestRecommendationRun(ctx context.Context) (*model.RecommendationRunDocument, error)
	// FindRecommendationRuns lists runs newest first. A limit outside of
	// (0, max-runs-limit] is replaced by max-runs-limit.
	FindRecommendationRuns(ctx context.Context, limit int64) ([]*model.RecommendationRunDocument, error)
}
