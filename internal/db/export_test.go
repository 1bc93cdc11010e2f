//go:build integration

package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/routing-advisor/node-advisor/internal/db/model"
)

func (db *Database) DeleteAllRecommendationRuns(ctx context.Context) error {
	_, err := db.collection(model.RecommendationRunsCollection).DeleteMany(ctx, bson.M{})
	return err
}
