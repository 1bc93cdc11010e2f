package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/routing-advisor/node-advisor/internal/db/model"
)

func (db *Database) SaveRecommendationRun(ctx context.Context, run *model.RecommendationRunDocument) error {
	_, err := db.collection(model.RecommendationRunsCollection).InsertOne(ctx, run)
	if err != nil {
		var writeErr mongo.WriteException
		if errors.As(err, &writeErr) {
			for _, e := range writeErr.WriteErrors {
				if mongo.IsDuplicateKeyError(e) {
					return &DuplicateKeyError{
						Key:     run.RunID,
						Message: "recommendation run already exists",
					}
				}
			}
		}
		return err
	}
	return nil
}

func (db *Database) GetLatestRecommendationRun(ctx context.Context) (*model.RecommendationRunDocument, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "evaluated_at", Value: -1}})

	var run model.RecommendationRunDocument
	err := db.collection(model.RecommendationRunsCollection).
		FindOne(ctx, bson.M{}, opts).
		Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{
				Key:     model.RecommendationRunsCollection,
				Message: "no recommendation run recorded",
			}
		}
		return nil, err
	}
	return &run, nil
}

func (db *Database) FindRecommendationRuns(ctx context.Context, limit int64) ([]*model.RecommendationRunDocument, error) {
	if limit <= 0 || limit > db.cfg.MaxRunsLimit {
		limit = db.cfg.MaxRunsLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "evaluated_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := db.collection(model.RecommendationRunsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find recommendation runs: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []*model.RecommendationRunDocument
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("failed to decode recommendation runs: %w", err)
	}
	return runs, nil
}
