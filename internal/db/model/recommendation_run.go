package model

import (
	"time"

	"github.com/routing-advisor/node-advisor/internal/types"
)

const RecommendationRunsCollection = "recommendation_runs"

// RecommendationRunDocument is one advisory run with its ranked actions.
type RecommendationRunDocument struct {
	RunID        string           `bson:"_id"`
	EvaluatedAt  time.Time        `bson:"evaluated_at"`
	ChannelCount int              `bson:"channel_count"`
	Actions      []ActionDocument `bson:"actions"`
}

type ActionDocument struct {
	Entity   string  `bson:"entity"`
	ChanID   uint64  `bson:"chan_id,omitempty"`
	Alias    string  `bson:"alias,omitempty"`
	Priority float64 `bson:"priority"`
	Variable string  `bson:"variable"`
	Actual   int64   `bson:"actual"`
	Target   int64   `bson:"target"`
	Max      int64   `bson:"max"`
	Reason   string  `bson:"reason"`
}

func NewRecommendationRunDocument(
	runID string, evaluatedAt time.Time, channelCount int, actions []types.Action,
) *RecommendationRunDocument {
	docs := make([]ActionDocument, 0, len(actions))
	for _, a := range actions {
		docs = append(docs, ActionDocument{
			Entity:   a.Entity.String(),
			ChanID:   a.ChanID,
			Alias:    a.Alias,
			Priority: a.Priority,
			Variable: a.Variable.String(),
			Actual:   a.Actual,
			Target:   a.Target,
			Max:      a.Max,
			Reason:   a.Reason,
		})
	}

	return &RecommendationRunDocument{
		RunID: runID,
		// mongo stores milliseconds
		EvaluatedAt:  evaluatedAt.UTC().Truncate(time.Millisecond),
		ChannelCount: channelCount,
		Actions:      docs,
	}
}

func (d *RecommendationRunDocument) ToActions() []types.Action {
	actions := make([]types.Action, 0, len(d.Actions))
	for _, doc := range d.Actions {
		actions = append(actions, types.Action{
			Entity:   types.Entity(doc.Entity),
			ChanID:   doc.ChanID,
			Alias:    doc.Alias,
			Priority: doc.Priority,
			Variable: types.Variable(doc.Variable),
			Actual:   doc.Actual,
			Target:   doc.Target,
			Max:      doc.Max,
			Reason:   doc.Reason,
		})
	}
	return actions
}
