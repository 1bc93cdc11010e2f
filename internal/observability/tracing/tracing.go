package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type runID struct{}

// InjectRunID tags ctx and its logger with a fresh advisory run id.
func InjectRunID(ctx context.Context) context.Context {
	id := uuid.New().String()
	logger := log.Ctx(ctx).With().Str("runId", id).Logger()
	return context.WithValue(logger.WithContext(ctx), runID{}, id)
}

// RunID returns the run id injected into ctx, if any.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runID{}).(string)
	return id, ok
}
