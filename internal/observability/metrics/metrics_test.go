package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routing-advisor/node-advisor/internal/types"
)

func TestRecordRecommendedActions(t *testing.T) {
	RecordRecommendedActions([]types.Action{
		{Entity: types.EntityNode, Variable: types.VariableBalance},
		{Entity: types.EntityChannel, Variable: types.VariableBalance},
		{Entity: types.EntityChannel, Variable: types.VariableFeeRate},
		{Entity: types.EntityChannel, Variable: types.VariableFeeRate},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(recommendedActionsGauge.WithLabelValues("node", "balance")))
	assert.Equal(t, 2.0, testutil.ToFloat64(recommendedActionsGauge.WithLabelValues("channel", "feeRate")))

	RecordRecommendedActions(nil)
	assert.Equal(t, 0, testutil.CollectAndCount(recommendedActionsGauge))
}

func TestRecordPollerDuration(t *testing.T) {
	failing := errors.New("lnd unavailable")
	poll := RecordPollerDuration("test", func(ctx context.Context) error {
		return failing
	})
	require.ErrorIs(t, poll(context.Background()), failing)

	ok := RecordPollerDuration("test", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, ok(context.Background()))

	assert.Equal(t, 2, testutil.CollectAndCount(pollerDurationHistogram, "poller_duration_seconds"))
}

func TestIncAdvisoryRuns(t *testing.T) {
	before := testutil.ToFloat64(advisoryRunsCounter.WithLabelValues("error"))
	IncAdvisoryRuns(true)
	assert.Equal(t, before+1, testutil.ToFloat64(advisoryRunsCounter.WithLabelValues("error")))
}
