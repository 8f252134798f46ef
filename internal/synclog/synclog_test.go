package synclog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryLogFailuresUseLatestOutcome(t *testing.T) {
	log := NewMemoryLog(10)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, Entry{OrderID: 1, Operation: OpCreate, Outcome: OutcomeFailed}))
	require.NoError(t, log.Record(ctx, Entry{OrderID: 2, Operation: OpCreate, Outcome: OutcomeManualAction}))
	require.NoError(t, log.Record(ctx, Entry{OrderID: 1, Operation: OpCreate, Outcome: OutcomeCreated, SalesOrderID: "9"}))
	require.NoError(t, log.Record(ctx, Entry{OrderID: 3, Operation: OpStatus, Outcome: OutcomeFailed}))

	failures, err := log.Failures(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	require.EqualValues(t, 3, failures[0].OrderID)
	require.EqualValues(t, 2, failures[1].OrderID)

	history, err := log.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, OutcomeCreated, history[0].Outcome)
	require.False(t, history[0].CreatedAt.IsZero())
}

func TestMemoryLogCapacity(t *testing.T) {
	log := NewMemoryLog(2)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, log.Record(ctx, Entry{OrderID: i, Outcome: OutcomeFailed}))
	}
	failures, err := log.Failures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	require.EqualValues(t, 3, failures[0].OrderID)
}
