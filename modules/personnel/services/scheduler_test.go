package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_JobsFollowOrganisationFlags(t *testing.T) {
	t.Parallel()

	org := testOrg()
	org.Bulk, org.Delta = true, true
	fx := newOrchestratorFixture(t, org)

	s := NewScheduler(fx.orch, ScheduleOptions{BulkInterval: time.Hour, DeltaInterval: time.Minute, RetryInterval: time.Hour})
	jobs := s.jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, RunBulk, jobs[0].kind)
	require.Equal(t, RunDelta, jobs[1].kind)

	s = NewScheduler(fx.orch, ScheduleOptions{BulkInterval: time.Hour})
	require.Len(t, s.jobs(), 1, "loops without an interval are disabled")
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	t.Parallel()

	org := testOrg()
	org.Delta = true
	fx := newOrchestratorFixture(t, org)
	fx.src.lastSeen = 1700000000000

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(fx.orch, ScheduleOptions{DeltaInterval: time.Hour})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		cur, err := fx.oc.Cursor(context.Background())
		return err == nil && cur == 1700000000000
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
