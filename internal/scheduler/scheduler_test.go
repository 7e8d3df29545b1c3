package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/pkg/envoy"
)

type fakeLoop struct {
	calls     int
	blockCh   chan struct{}
	resultFn  func(sessionID, userMessage string) (string, []envoy.ConvTurn, error)
}

func (f *fakeLoop) ProcessTurn(ctx context.Context, sessionID, userMessage string) (string, []envoy.ConvTurn, error) {
	f.calls++
	if f.blockCh != nil {
		<-f.blockCh
	}
	if f.resultFn != nil {
		return f.resultFn(sessionID, userMessage)
	}
	return "ok", []envoy.ConvTurn{{Role: envoy.RoleAssistant, Content: "ok"}}, nil
}

func newTestScheduler(t *testing.T, loop TurnProcessor) (*Scheduler, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	sched, err := New(ctx, st, loop, WithTickInterval(10*time.Millisecond))
	require.NoError(t, err)
	return sched, st
}

func TestRunTaskExecutesAndRecordsRun(t *testing.T) {
	ctx := context.Background()
	loop := &fakeLoop{}
	sched, st := newTestScheduler(t, loop)

	task := &envoy.ScheduledTask{Name: "daily-report", Description: "Summarize yesterday", Cron: "0 9 * * *", Enabled: true}
	require.NoError(t, st.CreateTask(ctx, task))
	require.NoError(t, sched.Reconcile(ctx))

	require.NoError(t, sched.RunTask(ctx, task.ID))
	require.Equal(t, 1, loop.calls)

	runs, err := st.ListRuns(ctx, task.ID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, envoy.RunSuccess, runs[0].Status)
	require.Equal(t, "ok", runs[0].Result)
}

func TestRunTaskSkipsWhileAlreadyRunning(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	loop := &fakeLoop{blockCh: block}
	sched, st := newTestScheduler(t, loop)

	task := &envoy.ScheduledTask{Name: "slow-task", Description: "takes a while", Cron: "@hourly", Enabled: true}
	require.NoError(t, st.CreateTask(ctx, task))
	require.NoError(t, sched.Reconcile(ctx))

	done := make(chan error, 1)
	go func() { done <- sched.RunTask(ctx, task.ID) }()

	require.Eventually(t, func() bool {
		running, err := st.HasRunningRun(ctx, task.ID)
		return err == nil && running
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sched.RunTask(ctx, task.ID))
	require.Equal(t, 1, loop.calls, "second RunTask call should have been skipped by the concurrency guard")

	close(block)
	require.NoError(t, <-done)
}

func TestReconcileSkipsDisabledAndInvalidCron(t *testing.T) {
	ctx := context.Background()
	loop := &fakeLoop{}
	sched, st := newTestScheduler(t, loop)

	require.NoError(t, st.CreateTask(ctx, &envoy.ScheduledTask{Name: "disabled", Cron: "@hourly", Enabled: false}))
	require.NoError(t, st.CreateTask(ctx, &envoy.ScheduledTask{Name: "bad-cron", Cron: "not a cron expression", Enabled: true}))
	require.NoError(t, st.CreateTask(ctx, &envoy.ScheduledTask{Name: "good", Cron: "@hourly", Enabled: true}))

	require.NoError(t, sched.Reconcile(ctx))

	sched.mu.Lock()
	defer sched.mu.Unlock()
	require.Len(t, sched.jobs, 1)
}

func TestExtractTraceSkipsInitialUserTurnAndLabelsToolRole(t *testing.T) {
	turns := []envoy.ConvTurn{
		{Role: envoy.RoleUser, Content: "[Scheduled Task: daily-report]\n\nSummarize yesterday"},
		{Role: envoy.RoleAssistant, Parts: []envoy.Part{
			{Kind: envoy.PartToolCall, ToolName: "list_dir", Args: []byte(`{}`)},
		}},
		{Role: envoy.RoleTool, Parts: []envoy.Part{
			{Kind: envoy.PartToolResult, ToolName: "list_dir", Result: "a.txt"},
		}},
		{Role: envoy.RoleAssistant, Content: "Done."},
	}

	trace := extractTrace(turns)

	require.Len(t, trace, 3, "the leading user turn should be dropped")
	require.Equal(t, envoy.RoleAssistant, trace[0].Role)
	require.Len(t, trace[0].ToolCalls, 1)
	require.Equal(t, envoy.RoleTool, trace[1].Role, "tool result turns must carry the tool role, not assistant")
	require.Len(t, trace[1].Results, 1)
	require.Equal(t, envoy.RoleAssistant, trace[2].Role)
	require.Equal(t, "Done.", trace[2].Content)
}

func TestStartStopDrivesScheduledRun(t *testing.T) {
	ctx := context.Background()
	loop := &fakeLoop{}
	sched, st := newTestScheduler(t, loop)

	task := &envoy.ScheduledTask{Name: "every-tick", Description: "fires fast", Cron: "* * * * *", Enabled: true}
	require.NoError(t, st.CreateTask(ctx, task))
	require.NoError(t, sched.Reconcile(ctx))

	sched.mu.Lock()
	sched.jobs[task.ID].nextRun = time.Now().Add(-time.Minute)
	sched.mu.Unlock()

	sched.Start(ctx)
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return loop.calls >= 1
	}, time.Second, 10*time.Millisecond)
}
