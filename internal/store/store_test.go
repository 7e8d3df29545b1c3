package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/envoyrun/envoy/pkg/envoy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "New chat", sess.Title)

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, sess.ID, got.ID)

	require.NoError(t, s.SetTitleIfDefault(ctx, sess.ID, "hello there, this is a very long message that should be truncated"))
	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotEqual(t, "New chat", got.Title)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.GetSession(ctx, sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConversationStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	turns := []envoy.ConvTurn{
		{Role: envoy.RoleUser, Content: "hi"},
		{Role: envoy.RoleAssistant, Parts: []envoy.Part{
			{Kind: envoy.PartText, Text: "calling a tool"},
			{Kind: envoy.PartToolCall, ToolCallID: "tc1", ToolName: "custom_foo", Args: []byte(`{}`)},
		}},
		{Role: envoy.RoleAssistant, Parts: []envoy.Part{
			{Kind: envoy.PartToolResult, ToolCallID: "tc1", ToolName: "custom_foo", Result: "ok"},
		}},
	}
	require.NoError(t, s.SetConversationState(ctx, sess.ID, turns))

	got, err := s.GetConversationState(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "tc1", got[1].Parts[1].ToolCallID)
}

func TestConversationStateMissingDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	got, err := s.GetConversationState(ctx, sess.ID)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCreateToolNameUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tool := &envoy.CustomTool{Name: "get_github_user", InputSchema: `{"type":"object"}`, Code: "return 1", Enabled: true}
	require.NoError(t, s.CreateTool(ctx, tool))

	dup := &envoy.CustomTool{Name: "get_github_user", InputSchema: `{"type":"object"}`, Code: "return 2", Enabled: true}
	err := s.CreateTool(ctx, dup)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateThenDeleteToolLeavesCatalogUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	before, err := s.ListTools(ctx)
	require.NoError(t, err)

	tool := &envoy.CustomTool{Name: "temp_tool", InputSchema: `{"type":"object"}`, Code: "return 1", Enabled: true}
	require.NoError(t, s.CreateTool(ctx, tool))
	require.NoError(t, s.DeleteTool(ctx, "temp_tool"))

	after, err := s.ListTools(ctx)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
}

func TestIntegrationCascadeDeletesTools(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := &envoy.Integration{Name: "demo", ConfigSchema: []envoy.ConfigKey{{Key: "DEMO_TOKEN", Required: true}}, Enabled: true}
	require.NoError(t, s.CreateIntegration(ctx, in))

	tool := &envoy.CustomTool{Name: "get_secret", InputSchema: `{"type":"object"}`, Code: "return env.DEMO_TOKEN", Enabled: true, IntegrationID: in.ID}
	require.NoError(t, s.CreateTool(ctx, tool))

	require.NoError(t, s.DeleteIntegration(ctx, "demo"))

	_, err := s.GetTool(ctx, "get_secret")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRunConcurrencyGuard(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	task := &envoy.ScheduledTask{Name: "heartbeat", Cron: "*/5 * * * *", Enabled: true}
	require.NoError(t, s.CreateTask(ctx, task))

	running, err := s.HasRunningRun(ctx, task.ID)
	require.NoError(t, err)
	require.False(t, running)

	run, err := s.StartRun(ctx, task.ID)
	require.NoError(t, err)

	running, err = s.HasRunningRun(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, running)

	require.NoError(t, s.FinishRun(ctx, run.ID, envoy.RunSuccess, "done", nil))

	running, err = s.HasRunningRun(ctx, task.ID)
	require.NoError(t, err)
	require.False(t, running)
}
