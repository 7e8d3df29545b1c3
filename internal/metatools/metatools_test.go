package metatools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/envoyrun/envoy/internal/sandbox"
	"github.com/envoyrun/envoy/internal/store"
)

func newTestBuilder(t *testing.T) (*Builder, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, sandbox.New(), nil), st
}

func execTool(t *testing.T, b *Builder, name string, args any) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	for _, tool := range b.Tools() {
		if tool.Name() == name {
			result, isErr := tool.Execute(context.Background(), raw)
			return result, isErr
		}
	}
	t.Fatalf("tool %q not found", name)
	return "", false
}

func TestCreateToolThenListIncludesIt(t *testing.T) {
	b, _ := newTestBuilder(t)

	result, isErr := execTool(t, b, "create_tool", map[string]any{
		"name":        "double",
		"description": "doubles a number",
		"code":        "return input.n * 2;",
	})
	require.False(t, isErr, result)

	result, isErr = execTool(t, b, "list_tools", map[string]any{})
	require.False(t, isErr)
	require.Contains(t, result, "double")
}

func TestCreateToolRejectsBadName(t *testing.T) {
	b, _ := newTestBuilder(t)
	result, isErr := execTool(t, b, "create_tool", map[string]any{
		"name":        "NotSnakeCase",
		"description": "bad",
		"code":        "return 1;",
	})
	require.True(t, isErr)
	require.Contains(t, result, "Error:")
}

func TestCreateToolRejectsBadCode(t *testing.T) {
	b, _ := newTestBuilder(t)
	result, isErr := execTool(t, b, "create_tool", map[string]any{
		"name":        "broken",
		"description": "bad syntax",
		"code":        "function( {{{",
	})
	require.True(t, isErr)
	require.Contains(t, result, "Error:")
}

func TestUpdateAndDeleteTool(t *testing.T) {
	b, st := newTestBuilder(t)
	_, isErr := execTool(t, b, "create_tool", map[string]any{
		"name":        "greet",
		"description": "says hello",
		"code":        "return 'hi';",
	})
	require.False(t, isErr)

	_, isErr = execTool(t, b, "update_tool", map[string]any{"name": "greet", "enabled": false})
	require.False(t, isErr)

	ct, err := st.GetTool(context.Background(), "greet")
	require.NoError(t, err)
	require.False(t, ct.Enabled)

	result, isErr := execTool(t, b, "delete_tool", map[string]any{"name": "greet"})
	require.False(t, isErr, result)

	_, err = st.GetTool(context.Background(), "greet")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTestToolDoesNotPersist(t *testing.T) {
	b, st := newTestBuilder(t)
	result, isErr := execTool(t, b, "test_tool", map[string]any{"code": "return 1 + 1;", "input": map[string]any{}})
	require.False(t, isErr)
	require.Equal(t, "2", result)

	all, err := st.ListTools(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCreateIntegrationAndAddTool(t *testing.T) {
	b, st := newTestBuilder(t)

	result, isErr := execTool(t, b, "create_integration", map[string]any{
		"name":        "weather",
		"description": "weather lookups",
	})
	require.False(t, isErr, result)

	result, isErr = execTool(t, b, "add_integration_tool", map[string]any{
		"integration": "weather",
		"name":        "forecast",
		"description": "gets forecast",
		"code":        "return 'sunny';",
	})
	require.False(t, isErr, result)

	ct, err := st.GetTool(context.Background(), "forecast")
	require.NoError(t, err)
	require.NotEmpty(t, ct.IntegrationID)

	result, isErr = execTool(t, b, "remove_integration_tool", map[string]any{"integration": "weather", "name": "forecast"})
	require.False(t, isErr, result)

	_, err = st.GetTool(context.Background(), "forecast")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteIntegrationCascadesTools(t *testing.T) {
	b, st := newTestBuilder(t)
	_, isErr := execTool(t, b, "create_integration", map[string]any{"name": "temp", "description": "d"})
	require.False(t, isErr)
	_, isErr = execTool(t, b, "add_integration_tool", map[string]any{
		"integration": "temp", "name": "t1", "description": "d", "code": "return 1;",
	})
	require.False(t, isErr)

	_, isErr = execTool(t, b, "delete_integration", map[string]any{"name": "temp"})
	require.False(t, isErr)

	_, err := st.GetTool(context.Background(), "t1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestScheduleTaskRejectsBadCron(t *testing.T) {
	b, _ := newTestBuilder(t)
	result, isErr := execTool(t, b, "schedule_task", map[string]any{
		"name": "bad", "description": "d", "cron": "not a cron",
	})
	require.True(t, isErr)
	require.Contains(t, result, "Error:")
}

func TestScheduleUpdateAndDeleteTask(t *testing.T) {
	b, st := newTestBuilder(t)
	result, isErr := execTool(t, b, "schedule_task", map[string]any{
		"name": "nightly", "description": "run at night", "cron": "@daily",
	})
	require.False(t, isErr, result)

	_, isErr = execTool(t, b, "update_scheduled_task", map[string]any{"name": "nightly", "enabled": false})
	require.False(t, isErr)

	task, err := st.GetTask(context.Background(), "nightly")
	require.NoError(t, err)
	require.False(t, task.Enabled)

	result, isErr = execTool(t, b, "list_scheduled_tasks", map[string]any{})
	require.False(t, isErr)
	require.Contains(t, result, "nightly")

	_, isErr = execTool(t, b, "delete_scheduled_task", map[string]any{"name": "nightly"})
	require.False(t, isErr)

	_, err = st.GetTask(context.Background(), "nightly")
	require.ErrorIs(t, err, store.ErrNotFound)
}
