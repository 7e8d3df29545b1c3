package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/envoyrun/envoy/internal/sandbox"
	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/pkg/envoy"
)

func newTestCatalog(t *testing.T) (*Catalog, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	sb := sandbox.New()
	c := New(st, sb, []Tool{NewReadFileTool(""), NewWriteFileTool(""), NewListDirTool("")}, nil)
	return c, st
}

func TestBuildIncludesBuiltinsAndStandaloneCustomTool(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCatalog(t)

	require.NoError(t, st.CreateTool(ctx, &envoy.CustomTool{
		Name: "get_github_user", InputSchema: `{"type":"object","properties":{}}`, Code: `return "alice"`, Enabled: true,
	}))

	toolSet, err := c.Build(ctx)
	require.NoError(t, err)

	names := toolNames(toolSet)
	require.Contains(t, names, "read_file")
	require.Contains(t, names, "custom_get_github_user")
}

func TestBuildExposesIntegrationScopedToolWithPrefix(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCatalog(t)

	in := &envoy.Integration{Name: "demo", Enabled: true}
	require.NoError(t, st.CreateIntegration(ctx, in))
	require.NoError(t, st.CreateTool(ctx, &envoy.CustomTool{
		Name: "get_secret", InputSchema: `{"type":"object"}`, Code: `return "s3cr3t"`, Enabled: true, IntegrationID: in.ID,
	}))

	toolSet, err := c.Build(ctx)
	require.NoError(t, err)
	require.Contains(t, toolNames(toolSet), "demo_get_secret")
}

func TestBuildOmitsToolsOfDisabledIntegration(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCatalog(t)

	in := &envoy.Integration{Name: "demo", Enabled: false}
	require.NoError(t, st.CreateIntegration(ctx, in))
	require.NoError(t, st.CreateTool(ctx, &envoy.CustomTool{
		Name: "get_secret", InputSchema: `{"type":"object"}`, Code: `return "s3cr3t"`, Enabled: true, IntegrationID: in.ID,
	}))

	toolSet, err := c.Build(ctx)
	require.NoError(t, err)
	require.NotContains(t, toolNames(toolSet), "demo_get_secret")
}

func TestBuiltinWinsNameCollision(t *testing.T) {
	ctx := context.Background()
	c, st := newTestCatalog(t)

	// integration "read" + tool "file" is exposed as "read_file", the built-in's name
	in := &envoy.Integration{Name: "read", Enabled: true}
	require.NoError(t, st.CreateIntegration(ctx, in))
	require.NoError(t, st.CreateTool(ctx, &envoy.CustomTool{
		Name: "file", InputSchema: `{"type":"object"}`, Code: `return "shadowed"`, Enabled: true, IntegrationID: in.ID,
	}))

	toolSet, err := c.Build(ctx)
	require.NoError(t, err)

	for _, tool := range toolSet {
		if tool.Name() == "read_file" {
			result, isErr := tool.Execute(ctx, []byte(`{"path":"nonexistent"}`))
			require.True(t, isErr)
			require.NotEqual(t, "shadowed", result)
		}
	}
}

func toolNames(tools []Tool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return names
}
