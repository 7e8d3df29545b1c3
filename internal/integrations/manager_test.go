package integrations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/pkg/envoy"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	envPath := filepath.Join(t.TempDir(), "envoy.env")
	return New(st, envPath), st
}

func TestConfiguredPredicate(t *testing.T) {
	in := &envoy.Integration{ConfigSchema: []envoy.ConfigKey{{Key: "ENVOY_TEST_REQUIRED", Required: true}}}
	os.Unsetenv("ENVOY_TEST_REQUIRED")
	require.False(t, Configured(in))

	os.Setenv("ENVOY_TEST_REQUIRED", "value")
	defer os.Unsetenv("ENVOY_TEST_REQUIRED")
	require.True(t, Configured(in))
}

func TestMaskShortAndLongValues(t *testing.T) {
	os.Setenv("ENVOY_TEST_SHORT", "abc")
	defer os.Unsetenv("ENVOY_TEST_SHORT")
	require.Equal(t, "***", Mask("ENVOY_TEST_SHORT"))

	os.Setenv("ENVOY_TEST_LONG", "abcdefghijkl")
	defer os.Unsetenv("ENVOY_TEST_LONG")
	require.Equal(t, "abc***jkl", Mask("ENVOY_TEST_LONG"))

	os.Unsetenv("ENVOY_TEST_UNSET")
	require.Nil(t, Mask("ENVOY_TEST_UNSET"))
}

func TestSetConfigPersistsAndHotReloads(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	in := &envoy.Integration{Name: "demo", ConfigSchema: []envoy.ConfigKey{{Key: "ENVOY_TEST_DEMO_TOKEN", Required: true}}, Enabled: true}
	require.NoError(t, st.CreateIntegration(ctx, in))
	defer os.Unsetenv("ENVOY_TEST_DEMO_TOKEN")

	require.NoError(t, m.SetConfig(ctx, in, map[string]string{"ENVOY_TEST_DEMO_TOKEN": "abc", "UNDECLARED": "ignored"}))

	require.Equal(t, "abc", os.Getenv("ENVOY_TEST_DEMO_TOKEN"))
	require.Empty(t, os.Getenv("UNDECLARED"))
	require.True(t, Configured(in))
}

func TestSetConfigPreservesUnrelatedLines(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	require.NoError(t, os.WriteFile(m.envPath, []byte("# a comment\nOTHER_KEY=keepme\n"), 0o600))

	in := &envoy.Integration{Name: "demo", ConfigSchema: []envoy.ConfigKey{{Key: "ENVOY_TEST_DEMO_TOKEN2", Required: true}}, Enabled: true}
	require.NoError(t, st.CreateIntegration(ctx, in))
	defer os.Unsetenv("ENVOY_TEST_DEMO_TOKEN2")

	require.NoError(t, m.SetConfig(ctx, in, map[string]string{"ENVOY_TEST_DEMO_TOKEN2": "xyz"}))

	data, err := os.ReadFile(m.envPath)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "# a comment")
	require.Contains(t, content, "OTHER_KEY=keepme")
	require.Contains(t, content, "ENVOY_TEST_DEMO_TOKEN2=xyz")
}

func TestSetConfigDropsEmptyStrings(t *testing.T) {
	ctx := context.Background()
	m, st := newTestManager(t)

	in := &envoy.Integration{Name: "demo", ConfigSchema: []envoy.ConfigKey{{Key: "ENVOY_TEST_EMPTY"}}, Enabled: true}
	require.NoError(t, st.CreateIntegration(ctx, in))

	require.NoError(t, m.SetConfig(ctx, in, map[string]string{"ENVOY_TEST_EMPTY": ""}))
	require.Empty(t, os.Getenv("ENVOY_TEST_EMPTY"))
}
