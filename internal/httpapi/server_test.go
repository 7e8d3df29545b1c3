package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/envoyrun/envoy/internal/bus"
	"github.com/envoyrun/envoy/internal/integrations"
	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/internal/tools"
	"github.com/envoyrun/envoy/pkg/envoy"
)

type fakeLoop struct {
	text  string
	err   error
	calls int
}

func (f *fakeLoop) ProcessTurn(ctx context.Context, sessionID, userMessage string) (string, []envoy.ConvTurn, error) {
	f.calls++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.text, nil, nil
}

type fakeReconciler struct{ calls int }

func (f *fakeReconciler) Reconcile(ctx context.Context) error {
	f.calls++
	return nil
}

func newTestServer(t *testing.T) (*Server, *store.Store, *fakeLoop, *fakeReconciler) {
	t.Helper()
	st, err := store.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := bus.New()
	loop := &fakeLoop{text: "hello there"}
	sched := &fakeReconciler{}
	mgr := integrations.New(st, filepath.Join(t.TempDir(), "envoy.env"))
	builtins := []tools.Tool{tools.NewReadFileTool("")}

	return New(st, b, loop, builtins, mgr, sched, nil), st, loop, sched
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestChatCreatesSessionAndReturnsReply(t *testing.T) {
	s, _, loop, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out chatResponse
	decodeBody(t, resp, &out)
	require.Equal(t, "hello there", out.Message)
	require.NotEmpty(t, out.SessionID)
	require.Equal(t, 1, loop.calls)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionsCRUD(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", nil)
	require.NoError(t, err)
	var sess envoy.Session
	decodeBody(t, resp, &sess)
	resp.Body.Close()
	require.NotEmpty(t, sess.ID)

	resp, err = http.Get(srv.URL + "/api/v1/sessions")
	require.NoError(t, err)
	var list []envoy.Session
	decodeBody(t, resp, &list)
	resp.Body.Close()
	require.Len(t, list, 1)

	resp, err = http.Get(srv.URL + "/api/v1/sessions/" + sess.ID + "/messages")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/sessions/"+sess.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/sessions/"+sess.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestListToolsAndDeleteBuiltinRejected(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/tools")
	require.NoError(t, err)
	var out map[string]json.RawMessage
	decodeBody(t, resp, &out)
	resp.Body.Close()
	require.Contains(t, string(out["builtIn"]), "read_file")

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tools/read_file", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestIntegrationsConfigRoundTrip(t *testing.T) {
	s, st, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	require.NoError(t, st.CreateIntegration(context.Background(), &envoy.Integration{
		Name: "weather", Description: "d", Enabled: true,
		ConfigSchema: []envoy.ConfigKey{{Key: "ENVOY_TEST_WEATHER_KEY", Required: true}},
	}))

	resp, err := http.Get(srv.URL + "/api/v1/integrations")
	require.NoError(t, err)
	var list []map[string]any
	decodeBody(t, resp, &list)
	resp.Body.Close()
	require.Len(t, list, 1)
	require.Equal(t, false, list[0]["configured"])

	resp, err = http.Post(srv.URL+"/api/v1/integrations/weather/config", "application/json",
		strings.NewReader(`{"ENVOY_TEST_WEATHER_KEY":"abcdefghijkl","ignored_key":"x"}`))
	require.NoError(t, err)
	var cfg setConfigResponse
	decodeBody(t, resp, &cfg)
	resp.Body.Close()
	require.True(t, cfg.Configured)
	require.Equal(t, "abc***jkl", cfg.MaskedValues["ENVOY_TEST_WEATHER_KEY"])

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/integrations/weather", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestTasksListAndDeleteReconciles(t *testing.T) {
	s, st, _, sched := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	require.NoError(t, st.CreateTask(context.Background(), &envoy.ScheduledTask{
		Name: "nightly", Description: "d", Cron: "@daily", Enabled: true,
	}))

	resp, err := http.Get(srv.URL + "/api/v1/tasks")
	require.NoError(t, err)
	var tasks []taskView
	decodeBody(t, resp, &tasks)
	resp.Body.Close()
	require.Len(t, tasks, 1)
	require.Nil(t, tasks[0].LastRun)

	resp, err = http.Get(srv.URL + "/api/v1/tasks/nightly/runs?limit=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tasks/nightly", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, 1, sched.calls)
}

func TestEventsStreamsConnectedThenBusEvents(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/events?sessionId=abc", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: message\n", line)

	dataLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataLine, "data: "))
	require.Contains(t, dataLine, `"type":"connected"`)
	require.Contains(t, dataLine, `"sessionId":"abc"`)

	s.bus.Publish("abc", envoy.EventDelta, envoy.DeltaPayload{Content: "hi"})

	// skip blank line separator
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: message\n", line)
	dataLine, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, dataLine, `"type":"delta"`)
}
