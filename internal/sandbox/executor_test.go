package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecuteReturnsStringResult(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), `return "alice"`, nil)
	require.Equal(t, "alice", result)
}

func TestExecuteNoReturnValue(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), `var x = 1;`, nil)
	require.Equal(t, noReturnValue, result)
}

func TestExecuteCoercesObjectResult(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), `return {ok: true};`, nil)
	require.Contains(t, result, "ok")
}

func TestExecuteCompileFailureIsDataNotPanic(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), `this is not valid js (((`, nil)
	require.True(t, strings.HasPrefix(result, "Error:"), "got %q", result)
}

func TestExecuteRuntimeThrowIsData(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), `throw new Error("boom")`, nil)
	require.True(t, strings.HasPrefix(result, "Error executing tool:"), "got %q", result)
}

func TestExecuteInputIsExposed(t *testing.T) {
	e := New()
	result := e.Execute(context.Background(), `return input.name;`, []byte(`{"name":"bob"}`))
	require.Equal(t, "bob", result)
}

func TestExecuteTimeout(t *testing.T) {
	e := New()
	start := time.Now()
	result := e.Execute(context.Background(), `while(true){}`, nil)
	elapsed := time.Since(start)
	require.Contains(t, result, "timed out")
	require.Less(t, elapsed, Deadline+5*time.Second)
}

func TestValidateRejectsBadSyntax(t *testing.T) {
	require.Error(t, Validate(`this is not valid js (((`))
	require.NoError(t, Validate(`return 1;`))
}
