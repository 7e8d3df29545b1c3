// Package sandbox implements Envoy's bounded (not secure) code-execution
// facility (§4.C): it compiles a user-authored function body into a callable
// (a plain synchronous function; a body that uses await does not compile), runs it with restricted ambient bindings, and races it against a
// hard deadline. Failure — compile error, runtime exception, or timeout — is
// always coerced into a string result; it is never raised to the caller.
//
// Grounded on other_examples/manifests/rumpl-cagent and
// other_examples/manifests/vvoland-cagent, which embed github.com/dop251/goja
// for this same "script body with a timeout" shape; the teacher's own sandbox
// (internal/tools/sandbox/executor.go) orchestrates Docker/Firecracker
// containers, which is the wrong isolation shape for this bounded, in-process
// contract and is explicitly out of scope per spec's Non-goals.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
)

// Deadline is the hard per-call execution bound (§4.C step 2).
const Deadline = 30 * time.Second

// noReturnValue is returned when the tool body completes without an explicit
// return value (§4.C step 3).
const noReturnValue = "Tool executed successfully (no return value)."

// Executor compiles and runs custom-tool code bodies.
type Executor struct {
	httpClient *http.Client
	env        func() map[string]string
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient overrides the client used for the ambient "http" capability.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.httpClient = c }
}

// WithEnvView overrides the function used to produce the ambient read-only
// environment view. Defaults to a live snapshot of os.Environ.
func WithEnvView(f func() map[string]string) Option {
	return func(e *Executor) { e.env = f }
}

// New returns a ready-to-use Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		httpClient: &http.Client{Timeout: Deadline},
		env:        defaultEnvView,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate reports whether code compiles as the body of a plain (non-async)
// function, without running it; a body that uses await fails. Meta-tools call this before persisting a tool (§4.C,
// §4.I: "code compiles before persisting").
func Validate(code string) error {
	_, err := parser.ParseFile(nil, "tool.js", wrapBody(code), 0)
	return err
}

// Execute compiles code as a plain function body, invokes it with input and
// the ambient capabilities (an HTTP client, a read view of the process
// environment), and races it against Deadline. The result is always a plain
// string: never an error. A compile failure, runtime exception, or timeout all
// surface as "Error ..." strings per §4.C step 1 and step 4.
func (e *Executor) Execute(ctx context.Context, code string, input json.RawMessage) string {
	if _, err := parser.ParseFile(nil, "tool.js", wrapBody(code), 0); err != nil {
		return fmt.Sprintf("Error: %s", err)
	}

	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()

	type outcome struct {
		value string
		err   error
	}
	done := make(chan outcome, 1)

	vm := goja.New()
	go func() {
		result, err := e.run(vm, code, input)
		done <- outcome{value: result, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return fmt.Sprintf("Error executing tool: %s", o.err)
		}
		return o.value
	case <-ctx.Done():
		vm.Interrupt("execution timed out")
		return "Error executing tool: Tool execution timed out after 30 seconds"
	}
}

func (e *Executor) run(vm *goja.Runtime, code string, input json.RawMessage) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ierr, ok := r.(*goja.InterruptedError); ok {
				err = fmt.Errorf("%v", ierr)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	var parsedInput any
	if len(input) > 0 {
		if jerr := json.Unmarshal(input, &parsedInput); jerr != nil {
			parsedInput = string(input)
		}
	}

	if err := vm.Set("input", parsedInput); err != nil {
		return "", err
	}
	if err := vm.Set("env", e.env()); err != nil {
		return "", err
	}
	if err := vm.Set("http", newHTTPCapability(e.httpClient)); err != nil {
		return "", err
	}

	fn, err := vm.RunString(wrapBody(code))
	if err != nil {
		return "", err
	}
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return "", fmt.Errorf("tool body did not produce a callable")
	}

	v, err := callable(goja.Undefined())
	if err != nil {
		return "", err
	}

	return coerce(v), nil
}

// wrapBody wraps a tool's function-body text into an invocable, parameterless
// function expression. The wrapper is a plain function, not an async one, so
// await is not accepted in the body. I/O happens through blocking bindings (the
// http capability below blocks its goroutine, which is fine since it already
// runs off the deadline-racing goroutine).
func wrapBody(code string) string {
	var b strings.Builder
	b.WriteString("(function() {\n")
	b.WriteString(code)
	b.WriteString("\n})")
	return b.String()
}

// coerce implements §4.C step 3's result coercion.
func coerce(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return noReturnValue
	}
	if s, ok := v.Export().(string); ok {
		return s
	}
	b, err := json.MarshalIndent(v.Export(), "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v.Export())
	}
	return string(b)
}

func defaultEnvView() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			out[kv[:idx]] = kv[idx+1:]
		}
	}
	return out
}

// httpCapability is the ambient outbound-HTTP binding exposed to tool bodies
// as the free name "http".
type httpCapability struct {
	client *http.Client
}

func newHTTPCapability(client *http.Client) *httpCapability {
	return &httpCapability{client: client}
}

// Get performs a GET request and returns the response body as a string, or an
// "Error: ..." string on failure — tool-body-facing errors are data too.
func (h *httpCapability) Get(url string) string {
	resp, err := h.client.Get(url)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return string(body)
}

// Post performs a POST request with a string body and returns the response
// body as a string, or an "Error: ..." string on failure.
func (h *httpCapability) Post(url, contentType, body string) string {
	resp, err := h.client.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error: %s", err)
	}
	return string(out)
}
