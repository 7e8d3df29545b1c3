// Package metatools implements Envoy's self-extension meta-tools (§4.I): the
// built-in tools through which the agent creates, edits, and removes its own
// custom tools, integrations, and scheduled tasks. Like every other tool,
// failures are reported as data in the result string, never as a Go error
// raised to the model.
//
// Grounded on internal/agent/tool_registry.go's registration/validation shape
// and internal/tools/cron/tool.go's pattern of a tool that mutates the
// scheduler.
package metatools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/envoyrun/envoy/internal/sandbox"
	"github.com/envoyrun/envoy/internal/scheduler"
	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/internal/tools"
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Builder wires the meta-tools to their backing store, sandbox, and
// scheduler.
type Builder struct {
	store     *store.Store
	sandbox   *sandbox.Executor
	scheduler *scheduler.Scheduler
}

// New returns a Builder. sched may be nil in contexts that don't run the
// scheduler (e.g. tests exercising only the tool/integration meta-tools);
// schedule-affecting meta-tools degrade to store-only mutation in that case.
func New(st *store.Store, sb *sandbox.Executor, sched *scheduler.Scheduler) *Builder {
	return &Builder{store: st, sandbox: sb, scheduler: sched}
}

// SetScheduler binds the scheduler after construction, for callers that must
// build the meta-tools (and the catalog that carries them) before the
// scheduler itself exists because the scheduler needs the agent loop, which
// needs the catalog. Tools already returned by Tools() observe the update,
// since they close over b rather than a copy of its fields.
func (b *Builder) SetScheduler(sched *scheduler.Scheduler) {
	b.scheduler = sched
}

// Tools returns every meta-tool, ready to be included in a tools.Catalog's
// builtins list.
func (b *Builder) Tools() []tools.Tool {
	return []tools.Tool{
		tools.NewFunc("create_tool", "Create a new standalone custom tool.", createToolSchema, b.createTool),
		tools.NewFunc("update_tool", "Update an existing custom tool's description, schema, code, or enabled state.", updateToolSchema, b.updateTool),
		tools.NewFunc("delete_tool", "Delete a custom tool by name.", nameOnlySchema, b.deleteTool),
		tools.NewFunc("list_tools", "List every custom tool and its current state.", emptySchema, b.listTools),
		tools.NewFunc("test_tool", "Run a snippet of tool code against sample input without saving it.", testToolSchema, b.testTool),

		tools.NewFunc("create_integration", "Create a new integration with a declared credential schema.", createIntegrationSchema, b.createIntegration),
		tools.NewFunc("add_integration_tool", "Add a tool scoped to an existing integration.", addIntegrationToolSchema, b.addIntegrationTool),
		tools.NewFunc("remove_integration_tool", "Remove a tool scoped to an integration.", removeIntegrationToolSchema, b.removeIntegrationTool),
		tools.NewFunc("delete_integration", "Delete an integration and all of its tools.", nameOnlySchema, b.deleteIntegration),
		tools.NewFunc("list_integrations", "List every integration and whether it is configured.", emptySchema, b.listIntegrations),

		tools.NewFunc("schedule_task", "Schedule a new recurring agent run.", scheduleTaskSchema, b.scheduleTask),
		tools.NewFunc("update_scheduled_task", "Update an existing scheduled task's description, cron, or enabled state.", updateScheduledTaskSchema, b.updateScheduledTask),
		tools.NewFunc("delete_scheduled_task", "Delete a scheduled task.", nameOnlySchema, b.deleteScheduledTask),
		tools.NewFunc("list_scheduled_tasks", "List every scheduled task.", emptySchema, b.listScheduledTasks),
	}
}

var (
	emptySchema    = json.RawMessage(`{"type":"object","properties":{}}`)
	nameOnlySchema = json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
)

// decodeArgs unmarshals args into dst, returning a data-error string (with ok
// set to false) on failure so callers can return it directly.
func decodeArgs(args json.RawMessage, dst any) (string, bool) {
	if len(args) == 0 {
		return "", true
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err), false
	}
	return "", true
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name %q must start with a lowercase letter and contain only lowercase letters, digits, and underscores", name)
	}
	return nil
}

// storeErrorResult maps a store error into a human-readable "Error: ..."
// result string, per §4.C's errors-are-data convention.
func storeErrorResult(verb string, err error) (string, bool) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "Error: not found", true
	case errors.Is(err, store.ErrAlreadyExists):
		return "Error: already exists", true
	default:
		return fmt.Sprintf("Error: failed to %s: %v", verb, err), true
	}
}

// reconcileScheduler re-syncs the live scheduler registry after a
// schedule-affecting mutation. A nil scheduler (tests, or a deployment
// without one wired) is a no-op, not an error.
func (b *Builder) reconcileScheduler(ctx context.Context) {
	if b.scheduler == nil {
		return
	}
	_ = b.scheduler.Reconcile(ctx)
}
