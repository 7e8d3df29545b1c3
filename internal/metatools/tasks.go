package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/envoyrun/envoy/pkg/envoy"
)

var (
	scheduleTaskSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"description": {"type": "string", "description": "becomes the message the agent receives when this task fires"},
			"cron": {"type": "string", "description": "standard 5-field cron expression, or a descriptor like @hourly"}
		},
		"required": ["name", "description", "cron"]
	}`)
	updateScheduledTaskSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"description": {"type": "string"},
			"cron": {"type": "string"},
			"enabled": {"type": "boolean"}
		},
		"required": ["name"]
	}`)
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type scheduleTaskArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cron        string `json:"cron"`
}

func (b *Builder) scheduleTask(ctx context.Context, args json.RawMessage) (string, bool) {
	var a scheduleTaskArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	if err := validateName(a.Name); err != nil {
		return "Error: " + err.Error(), true
	}
	if _, err := cronParser.Parse(a.Cron); err != nil {
		return fmt.Sprintf("Error: invalid cron expression %q: %v", a.Cron, err), true
	}

	task := &envoy.ScheduledTask{Name: a.Name, Description: a.Description, Cron: a.Cron, Enabled: true}
	if err := b.store.CreateTask(ctx, task); err != nil {
		return storeErrorResult("schedule task", err)
	}
	b.reconcileScheduler(ctx)
	return fmt.Sprintf("Scheduled task %q (%s).", a.Name, a.Cron), false
}

type updateScheduledTaskArgs struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Cron        *string `json:"cron"`
	Enabled     *bool   `json:"enabled"`
}

func (b *Builder) updateScheduledTask(ctx context.Context, args json.RawMessage) (string, bool) {
	var a updateScheduledTaskArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	if a.Cron != nil {
		if _, err := cronParser.Parse(*a.Cron); err != nil {
			return fmt.Sprintf("Error: invalid cron expression %q: %v", *a.Cron, err), true
		}
	}

	if _, err := b.store.UpdateTask(ctx, a.Name, a.Description, a.Cron, a.Enabled); err != nil {
		return storeErrorResult("update scheduled task", err)
	}
	b.reconcileScheduler(ctx)
	return fmt.Sprintf("Updated scheduled task %q.", a.Name), false
}

func (b *Builder) deleteScheduledTask(ctx context.Context, args json.RawMessage) (string, bool) {
	var a nameOnlyArgs
	if msg, ok := decodeArgs(args, &a); !ok {
		return msg, true
	}
	if err := b.store.DeleteTask(ctx, a.Name); err != nil {
		return storeErrorResult("delete scheduled task", err)
	}
	b.reconcileScheduler(ctx)
	return fmt.Sprintf("Deleted scheduled task %q.", a.Name), false
}

func (b *Builder) listScheduledTasks(ctx context.Context, args json.RawMessage) (string, bool) {
	all, err := b.store.ListTasks(ctx)
	if err != nil {
		return storeErrorResult("list scheduled tasks", err)
	}
	if len(all) == 0 {
		return "No scheduled tasks exist yet.", false
	}
	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error: failed to format task list: %v", err), true
	}
	return string(out), false
}
