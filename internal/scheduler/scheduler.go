// Package scheduler implements Envoy's Scheduler (§4.H): a process-singleton
// registry of cron-triggered jobs, each of which re-enters the agent loop on
// a synthetic session with no prior history.
//
// Grounded on internal/cron/scheduler.go's ticker-driven Start/Stop, mutex-
// guarded job registry, and runJob/runDue shape, and internal/cron/schedule.go
// for cron-expression parsing. The teacher's four job kinds (message, agent,
// webhook, custom) collapse to the one kind spec needs: every scheduled task
// is an agent run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/pkg/envoy"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TurnProcessor is the subset of the agent loop the scheduler needs: run one
// turn on a session and return the resulting text and structured history.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, userMessage string) (string, []envoy.ConvTurn, error)
}

type job struct {
	task     *envoy.ScheduledTask
	schedule cron.Schedule
	nextRun  time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTickInterval overrides how often the scheduler checks for due jobs.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithNow overrides the scheduler's clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler owns the live cron-job registry and drives scheduled agent runs.
type Scheduler struct {
	store        *store.Store
	loop         TurnProcessor
	logger       *slog.Logger
	tickInterval time.Duration
	now          func() time.Time

	mu      sync.Mutex
	jobs    map[string]*job
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New returns a Scheduler and loads the initial job set from the store.
func New(ctx context.Context, st *store.Store, loop TurnProcessor, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		store:        st,
		loop:         loop,
		logger:       slog.Default().With("component", "scheduler"),
		tickInterval: time.Second,
		now:          time.Now,
		jobs:         make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reconcile(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reconcile reloads the task list from the store and rebuilds the live job
// registry. Meta-tools call this after any schedule-affecting mutation so the
// running scheduler never drifts from the store.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: list tasks: %w", err)
	}

	jobs := make(map[string]*job, len(tasks))
	now := s.now()
	for _, task := range tasks {
		if !task.Enabled {
			continue
		}
		sched, err := parser.Parse(task.Cron)
		if err != nil {
			s.logger.Warn("scheduled task has invalid cron expression, skipping", "task", task.Name, "cron", task.Cron, "error", err)
			continue
		}
		jobs[task.ID] = &job{task: task, schedule: sched, nextRun: sched.Next(now)}
	}

	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	return nil
}

// Start begins the scheduler's tick loop. It returns immediately; the loop
// runs until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.runDue(ctx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := make([]*job, 0)
	for _, j := range s.jobs {
		if !now.Before(j.nextRun) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		taskID := j.task.ID
		if err := s.RunTask(ctx, taskID); err != nil {
			s.logger.Warn("scheduled task run failed", "task", j.task.Name, "error", err)
		}

		s.mu.Lock()
		if live, ok := s.jobs[taskID]; ok {
			live.nextRun = live.schedule.Next(now)
		}
		s.mu.Unlock()
	}
}

// RunTask executes one scheduled task immediately: it enforces the per-task
// concurrency guard (§4.H — a task already running is skipped, not queued),
// re-enters the agent loop on a synthetic session, and records a TaskRun with
// a structured trace extracted from the resulting conversation history.
func (s *Scheduler) RunTask(ctx context.Context, taskID string) error {
	task, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("scheduler: get task: %w", err)
	}

	running, err := s.store.HasRunningRun(ctx, taskID)
	if err != nil {
		return fmt.Errorf("scheduler: check running run: %w", err)
	}
	if running {
		s.logger.Info("scheduled task already running, skipping this firing", "task", task.Name)
		return nil
	}

	run, err := s.store.StartRun(ctx, taskID)
	if err != nil {
		return fmt.Errorf("scheduler: start run: %w", err)
	}

	sessionID := "task-run-" + run.ID
	if _, err := s.store.CreateSession(ctx, sessionID); err != nil {
		_ = s.store.FinishRun(ctx, run.ID, envoy.RunError, err.Error(), nil)
		return fmt.Errorf("scheduler: create synthetic session: %w", err)
	}

	userMessage := fmt.Sprintf("[Scheduled Task: %s]\n\n%s", task.Name, task.Description)
	text, history, runErr := s.loop.ProcessTurn(ctx, sessionID, userMessage)

	trace := extractTrace(history)
	status := envoy.RunSuccess
	result := text
	if runErr != nil {
		status = envoy.RunError
		result = runErr.Error()
	}
	if err := s.store.FinishRun(ctx, run.ID, status, result, trace); err != nil {
		return fmt.Errorf("scheduler: finish run: %w", err)
	}
	return runErr
}

// extractTrace converts the agent loop's replay history into the TaskRun's
// structured trace (§4.H trace extraction): one TraceEntry per turn, with
// tool calls and tool results broken out by kind. The initial user turn is
// the synthetic task-trigger message, not agent output, so it's skipped.
func extractTrace(turns []envoy.ConvTurn) []envoy.TraceEntry {
	if len(turns) > 0 && turns[0].Role == envoy.RoleUser {
		turns = turns[1:]
	}

	out := make([]envoy.TraceEntry, 0, len(turns))
	for _, t := range turns {
		entry := envoy.TraceEntry{Role: t.Role, Content: t.Content}
		for _, p := range t.Parts {
			switch p.Kind {
			case envoy.PartText:
				if entry.Content == "" {
					entry.Content = p.Text
				}
			case envoy.PartToolCall:
				entry.ToolCalls = append(entry.ToolCalls, envoy.TraceToolCall{ToolName: p.ToolName, Args: p.Args})
			case envoy.PartToolResult:
				entry.Results = append(entry.Results, envoy.TraceResult{ToolName: p.ToolName, Result: p.Result})
			}
		}
		out = append(out, entry)
	}
	return out
}
