package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/envoyrun/envoy/internal/agent"
	"github.com/envoyrun/envoy/internal/bus"
	"github.com/envoyrun/envoy/internal/config"
	"github.com/envoyrun/envoy/internal/httpapi"
	"github.com/envoyrun/envoy/internal/integrations"
	"github.com/envoyrun/envoy/internal/metatools"
	"github.com/envoyrun/envoy/internal/sandbox"
	"github.com/envoyrun/envoy/internal/scheduler"
	"github.com/envoyrun/envoy/internal/store"
	"github.com/envoyrun/envoy/internal/tools"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Envoy agent runtime",
		Long: `Start Envoy's HTTP/SSE surface, agent loop, and task scheduler.

The server will:
1. Load configuration from environment variables (and configPath if present)
2. Open the SQLite store (the integration credential file is written when an
   integration is configured; it is not read at startup)
3. Build the built-in/custom/integration tool catalog and meta-tools
4. Start the cron-driven task scheduler
5. Start the /api/v1 HTTP/SSE server

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "envoy.yaml", "Path to an optional YAML configuration overlay")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting envoyd", "version", version, "commit", commit, "config", configPath)

	st, err := store.Open(cfg.DatabasePath, slog.Default())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sb := sandbox.New()
	b := bus.New()
	integrationsMgr := integrations.New(st, cfg.EnvFilePath)

	builtins := []tools.Tool{
		tools.NewReadFileTool(cfg.ToolsFSRoot),
		tools.NewWriteFileTool(cfg.ToolsFSRoot),
		tools.NewListDirTool(cfg.ToolsFSRoot),
	}
	if cfg.ToolsShellEnabled {
		builtins = append(builtins, tools.NewShellTool(cfg.ToolsFSRoot))
	}

	// The scheduler needs the loop to run scheduled turns, and the loop's
	// catalog needs the meta-tools, which need the scheduler to reconcile
	// after a schedule-affecting mutation. Break the cycle by building the
	// meta-tools against a nil scheduler and binding the real one once it
	// exists (SetScheduler) — the tools close over the builder, not a copy.
	metaBuilder := metatools.New(st, sb, nil)
	builtins = append(builtins, metaBuilder.Tools()...)

	catalog := tools.New(st, sb, builtins, slog.Default())

	provider, err := agent.NewAnthropicProvider(agent.AnthropicConfig{
		APIKey:       cfg.LLMAPIKey,
		BaseURL:      cfg.LLMBaseURL,
		DefaultModel: cfg.LLMModel,
	})
	if err != nil {
		return fmt.Errorf("init llm provider: %w", err)
	}

	promptBuilder := agent.NewPromptBuilder(st)
	loop := agent.New(provider, catalog, st, b, promptBuilder.Build, slog.Default())

	sched, err := scheduler.New(ctx, st, loop, scheduler.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	metaBuilder.SetScheduler(sched)

	server := httpapi.New(st, b, loop, builtins, integrationsMgr, sched, slog.Default())

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched.Start(ctx)
	defer sched.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	if err := server.Start(addr); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	slog.Info("envoyd started", "addr", addr)
	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	slog.Info("envoyd stopped gracefully")
	return nil
}
