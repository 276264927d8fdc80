package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kohei-Wada/taskdog-sub001/internal/build"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/telemetry"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/metrics"
	"github.com/Kohei-Wada/taskdog-sub001/internal/persistence/filenotes"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/autoplan"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/frontend"
)

// Server returns the command that runs the HTTP server.
func Server() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "server [flags]",
			Short: "Start the task API server",
			Long: `Launch the Taskdog server.

The server exposes the REST API under /api/v1 (task CRUD, lifecycle
operations, dependencies, notes, optimization, gantt data, statistics), a
WebSocket event stream at /api/v1/events, and prometheus metrics at
/metrics. When autoOptimize is enabled in the configuration, a background
planner re-optimizes the schedule on a cron cadence.

Example:
  taskdog server --host=0.0.0.0 --port=8080
`,
		}, serverFlags, runServer,
	)
}

var serverFlags = []commandLineFlag{hostFlag, portFlag}

func runServer(ctx *Context, _ []string) error {
	logger.Info(ctx, "Server initialization", "host", ctx.Config.Server.Host, "port", ctx.Config.Server.Port)

	store, err := ctx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	notes, err := ctx.NotesStore()
	if err != nil {
		return err
	}

	registry := telemetry.NewRegistry(telemetry.NewCollector(build.Version, store))
	m := metrics.NewMetrics(registry)

	hub := events.NewHub(core.SystemClock{}, m)
	svc := ctx.NewService(store, notes, hub, m)

	tracer, err := telemetry.NewTracer(ctx, telemetry.TracerConfig{
		Enabled:  ctx.Config.Telemetry.Enabled,
		Endpoint: ctx.Config.Telemetry.Endpoint,
		Insecure: ctx.Config.Telemetry.Insecure,
		Headers:  ctx.Config.Telemetry.Headers,
	})
	if err != nil {
		logger.Warn(ctx, "Tracing disabled", "err", err)
	} else if tracer.IsEnabled() {
		logger.Info(ctx, "Tracing enabled", "endpoint", ctx.Config.Telemetry.Endpoint)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracer.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "Failed to shut down tracer", "err", err)
			}
		}()
	}

	watcher, err := filenotes.NewWatcher(ctx.Config.Paths.NotesDir)
	if err != nil {
		logger.Warn(ctx, "Notes watcher disabled", "err", err)
	} else {
		go watcher.Start(ctx)
		defer watcher.Stop()
		go func() {
			for id := range watcher.Events() {
				svc.NotifyNotesChanged(ctx, id)
			}
		}()
	}

	planner, err := autoplan.New(svc, autoplan.Config{
		Enabled:   ctx.Config.AutoOptimize.Enabled,
		Schedule:  ctx.Config.AutoOptimize.Schedule,
		Algorithm: ctx.Config.AutoOptimize.Algorithm,
	})
	if err != nil {
		return fmt.Errorf("failed to build auto-optimize planner: %w", err)
	}
	if planner.Enabled() {
		logger.Info(ctx, "Auto-optimize enabled", "schedule", ctx.Config.AutoOptimize.Schedule)
		go planner.Start(ctx)
		defer planner.Stop()
	}

	server := frontend.NewServer(ctx.Config, svc, hub, registry)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
