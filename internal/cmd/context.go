package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/config"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/fileutil"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/holiday"
	"github.com/Kohei-Wada/taskdog-sub001/internal/metrics"
	"github.com/Kohei-Wada/taskdog-sub001/internal/persistence/filenotes"
	"github.com/Kohei-Wada/taskdog-sub001/internal/persistence/sqldb"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/tasks"
)

// Context holds the loaded configuration and the logger for one command
// invocation.
type Context struct {
	context.Context

	Command *cobra.Command
	Flags   []commandLineFlag
	Config  *config.Config
	Quiet   bool
}

// NewContext loads configuration, sets up the logger context, and logs any
// warnings collected along the way.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()

	bindFlags(cmd, flags)

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var loaderOpts []config.LoaderOption
	if cfgPath := viper.GetString("config"); cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.NewLoader(viper.GetViper(), loaderOpts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var opts []logger.Option
	if cfg.Log.Debug || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if quiet || cfg.Log.Quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cfg.Log.Format != "" {
		opts = append(opts, logger.WithFormat(cfg.Log.Format))
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))

	for _, w := range cfg.Warnings {
		logger.Warn(ctx, w)
	}

	return &Context{
		Context: ctx,
		Command: cmd,
		Flags:   flags,
		Config:  cfg,
		Quiet:   quiet,
	}, nil
}

// OpenStore connects to the configured task database, running pending
// migrations. The caller owns the returned store and must Close it.
func (c *Context) OpenStore() (*sqldb.Store, error) {
	if err := fileutil.EnsureDir(c.Config.Paths.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", c.Config.Paths.DataDir, err)
	}
	store, err := sqldb.Open(c, sqldb.Config{
		Driver:   c.Config.Database.Driver,
		DSN:      c.Config.Database.DSN,
		FileLock: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open task store: %w", err)
	}
	return store, nil
}

// NotesStore returns the markdown notes store rooted at the configured
// notes directory.
func (c *Context) NotesStore() (*filenotes.Store, error) {
	if err := fileutil.EnsureDir(c.Config.Paths.NotesDir); err != nil {
		return nil, fmt.Errorf("failed to create notes directory %s: %w", c.Config.Paths.NotesDir, err)
	}
	return filenotes.New(c.Config.Paths.NotesDir), nil
}

// NewService assembles the task service over the given collaborators. The
// hub and metrics may be nil for one-shot commands that do not broadcast.
func (c *Context) NewService(store *sqldb.Store, notes tasks.NotesStore, hub *events.Hub, m *metrics.Metrics) *tasks.Service {
	opts := []tasks.Option{
		tasks.WithWorkHours(c.Config.WorkHours.MaxHoursPerDay, c.Config.WorkHours.DayStart, c.Config.WorkHours.DayEnd),
		tasks.WithHorizonDays(c.Config.Scheduler.HorizonDays),
		tasks.WithDefaultAlgorithm(c.Config.Scheduler.DefaultAlgorithm),
	}
	if c.Config.Paths.HolidaysFile != "" {
		opts = append(opts, tasks.WithHolidays(holiday.NewChecker(c.Config.Paths.HolidaysFile)))
	}
	if m != nil {
		opts = append(opts, tasks.WithMetrics(m))
	}
	return tasks.New(store, notes, hub, opts...)
}

// NewCommand wraps a cobra command with flag registration, context setup,
// and uniform error handling.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd, flags)
		if err != nil {
			fmt.Printf("Initialization error: %v\n", err)
			os.Exit(1)
		}
		if err := runFunc(ctx, args); err != nil {
			logger.Error(ctx.Context, "Command failed", "err", err)
			os.Exit(1)
		}
		return nil
	}

	return cmd
}
