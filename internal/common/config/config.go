package config

import (
	"fmt"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/scheduler"
)

// Config holds the resolved runtime configuration for the application.
type Config struct {
	// Server contains the HTTP server configuration.
	Server Server

	// Database selects and parameterizes the task store backend.
	Database Database

	// Paths holds filesystem path settings used throughout the application.
	Paths PathsConfig

	// WorkHours bounds the portion of a day the optimizer may fill.
	WorkHours WorkHours

	// Scheduler holds optimization defaults.
	Scheduler Scheduler

	// AutoOptimize configures the background optimization service.
	AutoOptimize AutoOptimize

	// Telemetry configures the OTLP trace exporter.
	Telemetry Telemetry

	// Log configures logging output.
	Log Log

	// Warnings collects non-fatal issues found while loading.
	Warnings []string
}

// Server holds the HTTP server configuration.
type Server struct {
	// Host defines the hostname or IP address the server binds to.
	Host string

	// Port specifies the network port for incoming connections.
	Port int

	// BasePath is the root URL path from which the application is served.
	// Useful when hosting behind a reverse proxy under a subpath.
	BasePath string

	// TLS enables HTTPS when non-nil.
	TLS *TLSConfig
}

// TLSConfig holds the TLS certificate and key file paths.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Database selects and parameterizes the task store backend.
type Database struct {
	// Driver is the backend identifier ("sqlite" or "postgres").
	Driver string

	// DSN is the driver-specific data source name. Empty means the default
	// sqlite file under DataDir.
	DSN string
}

// PathsConfig holds filesystem path settings.
type PathsConfig struct {
	// ConfigDir is the primary configuration directory.
	ConfigDir string

	// DataDir is the directory for persisting application data.
	DataDir string

	// NotesDir is the directory holding per-task markdown notes.
	NotesDir string

	// LogDir is the directory where log files are written.
	LogDir string

	// HolidaysFile is the path to the YAML holidays file. A missing file
	// means weekends are the only non-workdays.
	HolidaysFile string

	// ConfigFileUsed is the resolved path of the loaded config file, if any.
	ConfigFileUsed string
}

// WorkHours bounds the portion of a day the optimizer may fill.
type WorkHours struct {
	// MaxHoursPerDay is the default per-day capacity for optimization runs.
	MaxHoursPerDay float64

	// DayStart is the wall-clock time planned windows open at.
	DayStart core.TimeOfDay

	// DayEnd is the wall-clock time planned windows close at.
	DayEnd core.TimeOfDay
}

// Scheduler holds optimization defaults.
type Scheduler struct {
	// DefaultAlgorithm is the strategy used when a request does not name one.
	DefaultAlgorithm string

	// HorizonDays is the scan window for tasks without a deadline.
	HorizonDays int

	// IncludeAllDays treats weekends and holidays as schedulable.
	IncludeAllDays bool
}

// AutoOptimize configures the background optimization service.
type AutoOptimize struct {
	// Enabled starts the cron-driven optimizer alongside the server.
	Enabled bool

	// Schedule is a five-field cron expression.
	Schedule string

	// Algorithm names the strategy for automatic runs. Empty falls back to
	// the scheduler default.
	Algorithm string
}

// Telemetry configures the OTLP trace exporter.
type Telemetry struct {
	// Enabled turns on trace export.
	Enabled bool

	// Endpoint is the OTLP collector address. An http or https URL selects
	// the HTTP exporter, anything else gRPC.
	Endpoint string

	// Insecure disables transport security for the exporter connection.
	Insecure bool

	// Headers are additional headers sent with each export request.
	Headers map[string]string
}

// Log configures logging output.
type Log struct {
	// Format selects the log encoder ("text" or "json").
	Format string

	// Debug lowers the log level to debug.
	Debug bool

	// Quiet suppresses console output.
	Quiet bool
}

// Validate checks the configuration for errors that would prevent startup.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Server.Port)
	}
	if c.Server.TLS != nil {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS configuration incomplete: both certFile and keyFile must be set")
		}
	}

	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database driver %q requires a DSN", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q (want %s or %s)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	if c.WorkHours.MaxHoursPerDay <= 0 || c.WorkHours.MaxHoursPerDay > 24 {
		return fmt.Errorf("maxHoursPerDay must be within (0, 24], got %g", c.WorkHours.MaxHoursPerDay)
	}
	if !c.WorkHours.DayStart.Before(c.WorkHours.DayEnd) {
		return fmt.Errorf("workHours.dayStart %s must be before dayEnd %s", c.WorkHours.DayStart, c.WorkHours.DayEnd)
	}

	if !scheduler.Known(c.Scheduler.DefaultAlgorithm) {
		return fmt.Errorf("unknown scheduler.defaultAlgorithm %q", c.Scheduler.DefaultAlgorithm)
	}
	if c.Scheduler.HorizonDays <= 0 {
		return fmt.Errorf("scheduler.horizonDays must be positive, got %d", c.Scheduler.HorizonDays)
	}

	if c.AutoOptimize.Enabled {
		if c.AutoOptimize.Schedule == "" {
			return fmt.Errorf("autoOptimize.enabled requires autoOptimize.schedule")
		}
		if c.AutoOptimize.Algorithm != "" && !scheduler.Known(c.AutoOptimize.Algorithm) {
			return fmt.Errorf("unknown autoOptimize.algorithm %q", c.AutoOptimize.Algorithm)
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.enabled requires telemetry.endpoint")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.Log.Format)
	}

	return nil
}
