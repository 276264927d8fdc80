package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Kohei-Wada/taskdog-sub001/internal/build"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/fileutil"
	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/Kohei-Wada/taskdog-sub001/internal/scheduler"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Loader reads and merges configuration from config files, environment
// variables, and defaults.
type Loader struct {
	v          *viper.Viper
	configFile string
	homeDir    string
	paths      Paths
	warnings   []string
}

// LoaderOption defines a functional option for configuring a Loader.
type LoaderOption func(*Loader)

// WithConfigFile returns a LoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) LoaderOption {
	return func(l *Loader) {
		l.configFile = configFile
	}
}

// WithHome returns a LoaderOption that sets the application home directory,
// overriding the default TASKDOG_HOME resolution.
func WithHome(dir string) LoaderOption {
	return func(l *Loader) {
		l.homeDir = dir
	}
}

// NewLoader creates a Loader with the given viper instance and options.
func NewLoader(v *viper.Viper, opts ...LoaderOption) *Loader {
	loader := &Loader{v: v}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

// Load reads configuration files, applies defaults and environment
// overrides, and returns a validated Config.
func (l *Loader) Load() (*Config, error) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not determine home directory: %w", err)
	}

	if l.homeDir != "" {
		resolved, err := fileutil.ResolvePath(l.homeDir)
		if err != nil {
			return nil, err
		}
		l.paths = setHomePaths(resolved)
	} else {
		xdgConfig := XDGConfig{
			DataHome:   xdg.DataHome,
			ConfigHome: filepath.Join(userHome, ".config"),
		}
		l.paths = ResolvePaths(strings.ToUpper(build.Slug)+"_HOME", filepath.Join(userHome, "."+build.Slug), xdgConfig)
	}
	l.warnings = append(l.warnings, l.paths.Warnings...)

	l.configureViper()
	l.bindEnvironmentVariables()
	l.setDefaultValues()

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	configFileUsed, err := fileutil.ResolvePath(l.v.ConfigFileUsed())
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	cfg.Paths.ConfigFileUsed = configFileUsed
	cfg.Warnings = l.warnings

	return cfg, nil
}

// buildConfig transforms the Definition into a validated Config.
func (l *Loader) buildConfig(def Definition) (*Config, error) {
	var cfg Config

	l.loadServerConfig(&cfg, def)
	if err := l.loadPathsConfig(&cfg, def); err != nil {
		return nil, err
	}
	l.loadDatabaseConfig(&cfg, def)
	if err := l.loadWorkHoursConfig(&cfg, def); err != nil {
		return nil, err
	}
	l.loadSchedulerConfig(&cfg, def)
	l.loadAutoOptimizeConfig(&cfg, def)
	l.loadTelemetryConfig(&cfg, def)
	l.loadLogConfig(&cfg, def)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *Loader) loadServerConfig(cfg *Config, def Definition) {
	cfg.Server = Server{
		Host:     def.Host,
		Port:     def.Port,
		BasePath: cleanBasePath(def.BasePath),
	}

	// Read TLS keys directly so env-only values bind without a config file.
	certFile := l.v.GetString("tls.certFile")
	keyFile := l.v.GetString("tls.keyFile")
	if def.TLS != nil {
		setIfNotEmpty(&certFile, def.TLS.CertFile)
		setIfNotEmpty(&keyFile, def.TLS.KeyFile)
	}
	if certFile != "" || keyFile != "" {
		cfg.Server.TLS = &TLSConfig{CertFile: certFile, KeyFile: keyFile}
	}
}

// loadPathsConfig resolves the configured paths to absolute paths.
func (l *Loader) loadPathsConfig(cfg *Config, def Definition) error {
	cfg.Paths.ConfigDir = l.paths.ConfigDir

	if def.Paths == nil {
		return nil
	}

	pathMappings := []struct {
		name   string
		target *string
		source string
	}{
		{"dataDir", &cfg.Paths.DataDir, def.Paths.DataDir},
		{"notesDir", &cfg.Paths.NotesDir, def.Paths.NotesDir},
		{"logDir", &cfg.Paths.LogDir, def.Paths.LogDir},
		{"holidaysFile", &cfg.Paths.HolidaysFile, def.Paths.HolidaysFile},
	}

	for _, m := range pathMappings {
		resolved, err := l.resolvePath(m.name, m.source)
		if err != nil {
			return err
		}
		*m.target = resolved
	}

	return nil
}

func (l *Loader) loadDatabaseConfig(cfg *Config, def Definition) {
	cfg.Database = Database{Driver: DriverSQLite}
	if def.Database != nil {
		setIfNotEmpty(&cfg.Database.Driver, def.Database.Driver)
		cfg.Database.DSN = def.Database.DSN
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(cfg.Paths.DataDir, build.Slug+".db")
	}
}

func (l *Loader) loadWorkHoursConfig(cfg *Config, def Definition) error {
	cfg.WorkHours = WorkHours{
		MaxHoursPerDay: 6,
		DayStart:       core.WorkdayStart,
		DayEnd:         core.WorkdayEnd,
	}

	if def.WorkHours == nil {
		return nil
	}

	if def.WorkHours.MaxHoursPerDay > 0 {
		cfg.WorkHours.MaxHoursPerDay = def.WorkHours.MaxHoursPerDay
	}
	if def.WorkHours.DayStart != "" {
		t, err := core.ParseTimeOfDay(def.WorkHours.DayStart)
		if err != nil {
			return fmt.Errorf("invalid workHours.dayStart: %w", err)
		}
		cfg.WorkHours.DayStart = t
	}
	if def.WorkHours.DayEnd != "" {
		t, err := core.ParseTimeOfDay(def.WorkHours.DayEnd)
		if err != nil {
			return fmt.Errorf("invalid workHours.dayEnd: %w", err)
		}
		cfg.WorkHours.DayEnd = t
	}

	return nil
}

func (l *Loader) loadSchedulerConfig(cfg *Config, def Definition) {
	cfg.Scheduler = Scheduler{
		DefaultAlgorithm: scheduler.AlgorithmGreedy,
		HorizonDays:      scheduler.DefaultHorizonDays,
	}

	if def.Scheduler == nil {
		return
	}

	setIfNotEmpty(&cfg.Scheduler.DefaultAlgorithm, def.Scheduler.DefaultAlgorithm)
	if def.Scheduler.HorizonDays > 0 {
		cfg.Scheduler.HorizonDays = def.Scheduler.HorizonDays
	}
	if def.Scheduler.IncludeAllDays != nil {
		cfg.Scheduler.IncludeAllDays = *def.Scheduler.IncludeAllDays
	}
}

func (l *Loader) loadAutoOptimizeConfig(cfg *Config, def Definition) {
	if def.AutoOptimize == nil {
		return
	}

	if def.AutoOptimize.Enabled != nil {
		cfg.AutoOptimize.Enabled = *def.AutoOptimize.Enabled
	}
	cfg.AutoOptimize.Schedule = def.AutoOptimize.Schedule
	cfg.AutoOptimize.Algorithm = def.AutoOptimize.Algorithm
}

func (l *Loader) loadTelemetryConfig(cfg *Config, def Definition) {
	if def.Telemetry == nil {
		return
	}

	if def.Telemetry.Enabled != nil {
		cfg.Telemetry.Enabled = *def.Telemetry.Enabled
	}
	cfg.Telemetry.Endpoint = def.Telemetry.Endpoint
	if def.Telemetry.Insecure != nil {
		cfg.Telemetry.Insecure = *def.Telemetry.Insecure
	}
	cfg.Telemetry.Headers = def.Telemetry.Headers
}

func (l *Loader) loadLogConfig(cfg *Config, def Definition) {
	cfg.Log = Log{
		Format: def.LogFormat,
		Debug:  def.Debug,
		Quiet:  def.Quiet,
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// resolvePath resolves a path to an absolute path. Empty paths are returned as-is.
func (l *Loader) resolvePath(fieldName, pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	resolved, err := fileutil.ResolvePath(pathValue)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s path %q: %w", fieldName, pathValue, err)
	}
	return resolved, nil
}

func (l *Loader) configureViper() {
	if l.configFile == "" {
		l.v.AddConfigPath(l.paths.ConfigDir)
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(l.configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(build.Slug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaultValues() {
	// Server
	l.v.SetDefault("host", "127.0.0.1")
	l.v.SetDefault("port", 8080)
	l.v.SetDefault("basePath", "")

	// Database
	l.v.SetDefault("database.driver", DriverSQLite)
	l.v.SetDefault("database.dsn", "")

	// Paths
	l.v.SetDefault("paths.dataDir", l.paths.DataDir)
	l.v.SetDefault("paths.notesDir", l.paths.NotesDir)
	l.v.SetDefault("paths.logDir", l.paths.LogsDir)
	l.v.SetDefault("paths.holidaysFile", l.paths.HolidaysFile)

	// Work hours
	l.v.SetDefault("workHours.maxHoursPerDay", 6)
	l.v.SetDefault("workHours.dayStart", "09:00")
	l.v.SetDefault("workHours.dayEnd", "18:00")

	// Scheduler
	l.v.SetDefault("scheduler.defaultAlgorithm", scheduler.AlgorithmGreedy)
	l.v.SetDefault("scheduler.horizonDays", scheduler.DefaultHorizonDays)
	l.v.SetDefault("scheduler.includeAllDays", false)

	// Auto-optimize
	l.v.SetDefault("autoOptimize.enabled", false)
	l.v.SetDefault("autoOptimize.schedule", "0 6 * * *")
	l.v.SetDefault("autoOptimize.algorithm", "")

	// Telemetry
	l.v.SetDefault("telemetry.enabled", false)
	l.v.SetDefault("telemetry.endpoint", "")
	l.v.SetDefault("telemetry.insecure", false)

	// Log
	l.v.SetDefault("logFormat", "text")
	l.v.SetDefault("debug", false)
	l.v.SetDefault("quiet", false)
}

type envBinding struct {
	key    string
	env    string
	isPath bool
}

var envBindings = []envBinding{
	// Server
	{key: "host", env: "HOST"},
	{key: "port", env: "PORT"},
	{key: "basePath", env: "BASE_PATH"},
	{key: "tls.certFile", env: "CERT_FILE"},
	{key: "tls.keyFile", env: "KEY_FILE"},

	// Database
	{key: "database.driver", env: "DB_DRIVER"},
	{key: "database.dsn", env: "DB_DSN"},

	// Paths
	{key: "paths.dataDir", env: "DATA_DIR", isPath: true},
	{key: "paths.notesDir", env: "NOTES_DIR", isPath: true},
	{key: "paths.logDir", env: "LOG_DIR", isPath: true},
	{key: "paths.holidaysFile", env: "HOLIDAYS_FILE", isPath: true},

	// Work hours
	{key: "workHours.maxHoursPerDay", env: "MAX_HOURS_PER_DAY"},
	{key: "workHours.dayStart", env: "DAY_START"},
	{key: "workHours.dayEnd", env: "DAY_END"},

	// Scheduler
	{key: "scheduler.defaultAlgorithm", env: "DEFAULT_ALGORITHM"},
	{key: "scheduler.horizonDays", env: "HORIZON_DAYS"},
	{key: "scheduler.includeAllDays", env: "INCLUDE_ALL_DAYS"},

	// Auto-optimize
	{key: "autoOptimize.enabled", env: "AUTO_OPTIMIZE_ENABLED"},
	{key: "autoOptimize.schedule", env: "AUTO_OPTIMIZE_SCHEDULE"},
	{key: "autoOptimize.algorithm", env: "AUTO_OPTIMIZE_ALGORITHM"},

	// Telemetry
	{key: "telemetry.enabled", env: "TELEMETRY_ENABLED"},
	{key: "telemetry.endpoint", env: "TELEMETRY_ENDPOINT"},
	{key: "telemetry.insecure", env: "TELEMETRY_INSECURE"},

	// Log
	{key: "logFormat", env: "LOG_FORMAT"},
	{key: "debug", env: "DEBUG"},
	{key: "quiet", env: "QUIET"},
}

func (l *Loader) bindEnvironmentVariables() {
	prefix := strings.ToUpper(build.Slug) + "_"

	for _, b := range envBindings {
		fullEnv := prefix + b.env

		if b.isPath {
			if val := os.Getenv(fullEnv); val != "" {
				if abs, err := filepath.Abs(val); err == nil && abs != val {
					_ = os.Setenv(fullEnv, abs)
				}
			}
		}

		_ = l.v.BindEnv(b.key, fullEnv)
	}
}

func setIfNotEmpty(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// cleanBasePath normalizes the server base path. The root path is
// equivalent to no base path.
func cleanBasePath(s string) string {
	if s == "" {
		return ""
	}

	cleanPath := path.Clean(s)
	if !path.IsAbs(cleanPath) {
		cleanPath = path.Join("/", cleanPath)
	}

	if cleanPath == "/" {
		return ""
	}
	return cleanPath
}
