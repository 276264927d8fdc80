package config

// Definition is the raw configuration shape unmarshaled from YAML and
// environment sources. Pointer fields distinguish "unset" from zero values.
type Definition struct {
	// Host defines the hostname or IP address the server binds to.
	Host string `mapstructure:"host"`

	// Port specifies the network port for incoming connections.
	Port int `mapstructure:"port"`

	// BasePath is the root URL path from which the application is served.
	BasePath string `mapstructure:"basePath"`

	// TLS contains certificate and key file paths for HTTPS.
	TLS *TLSDef `mapstructure:"tls"`

	// Database selects the task store backend.
	Database *DatabaseDef `mapstructure:"database"`

	// Paths holds filesystem path overrides.
	Paths *PathsDef `mapstructure:"paths"`

	// WorkHours bounds the optimizer's daily window.
	WorkHours *WorkHoursDef `mapstructure:"workHours"`

	// Scheduler holds optimization defaults.
	Scheduler *SchedulerDef `mapstructure:"scheduler"`

	// AutoOptimize configures the background optimization service.
	AutoOptimize *AutoOptimizeDef `mapstructure:"autoOptimize"`

	// Telemetry configures the OTLP trace exporter.
	Telemetry *TelemetryDef `mapstructure:"telemetry"`

	// LogFormat defines the output format for log messages ("text" or "json").
	LogFormat string `mapstructure:"logFormat"`

	// Debug toggles debug logging.
	Debug bool `mapstructure:"debug"`

	// Quiet suppresses console log output.
	Quiet bool `mapstructure:"quiet"`
}

// TLSDef holds raw TLS settings.
type TLSDef struct {
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// DatabaseDef holds raw database settings.
type DatabaseDef struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// PathsDef holds raw filesystem path settings.
type PathsDef struct {
	DataDir      string `mapstructure:"dataDir"`
	NotesDir     string `mapstructure:"notesDir"`
	LogDir       string `mapstructure:"logDir"`
	HolidaysFile string `mapstructure:"holidaysFile"`
}

// WorkHoursDef holds raw work-hour settings. DayStart and DayEnd are "HH:MM".
type WorkHoursDef struct {
	MaxHoursPerDay float64 `mapstructure:"maxHoursPerDay"`
	DayStart       string  `mapstructure:"dayStart"`
	DayEnd         string  `mapstructure:"dayEnd"`
}

// SchedulerDef holds raw optimization defaults.
type SchedulerDef struct {
	DefaultAlgorithm string `mapstructure:"defaultAlgorithm"`
	HorizonDays      int    `mapstructure:"horizonDays"`
	IncludeAllDays   *bool  `mapstructure:"includeAllDays"`
}

// AutoOptimizeDef holds raw auto-optimize settings.
type AutoOptimizeDef struct {
	Enabled   *bool  `mapstructure:"enabled"`
	Schedule  string `mapstructure:"schedule"`
	Algorithm string `mapstructure:"algorithm"`
}

// TelemetryDef holds raw telemetry settings.
type TelemetryDef struct {
	Enabled  *bool             `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure *bool             `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}
