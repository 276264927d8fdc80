package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Kohei-Wada/taskdog-sub001/internal/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad(t *testing.T, opts ...LoaderOption) *Config {
	t.Helper()
	cfg, err := NewLoader(viper.New(), opts...).Load()
	require.NoError(t, err)
	return cfg
}

func testLoadWithError(t *testing.T, opts ...LoaderOption) error {
	t.Helper()
	_, err := NewLoader(viper.New(), opts...).Load()
	return err
}

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0600))
	return file
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()

	cfg := testLoad(t, WithHome(home))

	expected := &Config{
		Server: Server{Host: "127.0.0.1", Port: 8080},
		Database: Database{
			Driver: DriverSQLite,
			DSN:    filepath.Join(home, "data", "taskdog.db"),
		},
		Paths: PathsConfig{
			ConfigDir:    home,
			DataDir:      filepath.Join(home, "data"),
			NotesDir:     filepath.Join(home, "notes"),
			LogDir:       filepath.Join(home, "logs"),
			HolidaysFile: filepath.Join(home, "holidays.yaml"),
		},
		WorkHours: WorkHours{
			MaxHoursPerDay: 6,
			DayStart:       core.TimeOfDay{Hour: 9},
			DayEnd:         core.TimeOfDay{Hour: 18},
		},
		Scheduler: Scheduler{
			DefaultAlgorithm: "greedy",
			HorizonDays:      14,
		},
		AutoOptimize: AutoOptimize{Schedule: "0 6 * * *"},
		Log:          Log{Format: "text"},
	}
	assert.Equal(t, expected, cfg)
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	configFile := writeConfigFile(t, home, `
host: 0.0.0.0
port: 7000
basePath: dog
database:
  driver: postgres
  dsn: postgres://taskdog@localhost:5432/taskdog
workHours:
  maxHoursPerDay: 5
  dayStart: "10:00"
  dayEnd: "16:30"
scheduler:
  defaultAlgorithm: round_robin
  horizonDays: 30
  includeAllDays: true
autoOptimize:
  enabled: true
  schedule: "15 2 * * *"
  algorithm: balanced
telemetry:
  enabled: true
  endpoint: https://otel.example.com:4318
  headers:
    x-api-key: secret
logFormat: json
debug: true
`)

	cfg := testLoad(t, WithHome(home))

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/dog", cfg.Server.BasePath)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://taskdog@localhost:5432/taskdog", cfg.Database.DSN)
	assert.Equal(t, 5.0, cfg.WorkHours.MaxHoursPerDay)
	assert.Equal(t, core.TimeOfDay{Hour: 10}, cfg.WorkHours.DayStart)
	assert.Equal(t, core.TimeOfDay{Hour: 16, Minute: 30}, cfg.WorkHours.DayEnd)
	assert.Equal(t, "round_robin", cfg.Scheduler.DefaultAlgorithm)
	assert.Equal(t, 30, cfg.Scheduler.HorizonDays)
	assert.True(t, cfg.Scheduler.IncludeAllDays)
	assert.True(t, cfg.AutoOptimize.Enabled)
	assert.Equal(t, "15 2 * * *", cfg.AutoOptimize.Schedule)
	assert.Equal(t, "balanced", cfg.AutoOptimize.Algorithm)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "https://otel.example.com:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, map[string]string{"x-api-key": "secret"}, cfg.Telemetry.Headers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.Debug)
	assert.Equal(t, configFile, cfg.Paths.ConfigFileUsed)
}

func TestLoadEnvOverrides(t *testing.T) {
	home := t.TempDir()
	certDir := t.TempDir()

	testEnvs := map[string]string{
		"TASKDOG_HOST":      "test.example.com",
		"TASKDOG_PORT":      "9876",
		"TASKDOG_BASE_PATH": "/taskdog",

		"TASKDOG_CERT_FILE": filepath.Join(certDir, "cert.pem"),
		"TASKDOG_KEY_FILE":  filepath.Join(certDir, "key.pem"),

		"TASKDOG_DB_DRIVER": "postgres",
		"TASKDOG_DB_DSN":    "postgres://env@localhost/taskdog",

		"TASKDOG_MAX_HOURS_PER_DAY": "7.5",
		"TASKDOG_DAY_START":         "08:30",
		"TASKDOG_DAY_END":           "17:00",

		"TASKDOG_DEFAULT_ALGORITHM": "balanced",
		"TASKDOG_HORIZON_DAYS":      "21",
		"TASKDOG_INCLUDE_ALL_DAYS":  "true",

		"TASKDOG_AUTO_OPTIMIZE_ENABLED":   "true",
		"TASKDOG_AUTO_OPTIMIZE_SCHEDULE":  "30 7 * * *",
		"TASKDOG_AUTO_OPTIMIZE_ALGORITHM": "backward",

		"TASKDOG_TELEMETRY_ENABLED":  "true",
		"TASKDOG_TELEMETRY_ENDPOINT": "localhost:4317",
		"TASKDOG_TELEMETRY_INSECURE": "true",

		"TASKDOG_LOG_FORMAT": "json",
		"TASKDOG_DEBUG":      "true",
		"TASKDOG_QUIET":      "true",
	}
	for key, val := range testEnvs {
		t.Setenv(key, val)
	}

	cfg := testLoad(t, WithHome(home))

	assert.Equal(t, "test.example.com", cfg.Server.Host)
	assert.Equal(t, 9876, cfg.Server.Port)
	assert.Equal(t, "/taskdog", cfg.Server.BasePath)
	require.NotNil(t, cfg.Server.TLS)
	assert.Equal(t, filepath.Join(certDir, "cert.pem"), cfg.Server.TLS.CertFile)
	assert.Equal(t, filepath.Join(certDir, "key.pem"), cfg.Server.TLS.KeyFile)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://env@localhost/taskdog", cfg.Database.DSN)
	assert.Equal(t, 7.5, cfg.WorkHours.MaxHoursPerDay)
	assert.Equal(t, core.TimeOfDay{Hour: 8, Minute: 30}, cfg.WorkHours.DayStart)
	assert.Equal(t, core.TimeOfDay{Hour: 17}, cfg.WorkHours.DayEnd)
	assert.Equal(t, "balanced", cfg.Scheduler.DefaultAlgorithm)
	assert.Equal(t, 21, cfg.Scheduler.HorizonDays)
	assert.True(t, cfg.Scheduler.IncludeAllDays)
	assert.True(t, cfg.AutoOptimize.Enabled)
	assert.Equal(t, "30 7 * * *", cfg.AutoOptimize.Schedule)
	assert.Equal(t, "backward", cfg.AutoOptimize.Algorithm)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, Log{Format: "json", Debug: true, Quiet: true}, cfg.Log)
}

func TestLoadEnvPathOverrides(t *testing.T) {
	home := t.TempDir()
	dataRoot := t.TempDir()

	t.Setenv("TASKDOG_DATA_DIR", filepath.Join(dataRoot, "data"))
	t.Setenv("TASKDOG_NOTES_DIR", filepath.Join(dataRoot, "notes"))
	t.Setenv("TASKDOG_LOG_DIR", filepath.Join(dataRoot, "logs"))
	t.Setenv("TASKDOG_HOLIDAYS_FILE", filepath.Join(dataRoot, "jp.yaml"))

	cfg := testLoad(t, WithHome(home))

	assert.Equal(t, filepath.Join(dataRoot, "data"), cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join(dataRoot, "notes"), cfg.Paths.NotesDir)
	assert.Equal(t, filepath.Join(dataRoot, "logs"), cfg.Paths.LogDir)
	assert.Equal(t, filepath.Join(dataRoot, "jp.yaml"), cfg.Paths.HolidaysFile)
	assert.Equal(t, filepath.Join(dataRoot, "data", "taskdog.db"), cfg.Database.DSN)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "UnknownDriver",
			yaml:    "database:\n  driver: mysql\n",
			wantErr: "unknown database driver",
		},
		{
			name:    "PostgresWithoutDSN",
			yaml:    "database:\n  driver: postgres\n",
			wantErr: "requires a DSN",
		},
		{
			name:    "InvertedWorkHours",
			yaml:    "workHours:\n  dayStart: \"18:00\"\n  dayEnd: \"09:00\"\n",
			wantErr: "must be before",
		},
		{
			name:    "MalformedDayStart",
			yaml:    "workHours:\n  dayStart: 9am\n",
			wantErr: "invalid workHours.dayStart",
		},
		{
			name:    "ExcessiveDailyHours",
			yaml:    "workHours:\n  maxHoursPerDay: 30\n",
			wantErr: "maxHoursPerDay",
		},
		{
			name:    "UnknownAlgorithm",
			yaml:    "scheduler:\n  defaultAlgorithm: quantum\n",
			wantErr: "unknown scheduler.defaultAlgorithm",
		},
		{
			name:    "AutoOptimizeWithoutSchedule",
			yaml:    "autoOptimize:\n  enabled: true\n  schedule: \"\"\n",
			wantErr: "requires autoOptimize.schedule",
		},
		{
			name:    "AutoOptimizeUnknownAlgorithm",
			yaml:    "autoOptimize:\n  enabled: true\n  algorithm: quantum\n",
			wantErr: "unknown autoOptimize.algorithm",
		},
		{
			name:    "TelemetryWithoutEndpoint",
			yaml:    "telemetry:\n  enabled: true\n",
			wantErr: "requires telemetry.endpoint",
		},
		{
			name:    "InvalidPort",
			yaml:    "port: 99999\n",
			wantErr: "invalid port number",
		},
		{
			name:    "IncompleteTLS",
			yaml:    "tls:\n  certFile: /tmp/cert.pem\n",
			wantErr: "TLS configuration incomplete",
		},
		{
			name:    "UnknownLogFormat",
			yaml:    "logFormat: xml\n",
			wantErr: "unknown log format",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			home := t.TempDir()
			writeConfigFile(t, home, tc.yaml)

			err := testLoadWithError(t, WithHome(home))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestResolvePaths(t *testing.T) {
	t.Run("EnvHome", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("TASKDOG_TEST_HOME", home)

		paths := ResolvePaths("TASKDOG_TEST_HOME", filepath.Join(home, "absent"), XDGConfig{})

		assert.Equal(t, home, paths.ConfigDir)
		assert.Equal(t, filepath.Join(home, "data"), paths.DataDir)
		assert.Equal(t, filepath.Join(home, "notes"), paths.NotesDir)
		assert.Equal(t, filepath.Join(home, "logs"), paths.LogsDir)
		assert.Equal(t, filepath.Join(home, "holidays.yaml"), paths.HolidaysFile)
	})

	t.Run("LegacyHome", func(t *testing.T) {
		legacy := t.TempDir()

		paths := ResolvePaths("TASKDOG_TEST_HOME_UNSET", legacy, XDGConfig{})

		assert.Equal(t, legacy, paths.ConfigDir)
	})

	t.Run("XDGFallback", func(t *testing.T) {
		root := t.TempDir()
		xdg := XDGConfig{
			DataHome:   filepath.Join(root, "share"),
			ConfigHome: filepath.Join(root, "config"),
		}

		paths := ResolvePaths("TASKDOG_TEST_HOME_UNSET", filepath.Join(root, "absent"), xdg)

		assert.Equal(t, filepath.Join(root, "config", "taskdog"), paths.ConfigDir)
		assert.Equal(t, filepath.Join(root, "share", "taskdog", "data"), paths.DataDir)
		assert.Equal(t, filepath.Join(root, "share", "taskdog", "notes"), paths.NotesDir)
		assert.Equal(t, filepath.Join(root, "share", "taskdog", "logs"), paths.LogsDir)
		assert.Equal(t, filepath.Join(root, "config", "taskdog", "holidays.yaml"), paths.HolidaysFile)
	})
}

func TestCleanBasePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"taskdog", "/taskdog"},
		{"/a/b/", "/a/b"},
		{"a/../b", "/b"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, cleanBasePath(tc.in), "cleanBasePath(%q)", tc.in)
	}
}
