package config

import (
	"os"
	"path/filepath"

	"github.com/Kohei-Wada/taskdog-sub001/internal/build"
	"github.com/Kohei-Wada/taskdog-sub001/internal/common/fileutil"
)

// Paths holds the directories the application works out of.
type Paths struct {
	// ConfigDir is the primary configuration directory.
	ConfigDir string
	// DataDir is the directory for persisting application data.
	DataDir string
	// NotesDir is the directory holding per-task markdown notes.
	NotesDir string
	// LogsDir is the directory where log files are written.
	LogsDir string
	// HolidaysFile is the default location of the YAML holidays file.
	HolidaysFile string
	// Warnings collects any warnings encountered during path resolution.
	Warnings []string
}

// XDGConfig contains the standard XDG directories used as a fallback.
type XDGConfig struct {
	DataHome   string
	ConfigHome string
}

// ResolvePaths determines application paths from the home environment
// variable, a legacy home directory, and the XDG base directories.
//
// Resolution logic:
// 1. If the environment variable (appHomeEnv) is set, use its value with the home directory structure.
// 2. Else, if the legacy home exists on disk, use it.
// 3. Otherwise, fall back to XDG-compliant defaults.
func ResolvePaths(appHomeEnv, legacyPath string, xdg XDGConfig) Paths {
	switch {
	case os.Getenv(appHomeEnv) != "":
		return setHomePaths(os.Getenv(appHomeEnv))
	case fileutil.FileExists(legacyPath):
		return setHomePaths(legacyPath)
	default:
		return setXDGPaths(xdg)
	}
}

// setXDGPaths spreads the application directories over the XDG base
// directories (config under ConfigHome, data and logs under DataHome).
func setXDGPaths(xdg XDGConfig) Paths {
	configDir := filepath.Join(xdg.ConfigHome, build.Slug)
	return Paths{
		ConfigDir:    configDir,
		DataDir:      filepath.Join(xdg.DataHome, build.Slug, "data"),
		NotesDir:     filepath.Join(xdg.DataHome, build.Slug, "notes"),
		LogsDir:      filepath.Join(xdg.DataHome, build.Slug, "logs"),
		HolidaysFile: filepath.Join(configDir, "holidays.yaml"),
	}
}

// setHomePaths places every application directory under a single home
// directory, the layout used when TASKDOG_HOME is set.
func setHomePaths(homeDir string) Paths {
	return Paths{
		ConfigDir:    homeDir,
		DataDir:      filepath.Join(homeDir, "data"),
		NotesDir:     filepath.Join(homeDir, "notes"),
		LogsDir:      filepath.Join(homeDir, "logs"),
		HolidaysFile: filepath.Join(homeDir, "holidays.yaml"),
	}
}
