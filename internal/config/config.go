package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings is the fully resolved configuration handed to components at
// bootstrap. Components receive the sections they need by value and
// never consult viper themselves.
type Settings struct {
	Quality   string
	OutputDir string
	TempRoot  string
	Security  SecuritySettings
	License   LicenseSettings
	Incidents IncidentSettings
	Engine    EngineSettings
	Logging   LoggingSettings
	Profiles  map[string]ProfileSettings
}

// SecuritySettings holds the path deny tables. The lists are
// doublestar patterns matched against resolved paths.
type SecuritySettings struct {
	SensitiveFiles []string
	SensitiveDirs  []string
	CriticalFile   string
}

// LicenseSettings locates license material on disk.
type LicenseSettings struct {
	Dir           string
	PublicKeyPath string
}

// IncidentSettings locates the incident ledger directory.
type IncidentSettings struct {
	Dir string
}

// EngineSettings controls subprocess invocation.
type EngineSettings struct {
	Timeout         time.Duration
	ContinueOnError bool
}

// LoggingSettings controls the application log sink.
type LoggingSettings struct {
	Level      string
	File       string
	Format     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ProfileSettings describes a custom quality profile from the config
// file. Built-in profiles are not configurable.
type ProfileSettings struct {
	Preset string `mapstructure:"preset"`
	DPI    int    `mapstructure:"dpi"`
}

// FromViper builds Settings from the current viper state. Paths that
// default to the user's data directory are resolved here so the rest
// of the program only ever sees absolute locations.
func FromViper() (*Settings, error) {
	s := &Settings{
		Quality:   viper.GetString("quality"),
		OutputDir: viper.GetString("output_dir"),
		TempRoot:  viper.GetString("temp_root"),
		Security: SecuritySettings{
			SensitiveFiles: viper.GetStringSlice("security.sensitive_files"),
			SensitiveDirs:  viper.GetStringSlice("security.sensitive_dirs"),
			CriticalFile:   viper.GetString("security.critical_file"),
		},
		License: LicenseSettings{
			Dir:           viper.GetString("license.dir"),
			PublicKeyPath: viper.GetString("license.public_key_path"),
		},
		Incidents: IncidentSettings{
			Dir: viper.GetString("incidents.dir"),
		},
		Engine: EngineSettings{
			Timeout:         viper.GetDuration("engine.timeout"),
			ContinueOnError: viper.GetBool("engine.continue_on_error"),
		},
		Logging: LoggingSettings{
			Level:      viper.GetString("logging.level"),
			File:       viper.GetString("logging.file"),
			Format:     viper.GetString("logging.format"),
			MaxSizeMB:  viper.GetInt("logging.max_size_mb"),
			MaxBackups: viper.GetInt("logging.max_backups"),
			MaxAgeDays: viper.GetInt("logging.max_age_days"),
		},
	}

	if err := viper.UnmarshalKey("profiles", &s.Profiles); err != nil {
		return nil, fmt.Errorf("invalid profiles section: %w", err)
	}

	dataDir, err := defaultDataDir()
	if err != nil {
		return nil, err
	}
	if s.TempRoot == "" {
		s.TempRoot = os.TempDir()
	}
	if s.License.Dir == "" {
		s.License.Dir = filepath.Join(dataDir, "license")
	}
	if s.Incidents.Dir == "" {
		s.Incidents.Dir = filepath.Join(dataDir, "incidents")
	}

	for key, dir := range map[string]*string{
		"output_dir":    &s.OutputDir,
		"temp_root":     &s.TempRoot,
		"license.dir":   &s.License.Dir,
		"incidents.dir": &s.Incidents.Dir,
	} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("cannot resolve %s: %w", key, err)
		}
		*dir = abs
	}

	return s, nil
}

// defaultDataDir is the per-user home for license material and the
// incident ledger.
func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".compresskit"), nil
}
