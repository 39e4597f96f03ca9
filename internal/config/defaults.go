package config

import (
	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
	"github.com/spf13/viper"
)

// SetViperDefaults sets all default configuration values in viper.
// Every key the program reads is declared here.
func SetViperDefaults() {
	// Compression defaults
	viper.SetDefault("quality", ProfileEbook)
	viper.SetDefault("output_dir", ".")
	viper.SetDefault("temp_root", "")

	// Path security defaults come from the guard itself; the config
	// layer only makes them overridable.
	viper.SetDefault("security.sensitive_files", security.DefaultSensitiveFiles())
	viper.SetDefault("security.sensitive_dirs", security.DefaultSensitiveDirs())
	viper.SetDefault("security.critical_file", security.DefaultCriticalFile)

	// License defaults; empty dir means ~/.compresskit/license
	viper.SetDefault("license.dir", "")
	viper.SetDefault("license.public_key_path", "")

	// Incident ledger defaults; empty dir means ~/.compresskit/incidents
	viper.SetDefault("incidents.dir", "")

	// Engine defaults. A zero timeout leaves subprocesses without a
	// deadline, matching historical behavior.
	viper.SetDefault("engine.timeout", DefaultEngineTimeout)
	viper.SetDefault("engine.continue_on_error", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.max_size_mb", LogMaxSizeMB)
	viper.SetDefault("logging.max_backups", LogMaxBackups)
	viper.SetDefault("logging.max_age_days", LogMaxAgeDays)

	// Custom profiles are empty by default; built-ins always exist.
	viper.SetDefault("profiles", map[string]any{})
}
