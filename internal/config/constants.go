package config

import "time"

// Default values and limits for the compresskit trust layer
const (
	// Permission bits. Material under these modes holds either user
	// documents in flight or security records; nothing here is ever
	// group- or world-writable.
	TempFilePerm     = 0o600 // temp files, owner read-write only
	PrivateDirPerm   = 0o700 // temp subdirectories, license dir, incident dir
	OutputFilePerm   = 0o644 // finished PDFs handed back to the user
	LicenseFilePerm  = 0o600 // license record and detached signature
	IncidentFilePerm = 0o600 // incident records in the ledger

	// Engine invocation
	DefaultEngineTimeout = 0 * time.Second // 0 disables the subprocess deadline
	MaxCapturedOutput    = 1 * 1024 * 1024 // 1MB per stream before truncation

	// Incident ledger
	MaxIncidentDetail = 4096 // longest single detail value recorded

	// Logging defaults (lumberjack)
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 30
)

// Built-in quality profile names. Custom profiles come from
// configuration and are licensed separately.
const (
	ProfileScreen   = "screen"
	ProfileEbook    = "ebook"
	ProfilePrinter  = "printer"
	ProfilePrepress = "prepress"
)
