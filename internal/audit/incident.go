// Package audit keeps the append-only incident ledger. Every security
// denial elsewhere in the toolkit lands here as one immutable JSON
// file per event; nothing in this package rewrites or deletes a
// record.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Severity ranks an incident for later triage.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Incident type names recorded in the ledger.
const (
	IncidentPathNullByte         = "path_null_byte"
	IncidentPathTraversal        = "path_traversal"
	IncidentPathEncodedTraversal = "path_encoded_traversal"
	IncidentPathSymlinkEscape    = "path_symlink_escape"
	IncidentPathSensitiveTarget  = "path_sensitive_target"
	IncidentPathDenied           = "path_denied"
	IncidentCommandNotAllowed    = "command_not_allowed"
	IncidentCommandArgsRejected  = "command_args_rejected"
	IncidentCommandDenied        = "command_denied"
	IncidentLicenseTampering     = "license_tampering"
)

// Incident is one recorded security event.
type Incident struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Severity  Severity          `json:"severity"`
	Timestamp time.Time         `json:"timestamp"`
	Operation string            `json:"operation,omitempty"`
	Origin    Origin            `json:"origin"`
	Details   map[string]string `json:"details,omitempty"`
}

// Origin identifies the process that recorded an incident.
type Origin struct {
	Host      string `json:"host,omitempty"`
	MachineID string `json:"machine_id,omitempty"`
	PID       int    `json:"pid"`
}

// fileStamp prefixes ledger file names so a plain directory listing
// is already chronological.
const fileStamp = "20060102-150405"

func fileName(inc Incident) string {
	return inc.Timestamp.UTC().Format(fileStamp) + "-" + inc.ID + ".json"
}

// List reads every record in dir in chronological order. Damaged
// entries are collected into the joined error; intact ones are still
// returned. A missing directory means an empty ledger.
func List(dir string) ([]Incident, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read incident dir: %w", err)
	}
	var incidents []Incident
	var damaged []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			damaged = append(damaged, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		var inc Incident
		if err := json.Unmarshal(data, &inc); err != nil {
			damaged = append(damaged, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		incidents = append(incidents, inc)
	}
	return incidents, errors.Join(damaged...)
}
