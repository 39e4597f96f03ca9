// Package license decides whether gated features may run. A license
// is a signed Key:Value record on disk; trust in it is recomputed on
// every query and never cached across process runs.
package license

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Type is the purchased tier.
type Type string

const (
	TypeBasic      Type = "basic"
	TypePro        Type = "pro"
	TypeEnterprise Type = "enterprise"
)

// Status is the single outcome of a validation run. Checks run in a
// fixed order and stop at the first failure, so one status never
// shadows an earlier one.
type Status int

const (
	StatusValid Status = iota
	StatusInvalidSignature
	StatusExpired
	StatusMissing
	StatusCorrupt
	StatusInvalidFormat
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalidSignature:
		return "invalid signature"
	case StatusExpired:
		return "expired"
	case StatusMissing:
		return "missing"
	case StatusCorrupt:
		return "corrupt"
	case StatusInvalidFormat:
		return "invalid format"
	}
	return "unknown"
}

// License is a parsed, signature-verified record.
type License struct {
	Type     Type   `validate:"required,oneof=basic pro enterprise"`
	Customer string `validate:"required"`
	Email    string `validate:"required,email"`
	Issued   time.Time
	Expires  time.Time `validate:"required"`
	Features []string
	ID       string `validate:"required"`
}

// Record field names as they appear on disk.
const (
	fieldType     = "Type"
	fieldCustomer = "Customer"
	fieldEmail    = "Email"
	fieldIssued   = "Issued"
	fieldExpires  = "Expires"
	fieldFeatures = "Features"
	fieldID       = "LicenseID"
)

const dateLayout = "2006-01-02"

// Gated feature names.
const (
	FeatureAdvancedCompression = "advanced_compression"
	FeatureBatchProcessing     = "batch_processing"
	FeaturePrioritySupport     = "priority_support"
	FeatureCustomProfiles      = "custom_profiles"
)

// DefaultFeatureTiers returns the built-in feature gate table. A
// feature absent from the table is denied no matter what a license
// claims.
func DefaultFeatureTiers() map[string][]Type {
	return map[string][]Type{
		FeatureAdvancedCompression: {TypeBasic, TypePro, TypeEnterprise},
		FeatureBatchProcessing:     {TypePro, TypeEnterprise},
		FeaturePrioritySupport:     {TypeEnterprise},
		FeatureCustomProfiles:      {TypeEnterprise},
	}
}

// parseRecord splits the record into trimmed Key:Value pairs. Damage
// at this level (binary garbage, no pairs at all) is a corruption
// outcome, distinct from a well-formed record with bad field values.
func parseRecord(data []byte) (map[string]string, error) {
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, errors.New("record is not text")
	}
	fields := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %q has no separator", line)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if len(fields) == 0 {
		return nil, errors.New("record holds no fields")
	}
	return fields, nil
}

// parseFeatures splits the comma-separated Features value.
func parseFeatures(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	features := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			features = append(features, trimmed)
		}
	}
	return features
}
