package license

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CrisisCore-Systems/CompressKit-sub000/internal/security"
	"github.com/go-playground/validator/v10"
)

// Reporter receives tampering signals. Implemented by the incident
// ledger; nil disables reporting.
type Reporter interface {
	ReportLicenseTampering(dir string)
}

// Validator drives the fixed check sequence over the on-disk license
// material. It holds no trust state: every Validate call starts from
// the files.
type Validator struct {
	dir      string
	pub      ed25519.PublicKey
	guard    *security.Guard
	logger   *slog.Logger
	reporter Reporter
	tiers    map[string][]Type
	now      func() time.Time
	check    *validator.Validate
}

// Option configures a Validator at construction.
type Option func(*Validator)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithFeatureTiers replaces the feature gate table. The table is
// copied; later mutation of the argument has no effect.
func WithFeatureTiers(tiers map[string][]Type) Option {
	return func(v *Validator) {
		copied := make(map[string][]Type, len(tiers))
		for feature, ts := range tiers {
			copied[feature] = append([]Type(nil), ts...)
		}
		v.tiers = copied
	}
}

// WithReporter wires tampering reports.
func WithReporter(r Reporter) Option {
	return func(v *Validator) { v.reporter = r }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// NewValidator builds a Validator over the license directory and
// verification key.
func NewValidator(dir string, pub ed25519.PublicKey, guard *security.Guard, opts ...Option) *Validator {
	v := &Validator{
		dir:    dir,
		pub:    pub,
		guard:  guard,
		logger: slog.Default(),
		tiers:  DefaultFeatureTiers(),
		now:    time.Now,
		check:  validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Dir returns the directory holding the license material.
func (v *Validator) Dir() string { return v.dir }

// Validate runs the fixed sequence: locate, read, decode, verify
// signature, check expiration, check structure. The first failure
// decides the status. Parsed fields are returned only after the
// signature verifies; unauthenticated content never leaves this
// package.
func (v *Validator) Validate() (*License, Status) {
	recData, sig, status := v.readMaterial()
	if status != StatusValid {
		return nil, status
	}
	fields, err := parseRecord(recData)
	if err != nil {
		v.logger.Warn("license record unreadable", "error", err)
		return nil, StatusCorrupt
	}

	if !ed25519.Verify(v.pub, recData, sig) {
		v.logger.Warn("license signature mismatch", "dir", v.dir)
		if v.reporter != nil {
			v.reporter.ReportLicenseTampering(v.dir)
		}
		return nil, StatusInvalidSignature
	}

	// Authentic from here on; partial data may accompany a failing
	// status so the user can see what they hold.
	lic := &License{
		Customer: fields[fieldCustomer],
		Email:    fields[fieldEmail],
		Features: parseFeatures(fields[fieldFeatures]),
		ID:       fields[fieldID],
	}
	if issued, err := time.Parse(dateLayout, fields[fieldIssued]); err == nil {
		lic.Issued = issued
	}

	expires, err := time.Parse(dateLayout, fields[fieldExpires])
	if err != nil {
		v.logger.Warn("license expiry unparsable", "value", fields[fieldExpires])
		return lic, StatusInvalidFormat
	}
	lic.Expires = expires
	if expires.Before(v.today()) {
		v.logger.Warn("license expired", "expires", expires.Format(dateLayout))
		return lic, StatusExpired
	}

	lic.Type = Type(strings.ToLower(fields[fieldType]))
	switch lic.Type {
	case TypeBasic, TypePro, TypeEnterprise:
	default:
		v.logger.Warn("license type unknown", "type", fields[fieldType])
		return lic, StatusInvalidFormat
	}
	if err := v.check.Struct(lic); err != nil {
		v.logger.Warn("license fields invalid", "error", err)
		return lic, StatusInvalidFormat
	}
	return lic, StatusValid
}

// FeatureEnabled reports whether the current license unlocks feature.
// Trust is recomputed on every call. Unknown features are denied for
// every tier.
func (v *Validator) FeatureEnabled(feature string) bool {
	lic, status := v.Validate()
	if status != StatusValid {
		return false
	}
	for _, tier := range v.tiers[feature] {
		if tier == lic.Type {
			return true
		}
	}
	return false
}

// readMaterial loads the record and decoded signature. Missing files
// mean no license; undecodable material means a damaged one.
func (v *Validator) readMaterial() ([]byte, []byte, Status) {
	recPath, err := v.guard.Validate(filepath.Join(v.dir, RecordFile), security.PolicyStrict)
	if err != nil {
		return nil, nil, StatusMissing
	}
	sigPath, err := v.guard.Validate(filepath.Join(v.dir, SignatureFile), security.PolicyStrict)
	if err != nil {
		return nil, nil, StatusMissing
	}

	recData, status := v.readFile(recPath)
	if status != StatusValid {
		return nil, nil, status
	}
	sigText, status := v.readFile(sigPath)
	if status != StatusValid {
		return nil, nil, status
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(sigText)))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, nil, StatusCorrupt
	}
	return recData, sig, StatusValid
}

func (v *Validator) readFile(path string) ([]byte, Status) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, StatusMissing
		}
		return nil, StatusCorrupt
	}
	v.warnLoosePermissions(path)
	return data, StatusValid
}

// warnLoosePermissions flags license material other users can read.
// Loose modes do not change the validation outcome.
func (v *Validator) warnLoosePermissions(path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	if perm := fi.Mode().Perm(); perm&0o077 != 0 {
		v.logger.Warn("license material readable by other users", "path", path, "mode", perm.String())
	}
}

// today truncates the clock to a UTC date. Expiry is date-granular: a
// license is good through the whole of its Expires day.
func (v *Validator) today() time.Time {
	now := v.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
